package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process store used when no database is configured
type Memory struct {
	mu           sync.RWMutex
	fiches       map[int64]*FicheRecord
	analyses     map[int64]*AnalyseRecord
	propositions map[propositionKey]*PropositionRecord
	nextFiche    int64
	nextAnal     int64
	nextProp     int64
	now          func() time.Time
}

type propositionKey struct {
	fiche int64
	temps int
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		fiches:       make(map[int64]*FicheRecord),
		analyses:     make(map[int64]*AnalyseRecord),
		propositions: make(map[propositionKey]*PropositionRecord),
		now:          time.Now,
	}
}

// CreateFiche stores a copy of r and fills its id and timestamps
func (m *Memory) CreateFiche(_ context.Context, r *FicheRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextFiche++
	r.ID = m.nextFiche
	if r.Status == "" {
		r.Status = StatusPending
	}
	r.Demandes = nonNil(r.Demandes)
	r.CreatedAt = m.now()
	r.UpdatedAt = r.CreatedAt
	m.fiches[r.ID] = r.Clone()
	return nil
}

// GetFiche returns a copy of one fiche
func (m *Memory) GetFiche(_ context.Context, id int64) (*FicheRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.fiches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

// UpdateFiche replaces the editable fields and status of a stored fiche
func (m *Memory) UpdateFiche(_ context.Context, r *FicheRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.fiches[r.ID]
	if !ok {
		return ErrNotFound
	}

	next := r.Clone()
	next.SourceFilename = cur.SourceFilename
	next.SourceType = cur.SourceType
	next.SourcePath = cur.SourcePath
	next.ContenuBrut = cur.ContenuBrut
	next.Confidence = cur.Confidence
	next.Demandes = nonNil(next.Demandes)
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = m.now()
	m.fiches[r.ID] = next

	r.UpdatedAt = next.UpdatedAt
	return nil
}

// ListFiches returns one page of fiches, newest first
func (m *Memory) ListFiches(_ context.Context, opts ListOptions) (*FichePage, error) {
	opts = opts.normalize()
	search := strings.ToLower(opts.Search)

	m.mu.RLock()
	var matched []*FicheRecord
	for _, r := range m.fiches {
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		if search != "" && !matchesSearch(search, r.Nom, r.Prenom, r.SourceFilename) {
			continue
		}
		matched = append(matched, r.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	start, end := opts.bounds(len(matched))
	return newPage(matched[start:end], opts, len(matched)), nil
}

func matchesSearch(search string, fields ...string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// DeleteFiche removes one fiche and its propositions
func (m *Memory) DeleteFiche(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.fiches[id]; !ok {
		return ErrNotFound
	}
	delete(m.fiches, id)
	for key := range m.propositions {
		if key.fiche == id {
			delete(m.propositions, key)
		}
	}
	return nil
}

// CreateAnalyse stores a copy of r and fills its id and creation time
func (m *Memory) CreateAnalyse(_ context.Context, r *AnalyseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextAnal++
	r.ID = m.nextAnal
	if r.Status == "" {
		r.Status = StatusPending
	}
	r.CreatedAt = m.now()
	r.UpdatedAt = r.CreatedAt
	m.analyses[r.ID] = r.Clone()
	return nil
}

// GetAnalyse returns a copy of one analysis
func (m *Memory) GetAnalyse(_ context.Context, id int64) (*AnalyseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.analyses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

// UpdateAnalyse replaces the fields, status and PDF path of a stored analysis
func (m *Memory) UpdateAnalyse(_ context.Context, r *AnalyseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.analyses[r.ID]
	if !ok {
		return ErrNotFound
	}

	next := r.Clone()
	next.SourceFiles = cur.SourceFiles
	next.ContenuBrut = cur.ContenuBrut
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = m.now()
	m.analyses[r.ID] = next

	r.UpdatedAt = next.UpdatedAt
	return nil
}

// ListAnalyses returns one page of analyses, newest first
func (m *Memory) ListAnalyses(_ context.Context, opts ListOptions) (*AnalysePage, error) {
	opts = opts.normalize()
	search := strings.ToLower(opts.Search)

	m.mu.RLock()
	var matched []*AnalyseRecord
	for _, r := range m.analyses {
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		if search != "" && !matchesSearch(search, r.NomEnfant, r.PrenomEnfant) {
			continue
		}
		matched = append(matched, r.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	start, end := opts.bounds(len(matched))
	return newAnalysePage(matched[start:end], opts, len(matched)), nil
}

// DeleteAnalyse removes one analysis
func (m *Memory) DeleteAnalyse(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.analyses[id]; !ok {
		return ErrNotFound
	}
	delete(m.analyses, id)
	return nil
}

// SaveProposition creates or replaces the proposition of r.FicheID for
// r.Temps. The fiche must exist.
func (m *Memory) SaveProposition(_ context.Context, r *PropositionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.fiches[r.FicheID]; !ok {
		return ErrNotFound
	}

	key := propositionKey{fiche: r.FicheID, temps: r.Temps}
	now := m.now()
	if cur, ok := m.propositions[key]; ok {
		r.ID = cur.ID
		r.CreatedAt = cur.CreatedAt
	} else {
		m.nextProp++
		r.ID = m.nextProp
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	m.propositions[key] = r.Clone()
	return nil
}

// GetProposition returns the proposition of a fiche for one temps
func (m *Memory) GetProposition(_ context.Context, ficheID int64, temps int) (*PropositionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.propositions[propositionKey{fiche: ficheID, temps: temps}]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}
