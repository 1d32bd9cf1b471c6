// Package store persists referral records and analyses. The canonical
// record shape is saisine.Fiche; column names exist only in this package.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

// ErrNotFound is returned when no record has the requested id
var ErrNotFound = errors.New("store: record not found")

// Status is the review state of a stored fiche
type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusCompleted Status = "completed"
)

// ParseStatus accepts the three known states; the empty string means
// no filter and parses to "".
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "", StatusPending, StatusValidated, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// CanTransition reports whether a fiche or an analysis may move from one
// state to another.
// Validated fiches may be corrected again; completed fiches may be
// rendered again.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusPending || to == StatusValidated
	case StatusValidated:
		return to == StatusValidated || to == StatusCompleted
	case StatusCompleted:
		return to == StatusCompleted || to == StatusValidated
	}
	return false
}

// FicheRecord is a stored fiche with its source and review metadata
type FicheRecord struct {
	ID             int64  `json:"id"`
	SourceFilename string `json:"sourceFilename"`
	SourceType     string `json:"sourceType"`
	SourcePath     string `json:"sourcePath"`

	saisine.Fiche

	Status        Status     `json:"status"`
	PDFOutputPath string     `json:"pdfOutputPath,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ProcessedAt   *time.Time `json:"processedAt,omitempty"`
}

// Clone returns a deep copy
func (r *FicheRecord) Clone() *FicheRecord {
	cp := *r
	cp.Fiche = r.Fiche.Clone()
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		cp.ProcessedAt = &t
	}
	return &cp
}

// AnalyseRecord is a stored multi-document synthesis
type AnalyseRecord struct {
	ID          int64    `json:"id"`
	SourceFiles []string `json:"sourceFiles"`

	saisine.Analyse

	ContenuBrut   string    `json:"contenuBrut,omitempty"`
	Status        Status    `json:"status"`
	PDFOutputPath string    `json:"pdfOutputPath,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Clone returns a deep copy
func (r *AnalyseRecord) Clone() *AnalyseRecord {
	cp := *r
	cp.SourceFiles = append([]string(nil), r.SourceFiles...)
	return &cp
}

// PropositionRecord is the answer stored for one fiche and one temps
type PropositionRecord struct {
	ID      int64 `json:"id"`
	FicheID int64 `json:"ficheId"`

	saisine.Proposition

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy
func (r *PropositionRecord) Clone() *PropositionRecord {
	cp := *r
	cp.Proposition = r.Proposition.Clone()
	return &cp
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListOptions filters and paginates fiche and analysis listings
type ListOptions struct {
	Page   int    // 1-based
	Limit  int    // page size
	Status Status // empty for all
	Search string // matched against the pupil's names and, for fiches, the source file name
}

func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit <= 0 {
		o.Limit = defaultPageSize
	}
	if o.Limit > maxPageSize {
		o.Limit = maxPageSize
	}
	o.Search = strings.TrimSpace(o.Search)
	return o
}

func (o ListOptions) offset() int {
	return (o.Page - 1) * o.Limit
}

// FichePage is one page of a listing
type FichePage struct {
	Fiches     []*FicheRecord `json:"fiches"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	Total      int            `json:"total"`
	TotalPages int            `json:"totalPages"`
}

// AnalysePage is one page of an analysis listing
type AnalysePage struct {
	Analyses   []*AnalyseRecord `json:"analyses"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int              `json:"total"`
	TotalPages int              `json:"totalPages"`
}

func totalPages(total, limit int) int {
	if total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func newPage(fiches []*FicheRecord, opts ListOptions, total int) *FichePage {
	if fiches == nil {
		fiches = []*FicheRecord{}
	}
	return &FichePage{Fiches: fiches, Page: opts.Page, Limit: opts.Limit, Total: total, TotalPages: totalPages(total, opts.Limit)}
}

func newAnalysePage(analyses []*AnalyseRecord, opts ListOptions, total int) *AnalysePage {
	if analyses == nil {
		analyses = []*AnalyseRecord{}
	}
	return &AnalysePage{Analyses: analyses, Page: opts.Page, Limit: opts.Limit, Total: total, TotalPages: totalPages(total, opts.Limit)}
}

// bounds returns the slice bounds of the requested page within total items
func (o ListOptions) bounds(total int) (int, int) {
	start := o.offset()
	if start > total {
		start = total
	}
	end := start + o.Limit
	if end > total {
		end = total
	}
	return start, end
}
