// Package pipeline orchestrates the referral workflow: intake, extraction,
// AI field extraction, reconciliation, review and rendering.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/ai"
	"github.com/julienmessagingme/educnat/internal/document"
	"github.com/julienmessagingme/educnat/internal/render"
	"github.com/julienmessagingme/educnat/internal/saisine"
	"github.com/julienmessagingme/educnat/internal/security"
	"github.com/julienmessagingme/educnat/internal/store"
)

var (
	// ErrAIUnavailable is returned by operations needing the model when none is configured
	ErrAIUnavailable = errors.New("pipeline: AI extractor not configured")
	// ErrRenderUnavailable is returned by render operations when no renderer is configured
	ErrRenderUnavailable = errors.New("pipeline: renderer not configured")
	// ErrInvalidTransition is returned when a record cannot move to the requested status
	ErrInvalidTransition = errors.New("pipeline: invalid status transition")
)

// Store persists fiches, their propositions and analyses
type Store interface {
	CreateFiche(ctx context.Context, r *store.FicheRecord) error
	GetFiche(ctx context.Context, id int64) (*store.FicheRecord, error)
	UpdateFiche(ctx context.Context, r *store.FicheRecord) error
	ListFiches(ctx context.Context, opts store.ListOptions) (*store.FichePage, error)
	DeleteFiche(ctx context.Context, id int64) error

	SaveProposition(ctx context.Context, r *store.PropositionRecord) error
	GetProposition(ctx context.Context, ficheID int64, temps int) (*store.PropositionRecord, error)

	CreateAnalyse(ctx context.Context, r *store.AnalyseRecord) error
	GetAnalyse(ctx context.Context, id int64) (*store.AnalyseRecord, error)
	UpdateAnalyse(ctx context.Context, r *store.AnalyseRecord) error
	ListAnalyses(ctx context.Context, opts store.ListOptions) (*store.AnalysePage, error)
	DeleteAnalyse(ctx context.Context, id int64) error
}

// Renderer produces PDF documents from stored records. p is nil when no
// proposition was saved for the fiche.
type Renderer interface {
	RenderFiche(ctx context.Context, id int64, f saisine.Fiche, p *saisine.Proposition, catalog *saisine.Catalog) (*render.Output, error)
	RenderAnalyse(ctx context.Context, id int64, a saisine.Analyse) (*render.Output, error)
}

// Service runs the referral workflow over the configured document directory
type Service struct {
	extractor *document.Extractor
	ai        ai.Extractor
	store     Store
	renderer  Renderer
	paths     *security.PathValidator
	logger    *zap.Logger
}

// Options holds the collaborators of a Service. Extractor, Store and Paths
// are required; AI and Renderer may be nil, which disables the operations
// needing them.
type Options struct {
	Extractor *document.Extractor
	AI        ai.Extractor
	Store     Store
	Renderer  Renderer
	Paths     *security.PathValidator
	Logger    *zap.Logger
}

// NewService creates a pipeline service
func NewService(opts Options) (*Service, error) {
	if opts.Extractor == nil {
		return nil, fmt.Errorf("document extractor is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Paths == nil {
		return nil, fmt.Errorf("path validator is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Service{
		extractor: opts.Extractor,
		ai:        opts.AI,
		store:     opts.Store,
		renderer:  opts.Renderer,
		paths:     opts.Paths,
		logger:    opts.Logger,
	}, nil
}

// Directory returns the document directory
func (s *Service) Directory() string {
	return s.paths.Base()
}

// Extractor returns the document extractor
func (s *Service) Extractor() *document.Extractor {
	return s.extractor
}

// Catalog returns the request catalog currently in use
func (s *Service) Catalog() *saisine.Catalog {
	return s.extractor.Matcher().Catalog()
}

// HasAI reports whether AI extraction is available
func (s *Service) HasAI() bool {
	return s.ai != nil
}

// HasRenderer reports whether rendering is available
func (s *Service) HasRenderer() bool {
	return s.renderer != nil
}
