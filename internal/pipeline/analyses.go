package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/render"
	"github.com/julienmessagingme/educnat/internal/saisine"
	"github.com/julienmessagingme/educnat/internal/store"
)

// GetAnalyse returns one stored analysis
func (s *Service) GetAnalyse(ctx context.Context, id int64) (*store.AnalyseRecord, error) {
	return s.store.GetAnalyse(ctx, id)
}

// ListAnalyses returns one page of stored analyses
func (s *Service) ListAnalyses(ctx context.Context, opts store.ListOptions) (*store.AnalysePage, error) {
	return s.store.ListAnalyses(ctx, opts)
}

// DeleteAnalyse removes a stored analysis. Its source documents stay in
// the document directory.
func (s *Service) DeleteAnalyse(ctx context.Context, id int64) error {
	return s.store.DeleteAnalyse(ctx, id)
}

// UpdateAnalyse records the reviewer's corrections to an analysis. The
// corrected fields replace the stored ones and the analysis becomes
// validated.
func (s *Service) UpdateAnalyse(ctx context.Context, id int64, corrected saisine.Analyse) (*store.AnalyseRecord, error) {
	if err := ValidateAnalyse(corrected); err != nil {
		return nil, err
	}

	rec, err := s.store.GetAnalyse(ctx, id)
	if err != nil {
		return nil, err
	}
	if !store.CanTransition(rec.Status, store.StatusValidated) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, store.StatusValidated)
	}

	rec.Analyse = corrected
	rec.Status = store.StatusValidated
	if err := s.store.UpdateAnalyse(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("analyse validated", zap.Int64("id", id))
	return rec, nil
}

// RenderAnalyse renders a stored analysis to PDF and marks it completed.
// Analyses are rendered whatever their review state.
func (s *Service) RenderAnalyse(ctx context.Context, id int64) (*store.AnalyseRecord, *render.Output, error) {
	if s.renderer == nil {
		return nil, nil, ErrRenderUnavailable
	}
	rec, err := s.store.GetAnalyse(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	out, err := s.renderer.RenderAnalyse(ctx, id, rec.Analyse)
	if err != nil {
		return nil, nil, err
	}

	rec.Status = store.StatusCompleted
	rec.PDFOutputPath = out.PDFPath
	if err := s.store.UpdateAnalyse(ctx, rec); err != nil {
		return nil, nil, err
	}
	return rec, out, nil
}
