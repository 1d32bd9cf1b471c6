package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/render"
	"github.com/julienmessagingme/educnat/internal/saisine"
	"github.com/julienmessagingme/educnat/internal/store"
)

// GetFiche returns one stored fiche
func (s *Service) GetFiche(ctx context.Context, id int64) (*store.FicheRecord, error) {
	return s.store.GetFiche(ctx, id)
}

// ListFiches returns one page of stored fiches
func (s *Service) ListFiches(ctx context.Context, opts store.ListOptions) (*store.FichePage, error) {
	return s.store.ListFiches(ctx, opts)
}

// DeleteFiche removes a stored fiche and its propositions
func (s *Service) DeleteFiche(ctx context.Context, id int64) error {
	return s.store.DeleteFiche(ctx, id)
}

// UpdateFiche records the reviewer's corrections. The corrected fields
// replace the stored ones and the fiche becomes validated.
func (s *Service) UpdateFiche(ctx context.Context, id int64, corrected saisine.Fiche) (*store.FicheRecord, error) {
	if err := ValidateFiche(corrected, s.Catalog()); err != nil {
		return nil, err
	}

	rec, err := s.store.GetFiche(ctx, id)
	if err != nil {
		return nil, err
	}
	if !store.CanTransition(rec.Status, store.StatusValidated) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, store.StatusValidated)
	}

	contenu, confidence := rec.ContenuBrut, rec.Confidence
	rec.Fiche = corrected.Clone()
	rec.ContenuBrut, rec.Confidence = contenu, confidence
	if rec.Demandes == nil {
		rec.Demandes = []string{}
	}
	rec.Status = store.StatusValidated

	if err := s.store.UpdateFiche(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("fiche validated", zap.Int64("id", id), zap.Strings("demandes", rec.Demandes))
	return rec, nil
}

// RenderFiche renders the return form of a validated fiche to PDF and marks
// the fiche completed. The Temps 1 proposition, when one was saved, fills
// the answer part of the form.
func (s *Service) RenderFiche(ctx context.Context, id int64) (*store.FicheRecord, *render.Output, error) {
	if s.renderer == nil {
		return nil, nil, ErrRenderUnavailable
	}

	rec, err := s.store.GetFiche(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !store.CanTransition(rec.Status, store.StatusCompleted) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, store.StatusCompleted)
	}

	var proposition *saisine.Proposition
	switch p, err := s.store.GetProposition(ctx, id, saisine.Temps1); {
	case err == nil:
		proposition = &p.Proposition
	case !errors.Is(err, store.ErrNotFound):
		return nil, nil, err
	}

	out, err := s.renderer.RenderFiche(ctx, id, rec.Fiche, proposition, s.Catalog())
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	rec.Status = store.StatusCompleted
	rec.PDFOutputPath = out.PDFPath
	rec.ProcessedAt = &now
	if err := s.store.UpdateFiche(ctx, rec); err != nil {
		return nil, nil, err
	}
	return rec, out, nil
}
