package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/saisine"
	"github.com/julienmessagingme/educnat/internal/store"
)

// SaveProposition records the PRD's answer to fiche ficheID for p.Temps,
// replacing the one saved before for the same temps
func (s *Service) SaveProposition(ctx context.Context, ficheID int64, p saisine.Proposition) (*store.PropositionRecord, error) {
	if err := ValidateProposition(p); err != nil {
		return nil, err
	}
	if _, err := s.store.GetFiche(ctx, ficheID); err != nil {
		return nil, err
	}

	rec := &store.PropositionRecord{FicheID: ficheID, Proposition: p.Clone()}
	if rec.Motifs == nil {
		rec.Motifs = []string{}
	}
	if rec.Evaluation == nil {
		rec.Evaluation = []string{}
	}
	if err := s.store.SaveProposition(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info("proposition saved",
		zap.Int64("fiche_id", ficheID),
		zap.Int("temps", p.Temps),
		zap.Strings("motifs", rec.Motifs))
	return rec, nil
}

// GetProposition returns the proposition of a fiche for one temps
func (s *Service) GetProposition(ctx context.Context, ficheID int64, temps int) (*store.PropositionRecord, error) {
	return s.store.GetProposition(ctx, ficheID, temps)
}
