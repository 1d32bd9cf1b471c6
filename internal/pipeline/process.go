package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/julienmessagingme/educnat/internal/ai"
	"github.com/julienmessagingme/educnat/internal/document"
	"github.com/julienmessagingme/educnat/internal/saisine"
	"github.com/julienmessagingme/educnat/internal/store"
)

// maxParallelExtractions bounds concurrent document reads in Analyse
const maxParallelExtractions = 4

// DetectFile reads a document and runs the rule-based detectors only
func (s *Service) DetectFile(ctx context.Context, path string) (*document.Result, error) {
	resolved, err := s.paths.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	return s.extractor.ExtractFile(ctx, resolved)
}

// ProcessFile extracts a referral form, asks the model for its fields,
// reconciles them with the detections and stores the result as a pending
// fiche.
func (s *Service) ProcessFile(ctx context.Context, path string) (*store.FicheRecord, error) {
	resolved, err := s.paths.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	return s.process(ctx, resolved, filepath.Base(resolved))
}

func (s *Service) process(ctx context.Context, path, sourceName string) (*store.FicheRecord, error) {
	if s.ai == nil {
		return nil, ErrAIUnavailable
	}
	start := time.Now()

	res, err := s.extractor.ExtractFile(ctx, path)
	if err != nil {
		return nil, err
	}

	extracted, err := s.ai.ExtractFiche(ctx, res.MarkedText, string(res.Format))
	if err != nil {
		return nil, fmt.Errorf("AI extraction failed for %s: %w", sourceName, err)
	}

	rec := &store.FicheRecord{
		SourceFilename: sourceName,
		SourceType:     string(res.Format),
		SourcePath:     path,
		Fiche:          saisine.Reconcile(extracted, res.Detection, res.MarkedText),
		Status:         store.StatusPending,
	}
	if err := s.store.CreateFiche(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("fiche created",
		zap.Int64("id", rec.ID),
		zap.String("source", sourceName),
		zap.Bool("degraded", res.Degraded),
		zap.Strings("demandes", rec.Demandes),
		zap.String("origine", rec.OrigineSaisine),
		zap.Duration("duration", time.Since(start)),
	)
	return rec, nil
}

// Analyse reads several documents about one pupil in parallel and asks the
// model for a single synthesis. Documents are presented to the model in
// input order.
func (s *Service) Analyse(ctx context.Context, paths []string) (*store.AnalyseRecord, error) {
	if s.ai == nil {
		return nil, ErrAIUnavailable
	}
	if len(paths) == 0 {
		return nil, ai.ErrNoDocuments
	}

	resolved := make([]string, len(paths))
	for i, p := range paths {
		r, err := s.paths.Resolve(p)
		if err != nil {
			return nil, fmt.Errorf("security validation failed: %w", err)
		}
		resolved[i] = r
	}

	docs := make([]ai.SourceDocument, len(resolved))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelExtractions)
	for i, path := range resolved {
		g.Go(func() error {
			res, err := s.extractor.ExtractFile(gctx, path)
			if err != nil {
				return err
			}
			docs[i] = ai.SourceDocument{Name: res.Name, Text: res.PlainText}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	analysis, err := s.ai.ExtractAnalyse(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("AI analysis failed: %w", err)
	}

	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	rec := &store.AnalyseRecord{
		SourceFiles: names,
		Analyse:     analysis,
		ContenuBrut: ai.JoinDocuments(docs),
		Status:      store.StatusPending,
	}
	if err := s.store.CreateAnalyse(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("analyse created", zap.Int64("id", rec.ID), zap.Strings("sources", names))
	return rec, nil
}
