// Package app wires the referral pipeline from a configuration. It is
// shared by the MCP server and the command line tool.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/ai"
	"github.com/julienmessagingme/educnat/internal/config"
	"github.com/julienmessagingme/educnat/internal/document"
	"github.com/julienmessagingme/educnat/internal/logging"
	"github.com/julienmessagingme/educnat/internal/pipeline"
	"github.com/julienmessagingme/educnat/internal/render"
	"github.com/julienmessagingme/educnat/internal/security"
	"github.com/julienmessagingme/educnat/internal/store"
)

// App holds the pipeline and the resources it owns
type App struct {
	Service   *pipeline.Service
	Extractor *document.Extractor

	logger  *zap.Logger
	closers []func() error
}

// Services names the optional backends that were enabled
type Services struct {
	Database bool
	Cache    bool
	AI       bool
	Renderer bool
}

// New builds the pipeline described by cfg. Optional backends that are not
// configured are left out: the in-memory store replaces PostgreSQL, AI
// extraction is disabled without an API key and rendering without a
// template. An unreachable Redis only disables the cache.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}
	var svc Services

	matcher, err := cfg.Matcher()
	if err != nil {
		return nil, svc, err
	}
	a.Extractor = document.NewExtractor(cfg.MaxFileSize, matcher, logging.Component(logger, "document"))

	paths, err := security.NewPathValidator(cfg.Directory)
	if err != nil {
		return nil, svc, fmt.Errorf("invalid document directory: %w", err)
	}

	opts := pipeline.Options{
		Extractor: a.Extractor,
		Paths:     paths,
		Logger:    logging.Component(logger, "pipeline"),
	}

	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, store.Config{DatabaseURL: cfg.DatabaseURL}, logging.Component(logger, "store"))
		if err != nil {
			return nil, svc, err
		}
		a.closers = append(a.closers, pg.Close)
		opts.Store = pg
		svc.Database = true
	} else {
		logger.Warn("no database configured, fiches are kept in memory")
		opts.Store = store.NewMemory()
	}

	if cfg.AI.APIKey != "" {
		client := ai.NewClient(ai.Config{
			APIKey:     cfg.AI.APIKey,
			BaseURL:    cfg.AI.BaseURL,
			Model:      cfg.AI.Model,
			Timeout:    cfg.AI.Timeout,
			MaxRetries: cfg.AI.MaxRetries,
			RateLimit:  cfg.AI.RateLimit,
			Codes:      matcher.Catalog().Codes(),
		}, logging.Component(logger, "ai"))
		opts.AI = client
		svc.AI = true

		if cfg.RedisURL != "" {
			rdb, err := ai.NewRedisClient(ctx, cfg.RedisURL)
			if err != nil {
				logger.Warn("AI cache disabled", zap.Error(err))
			} else {
				a.closers = append(a.closers, rdb.Close)
				opts.AI = ai.NewCachingExtractor(client, rdb, cfg.RedisTTL, client.Model(), logging.Component(logger, "cache"))
				svc.Cache = true
			}
		}
	} else {
		logger.Warn("no AI API key configured, extraction is disabled")
	}

	if cfg.FicheTemplate != "" || cfg.AnalyseTemplate != "" {
		converter := render.NewConverter(cfg.Soffice, cfg.ConvertTimeout, logging.Component(logger, "convert"))
		if err := converter.Available(); err != nil {
			logger.Warn("PDF rendering disabled", zap.Error(err))
		} else {
			opts.Renderer = render.NewRenderer(render.Config{
				FicheTemplate:   cfg.FicheTemplate,
				AnalyseTemplate: cfg.AnalyseTemplate,
				OutputDir:       cfg.OutputDirectory,
			}, converter, logging.Component(logger, "render"))
			svc.Renderer = true
		}
	}

	a.Service, err = pipeline.NewService(opts)
	if err != nil {
		_ = a.Close()
		return nil, svc, err
	}
	return a, svc, nil
}

// ReloadCatalog swaps the request matcher after a configuration change
func (a *App) ReloadCatalog(cfg *config.Config) error {
	m, err := cfg.Matcher()
	if err != nil {
		return err
	}
	a.Extractor.SetMatcher(m)
	a.logger.Info("request catalog reloaded",
		zap.String("catalog", cfg.CatalogPath),
		zap.Int("entries", m.Catalog().Len()),
		zap.Bool("fold_accents", cfg.FoldAccents),
	)
	return nil
}

// Close releases the database and cache connections
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
