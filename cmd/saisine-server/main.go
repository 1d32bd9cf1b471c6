package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/app"
	"github.com/julienmessagingme/educnat/internal/config"
	"github.com/julienmessagingme/educnat/internal/inbox"
	"github.com/julienmessagingme/educnat/internal/logging"
	"github.com/julienmessagingme/educnat/internal/mcp"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// newLogger configures logging based on the server mode
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		// In stdio mode the host only needs failures unless debug is enabled
		Quiet: cfg.IsStdioMode() && !cfg.IsDebug(),
	})
}

// startInbox watches the document directory when --watch is set in server mode
func startInbox(ctx context.Context, cfg *config.Config, a *app.App, logger *zap.Logger) (*inbox.Watcher, error) {
	if !cfg.Watch || !cfg.IsServerMode() {
		return nil, nil
	}
	if !a.Service.HasAI() {
		logger.Warn("inbox not started: AI extraction is not configured")
		return nil, nil
	}

	w := inbox.New(cfg.Directory, a.Service, inbox.WithLogger(logging.Component(logger, "inbox")))
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	logger.Info("watching inbox", zap.String("dir", cfg.Directory))
	return w, nil
}

// watchConfig reloads the request catalog when the --config file changes
func watchConfig(cfg *config.Config, a *app.App, logger *zap.Logger) {
	cfg.WatchConfigFile(func(next *config.Config) {
		if err := a.ReloadCatalog(next); err != nil {
			logger.Error("failed to reload catalog", zap.Error(err))
		}
	}, func(err error) {
		logger.Error("ignoring invalid configuration change", zap.Error(err))
	})
}

// runServerMode handles server mode execution with signal handling
func runServerMode(ctx context.Context, cancel context.CancelFunc, server *mcp.Server, logger *zap.Logger) error {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Run(ctx)
	}()

	select {
	case sig := <-signalCh:
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
		cancel()

		if err := <-serverErrCh; err != nil {
			return fmt.Errorf("server shutdown with error: %w", err)
		}

	case err := <-serverErrCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("server stopped successfully")
	return nil
}

// runStdioMode handles stdio mode execution. The parent process controls
// our lifecycle: we exit when stdin is closed.
func runStdioMode(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx)
}

func run() error {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion(os.Stdout)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if version != "dev" {
		cfg.Version = version
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsDebug() {
		logger.Debug("starting", zap.String("config", cfg.String()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, services, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close resources", zap.Error(err))
		}
	}()
	logger.Info("services ready",
		zap.Bool("database", services.Database),
		zap.Bool("ai", services.AI),
		zap.Bool("cache", services.Cache),
		zap.Bool("renderer", services.Renderer),
	)

	server, err := mcp.NewServer(cfg, a.Service, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	w, err := startInbox(ctx, cfg, a, logger)
	if err != nil {
		return fmt.Errorf("failed to start inbox: %w", err)
	}
	if w != nil {
		defer w.Stop()
	}
	watchConfig(cfg, a, logger)

	if cfg.IsServerMode() {
		return runServerMode(ctx, cancel, server, logger)
	}
	return runStdioMode(ctx, server)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Saisine PRD server\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
