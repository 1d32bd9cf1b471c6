package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/app"
	"github.com/julienmessagingme/educnat/internal/config"
	"github.com/julienmessagingme/educnat/internal/mcp"
)

const testVersion = "1.2.3"

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	defer func() {
		version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit
	}()

	version = testVersion
	buildTime = "2025-03-12_10:30:00"
	gitCommit = "abc123"

	var buf bytes.Buffer
	printVersion(&buf)

	output := buf.String()
	for _, expected := range []string{
		"Saisine PRD server",
		"Version: " + testVersion,
		"Build Time: 2025-03-12_10:30:00",
		"Git Commit: abc123",
		"Built with:",
	} {
		assert.Contains(t, output, expected)
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{name: "stdio quiet", mode: config.ModeStdio, level: "info", wantInfo: false},
		{name: "stdio debug", mode: config.ModeStdio, level: "debug", wantDebug: true, wantInfo: true},
		{name: "server info", mode: config.ModeServer, level: "info", wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Mode = tt.mode
			cfg.LogLevel = tt.level

			logger, err := newLogger(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDebug, logger.Core().Enabled(zap.DebugLevel))
			assert.Equal(t, tt.wantInfo, logger.Core().Enabled(zap.InfoLevel))
			assert.True(t, logger.Core().Enabled(zap.WarnLevel))
		})
	}

	t.Run("invalid format", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.LogFormat = "xml"
		_, err := newLogger(cfg)
		assert.Error(t, err)
	})
}

func testApp(t *testing.T, mutate func(*config.Config)) (*config.Config, *app.App) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Directory = t.TempDir()
	cfg.OutputDirectory = filepath.Join(cfg.Directory, "output")
	cfg.Port = 0
	if mutate != nil {
		mutate(cfg)
	}

	a, _, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return cfg, a
}

func TestStartInbox(t *testing.T) {
	ctx := context.Background()

	t.Run("not requested", func(t *testing.T) {
		cfg, a := testApp(t, func(c *config.Config) {
			c.Mode = config.ModeServer
		})
		w, err := startInbox(ctx, cfg, a, zap.NewNop())
		require.NoError(t, err)
		assert.Nil(t, w)
	})

	t.Run("stdio mode", func(t *testing.T) {
		cfg, a := testApp(t, func(c *config.Config) {
			c.Watch = true
			c.AI.APIKey = "sk-test"
		})
		w, err := startInbox(ctx, cfg, a, zap.NewNop())
		require.NoError(t, err)
		assert.Nil(t, w)
	})

	t.Run("without AI", func(t *testing.T) {
		cfg, a := testApp(t, func(c *config.Config) {
			c.Mode = config.ModeServer
			c.Watch = true
		})
		w, err := startInbox(ctx, cfg, a, zap.NewNop())
		require.NoError(t, err)
		assert.Nil(t, w)
	})

	t.Run("started", func(t *testing.T) {
		cfg, a := testApp(t, func(c *config.Config) {
			c.Mode = config.ModeServer
			c.Watch = true
			c.AI.APIKey = "sk-test"
		})
		w, err := startInbox(ctx, cfg, a, zap.NewNop())
		require.NoError(t, err)
		require.NotNil(t, w)
		w.Stop()
	})
}

func TestRunServerMode_StopsWithContext(t *testing.T) {
	cfg, a := testApp(t, func(c *config.Config) {
		c.Mode = config.ModeServer
		c.Host = "127.0.0.1"
	})

	server, err := mcp.NewServer(cfg, a.Service, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.NoError(t, runServerMode(ctx, cancel, server, zap.NewNop()))
}
