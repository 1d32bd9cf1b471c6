package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/app"
	"github.com/julienmessagingme/educnat/internal/config"
	"github.com/julienmessagingme/educnat/internal/logging"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// cli holds the state shared by every subcommand
type cli struct {
	format string
	cfg    *config.Config
	logger *zap.Logger
	app    *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "saisine",
		Short: "Extraction of PRD referral forms",
		Long: `saisine reads PRD referral forms (.docx or .pdf), detects the highlighted
requests and the origin of the referral, asks the model for the remaining
fields and stores the result as a fiche to review.

Typical workflow:
  saisine detect fiche.docx        # rule-based detection only, no model call
  saisine extract fiche.docx       # full extraction, stores a pending fiche
  saisine list --status pending    # review queue
  saisine validate 12 --file f.json
  saisine proposition set 12 --file p.json
  saisine render 12                # fill the return form of a validated fiche

The model API key is read from SAISINE_AI_API_KEY or the --config file.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}

	config.DefineFlags(rootCmd.PersistentFlags(), config.DefaultConfig())
	rootCmd.PersistentFlags().StringVarP(&c.format, "format", "f", string(outputYAML), "output format: yaml or json")

	rootCmd.AddCommand(
		newDetectCmd(c),
		newExtractCmd(c),
		newAnalyseCmd(c),
		newListCmd(c),
		newShowCmd(c),
		newValidateCmd(c),
		newRenderCmd(c),
		newDeleteCmd(c),
		newPropositionCmd(c),
		newAnalysesCmd(c),
		newCatalogCmd(c),
		newVersionCmd(),
	)
	return rootCmd
}

// load reads the configuration from the parsed flags, the environment and
// the optional --config file
func (c *cli) load(cmd *cobra.Command) error {
	if c.cfg != nil {
		return nil
	}
	cfg, err := config.LoadFlagSet(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: "console",
		Quiet:  !cfg.IsDebug(),
	})
	if err != nil {
		return err
	}
	c.cfg, c.logger = cfg, logger
	return nil
}

// open loads the configuration and wires the pipeline
func (c *cli) open(cmd *cobra.Command) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	if err := c.load(cmd); err != nil {
		return nil, err
	}
	a, _, err := app.New(cmd.Context(), c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() error {
	var err error
	if c.app != nil {
		err = c.app.Close()
		c.app = nil
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return err
}

func (c *cli) output(cmd *cobra.Command, data any) error {
	format, err := parseOutputFormat(c.format)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), format, data)
}

// stage returns a path the pipeline accepts for file. Files outside the
// document directory are copied into it first.
func (c *cli) stage(ctx context.Context, a *app.App, file string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}
	dir := a.Service.Directory()
	if rel, err := filepath.Rel(dir, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return a.Service.Intake(ctx, filepath.Base(abs), data)
}
