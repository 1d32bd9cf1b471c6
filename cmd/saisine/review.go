package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/julienmessagingme/educnat/internal/saisine"
	"github.com/julienmessagingme/educnat/internal/store"
)

func newAnalysesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyses",
		Short: "Review stored analyses",
		Long: `List, show, correct and delete the analyses built with "saisine analyse".
Render one with "saisine render --analyse <id>".`,
	}
	cmd.AddCommand(
		newAnalysesListCmd(c),
		newAnalysesShowCmd(c),
		newAnalysesValidateCmd(c),
		newAnalysesDeleteCmd(c),
	)
	return cmd
}

func newAnalysesListCmd(c *cli) *cobra.Command {
	var (
		status string
		opts   store.ListOptions
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.ParseStatus(status)
			if err != nil {
				return err
			}
			opts.Status = st

			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			page, err := a.Service.ListAnalyses(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return c.output(cmd, page)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only analyses in this state: pending, validated or completed")
	cmd.Flags().StringVar(&opts.Search, "search", "", "match against the pupil's names")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "analyses per page")
	return cmd
}

func newAnalysesShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			rec, err := a.Service.GetAnalyse(cmd.Context(), id)
			if err != nil {
				return err
			}
			return c.output(cmd, rec)
		},
	}
}

func newAnalysesValidateCmd(c *cli) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate <id>",
		Short: "Store the reviewed fields of an analysis and mark it validated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var analyse saisine.Analyse
			if err := readJSON(cmd, file, "analyse", &analyse); err != nil {
				return err
			}

			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			rec, err := a.Service.UpdateAnalyse(cmd.Context(), id, analyse)
			if err != nil {
				return err
			}
			return c.output(cmd, rec)
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "analysis JSON file, - for standard input")
	return cmd
}

func newAnalysesDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			if err := a.Service.DeleteAnalyse(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "analyse %d deleted\n", id)
			return nil
		},
	}
}

func newPropositionCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proposition",
		Short: "Record the PRD's answer to a fiche",
		Long: `A proposition is the answer of the PRD to a referral, for Temps 1 or
Temps 2. The Temps 1 proposition fills the answer part of the return form
rendered with "saisine render".`,
	}
	cmd.AddCommand(
		newPropositionSetCmd(c),
		newPropositionShowCmd(c),
		newPropositionMotifsCmd(c),
	)
	return cmd
}

func newPropositionSetCmd(c *cli) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set <fiche-id>",
		Short: "Save the proposition of a fiche",
		Long: `Read the proposition as JSON from --file (or standard input with --file -)
and save it for the fiche. A proposition saved before for the same temps is
replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ficheID, err := parseID(args[0])
			if err != nil {
				return err
			}
			var p saisine.Proposition
			if err := readJSON(cmd, file, "proposition", &p); err != nil {
				return err
			}

			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			rec, err := a.Service.SaveProposition(cmd.Context(), ficheID, p)
			if err != nil {
				return err
			}
			return c.output(cmd, rec)
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "proposition JSON file, - for standard input")
	return cmd
}

func newPropositionShowCmd(c *cli) *cobra.Command {
	var temps int

	cmd := &cobra.Command{
		Use:   "show <fiche-id>",
		Short: "Show the proposition of a fiche",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ficheID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if temps != saisine.Temps1 && temps != saisine.Temps2 {
				return fmt.Errorf("invalid temps %d: must be 1 or 2", temps)
			}
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			rec, err := a.Service.GetProposition(cmd.Context(), ficheID, temps)
			if err != nil {
				return err
			}
			return c.output(cmd, rec)
		},
	}
	cmd.Flags().IntVar(&temps, "temps", saisine.Temps1, "1 or 2")
	return cmd
}

func newPropositionMotifsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "motifs",
		Short: "Print the standard answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.output(cmd, map[string]any{"motifs": saisine.Motifs()})
		},
	}
}
