package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/julienmessagingme/educnat/internal/render"
	"github.com/julienmessagingme/educnat/internal/saisine"
	"github.com/julienmessagingme/educnat/internal/store"
)

type requestOutput struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type detectOutput struct {
	Name        string          `json:"name"`
	Format      string          `json:"format"`
	Size        int64           `json:"size"`
	Pages       int             `json:"pages,omitempty"`
	Highlighted bool            `json:"highlighted"`
	Degraded    bool            `json:"degraded"`
	Requests    []requestOutput `json:"requests"`
	Origin      *saisine.Origin `json:"origin,omitempty"`
	MarkedText  string          `json:"markedText,omitempty"`
}

type renderOutput struct {
	ID      int64  `json:"id"`
	PDFPath string `json:"pdfPath"`
	Pages   int    `json:"pages,omitempty"`
}

func requests(codes []string, catalog *saisine.Catalog) []requestOutput {
	out := make([]requestOutput, 0, len(codes))
	for _, code := range codes {
		out = append(out, requestOutput{Code: code, Label: catalog.Label(code)})
	}
	return out
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", arg)
	}
	return id, nil
}

// readJSON decodes the JSON document of file, or standard input for "-",
// into v
func readJSON(cmd *cobra.Command, file, what string, v any) error {
	var r io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("invalid %s JSON: %w", what, err)
	}
	return nil
}

func newDetectCmd(c *cli) *cobra.Command {
	var withText bool

	cmd := &cobra.Command{
		Use:   "detect <file>",
		Short: "Detect highlighted requests and the referral origin",
		Long: `Read a referral form and run the rule-based detection only: highlighted
request options and the origin of the referral. No model is called and
nothing is stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			res, err := a.Extractor.ExtractFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := detectOutput{
				Name:        res.Name,
				Format:      string(res.Format),
				Size:        res.Size,
				Pages:       res.Pages,
				Highlighted: res.Highlighted,
				Degraded:    res.Degraded,
				Requests:    requests(res.Detection.Options, a.Service.Catalog()),
			}
			if !res.Detection.Origin.IsZero() {
				origin := res.Detection.Origin
				out.Origin = &origin
			}
			if withText {
				out.MarkedText = res.MarkedText
			}
			return c.output(cmd, out)
		},
	}
	cmd.Flags().BoolVar(&withText, "text", false, "include the extracted text with highlight markers")
	return cmd
}

func newExtractCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract a referral form into a pending fiche",
		Long: `Read a referral form, extract its fields with the model, merge them with
the rule-based detection and store the result as a pending fiche.

Files outside --dir are copied into it first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			path, err := c.stage(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			rec, err := a.Service.ProcessFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			return c.output(cmd, rec)
		},
	}
}

func newAnalyseCmd(c *cli) *cobra.Command {
	var renderPDF bool

	cmd := &cobra.Command{
		Use:   "analyse <file>...",
		Short: "Build one synthesis from several documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				path, err := c.stage(cmd.Context(), a, arg)
				if err != nil {
					return err
				}
				paths = append(paths, path)
			}

			rec, err := a.Service.Analyse(cmd.Context(), paths)
			if err != nil {
				return err
			}
			if !renderPDF {
				return c.output(cmd, rec)
			}

			done, out, err := a.Service.RenderAnalyse(cmd.Context(), rec.ID)
			if err != nil {
				return err
			}
			return c.output(cmd, struct {
				*store.AnalyseRecord
				PDF renderOutput `json:"pdf"`
			}{done, renderOutput{ID: done.ID, PDFPath: out.PDFPath, Pages: out.Pages}})
		},
	}
	cmd.Flags().BoolVar(&renderPDF, "render", false, "also render the analysis template to PDF")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	var (
		status string
		opts   store.ListOptions
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored fiches",
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
			page, err := a.Service.ListFiches(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return c.output(cmd, page)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only fiches in this state: pending, validated or completed")
	cmd.Flags().StringVar(&opts.Search, "search", "", "match against name, first name and file name")
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "fiches per page")
	return cmd
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored fiche",
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
			rec, err := a.Service.GetFiche(cmd.Context(), id)
			if err != nil {
				return err
			}
			return c.output(cmd, rec)
		},
	}
}

func newValidateCmd(c *cli) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate <id>",
		Short: "Store the reviewed fields of a fiche and mark it validated",
		Long: `Read the corrected fiche as JSON from --file (or standard input with
--file -), check it and mark the stored fiche validated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var fiche saisine.Fiche
			if err := readJSON(cmd, file, "fiche", &fiche); err != nil {
				return err
			}

			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			rec, err := a.Service.UpdateFiche(cmd.Context(), id, fiche)
			if err != nil {
				return err
			}
			return c.output(cmd, rec)
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "fiche JSON file, - for standard input")
	return cmd
}

func newRenderCmd(c *cli) *cobra.Command {
	var analyse bool

	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Fill the return form of a validated fiche and convert it to PDF",
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

			var out *render.Output
			if analyse {
				_, out, err = a.Service.RenderAnalyse(cmd.Context(), id)
			} else {
				_, out, err = a.Service.RenderFiche(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			return c.output(cmd, renderOutput{ID: id, PDFPath: out.PDFPath, Pages: out.Pages})
		},
	}
	cmd.Flags().BoolVar(&analyse, "analyse", false, "id is an analysis instead of a fiche")
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored fiche",
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
			if err := a.Service.DeleteFiche(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "fiche %d deleted\n", id)
			return nil
		},
	}
}

func newCatalogCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the request catalog in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(cmd); err != nil {
				return err
			}
			m, err := c.cfg.Matcher()
			if err != nil {
				return err
			}
			return c.output(cmd, map[string]any{"options": m.Catalog().Entries()})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "saisine %s\n", version)
			fmt.Fprintf(w, "  Go:     %s\n", runtime.Version())
			fmt.Fprintf(w, "  Commit: %s\n", gitCommit)
			fmt.Fprintf(w, "  Date:   %s\n", buildTime)
		},
	}
}
