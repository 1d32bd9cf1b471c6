package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/document"
	"github.com/julienmessagingme/educnat/internal/saisine"
)

// ErrNoTemplate is returned when the template for a document kind is not configured
var ErrNoTemplate = errors.New("render: template not configured")

// Config holds renderer settings
type Config struct {
	FicheTemplate   string // return-form .docx template
	AnalyseTemplate string // analysis .docx template
	OutputDir       string
}

// Output describes a rendered document
type Output struct {
	PDFPath string `json:"pdfPath"`
	Pages   int    `json:"pages"`
}

// Renderer fills templates and converts them to PDF
type Renderer struct {
	cfg       Config
	converter *Converter
	logger    *zap.Logger
}

// NewRenderer creates a renderer
func NewRenderer(cfg Config, converter *Converter, logger *zap.Logger) *Renderer {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{cfg: cfg, converter: converter, logger: logger}
}

// RenderFiche renders the return form of fiche id to <output>/fiche_<id>.pdf
func (r *Renderer) RenderFiche(ctx context.Context, id int64, f saisine.Fiche, p *saisine.Proposition, catalog *saisine.Catalog) (*Output, error) {
	return r.render(ctx, r.cfg.FicheTemplate, fmt.Sprintf("fiche_%d", id), FicheValues(f, p, catalog))
}

// RenderAnalyse renders analysis id to <output>/analyse_<id>.pdf
func (r *Renderer) RenderAnalyse(ctx context.Context, id int64, a saisine.Analyse) (*Output, error) {
	return r.render(ctx, r.cfg.AnalyseTemplate, fmt.Sprintf("analyse_%d", id), AnalyseValues(a))
}

func (r *Renderer) render(ctx context.Context, templatePath, name string, values map[string]string) (*Output, error) {
	if templatePath == "" {
		return nil, ErrNoTemplate
	}
	template, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	filled, err := FillTemplate(template, values)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	docxPath := filepath.Join(r.cfg.OutputDir, fmt.Sprintf("%s_%d.docx", name, time.Now().UnixNano()))
	if err := os.WriteFile(docxPath, filled, 0644); err != nil {
		return nil, fmt.Errorf("failed to write filled template: %w", err)
	}
	defer os.Remove(docxPath)

	pdfPath := filepath.Join(r.cfg.OutputDir, name+".pdf")
	if err := r.converter.ToPDF(ctx, docxPath, pdfPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered PDF: %w", err)
	}
	info, err := document.InspectPDF(data)
	if err != nil {
		return nil, fmt.Errorf("%w: rendered PDF is invalid: %v", ErrConversion, err)
	}

	r.logger.Info("document rendered",
		zap.String("output", pdfPath),
		zap.Int("pages", info.Pages))
	return &Output{PDFPath: pdfPath, Pages: info.Pages}, nil
}
