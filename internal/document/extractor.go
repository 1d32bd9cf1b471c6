// Package document turns uploaded referral documents into marked text and
// rule-based detections.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

// DefaultMaxTextSize caps the text kept from a single document
const DefaultMaxTextSize = 10 * 1024 * 1024

// Result is the outcome of reading one document
type Result struct {
	Name        string            `json:"name"`
	Format      Format            `json:"format"`
	Size        int64             `json:"size"`
	MarkedText  string            `json:"markedText"`
	PlainText   string            `json:"plainText"`
	Highlighted bool              `json:"highlighted"`
	Degraded    bool              `json:"degraded"`
	Pages       int               `json:"pages,omitempty"`
	Detection   saisine.Detection `json:"detection"`
}

// Extractor reads documents and runs the rule-based detectors over them.
// It is safe for concurrent use.
type Extractor struct {
	maxFileSize int64
	maxTextSize int
	logger      *zap.Logger

	mu      sync.RWMutex
	matcher *saisine.Matcher
}

// NewExtractor creates an extractor enforcing maxFileSize
func NewExtractor(maxFileSize int64, matcher *saisine.Matcher, logger *zap.Logger) *Extractor {
	if matcher == nil {
		matcher = saisine.NewMatcher(saisine.DefaultCatalog())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		maxFileSize: maxFileSize,
		maxTextSize: DefaultMaxTextSize,
		logger:      logger,
		matcher:     matcher,
	}
}

// Matcher returns the option matcher currently in use
func (e *Extractor) Matcher() *saisine.Matcher {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.matcher
}

// SetMatcher swaps the option matcher, e.g. after a catalog reload
func (e *Extractor) SetMatcher(m *saisine.Matcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matcher = m
}

// MaxFileSize returns the size limit in bytes
func (e *Extractor) MaxFileSize() int64 {
	return e.maxFileSize
}

// ExtractFile reads the document at path
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if info.Size() > e.maxFileSize {
		return nil, e.tooLarge(info.Size(), path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return e.Extract(ctx, filepath.Base(path), data)
}

// Extract reads a document held in memory. name is used for format
// detection and error reporting.
//
// Word documents go through the highlight path; when their body cannot be
// read that way the degraded plain-text path is used instead and the result
// is flagged Degraded. Degraded documents and PDFs get no rule-based
// detection: their requests and origin are left to the model.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if int64(len(data)) > e.maxFileSize {
		return nil, e.tooLarge(int64(len(data)), name)
	}

	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}

	res := &Result{Name: name, Format: format, Size: int64(len(data))}

	switch format {
	case FormatDOCX:
		if err := e.readDocx(res, data); err != nil {
			return nil, withPath(err, name)
		}
	case FormatPDF:
		text, pages, err := pdfText(data, e.maxTextSize)
		res.Pages = pages
		if err != nil {
			return nil, withPath(err, name)
		}
		res.MarkedText = text
	case FormatText:
		res.MarkedText = string(data)
	}

	res.PlainText = saisine.StripMarkers(res.MarkedText)
	res.Highlighted = saisine.HasSpans(res.MarkedText)
	if detectable(res) {
		res.Detection = saisine.Detect(res.MarkedText, e.Matcher())
	}

	e.logger.Info("document extracted",
		zap.String("name", name),
		zap.String("format", string(format)),
		zap.Int("length", len(res.PlainText)),
		zap.Bool("highlighted", res.Highlighted),
		zap.Bool("degraded", res.Degraded),
		zap.Strings("options", res.Detection.Options),
		zap.String("origin", res.Detection.Origin.Type),
	)
	return res, nil
}

func (e *Extractor) readDocx(res *Result, data []byte) error {
	marked, err := docxMarkedText(data)
	if err == nil {
		res.MarkedText = marked
		return nil
	}

	var se *saisine.Error
	if !errors.As(err, &se) || !se.Kind.Degradable() {
		return err
	}

	e.logger.Warn("highlight path unavailable, falling back to plain text",
		zap.String("name", res.Name),
		zap.Error(err),
	)
	plain, err := docxPlainText(data)
	if err != nil {
		return err
	}
	res.MarkedText = plain
	res.Degraded = true
	return nil
}

// detectable reports whether the text kept the layout the detectors rely on
func detectable(res *Result) bool {
	return !res.Degraded && res.Format != FormatPDF
}

func (e *Extractor) tooLarge(size int64, name string) error {
	return saisine.NewError(saisine.KindFileTooLarge,
		fmt.Sprintf("file too large: %d bytes (max: %d bytes)", size, e.maxFileSize)).WithPath(name)
}

// withPath annotates extraction errors with the document name
func withPath(err error, name string) error {
	var se *saisine.Error
	if errors.As(err, &se) && se.Path == "" {
		return se.WithPath(name)
	}
	return err
}
