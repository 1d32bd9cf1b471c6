package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultConvertTimeout bounds one LibreOffice conversion
const DefaultConvertTimeout = 30 * time.Second

// ErrConversion is returned when LibreOffice does not produce a PDF
var ErrConversion = errors.New("render: conversion failed")

// Converter turns Word documents into PDF with LibreOffice in headless mode
type Converter struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewConverter creates a converter running binary (soffice by default)
func NewConverter(binary string, timeout time.Duration, logger *zap.Logger) *Converter {
	if binary == "" {
		binary = "soffice"
	}
	if timeout <= 0 {
		timeout = DefaultConvertTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{binary: binary, timeout: timeout, logger: logger}
}

// Available checks that the LibreOffice binary can be found
func (c *Converter) Available() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", c.binary, err)
	}
	return nil
}

// ToPDF converts docxPath and writes the result to pdfPath. LibreOffice
// names its output after the input, so it runs in a scratch directory and
// the PDF is moved into place.
func (c *Converter) ToPDF(ctx context.Context, docxPath, pdfPath string) error {
	if _, err := os.Stat(docxPath); err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}

	outDir := filepath.Dir(pdfPath)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	scratch, err := os.MkdirTemp(outDir, ".convert-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.binary,
		"--headless",
		"--convert-to", "pdf",
		"--outdir", scratch,
		docxPath,
	)
	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: timed out after %s", ErrConversion, c.timeout)
	}
	if err != nil {
		return fmt.Errorf("%w: %v\nOutput: %s", ErrConversion, err, strings.TrimSpace(string(output)))
	}

	generated := filepath.Join(scratch, strings.TrimSuffix(filepath.Base(docxPath), filepath.Ext(docxPath))+".pdf")
	if _, err := os.Stat(generated); err != nil {
		return fmt.Errorf("%w: no PDF produced", ErrConversion)
	}
	if err := os.Rename(generated, pdfPath); err != nil {
		return fmt.Errorf("failed to move PDF into place: %w", err)
	}

	c.logger.Debug("document converted",
		zap.String("source", docxPath),
		zap.String("output", pdfPath),
		zap.Duration("duration", time.Since(start)))
	return nil
}
