// Package ai extracts referral fields from document text with a language
// model behind an OpenAI-compatible chat endpoint.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

// Source types passed to ExtractFiche
const (
	SourceDOCX = "docx"
	SourcePDF  = "pdf"
)

// SourceDocument is one input of an analysis
type SourceDocument struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Extractor produces structured records from document text
type Extractor interface {
	// ExtractFiche reads the fields of one referral form. Missing values
	// are left empty.
	ExtractFiche(ctx context.Context, text, sourceType string) (saisine.Fiche, error)
	// ExtractAnalyse synthesises several documents about one pupil.
	ExtractAnalyse(ctx context.Context, docs []SourceDocument) (saisine.Analyse, error)
}

var (
	// ErrEmptyResponse is returned when the model answers with no choice
	ErrEmptyResponse = errors.New("ai: empty response")
	// ErrInvalidResponse is returned when the answer is not the expected JSON
	ErrInvalidResponse = errors.New("ai: invalid response")
	// ErrNoDocuments is returned by ExtractAnalyse when given nothing to read
	ErrNoDocuments = errors.New("ai: no documents")
)

// APIError is a non-2xx answer from the model endpoint
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ai: endpoint error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ai: endpoint error (status %d)", e.StatusCode)
}

// Temporary reports whether the request may succeed if sent again
func (e *APIError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode >= 500:
		return true
	}
	return false
}
