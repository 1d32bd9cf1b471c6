package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

func completionBody(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []any{
			map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	})
	return body
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"message":"` + message + `","type":"error"}}`))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL + "/v1/",
		Model:      "test-model",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		HTTPClient: srv.Client(),
	}, nil)
}

func TestClient_ExtractFiche(t *testing.T) {
	var request map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &request))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completionBody("```json\n{\"nom\":\"DUPONT\",\"prenom\":\"Léa\",\"demandes\":[\"PEDAGOGIE\"]}\n```"))
	})

	f, err := client.ExtractFiche(context.Background(), "Nom : DUPONT\nPrénom : Léa", SourceDOCX)
	require.NoError(t, err)

	assert.Equal(t, "DUPONT", f.Nom)
	assert.Equal(t, "Léa", f.Prenom)
	assert.Equal(t, []string{"PEDAGOGIE"}, f.Demandes)
	assert.Equal(t, "Nom : DUPONT\nPrénom : Léa", f.ContenuBrut)
	assert.Equal(t, saisine.ConfidenceAIExtracted, f.Confidence)

	assert.Equal(t, "test-model", request["model"])
	assert.EqualValues(t, 0, request["temperature"])
	assert.EqualValues(t, defaultFicheMaxTokens, request["max_tokens"])
	messages, ok := request["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].(map[string]any)["content"], "Nom : DUPONT")
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeError(w, http.StatusServiceUnavailable, "overloaded")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completionBody(`{"nomEnfant":"DUPONT","motif":"Comportement"}`))
	})

	a, err := client.ExtractAnalyse(context.Background(), []SourceDocument{{Name: "a.docx", Text: "texte"}})
	require.NoError(t, err)
	assert.Equal(t, "DUPONT", a.NomEnfant)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusInternalServerError, "boom")
	})

	_, err := client.ExtractFiche(context.Background(), "texte", SourcePDF)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusUnauthorized, "invalid key")
	})

	_, err := client.ExtractFiche(context.Background(), "texte", SourceDOCX)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, apiErr.Temporary())
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_InvalidAnswer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completionBody("Je ne peux pas lire ce document."))
	})

	_, err := client.ExtractFiche(context.Background(), "texte", SourceDOCX)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
}

func TestClient_InputChecks(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1/"}, nil)

	_, err := client.ExtractFiche(context.Background(), "  ", SourceDOCX)
	assert.Error(t, err)

	_, err = client.ExtractAnalyse(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoDocuments)

	assert.Equal(t, defaultModel, client.Model())
}

func TestAPIError_Temporary(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: http.StatusTooManyRequests}).Temporary())
	assert.True(t, (&APIError{StatusCode: http.StatusBadGateway}).Temporary())
	assert.False(t, (&APIError{StatusCode: http.StatusBadRequest}).Temporary())
	assert.Equal(t, "ai: endpoint error (status 404)", (&APIError{StatusCode: 404}).Error())
}
