package mcp

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julienmessagingme/educnat/internal/ai"
	"github.com/julienmessagingme/educnat/internal/config"
	"github.com/julienmessagingme/educnat/internal/document"
	"github.com/julienmessagingme/educnat/internal/pipeline"
	"github.com/julienmessagingme/educnat/internal/saisine"
	"github.com/julienmessagingme/educnat/internal/security"
	"github.com/julienmessagingme/educnat/internal/store"
)

type stubAI struct{}

func (stubAI) ExtractFiche(_ context.Context, text, _ string) (saisine.Fiche, error) {
	return saisine.Fiche{
		Nom:         "DUPONT",
		Prenom:      "Léa",
		Classe:      "CE2",
		DateDemande: "12/03/2025",
		ContenuBrut: text,
		Confidence:  saisine.ConfidenceAIExtracted,
	}, nil
}

func (stubAI) ExtractAnalyse(_ context.Context, docs []ai.SourceDocument) (saisine.Analyse, error) {
	return saisine.Analyse{NomEnfant: "DUPONT", Motif: "Comportement en classe"}, nil
}

func referralDocx(t *testing.T) []byte {
	t.Helper()
	para := func(text string) string {
		return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
	}
	body := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		para("FICHE DE SAISINE PRD") +
		para("Nom : DUPONT") +
		`<w:p><w:r><w:rPr><w:highlight w:val="yellow"/></w:rPr><w:t>Posture professionnelle</w:t></w:r></w:p>` +
		para("L'IEN : Mme Martin") +
		para("Date de la demande : 12/03/2025") +
		`</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Mode:        config.ModeStdio,
		Host:        "127.0.0.1",
		Port:        0,
		Directory:   dir,
		LogLevel:    "info",
		MaxFileSize: 1024 * 1024,
		Version:     "1.0.0",
		ServerName:  "test-server",
	}
}

func newTestServer(t *testing.T, withAI bool) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	paths, err := security.NewPathValidator(dir)
	require.NoError(t, err)

	opts := pipeline.Options{
		Extractor: document.NewExtractor(1024*1024, nil, nil),
		Store:     store.NewMemory(),
		Paths:     paths,
	}
	if withAI {
		opts.AI = stubAI{}
	}
	service, err := pipeline.NewService(opts)
	require.NoError(t, err)

	srv, err := NewServer(testConfig(dir), service, nil)
	require.NoError(t, err)
	return srv, dir
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}
	return ""
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(testConfig(t.TempDir()), nil, nil)
	assert.Error(t, err)

	srv, _ := newTestServer(t, true)
	assert.NotNil(t, srv.mcpServer)
	assert.NotNil(t, srv.service)
}

func TestServer_HandleDetectFile(t *testing.T) {
	srv, dir := newTestServer(t, false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "saisine.docx"), referralDocx(t), 0o644))

	result, err := srv.handleDetectFile(context.Background(), callRequest(map[string]any{"path": "saisine.docx"}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	text := extractTextFromResult(result)
	assert.Contains(t, text, "Format: docx")
	assert.Contains(t, text, "Highlighted passages: true")
	assert.Contains(t, text, "• Posture professionnelle (POSTURE_PRO)")
	assert.Contains(t, text, "IEN: Mme Martin")
	assert.NotContains(t, text, "WARNING")
}

func TestServer_HandleDetectFile_Errors(t *testing.T) {
	srv, dir := newTestServer(t, false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.doc"), []byte("x"), 0o644))

	result, err := srv.handleDetectFile(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleDetectFile(context.Background(), callRequest(map[string]any{"path": "old.doc"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "UNSUPPORTED_FORMAT")

	result, err = srv.handleDetectFile(context.Background(), callRequest(map[string]any{"path": "/etc/passwd"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_ReviewWorkflow(t *testing.T) {
	srv, dir := newTestServer(t, true)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "saisine.docx"), referralDocx(t), 0o644))

	result, err := srv.handleExtractFile(ctx, callRequest(map[string]any{"path": "saisine.docx"}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))
	text := extractTextFromResult(result)
	assert.Contains(t, text, "Fiche 1 created from saisine.docx (status: pending)")
	assert.Contains(t, text, "Origine: IEN")
	assert.Contains(t, text, "Date de la demande: 12/03/2025")

	result, err = srv.handleGetFiche(ctx, callRequest(map[string]any{"id": float64(1)}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "Fiche 1 [pending]")

	result, err = srv.handleUpdateFiche(ctx, callRequest(map[string]any{
		"id": float64(1),
		"fiche": map[string]any{
			"nom":      "DUPONT",
			"prenom":   "Léa",
			"classe":   "CM1",
			"demandes": []any{"POSTURE_PRO", "GESTES_PRO"},
		},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))
	text = extractTextFromResult(result)
	assert.Contains(t, text, "Fiche 1 validated")
	assert.Contains(t, text, "Classe: CM1")
	assert.Contains(t, text, "• Gestes professionnels (GESTES_PRO)")

	result, err = srv.handleUpdateFiche(ctx, callRequest(map[string]any{
		"id":    float64(1),
		"fiche": `{"nom": "", "prenom": "Léa", "demandes": ["INCONNU"]}`,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "invalid fiche")

	result, err = srv.handleListFiches(ctx, callRequest(map[string]any{"status": "validated"}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "#1 [validated] DUPONT Léa")

	result, err = srv.handleListFiches(ctx, callRequest(map[string]any{"status": "pending"}))
	require.NoError(t, err)
	assert.Equal(t, "No fiches found", extractTextFromResult(result))

	result, err = srv.handleListFiches(ctx, callRequest(map[string]any{"status": "archived"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleRenderFiche(ctx, callRequest(map[string]any{"id": float64(1)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "renderer not configured")
}

func TestServer_HandleExtractFile_Upload(t *testing.T) {
	srv, dir := newTestServer(t, true)

	result, err := srv.handleExtractFile(context.Background(), callRequest(map[string]any{
		"filename":       "Fiche Léa.docx",
		"content_base64": base64.StdEncoding.EncodeToString(referralDocx(t)),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))
	assert.Contains(t, extractTextFromResult(result), "created from Fiche Léa.docx")

	entries, err := os.ReadDir(filepath.Join(dir, pipeline.UploadDir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "Fiche_L_a-"))
}

func TestServer_HandleExtractFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		withAI  bool
		args    map[string]any
		wantMsg string
	}{
		{name: "no input", withAI: true, args: map[string]any{}, wantMsg: "either path"},
		{name: "content without name", withAI: true, args: map[string]any{"content_base64": "UEs="}, wantMsg: "filename is required"},
		{name: "bad base64", withAI: true, args: map[string]any{"filename": "a.docx", "content_base64": "%%%"}, wantMsg: "invalid base64"},
		{name: "rejected upload", withAI: true, args: map[string]any{"filename": "a.odt", "content_base64": "UEs="}, wantMsg: "UNSUPPORTED_FORMAT"},
		{name: "no model", withAI: false, args: map[string]any{"path": "saisine.docx"}, wantMsg: "AI extractor not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, dir := newTestServer(t, tt.withAI)
			require.NoError(t, os.WriteFile(filepath.Join(dir, "saisine.docx"), referralDocx(t), 0o644))

			result, err := srv.handleExtractFile(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, extractTextFromResult(result), tt.wantMsg)
		})
	}
}

func TestServer_HandleGetFiche_Errors(t *testing.T) {
	srv, _ := newTestServer(t, true)

	for _, args := range []map[string]any{
		{},
		{"id": float64(0)},
		{"id": 1.5},
	} {
		result, err := srv.handleGetFiche(context.Background(), callRequest(args))
		require.NoError(t, err)
		assert.True(t, result.IsError)
	}

	result, err := srv.handleGetFiche(context.Background(), callRequest(map[string]any{"id": float64(42)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "fiche not found", extractTextFromResult(result))
}

func TestServer_HandleAnalyseFiles(t *testing.T) {
	srv, dir := newTestServer(t, true)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "saisine.docx"), referralDocx(t), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bilan.docx"), referralDocx(t), 0o644))

	result, err := srv.handleAnalyseFiles(context.Background(), callRequest(map[string]any{
		"paths": []any{"saisine.docx", "bilan.docx"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))
	text := extractTextFromResult(result)
	assert.Contains(t, text, "from 2 document(s): saisine.docx, bilan.docx")
	assert.Contains(t, text, "Motif: Comportement en classe")
	assert.Contains(t, text, "Historique: -")

	result, err = srv.handleAnalyseFiles(context.Background(), callRequest(map[string]any{"paths": []any{1, 2}}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleAnalyseFiles(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_AnalyseReview(t *testing.T) {
	srv, dir := newTestServer(t, true)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bilan.docx"), referralDocx(t), 0o644))

	result, err := srv.handleAnalyseFiles(ctx, callRequest(map[string]any{"paths": []any{"bilan.docx"}}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	result, err = srv.handleGetAnalyse(ctx, callRequest(map[string]any{"id": float64(1)}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "Analyse 1 [pending]")

	result, err = srv.handleUpdateAnalyse(ctx, callRequest(map[string]any{
		"id": float64(1),
		"analyse": map[string]any{
			"nomEnfant":    "DUPONT",
			"prenomEnfant": "Léa",
			"motif":        "Refus scolaire",
		},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))
	text := extractTextFromResult(result)
	assert.Contains(t, text, "Analyse 1 validated")
	assert.Contains(t, text, "Motif: Refus scolaire")

	result, err = srv.handleUpdateAnalyse(ctx, callRequest(map[string]any{
		"id":      float64(1),
		"analyse": `{"classe": "` + strings.Repeat("x", 60) + `"}`,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "invalid analyse")

	result, err = srv.handleListAnalyses(ctx, callRequest(map[string]any{"status": "validated"}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "#1 [validated] DUPONT Léa, 1 document(s)")

	result, err = srv.handleListAnalyses(ctx, callRequest(map[string]any{"search": "martin"}))
	require.NoError(t, err)
	assert.Equal(t, "No analyses found", extractTextFromResult(result))

	result, err = srv.handleRenderAnalyse(ctx, callRequest(map[string]any{"id": float64(1)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "renderer not configured")

	result, err = srv.handleDeleteAnalyse(ctx, callRequest(map[string]any{"id": float64(1)}))
	require.NoError(t, err)
	assert.Equal(t, "Analyse 1 deleted", extractTextFromResult(result))

	result, err = srv.handleGetAnalyse(ctx, callRequest(map[string]any{"id": float64(1)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "analyse not found", extractTextFromResult(result))
}

func TestServer_Propositions(t *testing.T) {
	srv, dir := newTestServer(t, true)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "saisine.docx"), referralDocx(t), 0o644))

	result, err := srv.handleExtractFile(ctx, callRequest(map[string]any{"path": "saisine.docx"}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))

	result, err = srv.handleGetProposition(ctx, callRequest(map[string]any{"fiche_id": float64(1)}))
	require.NoError(t, err)
	assert.Equal(t, "proposition not found", extractTextFromResult(result))

	result, err = srv.handleSaveProposition(ctx, callRequest(map[string]any{
		"fiche_id": float64(1),
		"proposition": map[string]any{
			"temps":               1,
			"dateProposition":     "2025-03-20",
			"motifsPrincipaux":    []any{"CHOIX_5"},
			"evaluationSituation": []any{"STABILISATION_PRD"},
			"commentaire":         "Accord de la famille",
		},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractTextFromResult(result))
	text := extractTextFromResult(result)
	assert.Contains(t, text, "Proposition saved for fiche 1 (Temps 1)")
	assert.Contains(t, text, "Date: 20/03/2025")
	assert.Contains(t, text, "Après étude de la situation de Léa")
	assert.Contains(t, text, "• STABILISATION_PRD")

	result, err = srv.handleGetProposition(ctx, callRequest(map[string]any{"fiche_id": float64(1), "temps": float64(1)}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "Commentaire: Accord de la famille")

	result, err = srv.handleGetProposition(ctx, callRequest(map[string]any{"fiche_id": float64(1), "temps": float64(3)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleSaveProposition(ctx, callRequest(map[string]any{
		"fiche_id":    float64(1),
		"proposition": `{"temps": 1, "dateProposition": "demain"}`,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, extractTextFromResult(result), "invalid proposition")

	result, err = srv.handleSaveProposition(ctx, callRequest(map[string]any{
		"fiche_id":    float64(7),
		"proposition": map[string]any{"temps": 1, "dateProposition": "2025-03-20"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "fiche not found", extractTextFromResult(result))

	result, err = srv.handleListMotifs(ctx, callRequest(nil))
	require.NoError(t, err)
	text = extractTextFromResult(result)
	assert.Contains(t, text, "11 standard answers")
	assert.Contains(t, text, "CHOIX_11: ")
}

func TestServer_HandleListDocuments(t *testing.T) {
	srv, dir := newTestServer(t, false)

	result, err := srv.handleListDocuments(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.Contains(t, extractTextFromResult(result), "No documents found")

	for _, name := range []string{"saisine-dupont.docx", "bilan.pdf", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("content"), 0o644))
	}

	result, err = srv.handleListDocuments(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	text := extractTextFromResult(result)
	assert.Contains(t, text, "Found 2 document(s)")
	assert.NotContains(t, text, "notes.txt")

	result, err = srv.handleListDocuments(context.Background(), callRequest(map[string]any{"query": "dupont"}))
	require.NoError(t, err)
	text = extractTextFromResult(result)
	assert.Contains(t, text, "Found 1 document(s)")
	assert.Contains(t, text, "Search query: dupont")
}

func TestServer_HandleServerInfo(t *testing.T) {
	srv, dir := newTestServer(t, false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "saisine.docx"), referralDocx(t), 0o644))

	result, err := srv.handleServerInfo(context.Background(), callRequest(nil))
	require.NoError(t, err)
	text := extractTextFromResult(result)

	assert.Contains(t, text, "test-server v1.0.0")
	assert.Contains(t, text, "AI extraction: not configured")
	assert.Contains(t, text, "1. saisine.docx")
	assert.Contains(t, text, "d1 SENSIBILISATION")
	assert.Contains(t, text, "d11 PARCOURS_SCOLAIRE")
	assert.Contains(t, text, "saisine_render_fiche")
	assert.Contains(t, text, "saisine_save_proposition")
	assert.Contains(t, text, "saisine_update_analyse")
}

func TestServer_Run(t *testing.T) {
	srv, _ := newTestServer(t, false)

	srv.config.Mode = "invalid"
	err := srv.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")

	srv.config.Mode = config.ModeServer
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, srv.Run(ctx))
}
