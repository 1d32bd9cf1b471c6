package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

func TestFichePrompt(t *testing.T) {
	codes := saisine.DefaultCatalog().Codes()

	docx := FichePrompt("Nom : DUPONT", SourceDOCX, codes)
	assert.Contains(t, docx, saisine.MarkStart)
	assert.Contains(t, docx, "---\nNom : DUPONT\n---")
	assert.Contains(t, docx, "POSTURE_PRO, GESTES_PRO")
	assert.Contains(t, docx, `"dateDemande"`)

	pdf := FichePrompt("Nom : DUPONT", SourcePDF, codes)
	assert.NotContains(t, pdf, saisine.MarkStart)
}

func TestAnalysePrompt(t *testing.T) {
	docs := []SourceDocument{
		{Name: "saisine.docx", Text: "Fiche"},
		{Name: "bilan.pdf", Text: "Bilan"},
	}

	assert.Equal(t, "--- DOCUMENT 1: saisine.docx ---\nFiche\n\n--- DOCUMENT 2: bilan.pdf ---\nBilan", JoinDocuments(docs))

	prompt := AnalysePrompt(docs)
	assert.Contains(t, prompt, "Voici 2 document(s)")
	assert.Contains(t, prompt, "100 mots")
	assert.True(t, strings.HasSuffix(prompt, "Réponds uniquement avec le JSON."))
}
