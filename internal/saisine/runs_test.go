package saisine

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func body(paragraphs ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		strings.Join(paragraphs, "") +
		`<w:sectPr/></w:body></w:document>`
}

func para(runs ...string) string {
	return "<w:p>" + strings.Join(runs, "") + "</w:p>"
}

func textRun(text string) string {
	return `<w:r><w:t xml:space="preserve">` + text + `</w:t></w:r>`
}

func styledRun(rPr, text string) string {
	return `<w:r><w:rPr>` + rPr + `</w:rPr><w:t xml:space="preserve">` + text + `</w:t></w:r>`
}

func TestExtractRuns_ParagraphsAndHighlight(t *testing.T) {
	xml := body(
		para(textRun("Le PRD propose")),
		para(styledRun(`<w:highlight w:val="yellow"/>`, "Posture professionnelle")),
	)

	rs, err := ExtractRuns(xml)
	require.NoError(t, err)

	assert.Equal(t, []Run{
		{Text: "Le PRD propose"},
		{Text: LineBreak},
		{Text: "Posture professionnelle", Highlighted: true},
	}, rs.Runs)
	assert.Empty(t, rs.ShadedText)
}

func TestExtractRuns_HighlightMarkers(t *testing.T) {
	tests := []struct {
		name        string
		rPr         string
		highlighted bool
	}{
		{name: "highlight_colour", rPr: `<w:highlight w:val="green"/>`, highlighted: true},
		{name: "highlight_none", rPr: `<w:highlight w:val="none"/>`, highlighted: false},
		{name: "shading_colour", rPr: `<w:shd w:val="clear" w:color="auto" w:fill="FFFF00"/>`, highlighted: true},
		{name: "shading_auto", rPr: `<w:shd w:val="clear" w:color="auto" w:fill="auto"/>`, highlighted: false},
		{name: "shading_white", rPr: `<w:shd w:val="clear" w:color="auto" w:fill="FFFFFF"/>`, highlighted: false},
		{name: "shading_white_lower", rPr: `<w:shd w:val="clear" w:fill="ffffff"/>`, highlighted: false},
		{name: "bold_only", rPr: `<w:b/>`, highlighted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := ExtractRuns(body(para(styledRun(tt.rPr, "Gestes professionnels"))))
			require.NoError(t, err)
			require.Len(t, rs.Runs, 1)
			assert.Equal(t, tt.highlighted, rs.Runs[0].Highlighted)
		})
	}
}

func TestExtractRuns_RunWithoutTextBecomesSpace(t *testing.T) {
	xml := body(para(
		textRun("Nom"),
		`<w:r><w:tab/></w:r>`,
		textRun("DUPONT"),
	))

	rs, err := ExtractRuns(xml)
	require.NoError(t, err)

	assert.Equal(t, []Run{{Text: "Nom"}, {Text: " "}, {Text: "DUPONT"}}, rs.Runs)
}

func TestExtractRuns_EmptyTextNodeBecomesSpace(t *testing.T) {
	xml := body(para(
		textRun("Nom"),
		`<w:r><w:rPr><w:highlight w:val="yellow"/></w:rPr><w:t/></w:r>`,
		`<w:r><w:t xml:space="preserve"></w:t></w:r>`,
		textRun("DUPONT"),
	))

	rs, err := ExtractRuns(xml)
	require.NoError(t, err)

	assert.Equal(t, []Run{{Text: "Nom"}, {Text: " "}, {Text: " "}, {Text: "DUPONT"}}, rs.Runs)
}

func TestExtractRuns_TabsAndBreaksInsideText(t *testing.T) {
	xml := body(para(
		`<w:r><w:t>Nom</w:t><w:tab/><w:t>DUPONT</w:t></w:r>`,
		`<w:r><w:rPr><w:highlight w:val="yellow"/></w:rPr><w:t>Posture</w:t><w:br/><w:t>professionnelle</w:t></w:r>`,
		`<w:r><w:br/></w:r>`,
	))

	rs, err := ExtractRuns(xml)
	require.NoError(t, err)

	assert.Equal(t, []Run{
		{Text: "Nom\tDUPONT"},
		{Text: "Posture\nprofessionnelle", Highlighted: true},
		{Text: " "},
	}, rs.Runs)
	assert.False(t, rs.Runs[1].IsLineBreak())
}

func TestExtractRuns_MultipleTextNodesConcatenate(t *testing.T) {
	xml := body(para(`<w:r><w:rPr><w:highlight w:val="cyan"/></w:rPr><w:t>Posture </w:t><w:t>professionnelle</w:t></w:r>`))

	rs, err := ExtractRuns(xml)
	require.NoError(t, err)

	require.Len(t, rs.Runs, 1)
	assert.Equal(t, Run{Text: "Posture professionnelle", Highlighted: true}, rs.Runs[0])
}

func TestExtractRuns_ParagraphShading(t *testing.T) {
	shaded := `<w:p><w:pPr><w:shd w:val="clear" w:color="auto" w:fill="D9D9D9"/></w:pPr>` +
		textRun("Gestes professionnels") + `</w:p>`
	white := `<w:p><w:pPr><w:shd w:val="clear" w:color="auto" w:fill="FFFFFF"/></w:pPr>` +
		textRun("Pédagogie auprès des élèves") + `</w:p>`

	rs, err := ExtractRuns(body(shaded, white))
	require.NoError(t, err)

	assert.Contains(t, rs.ShadedText, "Gestes professionnels")
	assert.NotContains(t, rs.ShadedText, "Pédagogie auprès des élèves")

	require.Len(t, rs.Runs, 3)
	assert.False(t, rs.Runs[0].Highlighted)
	assert.True(t, rs.Effective(0))
	assert.False(t, rs.Effective(1))
	assert.False(t, rs.Effective(2))
}

func TestExtractRuns_ParagraphMarkShadingIgnored(t *testing.T) {
	xml := body(`<w:p><w:pPr><w:rPr><w:shd w:val="clear" w:fill="FFFF00"/></w:rPr></w:pPr>` +
		textRun("Posture professionnelle") + `</w:p>`)

	rs, err := ExtractRuns(xml)
	require.NoError(t, err)

	assert.Empty(t, rs.ShadedText)
	assert.False(t, rs.Effective(0))
}

func TestExtractRuns_LeadingEmptyParagraphs(t *testing.T) {
	xml := body(`<w:p/>`, `<w:p><w:pPr/></w:p>`, para(textRun("Fiche de saisine")), `<w:p/>`, para(textRun("PRD")))

	rs, err := ExtractRuns(xml)
	require.NoError(t, err)

	assert.Equal(t, []Run{
		{Text: "Fiche de saisine"},
		{Text: LineBreak},
		{Text: LineBreak},
		{Text: "PRD"},
	}, rs.Runs)
}

func TestExtractRuns_DecodesEntities(t *testing.T) {
	rs, err := ExtractRuns(body(para(textRun("L&apos;IEN : Mme Martin &amp; M. Petit"))))
	require.NoError(t, err)

	require.Len(t, rs.Runs, 1)
	assert.Equal(t, "L'IEN : Mme Martin & M. Petit", rs.Runs[0].Text)
}

func TestExtractRuns_IgnoresForeignTextNodes(t *testing.T) {
	xml := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:m="http://schemas.openxmlformats.org/officeDocument/2006/math"><w:body>` +
		`<w:p><w:r><m:t>x+1</m:t></w:r>` + textRun("Classe : CM2") + `</w:p></w:body></w:document>`

	rs, err := ExtractRuns(xml)
	require.NoError(t, err)

	assert.Equal(t, []Run{{Text: " "}, {Text: "Classe : CM2"}}, rs.Runs)
}

func TestExtractRuns_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{name: "empty", xml: ""},
		{name: "whitespace", xml: "   \n"},
		{name: "truncated", xml: `<w:document><w:body><w:p><w:r><w:t>Nom</w:t>`},
		{name: "mismatched", xml: `<w:document><w:body><w:p></w:r></w:body></w:document>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := ExtractRuns(tt.xml)
			assert.Nil(t, rs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrContentUnavailable))
			assert.False(t, errors.Is(err, ErrUnsupportedFormat))
		})
	}
}
