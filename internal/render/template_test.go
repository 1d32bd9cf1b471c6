package render

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`

func wordDocument(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
}

func buildTemplate(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readPart(t *testing.T, pkg []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func TestFillTemplate(t *testing.T) {
	body := `<w:p><w:r><w:t>Nom : {nom}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t xml:space="preserve">Prénom : {pre</w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>nom}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{demandes}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{d1}</w:t></w:r><w:r><w:tab/><w:t>Sensibilisation &amp; formation</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{inconnu}fin</w:t></w:r></w:p>`

	template := buildTemplate(t, map[string]string{
		"[Content_Types].xml": contentTypes,
		"word/document.xml":   wordDocument(body),
		"word/header1.xml":    `<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p><w:r><w:t>Fiche {nom}</w:t></w:r></w:p></w:hdr>`,
		"word/styles.xml":     `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:t>{nom}</w:t></w:styles>`,
	})

	filled, err := FillTemplate(template, map[string]string{
		"nom":      "DUPONT & FILS",
		"prenom":   "Léa",
		"demandes": "• Posture professionnelle\n• Gestes professionnels",
		"d1":       "X",
	})
	require.NoError(t, err)

	doc := readPart(t, filled, "word/document.xml")
	assert.Contains(t, doc, `<w:t xml:space="preserve">Nom : DUPONT &amp; FILS</w:t>`)
	assert.Contains(t, doc, `<w:t xml:space="preserve">Prénom : Léa</w:t>`)
	assert.Contains(t, doc, `<w:rPr><w:b/></w:rPr><w:t xml:space="preserve"></w:t>`, "tail of a split tag is emptied")
	assert.Contains(t, doc, `<w:t xml:space="preserve">• Posture professionnelle</w:t><w:br/><w:t xml:space="preserve">• Gestes professionnels</w:t>`)
	assert.Contains(t, doc, `<w:t xml:space="preserve">X</w:t></w:r><w:r><w:tab/><w:t>Sensibilisation &amp; formation</w:t>`)
	assert.Contains(t, doc, `<w:t xml:space="preserve">fin</w:t>`)
	assert.NotContains(t, doc, "{")

	assert.Contains(t, readPart(t, filled, "word/header1.xml"), "Fiche DUPONT &amp; FILS")
	assert.Contains(t, readPart(t, filled, "word/styles.xml"), "{nom}", "only document, header and footer parts are filled")
	assert.Equal(t, contentTypes, readPart(t, filled, "[Content_Types].xml"))
}

func TestFillTemplate_NoPlaceholders(t *testing.T) {
	doc := wordDocument(`<w:p><w:r><w:t>Rien à remplir</w:t></w:r></w:p>`)
	filled, err := FillTemplate(buildTemplate(t, map[string]string{"word/document.xml": doc}), nil)
	require.NoError(t, err)
	assert.Equal(t, doc, readPart(t, filled, "word/document.xml"))
}

func TestFillTemplate_TagAcrossThreeRuns(t *testing.T) {
	body := `<w:p><w:r><w:t>{</w:t></w:r><w:r><w:t>classe</w:t></w:r><w:r><w:t>} suite</w:t></w:r></w:p>`
	filled, err := FillTemplate(buildTemplate(t, map[string]string{"word/document.xml": wordDocument(body)}),
		map[string]string{"classe": "CM2"})
	require.NoError(t, err)

	doc := readPart(t, filled, "word/document.xml")
	assert.Contains(t, doc, `<w:r><w:t xml:space="preserve">CM2</w:t></w:r><w:r><w:t xml:space="preserve"></w:t></w:r><w:r><w:t xml:space="preserve"> suite</w:t></w:r>`)
}

func TestFillTemplate_Invalid(t *testing.T) {
	_, err := FillTemplate([]byte("not a zip"), nil)
	assert.True(t, errors.Is(err, ErrTemplate))

	_, err = FillTemplate(buildTemplate(t, map[string]string{"word/styles.xml": "<x/>"}), nil)
	assert.True(t, errors.Is(err, ErrTemplate))
}
