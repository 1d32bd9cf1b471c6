// Package render fills Word templates with fiche and analysis fields and
// converts the result to PDF.
package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

// ErrTemplate is returned when a template package cannot be read or written
var ErrTemplate = errors.New("render: invalid template")

// textElement matches a w:t element with content. w:tab and w:tbl do not match.
var textElement = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)

// placeholder matches a {tag}. Tags may contain accented letters.
var placeholder = regexp.MustCompile(`\{([^{}\s]+)\}`)

const preservedOpen = `<w:t xml:space="preserve">`

// FillTemplate replaces every {tag} of a .docx template with values[tag].
// Unknown tags are emptied. A tag may be split over several runs; the value
// lands in the run holding the opening brace. Newlines become w:br breaks.
func FillTemplate(template []byte, values map[string]string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	found := false

	for _, f := range zr.File {
		if !isFillablePart(f.Name) {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("%w: copy %s: %v", ErrTemplate, f.Name, err)
			}
			continue
		}
		if f.Name == "word/document.xml" {
			found = true
		}

		body, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrTemplate, f.Name, err)
		}

		header := f.FileHeader
		header.Method = zip.Deflate
		w, err := zw.CreateHeader(&header)
		if err != nil {
			return nil, fmt.Errorf("%w: write %s: %v", ErrTemplate, f.Name, err)
		}
		if _, err := w.Write(fillPart(body, values)); err != nil {
			return nil, fmt.Errorf("%w: write %s: %v", ErrTemplate, f.Name, err)
		}
	}

	if !found {
		return nil, fmt.Errorf("%w: word/document.xml is missing", ErrTemplate)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	return out.Bytes(), nil
}

func isFillablePart(name string) bool {
	if name == "word/document.xml" {
		return true
	}
	if !strings.HasPrefix(name, "word/") || !strings.HasSuffix(name, ".xml") {
		return false
	}
	base := strings.TrimPrefix(name, "word/")
	return strings.HasPrefix(base, "header") || strings.HasPrefix(base, "footer")
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type textNode struct {
	start, end int // element bounds in the part
	text       string
	offset     int // position of text in the joined part text
}

type tagMatch struct {
	start, end int
	value      string
}

// fillPart rewrites one XML part. Placeholders are located in the joined
// text of all w:t elements so that run boundaries inside a tag are ignored.
func fillPart(body []byte, values map[string]string) []byte {
	locs := textElement.FindAllSubmatchIndex(body, -1)
	if len(locs) == 0 {
		return body
	}

	nodes := make([]textNode, len(locs))
	var joined strings.Builder
	for i, loc := range locs {
		text := html.UnescapeString(string(body[loc[2]:loc[3]]))
		nodes[i] = textNode{start: loc[0], end: loc[1], text: text, offset: joined.Len()}
		joined.WriteString(text)
	}

	full := joined.String()
	var matches []tagMatch
	for _, m := range placeholder.FindAllStringSubmatchIndex(full, -1) {
		matches = append(matches, tagMatch{start: m[0], end: m[1], value: values[full[m[2]:m[3]]]})
	}
	if len(matches) == 0 {
		return body
	}

	var out bytes.Buffer
	last := 0
	mi := 0
	for _, n := range nodes {
		start, end := n.offset, n.offset+len(n.text)
		for mi < len(matches) && matches[mi].end <= start {
			mi++
		}
		if mi == len(matches) || matches[mi].start >= end {
			continue
		}

		var content strings.Builder
		pos := start
		for j := mi; pos < end; j++ {
			if j == len(matches) || matches[j].start >= end {
				writeText(&content, full[pos:end])
				break
			}
			mt := matches[j]
			if mt.start > pos {
				writeText(&content, full[pos:mt.start])
				pos = mt.start
			}
			if pos == mt.start {
				writeText(&content, mt.value)
			}
			pos = min(mt.end, end)
		}

		out.Write(body[last:n.start])
		out.WriteString(preservedOpen)
		out.WriteString(content.String())
		out.WriteString("</w:t>")
		last = n.end
	}
	out.Write(body[last:])
	return out.Bytes()
}

// writeText escapes s for a w:t element and turns newlines into breaks
func writeText(b *strings.Builder, s string) {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if i > 0 {
			b.WriteString("</w:t><w:br/>")
			b.WriteString(preservedOpen)
		}
		var esc bytes.Buffer
		_ = xml.EscapeText(&esc, []byte(line))
		b.Write(esc.Bytes())
	}
}
