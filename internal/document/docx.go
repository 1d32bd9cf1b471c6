package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

const (
	mainDocumentPart = "word/document.xml"
	packageRelsPart  = "_rels/.rels"

	// maxPartSize bounds the uncompressed size of a single package part
	maxPartSize = 64 << 20
)

const wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

var blankLines = regexp.MustCompile(`\n{3,}`)

func openPackage(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, saisine.WrapError(saisine.KindInvalidDocument, "failed to open Word package", err)
	}
	return zr, nil
}

// readPart returns the content of a package part, or a ContentUnavailable
// error when the part is missing or unreadable.
func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, saisine.WrapError(saisine.KindContentUnavailable, "failed to open part "+name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
		if err != nil {
			return nil, saisine.WrapError(saisine.KindContentUnavailable, "failed to read part "+name, err)
		}
		if len(data) > maxPartSize {
			return nil, saisine.NewError(saisine.KindContentUnavailable,
				fmt.Sprintf("part %s exceeds %d bytes", name, maxPartSize))
		}
		return data, nil
	}
	return nil, saisine.NewError(saisine.KindContentUnavailable, "missing part "+name)
}

// docxMarkedText reads word/document.xml and renders it with highlight
// markers.
func docxMarkedText(data []byte) (string, error) {
	zr, err := openPackage(data)
	if err != nil {
		return "", err
	}
	body, err := readPart(zr, mainDocumentPart)
	if err != nil {
		return "", err
	}
	rs, err := saisine.ExtractRuns(string(body))
	if err != nil {
		return "", err
	}
	return saisine.BuildMarkedText(rs), nil
}

type packageRelationships struct {
	Items []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// mainPartName resolves the main document part through the package
// relationships, defaulting to word/document.xml.
func mainPartName(zr *zip.Reader) string {
	data, err := readPart(zr, packageRelsPart)
	if err != nil {
		return mainDocumentPart
	}
	var rels packageRelationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return mainDocumentPart
	}
	for _, r := range rels.Items {
		if strings.HasSuffix(r.Type, "/officeDocument") && r.Target != "" {
			return strings.TrimPrefix(path.Clean("/"+r.Target), "/")
		}
	}
	return mainDocumentPart
}

// docxPlainText is the degraded path: it finds the main part and strips the
// markup with a lenient decoder. Formatting is lost.
func docxPlainText(data []byte) (string, error) {
	zr, err := openPackage(data)
	if err != nil {
		return "", err
	}
	name := mainPartName(zr)
	body, err := readPart(zr, name)
	if err != nil {
		return "", err
	}

	text := stripWordMarkup(body)
	if strings.TrimSpace(text) == "" {
		return "", saisine.NewError(saisine.KindContentUnavailable, "no text in "+name)
	}
	return text, nil
}

func isWordName(n xml.Name) bool {
	return n.Space == wordNamespace || n.Space == "w"
}

// stripWordMarkup keeps w:t text, turns tabs and breaks into whitespace and
// ends every paragraph with a newline. Decoding stops at the first
// unrecoverable error and keeps what was read so far.
func stripWordMarkup(body []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false

	var b strings.Builder
	runDepth, textDepth := 0, 0

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !isWordName(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "r":
				runDepth++
			case "t":
				if runDepth > 0 {
					textDepth++
				}
			case "tab":
				if runDepth > 0 {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if runDepth > 0 {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if !isWordName(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "r":
				if runDepth > 0 {
					runDepth--
				}
			case "t":
				if textDepth > 0 {
					textDepth--
				}
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if textDepth > 0 {
				b.Write(t)
			}
		}
	}

	return strings.TrimSpace(blankLines.ReplaceAllString(b.String(), "\n\n"))
}
