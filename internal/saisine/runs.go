package saisine

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// wordNamespace is the WordprocessingML main namespace. Fragments without a
// namespace declaration keep the bare "w" prefix as their space.
const wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// LineBreak is the text of the synthetic run inserted between paragraphs
const LineBreak = "\n"

// Run is the smallest text-formatting unit recovered from a Word body
type Run struct {
	Text        string `json:"text"`
	Highlighted bool   `json:"highlighted"`
}

// IsLineBreak reports whether the run is a paragraph separator
func (r Run) IsLineBreak() bool {
	return r.Text == LineBreak
}

// RunSet is the ordered run sequence of a document together with the text of
// every paragraph shaded at paragraph level.
type RunSet struct {
	Runs       []Run
	ShadedText map[string]struct{}
}

// Effective returns the highlighted flag of run i as seen by the span builder.
// Line breaks are never highlighted.
func (rs *RunSet) Effective(i int) bool {
	r := rs.Runs[i]
	if r.IsLineBreak() {
		return false
	}
	if r.Highlighted {
		return true
	}
	_, shaded := rs.ShadedText[r.Text]
	return shaded
}

// ExtractRuns parses the XML body of a Word document into runs.
//
// The scan is a single pass over the XML token stream. Paragraphs (w:p) are
// separated by a line-break run once at least one run has been produced.
// Every run (w:r) becomes one Run whose text is the concatenation of its w:t
// nodes, with w:tab as a tab and w:br or w:cr as a newline. A run without
// non-empty w:t text becomes a single unhighlighted space. A run is
// highlighted when it carries a w:highlight other than "none" or a w:shd
// fill other than auto/white. Paragraphs whose w:pPr carries a coloured
// w:shd add all their text values to ShadedText.
func ExtractRuns(documentXML string) (*RunSet, error) {
	if strings.TrimSpace(documentXML) == "" {
		return nil, NewError(KindContentUnavailable, "document body is empty")
	}

	s := newRunScanner()
	dec := xml.NewDecoder(strings.NewReader(documentXML))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, WrapError(KindContentUnavailable, "document body is not well-formed XML", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			s.start(t)
		case xml.EndElement:
			s.end(t)
		case xml.CharData:
			s.chars(t)
		}
	}

	return &RunSet{Runs: s.runs, ShadedText: s.shaded}, nil
}

// runScanner holds the extraction state. The element stack only records
// WordprocessingML elements; foreign elements are pushed as empty names so
// that parent lookups stay aligned.
type runScanner struct {
	runs   []Run
	shaded map[string]struct{}
	stack  []string

	paraDepth  int
	paraShaded bool
	paraTexts  []string

	runDepth       int
	runHighlighted bool
	runHasText     bool
	runText        strings.Builder

	textDepth int
	text      strings.Builder
}

func newRunScanner() *runScanner {
	return &runScanner{shaded: make(map[string]struct{})}
}

func isWord(name xml.Name) bool {
	return name.Space == wordNamespace || name.Space == "w"
}

func (s *runScanner) parent() string {
	if len(s.stack) == 0 {
		return ""
	}
	return s.stack[len(s.stack)-1]
}

func (s *runScanner) grandparent() string {
	if len(s.stack) < 2 {
		return ""
	}
	return s.stack[len(s.stack)-2]
}

func (s *runScanner) start(t xml.StartElement) {
	local := ""
	if isWord(t.Name) {
		local = t.Name.Local
	}

	switch local {
	case "p":
		if s.paraDepth == 0 {
			if len(s.runs) > 0 {
				s.runs = append(s.runs, Run{Text: LineBreak})
			}
			s.paraShaded = false
			s.paraTexts = s.paraTexts[:0]
		}
		s.paraDepth++
	case "r":
		if s.paraDepth > 0 {
			if s.runDepth == 0 {
				s.runHighlighted = false
				s.runHasText = false
				s.runText.Reset()
			}
			s.runDepth++
		}
	case "t":
		if s.runDepth > 0 {
			if s.textDepth == 0 {
				s.text.Reset()
			}
			s.textDepth++
		}
	case "tab":
		if s.runDepth > 0 && s.parent() == "r" {
			s.runText.WriteByte('\t')
		}
	case "br", "cr":
		if s.runDepth > 0 && s.parent() == "r" {
			s.runText.WriteByte('\n')
		}
	case "highlight":
		if s.runDepth > 0 && !strings.HasPrefix(attr(t, "val"), "none") {
			s.runHighlighted = true
		}
	case "shd":
		fill := attr(t, "fill")
		switch {
		case s.runDepth > 0:
			if isColouredFill(fill) {
				s.runHighlighted = true
			}
		case s.paraDepth == 1 && s.parent() == "pPr" && s.grandparent() == "p":
			if isColouredFill(fill) {
				s.paraShaded = true
			}
		}
	}

	s.stack = append(s.stack, local)
}

func (s *runScanner) end(t xml.EndElement) {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
	if !isWord(t.Name) {
		return
	}

	switch t.Name.Local {
	case "t":
		if s.textDepth == 0 {
			return
		}
		s.textDepth--
		if s.textDepth == 0 {
			if value := s.text.String(); value != "" {
				s.runText.WriteString(value)
				s.runHasText = true
				s.paraTexts = append(s.paraTexts, value)
			}
		}
	case "r":
		if s.runDepth == 0 {
			return
		}
		s.runDepth--
		if s.runDepth == 0 {
			if s.runHasText {
				s.runs = append(s.runs, Run{Text: s.runText.String(), Highlighted: s.runHighlighted})
			} else {
				// keeps neighbouring words apart
				s.runs = append(s.runs, Run{Text: " "})
			}
		}
	case "p":
		if s.paraDepth == 0 {
			return
		}
		s.paraDepth--
		if s.paraDepth == 0 && s.paraShaded {
			for _, v := range s.paraTexts {
				s.shaded[v] = struct{}{}
			}
		}
	}
}

func (s *runScanner) chars(data xml.CharData) {
	if s.textDepth > 0 {
		s.text.Write(data)
	}
}

// attr returns the value of the attribute with the given local name
func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// isColouredFill reports whether a shading fill is a visible colour
func isColouredFill(fill string) bool {
	if fill == "" {
		return false
	}
	lower := strings.ToLower(fill)
	return !strings.HasPrefix(lower, "auto") && !strings.HasPrefix(lower, "ffffff")
}
