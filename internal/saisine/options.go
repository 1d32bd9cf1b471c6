package saisine

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxMarkGap is the number of whitespace runes allowed between a check mark
// and the label it ticks.
const maxMarkGap = 3

// Normalizer maps text to the form keywords are matched in
type Normalizer func(string) string

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

// LowerCase lower-cases text and unifies typographic apostrophes
func LowerCase(s string) string {
	return apostrophes.Replace(strings.ToLower(s))
}

// FoldAccents lower-cases text and strips combining marks, so that
// "neurodév" and "neurodev" compare equal.
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, LowerCase(s))
	if err != nil {
		return LowerCase(s)
	}
	return folded
}

// Matcher detects catalog options in marked text
type Matcher struct {
	catalog   *Catalog
	normalize Normalizer
	keywords  [][]string
}

// MatcherOption configures a Matcher
type MatcherOption func(*Matcher)

// WithNormalizer replaces the default LowerCase normalization
func WithNormalizer(n Normalizer) MatcherOption {
	return func(m *Matcher) {
		m.normalize = n
	}
}

// WithAccentFolding makes matching insensitive to accents
func WithAccentFolding() MatcherOption {
	return WithNormalizer(FoldAccents)
}

// NewMatcher creates a Matcher over catalog
func NewMatcher(catalog *Catalog, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		catalog:   catalog,
		normalize: LowerCase,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.keywords = make([][]string, len(catalog.entries))
	for i, e := range catalog.entries {
		kws := make([]string, len(e.Keywords))
		for j, k := range e.Keywords {
			kws[j] = m.normalize(k)
		}
		m.keywords[i] = kws
	}
	return m
}

// Catalog returns the catalog the matcher was built over
func (m *Matcher) Catalog() *Catalog {
	return m.catalog
}

// Detect returns the codes selected in the marked text, deduplicated, in
// detection order. Highlighted spans are matched first; codes still missing
// are then looked up as labels ticked with a check mark in the plain text.
func (m *Matcher) Detect(marked string) []string {
	found := make([]string, 0, 4)
	seen := make(map[string]bool, len(m.catalog.entries))
	add := func(code string) {
		if !seen[code] {
			seen[code] = true
			found = append(found, code)
		}
	}

	for _, span := range Spans(marked) {
		text := strings.TrimSpace(m.normalize(span))
		for i, e := range m.catalog.entries {
			if !seen[e.Code] && containsAny(text, m.keywords[i]) {
				add(e.Code)
			}
		}
	}

	text := m.normalize(StripMarkers(marked))
	for i, e := range m.catalog.entries {
		if seen[e.Code] {
			continue
		}
		for _, kw := range m.keywords[i] {
			if tickedLabel(text, kw) {
				add(e.Code)
				break
			}
		}
	}

	return found
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// tickedLabel reports whether any occurrence of keyword in text is preceded
// by a check mark.
func tickedLabel(text, keyword string) bool {
	offset := 0
	for {
		i := strings.Index(text[offset:], keyword)
		if i < 0 {
			return false
		}
		if precededByMark(text, offset+i) {
			return true
		}
		offset += i + 1
	}
}

// precededByMark walks back from idx over at most maxMarkGap whitespace runes
// and reports whether the next rune is a check glyph. A letter glyph must
// start a word.
func precededByMark(text string, idx int) bool {
	i := idx
	for gap := 0; ; gap++ {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		if size == 0 {
			return false
		}
		if isCheckGlyph(r) {
			if unicode.IsLetter(r) {
				prev, n := utf8.DecodeLastRuneInString(text[:i-size])
				if n > 0 && unicode.IsLetter(prev) {
					return false
				}
			}
			return true
		}
		if !unicode.IsSpace(r) || gap == maxMarkGap {
			return false
		}
		i -= size
	}
}

func isCheckGlyph(r rune) bool {
	switch r {
	case 'x', 'X', '✓', '✔', '☑', '☒':
		return true
	}
	return false
}
