package saisine

import (
	"regexp"
	"strings"
)

// Origin types of a referral request
const (
	OriginIEN   = "IEN"
	OriginChef  = "Chef établissement"
	OriginDSDEN = "DSDEN"
	OriginAutre = "Autre"
)

// OriginTypes lists the accepted origin types in priority order
var OriginTypes = []string{OriginIEN, OriginChef, OriginDSDEN, OriginAutre}

// Origin is the party that initiated the referral. Empty fields mean the
// value was not found.
type Origin struct {
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
}

// IsZero reports whether nothing was detected
func (o Origin) IsZero() bool {
	return o.Type == "" && o.Name == ""
}

type originPattern struct {
	kind string
	re   *regexp.Regexp
}

// originPatterns are tried in priority order on every line. Each captures
// the text following the field separator.
var originPatterns = []originPattern{
	{OriginIEN, regexp.MustCompile(`(?i)(?:\bL['’‘]?\s*)?\bIEN\s*[:\-–]\s*(.+)`)},
	{OriginChef, regexp.MustCompile(`(?i)\ble\s+chef\s+d['’‘](?:é|e)tablissement\s*[:\-–]\s*(.+)`)},
	{OriginDSDEN, regexp.MustCompile(`(?i)\bDSDEN\s*[:\-–]\s*(.+)`)},
	{OriginAutre, regexp.MustCompile(`(?i)\bautres?\s*\([^)]*\)\s*[:\-–]\s*(.+)`)},
}

// hasName requires two consecutive letters, which rejects empty lines,
// dotted placeholders and stray punctuation.
var hasName = regexp.MustCompile(`[a-zA-ZÀ-ÿ]{2,}`)

// nameTrailers strip labels that leak into the captured name when the form
// puts several fields on one line.
var nameTrailers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*date\s+de\s+la\s+demande.*$`),
	regexp.MustCompile(`(?i)\s*\ble\s+chef.*$`),
	regexp.MustCompile(`(?i)\s*\bDSDEN.*$`),
	regexp.MustCompile(`(?i)\s*\bautres?\s*\(.*$`),
	regexp.MustCompile(`(?i)\s*\bL['’‘]\s*IEN\b.*$`),
	regexp.MustCompile(`(?i)\s*situation\s+remontée.*$`),
	regexp.MustCompile(`(?i)\s*identification.*$`),
}

// DetectOrigin scans plain text line by line for the origin fields. On each
// line the patterns are tried in priority order; the first one yielding a
// non-empty cleaned name wins.
func DetectOrigin(plain string) Origin {
	for _, line := range strings.Split(plain, "\n") {
		for _, p := range originPatterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			candidate := strings.TrimSpace(m[1])
			if len(candidate) < 2 || !hasName.MatchString(candidate) {
				continue
			}
			if name := cleanOriginName(candidate); name != "" {
				return Origin{Type: p.kind, Name: name}
			}
		}
	}
	return Origin{}
}

func cleanOriginName(candidate string) string {
	name := candidate
	for _, re := range nameTrailers {
		name = re.ReplaceAllString(name, "")
	}
	return strings.TrimSpace(name)
}

// IsOriginType reports whether t is one of the accepted origin types
func IsOriginType(t string) bool {
	for _, o := range OriginTypes {
		if o == t {
			return true
		}
	}
	return false
}
