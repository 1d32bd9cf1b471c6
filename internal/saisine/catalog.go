package saisine

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Referral request codes
const (
	CodeSensibilisation       = "SENSIBILISATION"
	CodePosturePro            = "POSTURE_PRO"
	CodeGestesPro             = "GESTES_PRO"
	CodePedagogie             = "PEDAGOGIE"
	CodeAmenagement           = "AMENAGEMENT"
	CodeExpertiseComportement = "EXPERTISE_COMPORTEMENT"
	CodeExpertiseTSAPedagogie = "EXPERTISE_TSA_PEDAGOGIE"
	CodeExpertiseTSAAESH      = "EXPERTISE_TSA_AESH"
	CodeExpertiseNeurodev     = "EXPERTISE_NEURODEV"
	CodeCommunauteEducative   = "COMMUNAUTE_EDUCATIVE"
	CodeParcoursScolaire      = "PARCOURS_SCOLAIRE"
)

// CatalogEntry is one selectable referral request type
type CatalogEntry struct {
	Code     string   `yaml:"code" json:"code"`
	Label    string   `yaml:"label" json:"label"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Catalog is the ordered list of referral request types. It is built once and
// shared read-only.
type Catalog struct {
	entries []CatalogEntry
	index   map[string]int
}

// DefaultCatalog returns the eleven request types of the PRD referral form
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]CatalogEntry{
		{
			Code:     CodeSensibilisation,
			Label:    "Demande de sensibilisation, formation aux équipes",
			Keywords: []string{"sensibilisation", "formation aux équipes"},
		},
		{
			Code:     CodePosturePro,
			Label:    "Posture professionnelle",
			Keywords: []string{"posture professionnelle"},
		},
		{
			Code:     CodeGestesPro,
			Label:    "Gestes professionnels",
			Keywords: []string{"gestes professionnels"},
		},
		{
			Code:     CodePedagogie,
			Label:    "Pédagogie auprès des élèves",
			Keywords: []string{"pédagogie auprès des élèves"},
		},
		{
			Code:     CodeAmenagement,
			Label:    "Aménagement de l'espace classe",
			Keywords: []string{"aménagement de l'espace classe", "aménagement espace classe"},
		},
		{
			Code:     CodeExpertiseComportement,
			Label:    "Expertise troubles du comportement",
			Keywords: []string{"expertise troubles du comportement", "troubles du comportement"},
		},
		{
			Code:     CodeExpertiseTSAPedagogie,
			Label:    "Expertise TSA apports pédagogiques",
			Keywords: []string{"expertise tsa apports pédagogiques", "tsa apports pédagogiques"},
		},
		{
			Code:     CodeExpertiseTSAAESH,
			Label:    "Expertise TSA accompagnement AESH",
			Keywords: []string{"expertise tsa accompagnement aesh", "tsa accompagnement aesh"},
		},
		{
			Code:     CodeExpertiseNeurodev,
			Label:    "Expertise trouble neurodév.",
			Keywords: []string{"expertise trouble neurodév", "trouble neurodév"},
		},
		{
			Code:     CodeCommunauteEducative,
			Label:    "Appui et conseil à la communauté éducative",
			Keywords: []string{"communauté éducative"},
		},
		{
			Code:     CodeParcoursScolaire,
			Label:    "Aide à l'élaboration du parcours scolaire et/ou de soin",
			Keywords: []string{"parcours scolaire", "parcours de soin"},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("default catalog is invalid: %v", err))
	}
	return c
}

// NewCatalog validates entries and builds a catalog. Keywords are stored
// lower-cased; entry order is preserved.
func NewCatalog(entries []CatalogEntry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog has no entries")
	}

	c := &Catalog{
		entries: make([]CatalogEntry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			return nil, fmt.Errorf("catalog entry %d has no code", i)
		}
		if _, dup := c.index[code]; dup {
			return nil, fmt.Errorf("duplicate catalog code: %s", code)
		}

		keywords := make([]string, 0, len(e.Keywords))
		for _, k := range e.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k != "" {
				keywords = append(keywords, k)
			}
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("catalog entry %s has no keywords", code)
		}

		label := e.Label
		if label == "" {
			label = code
		}

		c.index[code] = len(c.entries)
		c.entries = append(c.entries, CatalogEntry{Code: code, Label: label, Keywords: keywords})
	}
	return c, nil
}

type catalogFile struct {
	Options []CatalogEntry `yaml:"options"`
}

// LoadCatalog reads a YAML catalog of the form
//
//	options:
//	  - code: POSTURE_PRO
//	    label: Posture professionnelle
//	    keywords: [posture professionnelle]
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	c, err := NewCatalog(f.Options)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return c, nil
}

// Entries returns a copy of the catalog entries in order
func (c *Catalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, len(c.entries))
	for i, e := range c.entries {
		out[i] = CatalogEntry{Code: e.Code, Label: e.Label, Keywords: append([]string(nil), e.Keywords...)}
	}
	return out
}

// Len returns the number of entries
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Codes returns the entry codes in catalog order
func (c *Catalog) Codes() []string {
	codes := make([]string, len(c.entries))
	for i, e := range c.entries {
		codes[i] = e.Code
	}
	return codes
}

// Has reports whether code belongs to the catalog
func (c *Catalog) Has(code string) bool {
	_, ok := c.index[code]
	return ok
}

// Position returns the 1-based position of code, or 0 when unknown
func (c *Catalog) Position(code string) int {
	i, ok := c.index[code]
	if !ok {
		return 0
	}
	return i + 1
}

// Label returns the display label for code, or the code itself when unknown
func (c *Catalog) Label(code string) string {
	if i, ok := c.index[code]; ok {
		return c.entries[i].Label
	}
	return code
}
