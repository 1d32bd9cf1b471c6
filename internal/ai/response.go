package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

const ficheResponseSchema = `{
  "type": "object",
  "properties": {
    "nom": {"type": ["string", "null"]},
    "prenom": {"type": ["string", "null"]},
    "dateNaissance": {"type": ["string", "null"]},
    "classe": {"type": ["string", "null"]},
    "etablissementNom": {"type": ["string", "null"]},
    "etablissementAdresse": {"type": ["string", "null"]},
    "etablissementEmail": {"type": ["string", "null"]},
    "etablissementTel": {"type": ["string", "null"]},
    "origineSaisine": {"type": ["string", "null"]},
    "origineNom": {"type": ["string", "null"]},
    "situationRemontee": {"type": ["string", "null"]},
    "dateDemande": {"type": ["string", "null"]},
    "demandes": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`

const analyseResponseSchema = `{
  "type": "object",
  "additionalProperties": {"type": ["string", "null"]}
}`

func mustCompile(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("failed to load schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

var (
	ficheSchema   = mustCompile("fiche-response.json", ficheResponseSchema)
	analyseSchema = mustCompile("analyse-response.json", analyseResponseSchema)
)

// parseJSON recovers a JSON object from model output, tolerating markdown
// fences and surrounding prose.
func parseJSON(content string) (json.RawMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty output", ErrInvalidResponse)
	}

	candidates := []string{content}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		candidates = append(candidates, stripped)
	}
	if extracted := extractObject(content); extracted != "" && extracted != content {
		candidates = append(candidates, extracted)
	}

	for _, candidate := range candidates {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return json.RawMessage(candidate), nil
		}
	}
	return nil, fmt.Errorf("%w: no JSON object in output", ErrInvalidResponse)
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func extractObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}

func validate(schema *jsonschema.Schema, raw json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// decodeFiche parses and checks a fiche answer
func decodeFiche(content string) (saisine.Fiche, error) {
	raw, err := parseJSON(content)
	if err != nil {
		return saisine.Fiche{}, err
	}
	if err := validate(ficheSchema, raw); err != nil {
		return saisine.Fiche{}, err
	}

	var f saisine.Fiche
	if err := json.Unmarshal(raw, &f); err != nil {
		return saisine.Fiche{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if f.Demandes == nil {
		f.Demandes = []string{}
	}
	return f, nil
}

// decodeAnalyse parses and checks an analysis answer
func decodeAnalyse(content string) (saisine.Analyse, error) {
	raw, err := parseJSON(content)
	if err != nil {
		return saisine.Analyse{}, err
	}
	if err := validate(analyseSchema, raw); err != nil {
		return saisine.Analyse{}, err
	}

	var a saisine.Analyse
	if err := json.Unmarshal(raw, &a); err != nil {
		return saisine.Analyse{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return a, nil
}
