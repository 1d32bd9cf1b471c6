package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

var (
	// ErrInvalidFiche is returned when corrections break the fiche rules
	ErrInvalidFiche = errors.New("pipeline: invalid fiche")
	// ErrInvalidAnalyse is returned when corrections break the analysis rules
	ErrInvalidAnalyse = errors.New("pipeline: invalid analyse")
	// ErrInvalidProposition is returned when a proposition breaks its rules
	ErrInvalidProposition = errors.New("pipeline: invalid proposition")
)

const ficheRulesSchema = `{
  "type": "object",
  "required": ["nom", "prenom"],
  "properties": {
    "nom": {"type": "string", "minLength": 1, "maxLength": 100},
    "prenom": {"type": "string", "minLength": 1, "maxLength": 100},
    "dateNaissance": {"type": "string", "pattern": "^(\\d{2}/\\d{2}/\\d{4})?$"},
    "classe": {"type": "string", "maxLength": 50},
    "etablissementNom": {"type": "string", "maxLength": 200},
    "etablissementAdresse": {"type": "string", "maxLength": 500},
    "etablissementEmail": {"anyOf": [{"type": "string", "format": "email"}, {"const": ""}]},
    "etablissementTel": {"type": "string", "maxLength": 20},
    "origineSaisine": {"enum": ["", "IEN", "Chef établissement", "DSDEN", "Autre"]},
    "origineNom": {"type": "string", "maxLength": 200},
    "situationRemontee": {"type": "string", "maxLength": 200},
    "dateDemande": {"type": "string", "pattern": "^(\\d{2}/\\d{2}/\\d{4})?$"},
    "demandes": {"type": "array", "items": {"type": "string"}}
  }
}`

const analyseRulesSchema = `{
  "type": "object",
  "properties": {
    "nomEnfant": {"type": "string", "maxLength": 100},
    "prenomEnfant": {"type": "string", "maxLength": 100},
    "dateDeNaissance": {"type": "string", "maxLength": 50},
    "etablissementScolaire": {"type": "string", "maxLength": 200},
    "classe": {"type": "string", "maxLength": 50},
    "problematique": {"type": "string"},
    "motif": {"type": "string"},
    "historique": {"type": "string"},
    "situation": {"type": "string"},
    "partenaires": {"type": "string"},
    "contexteFamilial": {"type": "string"},
    "difficultes": {"type": "string"},
    "pointsAppui": {"type": "string"},
    "enClasse": {"type": "string"},
    "avecLaCommunaute": {"type": "string"},
    "demandeFormulee": {"type": "string"}
  }
}`

const propositionRulesSchema = `{
  "type": "object",
  "required": ["temps", "dateProposition"],
  "properties": {
    "temps": {"type": "integer", "minimum": 1, "maximum": 2},
    "dateProposition": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$|^\\d{2}/\\d{2}/\\d{4}$"},
    "motifsPrincipaux": {"type": "array", "items": {"type": "string"}},
    "customMotif": {"type": "string"},
    "evaluationSituation": {
      "type": "array",
      "uniqueItems": true,
      "items": {"enum": ["STABILISATION_CIRCO", "STABILISATION_PRD", "ACTIONS_COMPLEMENTAIRES", "EQUIPE_TECHNIQUE", "SITUATION_CLOTUREE"]}
    },
    "commentaire": {"type": "string"},
    "temps2Date": {"type": "string", "pattern": "^(\\d{4}-\\d{2}-\\d{2}|\\d{2}/\\d{2}/\\d{4})?$"},
    "temps2Commentaire": {"type": "string"}
  }
}`

var (
	ficheRules       = mustCompileRules("fiche-rules.json", ficheRulesSchema)
	analyseRules     = mustCompileRules("analyse-rules.json", analyseRulesSchema)
	propositionRules = mustCompileRules("proposition-rules.json", propositionRulesSchema)
)

func mustCompileRules(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("failed to load %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// checkRules validates v, encoded as JSON, against rules and returns one
// message per broken rule
func checkRules(rules *jsonschema.Schema, v any) ([]string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := rules.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		return leafMessages(ve), nil
	}
	return nil, nil
}

func rulesError(kind error, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", kind, strings.Join(problems, "; "))
}

// ValidateFiche checks a corrected fiche against the review rules. Request
// codes must belong to catalog.
func ValidateFiche(f saisine.Fiche, catalog *saisine.Catalog) error {
	if f.Demandes == nil {
		f.Demandes = []string{}
	}
	problems, err := checkRules(ficheRules, f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFiche, err)
	}
	for _, code := range f.Demandes {
		if !catalog.Has(code) {
			problems = append(problems, fmt.Sprintf("/demandes: unknown request code %q", code))
		}
	}
	return rulesError(ErrInvalidFiche, problems)
}

// ValidateAnalyse checks a corrected analysis against the review rules
func ValidateAnalyse(a saisine.Analyse) error {
	problems, err := checkRules(analyseRules, a)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAnalyse, err)
	}
	return rulesError(ErrInvalidAnalyse, problems)
}

// ValidateProposition checks a proposition. Motif codes must be standard
// answers and the free-text answer needs its text.
func ValidateProposition(p saisine.Proposition) error {
	if p.Motifs == nil {
		p.Motifs = []string{}
	}
	if p.Evaluation == nil {
		p.Evaluation = []string{}
	}
	problems, err := checkRules(propositionRules, p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProposition, err)
	}
	for _, code := range p.Motifs {
		if !saisine.IsMotif(code) {
			problems = append(problems, fmt.Sprintf("/motifsPrincipaux: unknown motif %q", code))
		}
		if code == saisine.MotifCustom && strings.TrimSpace(p.CustomMotif) == "" {
			problems = append(problems, fmt.Sprintf("/customMotif: required with %s", saisine.MotifCustom))
		}
	}
	return rulesError(ErrInvalidProposition, problems)
}

func leafMessages(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		return []string{fmt.Sprintf("%s: %s", ve.InstanceLocation, ve.Message)}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, leafMessages(c)...)
	}
	return out
}
