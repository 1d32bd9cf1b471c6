package saisine

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Temps values of a proposition
const (
	Temps1 = 1
	Temps2 = 2
)

// Proposition is the answer of the PRD to a referral. Temps 1 is the first
// proposal; the Temps 2 fields record the follow-up on the same record.
type Proposition struct {
	Temps             int      `json:"temps"`
	DateProposition   string   `json:"dateProposition"`
	Motifs            []string `json:"motifsPrincipaux"`
	CustomMotif       string   `json:"customMotif,omitempty"`
	Evaluation        []string `json:"evaluationSituation"`
	Commentaire       string   `json:"commentaire"`
	Temps2Date        string   `json:"temps2Date"`
	Temps2Commentaire string   `json:"temps2Commentaire"`
}

// Clone returns a deep copy
func (p Proposition) Clone() Proposition {
	cp := p
	if p.Motifs != nil {
		cp.Motifs = append([]string(nil), p.Motifs...)
	}
	if p.Evaluation != nil {
		cp.Evaluation = append([]string(nil), p.Evaluation...)
	}
	return cp
}

// MotifCustom is the free-text choice; its text is Proposition.CustomMotif
const MotifCustom = "CHOIX_11"

// Motif is one of the standard answers of the PRD. {prenom_enfant} in Text
// is replaced by "de Prénom" or "d'Prénom".
type Motif struct {
	Code string `json:"code" yaml:"code"`
	Text string `json:"text" yaml:"text"`
}

const prenomPlaceholder = "{prenom_enfant}"

var motifs = []Motif{
	{"CHOIX_1", "Le PRD propose le soutien de l'Équipe Mobile d'appui à la scolarité, EMAS33, pour répondre aux besoins de conseils à la communauté éducative afin d'accompagner la prise en charge des besoins éducatifs particuliers {prenom_enfant}. L'EMAS prendra contact avec l'établissement pour déterminer les modalités d'action."},
	{"CHOIX_2", "Le PRD propose le soutien de l'Equipe Mobile d'appui à la scolarité pour accompagner la communauté éducative dans l'élaboration de stratégies éducatives et comportementales adaptées aux besoins {prenom_enfant}. L'EMAS prendra contact avec l'équipe pour déterminer les modalités d'action."},
	{"CHOIX_3", "Le PRD propose la visite de Madame Claire MAYOR TANNIERE, Professeure ressource TSA SDEI, qui prendra contact avec l'équipe éducative pour déterminer les modalités de sa première visite."},
	{"CHOIX_4", "Le PRD propose la visite de Madame Campagne, Professeure ressource TND  SDEI, qui prendra contact avec l'équipe éducative pour déterminer les modalités de sa première visite."},
	{"CHOIX_5", "Après étude de la situation {prenom_enfant}, le PRD propose un accompagnement conjoint, associant l'expertise du professeur ressource TND et l'accompagnement de l'EMAS. L'EMAS, en lien avec Mme Campagne ( PR TND ), prendra directement contact avec l'école."},
	{"CHOIX_6", "Le PRD propose la visite d'CPD du  SDEI, qui prendra contact avec l'équipe éducative pour déterminer les modalités de sa première visite."},
	{"CHOIX_7", "Après étude de la situation {prenom_enfant}, le PRD propose un accompagnement conjoint, associant l'expertise d'un CPD du SDEI et l'accompagnement de l'EMAS. L'EMAS, en lien avec avec  le cpd du SDEI prendra directement contact avec l'école."},
	{"CHOIX_8", "Afin d'accompagner au mieux la situation {prenom_enfant}. le prd propose un accompagnement par le pole TSA / TND avec l'appui de l'EMAS qui sera à même d'intervenir rapidement. L' équipe de l'EMAS prendra contact avec l'école, tout comme le pole TSA / TND."},
	{"CHOIX_9", "Afin d'accélerer la demande de prise en charge en ESMS, le PRD propose la rédaction d'une fiche RAPT ( réponse accompagnée pour tous ) par l'enseignant référent du secteur à destination de l'IEN SDEI."},
	{"CHOIX_10", "Afin d'accompagner au mieux la situation {prenom_enfant} le prd propose un accompagnement de l'AESH par l'AESH référente TSA, Mme Caboblanco, qui prendra contact avec l'école et l'AESH afin de définir des modalités d'intervention."},
	{MotifCustom, "Autre proposition (texte libre)"},
}

// Motifs returns the standard answers in form order
func Motifs() []Motif {
	return append([]Motif(nil), motifs...)
}

// IsMotif reports whether code is a known answer
func IsMotif(code string) bool {
	for _, m := range motifs {
		if m.Code == code {
			return true
		}
	}
	return false
}

// DePrenom returns "d'Prénom" before a vowel or h and "de Prénom" otherwise
func DePrenom(prenom string) string {
	prenom = strings.TrimSpace(prenom)
	if prenom == "" {
		return ""
	}
	first, _ := utf8.DecodeRuneInString(prenom)
	if strings.ContainsRune("aeiouyéèêëâîôûùüh", unicode.ToLower(first)) {
		return "d'" + prenom
	}
	return "de " + prenom
}

// MotifLines renders the chosen answers for the pupil prenom, one per line.
// The free-text choice contributes custom; unknown codes are kept as is.
func MotifLines(codes []string, prenom, custom string) string {
	de := DePrenom(prenom)
	lines := make([]string, 0, len(codes))
	for _, code := range codes {
		text := code
		if code == MotifCustom {
			text = custom
		} else {
			for _, m := range motifs {
				if m.Code == code {
					text = strings.ReplaceAll(m.Text, prenomPlaceholder, de)
					break
				}
			}
		}
		if text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n")
}

// Evaluation codes, in the order of the eval1..eval5 boxes
const (
	EvalStabilisationCirco     = "STABILISATION_CIRCO"
	EvalStabilisationPRD       = "STABILISATION_PRD"
	EvalActionsComplementaires = "ACTIONS_COMPLEMENTAIRES"
	EvalEquipeTechnique        = "EQUIPE_TECHNIQUE"
	EvalSituationCloturee      = "SITUATION_CLOTUREE"
)

// EvaluationCodes lists the evaluation boxes in form order
func EvaluationCodes() []string {
	return []string{
		EvalStabilisationCirco,
		EvalStabilisationPRD,
		EvalActionsComplementaires,
		EvalEquipeTechnique,
		EvalSituationCloturee,
	}
}

// FormatPropositionDate writes a YYYY-MM-DD or DD/MM/YYYY date as
// DD/MM/YYYY. Other values are returned unchanged.
func FormatPropositionDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return s
}
