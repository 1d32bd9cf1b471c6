package saisine

import (
	"strings"
)

// Detection holds the rule-based findings for one document
type Detection struct {
	Options []string `json:"options"`
	Origin  Origin   `json:"origin"`
}

// Detect runs the option matcher and the origin detector over marked text.
// The two are independent of each other.
func Detect(marked string, m *Matcher) Detection {
	return Detection{
		Options: m.Detect(marked),
		Origin:  DetectOrigin(StripMarkers(marked)),
	}
}

// Reconcile merges AI-extracted fields with rule-based detections. A
// non-empty detection replaces the AI value; the request date survives only
// if it appears verbatim in the document text.
func Reconcile(ai Fiche, d Detection, text string) Fiche {
	out := ai.Clone()

	if len(d.Options) > 0 {
		out.Demandes = append([]string(nil), d.Options...)
	}
	if d.Origin.Type != "" {
		out.OrigineSaisine = d.Origin.Type
	}
	if d.Origin.Name != "" {
		out.OrigineNom = d.Origin.Name
	}

	if out.DateDemande != "" && !strings.Contains(StripMarkers(text), out.DateDemande) {
		out.DateDemande = ""
	}

	if out.Demandes == nil {
		out.Demandes = []string{}
	}
	return out
}
