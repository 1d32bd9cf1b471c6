package render

import (
	"fmt"
	"slices"
	"strings"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

// CheckMark fills the d1..dN boxes of selected requests
const CheckMark = "X"

// FicheValues maps a fiche and its Temps 1 proposition to the tags of the
// return-form template. Each catalog entry owns the box d<position>;
// {demandes} lists the selected labels as bullets. p may be nil, which
// leaves the temps1, temps2 and eval tags empty.
func FicheValues(f saisine.Fiche, p *saisine.Proposition, catalog *saisine.Catalog) map[string]string {
	values := map[string]string{
		"nom":                    f.Nom,
		"prenom":                 f.Prenom,
		"date_naissance":         f.DateNaissance,
		"classe":                 f.Classe,
		"etablissement_nom":      f.EtablissementNom,
		"etablissement_adresse":  f.EtablissementAdresse,
		"etablissement_email":    f.EtablissementEmail,
		"etablissement_tel":      f.EtablissementTel,
		"origine_saisine":        f.OrigineSaisine,
		"origine_nom":            f.OrigineNom,
		"situation_remontee_par": f.SituationRemontee,
		"date_demande":           f.DateDemande,
		"demandes":               demandesList(f.Demandes, catalog),
	}

	for i := 1; i <= catalog.Len(); i++ {
		values[fmt.Sprintf("d%d", i)] = ""
	}
	for _, code := range f.Demandes {
		if pos := catalog.Position(code); pos > 0 {
			values[fmt.Sprintf("d%d", pos)] = CheckMark
		}
	}

	propositionValues(values, f.Prenom, p)
	return values
}

func propositionValues(values map[string]string, prenom string, p *saisine.Proposition) {
	if p == nil {
		p = &saisine.Proposition{}
	}
	values["temps1_date"] = saisine.FormatPropositionDate(p.DateProposition)
	values["temps1_motifs"] = saisine.MotifLines(p.Motifs, prenom, p.CustomMotif)
	values["temps1_commentaire"] = p.Commentaire
	values["temps2_date"] = saisine.FormatPropositionDate(p.Temps2Date)
	values["temps2_commentaire"] = p.Temps2Commentaire

	for i, code := range saisine.EvaluationCodes() {
		mark := ""
		if slices.Contains(p.Evaluation, code) {
			mark = CheckMark
		}
		values[fmt.Sprintf("eval%d", i+1)] = mark
	}
}

func demandesList(codes []string, catalog *saisine.Catalog) string {
	lines := make([]string, 0, len(codes))
	for _, code := range codes {
		lines = append(lines, "• "+catalog.Label(code))
	}
	return strings.Join(lines, "\n")
}

// AnalyseValues maps an analysis to the tags of the analysis template
func AnalyseValues(a saisine.Analyse) map[string]string {
	return map[string]string{
		"nom_enfant":             a.NomEnfant,
		"prenom_enfant":          a.PrenomEnfant,
		"date_de_naissance":      a.DateDeNaissance,
		"etablissement_scolaire": a.EtablissementScolaire,
		"classe":                 a.Classe,
		"problématique":          a.Problematique,
		"problematique":          a.Problematique,
		"motif":                  a.Motif,
		"historique":             a.Historique,
		"situation":              a.Situation,
		"partenaires":            a.Partenaires,
		"contexte_familial":      a.ContexteFamilial,
		"difficultes":            a.Difficultes,
		"points_appui":           a.PointsAppui,
		"en_classe":              a.EnClasse,
		"avec_la_communaute":     a.AvecLaCommunaute,
		"demande_formulee":       a.DemandeFormulee,
	}
}
