package saisine

// ConfidenceAIExtracted marks a record whose fields come from the AI extractor
const ConfidenceAIExtracted = "ai_extracted"

// Fiche is the canonical field record of a referral form. Empty strings stand
// for values that were not found. JSON names match the extractor's output.
type Fiche struct {
	Nom                  string   `json:"nom"`
	Prenom               string   `json:"prenom"`
	DateNaissance        string   `json:"dateNaissance"`
	Classe               string   `json:"classe"`
	EtablissementNom     string   `json:"etablissementNom"`
	EtablissementAdresse string   `json:"etablissementAdresse"`
	EtablissementEmail   string   `json:"etablissementEmail"`
	EtablissementTel     string   `json:"etablissementTel"`
	OrigineSaisine       string   `json:"origineSaisine"`
	OrigineNom           string   `json:"origineNom"`
	SituationRemontee    string   `json:"situationRemontee"`
	DateDemande          string   `json:"dateDemande"`
	Demandes             []string `json:"demandes"`

	ContenuBrut string `json:"contenuBrut,omitempty"`
	Confidence  string `json:"confidence,omitempty"`
}

// Clone returns a deep copy
func (f Fiche) Clone() Fiche {
	cp := f
	if f.Demandes != nil {
		cp.Demandes = append([]string(nil), f.Demandes...)
	}
	return cp
}

// Analyse is the synthesis record built from several documents about one pupil
type Analyse struct {
	NomEnfant             string `json:"nomEnfant"`
	PrenomEnfant          string `json:"prenomEnfant"`
	DateDeNaissance       string `json:"dateDeNaissance"`
	EtablissementScolaire string `json:"etablissementScolaire"`
	Classe                string `json:"classe"`
	Problematique         string `json:"problematique"`
	Motif                 string `json:"motif"`
	Historique            string `json:"historique"`
	Situation             string `json:"situation"`
	Partenaires           string `json:"partenaires"`
	ContexteFamilial      string `json:"contexteFamilial"`
	Difficultes           string `json:"difficultes"`
	PointsAppui           string `json:"pointsAppui"`
	EnClasse              string `json:"enClasse"`
	AvecLaCommunaute      string `json:"avecLaCommunaute"`
	DemandeFormulee       string `json:"demandeFormulee"`
}
