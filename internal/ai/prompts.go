package ai

import (
	"fmt"
	"strings"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

const ficheFields = `{
  "nom": "NOM de l'élève en MAJUSCULES",
  "prenom": "Prénom de l'élève",
  "dateNaissance": "JJ/MM/AAAA",
  "classe": "Classe de l'élève (ex : CE1, CM2, 6ème)",
  "etablissementNom": "Nom de l'établissement scolaire",
  "etablissementAdresse": "Adresse complète de l'établissement",
  "etablissementEmail": "Courriel de l'établissement",
  "etablissementTel": "Téléphone de l'établissement",
  "origineSaisine": "IEN, Chef établissement, DSDEN ou Autre",
  "origineNom": "Nom court de la personne, ex : Mme Marquette",
  "situationRemontee": "Situation remontée par",
  "dateDemande": "JJ/MM/AAAA ou null",
  "demandes": []
}`

const analyseFields = `{
  "nomEnfant": "NOM de l'élève en MAJUSCULES",
  "prenomEnfant": "Prénom de l'élève",
  "dateDeNaissance": "Date de naissance",
  "etablissementScolaire": "Établissement scolaire",
  "classe": "Classe de l'élève",
  "problematique": "Problématique principale",
  "motif": "Motif de la saisine",
  "historique": "Parcours et prises en charge antérieures",
  "situation": "Situation actuelle",
  "partenaires": "Partenaires impliqués",
  "contexteFamilial": "Contexte familial",
  "difficultes": "Difficultés scolaires, comportementales, relationnelles",
  "pointsAppui": "Points d'appui et ressources",
  "enClasse": "Fonctionnement en classe",
  "avecLaCommunaute": "Relations avec la communauté éducative",
  "demandeFormulee": "Demande formulée par l'équipe ou la famille"
}`

// FichePrompt builds the extraction prompt for one referral form. codes
// lists the request codes the model may return.
func FichePrompt(text, sourceType string, codes []string) string {
	var b strings.Builder

	b.WriteString("Tu extrais les données des fiches de saisine du Pôle Ressources Départemental (PRD) de l'Éducation nationale.\n\n")
	if sourceType == SourceDOCX {
		fmt.Fprintf(&b, "Les passages surlignés dans le document d'origine sont encadrés par %s et %s.\n", saisine.MarkStart, saisine.MarkEnd)
	}
	b.WriteString("Retourne uniquement un objet JSON, sans texte autour, de la forme :\n\n")
	b.WriteString(ficheFields)
	b.WriteString("\n\nRègles :\n")
	b.WriteString("1. Origine : le formulaire propose les lignes \"L'IEN :\", \"Le Chef d'établissement :\", \"DSDEN :\" et \"Autres (...) :\". ")
	b.WriteString("La ligne suivie d'un nom donne le type et le nom. origineNom ne contient que le nom court.\n")
	b.WriteString("2. dateDemande : seulement si une date est écrite dans le champ \"date de la demande\". Sinon null. N'invente jamais de date.\n")
	b.WriteString("3. demandes : uniquement les demandes surlignées ou cochées (☑, ✓, X devant le libellé), jamais celles simplement listées. ")
	fmt.Fprintf(&b, "Codes possibles : %s. Aucune demande cochée ou surlignée : [].\n", strings.Join(codes, ", "))
	b.WriteString("4. Information absente : null.\n\n")
	b.WriteString("Contenu du document :\n\n---\n")
	b.WriteString(text)
	b.WriteString("\n---\n\nRéponds uniquement avec le JSON.")

	return b.String()
}

// JoinDocuments concatenates analysis inputs in order, each under a
// numbered header
func JoinDocuments(docs []SourceDocument) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = fmt.Sprintf("--- DOCUMENT %d: %s ---\n%s", i+1, d.Name, d.Text)
	}
	return strings.Join(parts, "\n\n")
}

// AnalysePrompt builds the synthesis prompt over several documents
func AnalysePrompt(docs []SourceDocument) string {
	var b strings.Builder

	b.WriteString("Tu analyses des documents scolaires pour l'Éducation nationale.\n\n")
	fmt.Fprintf(&b, "Voici %d document(s) concernant un même élève. Retourne uniquement un objet JSON, sans texte autour, de la forme :\n\n", len(docs))
	b.WriteString(analyseFields)
	b.WriteString("\n\nRègles :\n")
	b.WriteString("1. Chaque champ descriptif (problematique à demandeFormulee) est une synthèse de 100 mots au plus.\n")
	b.WriteString("2. Information introuvable : chaîne vide \"\".\n")
	b.WriteString("3. Croise les informations de tous les documents.\n\n")
	b.WriteString("Contenu des documents :\n\n---\n")
	b.WriteString(JoinDocuments(docs))
	b.WriteString("\n---\n\nRéponds uniquement avec le JSON.")

	return b.String()
}
