// Package descriptions holds the help texts of the MCP tools.
package descriptions

// Tool names
const (
	ExtractFile   = "saisine_extract_file"
	DetectFile    = "saisine_detect_file"
	AnalyseFiles  = "saisine_analyse_files"
	GetFiche      = "saisine_get_fiche"
	ListFiches    = "saisine_list_fiches"
	UpdateFiche   = "saisine_update_fiche"
	RenderFiche   = "saisine_render_fiche"
	ListDocuments = "saisine_list_documents"
	ServerInfo    = "saisine_server_info"

	SaveProposition = "saisine_save_proposition"
	GetProposition  = "saisine_get_proposition"
	ListMotifs      = "saisine_list_motifs"

	GetAnalyse    = "saisine_get_analyse"
	ListAnalyses  = "saisine_list_analyses"
	UpdateAnalyse = "saisine_update_analyse"
	RenderAnalyse = "saisine_render_analyse"
	DeleteAnalyse = "saisine_delete_analyse"
)

const (
	ExtractFileDescription = `Extract a PRD referral form (fiche de saisine) into a stored fiche.

**When to use:** A new .docx or .pdf referral form has to be recorded.

**What happens:** The document text is read with its highlighted passages marked, the model fills the pupil, school and origin fields, then the highlighted or ticked requests and the origin line found in the document replace the model's guesses. The request date is kept only when it appears in the document. The fiche is stored with status "pending".

**Input:** either "path" (a file of the document directory) or "filename" plus "content_base64" for an upload.

**Next step:** review the fiche, correct it with saisine_update_fiche.`

	DetectFileDescription = `Run the rule-based detectors on a referral form without calling the model.

**When to use:** Check which requests are highlighted or ticked and who initiated the referral, e.g. before extracting or when the model is unavailable.

**Output:** detected request codes with their labels, the origin (IEN, Chef établissement, DSDEN, Autre) and its name, whether the document carries highlighting and whether the degraded plain-text path was used.`

	AnalyseFilesDescription = `Build one synthesis from several documents about the same pupil.

**When to use:** A referral comes with reports (bilans, PPS, GEVA-Sco, notes) that should be summarised together.

**What happens:** Each document is read, the texts are joined in the given order and the model writes the analysis fields (problématique, historique, difficultés, points d'appui, ...). The analysis is stored.

**Input:** "paths", the documents in the order they should be presented.`

	GetFicheDescription = `Return one stored fiche with its status and fields.`

	ListFichesDescription = `List stored fiches, newest first.

**Filters:** "status" (pending, validated, completed), "search" over the pupil's name and the source file name, "page" and "limit" (at most 100).`

	UpdateFicheDescription = `Record the reviewer's corrections to a fiche and mark it validated.

**Input:** "id" and "fiche", an object with the corrected fields (nom, prenom, dateNaissance, classe, etablissementNom, etablissementAdresse, etablissementEmail, etablissementTel, origineSaisine, origineNom, situationRemontee, dateDemande, demandes).

**Rules:** nom and prenom are required, dates use DD/MM/YYYY, origineSaisine is one of the four origin types and demandes only holds catalog codes. All problems are reported at once.`

	RenderFicheDescription = `Render the return form of a validated fiche to PDF.

**What happens:** The form template is filled (requests become crosses in catalog order and a bullet list), converted with LibreOffice and checked. The fiche becomes "completed" and keeps the PDF path.`

	ListDocumentsDescription = `List the .docx and .pdf documents of the document directory, newest first, with an optional name filter.`

	ServerInfoDescription = `Describe the server: version, document directory, limits, which services are available (model, database, rendering), the request catalog and the documents waiting in the directory.`

	SavePropositionDescription = `Record the PRD's answer (proposition) to a fiche for Temps 1 or Temps 2.

**Input:** "fiche_id" and "proposition", an object with temps (1 or 2), dateProposition (YYYY-MM-DD or DD/MM/YYYY), motifsPrincipaux (codes from saisine_list_motifs), customMotif (text of CHOIX_11), evaluationSituation (STABILISATION_CIRCO, STABILISATION_PRD, ACTIONS_COMPLEMENTAIRES, EQUIPE_TECHNIQUE, SITUATION_CLOTUREE), commentaire, temps2Date and temps2Commentaire.

**What happens:** Saving again for the same fiche and temps replaces the earlier proposition. The Temps 1 proposition fills the answer part of the return form when the fiche is rendered: the chosen motifs with the pupil's first name, the comments, the dates and the evaluation boxes.`

	GetPropositionDescription = `Return the proposition saved for a fiche and a temps (1 by default).`

	ListMotifsDescription = `List the standard answers of the PRD (CHOIX_1 to CHOIX_11) with their text. {prenom_enfant} is replaced by the pupil's first name when the form is rendered; CHOIX_11 takes the free text given as customMotif.`

	GetAnalyseDescription = `Return one stored analysis with its status and fields.`

	ListAnalysesDescription = `List stored analyses, newest first.

**Filters:** "status" (pending, validated, completed), "search" over the pupil's names, "page" and "limit" (at most 100).`

	UpdateAnalyseDescription = `Record the reviewer's corrections to an analysis and mark it validated.

**Input:** "id" and "analyse", an object with the corrected fields (nomEnfant, prenomEnfant, dateDeNaissance, etablissementScolaire, classe, problematique, motif, historique, situation, partenaires, contexteFamilial, difficultes, pointsAppui, enClasse, avecLaCommunaute, demandeFormulee). The corrected fields replace the stored ones.`

	RenderAnalyseDescription = `Render an analysis to PDF with the analysis template. The analysis becomes "completed" and keeps the PDF path.`

	DeleteAnalyseDescription = `Delete a stored analysis. Its source documents stay in the document directory.`
)
