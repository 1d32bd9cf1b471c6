package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

// column maps one SQL column to a field of record type R. Editable columns
// are the ones rewritten by updates.
type column[R any] struct {
	name     string
	editable bool
	value    func(r *R) any
}

var ficheColumns = []column[FicheRecord]{
	{name: "source_filename", value: func(r *FicheRecord) any { return r.SourceFilename }},
	{name: "source_type", value: func(r *FicheRecord) any { return r.SourceType }},
	{name: "source_path", value: func(r *FicheRecord) any { return r.SourcePath }},
	{name: "nom", editable: true, value: func(r *FicheRecord) any { return nullString(r.Nom) }},
	{name: "prenom", editable: true, value: func(r *FicheRecord) any { return nullString(r.Prenom) }},
	{name: "date_naissance", editable: true, value: func(r *FicheRecord) any { return nullString(r.DateNaissance) }},
	{name: "classe", editable: true, value: func(r *FicheRecord) any { return nullString(r.Classe) }},
	{name: "etablissement_nom", editable: true, value: func(r *FicheRecord) any { return nullString(r.EtablissementNom) }},
	{name: "etablissement_adresse", editable: true, value: func(r *FicheRecord) any { return nullString(r.EtablissementAdresse) }},
	{name: "etablissement_email", editable: true, value: func(r *FicheRecord) any { return nullString(r.EtablissementEmail) }},
	{name: "etablissement_tel", editable: true, value: func(r *FicheRecord) any { return nullString(r.EtablissementTel) }},
	{name: "origine_saisine", editable: true, value: func(r *FicheRecord) any { return nullString(r.OrigineSaisine) }},
	{name: "origine_nom", editable: true, value: func(r *FicheRecord) any { return nullString(r.OrigineNom) }},
	{name: "situation_remontee_par", editable: true, value: func(r *FicheRecord) any { return nullString(r.SituationRemontee) }},
	{name: "date_demande", editable: true, value: func(r *FicheRecord) any { return nullString(r.DateDemande) }},
	{name: "demandes_formulees", editable: true, value: func(r *FicheRecord) any { return pq.StringArray(nonNil(r.Demandes)) }},
	{name: "contenu_brut", value: func(r *FicheRecord) any { return r.ContenuBrut }},
	{name: "confidence", value: func(r *FicheRecord) any { return r.Confidence }},
	{name: "status", editable: true, value: func(r *FicheRecord) any { return string(r.Status) }},
	{name: "pdf_output_path", editable: true, value: func(r *FicheRecord) any { return nullString(r.PDFOutputPath) }},
	{name: "processed_at", editable: true, value: func(r *FicheRecord) any { return nullTime(r.ProcessedAt) }},
}

// ficheRow is the scan target for SELECT queries on fiches
type ficheRow struct {
	ID                   int64          `db:"id"`
	SourceFilename       string         `db:"source_filename"`
	SourceType           string         `db:"source_type"`
	SourcePath           string         `db:"source_path"`
	Nom                  sql.NullString `db:"nom"`
	Prenom               sql.NullString `db:"prenom"`
	DateNaissance        sql.NullString `db:"date_naissance"`
	Classe               sql.NullString `db:"classe"`
	EtablissementNom     sql.NullString `db:"etablissement_nom"`
	EtablissementAdresse sql.NullString `db:"etablissement_adresse"`
	EtablissementEmail   sql.NullString `db:"etablissement_email"`
	EtablissementTel     sql.NullString `db:"etablissement_tel"`
	OrigineSaisine       sql.NullString `db:"origine_saisine"`
	OrigineNom           sql.NullString `db:"origine_nom"`
	SituationRemontee    sql.NullString `db:"situation_remontee_par"`
	DateDemande          sql.NullString `db:"date_demande"`
	Demandes             pq.StringArray `db:"demandes_formulees"`
	ContenuBrut          string         `db:"contenu_brut"`
	Confidence           string         `db:"confidence"`
	Status               string         `db:"status"`
	PDFOutputPath        sql.NullString `db:"pdf_output_path"`
	ProcessedAt          sql.NullTime   `db:"processed_at"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func (row *ficheRow) record() *FicheRecord {
	r := &FicheRecord{
		ID:             row.ID,
		SourceFilename: row.SourceFilename,
		SourceType:     row.SourceType,
		SourcePath:     row.SourcePath,
		Fiche: saisine.Fiche{
			Nom:                  row.Nom.String,
			Prenom:               row.Prenom.String,
			DateNaissance:        row.DateNaissance.String,
			Classe:               row.Classe.String,
			EtablissementNom:     row.EtablissementNom.String,
			EtablissementAdresse: row.EtablissementAdresse.String,
			EtablissementEmail:   row.EtablissementEmail.String,
			EtablissementTel:     row.EtablissementTel.String,
			OrigineSaisine:       row.OrigineSaisine.String,
			OrigineNom:           row.OrigineNom.String,
			SituationRemontee:    row.SituationRemontee.String,
			DateDemande:          row.DateDemande.String,
			Demandes:             nonNil(row.Demandes),
			ContenuBrut:          row.ContenuBrut,
			Confidence:           row.Confidence,
		},
		Status:        Status(row.Status),
		PDFOutputPath: row.PDFOutputPath.String,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.ProcessedAt.Valid {
		t := row.ProcessedAt.Time
		r.ProcessedAt = &t
	}
	return r
}

var analyseColumns = []column[AnalyseRecord]{
	{name: "source_files", value: func(r *AnalyseRecord) any { return pq.StringArray(nonNil(r.SourceFiles)) }},
	{name: "nom_enfant", editable: true, value: func(r *AnalyseRecord) any { return r.NomEnfant }},
	{name: "prenom_enfant", editable: true, value: func(r *AnalyseRecord) any { return r.PrenomEnfant }},
	{name: "date_de_naissance", editable: true, value: func(r *AnalyseRecord) any { return r.DateDeNaissance }},
	{name: "etablissement_scolaire", editable: true, value: func(r *AnalyseRecord) any { return r.EtablissementScolaire }},
	{name: "classe", editable: true, value: func(r *AnalyseRecord) any { return r.Classe }},
	{name: "problematique", editable: true, value: func(r *AnalyseRecord) any { return r.Problematique }},
	{name: "motif", editable: true, value: func(r *AnalyseRecord) any { return r.Motif }},
	{name: "historique", editable: true, value: func(r *AnalyseRecord) any { return r.Historique }},
	{name: "situation", editable: true, value: func(r *AnalyseRecord) any { return r.Situation }},
	{name: "partenaires", editable: true, value: func(r *AnalyseRecord) any { return r.Partenaires }},
	{name: "contexte_familial", editable: true, value: func(r *AnalyseRecord) any { return r.ContexteFamilial }},
	{name: "difficultes", editable: true, value: func(r *AnalyseRecord) any { return r.Difficultes }},
	{name: "points_appui", editable: true, value: func(r *AnalyseRecord) any { return r.PointsAppui }},
	{name: "en_classe", editable: true, value: func(r *AnalyseRecord) any { return r.EnClasse }},
	{name: "avec_la_communaute", editable: true, value: func(r *AnalyseRecord) any { return r.AvecLaCommunaute }},
	{name: "demande_formulee", editable: true, value: func(r *AnalyseRecord) any { return r.DemandeFormulee }},
	{name: "contenu_brut", value: func(r *AnalyseRecord) any { return r.ContenuBrut }},
	{name: "status", editable: true, value: func(r *AnalyseRecord) any { return string(r.Status) }},
	{name: "pdf_output_path", editable: true, value: func(r *AnalyseRecord) any { return nullString(r.PDFOutputPath) }},
}

type analyseRow struct {
	ID                    int64          `db:"id"`
	SourceFiles           pq.StringArray `db:"source_files"`
	NomEnfant             string         `db:"nom_enfant"`
	PrenomEnfant          string         `db:"prenom_enfant"`
	DateDeNaissance       string         `db:"date_de_naissance"`
	EtablissementScolaire string         `db:"etablissement_scolaire"`
	Classe                string         `db:"classe"`
	Problematique         string         `db:"problematique"`
	Motif                 string         `db:"motif"`
	Historique            string         `db:"historique"`
	Situation             string         `db:"situation"`
	Partenaires           string         `db:"partenaires"`
	ContexteFamilial      string         `db:"contexte_familial"`
	Difficultes           string         `db:"difficultes"`
	PointsAppui           string         `db:"points_appui"`
	EnClasse              string         `db:"en_classe"`
	AvecLaCommunaute      string         `db:"avec_la_communaute"`
	DemandeFormulee       string         `db:"demande_formulee"`
	ContenuBrut           string         `db:"contenu_brut"`
	Status                string         `db:"status"`
	PDFOutputPath         sql.NullString `db:"pdf_output_path"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
}

func (row *analyseRow) record() *AnalyseRecord {
	return &AnalyseRecord{
		ID:          row.ID,
		SourceFiles: nonNil(row.SourceFiles),
		Analyse: saisine.Analyse{
			NomEnfant:             row.NomEnfant,
			PrenomEnfant:          row.PrenomEnfant,
			DateDeNaissance:       row.DateDeNaissance,
			EtablissementScolaire: row.EtablissementScolaire,
			Classe:                row.Classe,
			Problematique:         row.Problematique,
			Motif:                 row.Motif,
			Historique:            row.Historique,
			Situation:             row.Situation,
			Partenaires:           row.Partenaires,
			ContexteFamilial:      row.ContexteFamilial,
			Difficultes:           row.Difficultes,
			PointsAppui:           row.PointsAppui,
			EnClasse:              row.EnClasse,
			AvecLaCommunaute:      row.AvecLaCommunaute,
			DemandeFormulee:       row.DemandeFormulee,
		},
		ContenuBrut:   row.ContenuBrut,
		Status:        Status(row.Status),
		PDFOutputPath: row.PDFOutputPath.String,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

// Propositions are unique per (fiche_id, temps); saving one twice
// overwrites the editable columns.
var propositionColumns = []column[PropositionRecord]{
	{name: "fiche_id", value: func(r *PropositionRecord) any { return r.FicheID }},
	{name: "temps", value: func(r *PropositionRecord) any { return r.Temps }},
	{name: "date_proposition", editable: true, value: func(r *PropositionRecord) any { return r.DateProposition }},
	{name: "motifs_principaux", editable: true, value: func(r *PropositionRecord) any { return pq.StringArray(nonNil(r.Motifs)) }},
	{name: "custom_motif", editable: true, value: func(r *PropositionRecord) any { return nullString(r.CustomMotif) }},
	{name: "evaluation_situation", editable: true, value: func(r *PropositionRecord) any { return pq.StringArray(nonNil(r.Evaluation)) }},
	{name: "commentaire", editable: true, value: func(r *PropositionRecord) any { return nullString(r.Commentaire) }},
	{name: "temps2_date", editable: true, value: func(r *PropositionRecord) any { return nullString(r.Temps2Date) }},
	{name: "temps2_commentaire", editable: true, value: func(r *PropositionRecord) any { return nullString(r.Temps2Commentaire) }},
}

type propositionRow struct {
	ID                int64          `db:"id"`
	FicheID           int64          `db:"fiche_id"`
	Temps             int            `db:"temps"`
	DateProposition   string         `db:"date_proposition"`
	Motifs            pq.StringArray `db:"motifs_principaux"`
	CustomMotif       sql.NullString `db:"custom_motif"`
	Evaluation        pq.StringArray `db:"evaluation_situation"`
	Commentaire       sql.NullString `db:"commentaire"`
	Temps2Date        sql.NullString `db:"temps2_date"`
	Temps2Commentaire sql.NullString `db:"temps2_commentaire"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (row *propositionRow) record() *PropositionRecord {
	return &PropositionRecord{
		ID:      row.ID,
		FicheID: row.FicheID,
		Proposition: saisine.Proposition{
			Temps:             row.Temps,
			DateProposition:   row.DateProposition,
			Motifs:            nonNil(row.Motifs),
			CustomMotif:       row.CustomMotif.String,
			Evaluation:        nonNil(row.Evaluation),
			Commentaire:       row.Commentaire.String,
			Temps2Date:        row.Temps2Date.String,
			Temps2Commentaire: row.Temps2Commentaire.String,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// selectList names the id, the mapped columns and the timestamps
func selectList[R any](cols []column[R]) string {
	names := make([]string, 0, len(cols)+3)
	names = append(names, "id")
	for _, c := range cols {
		names = append(names, c.name)
	}
	return strings.Join(append(names, "created_at", "updated_at"), ", ")
}

func insertQuery[R any](table string, cols []column[R], r *R) (string, []any) {
	names := make([]string, len(cols))
	holders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.name
		holders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = c.value(r)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING id, created_at, updated_at",
		table, strings.Join(names, ", "), strings.Join(holders, ", "))
	return query, args
}

func updateQuery[R any](table string, cols []column[R], id int64, r *R) (string, []any) {
	var sets []string
	var args []any
	for _, c := range cols {
		if !c.editable {
			continue
		}
		args = append(args, c.value(r))
		sets = append(sets, fmt.Sprintf("%s = $%d", c.name, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING updated_at",
		table, strings.Join(sets, ", "), len(args))
	return query, args
}

// propositionUpsertQuery inserts r or rewrites the proposition already
// stored for its fiche and temps
func propositionUpsertQuery(r *PropositionRecord) (string, []any) {
	insert, args := insertQuery("propositions", propositionColumns, r)
	var sets []string
	for _, c := range propositionColumns {
		if c.editable {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c.name, c.name))
		}
	}
	sets = append(sets, "updated_at = NOW()")
	query := strings.Replace(insert, " RETURNING ",
		" ON CONFLICT (fiche_id, temps) DO UPDATE SET "+strings.Join(sets, ", ")+" RETURNING ", 1)
	return query, args
}

func ficheSelectList() string {
	return selectList(ficheColumns)
}

func ficheInsertQuery(r *FicheRecord) (string, []any) {
	return insertQuery("fiches", ficheColumns, r)
}

func ficheUpdateQuery(r *FicheRecord) (string, []any) {
	return updateQuery("fiches", ficheColumns, r.ID, r)
}

// listFilter builds the WHERE clause shared by the page and count queries.
// Search is matched against the given columns.
func listFilter(opts ListOptions, searchColumns ...string) (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if opts.Search != "" && len(searchColumns) > 0 {
		args = append(args, "%"+opts.Search+"%")
		matches := make([]string, len(searchColumns))
		for i, c := range searchColumns {
			matches[i] = fmt.Sprintf("%s ILIKE $%d", c, len(args))
		}
		clauses = append(clauses, "("+strings.Join(matches, " OR ")+")")
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func ficheListFilter(opts ListOptions) (string, []any) {
	return listFilter(opts, "nom", "prenom", "source_filename")
}

func analyseListFilter(opts ListOptions) (string, []any) {
	return listFilter(opts, "nom_enfant", "prenom_enfant")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
