package store

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julienmessagingme/educnat/internal/saisine"
)

func sampleRecord() *FicheRecord {
	return &FicheRecord{
		ID:             7,
		SourceFilename: "saisine-dupont.docx",
		SourceType:     "docx",
		SourcePath:     "/data/uploads/saisine_dupont-1b4e.docx",
		Fiche: saisine.Fiche{
			Nom:         "DUPONT",
			Prenom:      "Léa",
			Classe:      "CE2",
			OrigineNom:  "Mme Marquette",
			Demandes:    []string{saisine.CodePosturePro},
			ContenuBrut: "Nom : DUPONT",
			Confidence:  saisine.ConfidenceAIExtracted,
		},
		Status: StatusPending,
	}
}

func TestFicheInsertQuery(t *testing.T) {
	query, args := ficheInsertQuery(sampleRecord())

	assert.True(t, strings.HasPrefix(query, "INSERT INTO fiches (source_filename, source_type, source_path, nom,"))
	assert.Contains(t, query, "$21)")
	assert.True(t, strings.HasSuffix(query, "RETURNING id, created_at, updated_at"))
	require.Len(t, args, len(ficheColumns))

	assert.Equal(t, "saisine-dupont.docx", args[0])
	assert.Equal(t, sql.NullString{String: "DUPONT", Valid: true}, args[3])
	assert.Equal(t, sql.NullString{}, args[5], "empty date of birth is stored as NULL")
	assert.Equal(t, pq.StringArray{saisine.CodePosturePro}, args[15])
	assert.Equal(t, "pending", args[18])
	assert.Equal(t, sql.NullTime{}, args[20])
}

func TestFicheUpdateQuery(t *testing.T) {
	r := sampleRecord()
	r.Demandes = nil
	query, args := ficheUpdateQuery(r)

	assert.True(t, strings.HasPrefix(query, "UPDATE fiches SET nom = $1, prenom = $2,"))
	assert.NotContains(t, query, "source_filename")
	assert.NotContains(t, query, "contenu_brut")
	assert.Contains(t, query, "updated_at = NOW()")
	assert.True(t, strings.HasSuffix(query, "WHERE id = $17 RETURNING updated_at"))

	require.Len(t, args, 17)
	assert.Equal(t, pq.StringArray{}, args[12], "nil demandes are stored as an empty array")
	assert.Equal(t, int64(7), args[16])
}

func TestFicheListFilter(t *testing.T) {
	where, args := ficheListFilter(ListOptions{})
	assert.Equal(t, "WHERE 1=1", where)
	assert.Empty(t, args)

	where, args = ficheListFilter(ListOptions{Status: StatusValidated, Search: "dup"})
	assert.Equal(t, "WHERE 1=1 AND status = $1 AND (nom ILIKE $2 OR prenom ILIKE $2 OR source_filename ILIKE $2)", where)
	assert.Equal(t, []any{"validated", "%dup%"}, args)
}

func TestFicheSelectList(t *testing.T) {
	list := ficheSelectList()
	assert.True(t, strings.HasPrefix(list, "id, source_filename, "))
	assert.True(t, strings.HasSuffix(list, "processed_at, created_at, updated_at"))
}

func TestFicheRowRecord(t *testing.T) {
	processed := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	row := ficheRow{
		ID:             3,
		SourceFilename: "a.pdf",
		SourceType:     "pdf",
		Nom:            sql.NullString{String: "MARTIN", Valid: true},
		OrigineSaisine: sql.NullString{String: "DSDEN", Valid: true},
		Status:         "completed",
		PDFOutputPath:  sql.NullString{String: "/out/fiche-3.pdf", Valid: true},
		ProcessedAt:    sql.NullTime{Time: processed, Valid: true},
	}

	r := row.record()
	assert.Equal(t, int64(3), r.ID)
	assert.Equal(t, "MARTIN", r.Nom)
	assert.Empty(t, r.Prenom)
	assert.Equal(t, "DSDEN", r.OrigineSaisine)
	assert.Equal(t, []string{}, r.Demandes)
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, "/out/fiche-3.pdf", r.PDFOutputPath)
	require.NotNil(t, r.ProcessedAt)
	assert.True(t, processed.Equal(*r.ProcessedAt))
}

func TestAnalyseQueries(t *testing.T) {
	r := &AnalyseRecord{
		ID:          4,
		SourceFiles: []string{"a.docx", "b.pdf"},
		Analyse:     saisine.Analyse{NomEnfant: "DUPONT", DemandeFormulee: "Appui"},
		Status:      StatusPending,
	}

	query, args := insertQuery("analyses", analyseColumns, r)
	assert.True(t, strings.HasPrefix(query, "INSERT INTO analyses (source_files, nom_enfant,"))
	require.Len(t, args, len(analyseColumns))
	assert.Equal(t, pq.StringArray{"a.docx", "b.pdf"}, args[0])
	assert.Equal(t, "DUPONT", args[1])
	assert.Equal(t, "Appui", args[16])
	assert.Equal(t, "pending", args[18])
	assert.Equal(t, sql.NullString{}, args[19])

	r.Status = StatusValidated
	query, args = updateQuery("analyses", analyseColumns, r.ID, r)
	assert.True(t, strings.HasPrefix(query, "UPDATE analyses SET nom_enfant = $1,"))
	assert.NotContains(t, query, "source_files")
	assert.NotContains(t, query, "contenu_brut")
	assert.True(t, strings.HasSuffix(query, "WHERE id = $19 RETURNING updated_at"))
	assert.Equal(t, "validated", args[16])
	assert.Equal(t, int64(4), args[18])

	row := analyseRow{
		ID:            2,
		SourceFiles:   pq.StringArray{"a.docx"},
		NomEnfant:     "DUPONT",
		Status:        "completed",
		PDFOutputPath: sql.NullString{String: "/out/analyse_2.pdf", Valid: true},
	}
	rec := row.record()
	assert.Equal(t, []string{"a.docx"}, rec.SourceFiles)
	assert.Equal(t, "DUPONT", rec.NomEnfant)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "/out/analyse_2.pdf", rec.PDFOutputPath)
}

func TestAnalyseListFilter(t *testing.T) {
	where, args := analyseListFilter(ListOptions{Status: StatusPending, Search: "lea"})
	assert.Equal(t, "WHERE 1=1 AND status = $1 AND (nom_enfant ILIKE $2 OR prenom_enfant ILIKE $2)", where)
	assert.Equal(t, []any{"pending", "%lea%"}, args)
}

func TestPropositionUpsertQuery(t *testing.T) {
	r := &PropositionRecord{
		FicheID: 9,
		Proposition: saisine.Proposition{
			Temps:           1,
			DateProposition: "2025-03-05",
			Motifs:          []string{"CHOIX_2"},
		},
	}
	query, args := propositionUpsertQuery(r)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO propositions (fiche_id, temps, date_proposition,"))
	assert.Contains(t, query, "ON CONFLICT (fiche_id, temps) DO UPDATE SET date_proposition = EXCLUDED.date_proposition,")
	assert.NotContains(t, query, "fiche_id = EXCLUDED")
	assert.True(t, strings.HasSuffix(query, "updated_at = NOW() RETURNING id, created_at, updated_at"))

	require.Len(t, args, len(propositionColumns))
	assert.Equal(t, int64(9), args[0])
	assert.Equal(t, 1, args[1])
	assert.Equal(t, pq.StringArray{"CHOIX_2"}, args[3])
	assert.Equal(t, pq.StringArray{}, args[5], "nil evaluation is stored as an empty array")
	assert.Equal(t, sql.NullString{}, args[6])
}

func TestPropositionRowRecord(t *testing.T) {
	row := propositionRow{
		ID:          1,
		FicheID:     9,
		Temps:       2,
		Motifs:      pq.StringArray{"CHOIX_11"},
		CustomMotif: sql.NullString{String: "Suivi RASED", Valid: true},
	}
	r := row.record()
	assert.Equal(t, int64(9), r.FicheID)
	assert.Equal(t, 2, r.Temps)
	assert.Equal(t, []string{"CHOIX_11"}, r.Motifs)
	assert.Equal(t, "Suivi RASED", r.CustomMotif)
	assert.Equal(t, []string{}, r.Evaluation)
}

func TestMaskDatabaseURL(t *testing.T) {
	assert.Equal(t, "postgres://saisine:xxxxx@db:5432/prd", maskDatabaseURL("postgres://saisine:secret@db:5432/prd"))
	assert.Equal(t, "postgres://db:5432/prd", maskDatabaseURL("postgres://db:5432/prd"))
}
