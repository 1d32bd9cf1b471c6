package saisine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDePrenom(t *testing.T) {
	tests := []struct {
		prenom string
		want   string
	}{
		{"Léa", "de Léa"},
		{"Emma", "d'Emma"},
		{"éloïse", "d'éloïse"},
		{"Hugo", "d'Hugo"},
		{"Yanis", "d'Yanis"},
		{"  Tom ", "de Tom"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DePrenom(tt.prenom), tt.prenom)
	}
}

func TestMotifLines(t *testing.T) {
	got := MotifLines([]string{"CHOIX_5", "CHOIX_3", MotifCustom, "CHOIX_99"}, "Inès", "Orientation vers le RASED.")
	lines := strings.Split(got, "\n")

	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Après étude de la situation d'Inès, le PRD propose"))
	assert.NotContains(t, got, prenomPlaceholder)
	assert.True(t, strings.HasPrefix(lines[1], "Le PRD propose la visite de Madame Claire MAYOR TANNIERE"))
	assert.Equal(t, "Orientation vers le RASED.", lines[2])
	assert.Equal(t, "CHOIX_99", lines[3])
}

func TestMotifLines_EmptyCustomIsDropped(t *testing.T) {
	got := MotifLines([]string{MotifCustom, "CHOIX_9"}, "Paul", "")
	assert.True(t, strings.HasPrefix(got, "Afin d'accélerer la demande"))
	assert.NotContains(t, got, "\n")
	assert.Equal(t, "", MotifLines(nil, "Paul", ""))
}

func TestMotifs(t *testing.T) {
	all := Motifs()
	assert.Len(t, all, 11)
	assert.Equal(t, "CHOIX_1", all[0].Code)
	assert.Equal(t, MotifCustom, all[10].Code)
	assert.True(t, IsMotif("CHOIX_10"))
	assert.False(t, IsMotif("CHOIX_12"))

	all[0].Code = "MUTATED"
	assert.Equal(t, "CHOIX_1", Motifs()[0].Code)
}

func TestFormatPropositionDate(t *testing.T) {
	assert.Equal(t, "05/03/2025", FormatPropositionDate("2025-03-05"))
	assert.Equal(t, "05/03/2025", FormatPropositionDate("05/03/2025"))
	assert.Equal(t, "mars 2025", FormatPropositionDate("mars 2025"))
	assert.Equal(t, "", FormatPropositionDate(""))
}

func TestProposition_Clone(t *testing.T) {
	p := Proposition{Motifs: []string{"CHOIX_1"}, Evaluation: []string{EvalSituationCloturee}}
	cp := p.Clone()
	cp.Motifs[0] = "CHOIX_2"
	cp.Evaluation[0] = EvalStabilisationPRD
	assert.Equal(t, "CHOIX_1", p.Motifs[0])
	assert.Equal(t, EvalSituationCloturee, p.Evaluation[0])
}
