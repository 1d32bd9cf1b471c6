package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "plain", content: `{"nom":"DUPONT"}`, want: `{"nom":"DUPONT"}`},
		{name: "fenced", content: "```json\n{\"nom\":\"DUPONT\"}\n```", want: `{"nom":"DUPONT"}`},
		{name: "fence_without_language", content: "```\n{\"nom\":\"DUPONT\"}\n```", want: `{"nom":"DUPONT"}`},
		{name: "prose_around", content: "Voici le JSON :\n{\"nom\":\"DUPONT\"}\nBonne journée", want: `{"nom":"DUPONT"}`},
		{name: "empty", content: "  ", wantErr: true},
		{name: "array", content: `["a"]`, wantErr: true},
		{name: "broken", content: `{"nom": "DUPONT"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJSON(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidResponse))
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestDecodeFiche(t *testing.T) {
	content := "```json\n" + `{
  "nom": "DUPONT",
  "prenom": "Léa",
  "dateNaissance": "03/04/2016",
  "classe": "CE2",
  "etablissementNom": "École Jules Ferry",
  "etablissementAdresse": null,
  "etablissementEmail": "ce.0123456a@ac-exemple.fr",
  "etablissementTel": null,
  "origineSaisine": "IEN",
  "origineNom": "Mme Marquette",
  "situationRemontee": null,
  "dateDemande": null,
  "demandes": ["POSTURE_PRO"]
}` + "\n```"

	f, err := decodeFiche(content)
	require.NoError(t, err)

	assert.Equal(t, "DUPONT", f.Nom)
	assert.Equal(t, "Léa", f.Prenom)
	assert.Equal(t, "CE2", f.Classe)
	assert.Empty(t, f.EtablissementAdresse)
	assert.Empty(t, f.DateDemande)
	assert.Equal(t, []string{"POSTURE_PRO"}, f.Demandes)
}

func TestDecodeFiche_NullDemandes(t *testing.T) {
	f, err := decodeFiche(`{"nom":"DUPONT","demandes":null}`)
	require.NoError(t, err)
	assert.NotNil(t, f.Demandes)
	assert.Empty(t, f.Demandes)
}

func TestDecodeFiche_SchemaMismatch(t *testing.T) {
	tests := []string{
		`{"nom": 12}`,
		`{"demandes": "POSTURE_PRO"}`,
		`{"demandes": [1, 2]}`,
	}
	for _, content := range tests {
		_, err := decodeFiche(content)
		require.Error(t, err, content)
		assert.True(t, errors.Is(err, ErrInvalidResponse), content)
	}
}

func TestDecodeAnalyse(t *testing.T) {
	a, err := decodeAnalyse(`{"nomEnfant":"DUPONT","prenomEnfant":"Léa","motif":"Troubles du comportement en classe","partenaires":""}`)
	require.NoError(t, err)
	assert.Equal(t, "DUPONT", a.NomEnfant)
	assert.Equal(t, "Troubles du comportement en classe", a.Motif)

	_, err = decodeAnalyse(`{"nomEnfant":["DUPONT"]}`)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
}
