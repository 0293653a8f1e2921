package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine returns canned responses keyed by image filename.
type stubEngine struct {
	responses map[string]string
	err       error
}

func (e *stubEngine) Transcribe(_ context.Context, imagePath, _ string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return e.responses[filepath.Base(imagePath)], nil
}

const validPayload = `{
	"informations_generales": {"n_fiche": "1", "observateur": "Jean Dupont", "n_espece": "42", "espece": "Mésange bleue", "annee": "1979"},
	"nid": {"nid_prec_t_meme_c_ple": null, "haut_nid": "2", "h_c_vert": "5", "nid": "haie"},
	"localisation": {"IGN_50000": null, "commune": "Annecy", "dep_t": "74", "coordonnees_et_ou_lieu_dit": null, "altitude": null, "paysage": null, "alentours": null},
	"tableau_donnees": [],
	"tableau_donnees_2": {
		"1er_o_pondu": {"jour": null, "Mois": null},
		"1er_p_eclos": {"jour": null, "Mois": null},
		"1er_p_volant": {"jour": null, "Mois": null},
		"nombre_oeufs": {"pondus": null, "eclos": null, "n_ecl": null},
		"nombre_poussins": {"vol_t": null}
	},
	"causes_echec": {"causes_d_echec": null}
}`

func setupImageDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("jpeg bytes"), 0o644))
	}
	return dir
}

func TestProcessDirectory(t *testing.T) {
	imagesDir := setupImageDir(t, "Image_1.jpg", "Image_2.JPEG", "notes.txt")
	resultsDir := filepath.Join(t.TempDir(), "results")

	engine := &stubEngine{responses: map[string]string{
		"Image_1.jpg":  "```json\n" + validPayload + "\n```",
		"Image_2.JPEG": validPayload,
	}}
	runner := NewRunner(engine)

	job, err := runner.ProcessDirectory(context.Background(), imagesDir, resultsDir, "transcris la fiche")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.NotEmpty(t, job.ID)
	assert.True(t, job.Done())

	processed, total, percent := job.Progress()
	assert.Equal(t, 2, processed)
	assert.Equal(t, 2, total)
	assert.Equal(t, 100, percent)
	assert.Equal(t, 2, job.SuccessCount())

	// Both result files hold plain, parseable JSON.
	for _, name := range []string{"Image_1_result.json", "Image_2_result.json"} {
		data, err := os.ReadFile(filepath.Join(resultsDir, name))
		require.NoError(t, err, name)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(data, &payload))
		assert.Contains(t, payload, "informations_generales")
	}
}

func TestProcessDirectoryRepairsPayload(t *testing.T) {
	imagesDir := setupImageDir(t, "Image_1.jpg")
	resultsDir := t.TempDir()

	// Variant keys trigger validation failures and a repair.
	broken := `{
		"informations_generales": {"n° fiche": "1", "observateur": "X", "n_espece": null, "espèce": "Mésange bleue", "année": "1979"},
		"nid": {"nid_prec_t_meme_c_ple": null, "haut. nid": "2", "h.c'vert": "5", "nid": null},
		"localisation": {"IGN/50000": null, "commune": "Annecy", "dép't": "74", "coordonnees_et_ou_lieu_dit": null, "altitude": null, "paysage": null, "alentours": null},
		"tableau_donnees": [],
		"tableau_resume": {},
		"causes_echec": {"causes d'échec": null}
	}`
	runner := NewRunner(&stubEngine{responses: map[string]string{"Image_1.jpg": broken}})

	job, err := runner.ProcessDirectory(context.Background(), imagesDir, resultsDir, "")
	require.NoError(t, err)

	results := job.Results()
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.True(t, results[0].Repaired)

	// The pre-repair payload is kept alongside the final one.
	assert.FileExists(t, filepath.Join(resultsDir, "Image_1_raw.json"))

	data, err := os.ReadFile(filepath.Join(resultsDir, "Image_1_result.json"))
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	general := payload["informations_generales"].(map[string]any)
	assert.Contains(t, general, "espece")
	assert.NotContains(t, general, "espèce")
}

func TestProcessDirectoryRecordsEngineErrors(t *testing.T) {
	imagesDir := setupImageDir(t, "Image_1.jpg")
	resultsDir := t.TempDir()

	runner := NewRunner(&stubEngine{err: errors.New("model unavailable")})

	job, err := runner.ProcessDirectory(context.Background(), imagesDir, resultsDir, "")
	require.NoError(t, err)

	results := job.Results()
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Equal(t, 0, job.SuccessCount())
	assert.NoFileExists(t, filepath.Join(resultsDir, "Image_1_result.json"))
}

func TestProcessDirectoryNonJSONResponse(t *testing.T) {
	imagesDir := setupImageDir(t, "Image_1.jpg")
	resultsDir := t.TempDir()

	runner := NewRunner(&stubEngine{responses: map[string]string{"Image_1.jpg": "désolé, image illisible"}})

	job, err := runner.ProcessDirectory(context.Background(), imagesDir, resultsDir, "")
	require.NoError(t, err)

	results := job.Results()
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "non-JSON")
}

func TestProcessDirectoryHonorsContext(t *testing.T) {
	imagesDir := setupImageDir(t, "Image_1.jpg", "Image_2.jpg")
	resultsDir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(&stubEngine{responses: map[string]string{}})
	job, err := runner.ProcessDirectory(ctx, imagesDir, resultsDir, "")
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, job)
	processed, _, _ := job.Progress()
	assert.Equal(t, 0, processed)
}
