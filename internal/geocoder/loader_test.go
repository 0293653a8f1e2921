package geocoder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const communesAPIResponse = `[
	{
		"nom": "Annecy",
		"code": "74010",
		"codesPostaux": ["74000"],
		"centre": {"type": "Point", "coordinates": [6.129, 45.899]},
		"departement": {"code": "74", "nom": "Haute-Savoie"},
		"region": {"code": "84", "nom": "Auvergne-Rhône-Alpes"},
		"population": 130000,
		"surface": 6694000
	},
	{
		"nom": "Saint-Denis",
		"code": "93066",
		"codesPostaux": ["93200", "93210"],
		"centre": {"type": "Point", "coordinates": [2.357, 48.936]},
		"departement": {"code": "93", "nom": "Seine-Saint-Denis"},
		"region": {"code": "11", "nom": "Île-de-France"},
		"population": 112000,
		"surface": 1236000
	},
	{
		"nom": "Sans-Coordonnées",
		"code": "00001",
		"codesPostaux": ["00000"],
		"departement": {"code": "00", "nom": "Nulle-Part"}
	}
]`

func TestLoadCommunes(t *testing.T) {
	store := createStore(t)

	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder("GET", `=~^https://geo\.api\.gouv\.fr/communes`,
		httpmock.NewStringResponder(200, communesAPIResponse))

	stats, err := LoadCommunes(context.Background(), store, "", false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Loaded)
	assert.Equal(t, 1, stats.Errors) // entry without coordinates skipped

	commune, err := store.FindCommuneByINSEE("74010")
	require.NoError(t, err)
	assert.Equal(t, "Annecy", commune.Name)
	assert.Equal(t, "74000", commune.PostalCode)
	assert.Equal(t, "Haute-Savoie", commune.Department)
	assert.InDelta(t, 45.899, commune.Latitude, 0.001)
	assert.InDelta(t, 6.129, commune.Longitude, 0.001)
	assert.Equal(t, 130000, commune.Population)

	// The normalized lookup key is computed on insert.
	found, err := store.FindCommuneByNameAndDepartment("St-Denis", "93")
	require.NoError(t, err)
	assert.Equal(t, "93066", found.INSEECode)
}

func TestLoadCommunesRefusesOverwrite(t *testing.T) {
	store := createStore(t)
	seedReferenceData(t, store)

	_, err := LoadCommunes(context.Background(), store, "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already loaded")
}

func TestLoadCommunesForceReload(t *testing.T) {
	store := createStore(t)
	seedReferenceData(t, store)

	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	httpmock.RegisterResponder("GET", `=~^https://geo\.api\.gouv\.fr/communes`,
		httpmock.NewStringResponder(200, communesAPIResponse))

	stats, err := LoadCommunes(context.Background(), store, "", true)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Loaded)

	count, err := store.CountCommunes()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

const formerCommunesCSV = `Code INSEE Commune Nouvelle,Nom Commune Nouvelle Siège,Code INSEE Commune Déléguée (non actif),Nom Commune Déléguée,Date
74010,Annecy,74010,Annecy,JANVIER 2017
74010,Annecy,74093,Cran-Gevrier,JANVIER 2017
74010,Annecy,74145,Meythet,JANVIER 2017
99999,Inconnue,99998,Perdue,AVRIL 2016
`

func TestLoadFormerCommunes(t *testing.T) {
	store := createStore(t)
	seedReferenceData(t, store)

	csvPath := filepath.Join(t.TempDir(), "communes_nouvelles.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(formerCommunesCSV), 0o644))

	stats, err := LoadFormerCommunes(store, csvPath, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Loaded)
	// One seat row plus one row with an unknown successor.
	assert.Equal(t, 2, stats.Skipped)

	former, err := store.FindFormerCommune("Cran-Gevrier", "74")
	require.NoError(t, err)
	assert.Equal(t, "Annecy", former.Successor.Name)
	assert.Equal(t, "74", former.DepartmentCode)
	require.NotNil(t, former.MergedAt)
	assert.Equal(t, time.January, former.MergedAt.Month())
	assert.Equal(t, 2017, former.MergedAt.Year())
	assert.Contains(t, former.Comment, "Annecy")
}

func TestLoadFormerCommunesMissingColumn(t *testing.T) {
	store := createStore(t)

	csvPath := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("a,b,c\n1,2,3\n"), 0o644))

	_, err := LoadFormerCommunes(store, csvPath, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing CSV column")
}

func TestParseMergeDate(t *testing.T) {
	d := parseMergeDate("AVRIL 2016")
	require.NotNil(t, d)
	assert.Equal(t, time.April, d.Month())
	assert.Equal(t, 2016, d.Year())

	// Accented month names fold to the table's keys.
	d = parseMergeDate("Février 2019")
	require.NotNil(t, d)
	assert.Equal(t, time.February, d.Month())

	assert.Nil(t, parseMergeDate("SOMEDAY"))
	assert.Nil(t, parseMergeDate(""))
}
