package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmarcon/nestcard-go/internal/conf"
	"github.com/tmarcon/nestcard-go/internal/datastore"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// http keep-alive pools linger past test scope
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		// go-cache janitor stops on finalization, not on Close
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

func createStore(t *testing.T) datastore.Interface {
	t.Helper()

	settings := conf.DefaultSettings()
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "geo.db")

	store := datastore.New(settings)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func seedReferenceData(t *testing.T, store datastore.Interface) {
	t.Helper()

	alt := 448
	inserted, err := store.InsertCommunes([]datastore.Commune{
		{INSEECode: "74010", Name: "Annecy", PostalCode: "74000", Department: "Haute-Savoie", DepartmentCode: "74", Latitude: 45.899, Longitude: 6.129, Altitude: &alt},
		{INSEECode: "93066", Name: "Saint-Denis", PostalCode: "93200", Department: "Seine-Saint-Denis", DepartmentCode: "93", Latitude: 48.936, Longitude: 2.357},
		{INSEECode: "97411", Name: "Saint-Denis", PostalCode: "97400", Department: "La Réunion", DepartmentCode: "974", Latitude: -20.879, Longitude: 55.448},
	})
	require.NoError(t, err)
	require.Equal(t, 3, inserted)
}

func localOnlySettings() conf.GeocoderSettings {
	settings := conf.DefaultSettings().Geocoder
	settings.ExternalEnabled = false
	return settings
}

func TestGeocodeLocalTiers(t *testing.T) {
	store := createStore(t)
	seedReferenceData(t, store)

	svc := New(store, localOnlySettings())
	defer svc.Close()
	ctx := context.Background()

	t.Run("name and department", func(t *testing.T) {
		result, err := svc.Geocode(ctx, Query{Commune: "St-Denis", Department: "93"})
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, SourceLocal, result.Source)
		assert.Equal(t, "93066", result.INSEECode)
		assert.Equal(t, PrecisionCommune, result.Precision)
		assert.Equal(t, 5000, result.PrecisionM)
	})

	t.Run("name and postal code", func(t *testing.T) {
		result, err := svc.Geocode(ctx, Query{Commune: "Saint-Denis", PostalCode: "97400"})
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, SourceLocalPostal, result.Source)
		assert.Equal(t, "97411", result.INSEECode)
	})

	t.Run("unique bare name", func(t *testing.T) {
		result, err := svc.Geocode(ctx, Query{Commune: "Annecy"})
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, SourceLocalUnique, result.Source)
		require.NotNil(t, result.Altitude)
		assert.Equal(t, 448, *result.Altitude)
	})

	t.Run("ambiguous bare name misses", func(t *testing.T) {
		result, err := svc.Geocode(ctx, Query{Commune: "Saint-Denis"})
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("fuzzy contains within department", func(t *testing.T) {
		result, err := svc.Geocode(ctx, Query{Commune: "Denis", Department: "93"})
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, SourceLocalFuzzy, result.Source)
		assert.Equal(t, "93066", result.INSEECode)
	})

	t.Run("unknown commune with external disabled", func(t *testing.T) {
		result, err := svc.Geocode(ctx, Query{Commune: "Villeneuve-des-Mésanges", Department: "74"})
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("empty commune", func(t *testing.T) {
		result, err := svc.Geocode(ctx, Query{})
		require.NoError(t, err)
		assert.Nil(t, result)
	})
}

func TestGeocodeFormerCommune(t *testing.T) {
	store := createStore(t)
	seedReferenceData(t, store)

	successor, err := store.FindCommuneByINSEE("74010")
	require.NoError(t, err)

	lat, lon := 45.95, 6.25
	_, err = store.InsertFormerCommunes([]datastore.FormerCommune{
		{INSEECode: "74093", Name: "Cran-Gevrier", SuccessorID: successor.ID, Department: "Haute-Savoie", DepartmentCode: "74", Latitude: &lat, Longitude: &lon},
		{INSEECode: "74145", Name: "Meythet", SuccessorID: successor.ID, Department: "Haute-Savoie", DepartmentCode: "74"},
	})
	require.NoError(t, err)

	svc := New(store, localOnlySettings())
	defer svc.Close()
	ctx := context.Background()

	t.Run("absorbed coordinates preferred", func(t *testing.T) {
		result, err := svc.Geocode(ctx, Query{Commune: "Cran-Gevrier", Department: "74"})
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, SourceFormerCommune, result.Source)
		assert.True(t, result.Merged)
		assert.Equal(t, "Annecy", result.MergedInto)
		assert.InDelta(t, 45.95, result.Latitude, 0.001)
		assert.Equal(t, "74010", result.INSEECode)
	})

	t.Run("successor coordinates fallback", func(t *testing.T) {
		result, err := svc.Geocode(ctx, Query{Commune: "Meythet", Department: "74"})
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.Merged)
		assert.InDelta(t, 45.899, result.Latitude, 0.001)
	})
}

func TestGeocodeBatch(t *testing.T) {
	store := createStore(t)
	seedReferenceData(t, store)

	svc := New(store, localOnlySettings())
	defer svc.Close()

	results := svc.GeocodeBatch(context.Background(), []BatchItem{
		{Commune: "Annecy"},
		{Commune: "St-Denis", Department: "93"},
		{Commune: ""},
		{Commune: "Villeneuve-des-Mésanges", Department: "74"},
	})

	// The empty commune is skipped entirely.
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.Equal(t, "74010", results[0].Result.INSEECode)
	assert.True(t, results[1].Success)
	assert.False(t, results[2].Success)
	assert.Nil(t, results[2].Result)
}

func externalTestSettings(serverURL string) conf.GeocoderSettings {
	return conf.GeocoderSettings{
		ExternalEnabled: true,
		BaseURL:         serverURL,
		CountryCodes:    "fr",
		UserAgent:       "nestcard-go-test",
		RateLimit:       time.Millisecond,
		CacheTTL:        time.Minute,
		Timeout:         5 * time.Second,
	}
}

func TestGeocodeExternalTier(t *testing.T) {
	store := createStore(t)

	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Query().Get("q"))
		require.Equal(t, "nestcard-go-test", r.Header.Get("User-Agent"))
		require.Equal(t, "fr", r.URL.Query().Get("countrycodes"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat": "44.933", "lon": "4.891", "display_name": "Bourg-lès-Valence, Drôme, France"}]`))
	}))
	defer server.Close()

	svc := New(store, externalTestSettings(server.URL))
	defer svc.Close()
	ctx := context.Background()

	result, err := svc.Geocode(ctx, Query{Commune: "Bourg-lès-Valence", Department: "Drôme"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, SourceExternal, result.Source)
	assert.InDelta(t, 44.933, result.Latitude, 0.001)
	assert.Equal(t, "Bourg-lès-Valence, Drôme, France", result.DisplayName)
	require.Len(t, requests, 1)
	assert.Equal(t, "Bourg-lès-Valence, Drôme, France", requests[0])

	// Second identical query is served from the cache.
	_, err = svc.Geocode(ctx, Query{Commune: "Bourg-lès-Valence", Department: "Drôme"})
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

func TestGeocodeExternalLandmarkFirst(t *testing.T) {
	store := createStore(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat": "45.1", "lon": "6.1", "display_name": "Les Granges, Annecy, France"}]`))
	}))
	defer server.Close()

	svc := New(store, externalTestSettings(server.URL))
	defer svc.Close()

	result, err := svc.Geocode(context.Background(), Query{
		Commune:  "Annecy",
		Landmark: "Les Granges",
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, SourceExternalLandmark, result.Source)
	assert.Equal(t, PrecisionLandmark, result.Precision)
	assert.Equal(t, 500, result.PrecisionM)
}

func TestGeocodeExternalMiss(t *testing.T) {
	store := createStore(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	svc := New(store, externalTestSettings(server.URL))
	defer svc.Close()

	result, err := svc.Geocode(context.Background(), Query{Commune: "Nulle-Part"})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestGeocodeExternalServerError(t *testing.T) {
	store := createStore(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := New(store, externalTestSettings(server.URL))
	defer svc.Close()

	_, err := svc.Geocode(context.Background(), Query{Commune: "Annecy"})
	require.Error(t, err)
}

func TestDepartmentIsCode(t *testing.T) {
	assert.True(t, departmentIsCode("74"))
	assert.True(t, departmentIsCode("2A"))
	assert.True(t, departmentIsCode("974"))
	assert.False(t, departmentIsCode("Haute-Savoie"))
	assert.False(t, departmentIsCode(""))
}
