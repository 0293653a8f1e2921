package geocoder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/antonholmquist/jason"
	"github.com/patrickmn/go-cache"
	"github.com/tmarcon/nestcard-go/internal/conf"
	"github.com/tmarcon/nestcard-go/internal/errors"
	"golang.org/x/time/rate"
)

// externalClient calls the national geocoding service. Requests are paced by
// a fixed-interval rate limiter (~1 req/s) and answers are cached; the
// service bans clients that hammer it.
type externalClient struct {
	settings   conf.GeocoderSettings
	httpClient *http.Client
	cache      *cache.Cache
	limiter    *rate.Limiter
}

func newExternalClient(settings conf.GeocoderSettings) *externalClient {
	interval := rate.Every(settings.RateLimit)
	return &externalClient{
		settings:   settings,
		httpClient: &http.Client{Timeout: settings.Timeout},
		cache:      cache.New(settings.CacheTTL, settings.CacheTTL*2),
		limiter:    rate.NewLimiter(interval, 1),
	}
}

func (c *externalClient) close() {
	c.cache.Flush()
	c.httpClient.CloseIdleConnections()
}

// search queries the external service for a free-text place query. A miss
// returns (nil, nil).
func (c *externalClient) search(ctx context.Context, query, source string) (*Result, error) {
	cacheKey := source + "|" + query
	if cached, found := c.cache.Get(cacheKey); found {
		if result, ok := cached.(*Result); ok {
			logger.Debug("external cache hit", "query", query)
			return result, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	requestURL := fmt.Sprintf("%s?%s", c.settings.BaseURL, url.Values{
		"q":            {query},
		"format":       {"json"},
		"limit":        {"1"},
		"countrycodes": {c.settings.CountryCodes},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.settings.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryNetwork).
			Component("geocoder").
			Context("query", query).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("external geocoder returned status %d: %s", resp.StatusCode, body).
			Category(errors.CategoryNetwork).
			Component("geocoder").
			Context("query", query).
			Build()
	}

	result, err := parseSearchResponse(resp.Body, source)
	if err != nil {
		return nil, err
	}

	// Cache hits and misses alike, a miss re-queried every time would burn
	// the rate budget.
	c.cache.Set(cacheKey, result, cache.DefaultExpiration)

	if result != nil {
		logger.Info("external geocoder hit", "query", query, "display_name", result.DisplayName)
	}
	return result, nil
}

// parseSearchResponse reads the service's JSON document: an array of places
// with string "lat"/"lon" fields and a display_name.
func parseSearchResponse(body io.Reader, source string) (*Result, error) {
	root, err := jason.NewValueFromReader(body)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryJSONParsing).
			Component("geocoder").
			Build()
	}

	places, err := root.Array()
	if err != nil {
		return nil, errors.Newf("unexpected geocoder response shape: %v", err).
			Category(errors.CategoryJSONParsing).
			Component("geocoder").
			Build()
	}
	if len(places) == 0 {
		return nil, nil
	}

	place, err := places[0].Object()
	if err != nil {
		return nil, fmt.Errorf("reading first place: %w", err)
	}

	latStr, err := place.GetString("lat")
	if err != nil {
		return nil, fmt.Errorf("place missing lat: %w", err)
	}
	lonStr, err := place.GetString("lon")
	if err != nil {
		return nil, fmt.Errorf("place missing lon: %w", err)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing lat %q: %w", latStr, err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing lon %q: %w", lonStr, err)
	}

	displayName, _ := place.GetString("display_name")

	return &Result{
		Latitude:    lat,
		Longitude:   lon,
		Coordinates: formatCoordinates(lat, lon),
		Precision:   PrecisionCommune,
		PrecisionM:  communeRadiusM,
		Source:      source,
		DisplayName: displayName,
	}, nil
}
