// Package geocoder resolves transcribed commune names to coordinates through
// an ordered fallback chain: local reference store first, then the
// historical merged-communes store, then a rate-limited external service.
package geocoder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmarcon/nestcard-go/internal/conf"
	"github.com/tmarcon/nestcard-go/internal/datastore"
	"github.com/tmarcon/nestcard-go/internal/errors"
	"github.com/tmarcon/nestcard-go/internal/logging"
	"gorm.io/gorm"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	serviceLevelVar.Set(slog.LevelDebug)
	logger, closeLogger = logging.ForService("geocoder", serviceLevelVar)
}

// Provenance tags naming the tier that produced a result.
const (
	SourceLocal            = "local"
	SourceLocalPostal      = "local_postal"
	SourceLocalUnique      = "local_unique"
	SourceLocalFuzzy       = "local_fuzzy"
	SourceFormerCommune    = "former_commune"
	SourceExternal         = "external"
	SourceExternalLandmark = "external_landmark"
)

// Precision tiers and their uncertainty radii.
const (
	PrecisionCommune  = "commune"
	PrecisionLandmark = "landmark"

	communeRadiusM  = 5000
	landmarkRadiusM = 500
)

// Query carries the free-text fields to resolve. Only Commune is required.
type Query struct {
	Commune    string
	Department string // name or code
	PostalCode string
	Landmark   string // lieu-dit, used by the external tier only
}

// Result is a successful resolution.
type Result struct {
	Latitude    float64
	Longitude   float64
	Coordinates string // "lat,lon"
	Precision   string // commune or landmark
	PrecisionM  int    // uncertainty radius in meters
	Source      string // provenance tier tag
	DisplayName string
	INSEECode   string
	PostalCode  string
	Altitude    *int
	Merged      bool   // true when resolved through the historical store
	MergedInto  string // successor commune name when Merged
}

// Service is the long-lived geocoder. It holds only the reference store
// handle and the external client with its cache and rate limiter; construct
// one instance and share it by injection.
type Service struct {
	store    datastore.Interface
	external *externalClient
	settings conf.GeocoderSettings
}

// New creates a geocoder service backed by the given reference store.
func New(store datastore.Interface, settings conf.GeocoderSettings) *Service {
	s := &Service{
		store:    store,
		settings: settings,
	}
	if settings.ExternalEnabled {
		s.external = newExternalClient(settings)
	}
	logger.Info("geocoder initialized",
		"external_enabled", settings.ExternalEnabled,
		"base_url", settings.BaseURL,
		"rate_limit", settings.RateLimit)
	return s
}

// Close releases the external client resources.
func (s *Service) Close() {
	if s.external != nil {
		s.external.close()
	}
	if closeLogger != nil {
		_ = closeLogger()
	}
}

// Geocode resolves a commune query through the tier chain, first hit wins.
// A total miss returns (nil, nil): not found is never fatal to callers, the
// raw string is kept downstream.
func (s *Service) Geocode(ctx context.Context, q Query) (*Result, error) {
	if q.Commune == "" {
		return nil, nil
	}

	if result := s.localLookup(q); result != nil {
		return result, nil
	}

	if result := s.formerCommuneLookup(q); result != nil {
		return result, nil
	}

	if s.external == nil {
		logger.Warn("commune not found, external tier disabled",
			"commune", q.Commune, "department", q.Department)
		return nil, nil
	}

	result, err := s.externalLookup(ctx, q)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryGeocoding).
			Component("geocoder").
			Context("commune", q.Commune).
			Build()
	}
	if result == nil {
		logger.Warn("commune not found", "commune", q.Commune, "department", q.Department)
	}
	return result, nil
}

// localLookup runs tiers 1-4 against the current-communes store.
func (s *Service) localLookup(q Query) *Result {
	// Tier 1: exact name + department
	if q.Department != "" {
		if commune, err := s.store.FindCommuneByNameAndDepartment(q.Commune, q.Department); err == nil {
			return localResult(commune, SourceLocal)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("local lookup failed", "commune", q.Commune, "error", err)
		}
	}

	// Tier 2: exact name + postal code
	if q.PostalCode != "" {
		if commune, err := s.store.FindCommuneByNameAndPostalCode(q.Commune, q.PostalCode); err == nil {
			return localResult(commune, SourceLocalPostal)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("local postal lookup failed", "commune", q.Commune, "error", err)
		}
	}

	// Tier 3: name alone, accepted only when globally unique
	if communes, err := s.store.FindCommunesByName(q.Commune); err == nil && len(communes) == 1 {
		return localResult(&communes[0], SourceLocalUnique)
	}

	// Tier 4: fuzzy contains, scoped to department
	if q.Department != "" {
		if commune, err := s.store.FindCommuneFuzzy(q.Commune, q.Department); err == nil {
			logger.Info("fuzzy commune match", "input", q.Commune, "matched", commune.Name)
			return localResult(commune, SourceLocalFuzzy)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("fuzzy lookup failed", "commune", q.Commune, "error", err)
		}
	}

	return nil
}

// formerCommuneLookup is tier 5: redirect an absorbed commune to its current
// successor, preferring the absorbed commune's own coordinates.
func (s *Service) formerCommuneLookup(q Query) *Result {
	department := ""
	if departmentIsCode(q.Department) {
		department = q.Department
	}

	former, err := s.store.FindFormerCommune(q.Commune, department)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("former commune lookup failed", "commune", q.Commune, "error", err)
		}
		return nil
	}

	successor := former.Successor
	result := &Result{
		Latitude:    successor.Latitude,
		Longitude:   successor.Longitude,
		Precision:   PrecisionCommune,
		PrecisionM:  communeRadiusM,
		Source:      SourceFormerCommune,
		DisplayName: fmt.Sprintf("%s, %s, France", successor.Name, successor.Department),
		INSEECode:   successor.INSEECode,
		PostalCode:  successor.PostalCode,
		Altitude:    successor.Altitude,
		Merged:      true,
		MergedInto:  successor.Name,
	}
	if former.Latitude != nil && former.Longitude != nil {
		result.Latitude = *former.Latitude
		result.Longitude = *former.Longitude
	}
	if former.Altitude != nil {
		result.Altitude = former.Altitude
	}
	result.Coordinates = formatCoordinates(result.Latitude, result.Longitude)

	logger.Info("former commune redirect",
		"input", q.Commune, "successor", successor.Name)
	return result
}

// externalLookup is tier 6. With a landmark the finer query is tried first.
func (s *Service) externalLookup(ctx context.Context, q Query) (*Result, error) {
	if q.Landmark != "" {
		result, err := s.external.search(ctx, landmarkQuery(q), SourceExternalLandmark)
		if err != nil {
			logger.Warn("landmark lookup failed, falling back to commune",
				"landmark", q.Landmark, "error", err)
		} else if result != nil {
			result.Precision = PrecisionLandmark
			result.PrecisionM = landmarkRadiusM
			return result, nil
		}
	}
	return s.external.search(ctx, communeQuery(q), SourceExternal)
}

func localResult(commune *datastore.Commune, source string) *Result {
	return &Result{
		Latitude:    commune.Latitude,
		Longitude:   commune.Longitude,
		Coordinates: formatCoordinates(commune.Latitude, commune.Longitude),
		Precision:   PrecisionCommune,
		PrecisionM:  communeRadiusM,
		Source:      source,
		DisplayName: fmt.Sprintf("%s, %s, France", commune.Name, commune.Department),
		INSEECode:   commune.INSEECode,
		PostalCode:  commune.PostalCode,
		Altitude:    commune.Altitude,
	}
}

func formatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%g,%g", lat, lon)
}

func communeQuery(q Query) string {
	if q.Department != "" {
		return fmt.Sprintf("%s, %s, France", q.Commune, q.Department)
	}
	return fmt.Sprintf("%s, France", q.Commune)
}

func landmarkQuery(q Query) string {
	query := q.Landmark + ", " + q.Commune
	if q.Department != "" {
		query += ", " + q.Department
	}
	return query + ", France"
}

// departmentIsCode reports whether the department looks like a code rather
// than a name.
func departmentIsCode(department string) bool {
	if len(department) == 0 || len(department) > 3 {
		return false
	}
	for _, r := range department {
		switch {
		case r >= '0' && r <= '9':
		case r == 'A' || r == 'B' || r == 'a' || r == 'b':
		default:
			return false
		}
	}
	return true
}
