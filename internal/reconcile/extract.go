package reconcile

import (
	"context"

	"github.com/tmarcon/nestcard-go/internal/geocoder"
)

// ExtractResult aggregates one candidate extraction pass.
type ExtractResult struct {
	SpeciesAdded     int
	ObserversCreated int
	CommunesGeocoded int
	Errors           []string
}

// ExtractCandidates walks every unprocessed transcription and builds the
// reconciliation candidates: species candidates (matched once, at
// creation), observer users (always re-resolved, even for transcriptions
// whose candidate already existed) and a non-persisting geocoding probe of
// the commune for operator feedback. Per-row failures are logged and the
// pass continues.
func (s *Service) ExtractCandidates(ctx context.Context) (ExtractResult, error) {
	result := ExtractResult{}

	transcriptions, err := s.store.GetUnprocessedTranscriptions()
	if err != nil {
		return result, err
	}

	for i := range transcriptions {
		t := &transcriptions[i]

		form, err := s.parseForm(t)
		if err != nil {
			logger.Error("candidate extraction failed", "source_file", t.SourceFile, "error", err)
			result.Errors = append(result.Errors, t.SourceFile+": "+err.Error())
			continue
		}

		if form.General != nil && form.General.Species != nil {
			candidate, created, err := s.store.GetOrCreateSpeciesCandidate(*form.General.Species)
			if err != nil {
				logger.Error("species candidate failed", "source_file", t.SourceFile, "error", err)
				result.Errors = append(result.Errors, t.SourceFile+": "+err.Error())
			} else if created {
				result.SpeciesAdded++
				if _, err := s.matchSpecies(candidate); err != nil {
					logger.Error("species match failed",
						"raw_name", candidate.RawName, "error", err)
				}
			}
		}

		if form.General != nil && form.General.Observer != nil {
			_, created, err := s.ResolveObserver(*form.General.Observer)
			if err != nil {
				logger.Error("observer resolution failed", "source_file", t.SourceFile, "error", err)
				result.Errors = append(result.Errors, t.SourceFile+": "+err.Error())
			} else if created {
				result.ObserversCreated++
			}
		}

		// Probe only: coordinates are not stored at this stage, the
		// finalizer re-runs the geocoder before writing anything.
		if commune := form.CommuneField(); commune != nil && *commune != UnspecifiedCommune {
			department := ""
			if form.Location != nil && form.Location.Department != nil {
				department = *form.Location.Department
			}
			geoResult, err := s.geo.Geocode(ctx, geocoder.Query{
				Commune:    *commune,
				Department: department,
			})
			switch {
			case err != nil:
				logger.Error("geocoding probe failed", "commune", *commune, "error", err)
			case geoResult != nil:
				result.CommunesGeocoded++
				logger.Info("commune resolved",
					"commune", *commune,
					"display_name", geoResult.DisplayName,
					"source", geoResult.Source,
					"coordinates", geoResult.Coordinates)
			default:
				logger.Warn("commune not found", "commune", *commune)
			}
		}
	}

	return result, nil
}
