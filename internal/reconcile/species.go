package reconcile

import (
	"strings"

	"github.com/agext/levenshtein"
	"github.com/tmarcon/nestcard-go/internal/datastore"
)

// matchSpecies computes a case-insensitive similarity ratio between the
// candidate's raw name and every admin-approved canonical species, keeping
// the best score. The match is accepted and persisted only when the ratio
// reaches the configured threshold; below it the candidate stays unresolved
// for manual validation. Runs exactly once, at candidate creation; when two
// entries share the top score the first one encountered wins.
func (s *Service) matchSpecies(candidate *datastore.SpeciesCandidate) (bool, error) {
	catalog, err := s.store.GetAdminValidatedSpecies()
	if err != nil {
		return false, err
	}

	threshold := s.settings.Reconcile.SimilarityThreshold
	rawLower := strings.ToLower(candidate.RawName)

	var best *datastore.Species
	bestScore := 0.0

	for i := range catalog {
		score := levenshtein.Similarity(rawLower, strings.ToLower(catalog[i].Name), nil)
		if score > bestScore {
			bestScore = score
			if score >= threshold {
				best = &catalog[i]
			}
		}
	}

	candidate.Similarity = bestScore
	if best == nil {
		logger.Debug("no species match above threshold",
			"raw_name", candidate.RawName, "best_score", bestScore)
		return false, s.store.SaveSpeciesCandidate(candidate)
	}

	candidate.SpeciesID = &best.ID
	candidate.Species = best
	if err := s.store.SaveSpeciesCandidate(candidate); err != nil {
		return false, err
	}

	logger.Info("species matched",
		"raw_name", candidate.RawName,
		"species", best.Name,
		"score", bestScore)
	return true, nil
}
