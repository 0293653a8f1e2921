package geocoder

import "context"

// BatchItem is one {commune, department} pair to resolve.
type BatchItem struct {
	Commune    string
	Department string
}

// BatchResult pairs an input with its resolution outcome.
type BatchResult struct {
	Commune    string
	Department string
	Result     *Result
	Success    bool
}

// GeocodeBatch resolves a list of commune/department pairs. The rate limit
// applies only to items that reach the external tier; local hits are not
// delayed. Items with an empty commune are skipped.
func (s *Service) GeocodeBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, 0, len(items))

	for _, item := range items {
		if item.Commune == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		result, err := s.Geocode(ctx, Query{Commune: item.Commune, Department: item.Department})
		if err != nil {
			logger.Error("batch geocode failed",
				"commune", item.Commune, "department", item.Department, "error", err)
			result = nil
		}

		results = append(results, BatchResult{
			Commune:    item.Commune,
			Department: item.Department,
			Result:     result,
			Success:    result != nil,
		})
	}

	return results
}
