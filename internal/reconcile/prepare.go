package reconcile

import (
	"github.com/tmarcon/nestcard-go/internal/datastore"
	"github.com/tmarcon/nestcard-go/internal/errors"
	"gorm.io/gorm"
)

// PrepareResult aggregates one import preparation pass.
type PrepareResult struct {
	Created int
	Errors  []string
}

// PrepareImports creates a pending import for every unprocessed
// transcription that does not have one yet. The species candidate is
// re-resolved (not re-matched) and the observer re-resolved; either
// reference may stay nil, finalize checks the preconditions. The pass is
// idempotent: transcriptions with an existing pending import are skipped.
func (s *Service) PrepareImports() (PrepareResult, error) {
	result := PrepareResult{}

	transcriptions, err := s.store.GetUnprocessedTranscriptions()
	if err != nil {
		return result, err
	}

	for i := range transcriptions {
		t := &transcriptions[i]

		exists, err := s.store.HasPendingImport(t.ID)
		if err != nil {
			result.Errors = append(result.Errors, t.SourceFile+": "+err.Error())
			continue
		}
		if exists {
			continue
		}

		form, err := s.parseForm(t)
		if err != nil {
			logger.Error("import preparation failed", "source_file", t.SourceFile, "error", err)
			result.Errors = append(result.Errors, t.SourceFile+": "+err.Error())
			continue
		}

		imp := &datastore.PendingImport{
			TranscriptionID: t.ID,
			Status:          datastore.StatusPending,
		}

		if form.General != nil && form.General.Species != nil {
			candidate, err := s.store.GetSpeciesCandidateByRawName(*form.General.Species)
			switch {
			case err == nil:
				imp.CandidateID = &candidate.ID
			case !errors.Is(err, gorm.ErrRecordNotFound):
				logger.Error("candidate lookup failed", "source_file", t.SourceFile, "error", err)
			}
		}

		if form.General != nil && form.General.Observer != nil {
			observer, _, err := s.ResolveObserver(*form.General.Observer)
			if err != nil {
				logger.Error("observer resolution failed", "source_file", t.SourceFile, "error", err)
			} else {
				imp.ObserverID = &observer.ID
			}
		}

		if err := s.store.CreatePendingImport(imp); err != nil {
			logger.Error("pending import creation failed", "source_file", t.SourceFile, "error", err)
			result.Errors = append(result.Errors, t.SourceFile+": "+err.Error())
			continue
		}
		result.Created++
	}

	return result, nil
}
