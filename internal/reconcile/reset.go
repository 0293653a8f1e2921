package reconcile

import (
	"fmt"

	"github.com/tmarcon/nestcard-go/internal/datastore"
	"github.com/tmarcon/nestcard-go/internal/errors"
	"gorm.io/gorm"
)

// Reset rewinds one import so the pipeline can run again from preparation:
// the materialized card (if any) is deleted with its dependent rows, the
// pending import removed and the transcription marked unprocessed.
func (s *Service) Reset(importID uint) error {
	imp, err := s.store.GetPendingImport(importID)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryImportState).
			Component("reconcile").
			Context("import_id", importID).
			Build()
	}
	return s.reset(imp, &imp.Transcription)
}

// ResetBySource rewinds the import attached to a transcription, looked up by
// its source file. A transcription without a pending import only has its
// processed flag cleared.
func (s *Service) ResetBySource(sourceFile string) error {
	t, err := s.store.GetTranscriptionBySource(sourceFile)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryImportState).
			Component("reconcile").
			Context("source_file", sourceFile).
			Build()
	}

	imp, err := s.store.GetPendingImportByTranscription(t.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.reset(imp, t)
}

// reset performs the actual rewind. imp may be nil.
func (s *Service) reset(imp *datastore.PendingImport, t *datastore.RawTranscription) error {
	return s.store.WithTransaction(func(tx datastore.Interface) error {
		if imp != nil {
			if imp.CardID != nil {
				if err := tx.DeleteCard(*imp.CardID); err != nil {
					return err
				}
				logger.Info("card deleted", "card_number", *imp.CardID, "source_file", t.SourceFile)
			}
			if err := tx.DeletePendingImport(imp.ID); err != nil {
				return err
			}
		}
		if err := tx.SetTranscriptionProcessed(t.ID, false); err != nil {
			return err
		}
		logger.Info("import reset", "source_file", t.SourceFile)
		return nil
	})
}

// ResetResult aggregates one bulk reset pass.
type ResetResult struct {
	Reset  int
	Errors []string
}

// ResetByStatus rewinds every import currently in the given status, each in
// its own transaction so one failure does not block the rest.
func (s *Service) ResetByStatus(status string) (ResetResult, error) {
	result := ResetResult{}

	imports, err := s.store.GetPendingImportsByStatus(status)
	if err != nil {
		return result, err
	}

	for i := range imports {
		if err := s.Reset(imports[i].ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("import %d: %v", imports[i].ID, err))
			continue
		}
		result.Reset++
	}
	return result, nil
}
