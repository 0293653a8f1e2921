package datastore

import (
	"github.com/tmarcon/nestcard-go/internal/errors"
	"gorm.io/gorm"
)

// InsertTranscription stores a new raw transcription unless one already
// exists for the source file. Returns created=false on the duplicate path so
// re-ingesting a directory is a no-op for known files.
func (ds *DataStore) InsertTranscription(sourceFile, payload string) (bool, error) {
	var existing RawTranscription
	err := ds.DB.Where("source_file = ?", sourceFile).First(&existing).Error
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("source_file", sourceFile).
			Build()
	}

	t := RawTranscription{SourceFile: sourceFile, Payload: payload}
	if err := ds.DB.Create(&t).Error; err != nil {
		// A concurrent writer may have won the unique index race.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("datastore").
			Context("source_file", sourceFile).
			Build()
	}
	return true, nil
}

// GetTranscriptionBySource fetches a transcription by its unique source-file
// identifier.
func (ds *DataStore) GetTranscriptionBySource(sourceFile string) (*RawTranscription, error) {
	var t RawTranscription
	if err := ds.DB.Where("source_file = ?", sourceFile).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetUnprocessedTranscriptions returns all transcriptions not yet finalized,
// oldest first.
func (ds *DataStore) GetUnprocessedTranscriptions() ([]RawTranscription, error) {
	var transcriptions []RawTranscription
	err := ds.DB.Where("processed = ?", false).Order("id").Find(&transcriptions).Error
	return transcriptions, err
}

// SetTranscriptionProcessed flips the processed flag on a transcription.
func (ds *DataStore) SetTranscriptionProcessed(id uint, processed bool) error {
	result := ds.DB.Model(&RawTranscription{}).Where("id = ?", id).Update("processed", processed)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
