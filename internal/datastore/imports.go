package datastore

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HasPendingImport reports whether a transcription already has a pending
// import record.
func (ds *DataStore) HasPendingImport(transcriptionID uint) (bool, error) {
	var count int64
	err := ds.DB.Model(&PendingImport{}).
		Where("transcription_id = ?", transcriptionID).
		Count(&count).Error
	return count > 0, err
}

// CreatePendingImport inserts a new pending import. The unique index on
// transcription_id enforces the at-most-one invariant.
func (ds *DataStore) CreatePendingImport(imp *PendingImport) error {
	if imp.Status == "" {
		imp.Status = StatusPending
	}
	return ds.DB.Create(imp).Error
}

// GetPendingImport fetches a pending import with its references preloaded.
func (ds *DataStore) GetPendingImport(id uint) (*PendingImport, error) {
	var imp PendingImport
	err := ds.DB.
		Preload("Transcription").
		Preload("Candidate").
		Preload("Candidate.Species").
		Preload("Observer").
		First(&imp, id).Error
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

// GetPendingImportByTranscription fetches the pending import, if any, for a
// transcription.
func (ds *DataStore) GetPendingImportByTranscription(transcriptionID uint) (*PendingImport, error) {
	var imp PendingImport
	err := ds.DB.Where("transcription_id = ?", transcriptionID).First(&imp).Error
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

// GetPendingImportsByStatus returns all pending imports with the given
// status, oldest first. An empty status returns every import.
func (ds *DataStore) GetPendingImportsByStatus(status string) ([]PendingImport, error) {
	var imports []PendingImport
	q := ds.DB.Order("id")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&imports).Error
	return imports, err
}

// SetPendingImportStatus updates an import's status and error message.
func (ds *DataStore) SetPendingImportStatus(id uint, status, lastError string) error {
	result := ds.DB.Model(&PendingImport{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "last_error": lastError})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SavePendingImport persists every field of an existing pending import,
// including nullable references that were just attached or cleared.
func (ds *DataStore) SavePendingImport(imp *PendingImport) error {
	return ds.DB.Save(imp).Error
}

// DeletePendingImport removes a pending import row.
func (ds *DataStore) DeletePendingImport(id uint) error {
	return ds.DB.Delete(&PendingImport{}, id).Error
}

// LockPendingImport loads a pending import under an exclusive row lock. Must
// run inside WithTransaction; the lock is held until the transaction ends.
func (ds *DataStore) LockPendingImport(id uint) (*PendingImport, error) {
	var imp PendingImport
	err := ds.DB.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Transcription").
		Preload("Candidate").
		Preload("Candidate.Species").
		Preload("Observer").
		First(&imp, id).Error
	if err != nil {
		return nil, err
	}
	return &imp, nil
}
