package datastore

import (
	"github.com/tmarcon/nestcard-go/internal/errors"
	"gorm.io/gorm"
)

// GetOrCreateSpeciesCandidate returns the candidate for a raw species name,
// creating it on first sight. The unique index on raw_name is the real guard
// under concurrent writers: a lost insert race falls back to re-reading the
// winner's row.
func (ds *DataStore) GetOrCreateSpeciesCandidate(rawName string) (*SpeciesCandidate, bool, error) {
	var candidate SpeciesCandidate
	err := ds.DB.Preload("Species").Where("raw_name = ?", rawName).First(&candidate).Error
	if err == nil {
		return &candidate, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	candidate = SpeciesCandidate{RawName: rawName}
	if err := ds.DB.Create(&candidate).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var winner SpeciesCandidate
			if err := ds.DB.Preload("Species").Where("raw_name = ?", rawName).First(&winner).Error; err != nil {
				return nil, false, err
			}
			return &winner, false, nil
		}
		return nil, false, err
	}
	return &candidate, true, nil
}

// GetSpeciesCandidateByRawName fetches a candidate with its matched species
// preloaded. Returns gorm.ErrRecordNotFound when absent.
func (ds *DataStore) GetSpeciesCandidateByRawName(rawName string) (*SpeciesCandidate, error) {
	var candidate SpeciesCandidate
	if err := ds.DB.Preload("Species").Where("raw_name = ?", rawName).First(&candidate).Error; err != nil {
		return nil, err
	}
	return &candidate, nil
}

// SaveSpeciesCandidate persists match results on an existing candidate.
func (ds *DataStore) SaveSpeciesCandidate(candidate *SpeciesCandidate) error {
	return ds.DB.Save(candidate).Error
}

// GetAdminValidatedSpecies returns the admin-approved canonical catalog.
func (ds *DataStore) GetAdminValidatedSpecies() ([]Species, error) {
	var species []Species
	err := ds.DB.Where("admin_validated = ?", true).Find(&species).Error
	return species, err
}
