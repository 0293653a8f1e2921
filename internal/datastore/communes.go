package datastore

import (
	"strings"
	"unicode"

	"github.com/tmarcon/nestcard-go/internal/textutil"
	"gorm.io/gorm"
)

// departmentIsCode reports whether a department string looks like a
// department code ("74", "2A") rather than a name ("Haute-Savoie").
func departmentIsCode(department string) bool {
	if len(department) == 0 || len(department) > 3 {
		return false
	}
	for _, r := range department {
		if !unicode.IsDigit(r) && r != 'A' && r != 'B' && r != 'a' && r != 'b' {
			return false
		}
	}
	return true
}

func (ds *DataStore) communeDeptScope(q *gorm.DB, department string) *gorm.DB {
	if departmentIsCode(department) {
		return q.Where("department_code = ?", department)
	}
	return q.Where("LOWER(department) LIKE ?", "%"+strings.ToLower(department)+"%")
}

// FindCommuneByNameAndDepartment matches a normalized name key against the
// reference store scoped to a department code or name.
func (ds *DataStore) FindCommuneByNameAndDepartment(name, department string) (*Commune, error) {
	var commune Commune
	q := ds.DB.Where("name_key = ?", textutil.NormalizeCommuneName(name))
	q = ds.communeDeptScope(q, department)
	if err := q.First(&commune).Error; err != nil {
		return nil, err
	}
	return &commune, nil
}

// FindCommuneByNameAndPostalCode matches a normalized name key plus postal
// code.
func (ds *DataStore) FindCommuneByNameAndPostalCode(name, postalCode string) (*Commune, error) {
	var commune Commune
	err := ds.DB.
		Where("name_key = ? AND postal_code = ?", textutil.NormalizeCommuneName(name), postalCode).
		First(&commune).Error
	if err != nil {
		return nil, err
	}
	return &commune, nil
}

// FindCommunesByName returns every commune matching the normalized name key.
// Callers accept the result only when it is globally unique.
func (ds *DataStore) FindCommunesByName(name string) ([]Commune, error) {
	var communes []Commune
	err := ds.DB.Where("name_key = ?", textutil.NormalizeCommuneName(name)).Find(&communes).Error
	return communes, err
}

// FindCommuneFuzzy looks for a commune whose name contains the given part,
// scoped to a department.
func (ds *DataStore) FindCommuneFuzzy(namePart, department string) (*Commune, error) {
	var commune Commune
	key := textutil.NormalizeCommuneName(namePart)
	q := ds.DB.Where("name_key LIKE ?", "%"+key+"%")
	q = ds.communeDeptScope(q, department)
	if err := q.First(&commune).Error; err != nil {
		return nil, err
	}
	return &commune, nil
}

// FindCommuneByINSEE looks up a commune by its INSEE code.
func (ds *DataStore) FindCommuneByINSEE(code string) (*Commune, error) {
	var commune Commune
	if err := ds.DB.Where("insee_code = ?", code).First(&commune).Error; err != nil {
		return nil, err
	}
	return &commune, nil
}

// FindFormerCommune looks up an absorbed commune by normalized name, with
// its successor preloaded. Department is optional.
func (ds *DataStore) FindFormerCommune(name, department string) (*FormerCommune, error) {
	var former FormerCommune
	q := ds.DB.Preload("Successor").
		Where("name_key = ?", textutil.NormalizeCommuneName(name))
	if department != "" {
		q = q.Where("department_code = ?", department)
	}
	if err := q.First(&former).Error; err != nil {
		return nil, err
	}
	return &former, nil
}

// InsertCommunes bulk-inserts current communes, computing the lookup key for
// rows that lack one. Returns the number inserted.
func (ds *DataStore) InsertCommunes(communes []Commune) (int, error) {
	if len(communes) == 0 {
		return 0, nil
	}
	for i := range communes {
		if communes[i].NameKey == "" {
			communes[i].NameKey = textutil.NormalizeCommuneName(communes[i].Name)
		}
	}
	if err := ds.DB.CreateInBatches(communes, 500).Error; err != nil {
		return 0, err
	}
	return len(communes), nil
}

// InsertFormerCommunes bulk-inserts absorbed communes.
func (ds *DataStore) InsertFormerCommunes(former []FormerCommune) (int, error) {
	if len(former) == 0 {
		return 0, nil
	}
	for i := range former {
		if former[i].NameKey == "" {
			former[i].NameKey = textutil.NormalizeCommuneName(former[i].Name)
		}
	}
	if err := ds.DB.CreateInBatches(former, 500).Error; err != nil {
		return 0, err
	}
	return len(former), nil
}

// DeleteAllCommunes empties the current-communes table for a forced reload.
func (ds *DataStore) DeleteAllCommunes() (int64, error) {
	result := ds.DB.Where("1 = 1").Delete(&Commune{})
	return result.RowsAffected, result.Error
}

// DeleteAllFormerCommunes empties the absorbed-communes table.
func (ds *DataStore) DeleteAllFormerCommunes() (int64, error) {
	result := ds.DB.Where("1 = 1").Delete(&FormerCommune{})
	return result.RowsAffected, result.Error
}

// CountCommunes returns the size of the current-communes table.
func (ds *DataStore) CountCommunes() (int64, error) {
	var count int64
	err := ds.DB.Model(&Commune{}).Count(&count).Error
	return count, err
}
