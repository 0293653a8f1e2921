// interfaces.go defines the interface for the database operations used by
// the import pipeline.
package datastore

import (
	"github.com/tmarcon/nestcard-go/internal/conf"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error

	// Raw transcriptions
	InsertTranscription(sourceFile, payload string) (created bool, err error)
	GetTranscriptionBySource(sourceFile string) (*RawTranscription, error)
	GetUnprocessedTranscriptions() ([]RawTranscription, error)
	SetTranscriptionProcessed(id uint, processed bool) error

	// Species candidates and canonical catalog
	GetOrCreateSpeciesCandidate(rawName string) (candidate *SpeciesCandidate, created bool, err error)
	GetSpeciesCandidateByRawName(rawName string) (*SpeciesCandidate, error)
	SaveSpeciesCandidate(candidate *SpeciesCandidate) error
	GetAdminValidatedSpecies() ([]Species, error)

	// Observers
	FindTranscriptionUser(firstName, lastName string) (*User, error)
	UsernameExists(username string) (bool, error)
	CreateUser(user *User) error

	// Pending imports
	HasPendingImport(transcriptionID uint) (bool, error)
	CreatePendingImport(imp *PendingImport) error
	GetPendingImport(id uint) (*PendingImport, error)
	GetPendingImportByTranscription(transcriptionID uint) (*PendingImport, error)
	GetPendingImportsByStatus(status string) ([]PendingImport, error)
	SetPendingImportStatus(id uint, status, lastError string) error
	SavePendingImport(imp *PendingImport) error
	DeletePendingImport(id uint) error
	LockPendingImport(id uint) (*PendingImport, error)

	// Domain records
	CreateCard(card *Card) error
	DeleteCard(number uint) error
	GetCard(number uint) (*Card, error)

	// Commune reference store
	FindCommuneByNameAndDepartment(name, department string) (*Commune, error)
	FindCommuneByNameAndPostalCode(name, postalCode string) (*Commune, error)
	FindCommunesByName(name string) ([]Commune, error)
	FindCommuneByINSEE(code string) (*Commune, error)
	FindCommuneFuzzy(namePart, department string) (*Commune, error)
	FindFormerCommune(name, department string) (*FormerCommune, error)
	InsertCommunes(communes []Commune) (int, error)
	InsertFormerCommunes(former []FormerCommune) (int, error)
	DeleteAllCommunes() (int64, error)
	DeleteAllFormerCommunes() (int64, error)
	CountCommunes() (int64, error)

	// WithTransaction runs fn against a transaction-backed store. Any error
	// returned by fn rolls the transaction back.
	WithTransaction(fn func(tx Interface) error) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store instance based on the configured output.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// Open is a no-op on the base store; SQLiteStore and MySQLStore override it.
func (ds *DataStore) Open() error { return nil }

// Close is a no-op on the base store.
func (ds *DataStore) Close() error { return nil }

// WithTransaction runs fn against a store bound to a database transaction.
func (ds *DataStore) WithTransaction(fn func(tx Interface) error) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		return fn(&DataStore{DB: tx})
	})
}
