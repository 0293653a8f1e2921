// model.go defines the data model for the transcription import pipeline and
// the domain records it materializes.
package datastore

import "time"

// Import status values for PendingImport.Status.
const (
	StatusPending  = "pending"
	StatusError    = "error"
	StatusComplete = "complete"
)

// RawTranscription is one ingested OCR output file with its parsed payload.
// Immutable once created except for the Processed flag.
type RawTranscription struct {
	ID         uint   `gorm:"primaryKey"`
	SourceFile string `gorm:"uniqueIndex;not null;size:255"` // unique source-file identifier
	Payload    string `gorm:"type:text"`                     // serialized JSON payload
	Processed  bool   `gorm:"index;default:false"`
	CreatedAt  time.Time
}

// SpeciesCandidate is a raw, as-transcribed species name awaiting or holding
// a canonical match. First-write-wins on RawName.
type SpeciesCandidate struct {
	ID                uint   `gorm:"primaryKey"`
	RawName           string `gorm:"uniqueIndex;not null;size:100"`
	SpeciesID         *uint  `gorm:"index"`
	Species           *Species
	ManuallyValidated bool
	Similarity        float64 // best ratio found at creation time, in [0,1]
}

// User is an observer account. Accounts created by the observer resolver are
// flagged FromTranscription and auto-validated.
type User struct {
	ID                uint   `gorm:"primaryKey"`
	Username          string `gorm:"uniqueIndex;not null;size:150"`
	Email             string `gorm:"size:254"`
	FirstName         string `gorm:"size:150"`
	LastName          string `gorm:"size:150"`
	PasswordHash      string `gorm:"size:128"`
	FromTranscription bool   `gorm:"index"`
	Validated         bool
	Role              string `gorm:"size:30"`
	CreatedAt         time.Time
}

// PendingImport tracks resolution and finalize state for one
// RawTranscription. At most one per transcription.
type PendingImport struct {
	ID              uint             `gorm:"primaryKey"`
	TranscriptionID uint             `gorm:"uniqueIndex;not null"`
	Transcription   RawTranscription `gorm:"foreignKey:TranscriptionID;constraint:OnDelete:CASCADE"`
	CardID          *uint            `gorm:"index"`
	Card            *Card            `gorm:"foreignKey:CardID;constraint:OnDelete:SET NULL"`
	CandidateID     *uint
	Candidate       *SpeciesCandidate `gorm:"foreignKey:CandidateID;constraint:OnDelete:SET NULL"`
	ObserverID      *uint
	Observer        *User  `gorm:"foreignKey:ObserverID;constraint:OnDelete:SET NULL"`
	Status          string `gorm:"size:20;index;default:pending"`
	LastError       string `gorm:"type:text"`
	CreatedAt       time.Time
}

// Species is one entry of the administrator-curated canonical catalog.
type Species struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"uniqueIndex;not null;size:100"`
	ScientificName string `gorm:"size:100"`
	EnglishName    string `gorm:"size:100"`
	AdminValidated bool   `gorm:"index"`
}

// Commune is one current French commune from the national reference store.
type Commune struct {
	ID             uint   `gorm:"primaryKey"`
	INSEECode      string `gorm:"column:insee_code;uniqueIndex;not null;size:5"`
	Name           string `gorm:"not null;size:100"`
	NameKey        string `gorm:"index;not null;size:100"` // normalized uppercase accentless lookup key
	PostalCode     string `gorm:"index;size:5"`
	Department     string `gorm:"size:100"`
	DepartmentCode string `gorm:"index;size:3"`
	Region         string `gorm:"size:100"`
	Latitude       float64
	Longitude      float64
	Altitude       *int
	Population     int
	AreaKm2        float64
}

// FormerCommune maps an absorbed commune to its current successor. Its own
// coordinates, when present, are preferred over the successor's.
type FormerCommune struct {
	ID             uint    `gorm:"primaryKey"`
	INSEECode      string  `gorm:"column:insee_code;uniqueIndex;not null;size:5"`
	Name           string  `gorm:"not null;size:100"`
	NameKey        string  `gorm:"index;not null;size:100"`
	SuccessorID    uint    `gorm:"index;not null"`
	Successor      Commune `gorm:"foreignKey:SuccessorID"`
	Department     string  `gorm:"size:100"`
	DepartmentCode string  `gorm:"index;size:3"`
	MergedAt       *time.Time
	Latitude       *float64
	Longitude      *float64
	Altitude       *int
	Comment        string `gorm:"type:text"`
}

// Card is one materialized nest-record card. Dependent rows cascade on
// delete so a reset removes the whole bundle.
type Card struct {
	Number            uint    `gorm:"primaryKey;autoIncrement"`
	ObserverID        uint    `gorm:"index;not null"`
	Observer          User    `gorm:"foreignKey:ObserverID"`
	SpeciesID         uint    `gorm:"index;not null"`
	Species           Species `gorm:"foreignKey:SpeciesID"`
	Year              int
	ImagePath         string `gorm:"size:255"`
	JSONPath          string `gorm:"size:255"`
	FromTranscription bool
	CreatedAt         time.Time

	Location     *Location     `gorm:"foreignKey:CardNumber;constraint:OnDelete:CASCADE"`
	Nest         *Nest         `gorm:"foreignKey:CardNumber;constraint:OnDelete:CASCADE"`
	Visits       []Visit       `gorm:"foreignKey:CardNumber;constraint:OnDelete:CASCADE"`
	Summary      *Summary      `gorm:"foreignKey:CardNumber;constraint:OnDelete:CASCADE"`
	FailureCause *FailureCause `gorm:"foreignKey:CardNumber;constraint:OnDelete:CASCADE"`
	Remarks      []Remark      `gorm:"foreignKey:CardNumber;constraint:OnDelete:CASCADE"`
}

// Location is where the nest was observed. Commune holds either the canonical
// name from geocoding or the raw transcribed string after a miss.
type Location struct {
	ID            uint   `gorm:"primaryKey"`
	CardNumber    uint   `gorm:"uniqueIndex;not null"`
	Commune       string `gorm:"size:100;default:Non spécifiée"`
	Locality      string `gorm:"size:100;default:Non spécifiée"` // lieu-dit or free-text coordinates
	Department    string `gorm:"size:5;default:00"`
	Coordinates   string `gorm:"size:30;default:0,0"` // "lat,lon"
	Latitude      string `gorm:"size:15;default:0.0"`
	Longitude     string `gorm:"size:15;default:0.0"`
	GeoSource     string `gorm:"size:30"` // provenance tier of the coordinates
	GeoPrecisionM int    // uncertainty radius in meters
	INSEECode     string `gorm:"column:insee_code;size:5"`
	Altitude      int
	Landscape     string `gorm:"type:text"`
	Surroundings  string `gorm:"type:text"`
}

// Nest describes the nest itself.
type Nest struct {
	ID                   uint `gorm:"primaryKey"`
	CardNumber           uint `gorm:"uniqueIndex;not null"`
	SameCoupleAsPrevious bool
	NestHeight           int
	CoverHeight          int
	Details              string `gorm:"type:text;default:Aucun détail"`
}

// Visit is one dated observation row from the card's tabular section.
type Visit struct {
	ID         uint      `gorm:"primaryKey"`
	CardNumber uint      `gorm:"index;not null"`
	ObservedAt time.Time `gorm:"index;not null"`
	EggCount   int
	ChickCount int
	Notes      string `gorm:"type:text"`
}

// Summary holds the card's derived season counts. Post-correction the counts
// satisfy ChicksFledged <= EggsHatched <= EggsLaid.
type Summary struct {
	ID         uint `gorm:"primaryKey"`
	CardNumber uint `gorm:"uniqueIndex;not null"`

	FirstEggDay      *int
	FirstEggMonth    *int
	FirstHatchDay    *int
	FirstHatchMonth  *int
	FirstFledgeDay   *int
	FirstFledgeMonth *int

	EggsLaid      int
	EggsHatched   int
	EggsUnhatched int
	ChicksFledged int
}

// FailureCause records why a nesting attempt failed, when noted on the card.
type FailureCause struct {
	ID          uint   `gorm:"primaryKey"`
	CardNumber  uint   `gorm:"uniqueIndex;not null"`
	Description string `gorm:"type:text"`
}

// Remark is a free-text note attached to a card.
type Remark struct {
	ID         uint   `gorm:"primaryKey"`
	CardNumber uint   `gorm:"index;not null"`
	Text       string `gorm:"type:text"`
	CreatedAt  time.Time
}
