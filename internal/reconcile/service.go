// Package reconcile drives the transcription import pipeline: directory
// ingestion, candidate extraction, species matching, observer resolution,
// import preparation, transactional finalization and reset.
package reconcile

import (
	"encoding/json"
	"log/slog"

	"github.com/tmarcon/nestcard-go/internal/conf"
	"github.com/tmarcon/nestcard-go/internal/datastore"
	"github.com/tmarcon/nestcard-go/internal/errors"
	"github.com/tmarcon/nestcard-go/internal/geocoder"
	"github.com/tmarcon/nestcard-go/internal/logging"
	"github.com/tmarcon/nestcard-go/internal/repair"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	serviceLevelVar.Set(slog.LevelDebug)
	logger, closeLogger = logging.ForService("reconcile", serviceLevelVar)
}

// UnspecifiedCommune is the sentinel the OCR prompt emits for an empty
// commune field; it is never geocoded.
const UnspecifiedCommune = "Non spécifiée"

// Service holds the pipeline's collaborators. The geocoder is shared by
// injection, one instance for the whole process.
type Service struct {
	store    datastore.Interface
	geo      *geocoder.Service
	settings *conf.Settings
}

// NewService creates the reconciliation service.
func NewService(store datastore.Interface, geo *geocoder.Service, settings *conf.Settings) *Service {
	return &Service{store: store, geo: geo, settings: settings}
}

// Bootstrap opens the configured datastore, builds the geocoder on top of it
// and returns a ready service with a cleanup function releasing both.
func Bootstrap(settings *conf.Settings) (*Service, func(), error) {
	store := datastore.New(settings)
	if store == nil {
		return nil, nil, errors.Newf("no database output enabled").
			Category(errors.CategoryConfiguration).
			Component("reconcile").
			Build()
	}
	if err := store.Open(); err != nil {
		return nil, nil, err
	}

	geo := geocoder.New(store, settings.Geocoder)
	svc := NewService(store, geo, settings)
	cleanup := func() {
		geo.Close()
		if err := store.Close(); err != nil {
			logger.Error("datastore close failed", "error", err)
		}
	}
	return svc, cleanup, nil
}

// Store exposes the underlying datastore for reference-data commands.
func (s *Service) Store() datastore.Interface { return s.store }

// Geocoder exposes the shared geocoder instance.
func (s *Service) Geocoder() *geocoder.Service { return s.geo }

// Close flushes the service log.
func (s *Service) Close() {
	if closeLogger != nil {
		_ = closeLogger()
	}
}

// parseForm decodes a transcription payload, repairs its structure and
// returns the typed form.
func (s *Service) parseForm(t *datastore.RawTranscription) (*repair.Form, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(t.Payload), &payload); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryJSONParsing).
			Component("reconcile").
			Context("source_file", t.SourceFile).
			Build()
	}
	return repair.FromPayload(repair.Repair(payload)), nil
}
