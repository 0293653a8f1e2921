package reconcile

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tmarcon/nestcard-go/internal/datastore"
	"github.com/tmarcon/nestcard-go/internal/errors"
	"github.com/tmarcon/nestcard-go/internal/geocoder"
	"github.com/tmarcon/nestcard-go/internal/repair"
)

// Default texts for card fields the transcription left empty.
const (
	defaultLocality    = "Non spécifiée"
	defaultDepartment  = "00"
	defaultLandscape   = "Non spécifié"
	defaultNestDetails = "Aucun détail"
)

// Finalize materializes one pending import into a full card bundle inside a
// single transaction. Precondition failures (unvalidated species, missing
// observer) commit an error status without writing any card data; unexpected
// failures roll the whole card back and record the error afterwards.
func (s *Service) Finalize(ctx context.Context, importID uint) error {
	var (
		failReason string
		cardNumber uint
	)

	err := s.store.WithTransaction(func(tx datastore.Interface) error {
		imp, err := tx.LockPendingImport(importID)
		if err != nil {
			return err
		}

		if imp.Candidate == nil || imp.Candidate.SpeciesID == nil {
			failReason = "species not validated"
			return tx.SetPendingImportStatus(imp.ID, datastore.StatusError, failReason)
		}
		if imp.ObserverID == nil {
			failReason = "observer not resolved"
			return tx.SetPendingImportStatus(imp.ID, datastore.StatusError, failReason)
		}

		form, err := s.parseForm(&imp.Transcription)
		if err != nil {
			return err
		}

		year := cardYear(form)
		card := &datastore.Card{
			ObserverID:        *imp.ObserverID,
			SpeciesID:         *imp.Candidate.SpeciesID,
			Year:              year,
			ImagePath:         strings.TrimSuffix(imp.Transcription.SourceFile, s.settings.Ingest.FileSuffix) + ".jpg",
			JSONPath:          imp.Transcription.SourceFile,
			FromTranscription: true,
			Location:          s.buildLocation(ctx, form),
			Nest:              buildNest(form),
			Visits:            buildVisits(form, year, imp.Transcription.SourceFile),
			Summary:           buildSummary(form, imp.Transcription.SourceFile),
			FailureCause:      buildFailureCause(form),
		}
		if form.Remark != nil {
			card.Remarks = []datastore.Remark{{Text: *form.Remark}}
		}

		if err := tx.CreateCard(card); err != nil {
			return err
		}
		cardNumber = card.Number

		imp.CardID = &card.Number
		imp.Status = datastore.StatusComplete
		imp.LastError = ""
		if err := tx.SavePendingImport(imp); err != nil {
			return err
		}
		return tx.SetTranscriptionProcessed(imp.TranscriptionID, true)
	})

	if err != nil {
		logger.Error("finalize failed", "import_id", importID, "error", err)
		if stErr := s.store.SetPendingImportStatus(importID, datastore.StatusError, err.Error()); stErr != nil {
			logger.Error("status update failed", "import_id", importID, "error", stErr)
		}
		return err
	}
	if failReason != "" {
		logger.Warn("import not finalized", "import_id", importID, "reason", failReason)
		return errors.Newf("import %d not finalized: %s", importID, failReason).
			Category(errors.CategoryImportState).
			Component("reconcile").
			Build()
	}

	logger.Info("card created", "import_id", importID, "card_number", cardNumber)
	return nil
}

// FinalizeResult aggregates one bulk finalization pass.
type FinalizeResult struct {
	Completed int
	Failed    int
	Errors    []string
}

// FinalizeAll finalizes every import still in the pending state. Failures
// are isolated per import.
func (s *Service) FinalizeAll(ctx context.Context) (FinalizeResult, error) {
	result := FinalizeResult{}

	imports, err := s.store.GetPendingImportsByStatus(datastore.StatusPending)
	if err != nil {
		return result, err
	}

	for i := range imports {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err := s.Finalize(ctx, imports[i].ID); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Completed++
	}
	return result, nil
}

// cardYear extracts the card year, falling back to the current year when the
// field is absent or not numeric.
func cardYear(form *repair.Form) int {
	if form.General != nil && form.General.Year != nil {
		if year, err := strconv.Atoi(*form.General.Year); err == nil {
			return year
		}
	}
	return time.Now().Year()
}

// buildLocation assembles the location row, re-running the geocoder so the
// stored coordinates reflect the current reference data. A geocoder hit
// replaces the transcribed commune with the canonical name; a miss keeps the
// raw string with zero coordinates.
func (s *Service) buildLocation(ctx context.Context, form *repair.Form) *datastore.Location {
	location := &datastore.Location{
		Commune:      UnspecifiedCommune,
		Locality:     defaultLocality,
		Department:   defaultDepartment,
		Coordinates:  "0,0",
		Latitude:     "0.0",
		Longitude:    "0.0",
		Landscape:    defaultLandscape,
		Surroundings: defaultLandscape,
	}
	if form.Location == nil {
		return location
	}

	loc := form.Location
	if loc.Department != nil {
		location.Department = *loc.Department
	}
	if loc.Locality != nil {
		location.Locality = *loc.Locality
	}
	if loc.Landscape != nil {
		location.Landscape = *loc.Landscape
	}
	if loc.Surroundings != nil {
		location.Surroundings = *loc.Surroundings
	}

	commune := UnspecifiedCommune
	if c := form.CommuneField(); c != nil {
		commune = *c
	}
	location.Commune = commune

	var geoAltitude *int
	if commune != UnspecifiedCommune {
		result, err := s.geo.Geocode(ctx, geocoder.Query{
			Commune:    commune,
			Department: location.Department,
		})
		switch {
		case err != nil:
			logger.Error("finalize geocoding failed", "commune", commune, "error", err)
		case result != nil:
			canonical, _, _ := strings.Cut(result.DisplayName, ",")
			location.Commune = canonical
			location.Latitude = strconv.FormatFloat(result.Latitude, 'g', -1, 64)
			location.Longitude = strconv.FormatFloat(result.Longitude, 'g', -1, 64)
			location.Coordinates = result.Coordinates
			location.GeoSource = result.Source
			location.GeoPrecisionM = result.PrecisionM
			location.INSEECode = result.INSEECode
			geoAltitude = result.Altitude
			logger.Info("commune geocoded",
				"input", commune, "canonical", canonical, "source", result.Source)
		default:
			logger.Warn("commune not found, keeping raw name", "commune", commune)
		}
	}

	switch {
	case geoAltitude != nil:
		location.Altitude = *geoAltitude
	case loc.Altitude != nil:
		location.Altitude = safeFloatToInt(loc.Altitude)
	}
	return location
}

func buildNest(form *repair.Form) *datastore.Nest {
	nest := &datastore.Nest{Details: defaultNestDetails}
	if form.Nest == nil {
		return nest
	}
	nest.SameCoupleAsPrevious = transcribedBool(form.Nest.SameCoupleAsPrevious)
	nest.NestHeight = safeFloatToInt(form.Nest.NestHeight)
	nest.CoverHeight = safeFloatToInt(form.Nest.CoverHeight)
	if form.Nest.Details != nil {
		nest.Details = *form.Nest.Details
	}
	return nest
}

// buildVisits converts the tabular rows to dated visits. A row with an
// unparsable or out-of-range date is skipped with a warning, never fatal.
func buildVisits(form *repair.Form, year int, sourceFile string) []datastore.Visit {
	var visits []datastore.Visit
	for i, row := range form.Visits {
		day, ok := visitField(row.Day, 1)
		if !ok {
			logger.Warn("visit row skipped", "source_file", sourceFile, "row", i, "field", "day")
			continue
		}
		month, ok := visitField(row.Month, 1)
		if !ok {
			logger.Warn("visit row skipped", "source_file", sourceFile, "row", i, "field", "month")
			continue
		}
		hour, ok := visitHour(row.Hour)
		if !ok || hour < 0 || hour > 23 {
			logger.Warn("visit row skipped", "source_file", sourceFile, "row", i, "field", "hour")
			continue
		}
		eggs, ok := visitField(row.EggCount, 0)
		if !ok {
			logger.Warn("visit row skipped", "source_file", sourceFile, "row", i, "field", "egg_count")
			continue
		}
		chicks, ok := visitField(row.ChickCount, 0)
		if !ok {
			logger.Warn("visit row skipped", "source_file", sourceFile, "row", i, "field", "chick_count")
			continue
		}

		observedAt, ok := visitDate(year, month, day, hour)
		if !ok {
			logger.Warn("visit row skipped", "source_file", sourceFile, "row", i, "field", "date")
			continue
		}

		visit := datastore.Visit{
			ObservedAt: observedAt,
			EggCount:   eggs,
			ChickCount: chicks,
		}
		if row.Notes != nil {
			visit.Notes = *row.Notes
		}
		visits = append(visits, visit)
	}
	return visits
}

// buildSummary applies the consistency corrections in order: hatched is
// raised to the fledged count, then laid is raised to hatched plus unhatched.
func buildSummary(form *repair.Form, sourceFile string) *datastore.Summary {
	summary := &datastore.Summary{}
	if form.Summary == nil {
		return summary
	}
	info := form.Summary

	laid := intOrZero(safeInt(info.EggsLaid))
	hatched := intOrZero(safeInt(info.EggsHatched))
	unhatched := intOrZero(safeInt(info.EggsUnhatched))
	fledged := intOrZero(safeInt(info.ChicksFledged))

	if fledged > 0 && hatched == 0 {
		hatched = fledged
		logger.Warn("summary corrected, hatched raised to fledged count",
			"source_file", sourceFile, "hatched", hatched)
	}
	if fledged > hatched {
		hatched = fledged
		logger.Warn("summary corrected, hatched raised to fledged count",
			"source_file", sourceFile, "hatched", hatched)
	}
	if hatched > laid {
		laid = hatched + unhatched
		logger.Warn("summary corrected, laid raised for consistency",
			"source_file", sourceFile, "laid", laid)
	}

	summary.FirstEggDay = safeInt(info.FirstEgg.Day)
	summary.FirstEggMonth = safeInt(info.FirstEgg.Month)
	summary.FirstHatchDay = safeInt(info.FirstHatch.Day)
	summary.FirstHatchMonth = safeInt(info.FirstHatch.Month)
	summary.FirstFledgeDay = safeInt(info.FirstFledge.Day)
	summary.FirstFledgeMonth = safeInt(info.FirstFledge.Month)
	summary.EggsLaid = laid
	summary.EggsHatched = hatched
	summary.EggsUnhatched = unhatched
	summary.ChicksFledged = fledged
	return summary
}

func buildFailureCause(form *repair.Form) *datastore.FailureCause {
	cause := &datastore.FailureCause{}
	if form.Failure != nil {
		cause.Description = *form.Failure
	}
	return cause
}

// safeFloatToInt parses a transcribed numeric string, accepting a comma
// decimal separator and truncating to int. Unparsable input yields 0.
func safeFloatToInt(value *string) int {
	if value == nil {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(*value, ",", "."), 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// safeInt parses an integer field, nil when absent or unparsable.
func safeInt(value *string) *int {
	if value == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*value))
	if err != nil {
		return nil
	}
	return &n
}

func intOrZero(value *int) int {
	if value == nil {
		return 0
	}
	return *value
}

// visitField parses one numeric visit cell, using def when the cell is
// empty. ok is false when a present value does not parse.
func visitField(value *string, def int) (n int, ok bool) {
	if value == nil {
		return def, true
	}
	n, err := strconv.Atoi(strings.TrimSpace(*value))
	if err != nil {
		return 0, false
	}
	return n, true
}

// visitDate builds the visit timestamp, rejecting any date time.Date would
// normalize instead of erroring: day 30 in February would otherwise come
// back as March 2.
func visitDate(year, month, day, hour int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.Local)
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return t, true
}

// transcribedBool reads a checkbox-style cell. Absent cells and the literal
// false/zero renderings count as unchecked; any other present value counts
// as checked.
func transcribedBool(value *string) bool {
	if value == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(*value)) {
	case "", "false", "0":
		return false
	}
	return true
}

// visitHour parses the hour cell, defaulting to noon and tolerating a
// trailing "e" ("14e" reads as 14).
func visitHour(value *string) (int, bool) {
	if value == nil {
		return 12, true
	}
	cleaned := strings.TrimSpace(strings.ReplaceAll(*value, "e", ""))
	if cleaned == "" {
		return 12, true
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, false
	}
	return n, true
}
