package geocoder

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/tmarcon/nestcard-go/internal/datastore"
	"github.com/tmarcon/nestcard-go/internal/errors"
	"github.com/tmarcon/nestcard-go/internal/textutil"
	"gorm.io/gorm"
)

// CommunesAPIURL is the national open-data endpoint serving the full commune
// reference list.
const CommunesAPIURL = "https://geo.api.gouv.fr/communes"

// LoadStats summarizes one reference-data load.
type LoadStats struct {
	Loaded  int
	Skipped int
	Errors  int
}

// LoadCommunes downloads the full commune list from the open-data API and
// fills the local reference store. A populated store is left untouched unless
// force is set, which empties it first.
func LoadCommunes(ctx context.Context, store datastore.Interface, apiURL string, force bool) (LoadStats, error) {
	stats := LoadStats{}

	count, err := store.CountCommunes()
	if err != nil {
		return stats, err
	}
	if count > 0 {
		if !force {
			return stats, errors.Newf("%d communes already loaded, use force to reload", count).
				Category(errors.CategoryImportState).
				Component("geocoder").
				Build()
		}
		deleted, err := store.DeleteAllCommunes()
		if err != nil {
			return stats, err
		}
		logger.Info("commune store cleared", "deleted", deleted)
	}

	if apiURL == "" {
		apiURL = CommunesAPIURL
	}
	params := url.Values{
		"fields":   {"nom,code,codesPostaux,centre,departement,region,population,surface"},
		"format":   {"json"},
		"geometry": {"centre"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return stats, err
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return stats, errors.New(err).
			Category(errors.CategoryNetwork).
			Component("geocoder").
			Context("url", apiURL).
			Build()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return stats, errors.Newf("communes API returned status %d", resp.StatusCode).
			Category(errors.CategoryNetwork).
			Component("geocoder").
			Build()
	}

	root, err := jason.NewValueFromReader(resp.Body)
	if err != nil {
		return stats, errors.New(err).
			Category(errors.CategoryJSONParsing).
			Component("geocoder").
			Build()
	}
	entries, err := root.Array()
	if err != nil {
		return stats, errors.New(err).
			Category(errors.CategoryJSONParsing).
			Component("geocoder").
			Build()
	}

	var communes []datastore.Commune
	for _, entry := range entries {
		obj, err := entry.Object()
		if err != nil {
			stats.Errors++
			continue
		}
		commune, err := parseCommune(obj)
		if err != nil {
			stats.Errors++
			logger.Warn("commune entry skipped", "error", err)
			continue
		}
		communes = append(communes, *commune)
	}

	loaded, err := store.InsertCommunes(communes)
	if err != nil {
		return stats, err
	}
	stats.Loaded = loaded

	logger.Info("commune reference loaded", "loaded", stats.Loaded, "errors", stats.Errors)
	return stats, nil
}

// parseCommune maps one API entry to a reference row. The API emits
// [lon, lat] coordinate order.
func parseCommune(obj *jason.Object) (*datastore.Commune, error) {
	code, err := obj.GetString("code")
	if err != nil {
		return nil, fmt.Errorf("missing code: %w", err)
	}
	name, err := obj.GetString("nom")
	if err != nil {
		return nil, fmt.Errorf("commune %s: missing name: %w", code, err)
	}
	coords, err := obj.GetFloat64Array("centre", "coordinates")
	if err != nil || len(coords) < 2 {
		return nil, fmt.Errorf("commune %s: no coordinates", code)
	}

	commune := &datastore.Commune{
		INSEECode: code,
		Name:      name,
		Longitude: coords[0],
		Latitude:  coords[1],
	}
	if postal, err := obj.GetStringArray("codesPostaux"); err == nil && len(postal) > 0 {
		commune.PostalCode = postal[0]
	}
	if dept, err := obj.GetString("departement", "nom"); err == nil {
		commune.Department = dept
	}
	if deptCode, err := obj.GetString("departement", "code"); err == nil {
		commune.DepartmentCode = deptCode
	}
	if region, err := obj.GetString("region", "nom"); err == nil {
		commune.Region = region
	}
	if population, err := obj.GetInt64("population"); err == nil {
		commune.Population = int(population)
	}
	if surface, err := obj.GetFloat64("surface"); err == nil {
		commune.AreaKm2 = surface / 10000
	}
	return commune, nil
}

// CSV column names of the official merged-communes dataset (data.gouv.fr).
const (
	colSuccessorINSEE = "Code INSEE Commune Nouvelle"
	colSuccessorName  = "Nom Commune Nouvelle Siège"
	colFormerINSEE    = "Code INSEE Commune Déléguée (non actif)"
	colFormerName     = "Nom Commune Déléguée"
	colMergeDate      = "Date"
)

// LoadFormerCommunes imports the official merged-communes CSV into the
// historical store. Rows naming the seat commune itself are skipped; rows
// whose successor is missing from the commune store are counted and skipped.
func LoadFormerCommunes(store datastore.Interface, csvPath string, clear bool) (LoadStats, error) {
	stats := LoadStats{}

	if clear {
		deleted, err := store.DeleteAllFormerCommunes()
		if err != nil {
			return stats, err
		}
		logger.Info("former commune store cleared", "deleted", deleted)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return stats, errors.New(err).
			Category(errors.CategoryFileIO).
			Component("geocoder").
			Context("path", csvPath).
			Build()
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return stats, err
	}
	columns := map[string]int{}
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colSuccessorINSEE, colSuccessorName, colFormerINSEE, colFormerName, colMergeDate} {
		if _, ok := columns[required]; !ok {
			return stats, errors.Newf("missing CSV column %q", required).
				Category(errors.CategoryValidation).
				Component("geocoder").
				Build()
		}
	}

	// Last row wins for a duplicated former INSEE code.
	byINSEE := map[string]datastore.FormerCommune{}
	var order []string

	for {
		row, err := reader.Read()
		if err != nil {
			break
		}
		field := func(name string) string {
			i := columns[name]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		successorINSEE := field(colSuccessorINSEE)
		formerINSEE := field(colFormerINSEE)
		if formerINSEE == "" || formerINSEE == successorINSEE {
			stats.Skipped++
			continue
		}

		successor, err := store.FindCommuneByINSEE(successorINSEE)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Warn("successor commune not found",
					"insee_code", successorINSEE, "name", field(colSuccessorName))
				stats.Skipped++
			} else {
				stats.Errors++
			}
			continue
		}

		former := datastore.FormerCommune{
			INSEECode:      formerINSEE,
			Name:           field(colFormerName),
			SuccessorID:    successor.ID,
			Department:     successor.Department,
			DepartmentCode: successor.DepartmentCode,
			MergedAt:       parseMergeDate(field(colMergeDate)),
			Comment:        fmt.Sprintf("Fusionnée avec %s (%s)", field(colSuccessorName), field(colMergeDate)),
		}
		if _, seen := byINSEE[formerINSEE]; !seen {
			order = append(order, formerINSEE)
		}
		byINSEE[formerINSEE] = former
	}

	rows := make([]datastore.FormerCommune, 0, len(byINSEE))
	for _, insee := range order {
		rows = append(rows, byINSEE[insee])
	}
	loaded, err := store.InsertFormerCommunes(rows)
	if err != nil {
		return stats, err
	}
	stats.Loaded = loaded

	logger.Info("former communes loaded",
		"loaded", stats.Loaded, "skipped", stats.Skipped, "errors", stats.Errors)
	return stats, nil
}

var frenchMonths = map[string]time.Month{
	"JANVIER": time.January, "FEVRIER": time.February, "MARS": time.March,
	"AVRIL": time.April, "MAI": time.May, "JUIN": time.June,
	"JUILLET": time.July, "AOUT": time.August, "SEPTEMBRE": time.September,
	"OCTOBRE": time.October, "NOVEMBRE": time.November, "DECEMBRE": time.December,
}

// parseMergeDate reads the dataset's "MOIS ANNÉE" format ("AVRIL 2016") as
// the first day of that month, nil when unparsable.
func parseMergeDate(value string) *time.Time {
	fields := strings.Fields(textutil.Fold(strings.ToUpper(value)))
	if len(fields) != 2 {
		return nil
	}
	month, ok := frenchMonths[fields[0]]
	if !ok {
		return nil
	}
	var year int
	if _, err := fmt.Sscanf(fields[1], "%d", &year); err != nil || year < 1900 {
		return nil
	}
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return &t
}
