package repair

import (
	"fmt"
	"strconv"
	"strings"
)

// Form is the typed view of a repaired payload. Every field is optional;
// pointers are nil when the OCR left the field empty or absent.
type Form struct {
	General  *GeneralInfo
	Nest     *NestInfo
	Location *LocationInfo
	Visits   []VisitRow
	Summary  *SummaryInfo
	Failure  *string
	Remark   *string
}

// GeneralInfo holds the card header fields.
type GeneralInfo struct {
	CardNumber    *string
	Observer      *string
	SpeciesNumber *string
	Species       *string
	Year          *string
}

// NestInfo holds the nest description fields.
type NestInfo struct {
	SameCoupleAsPrevious *string
	NestHeight           *string
	CoverHeight          *string
	Details              *string
}

// LocationInfo holds the location fields. Commune may come from either the
// commune field or the IGN map reference.
type LocationInfo struct {
	MapReference *string // IGN_50000
	Commune      *string
	Department   *string
	Locality     *string // free-text coordinates and/or lieu-dit
	Altitude     *string
	Landscape    *string
	Surroundings *string
}

// VisitRow is one row of the card's tabular observation section.
type VisitRow struct {
	Day        *string
	Month      *string
	Hour       *string
	EggCount   *string
	ChickCount *string
	Notes      *string
}

// PartialDate is a day/month pair from the summary section.
type PartialDate struct {
	Day   *string
	Month *string
}

// SummaryInfo holds the card's season summary counts.
type SummaryInfo struct {
	FirstEgg      PartialDate
	FirstHatch    PartialDate
	FirstFledge   PartialDate
	EggsLaid      *string
	EggsHatched   *string
	EggsUnhatched *string
	ChicksFledged *string
}

// FromPayload builds the typed form from a repaired payload.
func FromPayload(payload map[string]any) *Form {
	form := &Form{}

	if general, ok := payload[SectionGeneral].(map[string]any); ok {
		form.General = &GeneralInfo{
			CardNumber:    stringField(general, "n_fiche"),
			Observer:      stringField(general, "observateur"),
			SpeciesNumber: stringField(general, "n_espece"),
			Species:       stringField(general, "espece"),
			Year:          stringField(general, "annee"),
		}
	}

	if nest, ok := payload[SectionNest].(map[string]any); ok {
		form.Nest = &NestInfo{
			SameCoupleAsPrevious: stringField(nest, "nid_prec_t_meme_c_ple"),
			NestHeight:           stringField(nest, "haut_nid"),
			CoverHeight:          stringField(nest, "h_c_vert"),
			Details:              stringField(nest, "nid"),
		}
	}

	if loc, ok := payload[SectionLocation].(map[string]any); ok {
		form.Location = &LocationInfo{
			MapReference: stringField(loc, "IGN_50000"),
			Commune:      stringField(loc, "commune"),
			Department:   stringField(loc, "dep_t"),
			Locality:     stringField(loc, "coordonnees_et_ou_lieu_dit"),
			Altitude:     stringField(loc, "altitude"),
			Landscape:    stringField(loc, "paysage"),
			Surroundings: stringField(loc, "alentours"),
		}
	}

	if rows, ok := payload[SectionVisits].([]any); ok {
		for _, raw := range rows {
			row, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			form.Visits = append(form.Visits, VisitRow{
				Day:        stringField(row, "Jour"),
				Month:      stringField(row, "Mois"),
				Hour:       stringField(row, "Heure"),
				EggCount:   stringField(row, "Nombre_oeuf"),
				ChickCount: stringField(row, "Nombre_pou"),
				Notes:      stringField(row, "observations"),
			})
		}
	}

	if summary, ok := payload[SectionSummary].(map[string]any); ok {
		info := &SummaryInfo{
			FirstEgg:    partialDate(summary, "1er_o_pondu"),
			FirstHatch:  partialDate(summary, "1er_p_eclos"),
			FirstFledge: partialDate(summary, "1er_p_volant"),
		}
		if eggs, ok := summary["nombre_oeufs"].(map[string]any); ok {
			info.EggsLaid = stringField(eggs, "pondus")
			info.EggsHatched = stringField(eggs, "eclos")
			info.EggsUnhatched = stringField(eggs, "n_ecl")
		}
		if chicks, ok := summary["nombre_poussins"].(map[string]any); ok {
			info.ChicksFledged = stringField(chicks, "vol_t")
		}
		form.Summary = info
	}

	if failure, ok := payload[SectionFailure].(map[string]any); ok {
		form.Failure = stringField(failure, "causes_d_echec")
	}

	form.Remark = stringField(payload, KeyRemark)

	return form
}

// CommuneField returns the commune name to geocode: the commune field when
// set, else the IGN map reference.
func (f *Form) CommuneField() *string {
	if f.Location == nil {
		return nil
	}
	if f.Location.Commune != nil {
		return f.Location.Commune
	}
	return f.Location.MapReference
}

func partialDate(summary map[string]any, key string) PartialDate {
	sub, ok := summary[key].(map[string]any)
	if !ok {
		return PartialDate{}
	}
	return PartialDate{
		Day:   stringField(sub, "jour"),
		Month: stringField(sub, "Mois"),
	}
}

// stringField coerces a payload value to a trimmed string pointer. Numbers
// are formatted, empty strings and nulls collapse to nil.
func stringField(m map[string]any, key string) *string {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil
	}

	var s string
	switch typed := raw.(type) {
	case string:
		s = typed
	case float64:
		s = strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(typed)
	default:
		s = fmt.Sprint(typed)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
