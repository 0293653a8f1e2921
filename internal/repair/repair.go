// Package repair normalizes malformed OCR payloads. It is the single
// translation boundary between the untyped JSON produced by the OCR engine
// and the typed form consumed by the import pipeline.
package repair

import (
	"fmt"
	"strings"
)

// Payload section keys, as printed on the cards.
const (
	SectionGeneral  = "informations_generales"
	SectionNest     = "nid"
	SectionLocation = "localisation"
	SectionVisits   = "tableau_donnees"
	SectionSummary  = "tableau_donnees_2"
	SectionFailure  = "causes_echec"
	KeyRemark       = "remarque"
)

var requiredTopKeys = []string{
	SectionGeneral,
	SectionNest,
	SectionLocation,
	SectionVisits,
	SectionSummary,
	SectionFailure,
}

var requiredSectionFields = map[string][]string{
	SectionGeneral:  {"n_fiche", "observateur", "n_espece", "espece", "annee"},
	SectionNest:     {"nid_prec_t_meme_c_ple", "haut_nid", "h_c_vert", "nid"},
	SectionLocation: {"IGN_50000", "commune", "dep_t", "coordonnees_et_ou_lieu_dit", "altitude", "paysage", "alentours"},
	SectionSummary:  {"1er_o_pondu", "1er_p_eclos", "1er_p_volant", "nombre_oeufs", "nombre_poussins"},
}

// StripMarkdownFence removes a ```json ... ``` wrapper when the OCR engine
// fenced its answer.
func StripMarkdownFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```json") && strings.HasSuffix(trimmed, "```") {
		return strings.TrimSpace(trimmed[len("```json") : len(trimmed)-len("```")])
	}
	if strings.HasPrefix(trimmed, "```") && strings.HasSuffix(trimmed, "```") && len(trimmed) > 6 {
		return strings.TrimSpace(trimmed[3 : len(trimmed)-3])
	}
	return trimmed
}

// Validate reports missing required sections and fields without raising. An
// empty slice means the payload is structurally complete.
func Validate(payload map[string]any) []error {
	var errs []error

	for _, key := range requiredTopKeys {
		if _, ok := payload[key]; !ok {
			errs = append(errs, fmt.Errorf("missing section: %s", key))
		}
	}

	for section, fields := range requiredSectionFields {
		raw, ok := payload[section]
		if !ok {
			continue
		}
		m, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: expected an object", section))
			continue
		}
		for _, field := range fields {
			if _, ok := m[field]; !ok {
				errs = append(errs, fmt.Errorf("%s: missing field %s", section, field))
			}
		}
	}

	if raw, ok := payload[SectionVisits]; ok {
		if _, isList := raw.([]any); !isList {
			errs = append(errs, fmt.Errorf("%s: expected a list", SectionVisits))
		}
	}

	if raw, ok := payload[SectionFailure]; ok {
		if m, isMap := raw.(map[string]any); isMap {
			if _, ok := m["causes_d_echec"]; !ok {
				errs = append(errs, fmt.Errorf("%s: missing field causes_d_echec", SectionFailure))
			}
		}
	}

	return errs
}

// Known key variants produced by the OCR engine: accents, synonyms, and
// handwriting abbreviations, mapped to the canonical field names.
var topLevelRenames = map[string]string{
	"tableau_resume":   SectionSummary,
	"tableau_donnees2": SectionSummary,
	"tableau_recap":    SectionSummary,
	"causes_d'échec":   SectionFailure,
}

var sectionRenames = map[string]map[string]string{
	SectionGeneral: {
		"n° fiche":  "n_fiche",
		"n° espéce": "n_espece",
		"espèce":    "espece",
		"année":     "annee",
	},
	SectionNest: {
		"nid préc't même c'ple": "nid_prec_t_meme_c_ple",
		"haut. nid":             "haut_nid",
		"h.c'vert":              "h_c_vert",
	},
	SectionLocation: {
		"IGN/50000":                 "IGN_50000",
		"dép't":                     "dep_t",
		"coordonées et/ou lieu-dit": "coordonnees_et_ou_lieu_dit",
		"coordonées_et_ou_lieu_dit": "coordonnees_et_ou_lieu_dit",
	},
	SectionFailure: {
		"causes d'échec": "causes_d_echec",
	},
}

var visitRowRenames = map[string]string{
	"Nombre œuf":  "Nombre_oeuf",
	"Nombre oeuf": "Nombre_oeuf",
	"Nombre pou":  "Nombre_pou",
}

var summarySubKeys = []string{"1er_o_pondu", "1er_p_eclos", "1er_p_volant", "nombre_oeufs", "nombre_poussins"}

// Repair applies the table-driven key renames and shape fixes, returning a
// new payload. The input is never mutated and repair is idempotent. Absent
// optional sections stay absent.
func Repair(payload map[string]any) map[string]any {
	repaired := deepCopy(payload)

	renameKeys(repaired, topLevelRenames)

	for section, renames := range sectionRenames {
		if m, ok := repaired[section].(map[string]any); ok {
			renameKeys(m, renames)
		}
	}

	if rows, ok := repaired[SectionVisits].([]any); ok {
		for _, row := range rows {
			if m, ok := row.(map[string]any); ok {
				renameKeys(m, visitRowRenames)
			}
		}
	}

	// Inside an already-present summary section, flatten singleton lists and
	// default malformed sub-objects. An absent section is left absent.
	if summary, ok := repaired[SectionSummary].(map[string]any); ok {
		for _, key := range summarySubKeys {
			if list, isList := summary[key].([]any); isList && len(list) > 0 {
				summary[key] = list[0]
			}
			if _, isMap := summary[key].(map[string]any); !isMap {
				summary[key] = defaultSummarySub(key)
			}
		}
	}

	return repaired
}

// renameKeys moves values from variant keys to their canonical names.
// Canonical keys already present win over the variants.
func renameKeys(m map[string]any, renames map[string]string) {
	for oldKey, newKey := range renames {
		value, ok := m[oldKey]
		if !ok {
			continue
		}
		if _, exists := m[newKey]; !exists {
			m[newKey] = value
		}
		delete(m, oldKey)
	}
}

func defaultSummarySub(key string) map[string]any {
	switch {
	case key == "nombre_oeufs":
		return map[string]any{"pondus": nil, "eclos": nil, "n_ecl": nil}
	case key == "nombre_poussins":
		return map[string]any{"1/2": nil, "3/4": nil, "vol_t": nil}
	default: // the "1er_*" date triplets
		return map[string]any{"jour": nil, "Mois": nil, "Precision": nil}
	}
}

func deepCopy(value map[string]any) map[string]any {
	out := make(map[string]any, len(value))
	for k, v := range value {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return deepCopy(typed)
	case []any:
		list := make([]any, len(typed))
		for i, item := range typed {
			list[i] = deepCopyValue(item)
		}
		return list
	default:
		return typed
	}
}
