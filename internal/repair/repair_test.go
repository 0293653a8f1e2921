package repair

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completePayload builds a structurally complete payload for tests.
func completePayload() map[string]any {
	raw := `{
		"informations_generales": {"n_fiche": "123", "observateur": "Jean Dupont", "n_espece": "42", "espece": "Mésange charbonnière", "annee": "1978"},
		"nid": {"nid_prec_t_meme_c_ple": null, "haut_nid": "2,5", "h_c_vert": "10", "nid": "dans un pommier"},
		"localisation": {"IGN_50000": null, "commune": "Annecy", "dep_t": "74", "coordonnees_et_ou_lieu_dit": "le verger", "altitude": "450", "paysage": "bocage", "alentours": "prairie"},
		"tableau_donnees": [{"Jour": "12", "Mois": "5", "Heure": "14", "Nombre_oeuf": "6", "Nombre_pou": "0", "observations": "couvaison"}],
		"tableau_donnees_2": {
			"1er_o_pondu": {"jour": "2", "Mois": "5", "Precision": null},
			"1er_p_eclos": {"jour": "16", "Mois": "5", "Precision": null},
			"1er_p_volant": {"jour": null, "Mois": null, "Precision": null},
			"nombre_oeufs": {"pondus": "6", "eclos": "5", "n_ecl": "1"},
			"nombre_poussins": {"1/2": null, "3/4": null, "vol_t": "4"}
		},
		"causes_echec": {"causes_d_echec": null},
		"remarque": "belle fiche"
	}`
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		panic(err)
	}
	return payload
}

func TestValidateCompletePayload(t *testing.T) {
	assert.Empty(t, Validate(completePayload()))
}

func TestValidateReportsMissingSections(t *testing.T) {
	payload := completePayload()
	delete(payload, SectionNest)
	delete(payload, SectionSummary)

	errs := Validate(payload)
	require.Len(t, errs, 2)
}

func TestValidateReportsMissingFields(t *testing.T) {
	payload := completePayload()
	general := payload[SectionGeneral].(map[string]any)
	delete(general, "espece")

	errs := Validate(payload)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "espece")
}

func TestRepairRenamesVariantKeys(t *testing.T) {
	payload := completePayload()

	general := payload[SectionGeneral].(map[string]any)
	general["espèce"] = general["espece"]
	delete(general, "espece")
	general["année"] = general["annee"]
	delete(general, "annee")

	loc := payload[SectionLocation].(map[string]any)
	loc["dép't"] = loc["dep_t"]
	delete(loc, "dep_t")

	summary := payload[SectionSummary]
	delete(payload, SectionSummary)
	payload["tableau_resume"] = summary

	require.NotEmpty(t, Validate(payload))

	repaired := Repair(payload)
	assert.Empty(t, Validate(repaired))

	fixedGeneral := repaired[SectionGeneral].(map[string]any)
	assert.Equal(t, "Mésange charbonnière", fixedGeneral["espece"])
	assert.Equal(t, "1978", fixedGeneral["annee"])
	assert.NotContains(t, fixedGeneral, "espèce")

	fixedLoc := repaired[SectionLocation].(map[string]any)
	assert.Equal(t, "74", fixedLoc["dep_t"])
}

func TestRepairCanonicalKeyWinsOverVariant(t *testing.T) {
	payload := completePayload()
	general := payload[SectionGeneral].(map[string]any)
	general["espèce"] = "variant value"

	repaired := Repair(payload)
	fixedGeneral := repaired[SectionGeneral].(map[string]any)
	assert.Equal(t, "Mésange charbonnière", fixedGeneral["espece"])
	assert.NotContains(t, fixedGeneral, "espèce")
}

func TestRepairVisitRowRenames(t *testing.T) {
	payload := completePayload()
	row := payload[SectionVisits].([]any)[0].(map[string]any)
	row["Nombre œuf"] = row["Nombre_oeuf"]
	delete(row, "Nombre_oeuf")

	repaired := Repair(payload)
	fixedRow := repaired[SectionVisits].([]any)[0].(map[string]any)
	assert.Equal(t, "6", fixedRow["Nombre_oeuf"])
	assert.NotContains(t, fixedRow, "Nombre œuf")
}

func TestRepairFlattensSummarySingletonLists(t *testing.T) {
	payload := completePayload()
	summary := payload[SectionSummary].(map[string]any)
	summary["nombre_oeufs"] = []any{summary["nombre_oeufs"]}

	repaired := Repair(payload)
	eggs := repaired[SectionSummary].(map[string]any)["nombre_oeufs"].(map[string]any)
	assert.Equal(t, "6", eggs["pondus"])
}

func TestRepairDefaultsMalformedSummarySubObjects(t *testing.T) {
	payload := completePayload()
	summary := payload[SectionSummary].(map[string]any)
	summary["nombre_oeufs"] = "not an object"
	summary["1er_o_pondu"] = 17.0

	repaired := Repair(payload)
	fixed := repaired[SectionSummary].(map[string]any)
	eggs, ok := fixed["nombre_oeufs"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, eggs["pondus"])
	date, ok := fixed["1er_o_pondu"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, date["jour"])
}

func TestRepairLeavesAbsentSummaryAbsent(t *testing.T) {
	payload := completePayload()
	delete(payload, SectionSummary)

	repaired := Repair(payload)
	assert.NotContains(t, repaired, SectionSummary)
}

func TestRepairDoesNotMutateInput(t *testing.T) {
	payload := completePayload()
	general := payload[SectionGeneral].(map[string]any)
	general["espèce"] = general["espece"]
	delete(general, "espece")

	_ = Repair(payload)
	assert.Contains(t, payload[SectionGeneral].(map[string]any), "espèce")
	assert.NotContains(t, payload[SectionGeneral].(map[string]any), "espece")
}

func TestRepairIdempotent(t *testing.T) {
	payload := completePayload()
	once := Repair(payload)
	twice := Repair(once)
	assert.Equal(t, once, twice)
}

func TestFromPayloadTypedFields(t *testing.T) {
	form := FromPayload(completePayload())

	require.NotNil(t, form.General)
	assert.Equal(t, "Jean Dupont", *form.General.Observer)
	assert.Equal(t, "1978", *form.General.Year)

	require.NotNil(t, form.Nest)
	assert.Equal(t, "2,5", *form.Nest.NestHeight)
	assert.Nil(t, form.Nest.SameCoupleAsPrevious)

	require.NotNil(t, form.Location)
	assert.Equal(t, "Annecy", *form.Location.Commune)
	assert.Equal(t, "Annecy", *form.CommuneField())

	require.Len(t, form.Visits, 1)
	assert.Equal(t, "12", *form.Visits[0].Day)

	require.NotNil(t, form.Summary)
	assert.Equal(t, "6", *form.Summary.EggsLaid)
	assert.Equal(t, "4", *form.Summary.ChicksFledged)
	assert.Equal(t, "2", *form.Summary.FirstEgg.Day)
	assert.Nil(t, form.Summary.FirstFledge.Day)

	assert.Nil(t, form.Failure)
	assert.Equal(t, "belle fiche", *form.Remark)
}

func TestFromPayloadCoercesNumbers(t *testing.T) {
	payload := completePayload()
	general := payload[SectionGeneral].(map[string]any)
	general["annee"] = 1978.0
	general["observateur"] = "   "

	form := FromPayload(payload)
	assert.Equal(t, "1978", *form.General.Year)
	assert.Nil(t, form.General.Observer)
}

func TestCommuneFieldFallsBackToMapReference(t *testing.T) {
	payload := completePayload()
	loc := payload[SectionLocation].(map[string]any)
	loc["commune"] = nil
	loc["IGN_50000"] = "Carte Annecy NO"

	form := FromPayload(payload)
	require.NotNil(t, form.CommuneField())
	assert.Equal(t, "Carte Annecy NO", *form.CommuneField())
}

func TestStripMarkdownFence(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"surrounding whitespace", "  {\"a\": 1}\n", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripMarkdownFence(tt.input))
		})
	}
}
