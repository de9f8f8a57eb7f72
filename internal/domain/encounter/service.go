// Package encounter defines the encounters resource.
package encounter

import (
	"sort"
	"strings"

	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/pkg/fhirmodels"
)

// Valid encounter statuses per FHIR R4.
var validStatuses = map[string]bool{
	fhirmodels.EncounterStatusPlanned:        true,
	fhirmodels.EncounterStatusArrived:        true,
	fhirmodels.EncounterStatusTriaged:        true,
	fhirmodels.EncounterStatusInProgress:     true,
	fhirmodels.EncounterStatusOnLeave:        true,
	fhirmodels.EncounterStatusFinished:       true,
	fhirmodels.EncounterStatusCancelled:      true,
	fhirmodels.EncounterStatusEnteredInError: true,
}

// Kind registers encounters with the CRUD controller.
var Kind = (&crud.Kind[*Encounter]{
	Name:         "encounters",
	ResourceType: "Encounter",
	New:          func() *Encounter { return &Encounter{} },
	Defaults:     applyDefaults,
	Validate:     validate,
	Filters: map[string]crud.Filter{
		"status":       crud.Equal("status"),
		"fhir_id":      crud.Equal("fhir_id"),
		"patient":      crud.Equal("subject_patient_id"),
		"practitioner": crud.Equal("practitioner_id"),
		"class":        crud.Equal("class_code"),
		"code":         crud.Equal("code.coding.0.code"),
		"date_from":    crud.From("period.start"),
		"date_to":      crud.To("period.start"),
	},
}).MustCheck()

func applyDefaults(enc *Encounter) {
	if enc.Status == "" {
		enc.Status = fhirmodels.EncounterStatusPlanned
	}
	if enc.ClassCode == "" {
		enc.ClassCode = fhirmodels.EncounterClassAmbulatory
	}
}

func validate(enc *Encounter) error {
	if !validStatuses[enc.Status] {
		return crud.NewFieldError("status", "must be one of: %s", strings.Join(statusList(), ", "))
	}
	if !enc.Period.Valid() {
		return crud.NewFieldError("period.end", "must not be before period.start")
	}
	return nil
}

func statusList() []string {
	out := make([]string, 0, len(validStatuses))
	for s := range validStatuses {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
