// Package clinical defines the observations, conditions and allergies
// resources.
package clinical

import (
	"time"

	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/pkg/fhirmodels"
)

// Observation is a measurement or finding about a patient.
type Observation struct {
	crud.Meta
	FHIRID           string                      `json:"fhir_id,omitempty"`
	Status           string                      `json:"status" validate:"required,oneof=registered preliminary final amended cancelled entered-in-error"`
	Category         string                      `json:"category,omitempty"`
	SubjectPatientID string                      `json:"subject_patient_id" validate:"required"`
	EncounterID      string                      `json:"encounter_id,omitempty"`
	Code             *fhirmodels.CodeableConcept `json:"code" validate:"required"`
	ValueQuantity    *fhirmodels.Quantity        `json:"value_quantity,omitempty"`
	ValueString      string                      `json:"value_string,omitempty"`
	EffectiveDate    *time.Time                  `json:"effective_date,omitempty"`
	Interpretation   string                      `json:"interpretation,omitempty"`
}

var ObservationKind = (&crud.Kind[*Observation]{
	Name:         "observations",
	ResourceType: "Observation",
	New:          func() *Observation { return &Observation{} },
	Defaults: func(o *Observation) {
		if o.Status == "" {
			o.Status = fhirmodels.ObservationPreliminary
		}
	},
	Validate: func(o *Observation) error {
		if _, ok := o.Code.First(); !ok {
			return crud.NewFieldError("code.coding", "needs at least one coding")
		}
		if o.ValueQuantity != nil && o.ValueString != "" {
			return crud.NewFieldError("value_string", "cannot be combined with value_quantity")
		}
		return nil
	},
	Filters: map[string]crud.Filter{
		"status":    crud.Equal("status"),
		"category":  crud.Equal("category"),
		"patient":   crud.Equal("subject_patient_id"),
		"encounter": crud.Equal("encounter_id"),
		"code":      crud.Equal("code.coding.0.code"),
		"date_from": crud.From("effective_date"),
		"date_to":   crud.To("effective_date"),
	},
	SortField: "effective_date",
}).MustCheck()
