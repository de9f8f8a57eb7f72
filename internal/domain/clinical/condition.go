package clinical

import (
	"time"

	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/pkg/fhirmodels"
)

// Condition is a problem-list entry or diagnosis.
type Condition struct {
	crud.Meta
	FHIRID             string                      `json:"fhir_id,omitempty"`
	ClinicalStatus     string                      `json:"clinical_status" validate:"required,oneof=active recurrence relapse inactive remission resolved"`
	VerificationStatus string                      `json:"verification_status,omitempty" validate:"omitempty,oneof=unconfirmed provisional differential confirmed refuted entered-in-error"`
	SubjectPatientID   string                      `json:"subject_patient_id" validate:"required"`
	EncounterID        string                      `json:"encounter_id,omitempty"`
	Code               *fhirmodels.CodeableConcept `json:"code" validate:"required"`
	Severity           string                      `json:"severity,omitempty"`
	OnsetDate          *time.Time                  `json:"onset_date,omitempty"`
	AbatementDate      *time.Time                  `json:"abatement_date,omitempty"`
	Note               string                      `json:"note,omitempty"`
}

var ConditionKind = (&crud.Kind[*Condition]{
	Name:         "conditions",
	ResourceType: "Condition",
	New:          func() *Condition { return &Condition{} },
	Defaults: func(c *Condition) {
		if c.ClinicalStatus == "" {
			c.ClinicalStatus = fhirmodels.ConditionActive
		}
		if c.VerificationStatus == "" {
			c.VerificationStatus = fhirmodels.VerificationConfirmed
		}
	},
	Validate: func(c *Condition) error {
		if c.OnsetDate != nil && c.AbatementDate != nil && c.AbatementDate.Before(*c.OnsetDate) {
			return crud.NewFieldError("abatement_date", "must not be before onset_date")
		}
		if c.ClinicalStatus == fhirmodels.ConditionResolved && c.AbatementDate == nil {
			return crud.NewFieldError("abatement_date", "is required when clinical_status is resolved")
		}
		return nil
	},
	Filters: map[string]crud.Filter{
		"clinical_status":     crud.Equal("clinical_status"),
		"verification_status": crud.Equal("verification_status"),
		"patient":             crud.Equal("subject_patient_id"),
		"encounter":           crud.Equal("encounter_id"),
		"code":                crud.Equal("code.coding.0.code"),
		"onset_from":          crud.From("onset_date"),
		"onset_to":            crud.To("onset_date"),
	},
}).MustCheck()
