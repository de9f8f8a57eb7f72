package clinical

import (
	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/pkg/fhirmodels"
)

// Allergy records an AllergyIntolerance.
type Allergy struct {
	crud.Meta
	FHIRID           string                      `json:"fhir_id,omitempty"`
	ClinicalStatus   string                      `json:"clinical_status" validate:"required,oneof=active inactive resolved"`
	Criticality      string                      `json:"criticality,omitempty" validate:"omitempty,oneof=low high unable-to-assess"`
	Category         string                      `json:"category,omitempty" validate:"omitempty,oneof=food medication environment biologic"`
	SubjectPatientID string                      `json:"subject_patient_id" validate:"required"`
	Code             *fhirmodels.CodeableConcept `json:"code" validate:"required"`
	ReactionText     string                      `json:"reaction_text,omitempty"`
}

var AllergyKind = (&crud.Kind[*Allergy]{
	Name:         "allergies",
	ResourceType: "AllergyIntolerance",
	New:          func() *Allergy { return &Allergy{} },
	Defaults: func(a *Allergy) {
		if a.ClinicalStatus == "" {
			a.ClinicalStatus = fhirmodels.ConditionActive
		}
		if a.Criticality == "" {
			a.Criticality = fhirmodels.CriticalityUnableToTell
		}
	},
	Filters: map[string]crud.Filter{
		"clinical_status": crud.Equal("clinical_status"),
		"criticality":     crud.Equal("criticality"),
		"category":        crud.Equal("category"),
		"patient":         crud.Equal("subject_patient_id"),
		"code":            crud.Equal("code.coding.0.code"),
		"reaction":        crud.Contains("reaction_text"),
	},
}).MustCheck()
