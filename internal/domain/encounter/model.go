package encounter

import (
	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/pkg/fhirmodels"
)

// Encounter is a patient visit as shown on the encounters screen.
type Encounter struct {
	crud.Meta
	FHIRID           string                      `json:"fhir_id,omitempty"`
	Status           string                      `json:"status"`
	ClassCode        string                      `json:"class_code,omitempty"`
	SubjectPatientID string                      `json:"subject_patient_id" validate:"required"`
	PractitionerID   string                      `json:"practitioner_id,omitempty"`
	Code             *fhirmodels.CodeableConcept `json:"code,omitempty"`
	Period           *fhirmodels.Period          `json:"period,omitempty"`
	ReasonText       string                      `json:"reason_text,omitempty"`
	IsTelehealth     bool                        `json:"is_telehealth"`
}
