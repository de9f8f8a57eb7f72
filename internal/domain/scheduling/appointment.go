// Package scheduling defines the appointments and waitlist-entries
// resources.
package scheduling

import (
	"time"

	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/pkg/fhirmodels"
)

// Appointment is a booked slot between a patient and a practitioner.
type Appointment struct {
	crud.Meta
	FHIRID           string    `json:"fhir_id,omitempty"`
	Status           string    `json:"status" validate:"required,oneof=proposed pending booked arrived fulfilled cancelled noshow"`
	SubjectPatientID string    `json:"subject_patient_id" validate:"required"`
	PractitionerID   string    `json:"practitioner_id" validate:"required"`
	Start            time.Time `json:"start" validate:"required"`
	End              time.Time `json:"end" validate:"required"`
	ServiceType      string    `json:"service_type,omitempty"`
	Location         string    `json:"location,omitempty"`
	Comment          string    `json:"comment,omitempty"`
}

var AppointmentKind = (&crud.Kind[*Appointment]{
	Name:         "appointments",
	ResourceType: "Appointment",
	New:          func() *Appointment { return &Appointment{} },
	Defaults: func(a *Appointment) {
		if a.Status == "" {
			a.Status = fhirmodels.AppointmentBooked
		}
	},
	Validate: func(a *Appointment) error {
		if a.End.Before(a.Start) {
			return crud.NewFieldError("end", "must not be before start")
		}
		return nil
	},
	Filters: map[string]crud.Filter{
		"status":       crud.Equal("status"),
		"patient":      crud.Equal("subject_patient_id"),
		"practitioner": crud.Equal("practitioner_id"),
		"date_from":    crud.From("start"),
		"date_to":      crud.To("start"),
	},
	SortField: "start",
}).MustCheck()
