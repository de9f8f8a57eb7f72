package scheduling

import (
	"time"

	"github.com/ehr/carehub/internal/platform/crud"
)

// Waitlist priorities.
const (
	PriorityLow    = "LOW"
	PriorityNormal = "NORMAL"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

// Waitlist statuses. Any status may be set from any other.
const (
	WaitlistActive    = "ACTIVE"
	WaitlistContacted = "CONTACTED"
	WaitlistScheduled = "SCHEDULED"
	WaitlistRemoved   = "REMOVED"
)

// WaitlistEntry is a patient waiting for an appointment slot.
type WaitlistEntry struct {
	crud.Meta
	SubjectPatientID string     `json:"subject_patient_id" validate:"required"`
	PatientName      string     `json:"patient_name,omitempty"`
	PractitionerID   string     `json:"practitioner_id,omitempty"`
	Department       string     `json:"department,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	Priority         string     `json:"priority" validate:"required,oneof=LOW NORMAL HIGH URGENT"`
	Status           string     `json:"status" validate:"required,oneof=ACTIVE CONTACTED SCHEDULED REMOVED"`
	PreferredDate    *time.Time `json:"preferred_date,omitempty"`
	ContactPhone     string     `json:"contact_phone,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

var WaitlistKind = (&crud.Kind[*WaitlistEntry]{
	Name:         "waitlist-entries",
	ResourceType: "WaitlistEntry",
	New:          func() *WaitlistEntry { return &WaitlistEntry{} },
	Defaults: func(w *WaitlistEntry) {
		if w.Priority == "" {
			w.Priority = PriorityNormal
		}
		if w.Status == "" {
			w.Status = WaitlistActive
		}
	},
	Filters: map[string]crud.Filter{
		"status":       crud.Equal("status"),
		"priority":     crud.Equal("priority"),
		"patient":      crud.Equal("subject_patient_id"),
		"practitioner": crud.Equal("practitioner_id"),
		"department":   crud.Equal("department"),
		"name":         crud.Contains("patient_name"),
	},
}).MustCheck()
