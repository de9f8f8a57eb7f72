// Package fhirmodels holds the FHIR-shaped value types and value sets shared
// by CareHub resources.
package fhirmodels

import "time"

// Coding is one code from a terminology.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept is a set of codings plus free text.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// First returns the first coding, if any.
func (c *CodeableConcept) First() (Coding, bool) {
	if c == nil || len(c.Coding) == 0 {
		return Coding{}, false
	}
	return c.Coding[0], true
}

// Quantity is a measured amount.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Period is a time range; either end may be open.
type Period struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Valid reports whether End is not before Start.
func (p *Period) Valid() bool {
	if p == nil || p.Start == nil || p.End == nil {
		return true
	}
	return !p.End.Before(*p.Start)
}

// EncounterStatus values per FHIR R4.
const (
	EncounterStatusPlanned        = "planned"
	EncounterStatusArrived        = "arrived"
	EncounterStatusTriaged        = "triaged"
	EncounterStatusInProgress     = "in-progress"
	EncounterStatusOnLeave        = "onleave"
	EncounterStatusFinished       = "finished"
	EncounterStatusCancelled      = "cancelled"
	EncounterStatusEnteredInError = "entered-in-error"
)

// EncounterClass codes per v3-ActCode.
const (
	EncounterClassAmbulatory = "AMB"
	EncounterClassEmergency  = "EMER"
	EncounterClassInpatient  = "IMP"
	EncounterClassVirtual    = "VR"
	EncounterClassHomeHealth = "HH"
)

// ObservationStatus values.
const (
	ObservationRegistered  = "registered"
	ObservationPreliminary = "preliminary"
	ObservationFinal       = "final"
	ObservationAmended     = "amended"
	ObservationCancelled   = "cancelled"
)

// ConditionClinicalStatus codes.
const (
	ConditionActive     = "active"
	ConditionRecurrence = "recurrence"
	ConditionRelapse    = "relapse"
	ConditionInactive   = "inactive"
	ConditionRemission  = "remission"
	ConditionResolved   = "resolved"
)

// ConditionVerificationStatus codes.
const (
	VerificationUnconfirmed = "unconfirmed"
	VerificationProvisional = "provisional"
	VerificationConfirmed   = "confirmed"
	VerificationRefuted     = "refuted"
)

// AllergyCriticality codes.
const (
	CriticalityLow          = "low"
	CriticalityHigh         = "high"
	CriticalityUnableToTell = "unable-to-assess"
)

// AppointmentStatus values.
const (
	AppointmentProposed  = "proposed"
	AppointmentPending   = "pending"
	AppointmentBooked    = "booked"
	AppointmentArrived   = "arrived"
	AppointmentFulfilled = "fulfilled"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "noshow"
)

// AdministrativeGender codes.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)
