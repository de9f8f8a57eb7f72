// Package identity defines the patients and practitioners resources.
package identity

import (
	"regexp"
	"strings"

	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/pkg/fhirmodels"
)

// Patient is a person receiving care.
type Patient struct {
	crud.Meta
	FHIRID      string `json:"fhir_id,omitempty"`
	MRN         string `json:"mrn" validate:"required"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	BirthDate   string `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Gender      string `json:"gender" validate:"required,oneof=male female other unknown"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Active      bool   `json:"active"`
	InsuranceID string `json:"insurance_id,omitempty"`
}

var PatientKind = (&crud.Kind[*Patient]{
	Name:         "patients",
	ResourceType: "Patient",
	New:          func() *Patient { return &Patient{Active: true} },
	Defaults: func(p *Patient) {
		if p.Gender == "" {
			p.Gender = fhirmodels.GenderUnknown
		}
		p.MRN = strings.ToUpper(strings.TrimSpace(p.MRN))
	},
	Validate: func(p *Patient) error {
		if p.MRN != "" && !mrnPattern.MatchString(p.MRN) {
			return crud.NewFieldError("mrn", "must be 4-20 letters, digits or dashes")
		}
		return nil
	},
	Filters: map[string]crud.Filter{
		"mrn":        crud.Equal("mrn"),
		"family":     crud.Contains("last_name"),
		"given":      crud.Contains("first_name"),
		"gender":     crud.Equal("gender"),
		"birth_date": crud.Equal("birth_date"),
		"active":     crud.Equal("active"),
	},
}).MustCheck()

var mrnPattern = regexp.MustCompile(`^[A-Z0-9-]{4,20}$`)
