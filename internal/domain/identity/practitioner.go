package identity

import (
	"github.com/ehr/carehub/internal/platform/crud"
)

// Practitioner is a clinician who can be scheduled or assigned work.
type Practitioner struct {
	crud.Meta
	FHIRID    string `json:"fhir_id,omitempty"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	NPI       string `json:"npi" validate:"required,len=10,numeric"`
	Specialty string `json:"specialty,omitempty"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Active    bool   `json:"active"`
}

var PractitionerKind = (&crud.Kind[*Practitioner]{
	Name:         "practitioners",
	ResourceType: "Practitioner",
	New:          func() *Practitioner { return &Practitioner{Active: true} },
	Validate: func(p *Practitioner) error {
		if !validNPI(p.NPI) {
			return crud.NewFieldError("npi", "fails the NPI check digit")
		}
		return nil
	},
	Filters: map[string]crud.Filter{
		"npi":       crud.Equal("npi"),
		"family":    crud.Contains("last_name"),
		"specialty": crud.Contains("specialty"),
		"active":    crud.Equal("active"),
	},
}).MustCheck()

// validNPI applies the Luhn check used for NPIs, with the 80840 card
// issuer prefix folded in as the constant 24.
func validNPI(npi string) bool {
	if len(npi) != 10 {
		return false
	}
	sum := 24
	for i := 0; i < 9; i++ {
		d := int(npi[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return int(npi[9]-'0') == check
}
