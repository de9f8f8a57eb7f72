// Package integration defines the integrations resource: configured links
// to external systems such as payer EDI gateways and FHIR servers.
package integration

import (
	"net/url"

	"github.com/ehr/carehub/internal/platform/crud"
)

// Integration types.
const (
	TypeFHIR   = "fhir"
	TypeHL7v2  = "hl7v2"
	TypeEDI270 = "edi-270"
	TypeSFTP   = "sftp"
)

// Integration is a configured connection to an outside system.
type Integration struct {
	crud.Meta
	Name        string            `json:"name" validate:"required,max=120"`
	Type        string            `json:"type" validate:"required,oneof=fhir hl7v2 edi-270 sftp"`
	Endpoint    string            `json:"endpoint" validate:"required"`
	Enabled     bool              `json:"enabled"`
	Status      string            `json:"status" validate:"required,oneof=active inactive error"`
	Description string            `json:"description,omitempty"`
	Settings    map[string]string `json:"settings,omitempty"`
}

var schemes = map[string][]string{
	TypeFHIR:   {"http", "https"},
	TypeHL7v2:  {"mllp", "tcp"},
	TypeEDI270: {"http", "https", "sftp"},
	TypeSFTP:   {"sftp"},
}

var Kind = (&crud.Kind[*Integration]{
	Name:         "integrations",
	ResourceType: "Integration",
	New:          func() *Integration { return &Integration{} },
	Defaults: func(i *Integration) {
		if i.Status == "" {
			if i.Enabled {
				i.Status = "active"
			} else {
				i.Status = "inactive"
			}
		}
	},
	Validate: func(i *Integration) error {
		u, err := url.Parse(i.Endpoint)
		if err != nil || u.Host == "" {
			return crud.NewFieldError("endpoint", "must be an absolute URL")
		}
		for _, s := range schemes[i.Type] {
			if u.Scheme == s {
				return nil
			}
		}
		return crud.NewFieldError("endpoint", "scheme %q is not valid for %s integrations", u.Scheme, i.Type)
	},
	Filters: map[string]crud.Filter{
		"type":    crud.Equal("type"),
		"status":  crud.Equal("status"),
		"enabled": crud.Equal("enabled"),
		"name":    crud.Contains("name"),
	},
}).MustCheck()
