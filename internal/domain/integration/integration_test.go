package integration

import (
	"context"
	"testing"

	"github.com/ehr/carehub/internal/platform/crud"
)

func TestIntegration_EndpointScheme(t *testing.T) {
	svc := crud.NewService(Kind, crud.NewMemoryRepo(Kind))
	tests := []struct {
		name    string
		in      *Integration
		wantErr bool
	}{
		{"fhir https", &Integration{Name: "Payer FHIR", Type: TypeFHIR, Endpoint: "https://payer.test/fhir"}, false},
		{"hl7 over mllp", &Integration{Name: "Lab feed", Type: TypeHL7v2, Endpoint: "mllp://lab.test:2575"}, false},
		{"sftp with https", &Integration{Name: "Drop", Type: TypeSFTP, Endpoint: "https://files.test"}, true},
		{"relative", &Integration{Name: "Bad", Type: TypeFHIR, Endpoint: "/fhir"}, true},
		{"unknown type", &Integration{Name: "Bad", Type: "smtp", Endpoint: "smtp://mail.test"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIntegration_StatusFollowsEnabled(t *testing.T) {
	svc := crud.NewService(Kind, crud.NewMemoryRepo(Kind))
	on := &Integration{Name: "A", Type: TypeFHIR, Endpoint: "https://a.test", Enabled: true}
	off := &Integration{Name: "B", Type: TypeFHIR, Endpoint: "https://b.test"}
	for _, i := range []*Integration{on, off} {
		if err := svc.Create(context.Background(), i); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if on.Status != "active" || off.Status != "inactive" {
		t.Errorf("unexpected statuses %s/%s", on.Status, off.Status)
	}
}
