package clinical

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/pkg/fhirmodels"
)

func code(c string) *fhirmodels.CodeableConcept {
	return &fhirmodels.CodeableConcept{Coding: []fhirmodels.Coding{{Code: c}}}
}

func TestObservation_Defaults(t *testing.T) {
	svc := crud.NewService(ObservationKind, crud.NewMemoryRepo(ObservationKind))
	obs := &Observation{SubjectPatientID: "P-1", Code: code("8867-4"), ValueQuantity: &fhirmodels.Quantity{Value: 72, Unit: "/min"}}
	if err := svc.Create(context.Background(), obs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Status != "preliminary" {
		t.Errorf("expected preliminary, got %s", obs.Status)
	}
}

func TestObservation_Validation(t *testing.T) {
	svc := crud.NewService(ObservationKind, crud.NewMemoryRepo(ObservationKind))
	tests := []struct {
		name  string
		obs   *Observation
		field string
	}{
		{"missing code", &Observation{SubjectPatientID: "P-1"}, "code"},
		{"empty coding", &Observation{SubjectPatientID: "P-1", Code: &fhirmodels.CodeableConcept{Text: "pulse"}}, "code.coding"},
		{"two values", &Observation{SubjectPatientID: "P-1", Code: code("x"), ValueString: "high", ValueQuantity: &fhirmodels.Quantity{Value: 1}}, "value_string"},
		{"bad status", &Observation{SubjectPatientID: "P-1", Code: code("x"), Status: "done"}, "status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), tt.obs)
			var ve *crud.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := ve.Fields[tt.field]; !ok {
				t.Errorf("expected %s error, got %v", tt.field, ve.Fields)
			}
		})
	}
}

func TestObservation_NewestFirst(t *testing.T) {
	svc := crud.NewService(ObservationKind, crud.NewMemoryRepo(ObservationKind))
	ctx := context.Background()
	for _, d := range []int{1, 3, 2} {
		when := time.Date(2024, 4, d, 8, 0, 0, 0, time.UTC)
		if err := svc.Create(ctx, &Observation{SubjectPatientID: "P-1", Code: code("x"), EffectiveDate: &when}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	items, _, err := svc.List(ctx, crud.Query{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if items[0].EffectiveDate.Day() != 3 || items[2].EffectiveDate.Day() != 1 {
		t.Errorf("expected newest first, got %v %v %v", items[0].EffectiveDate, items[1].EffectiveDate, items[2].EffectiveDate)
	}
}

func TestCondition_ResolvedNeedsAbatement(t *testing.T) {
	svc := crud.NewService(ConditionKind, crud.NewMemoryRepo(ConditionKind))
	err := svc.Create(context.Background(), &Condition{SubjectPatientID: "P-1", Code: code("I10"), ClinicalStatus: "resolved"})
	if !crud.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	onset := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	abated := onset.AddDate(0, 6, 0)
	c := &Condition{SubjectPatientID: "P-1", Code: code("I10"), ClinicalStatus: "resolved", OnsetDate: &onset, AbatementDate: &abated}
	if err := svc.Create(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.VerificationStatus != "confirmed" {
		t.Errorf("expected default confirmed, got %s", c.VerificationStatus)
	}
}

func TestAllergy_ReactionSearch(t *testing.T) {
	svc := crud.NewService(AllergyKind, crud.NewMemoryRepo(AllergyKind))
	ctx := context.Background()
	_ = svc.Create(ctx, &Allergy{SubjectPatientID: "P-1", Code: code("penicillin"), ReactionText: "Hives and itching"})
	_ = svc.Create(ctx, &Allergy{SubjectPatientID: "P-1", Code: code("peanut"), ReactionText: "Anaphylaxis"})

	items, total, err := svc.List(ctx, crud.Query{Filters: map[string]string{"reaction": "HIVES"}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || items[0].Criticality != "unable-to-assess" {
		t.Errorf("unexpected result %+v", items)
	}
}
