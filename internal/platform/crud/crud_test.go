package crud

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

type widget struct {
	Meta
	Name     string    `json:"name" validate:"required"`
	Status   string    `json:"status" validate:"required,oneof=draft active retired"`
	Owner    *owner    `json:"owner,omitempty"`
	Due      time.Time `json:"due"`
	Comments string    `json:"comments,omitempty"`
}

type owner struct {
	Display string `json:"display"`
}

func widgetKind() *Kind[*widget] {
	return &Kind[*widget]{
		Name:         "widgets",
		ResourceType: "Widget",
		New:          func() *widget { return &widget{} },
		Defaults: func(w *widget) {
			if w.Status == "" {
				w.Status = "draft"
			}
		},
		Validate: func(w *widget) error {
			if w.Name == "forbidden" {
				return NewFieldError("name", "is reserved")
			}
			return nil
		},
		Filters: map[string]Filter{
			"status":   Equal("status"),
			"owner":    Contains("owner.display"),
			"due_from": From("due"),
			"due_to":   To("due"),
		},
	}
}

type recordingObserver struct {
	changes []Change
}

func (o *recordingObserver) RecordChange(_ context.Context, c Change) {
	o.changes = append(o.changes, c)
}

func newTestService() (*Service[*widget], *recordingObserver) {
	kind := widgetKind()
	svc := NewService(kind, NewMemoryRepo(kind))
	obs := &recordingObserver{}
	svc.Observe(obs)
	return svc, obs
}

func TestKindCheck(t *testing.T) {
	k := widgetKind()
	if err := k.Check(); err != nil {
		t.Fatalf("expected valid kind, got %v", err)
	}

	bad := widgetKind()
	bad.Filters["x"] = Equal("body'; DROP TABLE")
	if err := bad.Check(); err == nil {
		t.Error("expected error for unsafe field path")
	}

	reserved := widgetKind()
	reserved.Filters[TextParam] = Equal("name")
	if err := reserved.Check(); err == nil {
		t.Error("expected error for reserved parameter")
	}
}

func TestService_CreateAssignsMeta(t *testing.T) {
	svc, obs := newTestService()
	w := &widget{Name: "Pump"}
	w.ID = uuid.New()

	if err := svc.Create(context.Background(), w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if w.VersionID != 1 {
		t.Errorf("expected version 1, got %d", w.VersionID)
	}
	if w.Status != "draft" {
		t.Errorf("expected default status draft, got %s", w.Status)
	}
	if len(obs.changes) != 1 || obs.changes[0].Action != ActionCreate {
		t.Errorf("expected one create notification, got %+v", obs.changes)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc, obs := newTestService()

	err := svc.Create(context.Background(), &widget{Status: "bogus"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Fields["name"] != "is required" {
		t.Errorf("expected name required, got %q", ve.Fields["name"])
	}
	if ve.Fields["status"] != "must be one of: draft, active, retired" {
		t.Errorf("unexpected status message %q", ve.Fields["status"])
	}

	err = svc.Create(context.Background(), &widget{Name: "forbidden"})
	if !IsValidation(err) {
		t.Errorf("expected domain validation error, got %v", err)
	}
	if len(obs.changes) != 0 {
		t.Errorf("expected no notifications, got %d", len(obs.changes))
	}
}

type coded struct {
	Code concept `json:"code"`
}

type concept struct {
	Coding []coding `json:"coding" validate:"dive"`
}

type coding struct {
	Code string `json:"code" validate:"required"`
}

func TestValidateStruct_NestedPathsUseDots(t *testing.T) {
	err := ValidateStruct(&coded{Code: concept{Coding: []coding{{Code: "AMB"}, {}}}})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Fields["code.coding.1.code"] != "is required" || len(ve.Fields) != 1 {
		t.Errorf("fields = %v", ve.Fields)
	}
}

func TestFieldPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Encounter.status", "status"},
		{"Encounter.code.coding[0].code", "code.coding.0.code"},
		{"Observation.component[2].code.coding[10].system", "component.2.code.coding.10.system"},
		{"name", "name"},
	}
	for _, tt := range tests {
		if got := fieldPath(tt.in); got != tt.want {
			t.Errorf("fieldPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestService_UpdateIsFullReplace(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	w := &widget{Name: "Pump", Status: "active", Comments: "keep me?"}
	if err := svc.Create(ctx, w); err != nil {
		t.Fatalf("create: %v", err)
	}
	created := w.CreatedAt

	repl := &widget{Name: "Pump v2", Status: "retired"}
	if err := svc.Update(ctx, w.ID, repl); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := svc.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Pump v2" || got.Status != "retired" {
		t.Errorf("unexpected record after update: %+v", got)
	}
	if got.Comments != "" {
		t.Errorf("expected comments cleared by full replace, got %q", got.Comments)
	}
	if got.VersionID != 2 {
		t.Errorf("expected version 2, got %d", got.VersionID)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("expected created_at preserved")
	}
}

func TestService_UpdateMissing(t *testing.T) {
	svc, _ := newTestService()
	err := svc.Update(context.Background(), uuid.New(), &widget{Name: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_DeleteTwice(t *testing.T) {
	svc, obs := newTestService()
	ctx := context.Background()
	w := &widget{Name: "Pump"}
	if err := svc.Create(ctx, w); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, w.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, w.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	last := obs.changes[len(obs.changes)-1]
	if last.Action != ActionDelete || last.ID != w.ID {
		t.Errorf("unexpected last change %+v", last)
	}
	if last.Record.(*widget).Name != "Pump" {
		t.Error("expected deleted record snapshot in change")
	}
}

func TestMemoryRepo_ListFilters(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC) }
	seed := []*widget{
		{Name: "Alpha", Status: "active", Owner: &owner{Display: "Dr. Smith"}, Due: day(1)},
		{Name: "Beta", Status: "draft", Owner: &owner{Display: "Nurse Jones"}, Due: day(10)},
		{Name: "Gamma", Status: "active", Due: day(20)},
	}
	for _, w := range seed {
		if err := svc.Create(ctx, w); err != nil {
			t.Fatalf("create %s: %v", w.Name, err)
		}
	}

	tests := []struct {
		name    string
		filters map[string]string
		want    []string
	}{
		{"no filters keeps creation order", nil, []string{"Alpha", "Beta", "Gamma"}},
		{"equal", map[string]string{"status": "active"}, []string{"Alpha", "Gamma"}},
		{"contains nested", map[string]string{"owner": "smith"}, []string{"Alpha"}},
		{"from", map[string]string{"due_from": "2024-03-05"}, []string{"Beta", "Gamma"}},
		{"to whole day", map[string]string{"due_to": "2024-03-10"}, []string{"Alpha", "Beta"}},
		{"free text", map[string]string{"q": "JONES"}, []string{"Beta"}},
		{"unknown ignored", map[string]string{"color": "red"}, []string{"Alpha", "Beta", "Gamma"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := svc.List(ctx, Query{Filters: tt.filters})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != len(tt.want) {
				t.Errorf("expected total %d, got %d", len(tt.want), total)
			}
			got := make([]string, len(items))
			for i, it := range items {
				got[i] = it.Name
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestMemoryRepo_ListPaging(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := svc.Create(ctx, &widget{Name: fmt.Sprintf("w%d", i)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	items, total, err := svc.List(ctx, Query{Limit: 2, Offset: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(items) != 2 || items[0].Name != "w3" || items[1].Name != "w4" {
		t.Errorf("unexpected page %+v", items)
	}

	items, _, _ = svc.List(ctx, Query{Limit: 2, Offset: 10})
	if len(items) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(items))
	}
}

func TestMemoryRepo_ListBadDate(t *testing.T) {
	svc, _ := newTestService()
	_, _, err := svc.List(context.Background(), Query{Filters: map[string]string{"due_from": "last week"}})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := ve.Fields["due_from"]; !ok {
		t.Errorf("expected due_from field error, got %v", ve.Fields)
	}
}

func TestMemoryRepo_SortField(t *testing.T) {
	kind := widgetKind()
	kind.SortField = "due"
	svc := NewService(kind, NewMemoryRepo(kind))
	ctx := context.Background()
	for i, d := range []int{5, 25, 15} {
		w := &widget{Name: fmt.Sprintf("w%d", i), Due: time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)}
		if err := svc.Create(ctx, w); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	items, _, _ := svc.List(ctx, Query{})
	if items[0].Name != "w1" || items[1].Name != "w2" || items[2].Name != "w0" {
		t.Errorf("expected newest due first, got %s %s %s", items[0].Name, items[1].Name, items[2].Name)
	}
}

func TestMemoryRepo_IsolatesCallers(t *testing.T) {
	kind := widgetKind()
	repo := NewMemoryRepo(kind)
	ctx := context.Background()
	w := &widget{Name: "Pump", Status: "draft", Owner: &owner{Display: "A"}}
	w.ID = uuid.New()
	if err := repo.Create(ctx, w); err != nil {
		t.Fatalf("create: %v", err)
	}
	w.Owner.Display = "mutated"

	got, err := repo.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Owner.Display != "A" {
		t.Errorf("expected stored copy to be unaffected, got %q", got.Owner.Display)
	}
}

func TestLookup(t *testing.T) {
	doc := map[string]interface{}{
		"code": map[string]interface{}{
			"coding": []interface{}{map[string]interface{}{"code": "AMB"}},
		},
	}
	if v, ok := lookup(doc, splitPath("code.coding.0.code")); !ok || v != "AMB" {
		t.Errorf("expected AMB, got %v", v)
	}
	if _, ok := lookup(doc, splitPath("code.coding.1.code")); ok {
		t.Error("expected out-of-range index to miss")
	}
}

func TestJSONText(t *testing.T) {
	if got := jsonText(splitPath("code.coding.0.code")); got != "body #>> '{code,coding,0,code}'" {
		t.Errorf("unexpected expression %s", got)
	}
	if got := escapeLike("50%_off"); got != `50\%\_off` {
		t.Errorf("unexpected escape %s", got)
	}
}
