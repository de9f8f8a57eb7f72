package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/carehub/internal/domain/encounter"
	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/pkg/pagination"
)

func newEncounterServer(t *testing.T) *httptest.Server {
	t.Helper()
	e := echo.New()
	crud.Mount(e.Group("/api/v1"), encounter.Kind, crud.NewMemoryRepo(encounter.Kind))
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func TestResource_EncounterLifecycle(t *testing.T) {
	srv := newEncounterServer(t)
	c := New(Config{BaseURL: srv.URL + "/api/v1/"})
	encounters := NewResource[*encounter.Encounter](c, "encounters")
	ctx := context.Background()

	created, err := encounters.Create(ctx, &encounter.Encounter{FHIRID: "ENC-1", Status: "planned", SubjectPatientID: "P-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := created.RecordID()
	if id == "" {
		t.Fatal("expected server-assigned id")
	}

	list, err := encounters.List(ctx, Filters{"fhir_id": "ENC-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].RecordID() != id {
		t.Fatalf("expected exactly one ENC-1, got %d", len(list))
	}

	update := *created
	update.Status = "finished"
	if _, err := encounters.Update(ctx, id, &update); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := encounters.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "finished" || got.FHIRID != "ENC-1" || got.VersionID != 2 {
		t.Errorf("after update = %+v", got)
	}

	if err := encounters.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	list, _ = encounters.List(ctx, nil)
	for _, enc := range list {
		if enc.RecordID() == id {
			t.Error("removed encounter still listed")
		}
	}
}

func TestResource_ListFollowsEveryPage(t *testing.T) {
	e := echo.New()
	svc := crud.Mount(e.Group("/api/v1"), encounter.Kind, crud.NewMemoryRepo(encounter.Kind))
	srv := httptest.NewServer(e)
	defer srv.Close()
	ctx := context.Background()

	n := pagination.MaxLimit + 5
	for i := 0; i < n; i++ {
		if err := svc.Create(ctx, &encounter.Encounter{SubjectPatientID: "P-1"}); err != nil {
			t.Fatal(err)
		}
	}

	encounters := NewResource[*encounter.Encounter](New(Config{BaseURL: srv.URL + "/api/v1"}), "encounters")
	created, err := encounters.Create(ctx, &encounter.Encounter{FHIRID: "ENC-NEW", SubjectPatientID: "P-1"})
	if err != nil {
		t.Fatal(err)
	}

	list, err := encounters.List(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != n+1 {
		t.Fatalf("list returned %d records, want %d", len(list), n+1)
	}
	seen := make(map[string]bool, len(list))
	for _, enc := range list {
		seen[enc.RecordID()] = true
	}
	if !seen[created.RecordID()] || len(seen) != n+1 {
		t.Errorf("new record listed=%v, distinct=%d", seen[created.RecordID()], len(seen))
	}

	if err := encounters.Remove(ctx, created.RecordID()); err != nil {
		t.Fatal(err)
	}
	list, _ = encounters.List(ctx, nil)
	for _, enc := range list {
		if enc.RecordID() == created.RecordID() {
			t.Fatal("removed encounter still listed")
		}
	}
	if len(list) != n {
		t.Errorf("after remove: %d records, want %d", len(list), n)
	}
}

func TestResource_UpdateIsFullReplace(t *testing.T) {
	srv := newEncounterServer(t)
	docs := NewResource[Document](New(Config{BaseURL: srv.URL + "/api/v1"}), "encounters")
	ctx := context.Background()

	created, err := docs.Create(ctx, Document{"subject_patient_id": "P-2", "reason_text": "follow-up"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := docs.Update(ctx, created.RecordID(), Document{"subject_patient_id": "P-2", "status": "arrived"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := docs.Get(ctx, created.RecordID())
	if err != nil {
		t.Fatal(err)
	}
	if got.String("reason_text") != "" {
		t.Errorf("reason_text survived a full replace: %q", got.String("reason_text"))
	}
	if got.String("status") != "arrived" {
		t.Errorf("status = %q", got.String("status"))
	}
}

func TestResource_RemoveTwiceIsNotFound(t *testing.T) {
	srv := newEncounterServer(t)
	encounters := NewResource[*encounter.Encounter](New(Config{BaseURL: srv.URL + "/api/v1"}), "encounters")
	ctx := context.Background()

	created, err := encounters.Create(ctx, &encounter.Encounter{SubjectPatientID: "P-3"})
	if err != nil {
		t.Fatal(err)
	}
	if err := encounters.Remove(ctx, created.RecordID()); err != nil {
		t.Fatalf("first remove: %v", err)
	}
	err = encounters.Remove(ctx, created.RecordID())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove: expected ErrNotFound, got %v", err)
	}
	if IsNetworkError(err) {
		t.Error("404 reported as a network error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "encounter not found" {
		t.Errorf("unexpected error detail %v", err)
	}
}

func TestResource_ValidationFields(t *testing.T) {
	srv := newEncounterServer(t)
	encounters := NewResource[*encounter.Encounter](New(Config{BaseURL: srv.URL + "/api/v1"}), "encounters")

	_, err := encounters.Create(context.Background(), &encounter.Encounter{Status: "planned"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if !apiErr.IsValidation() || apiErr.Fields["subject_patient_id"] != "is required" {
		t.Errorf("unexpected validation error %+v", apiErr)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("422 matched ErrNotFound")
	}
}

func TestResource_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	docs := NewResource[Document](New(Config{BaseURL: url}), "encounters")
	_, err := docs.Get(context.Background(), "abc")
	if !IsNetworkError(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("network failure matched ErrNotFound")
	}
}

func TestClient_QueryAndAuth(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"a"}],"total":41,"limit":20,"offset":20,"page":2,"total_pages":3,"has_more":true}`))
	}))
	defer srv.Close()

	docs := NewResource[Document](New(Config{BaseURL: srv.URL, Token: "tok"}), "waitlist-entries")
	page, err := docs.ListPage(context.Background(), Filters{"q": "smith & co", "status": "ACTIVE"}, Page{Number: 2, Limit: 20})
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "limit=20&page=2&q=smith+%26+co&status=ACTIVE" {
		t.Errorf("query = %s", gotQuery)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if page.Total != 41 || page.TotalPages != 3 || len(page.Data) != 1 || page.Data[0].RecordID() != "a" {
		t.Errorf("page = %+v", page)
	}
}

func TestClient_ResourceURLOverride(t *testing.T) {
	c := New(Config{BaseURL: "http://gateway/api/v1", ResourceURLs: map[string]string{"agents": "http://agents:9000/v1/"}})
	if got := c.BaseURL("agents"); got != "http://agents:9000/v1" {
		t.Errorf("override = %s", got)
	}
	if got := c.BaseURL("encounters"); got != "http://gateway/api/v1" {
		t.Errorf("default = %s", got)
	}
}

func TestClient_RetriesOnlyIdempotent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x"}`))
	}))
	defer srv.Close()

	docs := NewResource[Document](New(Config{BaseURL: srv.URL, RetryMax: 2}), "notes")
	if _, err := docs.Get(context.Background(), "x"); err != nil {
		t.Fatalf("get with retry: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("GET calls = %d, want 2", calls)
	}

	atomic.StoreInt32(&calls, 0)
	_, err := docs.Create(context.Background(), Document{"a": 1})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 APIError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("POST calls = %d, want 1", calls)
	}
}

func TestClient_NoRetryByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewResource[Document](New(Config{BaseURL: srv.URL}), "notes").Get(context.Background(), "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "Bad Gateway" {
		t.Fatalf("unexpected error %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDocument_Paths(t *testing.T) {
	d := Document{}
	d.Set("code.coding.0.code", "AMB")
	d.Set("code.coding.0.display", "ambulatory")
	d.Set("status", "planned")

	if got := d.String("code.coding.0.code"); got != "AMB" {
		t.Errorf("code = %q", got)
	}
	if _, ok := d.Lookup("code.coding.1.code"); ok {
		t.Error("lookup past the end succeeded")
	}

	cp := d.Clone()
	cp.Set("code.coding.0.code", "EMER")
	if d.String("code.coding.0.code") != "AMB" {
		t.Error("clone shares nested state")
	}
	if (Document{"id": 7}).RecordID() != "" {
		t.Error("non-string id returned")
	}
}
