package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ehr/carehub/pkg/editsession"
)

// fakeAPI serves a tiny patients and jobs API and records write bodies.
type fakeAPI struct {
	mu     sync.Mutex
	writes map[string]map[string]interface{}
	calls  []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/patients":
		_, _ = io.WriteString(w, `{"data":[
			{"id":"p1","mrn":"MRN-1","first_name":"Ada","last_name":"Lovelace","gender":"female"},
			{"id":"p2","mrn":"MRN-2","first_name":"Alan","last_name":"Turing","gender":"male"}
		],"total":2,"limit":20,"offset":0,"page":1,"total_pages":1,"has_more":false}`)
	case r.Method == http.MethodGet && r.URL.Path == "/patients/p1":
		_, _ = io.WriteString(w, `{"id":"p1","version_id":1,"fhir_id":"ext-9","mrn":"MRN-1","first_name":"Ada","last_name":"Lovelace","gender":"female","active":true}`)
	case r.Method == http.MethodPost && r.URL.Path == "/patients",
		r.Method == http.MethodPut && r.URL.Path == "/patients/p1":
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.writes[r.Method] = body
		f.mu.Unlock()
		if _, ok := body["id"]; !ok {
			body["id"] = "p-new"
		}
		code := http.StatusOK
		if r.Method == http.MethodPost {
			code = http.StatusCreated
		}
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	case r.Method == http.MethodGet && r.URL.Path == "/jobs/j1":
		_, _ = io.WriteString(w, `{"id":"j1","kind":"agent.deploy","status":"running","progress":40,"message":"package"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not found"}`)
	}
}

func (f *fakeAPI) write(method string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[method]
}

func (f *fakeAPI) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func run(t *testing.T, args ...string) (*fakeAPI, string, error) {
	t.Helper()
	api := &fakeAPI{writes: map[string]map[string]interface{}{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	t.Setenv("CAREHUB_API_URL", srv.URL)

	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return api, out.String(), err
}

func TestResourceRegistry(t *testing.T) {
	seen := map[string]bool{}
	for _, def := range resources {
		if seen[def.Name] {
			t.Errorf("duplicate resource %s", def.Name)
		}
		seen[def.Name] = true
		if len(def.Columns) == 0 {
			t.Errorf("%s has no display columns", def.Name)
		}
		for _, f := range def.Schema.Fields {
			if f.Kind == editsession.KindEnum && len(f.Options) == 0 {
				t.Errorf("%s.%s is an enum without options", def.Name, f.Name)
			}
			if f.Default != nil {
				if _, err := f.Coerce(f.Default); err != nil {
					t.Errorf("%s.%s default does not coerce: %v", def.Name, f.Name, err)
				}
			}
		}
	}
	if _, ok := findResource("patients"); !ok {
		t.Error("expected patients to be registered")
	}
}

func TestList_SearchFiltersLocally(t *testing.T) {
	_, out, err := run(t, "patients", "list", "--search", "LOVE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "p1") || strings.Contains(out, "p2") {
		t.Errorf("expected only p1 in output:\n%s", out)
	}
	if !strings.Contains(out, "of 2") {
		t.Errorf("expected summary with server total:\n%s", out)
	}
}

func TestCreate_CoercesAndAppliesDefaults(t *testing.T) {
	api, out, err := run(t, "patients", "create",
		"--set", "mrn=MRN-77",
		"--set", "first_name=Grace",
		"--set", "last_name=Hopper",
		"--set", "active=false")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	body := api.write(http.MethodPost)
	if body["gender"] != "unknown" {
		t.Errorf("expected default gender, got %v", body["gender"])
	}
	if body["active"] != false {
		t.Errorf("expected active=false as a bool, got %#v", body["active"])
	}
	if !strings.Contains(out, "p-new") {
		t.Errorf("expected saved id in output:\n%s", out)
	}
}

func TestCreate_MissingRequiredFieldsNeverPosts(t *testing.T) {
	api, out, err := run(t, "patients", "create", "--set", "mrn=MRN-77")
	if !errors.Is(err, editsession.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if !strings.Contains(out, "first_name: is required") || !strings.Contains(out, "last_name: is required") {
		t.Errorf("expected required-field messages:\n%s", out)
	}
	if n := api.count("POST /patients"); n != 0 {
		t.Errorf("expected no POST, got %d", n)
	}
}

func TestCreate_RejectsBadEnumValue(t *testing.T) {
	_, _, err := run(t, "patients", "create", "--set", "gender=robot")
	if err == nil || !strings.Contains(err.Error(), "must be one of") {
		t.Fatalf("expected enum error, got %v", err)
	}
}

func TestUpdate_KeepsFieldsOutsideTheSchema(t *testing.T) {
	api, out, err := run(t, "patients", "update", "p1", "--set", "last_name=King")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	body := api.write(http.MethodPut)
	if body["last_name"] != "King" {
		t.Errorf("expected new last name, got %v", body["last_name"])
	}
	if body["fhir_id"] != "ext-9" {
		t.Errorf("expected fhir_id to survive the replace, got %v", body["fhir_id"])
	}
}

func TestDelete_NotFound(t *testing.T) {
	_, _, err := run(t, "patients", "delete", "missing")
	if err == nil || !strings.Contains(err.Error(), "delete patients missing") {
		t.Fatalf("expected wrapped not-found error, got %v", err)
	}
}

func TestJobsGet_Table(t *testing.T) {
	_, out, err := run(t, "jobs", "get", "j1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"running", "40%", "package"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestOutputFlagIsChecked(t *testing.T) {
	_, _, err := run(t, "-o", "yaml", "jobs", "get", "j1")
	if err == nil || !strings.Contains(err.Error(), "--output") {
		t.Fatalf("expected output format error, got %v", err)
	}
}
