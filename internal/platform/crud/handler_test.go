package crud

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	kind := widgetKind()
	Mount(e.Group("/api/v1"), kind, NewMemoryRepo(kind))
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateAndGet(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/v1/widgets", `{"name":"Pump","status":"active"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created widget
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = do(e, http.MethodGet, "/api/v1/widgets/"+created.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got widget
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Name != "Pump" || got.ID != created.ID {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestHandler_CreateValidation422(t *testing.T) {
	e := newTestServer(t)

	rec := do(e, http.MethodPost, "/api/v1/widgets", `{"status":"active"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body ValidationBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Fields["name"] != "is required" {
		t.Errorf("expected name field error, got %v", body.Fields)
	}
}

func TestHandler_MalformedBody(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodPost, "/api/v1/widgets", `{"name":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_InvalidID(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/v1/widgets/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_NotFound(t *testing.T) {
	e := newTestServer(t)
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := do(e, method, "/api/v1/widgets/00000000-0000-0000-0000-000000000001", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", method, rec.Code)
		}
	}
	rec := do(e, http.MethodPut, "/api/v1/widgets/00000000-0000-0000-0000-000000000001", `{"name":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("PUT: expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "widget not found") {
		t.Errorf("expected not found message, got %s", rec.Body.String())
	}
}

func TestHandler_ListEnvelope(t *testing.T) {
	e := newTestServer(t)
	for _, name := range []string{"a", "b", "c"} {
		do(e, http.MethodPost, "/api/v1/widgets", `{"name":"`+name+`","status":"active"}`)
	}
	do(e, http.MethodPost, "/api/v1/widgets", `{"name":"d"}`)

	rec := do(e, http.MethodGet, "/api/v1/widgets?status=active&limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Data    []widget `json:"data"`
		Total   int      `json:"total"`
		Limit   int      `json:"limit"`
		HasMore bool     `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("expected total 3, got %d", resp.Total)
	}
	if len(resp.Data) != 2 || !resp.HasMore {
		t.Errorf("expected 2 items with more, got %d has_more=%v", len(resp.Data), resp.HasMore)
	}
}

func TestHandler_EmptyListIsArray(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodGet, "/api/v1/widgets", "")
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty data array, got %s", rec.Body.String())
	}
}

func TestHandler_UpdateDelete(t *testing.T) {
	e := newTestServer(t)
	rec := do(e, http.MethodPost, "/api/v1/widgets", `{"name":"Pump","status":"active"}`)
	var created widget
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	path := "/api/v1/widgets/" + created.ID.String()

	rec = do(e, http.MethodPut, path, `{"name":"Pump","status":"retired"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var updated widget
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Status != "retired" || updated.VersionID != 2 {
		t.Errorf("unexpected update result %+v", updated)
	}

	rec = do(e, http.MethodDelete, path, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = do(e, http.MethodDelete, path, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}
