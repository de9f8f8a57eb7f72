package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Record is anything with a server-assigned id.
type Record interface {
	RecordID() string
}

// Filters are passed through as query parameters without validation.
type Filters map[string]string

// Page selects a window of a list. Zero values leave the server defaults.
type Page struct {
	Number int
	Limit  int
}

// PageResult is the server's list envelope.
type PageResult[T Record] struct {
	Data       []T  `json:"data"`
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Page       int  `json:"page"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// Resource is the CRUD surface of one collection, e.g. "encounters".
type Resource[T Record] struct {
	c    *Client
	name string
}

// NewResource returns the client for the collection at {base}/{name}.
func NewResource[T Record](c *Client, name string) *Resource[T] {
	return &Resource[T]{c: c, name: name}
}

func (r *Resource[T]) Name() string { return r.name }

func (r *Resource[T]) collectionURL() string {
	return r.c.BaseURL(r.name) + "/" + r.name
}

func (r *Resource[T]) itemURL(id string) string {
	return r.collectionURL() + "/" + url.PathEscape(id)
}

// listPageSize is the page size List asks for; the server caps it at 100.
const listPageSize = 100

// List returns every record matching filters, following pages until the
// server reports no more.
func (r *Resource[T]) List(ctx context.Context, filters Filters) ([]T, error) {
	out := []T{}
	for n := 1; ; n++ {
		res, err := r.ListPage(ctx, filters, Page{Number: n, Limit: listPageSize})
		if err != nil {
			return nil, err
		}
		out = append(out, res.Data...)
		if !res.HasMore || len(res.Data) == 0 {
			return out, nil
		}
	}
}

// ListPage fetches one page of records matching filters.
func (r *Resource[T]) ListPage(ctx context.Context, filters Filters, page Page) (*PageResult[T], error) {
	params := make(map[string]string, len(filters)+2)
	for k, v := range filters {
		params[k] = v
	}
	if page.Number > 0 {
		params["page"] = strconv.Itoa(page.Number)
	}
	if page.Limit > 0 {
		params["limit"] = strconv.Itoa(page.Limit)
	}

	u := r.collectionURL()
	if q := encodeQuery(params); q != "" {
		u += "?" + q
	}
	var out PageResult[T]
	if err := r.c.doJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []T{}
	}
	return &out, nil
}

// Get fetches the record with id.
func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.c.doJSON(ctx, http.MethodGet, r.itemURL(id), nil, &out)
	return out, err
}

// Create posts payload; the returned record carries the assigned id.
func (r *Resource[T]) Create(ctx context.Context, payload T) (T, error) {
	var out T
	err := r.c.doJSON(ctx, http.MethodPost, r.collectionURL(), payload, &out)
	return out, err
}

// Update replaces the record with payload in full.
func (r *Resource[T]) Update(ctx context.Context, id string, payload T) (T, error) {
	var out T
	err := r.c.doJSON(ctx, http.MethodPut, r.itemURL(id), payload, &out)
	return out, err
}

// Remove deletes the record with id.
func (r *Resource[T]) Remove(ctx context.Context, id string) error {
	return r.c.doJSON(ctx, http.MethodDelete, r.itemURL(id), nil, nil)
}
