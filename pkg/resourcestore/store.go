// Package resourcestore holds the client-side list state of one resource
// screen: an id-keyed cache of the current page, a loading flag, the last
// refresh error, a search term and the paging window.
package resourcestore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ehr/carehub/pkg/client"
	"github.com/ehr/carehub/pkg/pagination"
)

// Lister is the part of client.Resource the store needs.
type Lister[T client.Record] interface {
	ListPage(ctx context.Context, filters client.Filters, page client.Page) (*client.PageResult[T], error)
}

// DisplayFunc renders the searchable display fields of a record.
type DisplayFunc[T client.Record] func(T) []string

// Store is safe for concurrent use.
type Store[T client.Record] struct {
	src     Lister[T]
	display DisplayFunc[T]
	logger  zerolog.Logger

	mu      sync.RWMutex
	byID    map[string]T
	order   []string
	loading bool
	err     error
	term    string
	filters client.Filters
	page    int
	limit   int
	total   int
	// gen advances on every refresh start and every mutation. A refresh
	// only lands if nothing newer happened while it was in flight.
	gen   uint64
	stale bool
}

func New[T client.Record](src Lister[T], display DisplayFunc[T], logger zerolog.Logger) *Store[T] {
	return &Store[T]{
		src:     src,
		display: display,
		logger:  logger,
		byID:    make(map[string]T),
		page:    1,
		limit:   pagination.DefaultLimit,
	}
}

// Refresh reloads the current page. The cache is replaced in full on
// success; on failure the previous contents stay and Err reports why.
func (s *Store[T]) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.loading = true
	filters := make(client.Filters, len(s.filters))
	for k, v := range s.filters {
		filters[k] = v
	}
	page := client.Page{Number: s.page, Limit: s.limit}
	s.mu.Unlock()

	res, err := s.src.ListPage(ctx, filters, page)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// A newer refresh or mutation superseded this one; that caller
		// owns the loading flag now.
		s.logger.Debug().Uint64("generation", gen).Msg("discarding superseded refresh")
		return err
	}
	s.loading = false
	if err != nil {
		s.err = err
		s.logger.Error().Err(err).Msg("refresh failed")
		return err
	}
	s.err = nil
	s.stale = false
	s.total = res.Total
	s.byID = make(map[string]T, len(res.Data))
	s.order = s.order[:0]
	for _, rec := range res.Data {
		id := rec.RecordID()
		if _, dup := s.byID[id]; !dup {
			s.order = append(s.order, id)
		}
		s.byID[id] = rec
	}
	return nil
}

// Apply records a confirmed create or update. The cache is marked stale;
// the next Refresh re-reads the server's view.
func (s *Store[T]) Apply(rec T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.loading = false
	s.stale = true
	id := rec.RecordID()
	if _, ok := s.byID[id]; !ok {
		s.order = append(s.order, id)
		s.total++
	}
	s.byID[id] = rec
}

// Forget records a confirmed delete.
func (s *Store[T]) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.loading = false
	s.stale = true
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.total > 0 {
		s.total--
	}
}

// Items returns the cached records in server order.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	return rec, ok
}

func (s *Store[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err is the error of the last refresh, nil once a refresh succeeds.
func (s *Store[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Stale reports whether local mutations happened since the last refresh.
func (s *Store[T]) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

func (s *Store[T]) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term = term
}

func (s *Store[T]) SearchTerm() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.term
}

// SetFilters replaces the server-side filters used by Refresh.
func (s *Store[T]) SetFilters(f client.Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = make(client.Filters, len(f))
	for k, v := range f {
		s.filters[k] = v
	}
}

// Filtered returns the cached records whose display fields contain the
// search term, ignoring case. The term is not trimmed, so spaces must match
// too. An empty term returns every record.
func (s *Store[T]) Filtered() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	term := strings.ToLower(s.term)
	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		rec := s.byID[id]
		if term == "" || s.matches(rec, term) {
			out = append(out, rec)
		}
	}
	return out
}

func (s *Store[T]) matches(rec T, term string) bool {
	if s.display == nil {
		return false
	}
	for _, field := range s.display(rec) {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// SetPage selects the window for the next Refresh. Limit is clamped like
// the server clamps it so TotalPages matches what the server returns.
func (s *Store[T]) SetPage(page, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page < 1 {
		page = 1
	}
	s.page = page
	s.limit = pagination.Normalize(limit, 0).Limit
}

func (s *Store[T]) Page() (page, limit int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page, s.limit
}

// Total is the server-reported number of matching records.
func (s *Store[T]) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

func (s *Store[T]) TotalPages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pagination.TotalPages(s.total, s.limit)
}

// Fields builds a DisplayFunc over dotted paths of client.Document records.
func Fields(paths ...string) DisplayFunc[client.Document] {
	return func(d client.Document) []string {
		out := make([]string, len(paths))
		for i, p := range paths {
			out[i] = d.String(p)
		}
		return out
	}
}

// Summary renders a one-line description used in logs and CLI output.
func (s *Store[T]) Summary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("%d of %d (page %d/%d)", len(s.order), s.total, s.page, pagination.TotalPages(s.total, s.limit))
}
