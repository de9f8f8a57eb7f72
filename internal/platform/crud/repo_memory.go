package crud

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type memoryRow struct {
	seq  int64
	meta Meta
	body []byte
	doc  map[string]interface{}
}

// MemoryRepo keeps records as JSON in a map. Records are copied on the way
// in and out, so callers never share state with the store.
type MemoryRepo[T Entity] struct {
	kind *Kind[T]
	mu   sync.RWMutex
	rows map[uuid.UUID]*memoryRow
	seq  int64
}

func NewMemoryRepo[T Entity](kind *Kind[T]) *MemoryRepo[T] {
	return &MemoryRepo[T]{kind: kind, rows: make(map[uuid.UUID]*memoryRow)}
}

func (r *MemoryRepo[T]) encode(rec T) ([]byte, map[string]interface{}, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, nil, fmt.Errorf("encode %s: %w", r.kind.ResourceType, err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", r.kind.ResourceType, err)
	}
	return body, doc, nil
}

func (r *MemoryRepo[T]) decode(row *memoryRow) (T, error) {
	rec := r.kind.New()
	if err := json.Unmarshal(row.body, rec); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s: %w", r.kind.ResourceType, err)
	}
	*rec.Base() = row.meta
	return rec, nil
}

func (r *MemoryRepo[T]) Create(_ context.Context, rec T) error {
	body, doc, err := r.encode(rec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	meta := *rec.Base()
	if _, exists := r.rows[meta.ID]; exists {
		return fmt.Errorf("%s %s already exists", r.kind.ResourceType, meta.ID)
	}
	r.seq++
	r.rows[meta.ID] = &memoryRow{seq: r.seq, meta: meta, body: body, doc: doc}
	return nil
}

func (r *MemoryRepo[T]) Get(_ context.Context, id uuid.UUID) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return r.decode(row)
}

func (r *MemoryRepo[T]) Update(_ context.Context, rec T) error {
	body, doc, err := r.encode(rec)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	meta := *rec.Base()
	row, ok := r.rows[meta.ID]
	if !ok {
		return ErrNotFound
	}
	row.meta = meta
	row.body = body
	row.doc = doc
	return nil
}

func (r *MemoryRepo[T]) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *MemoryRepo[T]) List(_ context.Context, q Query) ([]T, int, error) {
	conds, text, err := resolveQuery(r.kind.Filters, q)
	if err != nil {
		return nil, 0, err
	}
	text = strings.ToLower(text)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*memoryRow
	for _, row := range r.rows {
		if text != "" && !strings.Contains(strings.ToLower(string(row.body)), text) {
			continue
		}
		if matchesAll(row.doc, conds) {
			matched = append(matched, row)
		}
	}
	r.sortRows(matched)

	total := len(matched)
	start := q.Offset
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < total {
		end = start + q.Limit
	}

	out := make([]T, 0, end-start)
	for _, row := range matched[start:end] {
		rec, err := r.decode(row)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, nil
}

// sortRows orders by SortField descending when set, otherwise by creation.
func (r *MemoryRepo[T]) sortRows(rows []*memoryRow) {
	var path []string
	if r.kind.SortField != "" {
		path = splitPath(r.kind.SortField)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if path != nil {
			a, _ := lookup(rows[i].doc, path)
			b, _ := lookup(rows[j].doc, path)
			as, bs := fmt.Sprint(a), fmt.Sprint(b)
			if a == nil {
				as = ""
			}
			if b == nil {
				bs = ""
			}
			if as != bs {
				return as > bs
			}
		}
		return rows[i].seq < rows[j].seq
	})
}

func matchesAll(doc map[string]interface{}, conds []condition) bool {
	for _, c := range conds {
		if !matches(doc, c) {
			return false
		}
	}
	return true
}

func matches(doc map[string]interface{}, c condition) bool {
	v, ok := lookup(doc, c.path)
	if !ok {
		return false
	}
	s := fmt.Sprint(v)
	switch c.op {
	case FilterEqual:
		return s == c.value
	case FilterContains:
		return strings.Contains(strings.ToLower(s), strings.ToLower(c.value))
	case FilterFrom, FilterTo:
		when, err := ParseDate(s)
		if err != nil {
			return false
		}
		if c.op == FilterFrom {
			return !when.Before(c.when)
		}
		return !when.After(c.when)
	}
	return false
}
