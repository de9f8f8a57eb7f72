package crud

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Query is a decoded list request: raw filter values keyed by query
// parameter plus paging.
type Query struct {
	Filters map[string]string
	Limit   int
	Offset  int
}

// Repository persists records of one kind.
type Repository[T Entity] interface {
	Create(ctx context.Context, rec T) error
	Get(ctx context.Context, id uuid.UUID) (T, error)
	Update(ctx context.Context, rec T) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q Query) ([]T, int, error)
}

// condition is one resolved filter ready for a backend.
type condition struct {
	path  []string
	op    FilterOp
	value string
	when  time.Time
}

// resolveQuery keeps the parameters the kind knows about and parses date
// bounds. Unknown parameters are ignored.
func resolveQuery(filters map[string]Filter, q Query) (conds []condition, text string, err error) {
	for param, raw := range q.Filters {
		if raw == "" {
			continue
		}
		if param == TextParam {
			text = raw
			continue
		}
		f, ok := filters[param]
		if !ok {
			continue
		}
		c := condition{path: splitPath(f.Field), op: f.Op, value: raw}
		if f.Op == FilterFrom || f.Op == FilterTo {
			when, perr := ParseDate(raw)
			if perr != nil {
				return nil, "", NewFieldError(param, "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
			}
			// A plain end date covers the whole day.
			if f.Op == FilterTo && len(raw) == len("2006-01-02") {
				when = when.Add(24*time.Hour - time.Nanosecond)
			}
			c.when = when
		}
		conds = append(conds, c)
	}
	return conds, text, nil
}

// ParseDate accepts RFC 3339 timestamps and plain dates.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func splitPath(field string) []string {
	return strings.Split(field, ".")
}

// lookup walks a decoded JSON document along path.
func lookup(doc interface{}, path []string) (interface{}, bool) {
	cur := doc
	for _, seg := range path {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}
