// Package crud is the generic resource controller every CareHub REST resource
// is built on: one Kind describes a resource, a Repository persists it, a
// Service applies defaults and validation, and a Handler exposes list, read,
// create, full-replace update and delete over echo.
package crud

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Meta carries the server-managed fields shared by every record.
type Meta struct {
	ID        uuid.UUID `json:"id"`
	VersionID int       `json:"version_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Base returns the record's server-managed fields. Models embed Meta, which
// makes any *Model satisfy Entity.
func (m *Meta) Base() *Meta { return m }

// RecordID returns the id as a string for client-side caches.
func (m *Meta) RecordID() string {
	if m.ID == uuid.Nil {
		return ""
	}
	return m.ID.String()
}

// Entity is implemented by pointers to models embedding Meta.
type Entity interface {
	Base() *Meta
}

// FilterOp selects how a list filter compares a record field to the
// requested value.
type FilterOp int

const (
	// FilterEqual matches the field's exact value.
	FilterEqual FilterOp = iota
	// FilterFrom matches dates on or after the value.
	FilterFrom
	// FilterTo matches dates on or before the value.
	FilterTo
	// FilterContains matches a case-insensitive substring.
	FilterContains
)

// Filter binds a query parameter to a JSON field of the record. Field is a
// dotted path; numeric segments index arrays (code.coding.0.code).
type Filter struct {
	Field string
	Op    FilterOp
}

func Equal(field string) Filter    { return Filter{Field: field, Op: FilterEqual} }
func From(field string) Filter     { return Filter{Field: field, Op: FilterFrom} }
func To(field string) Filter       { return Filter{Field: field, Op: FilterTo} }
func Contains(field string) Filter { return Filter{Field: field, Op: FilterContains} }

// TextParam is the reserved free-text query parameter. It matches any
// record whose JSON body contains the value, case-insensitively.
const TextParam = "q"

// Kind describes one REST resource.
type Kind[T Entity] struct {
	// Name is the route segment, e.g. "encounters".
	Name string
	// ResourceType is the singular type name used in messages and activity
	// events, e.g. "Encounter".
	ResourceType string
	// New returns an empty record to decode into.
	New func() T
	// Defaults fills unset fields on create.
	Defaults func(T)
	// Validate applies rules struct tags cannot express.
	Validate func(T) error
	// Filters maps query parameter names to record fields.
	Filters map[string]Filter
	// SortField orders lists newest-first by this field; empty orders by
	// creation time.
	SortField string
}

var fieldPathPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z0-9_]+)*$`)

// Check verifies the kind is usable. Field paths end up in SQL, so they are
// restricted to lower-case identifiers.
func (k *Kind[T]) Check() error {
	if k.Name == "" {
		return fmt.Errorf("kind name is required")
	}
	if k.New == nil {
		return fmt.Errorf("kind %s: constructor is required", k.Name)
	}
	if k.ResourceType == "" {
		return fmt.Errorf("kind %s: resource type is required", k.Name)
	}
	for param, f := range k.Filters {
		if param == TextParam {
			return fmt.Errorf("kind %s: %q is reserved for free-text search", k.Name, TextParam)
		}
		if !fieldPathPattern.MatchString(f.Field) {
			return fmt.Errorf("kind %s: invalid filter field %q", k.Name, f.Field)
		}
	}
	if k.SortField != "" && !fieldPathPattern.MatchString(k.SortField) {
		return fmt.Errorf("kind %s: invalid sort field %q", k.Name, k.SortField)
	}
	return nil
}

// MustCheck panics if the kind is misconfigured. Kinds are declared at
// package level, so a bad one is a programming error.
func (k *Kind[T]) MustCheck() *Kind[T] {
	if err := k.Check(); err != nil {
		panic(err)
	}
	return k
}
