// Package editsession drives create/edit forms for schema-less records: a
// declarative field schema, form state keyed by dotted field path, and a
// submit that posts or puts through the resource client.
package editsession

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type FieldKind string

// KindDate is a calendar date kept as YYYY-MM-DD. KindDateTime is an instant
// sent as RFC 3339; a bare date becomes midnight UTC.
const (
	KindText     FieldKind = "text"
	KindDate     FieldKind = "date"
	KindDateTime FieldKind = "datetime"
	KindEnum     FieldKind = "enum"
	KindNumber   FieldKind = "number"
	KindBool     FieldKind = "bool"
)

// Field describes one form input. Name is a dotted path into the record,
// e.g. code.coding.0.code.
type Field struct {
	Name     string
	Label    string
	Required bool
	Kind     FieldKind
	// Options lists the allowed values of an enum field.
	Options []string
	// Default seeds the field in create mode.
	Default interface{}
}

type Schema struct {
	Fields []Field
}

func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Coerce converts raw input, typically a string from a prompt or flag, to
// the field's value type. An empty string clears the field.
func (f Field) Coerce(raw interface{}) (interface{}, error) {
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	if raw == nil {
		return nil, nil
	}

	switch f.Kind {
	case KindNumber:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("must be a number")
			}
			return n, nil
		}
		return nil, fmt.Errorf("must be a number")
	case KindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("must be true or false")
			}
			return b, nil
		}
		return nil, fmt.Errorf("must be true or false")
	}

	s, ok := raw.(string)
	if !ok {
		s = fmt.Sprint(raw)
	}
	s = strings.TrimSpace(s)
	switch f.Kind {
	case KindDate:
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return nil, fmt.Errorf("must be a date (YYYY-MM-DD)")
		}
		return s, nil
	case KindDateTime:
		if d, err := time.Parse("2006-01-02", s); err == nil {
			return d.UTC().Format(time.RFC3339), nil
		}
		if _, err := time.Parse(time.RFC3339, s); err == nil {
			return s, nil
		}
		return nil, fmt.Errorf("must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	case KindEnum:
		for _, o := range f.Options {
			if o == s {
				return s, nil
			}
		}
		return nil, fmt.Errorf("must be one of: %s", strings.Join(f.Options, ", "))
	}
	return s, nil
}
