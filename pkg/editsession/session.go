package editsession

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ehr/carehub/pkg/client"
)

// ErrInvalid is returned by Submit when local or server validation failed;
// FieldErrors has the details.
var ErrInvalid = errors.New("form has invalid fields")

// Writer persists records. *client.Resource[client.Document] satisfies it.
type Writer interface {
	Create(ctx context.Context, payload client.Document) (client.Document, error)
	Update(ctx context.Context, id string, payload client.Document) (client.Document, error)
}

// Cache receives confirmed writes. *resourcestore.Store[client.Document]
// satisfies it.
type Cache interface {
	Apply(rec client.Document)
	Refresh(ctx context.Context) error
}

// Shell is the visibility of the form's modal. The parent screen owns it.
type Shell struct {
	mu      sync.RWMutex
	visible bool
}

func (s *Shell) Show() {
	s.mu.Lock()
	s.visible = true
	s.mu.Unlock()
}

func (s *Shell) Hide() {
	s.mu.Lock()
	s.visible = false
	s.mu.Unlock()
}

func (s *Shell) Visible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

// Session is one open form.
type Session struct {
	schema Schema
	writer Writer
	cache  Cache
	shell  *Shell
	logger zerolog.Logger

	mu        sync.Mutex
	editing   string
	base      client.Document
	values    map[string]interface{}
	fieldErrs map[string]string
	err       error
}

// New builds a session; cache may be nil.
func New(schema Schema, writer Writer, cache Cache, shell *Shell, logger zerolog.Logger) *Session {
	if shell == nil {
		shell = &Shell{}
	}
	return &Session{
		schema: schema,
		writer: writer,
		cache:  cache,
		shell:  shell,
		logger: logger,
		values: map[string]interface{}{},
	}
}

func (s *Session) Shell() *Shell { return s.shell }

// Open starts editing rec, or creating a new record when rec is nil, and
// shows the shell.
func (s *Session) Open(rec client.Document) {
	s.mu.Lock()
	s.values = map[string]interface{}{}
	s.fieldErrs = nil
	s.err = nil
	if rec == nil {
		s.editing = ""
		s.base = nil
		for _, f := range s.schema.Fields {
			if f.Default != nil {
				s.values[f.Name] = f.Default
			}
		}
	} else {
		s.editing = rec.RecordID()
		s.base = rec.Clone()
		for _, f := range s.schema.Fields {
			if v, ok := rec.Lookup(f.Name); ok && v != nil {
				s.values[f.Name] = v
			}
		}
	}
	s.mu.Unlock()
	s.shell.Show()
}

// Close discards the form state and hides the shell.
func (s *Session) Close() {
	s.mu.Lock()
	s.editing = ""
	s.base = nil
	s.values = map[string]interface{}{}
	s.fieldErrs = nil
	s.err = nil
	s.mu.Unlock()
	s.shell.Hide()
}

// Editing returns the id being edited, or "" in create mode.
func (s *Session) Editing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

// Set stores a form value after coercing it to the field's kind. Names not
// in the schema are rejected.
func (s *Session) Set(name string, raw interface{}) error {
	f, ok := s.schema.Field(name)
	if !ok {
		return fmt.Errorf("unknown field %q", name)
	}
	v, err := f.Coerce(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.setFieldErr(name, err.Error())
		return fmt.Errorf("%s %w", name, err)
	}
	delete(s.fieldErrs, name)
	if v == nil {
		delete(s.values, name)
	} else {
		s.values[name] = v
	}
	return nil
}

func (s *Session) setFieldErr(name, msg string) {
	if s.fieldErrs == nil {
		s.fieldErrs = map[string]string{}
	}
	s.fieldErrs[name] = msg
}

func (s *Session) Value(name string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[name]
}

// FieldErrors returns per-field messages from the last Set or Submit.
func (s *Session) FieldErrors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.fieldErrs))
	for k, v := range s.fieldErrs {
		out[k] = v
	}
	return out
}

// Err is the last submit failure that was not tied to a field.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Submit validates required fields, then creates or replaces the record.
// On success the cache gets the saved record, the shell closes and the
// cache is refreshed. On failure the shell stays open.
func (s *Session) Submit(ctx context.Context) (client.Document, error) {
	s.mu.Lock()
	s.err = nil
	s.fieldErrs = nil
	for _, f := range s.schema.Fields {
		if !f.Required {
			continue
		}
		if v, ok := s.values[f.Name]; !ok || v == nil || v == "" {
			s.setFieldErr(f.Name, "is required")
		}
	}
	if len(s.fieldErrs) > 0 {
		s.mu.Unlock()
		return nil, ErrInvalid
	}

	payload := s.base.Clone()
	if payload == nil {
		payload = client.Document{}
	}
	names := make([]string, 0, len(s.schema.Fields))
	for _, f := range s.schema.Fields {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v, ok := s.values[name]; ok {
			payload.Set(name, v)
		} else if _, had := payload.Lookup(name); had {
			payload.Set(name, nil)
		}
	}
	editing := s.editing
	s.mu.Unlock()

	var (
		saved client.Document
		err   error
	)
	if editing != "" {
		saved, err = s.writer.Update(ctx, editing, payload)
	} else {
		saved, err = s.writer.Create(ctx, payload)
	}
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.IsValidation() && len(apiErr.Fields) > 0 {
			for k, v := range apiErr.Fields {
				s.setFieldErr(k, v)
			}
			return nil, ErrInvalid
		}
		s.err = err
		return nil, err
	}

	s.Close()
	if s.cache != nil {
		s.cache.Apply(saved)
		if err := s.cache.Refresh(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("refresh after save failed")
		}
	}
	return saved, nil
}
