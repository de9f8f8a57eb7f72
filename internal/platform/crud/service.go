package crud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action names a successful mutation.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change describes a committed mutation.
type Change struct {
	Action       Action
	Kind         string
	ResourceType string
	ID           uuid.UUID
	// Record is the stored record after create or update and the last known
	// record before delete.
	Record Entity
}

// Observer is notified after every successful mutation. Observers must not
// fail the request; they log their own errors.
type Observer interface {
	RecordChange(ctx context.Context, change Change)
}

// Service applies defaults, validation and versioning for one kind.
type Service[T Entity] struct {
	kind      *Kind[T]
	repo      Repository[T]
	observers []Observer
	now       func() time.Time
}

func NewService[T Entity](kind *Kind[T], repo Repository[T]) *Service[T] {
	return &Service[T]{
		kind: kind,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service[T]) Kind() *Kind[T] { return s.kind }

// Observe registers o for change notifications.
func (s *Service[T]) Observe(o Observer) {
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

func (s *Service[T]) notify(ctx context.Context, action Action, rec T) {
	change := Change{
		Action:       action,
		Kind:         s.kind.Name,
		ResourceType: s.kind.ResourceType,
		ID:           rec.Base().ID,
		Record:       rec,
	}
	for _, o := range s.observers {
		o.RecordChange(ctx, change)
	}
}

func (s *Service[T]) check(rec T) error {
	if err := ValidateStruct(rec); err != nil {
		return err
	}
	if s.kind.Validate != nil {
		if err := s.kind.Validate(rec); err != nil {
			return err
		}
	}
	return nil
}

// Create assigns a fresh id, applies defaults and stores rec.
func (s *Service[T]) Create(ctx context.Context, rec T) error {
	if s.kind.Defaults != nil {
		s.kind.Defaults(rec)
	}
	if err := s.check(rec); err != nil {
		return err
	}

	now := s.now()
	*rec.Base() = Meta{ID: uuid.New(), VersionID: 1, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.Create(ctx, rec); err != nil {
		return err
	}
	s.notify(ctx, ActionCreate, rec)
	return nil
}

func (s *Service[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	return s.repo.Get(ctx, id)
}

// Update replaces the stored record with rec. Fields absent from rec are
// cleared; only id and created_at carry over.
func (s *Service[T]) Update(ctx context.Context, id uuid.UUID, rec T) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.kind.Defaults != nil {
		s.kind.Defaults(rec)
	}
	if err := s.check(rec); err != nil {
		return err
	}

	prev := existing.Base()
	*rec.Base() = Meta{
		ID:        id,
		VersionID: prev.VersionID + 1,
		CreatedAt: prev.CreatedAt,
		UpdatedAt: s.now(),
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return err
	}
	s.notify(ctx, ActionUpdate, rec)
	return nil
}

func (s *Service[T]) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, ActionDelete, existing)
	return nil
}

func (s *Service[T]) List(ctx context.Context, q Query) ([]T, int, error) {
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("list %s: %w", s.kind.Name, err)
	}
	return items, total, nil
}
