// Package workqueue defines work-queue-items: claims and tasks waiting for a
// biller or coordinator.
package workqueue

import (
	"time"

	"github.com/ehr/carehub/internal/platform/crud"
)

// Item statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
)

// Item is one row of a work queue.
type Item struct {
	crud.Meta
	Title            string     `json:"title" validate:"required"`
	ItemType         string     `json:"item_type" validate:"required,oneof=claim task prescription eligibility"`
	Reference        string     `json:"reference,omitempty"`
	SubjectPatientID string     `json:"subject_patient_id,omitempty"`
	Assignee         string     `json:"assignee,omitempty"`
	Status           string     `json:"status" validate:"required,oneof=open in-progress done"`
	Priority         string     `json:"priority" validate:"required,oneof=LOW NORMAL HIGH URGENT"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

var Kind = (&crud.Kind[*Item]{
	Name:         "work-queue-items",
	ResourceType: "WorkQueueItem",
	New:          func() *Item { return &Item{} },
	Defaults:     applyDefaults,
	Validate: func(it *Item) error {
		if it.Status == StatusInProgress && it.Assignee == "" {
			return crud.NewFieldError("assignee", "is required once work is in progress")
		}
		return nil
	},
	Filters: map[string]crud.Filter{
		"status":    crud.Equal("status"),
		"assignee":  crud.Equal("assignee"),
		"type":      crud.Equal("item_type"),
		"priority":  crud.Equal("priority"),
		"patient":   crud.Equal("subject_patient_id"),
		"reference": crud.Equal("reference"),
		"due_from":  crud.From("due_date"),
		"due_to":    crud.To("due_date"),
	},
}).MustCheck()

var now = func() time.Time { return time.Now().UTC() }

func applyDefaults(it *Item) {
	if it.Status == "" {
		it.Status = StatusOpen
	}
	if it.Priority == "" {
		it.Priority = "NORMAL"
	}
	switch {
	case it.Status == StatusDone && it.CompletedAt == nil:
		t := now()
		it.CompletedAt = &t
	case it.Status != StatusDone:
		it.CompletedAt = nil
	}
}
