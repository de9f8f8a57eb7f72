// Package activity keeps the activity log: one event per successful
// mutation of any other resource, optionally fanned out to RabbitMQ.
package activity

import (
	"time"

	"github.com/ehr/carehub/internal/platform/crud"
)

// Event is one activity-log line.
type Event struct {
	crud.Meta
	Action       string    `json:"action" validate:"required,oneof=create update delete login export"`
	ResourceKind string    `json:"resource_kind,omitempty"`
	ResourceType string    `json:"resource_type" validate:"required"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

var Kind = (&crud.Kind[*Event]{
	Name:         "activity-events",
	ResourceType: "ActivityEvent",
	New:          func() *Event { return &Event{} },
	Defaults: func(e *Event) {
		if e.OccurredAt.IsZero() {
			e.OccurredAt = time.Now().UTC()
		}
	},
	Filters: map[string]crud.Filter{
		"action":        crud.Equal("action"),
		"resource_type": crud.Equal("resource_type"),
		"resource_id":   crud.Equal("resource_id"),
		"actor":         crud.Equal("actor"),
		"date_from":     crud.From("occurred_at"),
		"date_to":       crud.To("occurred_at"),
	},
	SortField: "occurred_at",
}).MustCheck()
