package activity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ehr/carehub/internal/platform/auth"
	"github.com/ehr/carehub/internal/platform/crud"
	"github.com/ehr/carehub/internal/platform/middleware"
)

// Recorder turns CRUD changes into activity events. It never fails the
// request that caused the change.
type Recorder struct {
	svc       *crud.Service[*Event]
	publisher Publisher
	logger    zerolog.Logger
}

func NewRecorder(svc *crud.Service[*Event], publisher Publisher, logger zerolog.Logger) *Recorder {
	if publisher == nil {
		publisher = NopPublisher()
	}
	return &Recorder{svc: svc, publisher: publisher, logger: logger}
}

func (r *Recorder) RecordChange(ctx context.Context, change crud.Change) {
	// The activity log does not log itself.
	if change.Kind == Kind.Name {
		return
	}
	evt := &Event{
		Action:       string(change.Action),
		ResourceKind: change.Kind,
		ResourceType: change.ResourceType,
		ResourceID:   change.ID.String(),
		Actor:        auth.UserIDFromContext(ctx),
		Summary:      summarize(change),
		RequestID:    middleware.RequestIDFromContext(ctx),
	}

	// Detach from request cancellation; the mutation already happened.
	ctx = context.WithoutCancel(ctx)
	if err := r.svc.Create(ctx, evt); err != nil {
		r.logger.Error().Err(err).
			Str("resource_type", change.ResourceType).
			Str("resource_id", evt.ResourceID).
			Msg("failed to record activity event")
		return
	}
	if err := r.publisher.Publish(ctx, evt); err != nil {
		r.logger.Warn().Err(err).
			Str("event_id", evt.ID.String()).
			Msg("failed to publish activity event")
	}
}

var pastTense = map[crud.Action]string{
	crud.ActionCreate: "created",
	crud.ActionUpdate: "updated",
	crud.ActionDelete: "deleted",
}

func summarize(change crud.Change) string {
	verb := pastTense[change.Action]
	if verb == "" {
		verb = string(change.Action)
	}
	return fmt.Sprintf("%s %s %s", change.ResourceType, change.ID, verb)
}
