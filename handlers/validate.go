package handlers

import (
	"context"

	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/logger"
)

// needsMembership reports the event types membership-check gates before
// reaching here; validate still runs for them once membership passes.
func needsMembership(eventType string) bool {
	switch eventType {
	case events.TypeMessage, events.TypeMember, events.TypeInvite:
		return true
	}
	return false
}

// Validate implements §4.3.7: dispatch to the event type's registered
// validator; failure purges the row and drops the envelope rather than
// re-emitting it.
func Validate(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"validate",
		func(e *envelope.Envelope) bool {
			if e.Validated || e.EventPlaintext == nil || e.EventType == "" || !e.SigChecked || !depsReady(e) {
				return false
			}
			if !e.SelfCreated && e.EventID == "" {
				return false
			}
			if e.GroupID != "" && needsMembership(e.EventType) && !e.IsGroupMember {
				return false
			}
			return true
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			spec, ok := events.Lookup(e.EventType)
			if !ok {
				if e.EventID != "" {
					purgeEvent(ctx, deps, e, "unknown_event_type")
				} else {
					deps.logger().Warn("validate: dropping unknown event type",
						logger.String("event_type", e.EventType))
				}
				return nil, nil
			}

			if !spec.Validate(e) {
				if e.EventID != "" {
					purgeEvent(ctx, deps, e, "validation_failed")
				} else {
					deps.logger().Warn("validate: dropping malformed self-created event",
						logger.String("event_type", e.EventType))
				}
				return nil, nil
			}

			out := e.Clone()
			out.Validated = true
			return []*envelope.Envelope{out}, nil
		},
	)
}
