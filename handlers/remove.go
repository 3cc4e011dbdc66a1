package handlers

import (
	"context"

	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/internal/logger"
	"github.com/quiet-mesh/quietcore/store"
)

// Remove implements §4.3.3's early phase: an envelope whose event_id is
// already tombstoned in the store is dropped before spending any more
// cycles decrypting or validating it. No event type in this protocol
// registers a content-phase remover (member removal is handled by
// member's own projector deleting the group_members row, not by
// dropping the remove event itself), so the content phase here is a
// pass-through that marks remove_checked so later passes skip it.
func Remove(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"remove",
		func(e *envelope.Envelope) bool {
			return e.EventID != "" && !e.RemoveChecked
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			row, err := deps.Store.GetEvent(ctx, e.EventID)
			switch err {
			case nil:
				if row.Purged {
					deps.logger().Debug("remove: dropping tombstoned event",
						logger.String("event_id", e.EventID))
					return nil, nil
				}
			case store.ErrPurged:
				deps.logger().Debug("remove: dropping tombstoned event",
					logger.String("event_id", e.EventID))
				return nil, nil
			case store.ErrNotFound:
				// Not seen before; nothing to tombstone against.
			default:
				return nil, err
			}

			out := e.Clone()
			out.RemoveChecked = true
			out.ShouldRemove = false
			return []*envelope.Envelope{out}, nil
		},
	)
}
