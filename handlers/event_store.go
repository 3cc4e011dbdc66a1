package handlers

import (
	"context"

	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/internal/logger"
	"github.com/quiet-mesh/quietcore/internal/metrics"
	"github.com/quiet-mesh/quietcore/store"
)

// keyRefString renders the envelope's key reference in the same
// "kind:id" form the transit wire body carries, so a row replayed
// through sync reconstructs the exact event-crypto sub-path that
// decrypted it the first time.
func keyRefString(e *envelope.Envelope) string {
	if e.KeyRefKind == "" {
		return e.KeyRefID
	}
	return e.KeyRefKind + ":" + e.KeyRefID
}

// purgeEvent tombstones an envelope's event id, writing the event row
// first when it doesn't exist yet: validate and membership-check run
// before event-store in the handler order (§4.3), so a freshly
// received envelope that fails there has never been persisted, and a
// bare UPDATE-style purge would be a silent no-op — leaving no
// tombstone for the remove handler to drop redeliveries against (§8's
// purge-preserves-identity property).
func purgeEvent(ctx context.Context, deps Deps, e *envelope.Envelope, reason string) {
	log := deps.logger()
	switch _, err := deps.Store.GetEvent(ctx, e.EventID); err {
	case store.ErrPurged:
		// Already tombstoned; keep the original reason and TTL.
		return
	case store.ErrNotFound:
		if err := deps.Store.PutEvent(ctx, store.EventRow{
			EventID:         e.EventID,
			EventType:       e.EventType,
			EventCiphertext: e.EventCiphertext,
			EventKeyID:      keyRefString(e),
			ReceivedAt:      e.ReceivedAt,
			OriginIP:        e.OriginIP,
			OriginPort:      e.OriginPort,
			StoredAt:        deps.Clock.Now(),
		}); err != nil {
			log.Error("purge: store tombstone row",
				logger.String("event_id", e.EventID), logger.Error(err))
			return
		}
	}
	if err := deps.Store.Purge(ctx, e.EventID, reason, TombstoneTTL); err != nil && err != store.ErrPurged {
		log.Error("purge: mark event purged",
			logger.String("event_id", e.EventID), logger.Error(err))
		return
	}
	log.Warn("event purged",
		logger.String("event_id", e.EventID),
		logger.String("event_type", e.EventType),
		logger.String("reason", reason))
	metrics.EventsPurged.WithLabelValues(e.EventType, reason).Inc()
}

// EventStore implements §4.3.9: persist a write_to_store envelope's raw
// row into the append-only event log.
func EventStore(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"event_store",
		func(e *envelope.Envelope) bool {
			return e.WriteToStore && e.EventID != "" && !e.Stored
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			existing, err := deps.Store.GetEvent(ctx, e.EventID)
			switch err {
			case nil:
				if existing.Purged {
					return nil, errkind.New(errkind.PurgedDuplicate, "event_store: "+e.EventID+" was already purged")
				}
				out := e.Clone()
				out.Stored = true
				return []*envelope.Envelope{out}, nil
			case store.ErrPurged:
				return nil, errkind.New(errkind.PurgedDuplicate, "event_store: "+e.EventID+" was already purged")
			case store.ErrNotFound:
				// fall through to insert
			default:
				return nil, errkind.Wrap(errkind.Internal, "event_store: lookup existing row", err)
			}

			if err := deps.Store.PutEvent(ctx, store.EventRow{
				EventID:         e.EventID,
				EventType:       e.EventType,
				EventCiphertext: e.EventCiphertext,
				EventKeyID:      keyRefString(e),
				ReceivedAt:      e.ReceivedAt,
				OriginIP:        e.OriginIP,
				OriginPort:      e.OriginPort,
				StoredAt:        deps.Clock.Now(),
				Validated:       e.Validated,
			}); err != nil {
				return nil, errkind.Wrap(errkind.Internal, "event_store: put event", err)
			}
			metrics.EventsStored.WithLabelValues(e.EventType).Inc()
			deps.logger().Debug("event stored",
				logger.String("event_id", e.EventID),
				logger.String("event_type", e.EventType))

			out := e.Clone()
			out.Stored = true
			return []*envelope.Envelope{out}, nil
		},
	)
}
