package handlers

import (
	"context"

	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/internal/metrics"
	"github.com/quiet-mesh/quietcore/store"
)

// Project implements §4.3.8: apply the event type's projector deltas to
// the derived view, persist any local-only secrets the event carried,
// and re-emit its own unblock trigger so ResolveDeps can wake waiters
// in the same pass.
func Project(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"project",
		func(e *envelope.Envelope) bool {
			return e.Validated && !e.Projected && (e.EventID != "" || e.SelfCreated)
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			if len(e.Secret) > 0 {
				prekeyID, _ := e.EventPlaintext["prekey_id"].(string)
				if prekeyID != "" {
					if err := deps.Store.StoreTransitKey(ctx, prekeyID, e.Secret, e.GroupID); err != nil {
						return nil, errkind.Wrap(errkind.Internal, "project: persist unsealed key secret", err)
					}
				}
			}
			if e.EventType == events.TypeIdentity {
				if priv, ok := e.LocalMetadata["private_key"].([]byte); ok && len(priv) > 0 {
					if err := deps.Store.StoreSigningKey(ctx, e.PeerID, priv); err != nil {
						return nil, errkind.Wrap(errkind.Internal, "project: persist signing key", err)
					}
				}
			}

			spec, ok := events.Lookup(e.EventType)
			if !ok {
				return nil, errkind.New(errkind.UnknownEventType, "project: unknown event type "+e.EventType)
			}

			deltas := spec.Project(e)
			storeDeltas := make([]store.Delta, 0, len(deltas))
			for _, d := range deltas {
				storeDeltas = append(storeDeltas, store.Delta{
					Op: string(d.Op), Table: d.Table, Data: d.Data, Where: d.Where,
				})
				metrics.ProjectionsApplied.WithLabelValues(d.Table, string(d.Op)).Inc()
			}
			if err := deps.Store.ApplyDeltas(ctx, storeDeltas); err != nil {
				return nil, errkind.Wrap(errkind.StoreConflict, "project: apply deltas", err)
			}

			out := e.Clone()
			out.Deltas = deltas
			out.Projected = true
			return []*envelope.Envelope{out}, nil
		},
	)
}
