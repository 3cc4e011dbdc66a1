package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/internal/logger"
	"github.com/quiet-mesh/quietcore/internal/metrics"
	"github.com/quiet-mesh/quietcore/store"
)

// ResolveDeps implements §4.3.2: it both resolves an envelope's
// declared deps against the store and, on an envelope that was just
// validated, wakes any envelopes blocked waiting on that entity.
//
// Dependency refs are "kind:id" strings (envelope.DepRef). id is an
// entity id (a peer, network, group or channel id), not an event id —
// resolution and the blocked-waiter reverse index are both keyed on
// the literal ref string, so a waiter blocked on "identity:peer1" is
// woken the moment any envelope projects a peers row with id "peer1".
func ResolveDeps(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"resolve_deps",
		func(e *envelope.Envelope) bool {
			needsResolve := len(e.Deps) > 0 && !e.DepsIncludedAndValid
			justValidated := e.Validated && !e.UnblockChecked
			return needsResolve || justValidated
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			if e.Validated && !e.UnblockChecked {
				woken, err := unblockWaiters(ctx, deps, e)
				if err != nil {
					return nil, err
				}
				// The triggering envelope continues down the chain
				// itself; only the unblock sweep is one-shot.
				cont := e.Clone()
				cont.UnblockChecked = true
				return append([]*envelope.Envelope{cont}, woken...), nil
			}

			return resolveOne(ctx, deps, e)
		},
	)
}

func resolveOne(ctx context.Context, deps Deps, e *envelope.Envelope) ([]*envelope.Envelope, error) {
	resolvedDeps := make(map[string]any, len(e.Deps))
	var missing []string

	for _, ref := range e.Deps {
		val, ok, err := resolveDepRef(ctx, deps, ref)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, ref)
			continue
		}
		resolvedDeps[ref] = val
	}

	out := e.Clone()
	if len(missing) == 0 {
		out.ResolvedDeps = resolvedDeps
		out.DepsIncludedAndValid = true
		out.MissingDeps = false
		out.MissingDepList = nil
		return []*envelope.Envelope{out}, nil
	}

	out.MissingDeps = true
	out.MissingDepList = missing
	if out.EventID == "" {
		// No content id to snapshot under. This is either a transit
		// envelope whose transit key is simply not configured (no event
		// will ever arrive to satisfy a transit_key ref) or a
		// self-created envelope built against missing prerequisites (a
		// command-layer mistake). Both fail loudly instead of parking.
		return nil, errkind.New(errkind.DependencyMissing,
			"resolve_deps: no event id to block under; missing "+strings.Join(missing, ", "))
	}
	if out.RetryCount >= MaxRetryCount {
		_ = deps.Store.DeleteBlocked(ctx, out.EventID)
		metrics.DependenciesExhausted.Inc()
		deps.logger().Warn("resolve_deps: retry budget exhausted, dropping envelope",
			logger.String("event_id", out.EventID),
			logger.String("event_type", out.EventType),
			logger.Int("retry_count", out.RetryCount))
		return nil, nil
	}

	blob, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	if err := deps.Store.SaveBlocked(ctx, store.BlockedEvent{
		EventID:      out.EventID,
		EnvelopeBlob: blob,
		CreatedAt:    deps.Clock.Now(),
		MissingDeps:  missing,
		RetryCount:   out.RetryCount,
	}); err != nil {
		return nil, err
	}
	metrics.DependenciesBlocked.Inc()
	deps.logger().Debug("resolve_deps: envelope blocked on missing deps",
		logger.String("event_id", out.EventID),
		logger.String("event_type", out.EventType),
		logger.Any("missing", missing),
		logger.Int("retry_count", out.RetryCount))
	return nil, nil
}

func unblockWaiters(ctx context.Context, deps Deps, e *envelope.Envelope) ([]*envelope.Envelope, error) {
	var woken []*envelope.Envelope
	for _, ref := range satisfiedRefs(e) {
		waiters, err := deps.Store.Waiters(ctx, ref)
		if err != nil {
			return nil, err
		}
		for _, w := range waiters {
			var we envelope.Envelope
			if err := json.Unmarshal(w.EnvelopeBlob, &we); err != nil {
				continue
			}
			we.RetryCount++
			we.Unblocked = true
			we.DepsIncludedAndValid = false
			we.MissingDeps = false
			if err := deps.Store.DeleteBlocked(ctx, w.EventID); err != nil {
				return nil, err
			}
			deps.logger().Debug("resolve_deps: waiter unblocked",
				logger.String("event_id", we.EventID),
				logger.String("satisfied_by", ref),
				logger.Int("retry_count", we.RetryCount))
			woken = append(woken, &we)
		}
	}
	return woken, nil
}

// satisfiedRefs lists the "kind:id" refs this just-validated envelope
// now satisfies. identity and peer entries both resolve the same
// projected peers row, so a peer-typed event satisfies both ref kinds.
func satisfiedRefs(e *envelope.Envelope) []string {
	var refs []string
	switch e.EventType {
	case "identity", "peer":
		refs = append(refs, envelope.DepRef("identity", e.PeerID), envelope.DepRef("peer", e.PeerID))
	case "network":
		refs = append(refs, envelope.DepRef("network", e.NetworkID))
	case "group":
		refs = append(refs, envelope.DepRef("group", e.GroupID))
	case "channel":
		refs = append(refs, envelope.DepRef("channel", e.ChannelID))
	case "key":
		if id, ok := e.EventPlaintext["prekey_id"].(string); ok {
			refs = append(refs, envelope.DepRef("key", id))
		}
	}
	return refs
}

func resolveDepRef(ctx context.Context, deps Deps, ref string) (any, bool, error) {
	kind, id, ok := strings.Cut(ref, ":")
	if !ok {
		return nil, false, nil
	}

	switch kind {
	case "transit_key":
		secret, _, err := deps.Store.LoadTransitKey(ctx, id)
		if err == store.ErrNotFound {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return secret, true, nil

	case "key":
		// Unsealed group/channel key material is persisted under the
		// transit-key table, keyed by prekey_id rather than a network
		// id (§4.3.5's unseal sub-path writes it there).
		secret, _, err := deps.Store.LoadTransitKey(ctx, id)
		if err == store.ErrNotFound {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return secret, true, nil

	case "identity", "peer":
		rows, err := deps.Store.Query(ctx, "peers", map[string]any{"id": id})
		if err != nil {
			return nil, false, err
		}
		if len(rows) == 0 {
			return nil, false, nil
		}
		row := rows[0]
		if priv, err := deps.Store.LoadSigningKey(ctx, id); err == nil {
			row = copyRow(row)
			row["private_key"] = priv
		}
		return row, true, nil

	case "network":
		return queryRow(ctx, deps, "networks", id)
	case "group":
		return queryRow(ctx, deps, "groups", id)
	case "channel":
		return queryRow(ctx, deps, "channels", id)
	default:
		return queryRow(ctx, deps, kind+"s", id)
	}
}

func queryRow(ctx context.Context, deps Deps, table, id string) (any, bool, error) {
	rows, err := deps.Store.Query(ctx, table, map[string]any{"id": id})
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	return out
}
