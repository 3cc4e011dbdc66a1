package scheduler

import (
	"context"
	"encoding/json"

	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/handlers"
	"github.com/quiet-mesh/quietcore/internal/errkind"
)

// syncJobState is the sync_request job's persisted state_json (§3
// job_states, §4.5): the local identity the probe is issued on behalf
// of, and a round-robin cursor over known peer addresses so repeated
// ticks fan the probe out across the network instead of hammering one
// peer. An empty SelfPeerID means the job hasn't been configured yet
// (RegisterSyncRequestJob's caller seeds it via SaveJobState before
// the first tick) and the job is a no-op until then.
type syncJobState struct {
	SelfPeerID string            `json:"self_peer_id"`
	UserID     string            `json:"user_id"`
	Cursor     int               `json:"cursor"`
	SinceByKey map[string]string `json:"since_by_key"` // "network_id:peer_id" -> last-seen event_id
}

// RegisterSyncRequestJob wires the sync_request probe job (§4.3.11,
// §4.5) into the registry under deps: a scheduler tick builds one
// sync_request envelope addressed to the next known peer in the
// round-robin cursor, sealed under that peer's transit secret.
func RegisterSyncRequestJob(deps handlers.Deps) {
	Register("sync_request", func(ctx context.Context, stateJSON []byte, view ReadOnlyView, nowMs int64) ([]byte, []*envelope.Envelope, error) {
		var st syncJobState
		if len(stateJSON) > 0 {
			if err := json.Unmarshal(stateJSON, &st); err != nil {
				return nil, nil, errkind.Wrap(errkind.InputMalformed, "sync_request: parse job state", err)
			}
		}
		if st.SelfPeerID == "" {
			return stateJSON, nil, nil // not configured yet
		}
		if st.SinceByKey == nil {
			st.SinceByKey = map[string]string{}
		}

		addresses, err := view.Query(ctx, "peer_transit_keys", nil)
		if err != nil {
			return nil, nil, errkind.Wrap(errkind.Internal, "sync_request: query peer_transit_keys", err)
		}
		if len(addresses) == 0 {
			return stateJSON, nil, nil
		}

		idx := st.Cursor % len(addresses)
		target := addresses[idx]
		st.Cursor = (st.Cursor + 1) % len(addresses)

		targetPeerID, _ := target["peer_id"].(string)
		networkID, _ := target["network_id"].(string)
		transitKeyID, _ := target["transit_key_id"].(string)
		ip, _ := target["ip"].(string)
		port := asPort(target["port"])

		if targetPeerID == st.SelfPeerID {
			newState, err := json.Marshal(st)
			return newState, nil, err
		}

		secret, _, err := view.LoadTransitKey(ctx, transitKeyID)
		if err != nil {
			return nil, nil, errkind.Wrap(errkind.KeyMissing, "sync_request: load transit key for "+targetPeerID, err)
		}

		sinceKey := networkID + ":" + targetPeerID
		e, err := handlers.BuildSyncRequest(deps, networkID, st.SelfPeerID, st.UserID, transitKeyID, secret, targetPeerID, st.SinceByKey[sinceKey], ip, port, nowMs)
		if err != nil {
			return nil, nil, err
		}

		newState, err := json.Marshal(st)
		if err != nil {
			return nil, nil, errkind.Wrap(errkind.Internal, "sync_request: marshal job state", err)
		}
		return newState, []*envelope.Envelope{e}, nil
	})
}

func asPort(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
