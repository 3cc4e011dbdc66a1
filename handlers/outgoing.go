package handlers

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/quiet-mesh/quietcore/crypto"
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/store"
	"github.com/quiet-mesh/quietcore/transport"
)

// isSecretEventType reports the event types that may never leave this
// process over the wire.
func isSecretEventType(eventType string) bool {
	switch eventType {
	case "identity_secret", "transit_secret", "key_secret":
		return true
	}
	return false
}

// CheckOutgoing implements §4.3.10's first stage: reject secret event
// types, resolve the destination address, and mark the envelope ready
// for transit encryption.
func CheckOutgoing(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"check_outgoing",
		func(e *envelope.Envelope) bool {
			return e.Outgoing && depsReady(e) && !e.OutgoingChecked
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			if isSecretEventType(e.EventType) {
				return nil, errkind.New(errkind.PermissionDenied, "check_outgoing: "+e.EventType+" may not be sent")
			}

			out := e.Clone()
			if out.DestIP == "" {
				rows, err := deps.Store.Query(ctx, "peer_transit_keys", map[string]any{
					"peer_id": out.PeerID, "network_id": out.NetworkID,
				})
				if err != nil {
					return nil, errkind.Wrap(errkind.Internal, "check_outgoing: query address", err)
				}
				if len(rows) == 0 {
					out.MissingDeps = true
					out.Deps = append(out.Deps, envelope.DepRef("address", out.NetworkID+":"+out.PeerID))
					return []*envelope.Envelope{out}, nil
				}
				out.DestIP, _ = rows[0]["ip"].(string)
				out.DestPort = portOf(rows[0]["port"])
				out.TransitKeyID, _ = rows[0]["transit_key_id"].(string)
			}
			out.OutgoingChecked = true
			return []*envelope.Envelope{out}, nil
		},
	)
}

// portOf reads a port from a projected row, which holds an int64 when
// the row came from a local command and a float64 when it round-tripped
// through JSON.
func portOf(v any) int {
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

// TransitEncrypt implements §4.3.10's second stage: seal the already
// event-layer-encrypted payload under the destination's transit secret
// and strip every field but the minimal outgoing envelope.
func TransitEncrypt(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"transit_encrypt",
		func(e *envelope.Envelope) bool {
			return e.OutgoingChecked && len(e.EventCiphertext) > 0 && len(e.TransitCiphertext) == 0
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			secret, _, err := deps.Store.LoadTransitKey(ctx, e.TransitKeyID)
			if err == store.ErrNotFound {
				out := e.Clone()
				out.MissingDeps = true
				out.Deps = append(out.Deps, envelope.DepRef("transit_key", e.TransitKeyID))
				return []*envelope.Envelope{out}, nil
			}
			if err != nil {
				return nil, errkind.Wrap(errkind.Internal, "transit_encrypt: load transit key", err)
			}

			keyRef := e.KeyRefKind + ":" + e.KeyRefID
			body, err := json.Marshal(transitWireBody{
				EventKeyID:      keyRef,
				EventCiphertext: hex.EncodeToString(e.EventCiphertext),
			})
			if err != nil {
				return nil, errkind.Wrap(errkind.Internal, "transit_encrypt: marshal transit body", err)
			}

			var sealed []byte
			if deps.Mode == crypto.ModeDummy {
				sealed = crypto.DummySeal(crypto.DeriveKeyArray(secret), body, nil)
			} else {
				sealed, err = crypto.SealSymmetric(crypto.DeriveKeyArray(secret), body, nil)
				if err != nil {
					return nil, errkind.Wrap(errkind.Internal, "transit_encrypt: seal transit layer", err)
				}
			}

			out := &envelope.Envelope{
				TransitCiphertext: sealed,
				TransitKeyID:      e.TransitKeyID,
				DestIP:            e.DestIP,
				DestPort:          e.DestPort,
				DueMs:             e.DueMs,
				Outgoing:          true,
				OutgoingChecked:   true,
			}
			return []*envelope.Envelope{out}, nil
		},
	)
}

// SendToNetwork implements §4.3.10's terminal stage: hand the wire
// datagram to the transport.
func SendToNetwork(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"send_to_network",
		func(e *envelope.Envelope) bool {
			return e.Outgoing && e.OutgoingChecked && len(e.TransitCiphertext) > 0 && len(e.EventCiphertext) == 0
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			keyIDBytes, err := hex.DecodeString(e.TransitKeyID)
			if err != nil || len(keyIDBytes) != 32 {
				return nil, errkind.New(errkind.InputMalformed, "send_to_network: transit_key_id must be 32 bytes hex")
			}
			raw := make([]byte, 0, 32+len(e.TransitCiphertext))
			raw = append(raw, keyIDBytes...)
			raw = append(raw, e.TransitCiphertext...)

			if err := deps.Transport.Send(ctx, transport.Datagram{
				RawData: raw, DestIP: e.DestIP, DestPort: e.DestPort, DueMs: e.DueMs,
			}); err != nil {
				return nil, errkind.Wrap(errkind.TransportError, "send_to_network: send", err)
			}
			return nil, nil
		},
	)
}
