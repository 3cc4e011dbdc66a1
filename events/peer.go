package events

import "github.com/quiet-mesh/quietcore/envelope"

// TypePeer announces an identity's membership in a specific network.
// It carries the author's own public_key: on a node that has never
// seen this peer before, the peer event IS the introduction — there is
// no earlier row its signature could be checked against, so the
// embedded key is the verification root (§4.3.6) and the event
// declares no dependencies of its own.
const TypePeer = "peer"

func init() {
	Register(Spec{
		Type: TypePeer,
		Deps: func(e *envelope.Envelope) []string { return nil },
		Validate: func(e *envelope.Envelope) bool {
			pt := e.EventPlaintext
			return nonEmpty(stringField(pt, "network_id"), stringField(pt, "public_key"), e.PeerID)
		},
		Project: func(e *envelope.Envelope) []envelope.Delta {
			pt := e.EventPlaintext
			return []envelope.Delta{
				{
					// No-op on the author's own node, where the identity
					// event already inserted this row.
					Op:    envelope.OpInsert,
					Table: "peers",
					Data: map[string]any{
						"id":         e.PeerID,
						"public_key": stringField(pt, "public_key"),
						"key_type":   stringField(pt, "key_type"),
						"name":       stringField(pt, "name"),
						"network_id": stringField(pt, "network_id"),
					},
				},
				{
					Op:    envelope.OpUpdate,
					Table: "peers",
					Data:  map[string]any{"network_id": stringField(pt, "network_id")},
					Where: map[string]any{"id": e.PeerID},
				},
			}
		},
	})
}
