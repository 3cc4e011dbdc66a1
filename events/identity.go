package events

import "github.com/quiet-mesh/quietcore/envelope"

// TypeIdentity establishes a peer's signing keypair: peer_id is derived
// from public_key and is stable for the peer's lifetime (§11.1). It
// carries no network scope — see TypePeer for network membership.
const TypeIdentity = "identity"

func init() {
	Register(Spec{
		Type: TypeIdentity,
		Deps: func(e *envelope.Envelope) []string { return nil },
		Validate: func(e *envelope.Envelope) bool {
			pt := e.EventPlaintext
			return nonEmpty(stringField(pt, "public_key"), stringField(pt, "key_type"), e.PeerID)
		},
		Project: func(e *envelope.Envelope) []envelope.Delta {
			pt := e.EventPlaintext
			return []envelope.Delta{{
				Op:    envelope.OpInsert,
				Table: "peers",
				Data: map[string]any{
					"id":         e.PeerID,
					"public_key": stringField(pt, "public_key"),
					"key_type":   stringField(pt, "key_type"),
					"name":       stringField(pt, "name"),
					"network_id": "",
				},
			}}
		},
	})
}
