package events

import "github.com/quiet-mesh/quietcore/envelope"

// TypeGroup establishes a group within a network — the scope a group
// key epoch (§4.2, crypto/rotation) encrypts events under.
const TypeGroup = "group"

func init() {
	Register(Spec{
		Type: TypeGroup,
		Deps: func(e *envelope.Envelope) []string {
			return []string{envelope.DepRef("network", e.NetworkID), envelope.DepRef("identity", e.PeerID)}
		},
		Validate: func(e *envelope.Envelope) bool {
			pt := e.EventPlaintext
			return nonEmpty(e.GroupID, e.NetworkID, stringField(pt, "name"), e.PeerID)
		},
		Project: func(e *envelope.Envelope) []envelope.Delta {
			pt := e.EventPlaintext
			return []envelope.Delta{{
				Op:    envelope.OpInsert,
				Table: "groups",
				Data: map[string]any{
					"id":              e.GroupID,
					"network_id":      e.NetworkID,
					"name":            stringField(pt, "name"),
					"creator_peer_id": e.PeerID,
				},
			}}
		},
	})
}
