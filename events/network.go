package events

import "github.com/quiet-mesh/quietcore/envelope"

// TypeNetwork establishes a network: the top-level scope groups,
// channels and peers all belong to.
const TypeNetwork = "network"

func init() {
	Register(Spec{
		Type: TypeNetwork,
		Deps: func(e *envelope.Envelope) []string {
			if e.PeerID == "" {
				return nil
			}
			return []string{envelope.DepRef("identity", e.PeerID)}
		},
		Validate: func(e *envelope.Envelope) bool {
			pt := e.EventPlaintext
			return nonEmpty(e.NetworkID, stringField(pt, "name"), e.PeerID)
		},
		Project: func(e *envelope.Envelope) []envelope.Delta {
			pt := e.EventPlaintext
			return []envelope.Delta{{
				Op:    envelope.OpInsert,
				Table: "networks",
				Data: map[string]any{
					"id":              e.NetworkID,
					"name":            stringField(pt, "name"),
					"creator_peer_id": e.PeerID,
				},
			}}
		},
	})
}
