package events

import "github.com/quiet-mesh/quietcore/envelope"

// TypeAddress advertises a peer's transport address and transit key
// within a network, feeding peer_transit_keys for outgoing resolution
// (§4.3.10's check-outgoing address_id lookup).
const TypeAddress = "address"

func init() {
	Register(Spec{
		Type: TypeAddress,
		Deps: func(e *envelope.Envelope) []string {
			return []string{envelope.DepRef("peer", e.PeerID), envelope.DepRef("network", e.NetworkID)}
		},
		Validate: func(e *envelope.Envelope) bool {
			pt := e.EventPlaintext
			return nonEmpty(e.PeerID, e.NetworkID, stringField(pt, "transit_key_id"), stringField(pt, "ip"))
		},
		Project: func(e *envelope.Envelope) []envelope.Delta {
			pt := e.EventPlaintext
			return []envelope.Delta{{
				Op:    envelope.OpInsert,
				Table: "peer_transit_keys",
				Data: map[string]any{
					"id":             e.NetworkID + ":" + e.PeerID,
					"peer_id":        e.PeerID,
					"network_id":     e.NetworkID,
					"transit_key_id": stringField(pt, "transit_key_id"),
					"ip":             stringField(pt, "ip"),
					"port":           pt["port"],
				},
			}}
		},
	})
}
