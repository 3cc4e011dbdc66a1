package events

import "github.com/quiet-mesh/quietcore/envelope"

// TypeLinkInvite is a network-wide invite redeemable without a prior
// peer relationship: a shareable link rather than a direct invite
// (§11.7).
const TypeLinkInvite = "link_invite"

func init() {
	Register(Spec{
		Type: TypeLinkInvite,
		Deps: func(e *envelope.Envelope) []string {
			return []string{envelope.DepRef("network", e.NetworkID)}
		},
		Validate: func(e *envelope.Envelope) bool {
			pt := e.EventPlaintext
			return nonEmpty(e.NetworkID, stringField(pt, "invite_id"), stringField(pt, "code"))
		},
		Project: func(e *envelope.Envelope) []envelope.Delta {
			pt := e.EventPlaintext
			return []envelope.Delta{{
				Op:    envelope.OpInsert,
				Table: "invites",
				Data: map[string]any{
					"id":            stringField(pt, "invite_id"),
					"invite_id":     stringField(pt, "invite_id"),
					"network_id":    e.NetworkID,
					"kind":          "link",
					"code":          stringField(pt, "code"),
					"created_by":    e.PeerID,
					"expires_at_ms": pt["expires_at_ms"],
				},
			}}
		},
	})
}
