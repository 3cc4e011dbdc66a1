package events

import "github.com/quiet-mesh/quietcore/envelope"

// TypeInvite is a group invite redeemable by a peer who already has a
// relationship with the network (distinct from TypeLinkInvite).
const TypeInvite = "invite"

func init() {
	Register(Spec{
		Type: TypeInvite,
		Deps: func(e *envelope.Envelope) []string {
			return []string{envelope.DepRef("group", e.GroupID)}
		},
		Validate: func(e *envelope.Envelope) bool {
			pt := e.EventPlaintext
			return nonEmpty(e.GroupID, stringField(pt, "invite_id"), stringField(pt, "code"))
		},
		Project: func(e *envelope.Envelope) []envelope.Delta {
			pt := e.EventPlaintext
			return []envelope.Delta{{
				Op:    envelope.OpInsert,
				Table: "invites",
				Data: map[string]any{
					"id":         stringField(pt, "invite_id"),
					"invite_id":  stringField(pt, "invite_id"),
					"group_id":   e.GroupID,
					"kind":       "invite",
					"code":       stringField(pt, "code"),
					"created_by": e.PeerID,
					"expires_at_ms": pt["expires_at_ms"],
				},
			}}
		},
	})
}
