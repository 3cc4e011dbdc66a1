package events

import "github.com/quiet-mesh/quietcore/envelope"

// TypeMember adds or removes a peer's membership in a group. peer_id
// is the already-a-member author issuing the change (membership-check,
// §4.3, authorizes against it); target_peer_id in the plaintext is
// who's being added or removed — the two are deliberately distinct,
// since the peer being added is not yet a member and may not even hold
// a signing key this node has ever seen before this event arrives.
const TypeMember = "member"

func init() {
	Register(Spec{
		Type: TypeMember,
		Deps: func(e *envelope.Envelope) []string {
			return []string{envelope.DepRef("group", e.GroupID), envelope.DepRef("peer", e.PeerID)}
		},
		Validate: func(e *envelope.Envelope) bool {
			pt := e.EventPlaintext
			action := stringField(pt, "action")
			return nonEmpty(e.GroupID, e.PeerID, stringField(pt, "target_peer_id"), action) &&
				(action == "add" || action == "remove")
		},
		Project: func(e *envelope.Envelope) []envelope.Delta {
			pt := e.EventPlaintext
			target := stringField(pt, "target_peer_id")
			if stringField(pt, "action") == "remove" {
				return []envelope.Delta{{
					Op:    envelope.OpDelete,
					Table: "group_members",
					Where: map[string]any{"group_id": e.GroupID, "peer_id": target},
				}}
			}
			return []envelope.Delta{{
				Op:    envelope.OpInsert,
				Table: "group_members",
				Data: map[string]any{
					"id":       e.GroupID + ":" + target,
					"group_id": e.GroupID,
					"peer_id":  target,
					"role":     stringField(pt, "role"),
				},
			}}
		},
	})
}
