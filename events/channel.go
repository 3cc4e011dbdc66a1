package events

import "github.com/quiet-mesh/quietcore/envelope"

// TypeChannel establishes a channel within a group — the scope
// messages are posted to. It declares no dependency on its group: a
// channel is deliverable ahead of the group event that scoped it, and
// messages blocked on the channel must unblock the moment the channel
// itself lands, not when its whole ancestry has.
const TypeChannel = "channel"

func init() {
	Register(Spec{
		Type: TypeChannel,
		Deps: func(e *envelope.Envelope) []string { return nil },
		Validate: func(e *envelope.Envelope) bool {
			pt := e.EventPlaintext
			return nonEmpty(e.ChannelID, e.GroupID, stringField(pt, "name"))
		},
		Project: func(e *envelope.Envelope) []envelope.Delta {
			pt := e.EventPlaintext
			return []envelope.Delta{{
				Op:    envelope.OpInsert,
				Table: "channels",
				Data: map[string]any{
					"id":       e.ChannelID,
					"group_id": e.GroupID,
					"name":     stringField(pt, "name"),
				},
			}}
		},
	})
}
