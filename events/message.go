package events

import "github.com/quiet-mesh/quietcore/envelope"

// TypeMessage is a single posted chat message, scoped to a channel.
const TypeMessage = "message"

func init() {
	Register(Spec{
		Type: TypeMessage,
		Deps: func(e *envelope.Envelope) []string {
			return []string{envelope.DepRef("channel", e.ChannelID), envelope.DepRef("peer", e.PeerID)}
		},
		Validate: func(e *envelope.Envelope) bool {
			pt := e.EventPlaintext
			return nonEmpty(e.ChannelID, e.PeerID, stringField(pt, "message_id"), stringField(pt, "content"))
		},
		Project: func(e *envelope.Envelope) []envelope.Delta {
			pt := e.EventPlaintext
			return []envelope.Delta{{
				Op:    envelope.OpInsert,
				Table: "messages",
				Data: map[string]any{
					"id":            stringField(pt, "message_id"),
					"message_id":    stringField(pt, "message_id"),
					"channel_id":    e.ChannelID,
					"peer_id":       e.PeerID,
					"content":       stringField(pt, "content"),
					"timestamp_ms":  pt["timestamp_ms"],
				},
			}}
		},
	})
}
