package events

import "github.com/quiet-mesh/quietcore/envelope"

// TypeKey carries group/channel key material: either sealed to a
// specific peer (unsealed by event-crypto's unseal sub-path, §4.3.5)
// or already decrypted with unsealed_secret attached as local-only
// state. Key events are stored for dependency resolution but project
// no relational row — the projected view (§3) lists no keys table.
const TypeKey = "key"

func init() {
	Register(Spec{
		Type: TypeKey,
		Deps: func(e *envelope.Envelope) []string {
			return []string{envelope.DepRef("group", e.GroupID)}
		},
		Validate: func(e *envelope.Envelope) bool {
			pt := e.EventPlaintext
			return nonEmpty(e.GroupID, stringField(pt, "prekey_id"))
		},
		Project: func(e *envelope.Envelope) []envelope.Delta { return nil },
	})
}
