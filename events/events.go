// Package events holds the per-event-type validator/projector/command
// triples the pipeline's Validate (§4.3.7) and Project (§4.3.8)
// handlers dispatch to by name, and that the commands package builds
// seed envelopes for. Each event type registers itself via init() into
// a lookup table rather than a hand-maintained switch statement.
package events

import "github.com/quiet-mesh/quietcore/envelope"

// Validate is a pure function of an envelope's plaintext and routing
// fields: true if the event is well-formed and semantically
// acceptable, false if it should be purged (§4.3.7).
type Validate func(e *envelope.Envelope) bool

// Project turns a validated envelope into the deltas its projector
// applies to the derived view (§4.3.8). A type with nothing to project
// (e.g. key) returns nil.
type Project func(e *envelope.Envelope) []envelope.Delta

// Spec is one event type's full validator/projector pair plus the
// dependency refs a received event of this type declares, used by
// resolve-deps (§4.3.2) before the validator ever runs.
type Spec struct {
	Type     string
	Deps     func(e *envelope.Envelope) []string
	Validate Validate
	Project  Project
}

var registry = map[string]Spec{}

// Register adds spec to the registry. Called from each type file's
// init().
func Register(spec Spec) {
	registry[spec.Type] = spec
}

// Lookup returns the Spec for an event type, or ok=false if unknown
// (§7 UnknownEventType).
func Lookup(eventType string) (Spec, bool) {
	spec, ok := registry[eventType]
	return spec, ok
}

// stringField reads a string field from plaintext, returning "" if
// absent or the wrong type.
func stringField(plaintext map[string]any, key string) string {
	v, ok := plaintext[key].(string)
	if !ok {
		return ""
	}
	return v
}

func nonEmpty(ss ...string) bool {
	for _, s := range ss {
		if s == "" {
			return false
		}
	}
	return true
}
