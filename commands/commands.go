// Package commands holds the pure params→envelope(s) functions §4.4
// describes: each command builds one or more self_created envelopes
// from caller-supplied parameters and never touches the store
// directly. A registry maps command names to their functions, the way
// the events package maps event types to their Spec the pipeline
// dispatches to.
package commands

import (
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/clock"
)

// Params is the caller-supplied argument bag for a command invocation
// (typically decoded from request JSON by the process surface, §11.5).
type Params map[string]any

func (p Params) str(key string) string {
	v, _ := p[key].(string)
	return v
}

func (p Params) strOr(key, fallback string) string {
	if v := p.str(key); v != "" {
		return v
	}
	return fallback
}

// intOr reads an int-valued param, accepting either a JSON number
// (float64, as encoding/json decodes it) or a Go int literal from a
// direct in-process call.
func (p Params) intOr(key string, fallback int64) int64 {
	switch v := p[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return fallback
	}
}

// Func is one command's implementation: given the current clock and
// its params, it returns the envelope(s) to seed into the runner, in
// the exact order they must be processed (§4.4's "identity first"
// ordering for multi-emission commands is enforced by return order,
// not by any dependency the runner infers).
type Func func(clk clock.Clock, params Params) ([]*envelope.Envelope, error)

var registry = map[string]Func{}

// Register adds a command under name. Called from each command file's init.
func Register(name string, fn Func) {
	registry[name] = fn
}

// Lookup returns the Func registered under name, or ok=false if none.
func Lookup(name string) (Func, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// seedDeps populates e.Deps from its event type's registered Spec, the
// same dependency refs a received event of this type would declare —
// a self-created event still has to wait on its own prerequisites
// (e.g. a network event waits on the identity that signs it).
func seedDeps(e *envelope.Envelope) {
	if spec, ok := events.Lookup(e.EventType); ok {
		e.Deps = spec.Deps(e)
	}
}

// Names lists every registered command name, for introspection (e.g.
// a CLI's `help` output).
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
