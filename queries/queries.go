// Package queries implements the read-only query surface §4.4 and
// §6 describe: a registry of named functions, each given a read-only
// view of the projected tables (§3) and returning rows. Unlike
// commands, queries never construct envelopes and never write —
// write verbs are rejected one layer up, at the process surface
// (§6 "write verbs are rejected at the connection layer"), so every
// function registered here is pure over the store it's handed.
package queries

import (
	"context"

	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/store"
)

// Params is the caller-supplied argument bag for a query invocation.
type Params map[string]any

func (p Params) str(key string) string {
	v, _ := p[key].(string)
	return v
}

// Row is one result row, the same shape store.ProjectedView.Query
// returns.
type Row = map[string]any

// Func is one query's implementation: given a read-only projected
// view and its params, it returns matching rows.
type Func func(ctx context.Context, view store.ProjectedView, params Params) ([]Row, error)

var registry = map[string]Func{}

// Register adds a query under name. Called from each query file's init.
func Register(name string, fn Func) {
	registry[name] = fn
}

// Lookup returns the Func registered under name, or ok=false if none.
func Lookup(name string) (Func, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Names lists every registered query name.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// ErrWriteVerb is the error a process surface should return when asked
// to run a command name through the query entry point, or vice versa —
// §6's "write verbs are rejected at the connection layer" in concrete
// form (see core.CoreContext.Query).
var ErrWriteVerb = errkind.New(errkind.PermissionDenied, "queries: write verb is not a query")
