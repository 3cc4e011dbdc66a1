// Package handlers implements the pipeline stages listed in §4.3: one
// envelope.Handler per stage, each a thin adapter from the runner's
// filter/process contract onto the store, crypto and event-type
// registries the stage actually needs.
package handlers

import (
	"time"

	"github.com/quiet-mesh/quietcore/crypto"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/internal/logger"
	"github.com/quiet-mesh/quietcore/store"
	"github.com/quiet-mesh/quietcore/transport"
)

// Deps is the explicit bundle every handler constructor closes over —
// no package-level singletons, so a process can run several isolated
// pipelines (e.g. one per test peer) side by side.
type Deps struct {
	Store     store.Store
	Clock     clock.Clock
	Mode      crypto.Mode
	Transport transport.Transport
	Sync      *SyncCache
	Log       logger.Logger
}

// logger returns the configured logger, falling back to the process
// default so handlers built from a zero-value Deps still log (§10.1:
// Debug on normal transitions, Warn/Error on drops and purges).
func (d Deps) logger() logger.Logger {
	if d.Log != nil {
		return d.Log
	}
	return logger.GetDefaultLogger()
}

// MaxRetryCount is the hard cap on a blocked envelope's retry_count
// before the dependency index evicts it (§4.3.2).
const MaxRetryCount = 100

// TombstoneTTL is how long a purged event's row is retained before
// becoming eligible for physical deletion (§3, §4.3.9).
const TombstoneTTL = 7 * 24 * time.Hour
