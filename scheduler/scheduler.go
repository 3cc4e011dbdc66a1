// Package scheduler implements the tick-driven job runner §4.5
// describes: a table-driven list of named jobs, each invoked at most
// once per its configured interval with its own persisted state and a
// read-only view of the projected tables, producing envelopes that get
// enqueued into the pipeline runner exactly like a freshly-received
// packet would be.
package scheduler

import (
	"context"
	"time"

	"github.com/quiet-mesh/quietcore/config"
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/internal/logger"
	"github.com/quiet-mesh/quietcore/internal/metrics"
	"github.com/quiet-mesh/quietcore/store"
)

// ReadOnlyView is the narrow read surface a job body gets (§6's
// "read-only cursor view for queries and job bodies"): projected-table
// reads and local transit-key lookups, but no event-store or
// projected-view mutation. Any store.Store satisfies this structurally.
type ReadOnlyView interface {
	Query(ctx context.Context, table string, where map[string]any) ([]map[string]any, error)
	LoadTransitKey(ctx context.Context, transitKeyID string) (secret []byte, networkID string, err error)
}

// JobFunc is one scheduler job's body: given its previous state, a
// read-only view, and the current wall time, it returns the state to
// persist and the envelopes to enqueue. A non-nil error counts as
// failure (§4.5: "on failure, state is unchanged").
type JobFunc func(ctx context.Context, state []byte, view ReadOnlyView, nowMs int64) (newState []byte, envelopes []*envelope.Envelope, err error)

var registry = map[string]JobFunc{}

// Register adds a job under name. Called from each job file's init,
// or directly by a caller wiring a job that closes over handler deps
// (e.g. RegisterSyncRequestJob).
func Register(name string, fn JobFunc) {
	registry[name] = fn
}

// Lookup returns the JobFunc registered under name.
func Lookup(name string) (JobFunc, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Scheduler drives config.JobConfig entries against the registry on
// each Tick.
type Scheduler struct {
	store store.Store
	clock clock.Clock
	jobs  []config.JobConfig
	run   func(ctx context.Context, seeds ...*envelope.Envelope) error
}

// New builds a Scheduler. run is the pipeline entry point each job's
// emitted envelopes are handed to — typically (*envelope.Runner).Run.
func New(st store.Store, clk clock.Clock, jobs []config.JobConfig, run func(ctx context.Context, seeds ...*envelope.Envelope) error) *Scheduler {
	return &Scheduler{store: st, clock: clk, jobs: jobs, run: run}
}

// Tick evaluates every configured job's due time against its last run
// stats, invokes the ones that are due, and enqueues their emitted
// envelopes into the runner. It returns the total number of envelopes
// enqueued across all jobs this tick.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	nowMs := s.clock.NowMillis()
	enqueued := 0

	for _, jc := range s.jobs {
		fn, ok := Lookup(jc.Name)
		if !ok {
			continue // unknown job name: configured but not wired, skip silently like an absent cron entry
		}

		run, err := s.store.LoadJobRun(ctx, jc.Name)
		if err != nil && err != store.ErrNotFound {
			return enqueued, errkind.Wrap(errkind.Internal, "scheduler: load job run "+jc.Name, err)
		}
		intervalMs := jc.IntervalMs.Milliseconds()
		if run.LastRunMs != 0 && nowMs-run.LastRunMs < intervalMs {
			continue // not due yet
		}

		n, err := s.runJob(ctx, jc.Name, fn, run, nowMs)
		if err != nil {
			return enqueued, err
		}
		enqueued += n
	}
	return enqueued, nil
}

func (s *Scheduler) runJob(ctx context.Context, name string, fn JobFunc, run store.JobRun, nowMs int64) (int, error) {
	start := time.Now()
	defer func() {
		metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	jobState, err := s.store.LoadJobState(ctx, name)
	if err != nil && err != store.ErrNotFound {
		return 0, errkind.Wrap(errkind.Internal, "scheduler: load job state "+name, err)
	}

	newState, envs, jobErr := fn(ctx, jobState.StateJSON, s.store, nowMs)

	run.JobName = name
	run.LastRunMs = nowMs
	if jobErr != nil {
		run.FailureCount++
		run.LastFailureMs = nowMs
		run.LastState = jobErr.Error()
		metrics.JobRuns.WithLabelValues(name, "failure").Inc()
		logger.Warn("scheduler: job failed",
			logger.String("job", name), logger.Error(jobErr))
		if recErr := s.store.RecordJobRun(ctx, run); recErr != nil {
			return 0, errkind.Wrap(errkind.Internal, "scheduler: record job run "+name, recErr)
		}
		return 0, nil
	}

	if err := s.store.SaveJobState(ctx, store.JobState{JobName: name, StateJSON: newState, UpdatedMs: nowMs}); err != nil {
		return 0, errkind.Wrap(errkind.Internal, "scheduler: save job state "+name, err)
	}
	run.SuccessCount++
	run.LastSuccessMs = nowMs
	run.LastState = "ok"
	metrics.JobRuns.WithLabelValues(name, "success").Inc()
	logger.Debug("scheduler: job succeeded",
		logger.String("job", name), logger.Int("envelopes", len(envs)))
	if err := s.store.RecordJobRun(ctx, run); err != nil {
		return 0, errkind.Wrap(errkind.Internal, "scheduler: record job run "+name, err)
	}

	if len(envs) > 0 {
		metrics.JobEnvelopesEmitted.WithLabelValues(name).Add(float64(len(envs)))
		if err := s.run(ctx, envs...); err != nil {
			return 0, errkind.Wrap(errkind.Internal, "scheduler: run emitted envelopes for "+name, err)
		}
	}
	return len(envs), nil
}
