package envelope

import (
	"context"
	"fmt"
)

// MaxIterations bounds how many times a single input envelope (and
// everything it fans out into) may cycle through the handler list
// before the runner gives up on it (§4.3: "a bound on iterations per
// input (≥ 64)").
const MaxIterations = 64

// Recorder observes handler invocations for metrics/logging. A nil
// Recorder is fine — Runner checks before calling it.
type Recorder interface {
	HandlerInvoked(name string, emitted int, err error)
	IterationsExceeded(eventType string)
}

// Runner drives a fixed, ordered handler list to quiescence for a
// batch of seed envelopes. Execution is single-threaded and
// cooperative: Run must not be called concurrently on the same Runner
// from multiple goroutines with envelopes belonging to the same store,
// since handlers assume exclusive access to the store's write
// transaction for the duration of one Run call.
type Runner struct {
	handlers []Handler
	recorder Recorder
}

// NewRunner builds a Runner over handlers, applied in the given order
// on every pass (§4.3's handler ordering is a sequencing convention,
// not a hard pipeline stage boundary — filters disambiguate which
// handler actually fires for a given envelope shape).
func NewRunner(handlers []Handler, recorder Recorder) *Runner {
	return &Runner{handlers: handlers, recorder: recorder}
}

// Run processes seed envelopes to quiescence: a queue is seeded with
// seed, and repeatedly drained — each envelope is walked through the
// ordered handler list, and any handler whose Filter matches has
// Process called; its output envelopes are appended back onto the
// queue. The run ends when the queue is empty. Envelopes descended
// from the same seed share an iteration budget of MaxIterations; once
// exceeded, the remaining work for that seed is dropped with an error
// recorded on the envelope that was being processed when the budget ran
// out (but previously committed side effects
// from earlier handlers, such as store writes, are not rolled back).
func (r *Runner) Run(ctx context.Context, seeds ...*Envelope) error {
	for _, seed := range seeds {
		if _, err := r.runOne(ctx, seed); err != nil {
			return err
		}
	}
	return nil
}

// RunCollecting behaves like Run but also returns every envelope that
// reached quiescence (no handler's Filter matched it any longer) —
// callers that need to report back what happened to a self-created
// event (a command's response handler, §4.4) use this instead of Run.
func (r *Runner) RunCollecting(ctx context.Context, seeds ...*Envelope) ([]*Envelope, error) {
	var all []*Envelope
	for _, seed := range seeds {
		out, err := r.runOne(ctx, seed)
		if err != nil {
			return all, err
		}
		all = append(all, out...)
	}
	return all, nil
}

// runOne drains one seed (and everything it fans out into) to
// quiescence, returning the envelopes that ended up with no further
// matching handler.
func (r *Runner) runOne(ctx context.Context, seed *Envelope) ([]*Envelope, error) {
	queue := []*Envelope{seed}
	iterations := 0
	var terminal []*Envelope

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		fired := false
		for _, h := range r.handlers {
			if !h.Filter(e) {
				continue
			}
			fired = true
			iterations++
			if iterations > MaxIterations {
				e.Error = fmt.Sprintf("runner: exceeded %d iterations for event_type=%s", MaxIterations, e.EventType)
				if r.recorder != nil {
					r.recorder.IterationsExceeded(e.EventType)
				}
				return terminal, nil
			}

			out, err := h.Process(ctx, e)
			if r.recorder != nil {
				r.recorder.HandlerInvoked(h.Name(), len(out), err)
			}
			if err != nil {
				e.Error = err.Error()
				continue
			}
			queue = append(queue, out...)
			// Only one handler fires per dequeue: re-evaluate the
			// emitted envelopes against the full handler list on their
			// own turn, rather than continuing to walk this envelope
			// through the remaining handlers under stale state.
			break
		}
		if !fired {
			terminal = append(terminal, e)
		}
	}
	return terminal, nil
}
