package envelope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerChainsHandlersUntilQuiescent(t *testing.T) {
	var order []string

	step1 := NewHandlerFunc("step1",
		func(e *Envelope) bool { return !e.Validated },
		func(ctx context.Context, e *Envelope) ([]*Envelope, error) {
			order = append(order, "step1")
			next := e.Clone()
			next.Validated = true
			return []*Envelope{next}, nil
		})

	step2 := NewHandlerFunc("step2",
		func(e *Envelope) bool { return e.Validated && !e.Projected },
		func(ctx context.Context, e *Envelope) ([]*Envelope, error) {
			order = append(order, "step2")
			next := e.Clone()
			next.Projected = true
			return []*Envelope{next}, nil
		})

	r := NewRunner([]Handler{step1, step2}, nil)
	seed := &Envelope{EventType: "test"}
	require.NoError(t, r.Run(context.Background(), seed))

	assert.Equal(t, []string{"step1", "step2"}, order)
}

func TestRunnerDropsEnvelopeWhenHandlerEmitsNothing(t *testing.T) {
	invocations := 0
	dropper := NewHandlerFunc("dropper",
		func(e *Envelope) bool { return !e.ShouldRemove },
		func(ctx context.Context, e *Envelope) ([]*Envelope, error) {
			invocations++
			return nil, nil
		})

	r := NewRunner([]Handler{dropper}, nil)
	require.NoError(t, r.Run(context.Background(), &Envelope{EventType: "test"}))
	assert.Equal(t, 1, invocations)
}

type countingRecorder struct {
	exceeded int
}

func (c *countingRecorder) HandlerInvoked(name string, emitted int, err error) {}
func (c *countingRecorder) IterationsExceeded(eventType string)                { c.exceeded++ }

func TestRunnerStopsAtIterationBound(t *testing.T) {
	loop := NewHandlerFunc("loop",
		func(e *Envelope) bool { return true },
		func(ctx context.Context, e *Envelope) ([]*Envelope, error) {
			return []*Envelope{e.Clone()}, nil
		})

	rec := &countingRecorder{}
	r := NewRunner([]Handler{loop}, rec)
	require.NoError(t, r.Run(context.Background(), &Envelope{EventType: "test"}))
	assert.Equal(t, 1, rec.exceeded)
}

func TestRunCollectingReturnsTerminalEnvelopes(t *testing.T) {
	step1 := NewHandlerFunc("step1",
		func(e *Envelope) bool { return !e.Validated },
		func(ctx context.Context, e *Envelope) ([]*Envelope, error) {
			next := e.Clone()
			next.Validated = true
			if next.EventType == "fanout" {
				other := next.Clone()
				other.EventType = "spawned"
				return []*Envelope{next, other}, nil
			}
			return []*Envelope{next}, nil
		})

	r := NewRunner([]Handler{step1}, nil)
	out, err := r.RunCollecting(context.Background(), &Envelope{EventType: "fanout"})
	require.NoError(t, err)
	require.Len(t, out, 2)

	types := []string{out[0].EventType, out[1].EventType}
	assert.ElementsMatch(t, []string{"fanout", "spawned"}, types)
	for _, e := range out {
		assert.True(t, e.Validated)
	}
}

func TestCloneDeepCopiesMutableFields(t *testing.T) {
	e := &Envelope{
		Deps:           []string{"peer:a"},
		EventPlaintext: map[string]any{"k": "v"},
	}
	clone := e.Clone()
	clone.Deps[0] = "peer:b"
	clone.EventPlaintext["k"] = "changed"

	assert.Equal(t, "peer:a", e.Deps[0])
	assert.Equal(t, "v", e.EventPlaintext["k"])
}
