package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiet-mesh/quietcore/config"
	"github.com/quiet-mesh/quietcore/crypto"
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/handlers"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/store"
	"github.com/quiet-mesh/quietcore/store/memory"
)

func TestTickSkipsUnknownJob(t *testing.T) {
	st := memory.New()
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	var captured []*envelope.Envelope
	sched := New(st, clk, []config.JobConfig{{Name: "not_registered", IntervalMs: time.Second}}, func(ctx context.Context, seeds ...*envelope.Envelope) error {
		captured = append(captured, seeds...)
		return nil
	})

	n, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, captured)
}

func TestTickRunsDueJobAndPersistsState(t *testing.T) {
	st := memory.New()
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	calls := 0
	Register("test_job", func(ctx context.Context, state []byte, view ReadOnlyView, nowMs int64) ([]byte, []*envelope.Envelope, error) {
		calls++
		return []byte(`{"calls":1}`), []*envelope.Envelope{{EventType: "probe"}}, nil
	})

	var captured []*envelope.Envelope
	sched := New(st, clk, []config.JobConfig{{Name: "test_job", IntervalMs: time.Second}}, func(ctx context.Context, seeds ...*envelope.Envelope) error {
		captured = append(captured, seeds...)
		return nil
	})

	n, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, calls)
	require.Len(t, captured, 1)

	run, err := st.LoadJobRun(context.Background(), "test_job")
	require.NoError(t, err)
	assert.Equal(t, 1, run.SuccessCount)

	// not due again immediately at the same wall time
	n, err = sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, calls)

	// still not due before the interval elapses
	clk.Advance(500 * time.Millisecond)
	n, err = sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// due once the interval elapses
	clk.Advance(600 * time.Millisecond)
	n, err = sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, calls)
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestTickRecordsFailureWithoutPersistingState(t *testing.T) {
	st := memory.New()
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	Register("failing_job", func(ctx context.Context, state []byte, view ReadOnlyView, nowMs int64) ([]byte, []*envelope.Envelope, error) {
		return nil, nil, errTest("boom")
	})

	sched := New(st, clk, []config.JobConfig{{Name: "failing_job", IntervalMs: time.Second}}, func(ctx context.Context, seeds ...*envelope.Envelope) error {
		return nil
	})

	n, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	run, err := st.LoadJobRun(context.Background(), "failing_job")
	require.NoError(t, err)
	assert.Equal(t, 1, run.FailureCount)
	assert.Equal(t, 0, run.SuccessCount)

	jobState, err := st.LoadJobState(context.Background(), "failing_job")
	require.NoError(t, err)
	assert.Empty(t, jobState.StateJSON)
}

func TestSyncRequestJobSkipsWhenUnconfigured(t *testing.T) {
	st := memory.New()
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	deps := handlers.Deps{Store: st, Clock: clk, Mode: crypto.ModeReal, Sync: handlers.NewSyncCache()}
	RegisterSyncRequestJob(deps)

	fn, ok := Lookup("sync_request")
	require.True(t, ok)

	newState, envs, err := fn(context.Background(), nil, st, clk.NowMillis())
	require.NoError(t, err)
	assert.Nil(t, envs)
	assert.Empty(t, newState)
}

func TestSyncRequestJobBuildsProbeForKnownAddress(t *testing.T) {
	st := memory.New()
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	deps := handlers.Deps{Store: st, Clock: clk, Mode: crypto.ModeReal, Sync: handlers.NewSyncCache()}
	RegisterSyncRequestJob(deps)

	require.NoError(t, st.StoreTransitKey(context.Background(), "tk1", []byte("0123456789abcdef0123456789abcdef"), "net1"))
	require.NoError(t, st.ApplyDeltas(context.Background(), []store.Delta{{
		Op: "insert", Table: "peer_transit_keys",
		Data: map[string]any{"id": "net1:bob", "peer_id": "bob", "network_id": "net1", "transit_key_id": "tk1", "ip": "10.0.0.2", "port": 7777},
	}}))

	fn, ok := Lookup("sync_request")
	require.True(t, ok)

	initial, err := json.Marshal(syncJobState{SelfPeerID: "alice", UserID: "alice-user"})
	require.NoError(t, err)

	newState, envs, err := fn(context.Background(), initial, st, clk.NowMillis())
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "sync_request", envs[0].EventType)
	assert.Equal(t, "net1", envs[0].NetworkID)
	assert.Equal(t, "alice", envs[0].PeerID)
	assert.Equal(t, "10.0.0.2", envs[0].DestIP)
	assert.Equal(t, 7777, envs[0].DestPort)
	assert.Equal(t, "tk1", envs[0].TransitKeyID)

	var decoded syncJobState
	require.NoError(t, json.Unmarshal(newState, &decoded))
	assert.Equal(t, 0, decoded.Cursor)
}
