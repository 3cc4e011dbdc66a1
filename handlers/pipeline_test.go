package handlers

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiet-mesh/quietcore/crypto"
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/store"
	"github.com/quiet-mesh/quietcore/store/memory"
	"github.com/quiet-mesh/quietcore/transport/loopback"
)

var testEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func pipeDeps(t *testing.T, net *loopback.Network, addr string) Deps {
	t.Helper()
	return Deps{
		Store:     memory.New(),
		Clock:     clock.NewFixed(testEpoch),
		Mode:      crypto.ModeReal,
		Transport: net.NewTransport(addr),
		Sync:      NewSyncCache(),
	}
}

type author struct {
	peerID string
	priv   ed25519.PrivateKey
}

func newAuthor(t *testing.T) author {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return author{peerID: hex.EncodeToString(pub), priv: priv}
}

// signedIncoming renders an event the way a remote author put it on
// the wire, with the transit layer already stripped: the canonical
// event-layer bytes carrying an embedded signature, addressed by
// content hash.
func signedIncoming(t *testing.T, a author, e *envelope.Envelope) *envelope.Envelope {
	t.Helper()
	canonical, err := canonicalPlaintext(e)
	require.NoError(t, err)
	e.EventPlaintext["signature"] = base64.StdEncoding.EncodeToString(ed25519.Sign(a.priv, canonical))

	ct, err := eventLayerPlaintext(e)
	require.NoError(t, err)
	return &envelope.Envelope{
		EventID:         crypto.EventID(ct),
		EventCiphertext: ct,
		KeyRefKind:      "none",
		ReceivedAt:      testEpoch,
	}
}

func peerEvent(t *testing.T, a author, networkID string) *envelope.Envelope {
	return signedIncoming(t, a, &envelope.Envelope{
		EventType: events.TypePeer,
		PeerID:    a.peerID,
		EventPlaintext: map[string]any{
			"network_id": networkID,
			"public_key": a.peerID,
			"key_type":   "ed25519",
		},
	})
}

func TestShortDatagramIsDropped(t *testing.T) {
	deps := pipeDeps(t, loopback.NewNetwork(), "10.0.0.1:7000")
	runner := NewRunner(deps)

	terminal, err := runner.RunCollecting(context.Background(), &envelope.Envelope{
		RawData:    []byte("short"),
		OriginIP:   "10.0.0.9",
		OriginPort: 9999,
		ReceivedAt: testEpoch,
	})
	require.NoError(t, err)
	assert.Empty(t, terminal, "a truncated datagram must not survive receive_from_network")

	rows, err := deps.Store.Query(context.Background(), "peers", nil)
	require.NoError(t, err)
	assert.Empty(t, rows, "no store mutation for dropped datagrams")
}

func TestWireRoundTripDeliversPeerEvent(t *testing.T) {
	net := loopback.NewNetwork()
	alice := pipeDeps(t, net, "10.0.0.1:7000")
	bob := pipeDeps(t, net, "10.0.0.2:7000")
	ctx := context.Background()

	transitKeyID := hex.EncodeToString(bytesOf(0xAB, 32))
	transitSecret := bytesOf(0x11, crypto.KeySize)
	require.NoError(t, alice.Store.StoreTransitKey(ctx, transitKeyID, transitSecret, "net1"))
	require.NoError(t, bob.Store.StoreTransitKey(ctx, transitKeyID, transitSecret, "net1"))

	a := newAuthor(t)
	ev := peerEvent(t, a, "net1")

	outgoing := ev.Clone()
	outgoing.Outgoing = true
	outgoing.OutgoingChecked = true
	outgoing.TransitKeyID = transitKeyID
	outgoing.DestIP, outgoing.DestPort = "10.0.0.2", 7000

	require.NoError(t, NewRunner(alice).Run(ctx, outgoing))

	dg, err := bob.Transport.Receive(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(dg.RawData), minRawDataBytes)
	assert.Equal(t, transitKeyID, hex.EncodeToString(dg.RawData[:32]))

	require.NoError(t, NewRunner(bob).Run(ctx, &envelope.Envelope{
		RawData:    dg.RawData,
		OriginIP:   dg.OriginIP,
		OriginPort: dg.OriginPort,
		ReceivedAt: testEpoch,
	}))

	rows, err := bob.Store.Query(ctx, "peers", map[string]any{"id": a.peerID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "net1", rows[0]["network_id"])

	stored, err := bob.Store.GetEvent(ctx, ev.EventID)
	require.NoError(t, err)
	assert.True(t, stored.Validated)
}

func TestOutOfOrderMessageUnblocksWhenChannelArrives(t *testing.T) {
	deps := pipeDeps(t, loopback.NewNetwork(), "10.0.0.2:7000")
	runner := NewRunner(deps)
	ctx := context.Background()

	a := newAuthor(t)

	msg := signedIncoming(t, a, &envelope.Envelope{
		EventType: events.TypeMessage,
		PeerID:    a.peerID,
		ChannelID: "chan1",
		EventPlaintext: map[string]any{
			"message_id":   "msg1",
			"content":      "hello from alice",
			"timestamp_ms": int64(1767225600000),
		},
	})
	channel := signedIncoming(t, a, &envelope.Envelope{
		EventType:      events.TypeChannel,
		PeerID:         a.peerID,
		GroupID:        "grp1",
		ChannelID:      "chan1",
		EventPlaintext: map[string]any{"name": "general"},
	})

	// 1. peer introduction lands first.
	require.NoError(t, runner.Run(ctx, peerEvent(t, a, "net1")))
	rows, err := deps.Store.Query(ctx, "messages", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// 2. the message arrives ahead of its channel and parks.
	require.NoError(t, runner.Run(ctx, msg))
	rows, err = deps.Store.Query(ctx, "messages", nil)
	require.NoError(t, err)
	assert.Empty(t, rows, "message must not project before its channel exists")

	blocked, err := deps.Store.GetBlocked(ctx, msg.EventID)
	require.NoError(t, err)
	assert.Contains(t, blocked.MissingDeps, "channel:chan1")

	// 3. the channel lands and the parked message drains behind it.
	require.NoError(t, runner.Run(ctx, channel))

	rows, err = deps.Store.Query(ctx, "messages", map[string]any{"message_id": "msg1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "hello from alice", rows[0]["content"])

	_, err = deps.Store.GetBlocked(ctx, msg.EventID)
	assert.ErrorIs(t, err, store.ErrNotFound, "snapshot must leave the dependency index once drained")
}

func TestRedeliveredEventProjectsOnce(t *testing.T) {
	deps := pipeDeps(t, loopback.NewNetwork(), "10.0.0.2:7000")
	runner := NewRunner(deps)
	ctx := context.Background()

	a := newAuthor(t)
	ev := peerEvent(t, a, "net1")

	require.NoError(t, runner.Run(ctx, ev))
	require.NoError(t, runner.Run(ctx, ev.Clone()))

	rows, err := deps.Store.Query(ctx, "peers", map[string]any{"id": a.peerID})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestInvalidEventIsTombstonedOnFirstArrival(t *testing.T) {
	deps := pipeDeps(t, loopback.NewNetwork(), "10.0.0.2:7000")
	runner := NewRunner(deps)
	ctx := context.Background()

	a := newAuthor(t)
	require.NoError(t, runner.Run(ctx, peerEvent(t, a, "net1")))

	// A never-before-seen channel event with no name: fails validation
	// before event-store ever ran for it.
	bad := signedIncoming(t, a, &envelope.Envelope{
		EventType:      events.TypeChannel,
		PeerID:         a.peerID,
		GroupID:        "grp1",
		ChannelID:      "chan1",
		EventPlaintext: map[string]any{},
	})
	require.NoError(t, runner.Run(ctx, bad))

	row, err := deps.Store.GetEvent(ctx, bad.EventID)
	assert.ErrorIs(t, err, store.ErrPurged, "the purge must create the tombstone row itself")
	assert.True(t, row.Purged)
	assert.Equal(t, "validation_failed", row.PurgedReason)
	assert.Equal(t, events.TypeChannel, row.EventType)
	assert.Equal(t, row.PurgedAt.Add(TombstoneTTL), row.TTLExpireAt)

	rows, err := deps.Store.Query(ctx, "channels", nil)
	require.NoError(t, err)
	assert.Empty(t, rows, "a purged event must not have projected")

	// Redelivery of the same id hits the tombstone in the remove
	// handler and dies there.
	require.NoError(t, runner.Run(ctx, bad.Clone()))
	rows, err = deps.Store.Query(ctx, "channels", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPurgedEventIsNotReprocessed(t *testing.T) {
	deps := pipeDeps(t, loopback.NewNetwork(), "10.0.0.2:7000")
	runner := NewRunner(deps)
	ctx := context.Background()

	a := newAuthor(t)
	ev := peerEvent(t, a, "net1")

	require.NoError(t, runner.Run(ctx, ev))
	require.NoError(t, deps.Store.Purge(ctx, ev.EventID, "validation_failed", TombstoneTTL))

	// The projected row is gone with the purge in this scenario's
	// premise; redelivery must not bring it back.
	require.NoError(t, deps.Store.ApplyDeltas(ctx, []store.Delta{{
		Op: "delete", Table: "peers", Where: map[string]any{"id": a.peerID},
	}}))

	require.NoError(t, runner.Run(ctx, ev.Clone()))
	rows, err := deps.Store.Query(ctx, "peers", map[string]any{"id": a.peerID})
	require.NoError(t, err)
	assert.Empty(t, rows, "a tombstoned event_id must never re-project")
}

func TestBlockedRetryBoundEvictsSnapshot(t *testing.T) {
	deps := pipeDeps(t, loopback.NewNetwork(), "10.0.0.2:7000")
	ctx := context.Background()

	e := &envelope.Envelope{
		EventID:   "ev-exhausted",
		EventType: events.TypeMessage,
		Deps:      []string{"channel:never-arrives"},
		EventPlaintext: map[string]any{
			"message_id": "msg1", "content": "x",
		},
		RetryCount: MaxRetryCount,
	}
	blob, err := json.Marshal(e)
	require.NoError(t, err)
	require.NoError(t, deps.Store.SaveBlocked(ctx, store.BlockedEvent{
		EventID:      e.EventID,
		EnvelopeBlob: blob,
		CreatedAt:    testEpoch,
		MissingDeps:  []string{"channel:never-arrives"},
		RetryCount:   e.RetryCount,
	}))

	out, err := ResolveDeps(deps).Process(ctx, e)
	require.NoError(t, err)
	assert.Empty(t, out, "an exhausted envelope is dropped, not re-blocked")

	_, err = deps.Store.GetBlocked(ctx, e.EventID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransitEncryptStripsEnvelope(t *testing.T) {
	deps := pipeDeps(t, loopback.NewNetwork(), "10.0.0.1:7000")
	ctx := context.Background()

	transitKeyID := hex.EncodeToString(bytesOf(0xCD, 32))
	require.NoError(t, deps.Store.StoreTransitKey(ctx, transitKeyID, bytesOf(0x22, crypto.KeySize), "net1"))

	full := &envelope.Envelope{
		EventID:         "ev1",
		EventType:       events.TypeMessage,
		PeerID:          "peer1",
		NetworkID:       "net1",
		EventPlaintext:  map[string]any{"content": "secret"},
		EventCiphertext: []byte("ciphertext"),
		ResolvedDeps:    map[string]any{"channel:chan1": map[string]any{}},
		KeyRefKind:      "none",
		TransitKeyID:    transitKeyID,
		DestIP:          "10.0.0.2",
		DestPort:        7000,
		DueMs:           42,
		Outgoing:        true,
		OutgoingChecked: true,
		Validated:       true,
	}

	out, err := TransitEncrypt(deps).Process(ctx, full)
	require.NoError(t, err)
	require.Len(t, out, 1)

	stripped := out[0]
	assert.NotEmpty(t, stripped.TransitCiphertext)
	assert.Equal(t, transitKeyID, stripped.TransitKeyID)
	assert.Equal(t, "10.0.0.2", stripped.DestIP)
	assert.Equal(t, 7000, stripped.DestPort)
	assert.Equal(t, int64(42), stripped.DueMs)

	assert.Empty(t, stripped.EventID)
	assert.Empty(t, stripped.EventType)
	assert.Nil(t, stripped.EventPlaintext)
	assert.Nil(t, stripped.EventCiphertext)
	assert.Nil(t, stripped.ResolvedDeps)
	assert.Empty(t, stripped.PeerID)
}

func TestIncomingSyncRequestBuildsResponse(t *testing.T) {
	deps := pipeDeps(t, loopback.NewNetwork(), "10.0.0.2:7000")
	ctx := context.Background()

	require.NoError(t, deps.Store.PutEvent(ctx, store.EventRow{
		EventID:         "ev1",
		EventType:       events.TypePeer,
		EventCiphertext: []byte("ct-1"),
		EventKeyID:      "none:",
		StoredAt:        testEpoch,
		Validated:       true,
	}))

	req := &envelope.Envelope{
		EventType:    "sync_request",
		TransitKeyID: hex.EncodeToString(bytesOf(0xEF, 32)),
		OriginIP:     "10.0.0.1",
		OriginPort:   7000,
		LocalMetadata: map[string]any{"sync": syncEnvelope{
			Kind:      "sync_request",
			RequestID: "req-1",
			NetworkID: "net1",
			PeerID:    "alice",
		}},
	}

	out, err := IncomingSyncRequest(deps).Process(ctx, req)
	require.NoError(t, err)
	require.Len(t, out, 1)

	resp := out[0]
	assert.Equal(t, "sync_response", resp.EventType)
	assert.True(t, resp.Outgoing)
	assert.Equal(t, req.TransitKeyID, resp.TransitKeyID, "reply under the key the request arrived on")
	assert.Equal(t, "10.0.0.1", resp.DestIP)
	assert.Equal(t, 7000, resp.DestPort)

	var wire syncEnvelope
	require.NoError(t, json.Unmarshal(resp.EventCiphertext, &wire))
	assert.Equal(t, "req-1", wire.InResponseTo)
	assert.Equal(t, []string{"ev1"}, wire.EventIDs)
	assert.Equal(t, []string{"none:"}, wire.EventKeyIDs)
}

func TestIncomingSyncResponseDeduplicatesAndReinjects(t *testing.T) {
	deps := pipeDeps(t, loopback.NewNetwork(), "10.0.0.1:7000")
	ctx := context.Background()

	// Correlation state for a probe this node actually sent.
	deps.Sync.Put("req-1", syncCacheEntry{NetworkID: "net1"}, deps.Clock.Now())

	// ev-known is already stored; only ev-new should be re-injected.
	require.NoError(t, deps.Store.PutEvent(ctx, store.EventRow{
		EventID:         "ev-known",
		EventType:       events.TypePeer,
		EventCiphertext: []byte("ct-known"),
		StoredAt:        testEpoch,
	}))

	mkResponse := func(requestID string) *envelope.Envelope {
		return &envelope.Envelope{
			EventType:  "sync_response",
			OriginIP:   "10.0.0.2",
			OriginPort: 7000,
			LocalMetadata: map[string]any{"sync": syncEnvelope{
				Kind:             "sync_response",
				InResponseTo:     requestID,
				NetworkID:        "net1",
				EventIDs:         []string{"ev-known", "ev-new"},
				EventKeyIDs:      []string{"none:", "none:"},
				EventCiphertexts: []string{hex.EncodeToString([]byte("ct-known")), hex.EncodeToString([]byte("ct-new"))},
			}},
		}
	}

	// Unsolicited correlation id: discarded outright.
	out, err := IncomingSyncResponse(deps).Process(ctx, mkResponse("req-unknown"))
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = IncomingSyncResponse(deps).Process(ctx, mkResponse("req-1"))
	require.NoError(t, err)
	require.Len(t, out, 1, "known events are dropped, new ones re-enter the pipeline")
	assert.Equal(t, "ev-new", out[0].EventID)
	assert.Equal(t, []byte("ct-new"), out[0].EventCiphertext)
	assert.Equal(t, "none", out[0].KeyRefKind)

	// A response can only be consumed once.
	out, err = IncomingSyncResponse(deps).Process(ctx, mkResponse("req-1"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
