package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/internal/logger"
	"github.com/quiet-mesh/quietcore/store"
)

// syncCacheTTL is how long a sync_request's correlation state survives
// before a late sync_response is silently ignored (§4.3.11).
const syncCacheTTL = 30 * time.Second

// maxSyncResponseEvents caps how many events one sync_response carries,
// keeping the reply within the transport's datagram ceiling.
const maxSyncResponseEvents = 32

// syncCacheEntry is what the requester remembers about a probe it sent
// so it can recognize the matching response. Only the entry's presence
// is checked when the response arrives; its network and transit secret
// are not consulted.
type syncCacheEntry struct {
	NetworkID     string
	TransitSecret []byte
	expiresAt     time.Time
}

// SyncCache correlates outgoing sync_request probes with their
// sync_response replies. It is not store-backed: a probe this short-
// lived doesn't warrant a durable table, and losing in-flight probes
// across a restart is harmless — the next scheduler tick sends a new
// one.
type SyncCache struct {
	mu      sync.Mutex
	entries map[string]syncCacheEntry
}

// NewSyncCache returns an empty cache.
func NewSyncCache() *SyncCache {
	return &SyncCache{entries: make(map[string]syncCacheEntry)}
}

// Put records a probe's correlation state, valid for syncCacheTTL from now.
func (c *SyncCache) Put(requestID string, entry syncCacheEntry, now time.Time) {
	entry.expiresAt = now.Add(syncCacheTTL)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[requestID] = entry
}

// Take returns and removes requestID's entry if it exists and hasn't
// expired as of now. A response can only be consumed once.
func (c *SyncCache) Take(requestID string, now time.Time) (syncCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[requestID]
	delete(c.entries, requestID)
	if !ok || now.After(entry.expiresAt) {
		return syncCacheEntry{}, false
	}
	return entry, true
}

// syncEnvelope is the wire shape for both probe and reply; kind picks
// which one a field set describes.
type syncEnvelope struct {
	Kind             string   `json:"kind"`
	RequestID        string   `json:"request_id"`
	NetworkID        string   `json:"network_id"`
	PeerID           string   `json:"peer_id"`
	UserID           string   `json:"user_id,omitempty"`
	TransitSecret    string   `json:"transit_secret,omitempty"`
	TimestampMs      int64    `json:"timestamp_ms"`
	TargetPeerID     string   `json:"target_peer_id,omitempty"`
	SinceEventID     string   `json:"since_event_id,omitempty"`
	InResponseTo     string   `json:"in_response_to,omitempty"`
	EventIDs         []string `json:"event_ids,omitempty"`
	EventKeyIDs      []string `json:"event_key_ids,omitempty"`
	EventCiphertexts []string `json:"event_ciphertexts,omitempty"`
}

func randomID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// BuildSyncRequest implements §4.3.11's sync_request_create job: a
// scheduler tick calls this directly (there is no incoming envelope to
// react to) to mint a fresh probe, remember it in the cache, and hand
// back an outgoing envelope ready for transit encryption.
func BuildSyncRequest(deps Deps, networkID, peerID, userID, transitKeyID string, transitSecret []byte, targetPeerID, sinceEventID, destIP string, destPort int, dueMs int64) (*envelope.Envelope, error) {
	requestID, err := randomID()
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "sync: generate request id", err)
	}

	now := deps.Clock.Now()
	deps.Sync.Put(requestID, syncCacheEntry{NetworkID: networkID, TransitSecret: transitSecret}, now)

	body, err := json.Marshal(syncEnvelope{
		Kind:         "sync_request",
		RequestID:    requestID,
		NetworkID:    networkID,
		PeerID:       peerID,
		UserID:       userID,
		TimestampMs:  deps.Clock.NowMillis(),
		TargetPeerID: targetPeerID,
		SinceEventID: sinceEventID,
	})
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "sync: marshal request", err)
	}

	return &envelope.Envelope{
		EventType:       "sync_request",
		NetworkID:       networkID,
		PeerID:          peerID,
		EventCiphertext: body,
		KeyRefKind:      "sync",
		KeyRefID:        requestID,
		TransitKeyID:    transitKeyID,
		DestIP:          destIP,
		DestPort:        destPort,
		DueMs:           dueMs,
		Outgoing:        true,
		OutgoingChecked: true,
		SigChecked:      true,
	}, nil
}

// DecodeSyncEnvelope implements the sync/reflect sub-path of event
// crypto: a transit-decrypted payload whose key_ref.kind is "sync"
// carries its own small JSON object directly, with neither event-layer
// encryption nor a signature — the transit layer already authenticates
// it to the sending peer, and it is never durably stored.
func DecodeSyncEnvelope() envelope.Handler {
	return envelope.NewHandlerFunc(
		"sync_decode",
		func(e *envelope.Envelope) bool {
			return e.KeyRefKind == "sync" && len(e.EventCiphertext) > 0 && e.EventType == ""
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			var wire syncEnvelope
			if err := json.Unmarshal(e.EventCiphertext, &wire); err != nil {
				return nil, errkind.Wrap(errkind.InputMalformed, "sync: parse sync envelope", err)
			}
			out := e.Clone()
			out.EventType = wire.Kind
			out.NetworkID = wire.NetworkID
			out.PeerID = wire.PeerID
			out.LocalMetadata = map[string]any{"sync": wire}
			out.SigChecked = true
			return []*envelope.Envelope{out}, nil
		},
	)
}

// IncomingSyncRequest implements §4.3.11: answer a peer's probe with a
// single sync_response, addressed back to them, carrying up to
// maxSyncResponseEvents stored, validated events after the probe's
// since_event_id. What the requester already holds is not checked.
func IncomingSyncRequest(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"sync_request_incoming",
		func(e *envelope.Envelope) bool {
			return e.EventType == "sync_request" && !e.Outgoing && e.LocalMetadata["sync"] != nil
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			req, _ := e.LocalMetadata["sync"].(syncEnvelope)

			rows, err := deps.Store.RecentSince(ctx, req.NetworkID, req.SinceEventID, maxSyncResponseEvents)
			if err != nil {
				return nil, errkind.Wrap(errkind.Internal, "sync: load recent events", err)
			}

			ids := make([]string, 0, len(rows))
			keyIDs := make([]string, 0, len(rows))
			ciphertexts := make([]string, 0, len(rows))
			for _, row := range rows {
				ids = append(ids, row.EventID)
				keyIDs = append(keyIDs, row.EventKeyID)
				ciphertexts = append(ciphertexts, hex.EncodeToString(row.EventCiphertext))
			}

			body, err := json.Marshal(syncEnvelope{
				Kind:             "sync_response",
				RequestID:        req.RequestID,
				InResponseTo:     req.RequestID,
				NetworkID:        req.NetworkID,
				PeerID:           e.PeerID,
				TimestampMs:      deps.Clock.NowMillis(),
				EventIDs:         ids,
				EventKeyIDs:      keyIDs,
				EventCiphertexts: ciphertexts,
			})
			if err != nil {
				return nil, errkind.Wrap(errkind.Internal, "sync: marshal response", err)
			}

			out := &envelope.Envelope{
				EventType:       "sync_response",
				NetworkID:       req.NetworkID,
				PeerID:          req.PeerID,
				EventCiphertext: body,
				KeyRefKind:      "sync",
				KeyRefID:        req.RequestID,
				TransitKeyID:    e.TransitKeyID,
				DestIP:          e.OriginIP,
				DestPort:        e.OriginPort,
				Outgoing:        true,
				OutgoingChecked: true,
				SigChecked:      true,
			}
			return []*envelope.Envelope{out}, nil
		},
	)
}

// IncomingSyncResponse implements §4.3.11: verify the reply correlates
// to a probe this node actually sent, then feed each event it carries
// back into the main pipeline as if freshly received off the network.
func IncomingSyncResponse(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"sync_response_incoming",
		func(e *envelope.Envelope) bool {
			return e.EventType == "sync_response" && !e.Outgoing && e.LocalMetadata["sync"] != nil
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			resp, _ := e.LocalMetadata["sync"].(syncEnvelope)

			if _, ok := deps.Sync.Take(resp.InResponseTo, deps.Clock.Now()); !ok {
				// Unsolicited or expired correlation.
				deps.logger().Debug("sync: discarding uncorrelated response",
					logger.String("in_response_to", resp.InResponseTo),
					logger.String("origin_ip", e.OriginIP))
				return nil, nil
			}

			out := make([]*envelope.Envelope, 0, len(resp.EventIDs))
			for i, eventID := range resp.EventIDs {
				if i >= len(resp.EventCiphertexts) {
					break
				}
				if _, err := deps.Store.GetEvent(ctx, eventID); err == nil {
					continue // already have it
				} else if err != store.ErrNotFound {
					return nil, errkind.Wrap(errkind.Internal, "sync: dedupe against store", err)
				}

				raw, err := hex.DecodeString(resp.EventCiphertexts[i])
				if err != nil {
					continue
				}
				// event_key_ids[i] carries the same "kind:id" prefix
				// convention decrypt_transit.go splits off the transit
				// layer — reflected events skip that layer, so it's
				// reconstructed here instead.
				kind, id := "key", ""
				if i < len(resp.EventKeyIDs) {
					if k, rest, ok := strings.Cut(resp.EventKeyIDs[i], ":"); ok {
						kind, id = k, rest
					} else {
						id = resp.EventKeyIDs[i]
					}
				}
				out = append(out, &envelope.Envelope{
					EventID:         eventID,
					EventCiphertext: raw,
					NetworkID:       resp.NetworkID,
					KeyRefKind:      kind,
					KeyRefID:        id,
					ReceivedAt:      deps.Clock.Now(),
					OriginIP:        e.OriginIP,
					OriginPort:      e.OriginPort,
				})
			}
			return out, nil
		},
	)
}
