// Package store defines the persistence surface the envelope pipeline
// depends on (§3, §6): the append-only event log, the derived
// projected view, the dependency index, local key storage, and
// scheduler job state. Three backends implement Store: store/sqlite
// (default), store/postgres, and store/memory (tests and ephemeral
// processes).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// ErrPurged is returned when a lookup resolves to a tombstoned event.
var ErrPurged = errors.New("store: event is purged")

// EventRow is one row of the append-only events table (§3).
type EventRow struct {
	EventID         string
	EventType       string
	EventCiphertext []byte
	EventKeyID      string
	ReceivedAt      time.Time
	OriginIP        string
	OriginPort      int
	StoredAt        time.Time
	Purged          bool
	PurgedAt        time.Time
	PurgedReason    string
	TTLExpireAt     time.Time
	Validated       bool
}

// Delta is a change to the projected view, mirroring envelope.Delta so
// store doesn't need to import the envelope package.
type Delta struct {
	Op    string // insert | update | delete
	Table string
	Data  map[string]any
	Where map[string]any
}

// BlockedEvent is a snapshot of an envelope waiting on unmet
// dependencies (§3 dependency index, §4.3.2).
type BlockedEvent struct {
	EventID      string
	EnvelopeBlob []byte
	CreatedAt    time.Time
	MissingDeps  []string
	RetryCount   int
}

// JobState is the persisted state blob for one scheduler job (§3, §4.5).
type JobState struct {
	JobName   string
	StateJSON []byte
	UpdatedMs int64
}

// JobRun tracks one scheduler job's run statistics.
type JobRun struct {
	JobName      string
	LastRunMs    int64
	LastSuccessMs int64
	LastFailureMs int64
	SuccessCount int
	FailureCount int
	LastState    string
}

// EventStore is the append-only event log.
type EventStore interface {
	PutEvent(ctx context.Context, row EventRow) error
	GetEvent(ctx context.Context, eventID string) (EventRow, error)
	Exists(ctx context.Context, eventID string) (bool, error)
	Purge(ctx context.Context, eventID, reason string, ttl time.Duration) error
	RecentSince(ctx context.Context, networkID, sinceEventID string, limit int) ([]EventRow, error)
}

// ProjectedView is the derived relational view (peers, networks,
// groups, channels, messages, group_members, invites, addresses,
// peer_transit_keys) updated by deltas.
type ProjectedView interface {
	ApplyDeltas(ctx context.Context, deltas []Delta) error
	Query(ctx context.Context, table string, where map[string]any) ([]map[string]any, error)
}

// DependencyIndex is the blocked-event ↔ missing-dep graph (§4.3.2).
type DependencyIndex interface {
	SaveBlocked(ctx context.Context, b BlockedEvent) error
	DeleteBlocked(ctx context.Context, eventID string) error
	Waiters(ctx context.Context, depID string) ([]BlockedEvent, error)
	GetBlocked(ctx context.Context, eventID string) (BlockedEvent, error)
}

// KeyStore holds local secrets that never cross the wire: a peer's own
// signing keys and per-network transit secrets.
type KeyStore interface {
	StoreSigningKey(ctx context.Context, peerID string, privateKey []byte) error
	LoadSigningKey(ctx context.Context, peerID string) ([]byte, error)
	StoreTransitKey(ctx context.Context, transitKeyID string, secret []byte, networkID string) error
	LoadTransitKey(ctx context.Context, transitKeyID string) (secret []byte, networkID string, err error)
}

// SchedulerStore persists job state and run statistics.
type SchedulerStore interface {
	LoadJobState(ctx context.Context, jobName string) (JobState, error)
	SaveJobState(ctx context.Context, state JobState) error
	RecordJobRun(ctx context.Context, run JobRun) error
	LoadJobRun(ctx context.Context, jobName string) (JobRun, error)
}

// Store is the full persistence surface, plus the exclusive write
// lease every top-level request acquires before running the pipeline
// to quiescence (§5).
type Store interface {
	EventStore
	ProjectedView
	DependencyIndex
	KeyStore
	SchedulerStore

	// WithWriteLease acquires the store's exclusive write lease, runs
	// fn, and releases the lease on return (including on panic
	// recovery by the caller — WithWriteLease itself does not recover).
	WithWriteLease(ctx context.Context, fn func(ctx context.Context) error) error

	Close() error
}
