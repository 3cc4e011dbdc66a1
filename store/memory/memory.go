// Package memory is a pure in-memory Store implementation: the
// map-plus-mutex pattern crypto/storage/memory.go uses for key
// material, generalized to the full event-store/projected-view/
// dependency-index/key-store/scheduler surface. It is the default
// backend for tests and throwaway processes.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quiet-mesh/quietcore/internal/logger"
	"github.com/quiet-mesh/quietcore/store"
	"golang.org/x/sync/semaphore"
)

// Store implements store.Store entirely in process memory. Every
// accessor takes its own lock; WithWriteLease additionally serializes
// top-level requests via a weight-1 semaphore exactly as §5 specifies,
// even though an in-memory map would tolerate concurrent access,
// because handlers assume the same exclusive-write discipline
// regardless of backend.
type Store struct {
	mu sync.RWMutex

	events  map[string]store.EventRow
	tables  map[string]map[string]map[string]any // table -> row key -> row
	blocked map[string]store.BlockedEvent
	waiters map[string]map[string]bool // depID -> set of waiting eventIDs

	signingKeys map[string][]byte
	transitKeys map[string]transitKeyEntry

	jobStates map[string]store.JobState
	jobRuns   map[string]store.JobRun

	lease *semaphore.Weighted
}

type transitKeyEntry struct {
	secret    []byte
	networkID string
}

// New creates an empty in-memory Store.
func New() *Store {
	return &Store{
		events:      make(map[string]store.EventRow),
		tables:      make(map[string]map[string]map[string]any),
		blocked:     make(map[string]store.BlockedEvent),
		waiters:     make(map[string]map[string]bool),
		signingKeys: make(map[string][]byte),
		transitKeys: make(map[string]transitKeyEntry),
		jobStates:   make(map[string]store.JobState),
		jobRuns:     make(map[string]store.JobRun),
		lease:       semaphore.NewWeighted(1),
	}
}

func (s *Store) WithWriteLease(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.lease.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("memory: acquire write lease: %w", err)
	}
	defer s.lease.Release(1)
	return fn(ctx)
}

func (s *Store) Close() error { return nil }

// --- EventStore ---

func (s *Store) PutEvent(ctx context.Context, row store.EventRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.events[row.EventID]; ok && existing.Purged {
		return store.ErrPurged
	}
	if row.StoredAt.IsZero() {
		row.StoredAt = time.Now()
	}
	s.events[row.EventID] = row
	logger.Debug("store: event row written",
		logger.String("event_id", row.EventID), logger.String("event_type", row.EventType))
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (store.EventRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.events[eventID]
	if !ok {
		return store.EventRow{}, store.ErrNotFound
	}
	if row.Purged {
		return row, store.ErrPurged
	}
	return row, nil
}

func (s *Store) Exists(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[eventID]
	return ok, nil
}

func (s *Store) Purge(ctx context.Context, eventID, reason string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.events[eventID]
	if !ok {
		return store.ErrNotFound
	}
	row.Purged = true
	row.PurgedAt = time.Now()
	row.PurgedReason = reason
	row.TTLExpireAt = row.PurgedAt.Add(ttl)
	s.events[eventID] = row
	logger.Warn("store: event row purged",
		logger.String("event_id", eventID), logger.String("reason", reason))
	return nil
}

func (s *Store) RecentSince(ctx context.Context, networkID, sinceEventID string, limit int) ([]store.EventRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []store.EventRow
	passedSince := sinceEventID == ""
	for _, id := range ids {
		if id == sinceEventID {
			passedSince = true
			continue
		}
		if !passedSince {
			continue
		}
		row := s.events[id]
		if row.Purged || !row.Validated {
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- ProjectedView ---

func (s *Store) ApplyDeltas(ctx context.Context, deltas []store.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range deltas {
		table, ok := s.tables[d.Table]
		if !ok {
			table = make(map[string]map[string]any)
			s.tables[d.Table] = table
		}
		switch d.Op {
		case "insert":
			key := rowKey(d.Data)
			if _, exists := table[key]; exists {
				continue // INSERT OR IGNORE semantics
			}
			table[key] = d.Data
		case "update":
			for key, row := range table {
				if matches(row, d.Where) {
					for k, v := range d.Data {
						row[k] = v
					}
					table[key] = row
				}
			}
		case "delete":
			for key, row := range table {
				if matches(row, d.Where) {
					delete(table, key)
				}
			}
		default:
			return fmt.Errorf("memory: unknown delta op %q", d.Op)
		}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, table string, where map[string]any) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.tables[table]
	if !ok {
		return nil, nil
	}
	var out []map[string]any
	for _, row := range rows {
		if matches(row, where) {
			out = append(out, row)
		}
	}
	return out, nil
}

func matches(row, where map[string]any) bool {
	for k, v := range where {
		if row[k] != v {
			return false
		}
	}
	return true
}

func rowKey(data map[string]any) string {
	if id, ok := data["id"]; ok {
		return fmt.Sprintf("%v", id)
	}
	return fmt.Sprintf("%v", data)
}

// --- DependencyIndex ---

func (s *Store) SaveBlocked(ctx context.Context, b store.BlockedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[b.EventID] = b
	for _, dep := range b.MissingDeps {
		set, ok := s.waiters[dep]
		if !ok {
			set = make(map[string]bool)
			s.waiters[dep] = set
		}
		set[b.EventID] = true
	}
	return nil
}

func (s *Store) DeleteBlocked(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocked[eventID]
	if !ok {
		return nil
	}
	delete(s.blocked, eventID)
	for _, dep := range b.MissingDeps {
		if set, ok := s.waiters[dep]; ok {
			delete(set, eventID)
		}
	}
	return nil
}

func (s *Store) Waiters(ctx context.Context, depID string) ([]store.BlockedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.waiters[depID]
	if !ok {
		return nil, nil
	}
	out := make([]store.BlockedEvent, 0, len(set))
	for eventID := range set {
		if b, ok := s.blocked[eventID]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) GetBlocked(ctx context.Context, eventID string) (store.BlockedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocked[eventID]
	if !ok {
		return store.BlockedEvent{}, store.ErrNotFound
	}
	return b, nil
}

// --- KeyStore ---

func (s *Store) StoreSigningKey(ctx context.Context, peerID string, privateKey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signingKeys[peerID] = append([]byte(nil), privateKey...)
	return nil
}

func (s *Store) LoadSigningKey(ctx context.Context, peerID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.signingKeys[peerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), key...), nil
}

func (s *Store) StoreTransitKey(ctx context.Context, transitKeyID string, secret []byte, networkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitKeys[transitKeyID] = transitKeyEntry{secret: append([]byte(nil), secret...), networkID: networkID}
	return nil
}

func (s *Store) LoadTransitKey(ctx context.Context, transitKeyID string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.transitKeys[transitKeyID]
	if !ok {
		return nil, "", store.ErrNotFound
	}
	return append([]byte(nil), entry.secret...), entry.networkID, nil
}

// --- SchedulerStore ---

func (s *Store) LoadJobState(ctx context.Context, jobName string) (store.JobState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.jobStates[jobName]
	if !ok {
		return store.JobState{JobName: jobName}, nil
	}
	return state, nil
}

func (s *Store) SaveJobState(ctx context.Context, state store.JobState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobStates[state.JobName] = state
	return nil
}

func (s *Store) RecordJobRun(ctx context.Context, run store.JobRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobRuns[run.JobName] = run
	return nil
}

func (s *Store) LoadJobRun(ctx context.Context, jobName string) (store.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.jobRuns[jobName]
	if !ok {
		return store.JobRun{JobName: jobName}, nil
	}
	return run, nil
}
