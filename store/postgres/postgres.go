// Copyright (C) 2025 quiet-mesh project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package postgres implements store.Store on jackc/pgx/v5: a
// pgxpool.Pool opened from a Config, one method per operation issuing
// a single parameterized query, errors wrapped with fmt.Errorf, and
// the pool's own connection limit acting as the natural backpressure
// point.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quiet-mesh/quietcore/internal/logger"
	"github.com/quiet-mesh/quietcore/store"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Store implements store.Store for PostgreSQL.
type Store struct {
	pool  *pgxpool.Pool
	lease chan struct{}
}

// NewStore creates a new PostgreSQL-backed store and ensures the
// schema described in §3 exists.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping database: %w", err)
	}

	s := &Store{pool: pool, lease: make(chan struct{}, 1)}
	s.lease <- struct{}{}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			event_ciphertext BYTEA,
			event_key_id TEXT,
			received_at TIMESTAMPTZ,
			origin_ip TEXT,
			origin_port INTEGER,
			stored_at TIMESTAMPTZ,
			purged BOOLEAN NOT NULL DEFAULT FALSE,
			purged_at TIMESTAMPTZ,
			purged_reason TEXT,
			ttl_expire_at TIMESTAMPTZ,
			validated BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_purged_ttl ON events(purged, ttl_expire_at)`,
		`CREATE TABLE IF NOT EXISTS projected_rows (
			table_name TEXT NOT NULL,
			row_key TEXT NOT NULL,
			row_json JSONB NOT NULL,
			PRIMARY KEY (table_name, row_key)
		)`,
		`CREATE TABLE IF NOT EXISTS blocked_events (
			event_id TEXT PRIMARY KEY,
			envelope_blob BYTEA,
			created_at TIMESTAMPTZ,
			retry_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS blocked_event_deps (
			event_id TEXT NOT NULL,
			dep_id TEXT NOT NULL,
			PRIMARY KEY (event_id, dep_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blocked_deps_by_dep ON blocked_event_deps(dep_id)`,
		`CREATE TABLE IF NOT EXISTS signing_keys (
			peer_id TEXT PRIMARY KEY,
			private_key BYTEA NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transit_keys (
			transit_key_id TEXT PRIMARY KEY,
			secret BYTEA NOT NULL,
			network_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS job_states (
			job_name TEXT PRIMARY KEY,
			state_json BYTEA,
			updated_ms BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS job_runs (
			job_name TEXT PRIMARY KEY,
			last_run_ms BIGINT,
			last_success_ms BIGINT,
			last_failure_ms BIGINT,
			success_count INTEGER,
			failure_count INTEGER,
			last_state TEXT
		)`,
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("postgres: init schema: %w", err)
		}
	}
	return nil
}

// WithWriteLease serializes top-level requests with a buffered
// channel acting as a weight-1 permit, mirroring store/memory's
// semaphore-based lease without adding a second synchronization
// dependency alongside pgx's own pool.
func (s *Store) WithWriteLease(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case <-s.lease:
	case <-ctx.Done():
		return fmt.Errorf("postgres: acquire write lease: %w", ctx.Err())
	}
	defer func() { s.lease <- struct{}{} }()
	return fn(ctx)
}

// --- EventStore ---

func (s *Store) PutEvent(ctx context.Context, row store.EventRow) error {
	var purged bool
	err := s.pool.QueryRow(ctx, `SELECT purged FROM events WHERE event_id = $1`, row.EventID).Scan(&purged)
	if err == nil && purged {
		return store.ErrPurged
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: put event: %w", err)
	}
	if row.StoredAt.IsZero() {
		row.StoredAt = time.Now()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (event_id, event_type, event_ciphertext, event_key_id, received_at, origin_ip, origin_port, stored_at, validated)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (event_id) DO UPDATE SET
			event_type = excluded.event_type, event_ciphertext = excluded.event_ciphertext,
			event_key_id = excluded.event_key_id, received_at = excluded.received_at,
			origin_ip = excluded.origin_ip, origin_port = excluded.origin_port,
			validated = excluded.validated`,
		row.EventID, row.EventType, row.EventCiphertext, row.EventKeyID, row.ReceivedAt,
		row.OriginIP, row.OriginPort, row.StoredAt, row.Validated)
	if err != nil {
		return fmt.Errorf("postgres: put event: %w", err)
	}
	logger.Debug("store: event row written",
		logger.String("event_id", row.EventID), logger.String("event_type", row.EventType))
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (store.EventRow, error) {
	var r store.EventRow
	var purgedAt, ttlExpireAt *time.Time
	var purgedReason *string
	err := s.pool.QueryRow(ctx, `
		SELECT event_id, event_type, event_ciphertext, event_key_id, received_at, origin_ip, origin_port,
		       stored_at, purged, purged_at, purged_reason, ttl_expire_at, validated
		FROM events WHERE event_id = $1`, eventID).Scan(
		&r.EventID, &r.EventType, &r.EventCiphertext, &r.EventKeyID, &r.ReceivedAt,
		&r.OriginIP, &r.OriginPort, &r.StoredAt, &r.Purged, &purgedAt, &purgedReason, &ttlExpireAt, &r.Validated)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.EventRow{}, store.ErrNotFound
	}
	if err != nil {
		return store.EventRow{}, fmt.Errorf("postgres: get event: %w", err)
	}
	if purgedAt != nil {
		r.PurgedAt = *purgedAt
	}
	if purgedReason != nil {
		r.PurgedReason = *purgedReason
	}
	if ttlExpireAt != nil {
		r.TTLExpireAt = *ttlExpireAt
	}
	if r.Purged {
		return r, store.ErrPurged
	}
	return r, nil
}

func (s *Store) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE event_id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: exists: %w", err)
	}
	return exists, nil
}

func (s *Store) Purge(ctx context.Context, eventID, reason string, ttl time.Duration) error {
	now := time.Now()
	tag, err := s.pool.Exec(ctx, `
		UPDATE events SET purged = TRUE, purged_at = $1, purged_reason = $2, ttl_expire_at = $3
		WHERE event_id = $4`, now, reason, now.Add(ttl), eventID)
	if err != nil {
		return fmt.Errorf("postgres: purge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	logger.Warn("store: event row purged",
		logger.String("event_id", eventID), logger.String("reason", reason))
	return nil
}

func (s *Store) RecentSince(ctx context.Context, networkID, sinceEventID string, limit int) ([]store.EventRow, error) {
	if limit <= 0 {
		limit = 100
	}
	var sinceReceivedAt time.Time
	if sinceEventID != "" {
		row, err := s.GetEvent(ctx, sinceEventID)
		if err == nil || errors.Is(err, store.ErrPurged) {
			sinceReceivedAt = row.ReceivedAt
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT event_id, event_type, event_ciphertext, event_key_id, received_at, origin_ip, origin_port,
		       stored_at, purged, purged_at, purged_reason, ttl_expire_at, validated
		FROM events
		WHERE purged = FALSE AND validated = TRUE AND received_at > $1
		ORDER BY received_at ASC, event_id ASC
		LIMIT $2`, sinceReceivedAt, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent since: %w", err)
	}
	defer rows.Close()

	var out []store.EventRow
	for rows.Next() {
		var r store.EventRow
		var purgedAt, ttlExpireAt *time.Time
		var purgedReason *string
		if err := rows.Scan(&r.EventID, &r.EventType, &r.EventCiphertext, &r.EventKeyID, &r.ReceivedAt,
			&r.OriginIP, &r.OriginPort, &r.StoredAt, &r.Purged, &purgedAt, &purgedReason, &ttlExpireAt, &r.Validated); err != nil {
			return nil, fmt.Errorf("postgres: recent since scan: %w", err)
		}
		if purgedAt != nil {
			r.PurgedAt = *purgedAt
		}
		if purgedReason != nil {
			r.PurgedReason = *purgedReason
		}
		if ttlExpireAt != nil {
			r.TTLExpireAt = *ttlExpireAt
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- ProjectedView ---
//
// Like store/sqlite, rows are kept as one JSONB blob per (table,
// row_key) rather than one physical table per projected entity —
// the eleven event-type projectors each define their own columns
// independently of this storage layer.

func (s *Store) ApplyDeltas(ctx context.Context, deltas []store.Delta) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: apply deltas: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, d := range deltas {
		if err := applyDelta(ctx, tx, d); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func applyDelta(ctx context.Context, tx pgx.Tx, d store.Delta) error {
	switch d.Op {
	case "insert":
		key := rowKey(d.Data)
		blob, err := json.Marshal(d.Data)
		if err != nil {
			return fmt.Errorf("postgres: marshal row: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO projected_rows (table_name, row_key, row_json) VALUES ($1,$2,$3)
			ON CONFLICT (table_name, row_key) DO NOTHING`, d.Table, key, blob); err != nil {
			return fmt.Errorf("postgres: insert row: %w", err)
		}
	case "update":
		rows, err := queryRowsTx(ctx, tx, d.Table)
		if err != nil {
			return err
		}
		for key, row := range rows {
			if !matches(row, d.Where) {
				continue
			}
			for k, v := range d.Data {
				row[k] = v
			}
			blob, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("postgres: marshal row: %w", err)
			}
			if _, err := tx.Exec(ctx, `
				UPDATE projected_rows SET row_json = $1 WHERE table_name = $2 AND row_key = $3`,
				blob, d.Table, key); err != nil {
				return fmt.Errorf("postgres: update row: %w", err)
			}
		}
	case "delete":
		rows, err := queryRowsTx(ctx, tx, d.Table)
		if err != nil {
			return err
		}
		for key, row := range rows {
			if !matches(row, d.Where) {
				continue
			}
			if _, err := tx.Exec(ctx, `
				DELETE FROM projected_rows WHERE table_name = $1 AND row_key = $2`, d.Table, key); err != nil {
				return fmt.Errorf("postgres: delete row: %w", err)
			}
		}
	default:
		return fmt.Errorf("postgres: unknown delta op %q", d.Op)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, table string, where map[string]any) ([]map[string]any, error) {
	rows, err := s.pool.Query(ctx, `SELECT row_key, row_json FROM projected_rows WHERE table_name = $1`, table)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()
	decoded, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for _, row := range decoded {
		if matches(row, where) {
			out = append(out, row)
		}
	}
	return out, nil
}

func queryRowsTx(ctx context.Context, tx pgx.Tx, table string) (map[string]map[string]any, error) {
	rows, err := tx.Query(ctx, `SELECT row_key, row_json FROM projected_rows WHERE table_name = $1`, table)
	if err != nil {
		return nil, fmt.Errorf("postgres: query rows: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows pgx.Rows) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any)
	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(blob, &decoded); err != nil {
			return nil, fmt.Errorf("postgres: decode row: %w", err)
		}
		out[key] = decoded
	}
	return out, rows.Err()
}

func matches(row, where map[string]any) bool {
	for k, v := range where {
		rv, ok := row[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", rv) != fmt.Sprintf("%v", v) {
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
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: save blocked: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO blocked_events (event_id, envelope_blob, created_at, retry_count)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (event_id) DO UPDATE SET envelope_blob = excluded.envelope_blob, retry_count = excluded.retry_count`,
		b.EventID, b.EnvelopeBlob, b.CreatedAt, b.RetryCount); err != nil {
		return fmt.Errorf("postgres: save blocked: %w", err)
	}
	for _, dep := range b.MissingDeps {
		if _, err := tx.Exec(ctx, `
			INSERT INTO blocked_event_deps (event_id, dep_id) VALUES ($1,$2)
			ON CONFLICT (event_id, dep_id) DO NOTHING`, b.EventID, dep); err != nil {
			return fmt.Errorf("postgres: save blocked dep: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) DeleteBlocked(ctx context.Context, eventID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: delete blocked: %w", err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM blocked_event_deps WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("postgres: delete blocked deps: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM blocked_events WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("postgres: delete blocked: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) Waiters(ctx context.Context, depID string) ([]store.BlockedEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT be.event_id, be.envelope_blob, be.created_at, be.retry_count
		FROM blocked_events be
		JOIN blocked_event_deps d ON d.event_id = be.event_id
		WHERE d.dep_id = $1`, depID)
	if err != nil {
		return nil, fmt.Errorf("postgres: waiters: %w", err)
	}
	defer rows.Close()

	var out []store.BlockedEvent
	for rows.Next() {
		var b store.BlockedEvent
		if err := rows.Scan(&b.EventID, &b.EnvelopeBlob, &b.CreatedAt, &b.RetryCount); err != nil {
			return nil, fmt.Errorf("postgres: waiters scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: waiters: %w", err)
	}
	for i := range out {
		deps, err := s.depsFor(ctx, out[i].EventID)
		if err != nil {
			return nil, err
		}
		out[i].MissingDeps = deps
	}
	return out, nil
}

func (s *Store) GetBlocked(ctx context.Context, eventID string) (store.BlockedEvent, error) {
	var b store.BlockedEvent
	err := s.pool.QueryRow(ctx, `
		SELECT event_id, envelope_blob, created_at, retry_count FROM blocked_events WHERE event_id = $1`, eventID).
		Scan(&b.EventID, &b.EnvelopeBlob, &b.CreatedAt, &b.RetryCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.BlockedEvent{}, store.ErrNotFound
	}
	if err != nil {
		return store.BlockedEvent{}, fmt.Errorf("postgres: get blocked: %w", err)
	}
	deps, err := s.depsFor(ctx, eventID)
	if err != nil {
		return store.BlockedEvent{}, err
	}
	b.MissingDeps = deps
	return b, nil
}

func (s *Store) depsFor(ctx context.Context, eventID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT dep_id FROM blocked_event_deps WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("postgres: deps for: %w", err)
	}
	defer rows.Close()
	var deps []string
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, fmt.Errorf("postgres: deps for scan: %w", err)
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

// --- KeyStore ---

func (s *Store) StoreSigningKey(ctx context.Context, peerID string, privateKey []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO signing_keys (peer_id, private_key) VALUES ($1,$2)
		ON CONFLICT (peer_id) DO UPDATE SET private_key = excluded.private_key`, peerID, privateKey)
	if err != nil {
		return fmt.Errorf("postgres: store signing key: %w", err)
	}
	return nil
}

func (s *Store) LoadSigningKey(ctx context.Context, peerID string) ([]byte, error) {
	var key []byte
	err := s.pool.QueryRow(ctx, `SELECT private_key FROM signing_keys WHERE peer_id = $1`, peerID).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load signing key: %w", err)
	}
	return key, nil
}

func (s *Store) StoreTransitKey(ctx context.Context, transitKeyID string, secret []byte, networkID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transit_keys (transit_key_id, secret, network_id) VALUES ($1,$2,$3)
		ON CONFLICT (transit_key_id) DO UPDATE SET secret = excluded.secret, network_id = excluded.network_id`,
		transitKeyID, secret, networkID)
	if err != nil {
		return fmt.Errorf("postgres: store transit key: %w", err)
	}
	return nil
}

func (s *Store) LoadTransitKey(ctx context.Context, transitKeyID string) ([]byte, string, error) {
	var secret []byte
	var networkID string
	err := s.pool.QueryRow(ctx, `SELECT secret, network_id FROM transit_keys WHERE transit_key_id = $1`, transitKeyID).
		Scan(&secret, &networkID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", store.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("postgres: load transit key: %w", err)
	}
	return secret, networkID, nil
}

// --- SchedulerStore ---

func (s *Store) LoadJobState(ctx context.Context, jobName string) (store.JobState, error) {
	var state store.JobState
	state.JobName = jobName
	err := s.pool.QueryRow(ctx, `SELECT state_json, updated_ms FROM job_states WHERE job_name = $1`, jobName).
		Scan(&state.StateJSON, &state.UpdatedMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return store.JobState{}, fmt.Errorf("postgres: load job state: %w", err)
	}
	return state, nil
}

func (s *Store) SaveJobState(ctx context.Context, state store.JobState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_states (job_name, state_json, updated_ms) VALUES ($1,$2,$3)
		ON CONFLICT (job_name) DO UPDATE SET state_json = excluded.state_json, updated_ms = excluded.updated_ms`,
		state.JobName, state.StateJSON, state.UpdatedMs)
	if err != nil {
		return fmt.Errorf("postgres: save job state: %w", err)
	}
	return nil
}

func (s *Store) RecordJobRun(ctx context.Context, run store.JobRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_runs (job_name, last_run_ms, last_success_ms, last_failure_ms, success_count, failure_count, last_state)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (job_name) DO UPDATE SET
			last_run_ms = excluded.last_run_ms, last_success_ms = excluded.last_success_ms,
			last_failure_ms = excluded.last_failure_ms, success_count = excluded.success_count,
			failure_count = excluded.failure_count, last_state = excluded.last_state`,
		run.JobName, run.LastRunMs, run.LastSuccessMs, run.LastFailureMs, run.SuccessCount, run.FailureCount, run.LastState)
	if err != nil {
		return fmt.Errorf("postgres: record job run: %w", err)
	}
	return nil
}

func (s *Store) LoadJobRun(ctx context.Context, jobName string) (store.JobRun, error) {
	var run store.JobRun
	run.JobName = jobName
	err := s.pool.QueryRow(ctx, `
		SELECT last_run_ms, last_success_ms, last_failure_ms, success_count, failure_count, last_state
		FROM job_runs WHERE job_name = $1`, jobName).
		Scan(&run.LastRunMs, &run.LastSuccessMs, &run.LastFailureMs, &run.SuccessCount, &run.FailureCount, &run.LastState)
	if errors.Is(err, pgx.ErrNoRows) {
		return run, nil
	}
	if err != nil {
		return store.JobRun{}, fmt.Errorf("postgres: load job run: %w", err)
	}
	return run, nil
}
