// Package sqlite implements store.Store on top of database/sql and
// mattn/go-sqlite3: a single-file WAL-mode database, opened with a
// busy timeout so concurrent processes never surface SQLITE_BUSY, and
// one connection kept open at a time.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/semaphore"

	"github.com/quiet-mesh/quietcore/internal/logger"
	"github.com/quiet-mesh/quietcore/store"
)

// Store implements store.Store against a single SQLite database file.
type Store struct {
	db    *sql.DB
	lease *semaphore.Weighted
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema described in §3 exists.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=ON", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, lease: semaphore.NewWeighted(1)}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			event_ciphertext BLOB,
			event_key_id TEXT,
			received_at DATETIME,
			origin_ip TEXT,
			origin_port INTEGER,
			stored_at DATETIME,
			purged INTEGER NOT NULL DEFAULT 0,
			purged_at DATETIME,
			purged_reason TEXT,
			ttl_expire_at DATETIME,
			validated INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_purged_ttl ON events(purged, ttl_expire_at);`,
		`CREATE TABLE IF NOT EXISTS projected_rows (
			table_name TEXT NOT NULL,
			row_key TEXT NOT NULL,
			row_json TEXT NOT NULL,
			PRIMARY KEY (table_name, row_key)
		);`,
		`CREATE TABLE IF NOT EXISTS blocked_events (
			event_id TEXT PRIMARY KEY,
			envelope_blob BLOB,
			created_at DATETIME,
			retry_count INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS blocked_event_deps (
			event_id TEXT NOT NULL,
			dep_id TEXT NOT NULL,
			PRIMARY KEY (event_id, dep_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_blocked_deps_by_dep ON blocked_event_deps(dep_id);`,
		`CREATE TABLE IF NOT EXISTS signing_keys (
			peer_id TEXT PRIMARY KEY,
			private_key BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transit_keys (
			transit_key_id TEXT PRIMARY KEY,
			secret BLOB NOT NULL,
			network_id TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS job_states (
			job_name TEXT PRIMARY KEY,
			state_json BLOB,
			updated_ms INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS job_runs (
			job_name TEXT PRIMARY KEY,
			last_run_ms INTEGER,
			last_success_ms INTEGER,
			last_failure_ms INTEGER,
			success_count INTEGER,
			failure_count INTEGER,
			last_state TEXT
		);`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("sqlite: init schema: %w", err)
		}
	}
	return nil
}

// WithWriteLease serializes top-level requests with a weight-1
// semaphore, mirroring store/memory's lease exactly: fn runs its own
// statements and transactions directly against s.db (SetMaxOpenConns(1)
// already ceilings it to one connection), so the lease must not itself
// hold a transaction open across fn or the two would deadlock on that
// single connection.
func (s *Store) WithWriteLease(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.lease.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("sqlite: acquire write lease: %w", err)
	}
	defer s.lease.Release(1)
	return fn(ctx)
}

// --- EventStore ---

func (s *Store) PutEvent(ctx context.Context, row store.EventRow) error {
	var purged int
	err := s.db.QueryRowContext(ctx, `SELECT purged FROM events WHERE event_id = ?`, row.EventID).Scan(&purged)
	if err == nil && purged == 1 {
		return store.ErrPurged
	}
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: put event: %w", err)
	}
	if row.StoredAt.IsZero() {
		row.StoredAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (event_id, event_type, event_ciphertext, event_key_id, received_at, origin_ip, origin_port, stored_at, purged, purged_at, purged_reason, ttl_expire_at, validated)
		VALUES (?,?,?,?,?,?,?,?,0,NULL,NULL,?,?)
		ON CONFLICT(event_id) DO UPDATE SET
			event_type=excluded.event_type, event_ciphertext=excluded.event_ciphertext,
			event_key_id=excluded.event_key_id, received_at=excluded.received_at,
			origin_ip=excluded.origin_ip, origin_port=excluded.origin_port,
			validated=excluded.validated`,
		row.EventID, row.EventType, row.EventCiphertext, row.EventKeyID, row.ReceivedAt,
		row.OriginIP, row.OriginPort, row.StoredAt, row.TTLExpireAt, boolToInt(row.Validated))
	if err != nil {
		return fmt.Errorf("sqlite: put event: %w", err)
	}
	logger.Debug("store: event row written",
		logger.String("event_id", row.EventID), logger.String("event_type", row.EventType))
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (store.EventRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT event_id, event_type, event_ciphertext, event_key_id, received_at, origin_ip, origin_port,
		       stored_at, purged, purged_at, purged_reason, ttl_expire_at, validated
		FROM events WHERE event_id = ?`, eventID)

	var r store.EventRow
	var purged int
	var validated int
	var purgedAt, ttlExpireAt sql.NullTime
	var purgedReason sql.NullString
	err := row.Scan(&r.EventID, &r.EventType, &r.EventCiphertext, &r.EventKeyID, &r.ReceivedAt,
		&r.OriginIP, &r.OriginPort, &r.StoredAt, &purged, &purgedAt, &purgedReason, &ttlExpireAt, &validated)
	if err == sql.ErrNoRows {
		return store.EventRow{}, store.ErrNotFound
	}
	if err != nil {
		return store.EventRow{}, fmt.Errorf("sqlite: get event: %w", err)
	}
	r.Purged = purged == 1
	r.Validated = validated == 1
	r.PurgedAt = purgedAt.Time
	r.PurgedReason = purgedReason.String
	r.TTLExpireAt = ttlExpireAt.Time
	if r.Purged {
		return r, store.ErrPurged
	}
	return r, nil
}

func (s *Store) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE event_id = ?)`, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: exists: %w", err)
	}
	return exists, nil
}

func (s *Store) Purge(ctx context.Context, eventID, reason string, ttl time.Duration) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET purged = 1, purged_at = ?, purged_reason = ?, ttl_expire_at = ?
		WHERE event_id = ?`, now, reason, now.Add(ttl), eventID)
	if err != nil {
		return fmt.Errorf("sqlite: purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: purge: %w", err)
	}
	if n == 0 {
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
	sinceReceivedAt := time.Time{}
	if sinceEventID != "" {
		row, err := s.GetEvent(ctx, sinceEventID)
		if err == nil || err == store.ErrPurged {
			sinceReceivedAt = row.ReceivedAt
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, event_type, event_ciphertext, event_key_id, received_at, origin_ip, origin_port,
		       stored_at, purged, purged_at, purged_reason, ttl_expire_at, validated
		FROM events
		WHERE purged = 0 AND validated = 1 AND received_at > ?
		ORDER BY received_at ASC, event_id ASC
		LIMIT ?`, sinceReceivedAt, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent since: %w", err)
	}
	defer rows.Close()

	var out []store.EventRow
	for rows.Next() {
		var r store.EventRow
		var purged, validated int
		var purgedAt, ttlExpireAt sql.NullTime
		var purgedReason sql.NullString
		if err := rows.Scan(&r.EventID, &r.EventType, &r.EventCiphertext, &r.EventKeyID, &r.ReceivedAt,
			&r.OriginIP, &r.OriginPort, &r.StoredAt, &purged, &purgedAt, &purgedReason, &ttlExpireAt, &validated); err != nil {
			return nil, fmt.Errorf("sqlite: recent since scan: %w", err)
		}
		r.Purged = purged == 1
		r.Validated = validated == 1
		r.PurgedAt = purgedAt.Time
		r.PurgedReason = purgedReason.String
		r.TTLExpireAt = ttlExpireAt.Time
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- ProjectedView ---
//
// The derived view is stored as one JSON blob per logical row, keyed
// by table name and row key, rather than one physical SQL table per
// projected entity: deltas name arbitrary columns that the eleven
// event-type projectors define independently, so a fixed schema would
// have to be migrated every time a projector adds a field. Query
// filters by decoding and matching in Go, mirroring the in-memory
// backend's matches() helper exactly so both backends agree on
// semantics.

func (s *Store) ApplyDeltas(ctx context.Context, deltas []store.Delta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: apply deltas: %w", err)
	}
	defer tx.Rollback()

	for _, d := range deltas {
		if err := applyDelta(ctx, tx, d); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func applyDelta(ctx context.Context, tx *sql.Tx, d store.Delta) error {
	switch d.Op {
	case "insert":
		key := rowKey(d.Data)
		blob, err := json.Marshal(d.Data)
		if err != nil {
			return fmt.Errorf("sqlite: marshal row: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO projected_rows (table_name, row_key, row_json) VALUES (?,?,?)
			ON CONFLICT(table_name, row_key) DO NOTHING`, d.Table, key, string(blob))
		if err != nil {
			return fmt.Errorf("sqlite: insert row: %w", err)
		}
	case "update":
		rows, err := queryRows(ctx, tx, d.Table, nil)
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
				return fmt.Errorf("sqlite: marshal row: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE projected_rows SET row_json = ? WHERE table_name = ? AND row_key = ?`,
				string(blob), d.Table, key); err != nil {
				return fmt.Errorf("sqlite: update row: %w", err)
			}
		}
	case "delete":
		rows, err := queryRows(ctx, tx, d.Table, nil)
		if err != nil {
			return err
		}
		for key, row := range rows {
			if !matches(row, d.Where) {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM projected_rows WHERE table_name = ? AND row_key = ?`, d.Table, key); err != nil {
				return fmt.Errorf("sqlite: delete row: %w", err)
			}
		}
	default:
		return fmt.Errorf("sqlite: unknown delta op %q", d.Op)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, table string, where map[string]any) ([]map[string]any, error) {
	rows, err := queryRowsDB(ctx, s.db, table)
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for _, row := range rows {
		if matches(row, where) {
			out = append(out, row)
		}
	}
	return out, nil
}

func queryRows(ctx context.Context, tx *sql.Tx, table string, _ map[string]any) (map[string]map[string]any, error) {
	rows, err := tx.QueryContext(ctx, `SELECT row_key, row_json FROM projected_rows WHERE table_name = ?`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query rows: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func queryRowsDB(ctx context.Context, db *sql.DB, table string) (map[string]map[string]any, error) {
	rows, err := db.QueryContext(ctx, `SELECT row_key, row_json FROM projected_rows WHERE table_name = ?`, table)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query rows: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any)
	for rows.Next() {
		var key, blob string
		if err := rows.Scan(&key, &blob); err != nil {
			return nil, fmt.Errorf("sqlite: scan row: %w", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(blob), &decoded); err != nil {
			return nil, fmt.Errorf("sqlite: decode row: %w", err)
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: save blocked: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO blocked_events (event_id, envelope_blob, created_at, retry_count)
		VALUES (?,?,?,?)
		ON CONFLICT(event_id) DO UPDATE SET envelope_blob=excluded.envelope_blob, retry_count=excluded.retry_count`,
		b.EventID, b.EnvelopeBlob, b.CreatedAt, b.RetryCount); err != nil {
		return fmt.Errorf("sqlite: save blocked: %w", err)
	}
	for _, dep := range b.MissingDeps {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO blocked_event_deps (event_id, dep_id) VALUES (?,?)
			ON CONFLICT(event_id, dep_id) DO NOTHING`, b.EventID, dep); err != nil {
			return fmt.Errorf("sqlite: save blocked dep: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) DeleteBlocked(ctx context.Context, eventID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: delete blocked: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM blocked_event_deps WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("sqlite: delete blocked deps: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM blocked_events WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("sqlite: delete blocked: %w", err)
	}
	return tx.Commit()
}

func (s *Store) Waiters(ctx context.Context, depID string) ([]store.BlockedEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT be.event_id, be.envelope_blob, be.created_at, be.retry_count
		FROM blocked_events be
		JOIN blocked_event_deps d ON d.event_id = be.event_id
		WHERE d.dep_id = ?`, depID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: waiters: %w", err)
	}
	defer rows.Close()

	var out []store.BlockedEvent
	for rows.Next() {
		var b store.BlockedEvent
		if err := rows.Scan(&b.EventID, &b.EnvelopeBlob, &b.CreatedAt, &b.RetryCount); err != nil {
			return nil, fmt.Errorf("sqlite: waiters scan: %w", err)
		}
		deps, err := s.depsFor(ctx, b.EventID)
		if err != nil {
			return nil, err
		}
		b.MissingDeps = deps
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) GetBlocked(ctx context.Context, eventID string) (store.BlockedEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT event_id, envelope_blob, created_at, retry_count FROM blocked_events WHERE event_id = ?`, eventID)
	var b store.BlockedEvent
	if err := row.Scan(&b.EventID, &b.EnvelopeBlob, &b.CreatedAt, &b.RetryCount); err != nil {
		if err == sql.ErrNoRows {
			return store.BlockedEvent{}, store.ErrNotFound
		}
		return store.BlockedEvent{}, fmt.Errorf("sqlite: get blocked: %w", err)
	}
	deps, err := s.depsFor(ctx, eventID)
	if err != nil {
		return store.BlockedEvent{}, err
	}
	b.MissingDeps = deps
	return b, nil
}

func (s *Store) depsFor(ctx context.Context, eventID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dep_id FROM blocked_event_deps WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: deps for: %w", err)
	}
	defer rows.Close()
	var deps []string
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, fmt.Errorf("sqlite: deps for scan: %w", err)
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

// --- KeyStore ---

func (s *Store) StoreSigningKey(ctx context.Context, peerID string, privateKey []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signing_keys (peer_id, private_key) VALUES (?,?)
		ON CONFLICT(peer_id) DO UPDATE SET private_key = excluded.private_key`, peerID, privateKey)
	if err != nil {
		return fmt.Errorf("sqlite: store signing key: %w", err)
	}
	return nil
}

func (s *Store) LoadSigningKey(ctx context.Context, peerID string) ([]byte, error) {
	var key []byte
	err := s.db.QueryRowContext(ctx, `SELECT private_key FROM signing_keys WHERE peer_id = ?`, peerID).Scan(&key)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load signing key: %w", err)
	}
	return key, nil
}

func (s *Store) StoreTransitKey(ctx context.Context, transitKeyID string, secret []byte, networkID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transit_keys (transit_key_id, secret, network_id) VALUES (?,?,?)
		ON CONFLICT(transit_key_id) DO UPDATE SET secret = excluded.secret, network_id = excluded.network_id`,
		transitKeyID, secret, networkID)
	if err != nil {
		return fmt.Errorf("sqlite: store transit key: %w", err)
	}
	return nil
}

func (s *Store) LoadTransitKey(ctx context.Context, transitKeyID string) ([]byte, string, error) {
	var secret []byte
	var networkID string
	err := s.db.QueryRowContext(ctx, `SELECT secret, network_id FROM transit_keys WHERE transit_key_id = ?`, transitKeyID).
		Scan(&secret, &networkID)
	if err == sql.ErrNoRows {
		return nil, "", store.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("sqlite: load transit key: %w", err)
	}
	return secret, networkID, nil
}

// --- SchedulerStore ---

func (s *Store) LoadJobState(ctx context.Context, jobName string) (store.JobState, error) {
	var state store.JobState
	state.JobName = jobName
	err := s.db.QueryRowContext(ctx, `SELECT state_json, updated_ms FROM job_states WHERE job_name = ?`, jobName).
		Scan(&state.StateJSON, &state.UpdatedMs)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return store.JobState{}, fmt.Errorf("sqlite: load job state: %w", err)
	}
	return state, nil
}

func (s *Store) SaveJobState(ctx context.Context, state store.JobState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_states (job_name, state_json, updated_ms) VALUES (?,?,?)
		ON CONFLICT(job_name) DO UPDATE SET state_json = excluded.state_json, updated_ms = excluded.updated_ms`,
		state.JobName, state.StateJSON, state.UpdatedMs)
	if err != nil {
		return fmt.Errorf("sqlite: save job state: %w", err)
	}
	return nil
}

func (s *Store) RecordJobRun(ctx context.Context, run store.JobRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_runs (job_name, last_run_ms, last_success_ms, last_failure_ms, success_count, failure_count, last_state)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(job_name) DO UPDATE SET
			last_run_ms=excluded.last_run_ms, last_success_ms=excluded.last_success_ms,
			last_failure_ms=excluded.last_failure_ms, success_count=excluded.success_count,
			failure_count=excluded.failure_count, last_state=excluded.last_state`,
		run.JobName, run.LastRunMs, run.LastSuccessMs, run.LastFailureMs, run.SuccessCount, run.FailureCount, run.LastState)
	if err != nil {
		return fmt.Errorf("sqlite: record job run: %w", err)
	}
	return nil
}

func (s *Store) LoadJobRun(ctx context.Context, jobName string) (store.JobRun, error) {
	var run store.JobRun
	run.JobName = jobName
	err := s.db.QueryRowContext(ctx, `
		SELECT last_run_ms, last_success_ms, last_failure_ms, success_count, failure_count, last_state
		FROM job_runs WHERE job_name = ?`, jobName).
		Scan(&run.LastRunMs, &run.LastSuccessMs, &run.LastFailureMs, &run.SuccessCount, &run.FailureCount, &run.LastState)
	if err == sql.ErrNoRows {
		return run, nil
	}
	if err != nil {
		return store.JobRun{}, fmt.Errorf("sqlite: load job run: %w", err)
	}
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
