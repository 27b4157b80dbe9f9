/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface (EventStore, SessionStore,
  AggregateStore, TxStore, RunStore) using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.TxStore:  Punches, sessions, aggregates, atomic WithTx
  generic.RunStore: Backfill run records

APPEND-ONLY ENFORCEMENT:
  The store enforces append-only semantics for punches:
  - No UPDATE statements on attendance_events
  - No DELETE statements on attendance_events (except Reset for demos)
  - Corrections are recorded on the derived session, never on the punch

KEY TABLES:
  attendance_events: Immutable punch log
  work_sessions:     One row per session, upserted by ID
  daily_aggregates:  One row per (user_id, day), overwritten on recompute
  backfill_runs:     Backfill bookkeeping

INDEXES:
  - idx_events_user_at: Backfill range scans (hot path)
  - idx_events_idempotency: Retried punches
  - idx_one_active_session: At most one active session per user. A second
    active row fails with a UNIQUE violation, surfaced as
    generic.ErrStateConflict.
  - idx_sessions_user_day: Aggregation and dashboards

TIMESTAMPS:
  Instants are stored as UTC text with millisecond precision
  (2006-01-02T15:04:05.000Z) so lexical order is chronological order.
  Calendar days are stored as 2006-01-02.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection: SQLite has
  one writer anyway, and ":memory:" databases are per connection. Every
  query helper takes a querier so WithTx can run them on the *sql.Tx
  without re-entering the mutex. In production with PostgreSQL,
  database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/worktime.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/worktime-engine/generic"
)

const (
	instantLayout = "2006-01-02T15:04:05.000Z"
	dayLayout     = "2006-01-02"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ generic.TxStore  = (*Store)(nil)
	_ generic.RunStore = (*Store)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Punches (append-only)
	CREATE TABLE IF NOT EXISTS attendance_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('entry', 'exit')),
		at TEXT NOT NULL,
		location TEXT,
		idempotency_key TEXT UNIQUE,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_user_at
		ON attendance_events(user_id, at);
	CREATE INDEX IF NOT EXISTS idx_events_idempotency
		ON attendance_events(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- Work sessions
	CREATE TABLE IF NOT EXISTS work_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		day TEXT NOT NULL,
		entry_at TEXT NOT NULL,
		exit_at TEXT,
		status TEXT NOT NULL,
		total_minutes INTEGER NOT NULL DEFAULT 0,
		distribution_json TEXT NOT NULL,
		surcharge_json TEXT NOT NULL,
		weekend_or_holiday BOOLEAN NOT NULL DEFAULT FALSE,
		entry_estimated BOOLEAN NOT NULL DEFAULT FALSE,
		exit_estimated BOOLEAN NOT NULL DEFAULT FALSE,
		anomaly BOOLEAN NOT NULL DEFAULT FALSE,
		source TEXT NOT NULL,
		entry_location TEXT,
		exit_location TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one active session per user
	CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_session
		ON work_sessions(user_id) WHERE status = 'active';

	CREATE INDEX IF NOT EXISTS idx_sessions_user_day
		ON work_sessions(user_id, day, entry_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_status
		ON work_sessions(status);

	-- Daily aggregates (recomputed, never patched)
	CREATE TABLE IF NOT EXISTS daily_aggregates (
		user_id TEXT NOT NULL,
		day TEXT NOT NULL,
		total_minutes INTEGER NOT NULL,
		ordinary_minutes INTEGER NOT NULL,
		overtime_minutes INTEGER NOT NULL,
		night_minutes INTEGER NOT NULL,
		distribution_json TEXT NOT NULL,
		surcharge_json TEXT NOT NULL,
		first_entry TEXT,
		last_exit TEXT,
		session_count INTEGER NOT NULL,
		sunday_or_holiday BOOLEAN NOT NULL DEFAULT FALSE,
		met_eight_hours BOOLEAN NOT NULL DEFAULT FALSE,
		exceeded_ordinary BOOLEAN NOT NULL DEFAULT FALSE,
		percent_compliance TEXT NOT NULL DEFAULT '0',
		revision INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, day)
	);

	-- Backfill runs
	CREATE TABLE IF NOT EXISTS backfill_runs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		events_read INTEGER NOT NULL DEFAULT 0,
		sessions_created INTEGER NOT NULL DEFAULT 0,
		aggregates_updated INTEGER NOT NULL DEFAULT 0,
		errors_json TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_backfill_runs_user
		ON backfill_runs(user_id, started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT STORE (generic.EventStore interface)
// =============================================================================

// AppendEvent adds a punch to the log.
func (s *Store) AppendEvent(ctx context.Context, ev generic.AttendanceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendEvent(ctx, s.db, ev)
}

func appendEvent(ctx context.Context, db querier, ev generic.AttendanceEvent) error {
	query := `
		INSERT INTO attendance_events
		(id, user_id, kind, at, location, idempotency_key, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	recordedAt := ev.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	_, err := db.ExecContext(ctx, query,
		ev.ID,
		ev.UserID,
		ev.Kind,
		formatInstant(ev.At),
		nullString(ev.Location),
		nullString(ev.IdempotencyKey),
		formatInstant(recordedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicatePunch
		}
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// EventExists checks if an idempotency key exists.
func (s *Store) EventExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return eventExists(ctx, s.db, idempotencyKey)
}

func eventExists(ctx context.Context, db querier, idempotencyKey string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance_events WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// LoadEvents returns punches in [from, to], ordered by timestamp.
func (s *Store) LoadEvents(ctx context.Context, userID generic.UserID, from, to time.Time) ([]generic.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadEvents(ctx, s.db, userID, from, to)
}

func loadEvents(ctx context.Context, db querier, userID generic.UserID, from, to time.Time) ([]generic.AttendanceEvent, error) {
	query := `
		SELECT id, user_id, kind, at, location, idempotency_key, recorded_at
		FROM attendance_events
		WHERE user_id = ? AND at >= ? AND at <= ?
		ORDER BY at ASC, recorded_at ASC
	`

	rows, err := db.QueryContext(ctx, query, userID, formatInstant(from), formatInstant(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []generic.AttendanceEvent
	for rows.Next() {
		var (
			ev                   generic.AttendanceEvent
			at, recordedAt       string
			location, idempotent sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.Kind, &at, &location, &idempotent, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.At = parseInstant(at)
		ev.RecordedAt = parseInstant(recordedAt)
		ev.Location = location.String
		ev.IdempotencyKey = idempotent.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Users returns every user with a punch or a session.
func (s *Store) Users(ctx context.Context) ([]generic.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return users(ctx, s.db)
}

func users(ctx context.Context, db querier) ([]generic.UserID, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id FROM attendance_events
		UNION
		SELECT user_id FROM work_sessions
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var result []generic.UserID
	for rows.Next() {
		var id generic.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

// =============================================================================
// SESSION STORE (generic.SessionStore interface)
// =============================================================================

const sessionColumns = `
	id, user_id, day, entry_at, exit_at, status, total_minutes,
	distribution_json, surcharge_json,
	weekend_or_holiday, entry_estimated, exit_estimated, anomaly,
	source, entry_location, exit_location, notes, created_at, updated_at`

// SaveSession inserts or replaces a session by ID.
func (s *Store) SaveSession(ctx context.Context, ws generic.WorkSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveSession(ctx, s.db, ws)
}

func saveSession(ctx context.Context, db querier, ws generic.WorkSession) error {
	distJSON, err := json.Marshal(ws.Distribution)
	if err != nil {
		return err
	}
	surJSON, err := json.Marshal(ws.Surcharge)
	if err != nil {
		return err
	}

	// ON CONFLICT(id) only: a second active row for the user must fail on
	// idx_one_active_session instead of replacing the first one.
	query := `
		INSERT INTO work_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			day = excluded.day,
			entry_at = excluded.entry_at,
			exit_at = excluded.exit_at,
			status = excluded.status,
			total_minutes = excluded.total_minutes,
			distribution_json = excluded.distribution_json,
			surcharge_json = excluded.surcharge_json,
			weekend_or_holiday = excluded.weekend_or_holiday,
			entry_estimated = excluded.entry_estimated,
			exit_estimated = excluded.exit_estimated,
			anomaly = excluded.anomaly,
			source = excluded.source,
			entry_location = excluded.entry_location,
			exit_location = excluded.exit_location,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`

	createdAt := ws.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := ws.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = db.ExecContext(ctx, query,
		ws.ID,
		ws.UserID,
		ws.Day.String(),
		formatInstant(ws.Entry),
		nullInstant(ws.Exit),
		ws.Status,
		ws.TotalMinutes,
		string(distJSON),
		string(surJSON),
		ws.Flags.WeekendOrHoliday,
		ws.Flags.EntryEstimated,
		ws.Flags.ExitEstimated,
		ws.Flags.Anomaly,
		ws.Source,
		nullString(ws.EntryLocation),
		nullString(ws.ExitLocation),
		nullString(ws.Notes),
		formatInstant(createdAt),
		formatInstant(updatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.StateConflictError{UserID: ws.UserID}
		}
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession returns a session by ID.
func (s *Store) GetSession(ctx context.Context, id generic.SessionID) (generic.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getSession(ctx, s.db, id)
}

func getSession(ctx context.Context, db querier, id generic.SessionID) (generic.WorkSession, error) {
	sessions, err := querySessions(ctx, db, "SELECT "+sessionColumns+" FROM work_sessions WHERE id = ?", id)
	if err != nil {
		return generic.WorkSession{}, err
	}
	if len(sessions) == 0 {
		return generic.WorkSession{}, generic.ErrSessionNotFound
	}
	return sessions[0], nil
}

// ActiveSession returns the user's active session, or nil.
func (s *Store) ActiveSession(ctx context.Context, userID generic.UserID) (*generic.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return activeSession(ctx, s.db, userID)
}

func activeSession(ctx context.Context, db querier, userID generic.UserID) (*generic.WorkSession, error) {
	sessions, err := querySessions(ctx, db,
		"SELECT "+sessionColumns+" FROM work_sessions WHERE user_id = ? AND status = 'active'", userID)
	if err != nil || len(sessions) == 0 {
		return nil, err
	}
	return &sessions[0], nil
}

// SessionsForDay returns the sessions whose day equals day.
func (s *Store) SessionsForDay(ctx context.Context, userID generic.UserID, day generic.TimePoint) ([]generic.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sessionsInRange(ctx, s.db, userID, day, day)
}

// SessionsInRange returns sessions with day in [from, to].
func (s *Store) SessionsInRange(ctx context.Context, userID generic.UserID, from, to generic.TimePoint) ([]generic.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sessionsInRange(ctx, s.db, userID, from, to)
}

func sessionsInRange(ctx context.Context, db querier, userID generic.UserID, from, to generic.TimePoint) ([]generic.WorkSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM work_sessions
		WHERE user_id = ? AND day >= ? AND day <= ?
		ORDER BY entry_at ASC, id ASC
	`
	return querySessions(ctx, db, query, userID, from.String(), to.String())
}

// ActiveSessionsBefore returns active sessions that started before cutoff.
func (s *Store) ActiveSessionsBefore(ctx context.Context, userID generic.UserID, cutoff time.Time) ([]generic.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return activeSessionsBefore(ctx, s.db, userID, cutoff)
}

func activeSessionsBefore(ctx context.Context, db querier, userID generic.UserID, cutoff time.Time) ([]generic.WorkSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM work_sessions
		WHERE user_id = ? AND status = 'active' AND entry_at < ?
		ORDER BY entry_at ASC
	`
	return querySessions(ctx, db, query, userID, formatInstant(cutoff))
}

// CompletedSessions returns completed sessions, most recent first.
func (s *Store) CompletedSessions(ctx context.Context, userID generic.UserID, limit int) ([]generic.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return completedSessions(ctx, s.db, userID, limit)
}

func completedSessions(ctx context.Context, db querier, userID generic.UserID, limit int) ([]generic.WorkSession, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	query := `SELECT ` + sessionColumns + `
		FROM work_sessions
		WHERE user_id = ? AND status = 'completed'
		ORDER BY entry_at DESC
		LIMIT ?
	`
	return querySessions(ctx, db, query, userID, limit)
}

func querySessions(ctx context.Context, db querier, query string, args ...any) ([]generic.WorkSession, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []generic.WorkSession
	for rows.Next() {
		ws, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, ws)
	}
	return sessions, rows.Err()
}

func scanSession(rows *sql.Rows) (generic.WorkSession, error) {
	var (
		ws                  generic.WorkSession
		day, entryAt        string
		exitAt              sql.NullString
		distJSON, surJSON   string
		entryLoc, exitLoc   sql.NullString
		notes               sql.NullString
		createdAt, updateAt string
	)

	err := rows.Scan(
		&ws.ID, &ws.UserID, &day, &entryAt, &exitAt, &ws.Status, &ws.TotalMinutes,
		&distJSON, &surJSON,
		&ws.Flags.WeekendOrHoliday, &ws.Flags.EntryEstimated, &ws.Flags.ExitEstimated, &ws.Flags.Anomaly,
		&ws.Source, &entryLoc, &exitLoc, &notes, &createdAt, &updateAt,
	)
	if err != nil {
		return ws, fmt.Errorf("failed to scan session: %w", err)
	}

	ws.Day = parseDay(day)
	ws.Entry = parseInstant(entryAt)
	ws.Exit = parseNullInstant(exitAt)
	if err := json.Unmarshal([]byte(distJSON), &ws.Distribution); err != nil {
		return ws, fmt.Errorf("session %s: bad distribution: %w", ws.ID, err)
	}
	if err := json.Unmarshal([]byte(surJSON), &ws.Surcharge); err != nil {
		return ws, fmt.Errorf("session %s: bad surcharge: %w", ws.ID, err)
	}
	ws.EntryLocation = entryLoc.String
	ws.ExitLocation = exitLoc.String
	ws.Notes = notes.String
	ws.CreatedAt = parseInstant(createdAt)
	ws.UpdatedAt = parseInstant(updateAt)
	return ws, nil
}

// =============================================================================
// AGGREGATE STORE (generic.AggregateStore interface)
// =============================================================================

const aggregateColumns = `
	user_id, day, total_minutes, ordinary_minutes, overtime_minutes, night_minutes,
	distribution_json, surcharge_json, first_entry, last_exit, session_count,
	sunday_or_holiday, met_eight_hours, exceeded_ordinary, percent_compliance,
	revision, updated_at`

// GetAggregate returns nil when the day has no aggregate.
func (s *Store) GetAggregate(ctx context.Context, userID generic.UserID, day generic.TimePoint) (*generic.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getAggregate(ctx, s.db, userID, day)
}

func getAggregate(ctx context.Context, db querier, userID generic.UserID, day generic.TimePoint) (*generic.DailyAggregate, error) {
	aggs, err := queryAggregates(ctx, db,
		"SELECT "+aggregateColumns+" FROM daily_aggregates WHERE user_id = ? AND day = ?",
		userID, day.String())
	if err != nil || len(aggs) == 0 {
		return nil, err
	}
	return &aggs[0], nil
}

// SaveAggregate overwrites the aggregate of (user, day).
func (s *Store) SaveAggregate(ctx context.Context, a generic.DailyAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveAggregate(ctx, s.db, a)
}

func saveAggregate(ctx context.Context, db querier, a generic.DailyAggregate) error {
	distJSON, err := json.Marshal(a.Distribution)
	if err != nil {
		return err
	}
	surJSON, err := json.Marshal(a.Surcharge)
	if err != nil {
		return err
	}
	updatedAt := a.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		INSERT OR REPLACE INTO daily_aggregates (` + aggregateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.ExecContext(ctx, query,
		a.UserID,
		a.Day.String(),
		a.TotalMinutes,
		a.OrdinaryMinutes,
		a.OvertimeMinutes,
		a.NightMinutes,
		string(distJSON),
		string(surJSON),
		nullInstant(a.FirstEntry),
		nullInstant(a.LastExit),
		a.SessionCount,
		a.SundayOrHoliday,
		a.Compliance.MetEightHours,
		a.Compliance.ExceededOrdinary,
		a.Compliance.PercentCompliance.String(),
		a.Revision,
		formatInstant(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save aggregate: %w", err)
	}
	return nil
}

// AggregatesInRange returns aggregates with day in [from, to], ordered by day.
func (s *Store) AggregatesInRange(ctx context.Context, userID generic.UserID, from, to generic.TimePoint) ([]generic.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return aggregatesInRange(ctx, s.db, userID, from, to)
}

func aggregatesInRange(ctx context.Context, db querier, userID generic.UserID, from, to generic.TimePoint) ([]generic.DailyAggregate, error) {
	query := `SELECT ` + aggregateColumns + `
		FROM daily_aggregates
		WHERE user_id = ? AND day >= ? AND day <= ?
		ORDER BY day ASC
	`
	return queryAggregates(ctx, db, query, userID, from.String(), to.String())
}

func queryAggregates(ctx context.Context, db querier, query string, args ...any) ([]generic.DailyAggregate, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []generic.DailyAggregate
	for rows.Next() {
		var (
			a                   generic.DailyAggregate
			day, updatedAt      string
			distJSON, surJSON   string
			firstEntry, lastExt sql.NullString
			percent             string
		)
		err := rows.Scan(
			&a.UserID, &day, &a.TotalMinutes, &a.OrdinaryMinutes, &a.OvertimeMinutes, &a.NightMinutes,
			&distJSON, &surJSON, &firstEntry, &lastExt, &a.SessionCount,
			&a.SundayOrHoliday, &a.Compliance.MetEightHours, &a.Compliance.ExceededOrdinary, &percent,
			&a.Revision, &updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		a.Day = parseDay(day)
		if err := json.Unmarshal([]byte(distJSON), &a.Distribution); err != nil {
			return nil, fmt.Errorf("aggregate %s: bad distribution: %w", day, err)
		}
		if err := json.Unmarshal([]byte(surJSON), &a.Surcharge); err != nil {
			return nil, fmt.Errorf("aggregate %s: bad surcharge: %w", day, err)
		}
		a.FirstEntry = parseNullInstant(firstEntry)
		a.LastExit = parseNullInstant(lastExt)
		a.Compliance.PercentCompliance, _ = decimal.NewFromString(percent)
		a.UpdatedAt = parseInstant(updatedAt)
		aggs = append(aggs, a)
	}
	return aggs, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every query on the open transaction. It never touches the
// parent's mutex, which WithTx already holds.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) AppendEvent(ctx context.Context, ev generic.AttendanceEvent) error {
	return appendEvent(ctx, ts.tx, ev)
}

func (ts *txStore) EventExists(ctx context.Context, idempotencyKey string) (bool, error) {
	return eventExists(ctx, ts.tx, idempotencyKey)
}

func (ts *txStore) LoadEvents(ctx context.Context, userID generic.UserID, from, to time.Time) ([]generic.AttendanceEvent, error) {
	return loadEvents(ctx, ts.tx, userID, from, to)
}

func (ts *txStore) Users(ctx context.Context) ([]generic.UserID, error) {
	return users(ctx, ts.tx)
}

func (ts *txStore) SaveSession(ctx context.Context, ws generic.WorkSession) error {
	return saveSession(ctx, ts.tx, ws)
}

func (ts *txStore) GetSession(ctx context.Context, id generic.SessionID) (generic.WorkSession, error) {
	return getSession(ctx, ts.tx, id)
}

func (ts *txStore) ActiveSession(ctx context.Context, userID generic.UserID) (*generic.WorkSession, error) {
	return activeSession(ctx, ts.tx, userID)
}

func (ts *txStore) SessionsForDay(ctx context.Context, userID generic.UserID, day generic.TimePoint) ([]generic.WorkSession, error) {
	return sessionsInRange(ctx, ts.tx, userID, day, day)
}

func (ts *txStore) SessionsInRange(ctx context.Context, userID generic.UserID, from, to generic.TimePoint) ([]generic.WorkSession, error) {
	return sessionsInRange(ctx, ts.tx, userID, from, to)
}

func (ts *txStore) ActiveSessionsBefore(ctx context.Context, userID generic.UserID, cutoff time.Time) ([]generic.WorkSession, error) {
	return activeSessionsBefore(ctx, ts.tx, userID, cutoff)
}

func (ts *txStore) CompletedSessions(ctx context.Context, userID generic.UserID, limit int) ([]generic.WorkSession, error) {
	return completedSessions(ctx, ts.tx, userID, limit)
}

func (ts *txStore) GetAggregate(ctx context.Context, userID generic.UserID, day generic.TimePoint) (*generic.DailyAggregate, error) {
	return getAggregate(ctx, ts.tx, userID, day)
}

func (ts *txStore) SaveAggregate(ctx context.Context, a generic.DailyAggregate) error {
	return saveAggregate(ctx, ts.tx, a)
}

func (ts *txStore) AggregatesInRange(ctx context.Context, userID generic.UserID, from, to generic.TimePoint) ([]generic.DailyAggregate, error) {
	return aggregatesInRange(ctx, ts.tx, userID, from, to)
}

// =============================================================================
// BACKFILL RUNS (generic.RunStore interface)
// =============================================================================

type dayErrorRecord struct {
	Day     string `json:"day"`
	Message string `json:"message"`
}

// SaveRun inserts or replaces a run by ID.
func (s *Store) SaveRun(ctx context.Context, run generic.BackfillRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]dayErrorRecord, 0, len(run.Errors))
	for _, e := range run.Errors {
		records = append(records, dayErrorRecord{Day: e.Day.String(), Message: e.Message})
	}
	errorsJSON, err := json.Marshal(records)
	if err != nil {
		return err
	}

	query := `
		INSERT OR REPLACE INTO backfill_runs
		(id, user_id, period_start, period_end, status, events_read, sessions_created,
		 aggregates_updated, errors_json, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		run.ID,
		run.UserID,
		run.Period.Start.String(),
		run.Period.End.String(),
		run.Status,
		run.EventsRead,
		run.SessionsCreated,
		run.AggregatesUpdated,
		string(errorsJSON),
		formatInstant(run.StartedAt),
		nullInstant(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save backfill run: %w", err)
	}
	return nil
}

// ListRuns returns runs newest first. An empty userID lists every user.
func (s *Store) ListRuns(ctx context.Context, userID generic.UserID, limit int) ([]generic.BackfillRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT id, user_id, period_start, period_end, status, events_read, sessions_created,
		       aggregates_updated, errors_json, started_at, completed_at
		FROM backfill_runs
		WHERE (? = '' OR user_id = ?)
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backfill runs: %w", err)
	}
	defer rows.Close()

	var runs []generic.BackfillRun
	for rows.Next() {
		var (
			run                  generic.BackfillRun
			periodStart, periodE string
			errorsJSON           sql.NullString
			startedAt            string
			completedAt          sql.NullString
		)
		err := rows.Scan(&run.ID, &run.UserID, &periodStart, &periodE, &run.Status,
			&run.EventsRead, &run.SessionsCreated, &run.AggregatesUpdated,
			&errorsJSON, &startedAt, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backfill run: %w", err)
		}
		run.Period = generic.Period{Start: parseDay(periodStart), End: parseDay(periodE)}
		run.StartedAt = parseInstant(startedAt)
		run.CompletedAt = parseNullInstant(completedAt)

		if errorsJSON.Valid && errorsJSON.String != "" {
			var records []dayErrorRecord
			if err := json.Unmarshal([]byte(errorsJSON.String), &records); err == nil {
				for _, r := range records {
					run.Errors = append(run.Errors, generic.DayError{Day: parseDay(r.Day), Message: r.Message})
				}
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"attendance_events", "work_sessions", "daily_aggregates", "backfill_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

func nullInstant(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatInstant(*t), Valid: true}
}

func parseInstant(s string) time.Time {
	t, _ := time.Parse(instantLayout, s)
	return t
}

func parseNullInstant(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseInstant(s.String)
	return &t
}

func parseDay(s string) generic.TimePoint {
	t, _ := time.Parse(dayLayout, s)
	return generic.NewTimePoint(t.Year(), t.Month(), t.Day())
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
