/*
store.go - Persistence interface for punches, sessions and aggregates

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  EventStore:     Append-only punch log (append, load, exists)
  SessionStore:   Work sessions (save by ID, active lookup, day/range queries)
  AggregateStore: Daily aggregates (get, overwrite, range)
  TxStore:        Transactional operations (atomic multi-table writes)
  RunStore:       Backfill run records

APPEND-ONLY CONTRACT:
  Punches are append-only. There is no Update or Delete for events.
  Sessions are saved by ID: a recomputation overwrites the same row, which
  is how a corrected or re-migrated session supersedes the old numbers.
  Aggregates are always overwritten whole, never patched.

ONE ACTIVE SESSION:
  SaveSession MUST reject a second active session for the same user with
  ErrStateConflict. Implementations enforce it at the storage layer
  (a partial unique index in SQLite, a scan in memory) so the invariant
  holds even if a caller forgets the per-user lock.

ATOMIC UNITS:
  A punch (event + closed session + aggregate + new session) is one
  WithTx call. A backfill commits each day in its own WithTx call, so a
  failure on one day leaves every other day intact.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Punch log on top of EventStore
  - store/sqlite/sqlite.go: Concrete implementation
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// EVENT STORE - Append-only punches
// =============================================================================

type EventStore interface {
	// AppendEvent persists a punch. Returns ErrDuplicatePunch if the
	// idempotency key exists. This is the ONLY write operation on events.
	AppendEvent(ctx context.Context, ev AttendanceEvent) error

	// EventExists checks if an idempotency key was already recorded.
	EventExists(ctx context.Context, idempotencyKey string) (bool, error)

	// LoadEvents returns punches with At in [from, to], ordered by At.
	LoadEvents(ctx context.Context, userID UserID, from, to time.Time) ([]AttendanceEvent, error)

	// Users returns every user that has at least one punch or session.
	Users(ctx context.Context) ([]UserID, error)
}

// =============================================================================
// SESSION STORE
// =============================================================================

type SessionStore interface {
	// SaveSession inserts or replaces a session by ID.
	// Returns ErrStateConflict if it would leave two active sessions for the user.
	SaveSession(ctx context.Context, s WorkSession) error

	// GetSession returns ErrSessionNotFound if the ID is unknown.
	GetSession(ctx context.Context, id SessionID) (WorkSession, error)

	// ActiveSession returns the user's active session, or nil.
	ActiveSession(ctx context.Context, userID UserID) (*WorkSession, error)

	// SessionsForDay returns every session whose Day equals day, ordered by Entry.
	SessionsForDay(ctx context.Context, userID UserID, day TimePoint) ([]WorkSession, error)

	// SessionsInRange returns sessions whose Day is in [from, to], ordered by Entry.
	SessionsInRange(ctx context.Context, userID UserID, from, to TimePoint) ([]WorkSession, error)

	// ActiveSessionsBefore returns active sessions that started before the cutoff.
	ActiveSessionsBefore(ctx context.Context, userID UserID, cutoff time.Time) ([]WorkSession, error)

	// CompletedSessions returns completed sessions, most recent first.
	// limit <= 0 returns all of them.
	CompletedSessions(ctx context.Context, userID UserID, limit int) ([]WorkSession, error)
}

// =============================================================================
// AGGREGATE STORE
// =============================================================================

type AggregateStore interface {
	// GetAggregate returns nil (and no error) when the day has no aggregate.
	GetAggregate(ctx context.Context, userID UserID, day TimePoint) (*DailyAggregate, error)

	// SaveAggregate overwrites the aggregate for (UserID, Day).
	SaveAggregate(ctx context.Context, a DailyAggregate) error

	// AggregatesInRange returns aggregates with Day in [from, to], ordered by Day.
	AggregatesInRange(ctx context.Context, userID UserID, from, to TimePoint) ([]DailyAggregate, error)
}

// Store is everything the calculation pipeline reads and writes.
type Store interface {
	EventStore
	SessionStore
	AggregateStore
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// RUN STORE - Backfill bookkeeping
// =============================================================================

type RunStore interface {
	SaveRun(ctx context.Context, run BackfillRun) error

	// ListRuns returns runs newest first. An empty userID lists every user.
	ListRuns(ctx context.Context, userID UserID, limit int) ([]BackfillRun, error)
}
