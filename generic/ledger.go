/*
ledger.go - Append-only punch log

PURPOSE:
  The punch log is the immutable source of truth for what the worker
  actually did. Sessions and aggregates are derived from it, and the
  backfill engine can always rebuild them by replaying it.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, punches cannot be modified
  3. IDEMPOTENT: Same idempotency key = same punch (no duplicates)

CORRECTIONS:
  A wrong punch is never edited. The session derived from it is corrected
  instead (source = corrected) and the punch stays as recorded.

SEE ALSO:
  - store.go: Low-level persistence interface
  - worktime/lifecycle.go: Records a punch before acting on it
*/
package generic

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// PUNCH LOG
// =============================================================================

// PunchLog validates and records punches on an EventStore.
type PunchLog struct {
	Store EventStore
}

func NewPunchLog(store EventStore) *PunchLog {
	return &PunchLog{Store: store}
}

// Record validates ev, assigns an ID when missing and appends it.
// Returns ErrDuplicatePunch if the idempotency key was already used.
func (l *PunchLog) Record(ctx context.Context, ev AttendanceEvent) (AttendanceEvent, error) {
	if ev.UserID == "" {
		return ev, &ValidationError{Field: "user_id", Reason: "required"}
	}
	if !ev.Kind.Valid() {
		return ev, &ValidationError{Field: "type", Reason: "must be entry or exit, got " + string(ev.Kind)}
	}
	if ev.At.IsZero() {
		return ev, &ValidationError{Field: "timestamp", Reason: "required"}
	}

	// stores keep millisecond precision
	ev.At = ev.At.Truncate(time.Millisecond)

	if ev.IdempotencyKey != "" {
		exists, err := l.Store.EventExists(ctx, ev.IdempotencyKey)
		if err != nil {
			return ev, err
		}
		if exists {
			return ev, ErrDuplicatePunch
		}
	}

	if ev.ID == "" {
		ev.ID = EventID(uuid.NewString())
	}
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now().UTC()
	}
	if err := l.Store.AppendEvent(ctx, ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// EventsInPeriod returns the user's punches for every day of p, on loc's
// wall clock, ordered by timestamp.
func (l *PunchLog) EventsInPeriod(ctx context.Context, userID UserID, p Period, loc *time.Location) ([]AttendanceEvent, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	from, to := p.Bounds(loc)
	return l.Store.LoadEvents(ctx, userID, from, to)
}
