/*
Package generic provides the core data model of the worked-time engine.

PURPOSE:
  This package contains the types every other package speaks: punches,
  work sessions, daily aggregates and the storage contracts that persist
  them. It holds no labor rules. The rule table and the classification
  algorithms live in package legal; the state machine and the aggregation
  live in package worktime.

KEY CONCEPTS IN THIS FILE (types.go):
  - AttendanceEvent: An immutable punch (entry or exit)
  - WorkSession: One continuous work period, classified on completion
  - DailyAggregate: Per-user-per-day rollup, always recomputed from sessions
  - BackfillRun: Record of a historical replay over stored punches

DESIGN PRINCIPLES:
  1. Immutability: Punches are never modified, sessions are superseded
  2. Fixed shape: Classified time is a tagged record of six named buckets
  3. Type Safety: Distinct ID types prevent mixing users, sessions, events
  4. Recompute, don't patch: Aggregates are derived, never incremented

USAGE:
  ev := generic.AttendanceEvent{
      UserID: "emp-123",
      Kind:   generic.EventEntry,
      At:     time.Now(),
  }

SEE ALSO:
  - buckets.go: Distribution and Surcharge records
  - store.go: Persistence interfaces
  - ledger.go: Append-only punch log
*/
package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type SessionID string
type EventID string
type RunID string

// =============================================================================
// ATTENDANCE EVENT - Immutable punch
// =============================================================================

type EventKind string

const (
	EventEntry EventKind = "entry"
	EventExit  EventKind = "exit"
)

// Valid reports whether k is one of the two punch kinds.
func (k EventKind) Valid() bool { return k == EventEntry || k == EventExit }

// AttendanceEvent is created once per punch and never mutated.
type AttendanceEvent struct {
	ID             EventID
	UserID         UserID
	Kind           EventKind
	At             time.Time
	Location       string
	IdempotencyKey string // retried punches carry the same key
	RecordedAt     time.Time
}

// =============================================================================
// WORK SESSION - One continuous work period
// =============================================================================

type SessionStatus string

const (
	StatusActive     SessionStatus = "active"
	StatusCompleted  SessionStatus = "completed"
	StatusIncomplete SessionStatus = "incomplete"
)

type SessionSource string

const (
	SourceLive      SessionSource = "live"
	SourceMigrated  SessionSource = "migrated"
	SourceCorrected SessionSource = "corrected"
)

type SessionFlags struct {
	WeekendOrHoliday bool
	EntryEstimated   bool
	ExitEstimated    bool
	Anomaly          bool // closed automatically, not confirmed by the worker
}

// WorkSession is a single entry/exit pair for one user.
//
// INVARIANTS:
//   - At most one session per user has Status == StatusActive.
//   - When completed, Distribution.Total() == TotalMinutes == floor(Exit-Entry).
type WorkSession struct {
	ID     SessionID
	UserID UserID

	// Day is the calendar date of Entry in the rule table's time zone.
	// The session contributes to that day's aggregate, even when it
	// crosses midnight.
	Day   TimePoint
	Entry time.Time
	Exit  *time.Time

	Status       SessionStatus
	TotalMinutes int
	Distribution Distribution
	Surcharge    Surcharge
	Flags        SessionFlags
	Source       SessionSource

	EntryLocation string
	ExitLocation  string
	Notes         string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s WorkSession) IsActive() bool    { return s.Status == StatusActive }
func (s WorkSession) IsCompleted() bool { return s.Status == StatusCompleted }

// ElapsedMinutes returns the live duration of an active session, or the
// stored duration of a closed one.
func (s WorkSession) ElapsedMinutes(now time.Time) int {
	if s.Exit != nil {
		return MinutesBetween(s.Entry, *s.Exit)
	}
	if now.Before(s.Entry) {
		return 0
	}
	return MinutesBetween(s.Entry, now)
}

// =============================================================================
// DAILY AGGREGATE - Per-user-per-day rollup
// =============================================================================

type ComplianceFlags struct {
	MetEightHours     bool            // total >= daily ordinary cap
	ExceededOrdinary  bool            // total > daily ordinary cap
	PercentCompliance decimal.Decimal // total / cap * 100
}

// DailyAggregate is keyed by (UserID, Day).
//
// INVARIANT: TotalMinutes == sum of TotalMinutes of every session whose Day
// equals this Day. Enforced by recomputing on every upsert.
type DailyAggregate struct {
	UserID UserID
	Day    TimePoint

	TotalMinutes    int
	OrdinaryMinutes int
	OvertimeMinutes int
	NightMinutes    int
	Distribution    Distribution
	Surcharge       Surcharge

	FirstEntry   *time.Time
	LastExit     *time.Time
	SessionCount int

	SundayOrHoliday bool
	Compliance      ComplianceFlags

	Revision  int
	UpdatedAt time.Time
}

// =============================================================================
// BACKFILL RUN - Historical replay record
// =============================================================================

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial" // some days failed
	RunFailed    RunStatus = "failed"
)

// DayError records a single day that could not be replayed.
type DayError struct {
	Day     TimePoint
	Message string
}

type BackfillRun struct {
	ID                RunID
	UserID            UserID
	Period            Period
	Status            RunStatus
	EventsRead        int
	SessionsCreated   int
	AggregatesUpdated int
	Errors            []DayError
	StartedAt         time.Time
	CompletedAt       *time.Time
}

// =============================================================================
// TIME ARITHMETIC
// =============================================================================

// MinutesBetween returns whole minutes from -> to, truncated.
func MinutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}

var sixty = decimal.NewFromInt(60)

// Hours converts minutes to exact decimal hours.
func Hours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(sixty)
}

// FormatMinutes renders minutes as HH:MM. Negative input renders as 00:00.
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
