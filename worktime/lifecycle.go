package worktime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
)

// =============================================================================
// SESSION LIFECYCLE MANAGER
// =============================================================================

// Punch is one clock-in or clock-out as received from the outside.
type Punch struct {
	UserID         generic.UserID
	Kind           generic.EventKind
	At             time.Time
	Location       string
	IdempotencyKey string
}

// Action names what a punch did.
type Action string

const (
	ActionEntry           Action = "entry_recorded"
	ActionEntryAutoClosed Action = "entry_recorded_previous_closed"
	ActionExit            Action = "exit_recorded"
	ActionExitEstimated   Action = "exit_recorded_entry_estimated"
)

// PunchResult is everything a punch changed. Compliance is evaluated for
// the day of the session that was closed, if any.
type PunchResult struct {
	Action     Action
	Event      generic.AttendanceEvent
	Opened     *generic.WorkSession
	Closed     *generic.WorkSession
	Aggregate  *generic.DailyAggregate
	Compliance *legal.Compliance
}

// Manager owns the per-user state machine. All writes for one punch happen
// in a single store transaction under the user's lock.
type Manager struct {
	store      generic.TxStore
	legal      *legal.Config
	pipeline   *Pipeline
	aggregator *Aggregator
	locks      *UserLocks
	logger     *zap.Logger
	now        func() time.Time
}

type ManagerOption func(*Manager)

// WithClock replaces time.Now, for tests and scenario replays.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
		m.aggregator.Now = now
	}
}

// WithLocks shares a lock table with a Backfiller.
func WithLocks(locks *UserLocks) ManagerOption {
	return func(m *Manager) { m.locks = locks }
}

func NewManager(store generic.TxStore, cfg *legal.Config, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		store:      store,
		legal:      cfg,
		pipeline:   NewPipeline(cfg),
		aggregator: NewAggregator(cfg),
		locks:      NewUserLocks(),
		logger:     logger.Named("lifecycle"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Locks exposes the lock table so other components can share it.
func (m *Manager) Locks() *UserLocks { return m.locks }

// Legal returns the rule table in use.
func (m *Manager) Legal() *legal.Config { return m.legal }

// Punch dispatches on the punch kind.
func (m *Manager) Punch(ctx context.Context, p Punch) (PunchResult, error) {
	switch p.Kind {
	case generic.EventEntry:
		return m.OnEntry(ctx, p)
	case generic.EventExit:
		return m.OnExit(ctx, p)
	default:
		return PunchResult{}, &generic.ValidationError{Field: "type", Reason: "must be entry or exit, got " + string(p.Kind)}
	}
}

// OnEntry opens a session. An active session is closed first at one minute
// before the new entry and flagged as an anomaly.
func (m *Manager) OnEntry(ctx context.Context, p Punch) (PunchResult, error) {
	p.Kind = generic.EventEntry
	if err := validatePunch(p); err != nil {
		return PunchResult{}, err
	}

	unlock := m.locks.Lock(p.UserID)
	defer unlock()

	var result PunchResult
	err := m.store.WithTx(ctx, func(tx generic.Store) error {
		result = PunchResult{Action: ActionEntry}
		now := m.now().UTC()

		ev, err := m.record(ctx, tx, p)
		if err != nil {
			return err
		}
		result.Event = ev

		active, err := tx.ActiveSession(ctx, p.UserID)
		if err != nil {
			return err
		}
		if active != nil {
			exit := ev.At.Add(-time.Minute)
			if !exit.After(active.Entry) {
				return &generic.ValidationError{
					Field:  "timestamp",
					Reason: fmt.Sprintf("entry at %s leaves no room to close the session opened at %s", ev.At.Format(time.RFC3339), active.Entry.Format(time.RFC3339)),
				}
			}
			closed, err := m.pipeline.Complete(*active, exit, now)
			if err != nil {
				return err
			}
			closed.Flags.Anomaly = true
			closed.Flags.ExitEstimated = true
			closed.Notes = appendNote(closed.Notes, "closed automatically by entry punch at "+ev.At.Format(time.RFC3339))
			if err := m.closeAndAggregate(ctx, tx, &result, closed); err != nil {
				return err
			}
			result.Action = ActionEntryAutoClosed
		}

		opened := m.pipeline.Open(p.UserID, ev.At, p.Location, generic.SourceLive, now)
		if err := tx.SaveSession(ctx, opened); err != nil {
			return err
		}
		result.Opened = &opened
		return nil
	})
	if err != nil {
		return PunchResult{}, m.punchError(p, err)
	}

	if result.Closed != nil {
		m.logger.Warn("active session closed automatically",
			zap.String("user_id", string(p.UserID)),
			zap.String("session_id", string(result.Closed.ID)),
			zap.Time("entry", result.Closed.Entry),
			zap.Time("exit", *result.Closed.Exit))
	}
	m.logCompliance(p.UserID, result)
	return result, nil
}

// OnExit completes the active session. Without one, a session starting
// EstimatedShift earlier is synthesized and flagged EntryEstimated.
func (m *Manager) OnExit(ctx context.Context, p Punch) (PunchResult, error) {
	p.Kind = generic.EventExit
	if err := validatePunch(p); err != nil {
		return PunchResult{}, err
	}

	unlock := m.locks.Lock(p.UserID)
	defer unlock()

	var result PunchResult
	err := m.store.WithTx(ctx, func(tx generic.Store) error {
		result = PunchResult{Action: ActionExit}
		now := m.now().UTC()

		ev, err := m.record(ctx, tx, p)
		if err != nil {
			return err
		}
		result.Event = ev

		active, err := tx.ActiveSession(ctx, p.UserID)
		if err != nil {
			return err
		}

		var session generic.WorkSession
		if active != nil {
			if !ev.At.After(active.Entry) {
				return &generic.ValidationError{
					Field:  "timestamp",
					Reason: fmt.Sprintf("exit at %s is not after entry at %s", ev.At.Format(time.RFC3339), active.Entry.Format(time.RFC3339)),
				}
			}
			session = *active
		} else {
			session = m.pipeline.Open(p.UserID, ev.At.Add(-EstimatedShift), "", generic.SourceLive, now)
			session.Flags.EntryEstimated = true
			session.Notes = "entry estimated from an exit punch without entry"
			result.Action = ActionExitEstimated
		}

		closed, err := m.pipeline.Complete(session, ev.At, now)
		if err != nil {
			return err
		}
		closed.ExitLocation = p.Location
		return m.closeAndAggregate(ctx, tx, &result, closed)
	})
	if err != nil {
		return PunchResult{}, m.punchError(p, err)
	}

	if result.Action == ActionExitEstimated {
		m.logger.Info("exit without entry, entry estimated",
			zap.String("user_id", string(p.UserID)),
			zap.Time("exit", result.Event.At))
	}
	m.logCompliance(p.UserID, result)
	return result, nil
}

func validatePunch(p Punch) error {
	if p.UserID == "" {
		return &generic.ValidationError{Field: "user_id", Reason: "required"}
	}
	if p.At.IsZero() {
		return &generic.ValidationError{Field: "timestamp", Reason: "required"}
	}
	return nil
}

func (m *Manager) record(ctx context.Context, tx generic.Store, p Punch) (generic.AttendanceEvent, error) {
	return generic.NewPunchLog(tx).Record(ctx, generic.AttendanceEvent{
		UserID:         p.UserID,
		Kind:           p.Kind,
		At:             p.At,
		Location:       p.Location,
		IdempotencyKey: p.IdempotencyKey,
	})
}

// closeAndAggregate saves a completed session, rebuilds its day and
// evaluates compliance for that day and its week.
func (m *Manager) closeAndAggregate(ctx context.Context, tx generic.Store, result *PunchResult, closed generic.WorkSession) error {
	if err := tx.SaveSession(ctx, closed); err != nil {
		return err
	}
	agg, err := m.aggregator.Upsert(ctx, tx, closed.UserID, closed.Day)
	if err != nil {
		return err
	}
	compliance, err := weekCompliance(ctx, tx, m.legal, agg)
	if err != nil {
		return err
	}
	result.Closed = &closed
	result.Aggregate = &agg
	result.Compliance = &compliance
	return nil
}

// weekCompliance validates the day's hours and its Sunday-Saturday week.
func weekCompliance(ctx context.Context, store generic.AggregateStore, cfg *legal.Config, agg generic.DailyAggregate) (legal.Compliance, error) {
	week := generic.WeekOf(agg.Day)
	aggs, err := store.AggregatesInRange(ctx, agg.UserID, week.Start, week.End)
	if err != nil {
		return legal.Compliance{}, err
	}
	weekly := 0
	for _, a := range aggs {
		weekly += a.TotalMinutes
	}
	return legal.Validate(cfg, generic.Hours(agg.TotalMinutes), generic.Hours(weekly)), nil
}

func (m *Manager) logCompliance(userID generic.UserID, result PunchResult) {
	if result.Compliance == nil || result.Compliance.Compliant {
		return
	}
	codes := make([]string, 0, len(result.Compliance.Violations))
	for _, v := range result.Compliance.Violations {
		codes = append(codes, string(v.Code))
	}
	m.logger.Warn("legal limit exceeded",
		zap.String("user_id", string(userID)),
		zap.String("day", result.Aggregate.Day.String()),
		zap.Strings("violations", codes))
}

func (m *Manager) punchError(p Punch, err error) error {
	if errors.Is(err, generic.ErrStateConflict) {
		m.logger.Warn("concurrent punch rejected",
			zap.String("user_id", string(p.UserID)),
			zap.String("kind", string(p.Kind)))
	}
	return fmt.Errorf("%s punch for %s: %w", p.Kind, p.UserID, err)
}

// =============================================================================
// QUERIES
// =============================================================================

// ActiveView is the active session with its live elapsed time and what it
// would classify as if it ended now.
type ActiveView struct {
	Session        generic.WorkSession
	ElapsedMinutes int
	Elapsed        string
	Projection     *legal.Classification
}

// ActiveSession returns nil when the user has no active session.
func (m *Manager) ActiveSession(ctx context.Context, userID generic.UserID, now time.Time) (*ActiveView, error) {
	return activeView(ctx, m.store, m.pipeline, userID, now)
}

// =============================================================================
// OPERATOR ACTIONS
// =============================================================================

// MarkIncomplete voids an active session that will never get its exit
// punch, typically one the integrity check flagged as stale.
func (m *Manager) MarkIncomplete(ctx context.Context, userID generic.UserID, id generic.SessionID, note string) (generic.WorkSession, error) {
	unlock := m.locks.Lock(userID)
	defer unlock()

	var out generic.WorkSession
	err := m.store.WithTx(ctx, func(tx generic.Store) error {
		s, err := ownedSession(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if !s.IsActive() {
			return &generic.ValidationError{Field: "status", Reason: "only active sessions can be marked incomplete, session is " + string(s.Status)}
		}
		s.Status = generic.StatusIncomplete
		s.Notes = appendNote(s.Notes, note)
		s.UpdatedAt = m.now().UTC()
		if err := tx.SaveSession(ctx, s); err != nil {
			return err
		}
		if _, err := m.aggregator.Upsert(ctx, tx, userID, s.Day); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return generic.WorkSession{}, fmt.Errorf("mark session %s incomplete: %w", id, err)
	}
	m.logger.Info("session marked incomplete", zap.String("user_id", string(userID)), zap.String("session_id", string(id)))
	return out, nil
}

// CorrectionResult holds the corrected session and every aggregate it touched.
type CorrectionResult struct {
	Session    generic.WorkSession
	Aggregates []generic.DailyAggregate
}

// Correct recomputes a session with operator-supplied timestamps. The
// session keeps its ID so the corrected numbers supersede the old ones,
// and both the old and the new day are rebuilt.
func (m *Manager) Correct(ctx context.Context, userID generic.UserID, id generic.SessionID, entry, exit time.Time, note string) (CorrectionResult, error) {
	if entry.IsZero() || exit.IsZero() {
		return CorrectionResult{}, &generic.ValidationError{Field: "timestamp", Reason: "entry and exit are required"}
	}
	entry = entry.Truncate(time.Millisecond)
	exit = exit.Truncate(time.Millisecond)

	unlock := m.locks.Lock(userID)
	defer unlock()

	var result CorrectionResult
	err := m.store.WithTx(ctx, func(tx generic.Store) error {
		old, err := ownedSession(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		now := m.now().UTC()

		s := old
		s.Entry = entry
		s.Exit = nil
		s.Source = generic.SourceCorrected
		s.Flags = generic.SessionFlags{}
		s.Notes = appendNote(old.Notes, note)
		corrected, err := m.pipeline.Complete(s, exit, now)
		if err != nil {
			return err
		}
		if err := tx.SaveSession(ctx, corrected); err != nil {
			return err
		}

		days := []generic.TimePoint{old.Day}
		if !corrected.Day.Equal(old.Day) {
			days = append(days, corrected.Day)
		}
		result = CorrectionResult{Session: corrected}
		for _, day := range days {
			agg, err := m.aggregator.Upsert(ctx, tx, userID, day)
			if err != nil {
				return err
			}
			result.Aggregates = append(result.Aggregates, agg)
		}
		return nil
	})
	if err != nil {
		return CorrectionResult{}, fmt.Errorf("correct session %s: %w", id, err)
	}
	m.logger.Info("session corrected",
		zap.String("user_id", string(userID)),
		zap.String("session_id", string(id)),
		zap.Int("total_minutes", result.Session.TotalMinutes))
	return result, nil
}

func ownedSession(ctx context.Context, store generic.SessionStore, userID generic.UserID, id generic.SessionID) (generic.WorkSession, error) {
	s, err := store.GetSession(ctx, id)
	if err != nil {
		return generic.WorkSession{}, err
	}
	if s.UserID != userID {
		return generic.WorkSession{}, generic.ErrSessionNotFound
	}
	return s, nil
}
