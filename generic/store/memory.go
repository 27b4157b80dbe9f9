// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/worktime-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	events      map[generic.UserID][]generic.AttendanceEvent
	idempotency map[string]bool
	sessions    map[generic.SessionID]generic.WorkSession
	aggregates  map[aggKey]generic.DailyAggregate
	runs        []generic.BackfillRun
}

type aggKey struct {
	UserID generic.UserID
	Day    string
}

func keyOf(userID generic.UserID, day generic.TimePoint) aggKey {
	return aggKey{UserID: userID, Day: day.String()}
}

func NewMemory() *Memory {
	return &Memory{
		events:      make(map[generic.UserID][]generic.AttendanceEvent),
		idempotency: make(map[string]bool),
		sessions:    make(map[generic.SessionID]generic.WorkSession),
		aggregates:  make(map[aggKey]generic.DailyAggregate),
	}
}

// =============================================================================
// EVENTS
// =============================================================================

func (m *Memory) AppendEvent(_ context.Context, ev generic.AttendanceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEventLocked(ev)
}

func (m *Memory) appendEventLocked(ev generic.AttendanceEvent) error {
	if ev.IdempotencyKey != "" && m.idempotency[ev.IdempotencyKey] {
		return generic.ErrDuplicatePunch
	}
	evs := m.events[ev.UserID]

	// Binary search keeps the log ordered by timestamp
	i := sort.Search(len(evs), func(i int) bool {
		return evs[i].At.After(ev.At)
	})
	evs = append(evs, generic.AttendanceEvent{})
	copy(evs[i+1:], evs[i:])
	evs[i] = ev
	m.events[ev.UserID] = evs

	if ev.IdempotencyKey != "" {
		m.idempotency[ev.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) EventExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

func (m *Memory) LoadEvents(_ context.Context, userID generic.UserID, from, to time.Time) ([]generic.AttendanceEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadEventsLocked(userID, from, to), nil
}

func (m *Memory) loadEventsLocked(userID generic.UserID, from, to time.Time) []generic.AttendanceEvent {
	var result []generic.AttendanceEvent
	for _, ev := range m.events[userID] {
		if !ev.At.Before(from) && !ev.At.After(to) {
			result = append(result, ev)
		}
	}
	return result
}

func (m *Memory) Users(_ context.Context) ([]generic.UserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usersLocked(), nil
}

func (m *Memory) usersLocked() []generic.UserID {
	seen := make(map[generic.UserID]bool)
	for u := range m.events {
		seen[u] = true
	}
	for _, s := range m.sessions {
		seen[s.UserID] = true
	}
	users := make([]generic.UserID, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// =============================================================================
// SESSIONS
// =============================================================================

func (m *Memory) SaveSession(_ context.Context, s generic.WorkSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSessionLocked(s)
}

func (m *Memory) saveSessionLocked(s generic.WorkSession) error {
	if s.IsActive() {
		for id, other := range m.sessions {
			if id != s.ID && other.UserID == s.UserID && other.IsActive() {
				return &generic.StateConflictError{UserID: s.UserID}
			}
		}
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(_ context.Context, id generic.SessionID) (generic.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSessionLocked(id)
}

func (m *Memory) getSessionLocked(id generic.SessionID) (generic.WorkSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return generic.WorkSession{}, generic.ErrSessionNotFound
	}
	return s, nil
}

func (m *Memory) ActiveSession(_ context.Context, userID generic.UserID) (*generic.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeSessionLocked(userID), nil
}

func (m *Memory) activeSessionLocked(userID generic.UserID) *generic.WorkSession {
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive() {
			found := s
			return &found
		}
	}
	return nil
}

func (m *Memory) SessionsForDay(_ context.Context, userID generic.UserID, day generic.TimePoint) ([]generic.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionsWhereLocked(userID, func(s generic.WorkSession) bool { return s.Day.Equal(day) }), nil
}

func (m *Memory) SessionsInRange(_ context.Context, userID generic.UserID, from, to generic.TimePoint) ([]generic.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionsInRangeLocked(userID, from, to), nil
}

func (m *Memory) sessionsInRangeLocked(userID generic.UserID, from, to generic.TimePoint) []generic.WorkSession {
	return m.sessionsWhereLocked(userID, func(s generic.WorkSession) bool {
		return s.Day.AfterOrEqual(from) && s.Day.BeforeOrEqual(to)
	})
}

func (m *Memory) ActiveSessionsBefore(_ context.Context, userID generic.UserID, cutoff time.Time) ([]generic.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeBeforeLocked(userID, cutoff), nil
}

func (m *Memory) activeBeforeLocked(userID generic.UserID, cutoff time.Time) []generic.WorkSession {
	return m.sessionsWhereLocked(userID, func(s generic.WorkSession) bool {
		return s.IsActive() && s.Entry.Before(cutoff)
	})
}

func (m *Memory) CompletedSessions(_ context.Context, userID generic.UserID, limit int) ([]generic.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.completedLocked(userID, limit), nil
}

func (m *Memory) completedLocked(userID generic.UserID, limit int) []generic.WorkSession {
	result := m.sessionsWhereLocked(userID, generic.WorkSession.IsCompleted)
	// newest first
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// sessionsWhereLocked returns the user's sessions matching keep, ordered by Entry.
func (m *Memory) sessionsWhereLocked(userID generic.UserID, keep func(generic.WorkSession) bool) []generic.WorkSession {
	var result []generic.WorkSession
	for _, s := range m.sessions {
		if s.UserID == userID && keep(s) {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Entry.Equal(result[j].Entry) {
			return result[i].ID < result[j].ID
		}
		return result[i].Entry.Before(result[j].Entry)
	})
	return result
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (m *Memory) GetAggregate(_ context.Context, userID generic.UserID, day generic.TimePoint) (*generic.DailyAggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAggregateLocked(userID, day), nil
}

func (m *Memory) getAggregateLocked(userID generic.UserID, day generic.TimePoint) *generic.DailyAggregate {
	a, ok := m.aggregates[keyOf(userID, day)]
	if !ok {
		return nil
	}
	return &a
}

func (m *Memory) SaveAggregate(_ context.Context, a generic.DailyAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregates[keyOf(a.UserID, a.Day)] = a
	return nil
}

func (m *Memory) AggregatesInRange(_ context.Context, userID generic.UserID, from, to generic.TimePoint) ([]generic.DailyAggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.aggregatesInRangeLocked(userID, from, to), nil
}

func (m *Memory) aggregatesInRangeLocked(userID generic.UserID, from, to generic.TimePoint) []generic.DailyAggregate {
	var result []generic.DailyAggregate
	for k, a := range m.aggregates {
		if k.UserID == userID && a.Day.AfterOrEqual(from) && a.Day.BeforeOrEqual(to) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day.Before(result[j].Day) })
	return result
}

// =============================================================================
// BACKFILL RUNS
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, run generic.BackfillRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.runs {
		if r.ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListRuns(_ context.Context, userID generic.UserID, limit int) ([]generic.BackfillRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []generic.BackfillRun
	for i := len(m.runs) - 1; i >= 0; i-- {
		if userID == "" || m.runs[i].UserID == userID {
			result = append(result, m.runs[i])
		}
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	txStore := &txMemoryView{parent: tm.Memory}

	if err := fn(txStore); err != nil {
		tm.restore(snapshot)
		return err
	}

	// Commit (already done via direct writes)
	return nil
}

type memorySnapshot struct {
	events      map[generic.UserID][]generic.AttendanceEvent
	idempotency map[string]bool
	sessions    map[generic.SessionID]generic.WorkSession
	aggregates  map[aggKey]generic.DailyAggregate
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		events:      make(map[generic.UserID][]generic.AttendanceEvent, len(tm.events)),
		idempotency: make(map[string]bool, len(tm.idempotency)),
		sessions:    make(map[generic.SessionID]generic.WorkSession, len(tm.sessions)),
		aggregates:  make(map[aggKey]generic.DailyAggregate, len(tm.aggregates)),
	}
	for k, v := range tm.events {
		s.events[k] = append([]generic.AttendanceEvent{}, v...)
	}
	for k, v := range tm.idempotency {
		s.idempotency[k] = v
	}
	for k, v := range tm.sessions {
		s.sessions[k] = v
	}
	for k, v := range tm.aggregates {
		s.aggregates[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.events = s.events
	tm.idempotency = s.idempotency
	tm.sessions = s.sessions
	tm.aggregates = s.aggregates
}

// txMemoryView runs against the parent's maps while WithTx holds the lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) AppendEvent(_ context.Context, ev generic.AttendanceEvent) error {
	return tv.parent.appendEventLocked(ev)
}

func (tv *txMemoryView) EventExists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}

func (tv *txMemoryView) LoadEvents(_ context.Context, userID generic.UserID, from, to time.Time) ([]generic.AttendanceEvent, error) {
	return tv.parent.loadEventsLocked(userID, from, to), nil
}

func (tv *txMemoryView) Users(_ context.Context) ([]generic.UserID, error) {
	return tv.parent.usersLocked(), nil
}

func (tv *txMemoryView) SaveSession(_ context.Context, s generic.WorkSession) error {
	return tv.parent.saveSessionLocked(s)
}

func (tv *txMemoryView) GetSession(_ context.Context, id generic.SessionID) (generic.WorkSession, error) {
	return tv.parent.getSessionLocked(id)
}

func (tv *txMemoryView) ActiveSession(_ context.Context, userID generic.UserID) (*generic.WorkSession, error) {
	return tv.parent.activeSessionLocked(userID), nil
}

func (tv *txMemoryView) SessionsForDay(_ context.Context, userID generic.UserID, day generic.TimePoint) ([]generic.WorkSession, error) {
	return tv.parent.sessionsWhereLocked(userID, func(s generic.WorkSession) bool { return s.Day.Equal(day) }), nil
}

func (tv *txMemoryView) SessionsInRange(_ context.Context, userID generic.UserID, from, to generic.TimePoint) ([]generic.WorkSession, error) {
	return tv.parent.sessionsInRangeLocked(userID, from, to), nil
}

func (tv *txMemoryView) ActiveSessionsBefore(_ context.Context, userID generic.UserID, cutoff time.Time) ([]generic.WorkSession, error) {
	return tv.parent.activeBeforeLocked(userID, cutoff), nil
}

func (tv *txMemoryView) CompletedSessions(_ context.Context, userID generic.UserID, limit int) ([]generic.WorkSession, error) {
	return tv.parent.completedLocked(userID, limit), nil
}

func (tv *txMemoryView) GetAggregate(_ context.Context, userID generic.UserID, day generic.TimePoint) (*generic.DailyAggregate, error) {
	return tv.parent.getAggregateLocked(userID, day), nil
}

func (tv *txMemoryView) SaveAggregate(_ context.Context, a generic.DailyAggregate) error {
	tv.parent.aggregates[keyOf(a.UserID, a.Day)] = a
	return nil
}

func (tv *txMemoryView) AggregatesInRange(_ context.Context, userID generic.UserID, from, to generic.TimePoint) ([]generic.DailyAggregate, error) {
	return tv.parent.aggregatesInRangeLocked(userID, from, to), nil
}
