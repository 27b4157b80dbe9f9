/*
Package worktime turns punches into classified sessions and daily aggregates.

PURPOSE:
  This is the stateful half of the engine. Package legal knows how to
  classify one entry/exit pair; this package decides which pairs exist,
  keeps at most one session active per user, and keeps every day's
  aggregate equal to the sum of its sessions.

KEY COMPONENTS:
  - Pipeline:           Opens sessions and completes them through legal.Classify
  - Manager:            Session lifecycle (entry, exit, auto-close, corrections)
  - Aggregator:         Rebuilds a day's aggregate from its sessions
  - Backfiller:         Replays stored punches into migrated sessions
  - IntegrityValidator: Read-only audit of sessions and aggregates
  - Dashboard:          Today / week / month / chart queries

STATE MACHINE (per user):
  none ──entry──► active ──exit──► completed
                    │
                    ├──entry──► completed (auto-closed, anomaly) + new active
                    └──mark incomplete──► incomplete

  exit with no active session synthesizes an estimated 8-hour session.

CONCURRENCY:
  Every operation that reads "is there an active session" and then writes
  runs under the user's lock (UserLocks) and inside one store transaction.
  The store additionally rejects a second active session with
  generic.ErrStateConflict.

SEE ALSO:
  - legal/distribution.go: The classification this pipeline applies
  - generic/store.go: Persistence contracts
*/
package worktime

import (
	"time"

	"github.com/google/uuid"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
)

// EstimatedShift is assumed when an exit arrives without an entry.
const EstimatedShift = 8 * time.Hour

// =============================================================================
// CALCULATION PIPELINE
// =============================================================================

// Pipeline applies the rule table to sessions. It holds no state besides
// the immutable config.
type Pipeline struct {
	Legal *legal.Config
}

func NewPipeline(cfg *legal.Config) *Pipeline {
	return &Pipeline{Legal: cfg}
}

// Open builds a new active session starting at entry.
func (p *Pipeline) Open(userID generic.UserID, entry time.Time, location string, source generic.SessionSource, now time.Time) generic.WorkSession {
	day := p.Legal.DayOf(entry)
	return generic.WorkSession{
		ID:            generic.SessionID(uuid.NewString()),
		UserID:        userID,
		Day:           day,
		Entry:         entry,
		Status:        generic.StatusActive,
		Source:        source,
		EntryLocation: location,
		Flags:         generic.SessionFlags{WeekendOrHoliday: p.Legal.IsDominical(day)},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Complete closes s at exit and fills in every derived field. Flags other
// than WeekendOrHoliday are left to the caller.
func (p *Pipeline) Complete(s generic.WorkSession, exit time.Time, now time.Time) (generic.WorkSession, error) {
	c, err := legal.Classify(s.Entry, exit, p.Legal)
	if err != nil {
		return s, err
	}
	exitCopy := exit
	s.Exit = &exitCopy
	s.Status = generic.StatusCompleted
	s.Day = c.Day
	s.TotalMinutes = c.TotalMinutes
	s.Distribution = c.Distribution
	s.Surcharge = c.Surcharge
	s.Flags.WeekendOrHoliday = c.Dominical
	s.UpdatedAt = now
	return s, nil
}

// Project classifies an active session as if it ended at now. It returns
// nil and no error when now is not after the entry: there is nothing to
// classify yet, and callers report zero elapsed time.
func (p *Pipeline) Project(s generic.WorkSession, now time.Time) (*legal.Classification, error) {
	if !now.After(s.Entry) {
		return nil, nil
	}
	c, err := legal.Classify(s.Entry, now, p.Legal)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// migratedSessionID derives a stable ID so replaying the same punches
// overwrites the earlier result instead of adding a second copy.
func migratedSessionID(userID generic.UserID, entry time.Time) generic.SessionID {
	key := string(userID) + "|" + entry.UTC().Format(time.RFC3339Nano)
	return generic.SessionID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String())
}

func appendNote(notes, note string) string {
	if note == "" {
		return notes
	}
	if notes == "" {
		return note
	}
	return notes + "; " + note
}
