/*
backfill.go - Replays stored punches into sessions and aggregates

PURPOSE:
  Historical punches (imported, or recorded before sessions existed) are
  paired per calendar day and pushed through the same pipeline live
  punches use. The result is a set of migrated sessions and rebuilt
  aggregates for the range.

PAIRING (per day, chronological, single pending entry):
  entry while an entry is pending → close pending at new entry - 1 min
  exit with a pending entry       → pair them
  exit with nothing pending       → entry estimated at exit - 8h, unless
                                    that overlaps the previous pair, whose
                                    exit moves to this one instead
  entry still pending at day end  → exit estimated at 23:59:59.999

  An entry at most a minute after the pending one is a double tap and
  is dropped instead of producing an empty session.

ISOLATION:
  Each day commits in its own transaction under the user's lock. A day
  that fails is recorded with its date and message and the run moves on,
  so one bad day never aborts the range. Context cancellation stops the
  run between days; committed days stay committed.

IDEMPOTENCY:
  Migrated sessions get an ID derived from user + entry, so replaying a
  range overwrites the previous migration. Pairs overlapping a live,
  corrected or active session (of the pair's day or the day before) are
  skipped.

SEE ALSO:
  - pipeline.go: Open / Complete
  - aggregator.go: Upsert
  - generic/store.go: RunStore for run bookkeeping
*/
package worktime

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
)

// =============================================================================
// PAIRING
// =============================================================================

// Pair is one reconstructed entry/exit.
type Pair struct {
	Entry          time.Time
	Exit           time.Time
	EntryEstimated bool
	ExitEstimated  bool
	EntryLocation  string
	ExitLocation   string
}

// PairEvents pairs one day's punches. events must belong to day and be
// ordered by timestamp.
func PairEvents(events []generic.AttendanceEvent, day generic.TimePoint, loc *time.Location) []Pair {
	var pairs []Pair
	var pending *generic.AttendanceEvent

	for i := range events {
		ev := events[i]
		switch ev.Kind {
		case generic.EventEntry:
			if pending != nil {
				if ev.At.Sub(pending.At) <= time.Minute {
					continue
				}
				pairs = append(pairs, Pair{
					Entry:         pending.At,
					Exit:          ev.At.Add(-time.Minute),
					ExitEstimated: true,
					EntryLocation: pending.Location,
				})
			}
			pending = &ev
		case generic.EventExit:
			if pending != nil {
				pairs = append(pairs, Pair{
					Entry:         pending.At,
					Exit:          ev.At,
					EntryLocation: pending.Location,
					ExitLocation:  ev.Location,
				})
				pending = nil
				continue
			}
			if n := len(pairs); n > 0 && ev.At.Add(-EstimatedShift).Before(pairs[n-1].Exit) {
				// repeated exit: the last one closes the previous pair
				pairs[n-1].Exit = ev.At
				pairs[n-1].ExitLocation = ev.Location
				continue
			}
			pairs = append(pairs, Pair{
				Entry:          ev.At.Add(-EstimatedShift),
				Exit:           ev.At,
				EntryEstimated: true,
				ExitLocation:   ev.Location,
			})
		}
	}

	if pending != nil {
		pairs = append(pairs, Pair{
			Entry:         pending.At,
			Exit:          day.End(loc),
			ExitEstimated: true,
			EntryLocation: pending.Location,
		})
	}
	return pairs
}

// GroupByDay buckets events by their calendar day on loc's wall clock and
// returns the days in order.
func GroupByDay(events []generic.AttendanceEvent, loc *time.Location) ([]generic.TimePoint, map[string][]generic.AttendanceEvent) {
	groups := make(map[string][]generic.AttendanceEvent)
	var days []generic.TimePoint
	for _, ev := range events {
		day := generic.DayOf(ev.At, loc)
		key := day.String()
		if _, ok := groups[key]; !ok {
			days = append(days, day)
		}
		groups[key] = append(groups[key], ev)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	for _, evs := range groups {
		sort.SliceStable(evs, func(i, j int) bool { return evs[i].At.Before(evs[j].At) })
	}
	return days, groups
}

// =============================================================================
// BACKFILLER
// =============================================================================

// BackfillResult summarizes one user's run.
type BackfillResult struct {
	RunID             generic.RunID
	UserID            generic.UserID
	Period            generic.Period
	Status            generic.RunStatus
	EventsRead        int
	SessionsCreated   int
	SessionsSkipped   int
	AggregatesUpdated int
	Errors            []generic.DayError
}

// PartialFailure reports whether at least one day failed.
func (r BackfillResult) PartialFailure() bool { return len(r.Errors) > 0 }

type Backfiller struct {
	store       generic.TxStore
	runs        generic.RunStore
	legal       *legal.Config
	pipeline    *Pipeline
	aggregator  *Aggregator
	locks       *UserLocks
	logger      *zap.Logger
	concurrency int
	now         func() time.Time
}

type BackfillOption func(*Backfiller)

// WithRunStore records every run. Without it runs are not persisted.
func WithRunStore(runs generic.RunStore) BackfillOption {
	return func(b *Backfiller) { b.runs = runs }
}

// WithBackfillLocks shares the Manager's lock table so a backfill day and
// a live punch for the same user never interleave.
func WithBackfillLocks(locks *UserLocks) BackfillOption {
	return func(b *Backfiller) { b.locks = locks }
}

// WithConcurrency bounds how many users RunMany processes at once.
func WithConcurrency(n int) BackfillOption {
	return func(b *Backfiller) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func WithBackfillClock(now func() time.Time) BackfillOption {
	return func(b *Backfiller) {
		b.now = now
		b.aggregator.Now = now
	}
}

func NewBackfiller(store generic.TxStore, cfg *legal.Config, logger *zap.Logger, opts ...BackfillOption) *Backfiller {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backfiller{
		store:       store,
		legal:       cfg,
		pipeline:    NewPipeline(cfg),
		aggregator:  NewAggregator(cfg),
		locks:       NewUserLocks(),
		logger:      logger.Named("backfill"),
		concurrency: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run replays userID's punches for every day of period.
func (b *Backfiller) Run(ctx context.Context, userID generic.UserID, period generic.Period) (BackfillResult, error) {
	if err := period.Validate(); err != nil {
		return BackfillResult{}, err
	}
	if userID == "" {
		return BackfillResult{}, &generic.ValidationError{Field: "user_id", Reason: "required"}
	}

	run := generic.BackfillRun{
		ID:        generic.RunID(uuid.NewString()),
		UserID:    userID,
		Period:    period,
		Status:    generic.RunRunning,
		StartedAt: b.now().UTC(),
	}
	if err := b.saveRun(ctx, run); err != nil {
		return BackfillResult{}, err
	}

	loc := b.legal.Location()
	events, err := generic.NewPunchLog(b.store).EventsInPeriod(ctx, userID, period, loc)
	if err != nil {
		return BackfillResult{}, b.failRun(run, fmt.Errorf("load events: %w", err))
	}
	run.EventsRead = len(events)

	log := b.logger.With(zap.String("user_id", string(userID)), zap.String("run_id", string(run.ID)))
	log.Info("backfill started", zap.Stringer("period", period), zap.Int("events", len(events)))

	result := BackfillResult{RunID: run.ID, UserID: userID, Period: period, EventsRead: len(events)}
	days, groups := GroupByDay(events, loc)
	processed := 0

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, generic.DayError{Day: day, Message: "cancelled: " + err.Error()})
			break
		}
		created, skipped, updated, err := b.replayDay(ctx, userID, day, groups[day.String()])
		if err != nil {
			log.Warn("backfill day failed", zap.String("day", day.String()), zap.Error(err))
			result.Errors = append(result.Errors, generic.DayError{Day: day, Message: err.Error()})
			continue
		}
		processed++
		result.SessionsCreated += created
		result.SessionsSkipped += skipped
		result.AggregatesUpdated += updated
	}

	switch {
	case len(result.Errors) == 0:
		result.Status = generic.RunCompleted
	case processed == 0:
		result.Status = generic.RunFailed
	default:
		result.Status = generic.RunPartial
	}

	completed := b.now().UTC()
	run.Status = result.Status
	run.SessionsCreated = result.SessionsCreated
	run.AggregatesUpdated = result.AggregatesUpdated
	run.Errors = result.Errors
	run.CompletedAt = &completed
	if err := b.saveRun(context.WithoutCancel(ctx), run); err != nil {
		return result, err
	}

	log.Info("backfill finished",
		zap.String("status", string(result.Status)),
		zap.Int("sessions_created", result.SessionsCreated),
		zap.Int("aggregates_updated", result.AggregatesUpdated),
		zap.Int("day_errors", len(result.Errors)))
	return result, nil
}

// replayDay commits one day: its pairs become migrated sessions and every
// day those sessions land on is re-aggregated.
func (b *Backfiller) replayDay(ctx context.Context, userID generic.UserID, day generic.TimePoint, events []generic.AttendanceEvent) (created, skipped, updated int, err error) {
	unlock := b.locks.Lock(userID)
	defer unlock()

	pairs := PairEvents(events, day, b.legal.Location())

	err = b.store.WithTx(ctx, func(tx generic.Store) error {
		created, skipped, updated = 0, 0, 0
		now := b.now().UTC()
		touched := make(map[string]generic.TimePoint)

		for _, pair := range pairs {
			// sessions crossing midnight belong to the day before
			from := b.legal.DayOf(pair.Entry).AddDays(-1)
			existing, err := tx.SessionsInRange(ctx, userID, from, b.legal.DayOf(pair.Exit))
			if err != nil {
				return err
			}
			if recordedElsewhere(existing, pair, b.legal.Location()) {
				skipped++
				continue
			}

			s := b.pipeline.Open(userID, pair.Entry, pair.EntryLocation, generic.SourceMigrated, now)
			s.ID = migratedSessionID(userID, pair.Entry)
			if prev, err := tx.GetSession(ctx, s.ID); err == nil {
				s.CreatedAt = prev.CreatedAt
			}
			s.Flags.EntryEstimated = pair.EntryEstimated
			s.Flags.ExitEstimated = pair.ExitEstimated
			s.ExitLocation = pair.ExitLocation
			s.Notes = "migrated from stored punches"

			closed, err := b.pipeline.Complete(s, pair.Exit, now)
			if err != nil {
				return fmt.Errorf("pair %s-%s: %w", pair.Entry.Format(time.RFC3339), pair.Exit.Format(time.RFC3339), err)
			}
			if err := tx.SaveSession(ctx, closed); err != nil {
				return err
			}
			created++
			touched[closed.Day.String()] = closed.Day
		}

		keys := make([]string, 0, len(touched))
		for k := range touched {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, err := b.aggregator.Upsert(ctx, tx, userID, touched[k]); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	return created, skipped, updated, err
}

// recordedElsewhere reports whether a live, corrected or still active
// session overlaps the pair. Those sessions win over anything rebuilt from
// punches.
func recordedElsewhere(existing []generic.WorkSession, pair Pair, loc *time.Location) bool {
	for _, s := range existing {
		if s.Source == generic.SourceMigrated && !s.IsActive() {
			continue
		}
		if s.Entry.Equal(pair.Entry) {
			return true
		}
		var end time.Time
		switch {
		case s.Exit != nil:
			end = *s.Exit
		case s.IsActive():
			// runs until further notice
			end = pair.Exit.Add(time.Millisecond)
		default:
			// incomplete without exit: no later than the end of its day
			end = s.Day.End(loc)
		}
		if pair.Entry.Before(end) && s.Entry.Before(pair.Exit) {
			return true
		}
	}
	return false
}

// RunMany backfills several users in parallel, bounded by the configured
// concurrency. Days of one user stay sequential. Results keep the order of
// users.
func (b *Backfiller) RunMany(ctx context.Context, users []generic.UserID, period generic.Period) ([]BackfillResult, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	results := make([]BackfillResult, len(users))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, userID := range users {
		i, userID := i, userID
		g.Go(func() error {
			res, err := b.Run(gctx, userID, period)
			if err != nil {
				return fmt.Errorf("backfill %s: %w", userID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (b *Backfiller) saveRun(ctx context.Context, run generic.BackfillRun) error {
	if b.runs == nil {
		return nil
	}
	if err := b.runs.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save backfill run: %w", err)
	}
	return nil
}

func (b *Backfiller) failRun(run generic.BackfillRun, cause error) error {
	completed := b.now().UTC()
	run.Status = generic.RunFailed
	run.CompletedAt = &completed
	run.Errors = []generic.DayError{{Day: run.Period.Start, Message: cause.Error()}}
	if err := b.saveRun(context.Background(), run); err != nil {
		b.logger.Error("failed to record failed run", zap.Error(err))
	}
	return cause
}

// Runs lists recorded runs, newest first.
func (b *Backfiller) Runs(ctx context.Context, userID generic.UserID, limit int) ([]generic.BackfillRun, error) {
	if b.runs == nil {
		return nil, nil
	}
	return b.runs.ListRuns(ctx, userID, limit)
}
