package worktime

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
)

// =============================================================================
// DAILY AGGREGATOR
// =============================================================================

// Aggregator rebuilds a day's aggregate from scratch on every change.
// Running totals are never patched, so a correction or a re-migrated
// session can't be counted twice.
type Aggregator struct {
	Legal *legal.Config
	Now   func() time.Time
}

func NewAggregator(cfg *legal.Config) *Aggregator {
	return &Aggregator{Legal: cfg, Now: time.Now}
}

// Upsert recomputes (userID, day) from every session of that day, bumps the
// revision and overwrites the stored aggregate.
func (a *Aggregator) Upsert(ctx context.Context, store generic.Store, userID generic.UserID, day generic.TimePoint) (generic.DailyAggregate, error) {
	sessions, err := store.SessionsForDay(ctx, userID, day)
	if err != nil {
		return generic.DailyAggregate{}, fmt.Errorf("load sessions for %s: %w", day, err)
	}
	prev, err := store.GetAggregate(ctx, userID, day)
	if err != nil {
		return generic.DailyAggregate{}, fmt.Errorf("load aggregate for %s: %w", day, err)
	}

	agg := Recompute(userID, day, sessions, a.Legal)
	agg.Revision = 1
	if prev != nil {
		agg.Revision = prev.Revision + 1
	}
	agg.UpdatedAt = a.Now().UTC()

	if err := store.SaveAggregate(ctx, agg); err != nil {
		return generic.DailyAggregate{}, fmt.Errorf("save aggregate for %s: %w", day, err)
	}
	return agg, nil
}

// Recompute folds the completed sessions of one day into an aggregate.
// It is pure: Revision and UpdatedAt are left zero for the caller.
func Recompute(userID generic.UserID, day generic.TimePoint, sessions []generic.WorkSession, cfg *legal.Config) generic.DailyAggregate {
	agg := generic.DailyAggregate{
		UserID:          userID,
		Day:             day,
		SundayOrHoliday: cfg.IsDominical(day),
	}

	for _, s := range sessions {
		if !s.IsCompleted() || !s.Day.Equal(day) {
			continue
		}
		agg.SessionCount++
		agg.TotalMinutes += s.TotalMinutes
		agg.Distribution = agg.Distribution.Add(s.Distribution)
		agg.Surcharge = agg.Surcharge.Add(s.Surcharge)

		if agg.FirstEntry == nil || s.Entry.Before(*agg.FirstEntry) {
			entry := s.Entry
			agg.FirstEntry = &entry
		}
		if s.Exit != nil && (agg.LastExit == nil || s.Exit.After(*agg.LastExit)) {
			exit := *s.Exit
			agg.LastExit = &exit
		}
	}

	agg.OrdinaryMinutes = agg.Distribution.Ordinary()
	agg.OvertimeMinutes = agg.Distribution.Overtime()
	agg.NightMinutes = agg.Distribution.Night()
	agg.Compliance = complianceFlags(agg.TotalMinutes, cfg.DailyOrdinaryMinutes)
	return agg
}

func complianceFlags(total, ordinaryCap int) generic.ComplianceFlags {
	pct := decimal.Zero
	if ordinaryCap > 0 {
		pct = decimal.NewFromInt(int64(total)).
			Div(decimal.NewFromInt(int64(ordinaryCap))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return generic.ComplianceFlags{
		MetEightHours:     total >= ordinaryCap,
		ExceededOrdinary:  total > ordinaryCap,
		PercentCompliance: pct,
	}
}

// SameTotals compares everything Recompute derives, ignoring Revision
// and UpdatedAt.
func SameTotals(a, b generic.DailyAggregate) bool {
	return a.UserID == b.UserID &&
		a.Day.Equal(b.Day) &&
		a.TotalMinutes == b.TotalMinutes &&
		a.OrdinaryMinutes == b.OrdinaryMinutes &&
		a.OvertimeMinutes == b.OvertimeMinutes &&
		a.NightMinutes == b.NightMinutes &&
		a.Distribution == b.Distribution &&
		a.Surcharge == b.Surcharge &&
		a.SessionCount == b.SessionCount &&
		a.SundayOrHoliday == b.SundayOrHoliday &&
		sameTime(a.FirstEntry, b.FirstEntry) &&
		sameTime(a.LastExit, b.LastExit) &&
		a.Compliance.MetEightHours == b.Compliance.MetEightHours &&
		a.Compliance.ExceededOrdinary == b.Compliance.ExceededOrdinary &&
		a.Compliance.PercentCompliance.Equal(b.Compliance.PercentCompliance)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
