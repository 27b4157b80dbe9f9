package worktime

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
)

// =============================================================================
// DASHBOARD QUERIES
// =============================================================================

// Dashboard answers read-only questions over aggregates. Every figure comes
// from stored aggregates, so it always agrees with the integrity check.
type Dashboard struct {
	store    generic.Store
	legal    *legal.Config
	pipeline *Pipeline
}

func NewDashboard(store generic.Store, cfg *legal.Config) *Dashboard {
	return &Dashboard{store: store, legal: cfg, pipeline: NewPipeline(cfg)}
}

// PeriodSummary rolls up every aggregate in a period.
type PeriodSummary struct {
	Period           generic.Period
	TotalMinutes     int
	OvertimeMinutes  int
	NightMinutes     int
	SurchargeMinutes int
	Distribution     generic.Distribution
	Surcharge        generic.Surcharge
	DaysWorked       int
	AverageHours     decimal.Decimal // per worked day
	Days             []generic.DailyAggregate
	Compliance       legal.Compliance
}

type TodayView struct {
	Day        generic.TimePoint
	Aggregate  generic.DailyAggregate
	Active     *ActiveView
	Compliance legal.Compliance
}

// Chart is a day-by-day series with zeroes for days without work.
type Chart struct {
	Labels    []string
	Hours     []decimal.Decimal
	Overtime  []decimal.Decimal
	Surcharge []decimal.Decimal
}

type Summary struct {
	Today TodayView
	Week  PeriodSummary
	Month PeriodSummary
	Chart Chart
}

// Today returns today's aggregate (zero when nothing was recorded) with the
// active session, if any.
func (d *Dashboard) Today(ctx context.Context, userID generic.UserID, now time.Time) (TodayView, error) {
	day := d.legal.DayOf(now)
	agg, err := d.store.GetAggregate(ctx, userID, day)
	if err != nil {
		return TodayView{}, err
	}
	view := TodayView{Day: day, Aggregate: emptyAggregate(userID, day, d.legal)}
	if agg != nil {
		view.Aggregate = *agg
	}
	if view.Active, err = activeView(ctx, d.store, d.pipeline, userID, now); err != nil {
		return TodayView{}, err
	}
	week, err := d.Period(ctx, userID, generic.WeekOf(day))
	if err != nil {
		return TodayView{}, err
	}
	view.Compliance = legal.Validate(d.legal, generic.Hours(view.Aggregate.TotalMinutes), generic.Hours(week.TotalMinutes))
	return view, nil
}

// Week covers the Sunday-Saturday week containing now.
func (d *Dashboard) Week(ctx context.Context, userID generic.UserID, now time.Time) (PeriodSummary, error) {
	return d.Period(ctx, userID, generic.WeekOf(d.legal.DayOf(now)))
}

// Month covers the calendar month containing now.
func (d *Dashboard) Month(ctx context.Context, userID generic.UserID, now time.Time) (PeriodSummary, error) {
	return d.Period(ctx, userID, generic.MonthOf(d.legal.DayOf(now)))
}

// Period sums the aggregates of p. Compliance uses the busiest day and
// the period total against the weekly cap.
func (d *Dashboard) Period(ctx context.Context, userID generic.UserID, p generic.Period) (PeriodSummary, error) {
	if err := p.Validate(); err != nil {
		return PeriodSummary{}, err
	}
	aggs, err := d.store.AggregatesInRange(ctx, userID, p.Start, p.End)
	if err != nil {
		return PeriodSummary{}, err
	}
	sum := PeriodSummary{Period: p, Days: aggs, AverageHours: decimal.Zero}
	busiest := 0
	for _, a := range aggs {
		sum.TotalMinutes += a.TotalMinutes
		sum.OvertimeMinutes += a.OvertimeMinutes
		sum.NightMinutes += a.NightMinutes
		sum.Distribution = sum.Distribution.Add(a.Distribution)
		sum.Surcharge = sum.Surcharge.Add(a.Surcharge)
		if a.TotalMinutes > 0 {
			sum.DaysWorked++
		}
		if a.TotalMinutes > busiest {
			busiest = a.TotalMinutes
		}
	}
	sum.SurchargeMinutes = sum.Surcharge.Total
	if sum.DaysWorked > 0 {
		sum.AverageHours = generic.Hours(sum.TotalMinutes).Div(decimal.NewFromInt(int64(sum.DaysWorked))).Round(2)
	}
	sum.Compliance = legal.Validate(d.legal, generic.Hours(busiest), generic.Hours(sum.TotalMinutes))
	return sum, nil
}

// Chart returns the last days days ending today.
func (d *Dashboard) Chart(ctx context.Context, userID generic.UserID, days int, now time.Time) (Chart, error) {
	p := generic.LastDays(d.legal.DayOf(now), days)
	aggs, err := d.store.AggregatesInRange(ctx, userID, p.Start, p.End)
	if err != nil {
		return Chart{}, err
	}
	byDay := make(map[string]generic.DailyAggregate, len(aggs))
	for _, a := range aggs {
		byDay[a.Day.String()] = a
	}

	var c Chart
	for _, day := range p.Days() {
		a := byDay[day.String()]
		c.Labels = append(c.Labels, day.String())
		c.Hours = append(c.Hours, generic.Hours(a.TotalMinutes).Round(2))
		c.Overtime = append(c.Overtime, generic.Hours(a.OvertimeMinutes).Round(2))
		c.Surcharge = append(c.Surcharge, generic.Hours(a.Surcharge.Total).Round(2))
	}
	return c, nil
}

// Summary runs every dashboard query concurrently.
func (d *Dashboard) Summary(ctx context.Context, userID generic.UserID, chartDays int, now time.Time) (Summary, error) {
	var s Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { s.Today, err = d.Today(gctx, userID, now); return })
	g.Go(func() (err error) { s.Week, err = d.Week(gctx, userID, now); return })
	g.Go(func() (err error) { s.Month, err = d.Month(gctx, userID, now); return })
	g.Go(func() (err error) { s.Chart, err = d.Chart(gctx, userID, chartDays, now); return })
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// Sessions lists the sessions of a period.
func (d *Dashboard) Sessions(ctx context.Context, userID generic.UserID, p generic.Period) ([]generic.WorkSession, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return d.store.SessionsInRange(ctx, userID, p.Start, p.End)
}

// Session returns one session with its legal report. Sessions without an
// exit have no report.
func (d *Dashboard) Session(ctx context.Context, userID generic.UserID, id generic.SessionID) (generic.WorkSession, *legal.Report, error) {
	s, err := ownedSession(ctx, d.store, userID, id)
	if err != nil {
		return generic.WorkSession{}, nil, err
	}
	if s.Exit == nil {
		return s, nil, nil
	}
	c, err := legal.Classify(s.Entry, *s.Exit, d.legal)
	if err != nil {
		return s, nil, err
	}
	r := legal.BuildReport(c, d.legal)
	return s, &r, nil
}

// =============================================================================
// LEGAL INFO
// =============================================================================

type LegalInfo struct {
	Name                string
	TimeZone            string
	DayWindow           [2]int
	NightWindow         [2]int
	DailyOrdinaryHours  decimal.Decimal
	WeeklyOrdinaryHours decimal.Decimal
	Surcharges          legal.Percentages
	Holidays            []generic.Holiday
}

// LegalInfo exposes the rule table and the observed holidays of year.
func (d *Dashboard) LegalInfo(year int) LegalInfo {
	c := d.legal
	return LegalInfo{
		Name:                c.Name,
		TimeZone:            c.TimeZone,
		DayWindow:           [2]int{c.DayStartHour, c.DayEndHour},
		NightWindow:         [2]int{c.NightStartHour, c.NightEndHour},
		DailyOrdinaryHours:  c.DailyCapHours(),
		WeeklyOrdinaryHours: c.WeeklyCapHours(),
		Surcharges:          c.Surcharges,
		Holidays:            c.Calendar().Holidays(year),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func activeView(ctx context.Context, store generic.SessionStore, p *Pipeline, userID generic.UserID, now time.Time) (*ActiveView, error) {
	s, err := store.ActiveSession(ctx, userID)
	if err != nil || s == nil {
		return nil, err
	}
	elapsed := s.ElapsedMinutes(now)
	projection, err := p.Project(*s, now)
	if err != nil {
		return nil, err
	}
	return &ActiveView{
		Session:        *s,
		ElapsedMinutes: elapsed,
		Elapsed:        generic.FormatMinutes(elapsed),
		Projection:     projection,
	}, nil
}

func emptyAggregate(userID generic.UserID, day generic.TimePoint, cfg *legal.Config) generic.DailyAggregate {
	return Recompute(userID, day, nil, cfg)
}
