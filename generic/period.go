package generic

import "time"

// =============================================================================
// PERIOD - Inclusive range of calendar days
// =============================================================================

// Period is an inclusive [Start, End] range of days. Dashboards, backfills
// and integrity scans all operate on periods.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Bounds returns the first and last instants of the period on loc's wall
// clock, suitable for timestamp range queries.
func (p Period) Bounds(loc *time.Location) (time.Time, time.Time) {
	return p.Start.Start(loc), p.End.End(loc)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// PeriodType names the reporting windows exposed by the dashboard.
type PeriodType string

const (
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"  // Sunday - Saturday
	PeriodMonth PeriodType = "month" // 1st - last day
)

// =============================================================================
// PERIOD CALCULATOR - Determines which period a date falls into
// =============================================================================

// PeriodFor returns the period of the given type that contains date.
func PeriodFor(t PeriodType, date TimePoint) Period {
	switch t {
	case PeriodWeek:
		return WeekOf(date)
	case PeriodMonth:
		return MonthOf(date)
	default:
		return Period{Start: date, End: date}
	}
}

// WeekOf returns the Sunday-to-Saturday week containing date.
func WeekOf(date TimePoint) Period {
	start := date.AddDays(-int(date.Weekday()))
	return Period{Start: start, End: start.AddDays(6)}
}

// MonthOf returns the calendar month containing date.
func MonthOf(date TimePoint) Period {
	return Period{
		Start: StartOfMonth(date.Year(), date.Month()),
		End:   EndOfMonth(date.Year(), date.Month()),
	}
}

// LastDays returns the n days ending at (and including) end.
func LastDays(end TimePoint, n int) Period {
	if n < 1 {
		n = 1
	}
	return Period{Start: end.AddDays(-(n - 1)), End: end}
}
