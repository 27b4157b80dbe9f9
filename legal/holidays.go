package legal

import (
	"sort"
	"time"

	"github.com/warp/worktime-engine/generic"
)

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Calendar implements generic.HolidayCalendar from a Config's holiday lists.
//
// Fixed holidays are observed on their date. Monday-shifted holidays (Ley
// Emiliani) move forward to the next Monday unless they already fall on one.
// Variable-date holidays tied to Easter are not computed; callers that need
// them plug a Movable source in.
type Calendar struct {
	Fixed  []MonthDay
	Monday []MonthDay

	// Movable returns additional holidays for a year. Nil means none.
	Movable func(year int) []generic.Holiday
}

// Calendar builds the holiday calendar described by c.
func (c *Config) Calendar() *Calendar {
	return &Calendar{Fixed: c.FixedHolidays, Monday: c.MondayHolidays, Movable: c.Movable}
}

// ShiftToMonday moves a date to the following Monday. Sunday moves one day,
// Tuesday through Saturday move to the next week's Monday, Monday stays.
func ShiftToMonday(date generic.TimePoint) generic.TimePoint {
	switch wd := date.Weekday(); wd {
	case time.Monday:
		return date
	case time.Sunday:
		return date.AddDays(1)
	default:
		return date.AddDays(8 - int(wd))
	}
}

// Holidays returns every observed holiday of the year in date order.
func (cal *Calendar) Holidays(year int) []generic.Holiday {
	var out []generic.Holiday
	for _, h := range cal.Fixed {
		out = append(out, generic.Holiday{
			Date: generic.NewTimePoint(year, h.Month, h.Day),
			Name: h.Name,
			Kind: generic.HolidayFixed,
		})
	}
	for _, h := range cal.Monday {
		out = append(out, generic.Holiday{
			Date: ShiftToMonday(generic.NewTimePoint(year, h.Month, h.Day)),
			Name: h.Name,
			Kind: generic.HolidayMondayShifted,
		})
	}
	if cal.Movable != nil {
		for _, h := range cal.Movable(year) {
			h.Kind = generic.HolidayMovable
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// IsHoliday checks the observed holidays of date's year.
func (cal *Calendar) IsHoliday(date generic.TimePoint) bool {
	for _, h := range cal.Holidays(date.Year()) {
		if h.Date.Equal(date) {
			return true
		}
	}
	return false
}

// HolidayName returns the observed holiday on date, if any.
func (cal *Calendar) HolidayName(date generic.TimePoint) (string, bool) {
	for _, h := range cal.Holidays(date.Year()) {
		if h.Date.Equal(date) {
			return h.Name, true
		}
	}
	return "", false
}
