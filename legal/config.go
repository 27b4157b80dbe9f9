/*
Package legal holds the labor-rule table and the pure algorithms that apply it.

PURPOSE:
  Everything in this package is a pure function of its inputs and an
  immutable Config. Nothing here reads a clock, touches storage or keeps
  state between calls, so the same punch pair always classifies the same way.

KEY CONCEPTS:
  - Config:       Day/night windows, ordinary caps, surcharge percentages,
                  holiday lists and the wall-clock time zone
  - Calendar:     Fixed-date and Monday-shifted holidays for a year
  - Distribute:   Splits [entry, exit) into six minute buckets
  - CalculateSurcharges: Premium minutes per bucket
  - Validate:     Daily/weekly limit check (violations and warnings as data)

WINDOWS:
  Day window   06:00 - 22:00
  Night window 22:00 - 06:00 (next day)
  Both windows are evaluated on the Config's time zone, never on UTC.

SEE ALSO:
  - distribution.go: Segment walk and bucket routing
  - surcharge.go: Percentages applied to buckets
  - factory.go: YAML/JSON rule files
*/
package legal

import (
	"fmt"
	"time"
	_ "time/tzdata" // America/Bogota must resolve on hosts without zoneinfo

	"github.com/shopspring/decimal"

	"github.com/warp/worktime-engine/generic"
)

// =============================================================================
// CONFIG - Immutable rule table
// =============================================================================

// Percentages are whole percent values (35 means 35%).
type Percentages struct {
	NightOrdinary  decimal.Decimal
	OvertimeDay    decimal.Decimal
	OvertimeNight  decimal.Decimal
	DominicalDay   decimal.Decimal
	DominicalNight decimal.Decimal
}

// MonthDay is a holiday anchor without a year.
type MonthDay struct {
	Month time.Month
	Day   int
	Name  string
}

// Config is loaded once and never mutated at runtime.
type Config struct {
	Name string

	DayStartHour   int
	DayEndHour     int
	NightStartHour int
	NightEndHour   int

	DailyOrdinaryMinutes  int
	WeeklyOrdinaryMinutes int
	DailyWarningMinutes   int // warn above this, up to the daily cap
	WeeklyWarningMinutes  int

	Surcharges Percentages

	FixedHolidays  []MonthDay
	MondayHolidays []MonthDay // moved to the following Monday

	// Movable supplies variable-date holidays per year. Nil means none.
	Movable func(year int) []generic.Holiday

	TimeZone string
	loc      *time.Location
}

// Colombia2025 returns the rule table of the Código Sustantivo del Trabajo
// as amended by Ley 2101 de 2021.
func Colombia2025() *Config {
	c := &Config{
		Name:           "colombia-2025",
		DayStartHour:   6,
		DayEndHour:     22,
		NightStartHour: 22,
		NightEndHour:   6,

		DailyOrdinaryMinutes:  8 * 60,
		WeeklyOrdinaryMinutes: 44 * 60,
		DailyWarningMinutes:   7 * 60,
		WeeklyWarningMinutes:  40 * 60,

		Surcharges: Percentages{
			NightOrdinary:  decimal.NewFromInt(35),  // Art. 168 CST
			OvertimeDay:    decimal.NewFromInt(25),  // Art. 159 CST
			OvertimeNight:  decimal.NewFromInt(75),  // Art. 168 CST
			DominicalDay:   decimal.NewFromInt(75),  // Art. 179 CST
			DominicalNight: decimal.NewFromInt(100), // Art. 179 + 168 CST
		},

		FixedHolidays: []MonthDay{
			{Month: time.January, Day: 1, Name: "Año Nuevo"},
			{Month: time.May, Day: 1, Name: "Día del Trabajo"},
			{Month: time.July, Day: 20, Name: "Día de la Independencia"},
			{Month: time.August, Day: 7, Name: "Batalla de Boyacá"},
			{Month: time.December, Day: 8, Name: "Inmaculada Concepción"},
			{Month: time.December, Day: 25, Name: "Navidad"},
		},
		MondayHolidays: []MonthDay{
			{Month: time.January, Day: 6, Name: "Reyes Magos"},
			{Month: time.March, Day: 19, Name: "San José"},
			{Month: time.June, Day: 29, Name: "San Pedro y San Pablo"},
			{Month: time.August, Day: 15, Name: "Asunción de la Virgen"},
			{Month: time.October, Day: 12, Name: "Día de la Raza"},
			{Month: time.November, Day: 1, Name: "Todos los Santos"},
			{Month: time.November, Day: 11, Name: "Independencia de Cartagena"},
		},

		TimeZone: "America/Bogota",
	}
	c.loc = resolveLocation(c.TimeZone)
	return c
}

// resolveLocation falls back to UTC-5 for Bogota and UTC for anything else.
func resolveLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	if name == "America/Bogota" {
		return time.FixedZone("COT", -5*60*60)
	}
	return time.UTC
}

// Location is the wall clock the windows and calendar days are evaluated on.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return resolveLocation(c.TimeZone)
	}
	return c.loc
}

// WithTimeZone returns a copy of c evaluated on another wall clock.
func (c *Config) WithTimeZone(name string) (*Config, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &generic.ValidationError{Field: "time_zone", Reason: err.Error()}
	}
	cp := *c
	cp.TimeZone = name
	cp.loc = loc
	return &cp, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks that the windows partition the day and the caps make sense.
func (c *Config) Validate() error {
	for field, h := range map[string]int{
		"day_window.start":   c.DayStartHour,
		"day_window.end":     c.DayEndHour,
		"night_window.start": c.NightStartHour,
		"night_window.end":   c.NightEndHour,
	} {
		if h < 0 || h > 23 {
			return &generic.ValidationError{Field: field, Reason: fmt.Sprintf("hour %d out of range", h)}
		}
	}
	if c.DayStartHour != c.NightEndHour || c.DayEndHour != c.NightStartHour {
		return &generic.ValidationError{Field: "night_window", Reason: "must be the complement of the day window"}
	}
	if c.DayStartHour == c.DayEndHour {
		return &generic.ValidationError{Field: "day_window", Reason: "start equals end"}
	}
	if c.DailyOrdinaryMinutes <= 0 || c.WeeklyOrdinaryMinutes <= 0 {
		return &generic.ValidationError{Field: "ordinary_minutes", Reason: "caps must be positive"}
	}
	if c.DailyWarningMinutes > c.DailyOrdinaryMinutes || c.WeeklyWarningMinutes > c.WeeklyOrdinaryMinutes {
		return &generic.ValidationError{Field: "warning_minutes", Reason: "warning threshold above cap"}
	}
	for _, p := range []decimal.Decimal{
		c.Surcharges.NightOrdinary, c.Surcharges.OvertimeDay, c.Surcharges.OvertimeNight,
		c.Surcharges.DominicalDay, c.Surcharges.DominicalNight,
	} {
		if p.IsNegative() {
			return &generic.ValidationError{Field: "surcharges", Reason: "percentages must not be negative"}
		}
	}
	for _, h := range append(append([]MonthDay{}, c.FixedHolidays...), c.MondayHolidays...) {
		if h.Month < time.January || h.Month > time.December || h.Day < 1 || h.Day > 31 {
			return &generic.ValidationError{Field: "holidays", Reason: fmt.Sprintf("invalid date %d-%d", h.Month, h.Day)}
		}
	}
	return nil
}

// =============================================================================
// WINDOW HELPERS
// =============================================================================

// IsNight reports whether the wall-clock hour of t falls in the night window.
func (c *Config) IsNight(t time.Time) bool {
	h := t.In(c.Location()).Hour()
	if c.NightStartHour > c.NightEndHour {
		return h >= c.NightStartHour || h < c.NightEndHour
	}
	return h >= c.NightStartHour && h < c.NightEndHour
}

// DayOf returns the calendar day of t on the rule table's wall clock.
func (c *Config) DayOf(t time.Time) generic.TimePoint {
	return generic.DayOf(t, c.Location())
}

// IsDominical reports whether work on day earns the Sunday/holiday premium.
func (c *Config) IsDominical(day generic.TimePoint) bool {
	return day.IsSundayOrHoliday(c.Calendar())
}

// DailyCapHours is the daily ordinary cap in hours.
func (c *Config) DailyCapHours() decimal.Decimal { return generic.Hours(c.DailyOrdinaryMinutes) }

// WeeklyCapHours is the weekly ordinary cap in hours.
func (c *Config) WeeklyCapHours() decimal.Decimal { return generic.Hours(c.WeeklyOrdinaryMinutes) }
