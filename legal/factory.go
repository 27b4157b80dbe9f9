/*
factory.go - YAML/JSON rule-table conversion

PURPOSE:
  Converts a rule file into a Config. This lets a deployment adjust the
  surcharge table or holiday list after a legal reform without code
  changes. Anything the file leaves out keeps the Colombia2025 value.

FILE SCHEMA (YAML; JSON is accepted as well):
  name: colombia-2025
  time_zone: America/Bogota
  day_window:   {start: 6, end: 22}
  night_window: {start: 22, end: 6}
  daily_ordinary_minutes: 480
  weekly_ordinary_minutes: 2640
  daily_warning_minutes: 420
  weekly_warning_minutes: 2400
  surcharges:
    night_ordinary: 35
    overtime_day: 25
    overtime_night: 75
    dominical_day: 75
    dominical_night: 100
  fixed_holidays:
    - {month: 1, day: 1, name: Año Nuevo}
  monday_holidays:
    - {month: 1, day: 6, name: Reyes Magos}

USAGE:
  cfg, err := legal.LoadFile("legal.yaml")
  cfg, err := legal.Parse([]byte(jsonString))

SEE ALSO:
  - config.go: Config type and defaults
  - config/config.go: Server config that points at the rule file
*/
package legal

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// FILE SCHEMA TYPES
// =============================================================================

type ConfigFile struct {
	Name                  string          `yaml:"name" json:"name"`
	TimeZone              string          `yaml:"time_zone" json:"time_zone"`
	DayWindow             *WindowFile     `yaml:"day_window" json:"day_window"`
	NightWindow           *WindowFile     `yaml:"night_window" json:"night_window"`
	DailyOrdinaryMinutes  int             `yaml:"daily_ordinary_minutes" json:"daily_ordinary_minutes"`
	WeeklyOrdinaryMinutes int             `yaml:"weekly_ordinary_minutes" json:"weekly_ordinary_minutes"`
	DailyWarningMinutes   int             `yaml:"daily_warning_minutes" json:"daily_warning_minutes"`
	WeeklyWarningMinutes  int             `yaml:"weekly_warning_minutes" json:"weekly_warning_minutes"`
	Surcharges            *SurchargesFile `yaml:"surcharges" json:"surcharges"`
	FixedHolidays         []HolidayFile   `yaml:"fixed_holidays" json:"fixed_holidays"`
	MondayHolidays        []HolidayFile   `yaml:"monday_holidays" json:"monday_holidays"`
}

type WindowFile struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// SurchargesFile holds whole percent values. Pointers distinguish an
// explicit zero from an omitted field.
type SurchargesFile struct {
	NightOrdinary  *float64 `yaml:"night_ordinary" json:"night_ordinary"`
	OvertimeDay    *float64 `yaml:"overtime_day" json:"overtime_day"`
	OvertimeNight  *float64 `yaml:"overtime_night" json:"overtime_night"`
	DominicalDay   *float64 `yaml:"dominical_day" json:"dominical_day"`
	DominicalNight *float64 `yaml:"dominical_night" json:"dominical_night"`
}

type HolidayFile struct {
	Month int    `yaml:"month" json:"month"`
	Day   int    `yaml:"day" json:"day"`
	Name  string `yaml:"name" json:"name"`
}

// =============================================================================
// FACTORY
// =============================================================================

// LoadFile reads and parses a rule file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read legal config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML or JSON into a validated Config.
func Parse(data []byte) (*Config, error) {
	var f ConfigFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse legal config: %w", err)
	}
	return FromFile(f)
}

// FromFile overlays f on the Colombia2025 defaults.
func FromFile(f ConfigFile) (*Config, error) {
	c := Colombia2025()

	if f.Name != "" {
		c.Name = f.Name
	}
	if f.TimeZone != "" {
		loc, err := time.LoadLocation(f.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("failed to load time zone %q: %w", f.TimeZone, err)
		}
		c.TimeZone = f.TimeZone
		c.loc = loc
	}
	if f.DayWindow != nil {
		c.DayStartHour, c.DayEndHour = f.DayWindow.Start, f.DayWindow.End
	}
	if f.NightWindow != nil {
		c.NightStartHour, c.NightEndHour = f.NightWindow.Start, f.NightWindow.End
	}
	setIfPositive(&c.DailyOrdinaryMinutes, f.DailyOrdinaryMinutes)
	setIfPositive(&c.WeeklyOrdinaryMinutes, f.WeeklyOrdinaryMinutes)
	setIfPositive(&c.DailyWarningMinutes, f.DailyWarningMinutes)
	setIfPositive(&c.WeeklyWarningMinutes, f.WeeklyWarningMinutes)

	if s := f.Surcharges; s != nil {
		setPercent(&c.Surcharges.NightOrdinary, s.NightOrdinary)
		setPercent(&c.Surcharges.OvertimeDay, s.OvertimeDay)
		setPercent(&c.Surcharges.OvertimeNight, s.OvertimeNight)
		setPercent(&c.Surcharges.DominicalDay, s.DominicalDay)
		setPercent(&c.Surcharges.DominicalNight, s.DominicalNight)
	}

	if f.FixedHolidays != nil {
		c.FixedHolidays = parseHolidays(f.FixedHolidays)
	}
	if f.MondayHolidays != nil {
		c.MondayHolidays = parseHolidays(f.MondayHolidays)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func setIfPositive(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setPercent(dst *decimal.Decimal, v *float64) {
	if v != nil {
		*dst = decimal.NewFromFloat(*v)
	}
}

func parseHolidays(in []HolidayFile) []MonthDay {
	out := make([]MonthDay, 0, len(in))
	for _, h := range in {
		out = append(out, MonthDay{Month: time.Month(h.Month), Day: h.Day, Name: h.Name})
	}
	return out
}
