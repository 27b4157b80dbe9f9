package legal

import (
	"time"

	"github.com/warp/worktime-engine/generic"
)

// =============================================================================
// SEGMENT WALK
// =============================================================================

// Segment is a stretch of worked time that stays inside one window.
type Segment struct {
	Start   time.Time
	End     time.Time
	Minutes int
	Night   bool
}

// Segments walks [entry, exit) and cuts it at every window boundary.
//
// Minutes are measured as floored offsets from entry, so the segment
// lengths always add up to floor((exit - entry) / 1m) even when entry
// carries seconds.
func Segments(entry, exit time.Time, cfg *Config) ([]Segment, error) {
	if entry.IsZero() || exit.IsZero() {
		return nil, &generic.ValidationError{Field: "timestamp", Reason: "entry and exit are required"}
	}
	if !exit.After(entry) {
		return nil, &generic.ValidationError{Field: "exit", Reason: "exit must be after entry"}
	}

	var segs []Segment
	cur := entry
	for cur.Before(exit) {
		next := cfg.nextBoundary(cur)
		if next.After(exit) {
			next = exit
		}
		mins := generic.MinutesBetween(entry, next) - generic.MinutesBetween(entry, cur)
		segs = append(segs, Segment{
			Start:   cur,
			End:     next,
			Minutes: mins,
			Night:   cfg.IsNight(cur),
		})
		cur = next
	}
	return segs, nil
}

// nextBoundary returns the first window change strictly after t.
func (c *Config) nextBoundary(t time.Time) time.Time {
	loc := c.Location()
	local := t.In(loc)
	y, m, d := local.Date()

	toNight := time.Date(y, m, d, c.NightStartHour, 0, 0, 0, loc)
	if !toNight.After(t) {
		toNight = time.Date(y, m, d+1, c.NightStartHour, 0, 0, 0, loc)
	}
	toDay := time.Date(y, m, d, c.DayStartHour, 0, 0, 0, loc)
	if !toDay.After(t) {
		toDay = time.Date(y, m, d+1, c.DayStartHour, 0, 0, 0, loc)
	}
	if toNight.Before(toDay) {
		return toNight
	}
	return toDay
}

// =============================================================================
// DISTRIBUTION
// =============================================================================

// Distribute classifies [entry, exit) into the six buckets.
//
// On a dominical day every minute goes to DominicalDay or DominicalNight.
// Otherwise minutes are ordinary until the daily cap is consumed, in
// chronological order, and overtime after that. A segment that crosses
// the cap is split.
func Distribute(entry, exit time.Time, cfg *Config, dominical bool) (generic.Distribution, error) {
	segs, err := Segments(entry, exit, cfg)
	if err != nil {
		return generic.Distribution{}, err
	}
	return distributeSegments(segs, cfg.DailyOrdinaryMinutes, dominical), nil
}

func distributeSegments(segs []Segment, ordinaryCap int, dominical bool) generic.Distribution {
	var d generic.Distribution
	ordinaryUsed := 0

	for _, s := range segs {
		if dominical {
			if s.Night {
				d.DominicalNight += s.Minutes
			} else {
				d.DominicalDay += s.Minutes
			}
			continue
		}

		ordinary := ordinaryCap - ordinaryUsed
		if ordinary < 0 {
			ordinary = 0
		}
		if ordinary > s.Minutes {
			ordinary = s.Minutes
		}
		overtime := s.Minutes - ordinary
		ordinaryUsed += ordinary

		if s.Night {
			d.OrdinaryNight += ordinary
			d.OvertimeNight += overtime
		} else {
			d.OrdinaryDay += ordinary
			d.OvertimeDay += overtime
		}
	}
	return d
}

// =============================================================================
// CLASSIFICATION - The full calculation for one entry/exit pair
// =============================================================================

// Classification is everything derived from one entry/exit pair.
type Classification struct {
	Day          generic.TimePoint
	Dominical    bool
	HolidayName  string
	TotalMinutes int
	Segments     []Segment
	Distribution generic.Distribution
	Surcharge    generic.Surcharge
}

// Classify runs the segment walk, the distribution and the surcharge
// calculation. The calendar day, and therefore the dominical flag, is
// taken from entry.
func Classify(entry, exit time.Time, cfg *Config) (Classification, error) {
	segs, err := Segments(entry, exit, cfg)
	if err != nil {
		return Classification{}, err
	}
	day := cfg.DayOf(entry)
	dominical := cfg.IsDominical(day)
	holiday, _ := cfg.Calendar().HolidayName(day)

	dist := distributeSegments(segs, cfg.DailyOrdinaryMinutes, dominical)
	return Classification{
		Day:          day,
		Dominical:    dominical,
		HolidayName:  holiday,
		TotalMinutes: generic.MinutesBetween(entry, exit),
		Segments:     segs,
		Distribution: dist,
		Surcharge:    CalculateSurcharges(dist, cfg),
	}, nil
}
