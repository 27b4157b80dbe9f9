package generic

// =============================================================================
// DISTRIBUTION - Classified worked minutes
// =============================================================================

// Distribution splits worked minutes into six mutually exclusive buckets.
// On a Sunday or holiday only the Dominical buckets are used.
type Distribution struct {
	OrdinaryDay    int
	OrdinaryNight  int
	OvertimeDay    int
	OvertimeNight  int
	DominicalDay   int
	DominicalNight int
}

// Total is the sum of all six buckets.
func (d Distribution) Total() int {
	return d.OrdinaryDay + d.OrdinaryNight +
		d.OvertimeDay + d.OvertimeNight +
		d.DominicalDay + d.DominicalNight
}

func (d Distribution) Ordinary() int  { return d.OrdinaryDay + d.OrdinaryNight }
func (d Distribution) Overtime() int  { return d.OvertimeDay + d.OvertimeNight }
func (d Distribution) Dominical() int { return d.DominicalDay + d.DominicalNight }
func (d Distribution) Night() int     { return d.OrdinaryNight + d.OvertimeNight + d.DominicalNight }

func (d Distribution) Add(o Distribution) Distribution {
	return Distribution{
		OrdinaryDay:    d.OrdinaryDay + o.OrdinaryDay,
		OrdinaryNight:  d.OrdinaryNight + o.OrdinaryNight,
		OvertimeDay:    d.OvertimeDay + o.OvertimeDay,
		OvertimeNight:  d.OvertimeNight + o.OvertimeNight,
		DominicalDay:   d.DominicalDay + o.DominicalDay,
		DominicalNight: d.DominicalNight + o.DominicalNight,
	}
}

// =============================================================================
// SURCHARGE - Paid premium minutes
// =============================================================================

// Surcharge holds the premium minutes owed per classification. OrdinaryDay
// carries no premium so it has no bucket here. Total is the sum of the
// individually rounded buckets.
type Surcharge struct {
	NightOrdinary  int
	OvertimeDay    int
	OvertimeNight  int
	DominicalDay   int
	DominicalNight int
	Total          int
}

// Sum recomputes the total from the buckets.
func (s Surcharge) Sum() int {
	return s.NightOrdinary + s.OvertimeDay + s.OvertimeNight + s.DominicalDay + s.DominicalNight
}

func (s Surcharge) Add(o Surcharge) Surcharge {
	return Surcharge{
		NightOrdinary:  s.NightOrdinary + o.NightOrdinary,
		OvertimeDay:    s.OvertimeDay + o.OvertimeDay,
		OvertimeNight:  s.OvertimeNight + o.OvertimeNight,
		DominicalDay:   s.DominicalDay + o.DominicalDay,
		DominicalNight: s.DominicalNight + o.DominicalNight,
		Total:          s.Total + o.Total,
	}
}
