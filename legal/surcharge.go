package legal

import (
	"github.com/shopspring/decimal"

	"github.com/warp/worktime-engine/generic"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// SURCHARGE CALCULATOR
// =============================================================================

// CalculateSurcharges converts classified minutes into premium minutes.
// Each bucket is rounded on its own (half away from zero) and the total is
// the sum of the rounded buckets. OrdinaryDay carries no premium.
func CalculateSurcharges(d generic.Distribution, cfg *Config) generic.Surcharge {
	p := cfg.Surcharges
	s := generic.Surcharge{
		NightOrdinary:  premium(d.OrdinaryNight, p.NightOrdinary),
		OvertimeDay:    premium(d.OvertimeDay, p.OvertimeDay),
		OvertimeNight:  premium(d.OvertimeNight, p.OvertimeNight),
		DominicalDay:   premium(d.DominicalDay, p.DominicalDay),
		DominicalNight: premium(d.DominicalNight, p.DominicalNight),
	}
	s.Total = s.Sum()
	return s
}

func premium(minutes int, pct decimal.Decimal) int {
	if minutes == 0 {
		return 0
	}
	return int(decimal.NewFromInt(int64(minutes)).Mul(pct).Div(hundred).Round(0).IntPart())
}

// =============================================================================
// MONETARY VALUE
// =============================================================================

// SurchargeAmounts is the money owed per surcharge bucket.
type SurchargeAmounts struct {
	NightOrdinary  decimal.Decimal
	OvertimeDay    decimal.Decimal
	OvertimeNight  decimal.Decimal
	DominicalDay   decimal.Decimal
	DominicalNight decimal.Decimal
	Total          decimal.Decimal
}

// SurchargeValue prices premium minutes at hourlyWage. Each bucket is
// rounded to whole currency units and the total is their sum.
func SurchargeValue(s generic.Surcharge, hourlyWage decimal.Decimal) SurchargeAmounts {
	perMinute := hourlyWage.Div(decimal.NewFromInt(60))
	value := func(minutes int) decimal.Decimal {
		return decimal.NewFromInt(int64(minutes)).Mul(perMinute).Round(0)
	}
	a := SurchargeAmounts{
		NightOrdinary:  value(s.NightOrdinary),
		OvertimeDay:    value(s.OvertimeDay),
		OvertimeNight:  value(s.OvertimeNight),
		DominicalDay:   value(s.DominicalDay),
		DominicalNight: value(s.DominicalNight),
	}
	a.Total = a.NightOrdinary.Add(a.OvertimeDay).Add(a.OvertimeNight).Add(a.DominicalDay).Add(a.DominicalNight)
	return a
}
