package legal_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
)

func hours(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// COMPLIANCE
// =============================================================================

func TestValidate_AtTheCapsIsCompliant(t *testing.T) {
	c := legal.Validate(cfg, hours("8"), hours("44"))

	assert.True(t, c.Compliant)
	assert.Empty(t, c.Violations)
	assert.Empty(t, c.Warnings)
}

func TestValidate_NoWorkIsClean(t *testing.T) {
	c := legal.Validate(cfg, decimal.Zero, decimal.Zero)

	assert.True(t, c.Compliant)
	assert.Empty(t, c.Violations)
	assert.Empty(t, c.Warnings)
}

func TestValidate_DailyExceeded(t *testing.T) {
	c := legal.Validate(cfg, hours("8.01"), decimal.Zero)

	assert.False(t, c.Compliant)
	require.Len(t, c.Violations, 1)
	assert.Equal(t, legal.DailyLimitExceeded, c.Violations[0].Code)
	assert.True(t, hours("0.01").Equal(c.Violations[0].Difference))
	assert.Empty(t, c.Warnings)
}

func TestValidate_DailyWarningOnly(t *testing.T) {
	c := legal.Validate(cfg, hours("7.5"), decimal.Zero)

	assert.True(t, c.Compliant)
	assert.Empty(t, c.Violations)
	require.Len(t, c.Warnings, 1)
	assert.Equal(t, legal.DailyLimitApproach, c.Warnings[0].Code)
}

func TestValidate_Weekly(t *testing.T) {
	exceeded := legal.Validate(cfg, hours("6"), hours("45"))
	assert.False(t, exceeded.Compliant)
	require.Len(t, exceeded.Violations, 1)
	assert.Equal(t, legal.WeeklyLimitExceeded, exceeded.Violations[0].Code)

	warned := legal.Validate(cfg, hours("6"), hours("42"))
	assert.True(t, warned.Compliant)
	require.Len(t, warned.Warnings, 1)
	assert.Equal(t, legal.WeeklyLimitApproach, warned.Warnings[0].Code)

	clean := legal.Validate(cfg, hours("6"), hours("40"))
	assert.Empty(t, clean.Warnings)

	almost := legal.Validate(cfg, hours("7.99"), hours("43.99"))
	assert.True(t, almost.Compliant)
	assert.Len(t, almost.Warnings, 2)
}

// =============================================================================
// SURCHARGES
// =============================================================================

func TestCalculateSurcharges_RoundsEachBucket(t *testing.T) {
	// 1 * 0.35 = 0.35 -> 0, 3 * 0.25 = 0.75 -> 1, 2 * 0.75 = 1.5 -> 2
	s := legal.CalculateSurcharges(generic.Distribution{OrdinaryNight: 1, OvertimeDay: 3, OvertimeNight: 2}, cfg)

	assert.Equal(t, 0, s.NightOrdinary)
	assert.Equal(t, 1, s.OvertimeDay)
	assert.Equal(t, 2, s.OvertimeNight)
	assert.Equal(t, 3, s.Total)
}

func TestCalculateSurcharges_OrdinaryDayHasNoPremium(t *testing.T) {
	s := legal.CalculateSurcharges(generic.Distribution{OrdinaryDay: 480}, cfg)
	assert.Equal(t, generic.Surcharge{}, s)
}

func TestSurchargeValue(t *testing.T) {
	// 60 premium minutes at 6000/hour = 6000
	a := legal.SurchargeValue(generic.Surcharge{OvertimeDay: 15, DominicalDay: 45, Total: 60}, decimal.NewFromInt(6000))

	assert.True(t, decimal.NewFromInt(1500).Equal(a.OvertimeDay))
	assert.True(t, decimal.NewFromInt(4500).Equal(a.DominicalDay))
	assert.True(t, decimal.NewFromInt(6000).Equal(a.Total))
}

// =============================================================================
// REPORT
// =============================================================================

func TestBuildReport(t *testing.T) {
	c := classify(t, at(2025, time.March, 10, 14, 0, 0), at(2025, time.March, 10, 23, 30, 0))
	r := legal.BuildReport(c, cfg)

	var refs []string
	for _, a := range r.Articles {
		refs = append(refs, a.Reference)
	}
	assert.Equal(t, []string{"Art. 168 CST", "Art. 159 CST", "Ley 2101 de 2021"}, refs)
	assert.True(t, r.ExceedsOrdinary)
	assert.True(t, r.AppliesSurcharge)
}

func TestBuildReport_Holiday(t *testing.T) {
	c := classify(t, at(2025, time.May, 1, 8, 0, 0), at(2025, time.May, 1, 12, 0, 0))
	r := legal.BuildReport(c, cfg)

	require.Len(t, r.Articles, 1)
	assert.Equal(t, "Art. 179 CST", r.Articles[0].Reference)
	assert.Contains(t, r.Articles[0].Title, "Día del Trabajo")
	assert.False(t, r.ExceedsOrdinary)
}
