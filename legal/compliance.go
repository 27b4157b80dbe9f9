package legal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEGAL COMPLIANCE VALIDATOR
// =============================================================================

type Code string

const (
	DailyLimitExceeded  Code = "LIMITE_DIARIO_EXCEDIDO"
	WeeklyLimitExceeded Code = "LIMITE_SEMANAL_EXCEDIDO"
	DailyLimitApproach  Code = "APROXIMACION_LIMITE_DIARIO"
	WeeklyLimitApproach Code = "APROXIMACION_LIMITE_SEMANAL"
)

// Issue is one violation or warning.
type Issue struct {
	Code       Code            `json:"type"`
	Limit      decimal.Decimal `json:"limit"`
	Actual     decimal.Decimal `json:"actual"`
	Difference decimal.Decimal `json:"difference"`
	Message    string          `json:"message"`
}

// Compliance is returned as data. A violation never blocks a punch.
type Compliance struct {
	Compliant  bool    `json:"compliant"`
	Violations []Issue `json:"violations"`
	Warnings   []Issue `json:"warnings"`
}

// Validate checks worked hours against the caps.
//
//	daily  > cap                     violation
//	daily  in (warning, cap)         warning
//	weekly > cap                     violation
//	weekly in (warning, cap)         warning
//
// Sitting exactly on a cap is compliant and raises no warning.
func Validate(cfg *Config, dailyHours, weeklyHours decimal.Decimal) Compliance {
	c := Compliance{Compliant: true, Violations: []Issue{}, Warnings: []Issue{}}

	dailyCap := cfg.DailyCapHours()
	weeklyCap := cfg.WeeklyCapHours()
	dailyWarn := decimal.NewFromInt(int64(cfg.DailyWarningMinutes)).Div(decimal.NewFromInt(60))
	weeklyWarn := decimal.NewFromInt(int64(cfg.WeeklyWarningMinutes)).Div(decimal.NewFromInt(60))

	if dailyHours.GreaterThan(dailyCap) {
		c.Compliant = false
		c.Violations = append(c.Violations, Issue{
			Code:       DailyLimitExceeded,
			Limit:      dailyCap,
			Actual:     dailyHours,
			Difference: dailyHours.Sub(dailyCap),
			Message:    fmt.Sprintf("daily limit of %s hours exceeded", dailyCap.String()),
		})
	} else if dailyHours.GreaterThan(dailyWarn) && dailyHours.LessThan(dailyCap) {
		c.Warnings = append(c.Warnings, Issue{
			Code:    DailyLimitApproach,
			Limit:   dailyCap,
			Actual:  dailyHours,
			Message: fmt.Sprintf("approaching the daily limit of %s hours", dailyCap.String()),
		})
	}

	if weeklyHours.GreaterThan(weeklyCap) {
		c.Compliant = false
		c.Violations = append(c.Violations, Issue{
			Code:       WeeklyLimitExceeded,
			Limit:      weeklyCap,
			Actual:     weeklyHours,
			Difference: weeklyHours.Sub(weeklyCap),
			Message:    fmt.Sprintf("weekly limit of %s hours exceeded", weeklyCap.String()),
		})
	} else if weeklyHours.GreaterThan(weeklyWarn) && weeklyHours.LessThan(weeklyCap) {
		c.Warnings = append(c.Warnings, Issue{
			Code:    WeeklyLimitApproach,
			Limit:   weeklyCap,
			Actual:  weeklyHours,
			Message: fmt.Sprintf("approaching the weekly limit of %s hours", weeklyCap.String()),
		})
	}
	return c
}
