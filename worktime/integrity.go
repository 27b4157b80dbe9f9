package worktime

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
)

// =============================================================================
// INTEGRITY VALIDATOR - Read-only audit
// =============================================================================

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type FindingKind string

const (
	FindingStaleActive       FindingKind = "stale_active_session"
	FindingOrphanedAggregate FindingKind = "orphaned_aggregate"
	FindingCalculationDrift  FindingKind = "calculation_drift"
	FindingBucketMismatch    FindingKind = "bucket_sum_mismatch"
	FindingAggregateDrift    FindingKind = "aggregate_drift"
)

type ReportStatus string

const (
	StatusOK         ReportStatus = "CORRECTO"
	StatusWithErrors ReportStatus = "CON_ERRORES"
)

// Finding is one problem. Findings are never fixed automatically.
type Finding struct {
	Kind      FindingKind       `json:"type"`
	Severity  Severity          `json:"severity"`
	SessionID generic.SessionID `json:"session_id,omitempty"`
	Day       string            `json:"day,omitempty"`
	Message   string            `json:"message"`
}

type Report struct {
	UserID            generic.UserID `json:"user_id"`
	Period            generic.Period `json:"-"`
	CheckedAt         time.Time      `json:"checked_at"`
	Status            ReportStatus   `json:"status"`
	SessionsChecked   int            `json:"sessions_checked"`
	AggregatesChecked int            `json:"aggregates_checked"`
	Errors            int            `json:"errors"`
	Warnings          int            `json:"warnings"`
	Findings          []Finding      `json:"findings"`
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == SeverityError {
		r.Errors++
	} else {
		r.Warnings++
	}
}

// IntegrityValidator only reads. It needs no lock: a scan racing a punch
// can at worst report a finding that the next scan no longer sees.
type IntegrityValidator struct {
	store      generic.Store
	legal      *legal.Config
	StaleAfter time.Duration
	Tolerance  int // minutes of drift tolerated
}

func NewIntegrityValidator(store generic.Store, cfg *legal.Config) *IntegrityValidator {
	return &IntegrityValidator{store: store, legal: cfg, StaleAfter: 24 * time.Hour, Tolerance: 1}
}

// Check audits the user's sessions and aggregates in period. Stale active
// sessions are found regardless of period.
func (v *IntegrityValidator) Check(ctx context.Context, userID generic.UserID, period generic.Period, now time.Time) (Report, error) {
	if err := period.Validate(); err != nil {
		return Report{}, err
	}
	report := Report{UserID: userID, Period: period, CheckedAt: now.UTC(), Findings: []Finding{}}

	stale, err := v.store.ActiveSessionsBefore(ctx, userID, now.Add(-v.StaleAfter))
	if err != nil {
		return Report{}, fmt.Errorf("load stale sessions: %w", err)
	}
	for _, s := range stale {
		report.add(Finding{
			Kind:      FindingStaleActive,
			Severity:  SeverityWarning,
			SessionID: s.ID,
			Day:       s.Day.String(),
			Message:   fmt.Sprintf("session active since %s (%s), exit punch likely missing", s.Entry.Format(time.RFC3339), generic.FormatMinutes(s.ElapsedMinutes(now))),
		})
	}

	sessions, err := v.store.SessionsInRange(ctx, userID, period.Start, period.End)
	if err != nil {
		return Report{}, fmt.Errorf("load sessions: %w", err)
	}
	report.SessionsChecked = len(sessions)

	byDay := make(map[string][]generic.WorkSession)
	for _, s := range sessions {
		byDay[s.Day.String()] = append(byDay[s.Day.String()], s)
		if !s.IsCompleted() || s.Exit == nil {
			continue
		}
		actual := generic.MinutesBetween(s.Entry, *s.Exit)
		if diff := actual - s.TotalMinutes; diff > v.Tolerance || diff < -v.Tolerance {
			report.add(Finding{
				Kind:      FindingCalculationDrift,
				Severity:  SeverityError,
				SessionID: s.ID,
				Day:       s.Day.String(),
				Message:   fmt.Sprintf("computed duration %d min does not match stored %d min", actual, s.TotalMinutes),
			})
		}
		if s.Distribution.Total() != s.TotalMinutes {
			report.add(Finding{
				Kind:      FindingBucketMismatch,
				Severity:  SeverityError,
				SessionID: s.ID,
				Day:       s.Day.String(),
				Message:   fmt.Sprintf("buckets sum to %d min, session total is %d min", s.Distribution.Total(), s.TotalMinutes),
			})
		}
	}

	aggs, err := v.store.AggregatesInRange(ctx, userID, period.Start, period.End)
	if err != nil {
		return Report{}, fmt.Errorf("load aggregates: %w", err)
	}
	report.AggregatesChecked = len(aggs)

	for _, agg := range aggs {
		daySessions := byDay[agg.Day.String()]
		if len(daySessions) == 0 {
			if agg.TotalMinutes > 0 {
				report.add(Finding{
					Kind:     FindingOrphanedAggregate,
					Severity: SeverityError,
					Day:      agg.Day.String(),
					Message:  fmt.Sprintf("aggregate holds %d min but the day has no sessions", agg.TotalMinutes),
				})
			}
			continue
		}
		if want := Recompute(userID, agg.Day, daySessions, v.legal); !SameTotals(want, agg) {
			report.add(Finding{
				Kind:     FindingAggregateDrift,
				Severity: SeverityError,
				Day:      agg.Day.String(),
				Message:  fmt.Sprintf("stored aggregate (%d min, revision %d) differs from its sessions (%d min)", agg.TotalMinutes, agg.Revision, want.TotalMinutes),
			})
		}
	}

	report.Status = StatusOK
	if report.Errors > 0 {
		report.Status = StatusWithErrors
	}
	return report, nil
}
