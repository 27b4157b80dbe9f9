package worktime_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
	"github.com/warp/worktime-engine/worktime"
)

// dashboardFixture records Monday 08:00-17:00, Tuesday 22:00-23:00 and an
// entry on Wednesday 08:00 still active.
func dashboardFixture(t *testing.T) (*worktime.Dashboard, generic.SessionID) {
	t.Helper()
	m, mem := newManager(at(2025, time.March, 12, 8, 0))
	mustPunch(t, m, entryPunch(worker, at(2025, time.March, 10, 8, 0)))
	monday := mustPunch(t, m, exitPunch(worker, at(2025, time.March, 10, 17, 0))).Closed
	mustPunch(t, m, entryPunch(worker, at(2025, time.March, 11, 22, 0)))
	mustPunch(t, m, exitPunch(worker, at(2025, time.March, 11, 23, 0)))
	mustPunch(t, m, entryPunch(worker, at(2025, time.March, 12, 8, 0)))
	return worktime.NewDashboard(mem, cfg), monday.ID
}

func TestDashboard_Today(t *testing.T) {
	// GIVEN: An active session since 08:00 and nothing closed today
	// WHEN: Asking for today at 10:00
	// THEN: An empty aggregate plus the active session with 2h elapsed

	d, _ := dashboardFixture(t)

	view, err := d.Today(context.Background(), worker, at(2025, time.March, 12, 10, 0))

	require.NoError(t, err)
	assert.Equal(t, "2025-03-12", view.Day.String())
	assert.Zero(t, view.Aggregate.TotalMinutes)
	require.NotNil(t, view.Active)
	assert.Equal(t, 120, view.Active.ElapsedMinutes)
	assert.Equal(t, "02:00", view.Active.Elapsed)
	assert.True(t, view.Compliance.Compliant)
}

func TestDashboard_Week(t *testing.T) {
	d, _ := dashboardFixture(t)

	week, err := d.Week(context.Background(), worker, at(2025, time.March, 12, 10, 0))

	require.NoError(t, err)
	assert.Equal(t, "2025-03-09", week.Period.Start.String())
	assert.Equal(t, "2025-03-15", week.Period.End.String())
	assert.Equal(t, 600, week.TotalMinutes)
	assert.Equal(t, 60, week.OvertimeMinutes)
	assert.Equal(t, 60, week.NightMinutes)
	assert.Equal(t, 2, week.DaysWorked)
	assert.True(t, decimal.NewFromInt(5).Equal(week.AverageHours))
	assert.Equal(t, 15+21, week.SurchargeMinutes)
	assert.False(t, week.Compliance.Compliant)
	require.Len(t, week.Compliance.Violations, 1)
	assert.Equal(t, legal.DailyLimitExceeded, week.Compliance.Violations[0].Code)
}

func TestDashboard_Month(t *testing.T) {
	d, _ := dashboardFixture(t)

	month, err := d.Month(context.Background(), worker, at(2025, time.March, 12, 10, 0))

	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", month.Period.Start.String())
	assert.Equal(t, "2025-03-31", month.Period.End.String())
	assert.Equal(t, 600, month.TotalMinutes)
}

func TestDashboard_ChartFillsMissingDays(t *testing.T) {
	// GIVEN: Work on Monday and Tuesday only
	// WHEN: Charting the last 7 days ending Wednesday
	// THEN: 7 points, zero on days without aggregates

	d, _ := dashboardFixture(t)

	chart, err := d.Chart(context.Background(), worker, 7, at(2025, time.March, 12, 10, 0))

	require.NoError(t, err)
	require.Len(t, chart.Labels, 7)
	require.Len(t, chart.Hours, 7)
	assert.Equal(t, "2025-03-06", chart.Labels[0])
	assert.Equal(t, "2025-03-12", chart.Labels[6])
	assert.True(t, decimal.NewFromInt(9).Equal(chart.Hours[4]))
	assert.True(t, decimal.NewFromInt(1).Equal(chart.Overtime[4]))
	assert.True(t, decimal.NewFromInt(1).Equal(chart.Hours[5]))
	for _, i := range []int{0, 1, 2, 3, 6} {
		assert.True(t, chart.Hours[i].IsZero(), "day %s", chart.Labels[i])
	}
}

func TestDashboard_Summary(t *testing.T) {
	d, _ := dashboardFixture(t)

	s, err := d.Summary(context.Background(), worker, 30, at(2025, time.March, 12, 10, 0))

	require.NoError(t, err)
	assert.NotNil(t, s.Today.Active)
	assert.Equal(t, 600, s.Week.TotalMinutes)
	assert.Equal(t, 600, s.Month.TotalMinutes)
	assert.Len(t, s.Chart.Labels, 30)
}

func TestDashboard_SessionWithReport(t *testing.T) {
	d, mondayID := dashboardFixture(t)

	s, report, err := d.Session(context.Background(), worker, mondayID)

	require.NoError(t, err)
	assert.Equal(t, 540, s.TotalMinutes)
	require.NotNil(t, report)
	assert.True(t, report.ExceedsOrdinary)
	assert.True(t, report.AppliesSurcharge)
	assert.NotEmpty(t, report.Articles)

	_, _, err = d.Session(context.Background(), "emp-999", mondayID)
	assert.True(t, generic.IsNotFound(err))
}

func TestDashboard_SessionsListsPeriod(t *testing.T) {
	d, _ := dashboardFixture(t)

	sessions, err := d.Sessions(context.Background(), worker, march(10, 11))

	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].Entry.Before(sessions[1].Entry))
}

func TestDashboard_LegalInfo(t *testing.T) {
	d, _ := dashboardFixture(t)

	info := d.LegalInfo(2025)

	assert.Equal(t, [2]int{6, 22}, info.DayWindow)
	assert.Equal(t, [2]int{22, 6}, info.NightWindow)
	assert.True(t, decimal.NewFromInt(8).Equal(info.DailyOrdinaryHours))
	assert.True(t, decimal.NewFromInt(44).Equal(info.WeeklyOrdinaryHours))
	assert.NotEmpty(t, info.Holidays)
	assert.Equal(t, "America/Bogota", info.TimeZone)
}
