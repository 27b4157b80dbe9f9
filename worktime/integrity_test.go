package worktime_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/worktime"
)

func findingKinds(r worktime.Report) []worktime.FindingKind {
	kinds := make([]worktime.FindingKind, 0, len(r.Findings))
	for _, f := range r.Findings {
		kinds = append(kinds, f.Kind)
	}
	return kinds
}

func TestIntegrity_CleanDataIsCorrect(t *testing.T) {
	// GIVEN: Sessions recorded through the manager only
	// WHEN: Checking the week
	// THEN: No findings

	m, mem := newManager(at(2025, time.March, 10, 17, 0))
	mustPunch(t, m, entryPunch(worker, at(2025, time.March, 10, 8, 0)))
	mustPunch(t, m, exitPunch(worker, at(2025, time.March, 10, 17, 0)))
	mustPunch(t, m, exitPunch(worker, at(2025, time.March, 11, 18, 0)))

	report, err := worktime.NewIntegrityValidator(mem, cfg).Check(context.Background(), worker, march(9, 15), at(2025, time.March, 11, 19, 0))

	require.NoError(t, err)
	assert.Equal(t, worktime.StatusOK, report.Status)
	assert.Empty(t, report.Findings)
	assert.Equal(t, 2, report.SessionsChecked)
	assert.Equal(t, 2, report.AggregatesChecked)
}

func TestIntegrity_StaleActiveSessionIsAWarning(t *testing.T) {
	m, mem := newManager(at(2025, time.March, 10, 8, 0))
	opened := mustPunch(t, m, entryPunch(worker, at(2025, time.March, 10, 8, 0))).Opened

	report, err := worktime.NewIntegrityValidator(mem, cfg).Check(context.Background(), worker, march(12, 12), at(2025, time.March, 12, 9, 0))

	require.NoError(t, err)
	assert.Equal(t, worktime.StatusOK, report.Status)
	require.Len(t, report.Findings, 1)
	f := report.Findings[0]
	assert.Equal(t, worktime.FindingStaleActive, f.Kind)
	assert.Equal(t, worktime.SeverityWarning, f.Severity)
	assert.Equal(t, opened.ID, f.SessionID)
	assert.Equal(t, 1, report.Warnings)
	assert.Contains(t, f.Message, "49:00")
}

func TestIntegrity_RecentActiveSessionIsFine(t *testing.T) {
	m, mem := newManager(at(2025, time.March, 10, 8, 0))
	mustPunch(t, m, entryPunch(worker, at(2025, time.March, 10, 8, 0)))

	report, err := worktime.NewIntegrityValidator(mem, cfg).Check(context.Background(), worker, march(10, 10), at(2025, time.March, 10, 20, 0))

	require.NoError(t, err)
	assert.Empty(t, report.Findings)
}

func TestIntegrity_OrphanedAggregate(t *testing.T) {
	// GIVEN: An aggregate holding 300 minutes on a day without sessions
	// THEN: Reported as an error

	_, mem := newManager(at(2025, time.March, 10, 8, 0))
	require.NoError(t, mem.SaveAggregate(context.Background(), generic.DailyAggregate{
		UserID: worker, Day: day(2025, time.March, 10), TotalMinutes: 300, Revision: 1,
	}))

	report, err := worktime.NewIntegrityValidator(mem, cfg).Check(context.Background(), worker, march(10, 10), at(2025, time.March, 10, 20, 0))

	require.NoError(t, err)
	assert.Equal(t, worktime.StatusWithErrors, report.Status)
	assert.Equal(t, []worktime.FindingKind{worktime.FindingOrphanedAggregate}, findingKinds(report))
	assert.Equal(t, 1, report.Errors)
}

func TestIntegrity_ManualEditIsDetected(t *testing.T) {
	// GIVEN: A completed session whose total was edited outside the pipeline
	// WHEN: Checking the day
	// THEN: Duration drift, bucket mismatch and aggregate drift are reported

	m, mem := newManager(at(2025, time.March, 10, 17, 0))
	mustPunch(t, m, entryPunch(worker, at(2025, time.March, 10, 8, 0)))
	closed := mustPunch(t, m, exitPunch(worker, at(2025, time.March, 10, 17, 0))).Closed

	edited := *closed
	edited.TotalMinutes = 600
	require.NoError(t, mem.SaveSession(context.Background(), edited))

	report, err := worktime.NewIntegrityValidator(mem, cfg).Check(context.Background(), worker, march(10, 10), at(2025, time.March, 10, 18, 0))

	require.NoError(t, err)
	assert.Equal(t, worktime.StatusWithErrors, report.Status)
	assert.ElementsMatch(t, []worktime.FindingKind{
		worktime.FindingCalculationDrift,
		worktime.FindingBucketMismatch,
		worktime.FindingAggregateDrift,
	}, findingKinds(report))
}

func TestIntegrity_ToleratesOneMinute(t *testing.T) {
	m, mem := newManager(at(2025, time.March, 10, 17, 0))
	mustPunch(t, m, entryPunch(worker, at(2025, time.March, 10, 8, 0)))
	closed := mustPunch(t, m, exitPunch(worker, at(2025, time.March, 10, 17, 0))).Closed

	edited := *closed
	edited.TotalMinutes = 541
	edited.Distribution.OvertimeDay++
	require.NoError(t, mem.SaveSession(context.Background(), edited))

	v := worktime.NewIntegrityValidator(mem, cfg)
	report, err := v.Check(context.Background(), worker, march(10, 10), at(2025, time.March, 10, 18, 0))

	require.NoError(t, err)
	assert.NotContains(t, findingKinds(report), worktime.FindingCalculationDrift)
}

func TestIntegrity_RejectsInvalidPeriod(t *testing.T) {
	_, mem := newManager(at(2025, time.March, 10, 8, 0))

	_, err := worktime.NewIntegrityValidator(mem, cfg).Check(context.Background(), worker,
		generic.Period{Start: day(2025, time.March, 10), End: day(2025, time.March, 9)}, at(2025, time.March, 10, 8, 0))

	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}
