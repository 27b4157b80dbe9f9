/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Tests that each scenario leaves the expected state behind:
	- The scenario's user exists
	- Sessions are classified as the labor rules require
	- Weekly rollups and compliance match the scripted week

These tests double as end-to-end tests over SQLite.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktime-engine/legal"
	"github.com/warp/worktime-engine/worktime"
)

// Friday 14 March 2025, 18:00, after every scripted punch of the week.
func newScenarioServer(t *testing.T) (*Handler, http.Handler) {
	return newTestServer(t, wallClock(14, 18, 0))
}

func loadScenario(t *testing.T, router http.Handler, id string) ScenarioLoadedDTO {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeAs[ScenarioLoadedDTO](t, rec)
}

func sessionsOf(t *testing.T, router http.Handler, user, from, to string) []SessionDTO {
	t.Helper()
	rec := do(t, router, http.MethodGet, "/api/users/"+user+"/sessions?from="+from+"&to="+to, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeAs[[]SessionDTO](t, rec)
}

func TestListScenarios(t *testing.T) {
	_, router := newScenarioServer(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var ids []string
	for _, s := range decodeAs[[]ScenarioDTO](t, rec) {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"standard-week", "night-shift", "sunday-holiday", "forgotten-exit", "legacy-import"}, ids)
}

func TestScenario_StandardWeek(t *testing.T) {
	// GIVEN: Five 08:00-17:00 days
	// WHEN: Looking at the week
	// THEN: 45 hours, 5 of them overtime, daily and weekly caps exceeded

	_, router := newScenarioServer(t)
	loaded := loadScenario(t, router, "standard-week")
	assert.Equal(t, []string{"emp-001"}, loaded.Users)

	rec := do(t, router, http.MethodGet, "/api/users/emp-001/week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	week := decodeAs[PeriodSummaryDTO](t, rec)

	assert.Equal(t, 45*60, week.TotalMinutes)
	assert.Equal(t, 5*60, week.OvertimeMinutes)
	assert.Equal(t, 5*15, week.SurchargeMinutes)
	assert.Equal(t, 5, week.DaysWorked)
	assert.False(t, week.Compliance.Compliant)
	assert.ElementsMatch(t, []legal.Code{legal.DailyLimitExceeded, legal.WeeklyLimitExceeded}, codes(week.Compliance.Violations))
}

func TestScenario_NightShift(t *testing.T) {
	_, router := newScenarioServer(t)
	loadScenario(t, router, "night-shift")

	sessions := sessionsOf(t, router, "emp-002", "2025-03-10", "2025-03-14")

	require.Len(t, sessions, 4)
	for _, s := range sessions {
		assert.Equal(t, 480, s.TotalMinutes)
		assert.Equal(t, 480, s.Distribution.OrdinaryNight)
		assert.Equal(t, 168, s.Surcharge.NightOrdinary)
		assert.Equal(t, 168, s.Surcharge.Total)
	}
}

func TestScenario_SundayHoliday(t *testing.T) {
	// GIVEN: Sunday 08:00-14:00, Monday 08:00-16:00, San José 08:00-12:00
	// THEN: Sunday and the holiday are dominical, Monday is ordinary

	_, router := newScenarioServer(t)
	loadScenario(t, router, "sunday-holiday")

	sessions := sessionsOf(t, router, "emp-003", "2025-03-09", "2025-03-24")

	require.Len(t, sessions, 3)
	sunday, monday, holiday := sessions[0], sessions[1], sessions[2]

	assert.Equal(t, 360, sunday.Distribution.DominicalDay)
	assert.Equal(t, 270, sunday.Surcharge.DominicalDay)
	assert.True(t, sunday.Flags.WeekendOrHoliday)

	assert.Equal(t, 480, monday.Distribution.OrdinaryDay)
	assert.Zero(t, monday.Surcharge.Total)

	assert.Equal(t, "2025-03-24", holiday.Day)
	assert.Equal(t, 240, holiday.Distribution.DominicalDay)
	assert.Equal(t, 180, holiday.Surcharge.Total)
}

func TestScenario_ForgottenExit(t *testing.T) {
	// GIVEN: Monday without exit, Tuesday complete, Wednesday left open
	// THEN: Monday auto-closed at Tuesday 07:59 as an anomaly
	// AND: The Wednesday session is reported as stale

	_, router := newScenarioServer(t)
	loadScenario(t, router, "forgotten-exit")

	sessions := sessionsOf(t, router, "emp-004", "2025-03-10", "2025-03-12")
	require.Len(t, sessions, 3)

	monday := sessions[0]
	assert.Equal(t, "completed", monday.Status)
	assert.True(t, monday.Flags.Anomaly)
	assert.True(t, monday.Flags.ExitEstimated)
	assert.Equal(t, 23*60+59, monday.TotalMinutes)

	assert.Equal(t, 540, sessions[1].TotalMinutes)
	assert.Equal(t, "active", sessions[2].Status)

	rec := do(t, router, http.MethodGet, "/api/users/emp-004/integrity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeAs[worktime.Report](t, rec)
	var stale []string
	for _, f := range report.Findings {
		if f.Kind == worktime.FindingStaleActive {
			stale = append(stale, string(f.SessionID))
		}
	}
	assert.Equal(t, []string{sessions[2].ID}, stale)
}

func TestScenario_LegacyImport(t *testing.T) {
	// GIVEN: Raw punches with a double tap, an exit without entry,
	//        two entries then two exits, and a pending entry
	// WHEN: The scenario's backfill has run
	// THEN: Five migrated sessions and one recorded run

	_, router := newScenarioServer(t)
	loadScenario(t, router, "legacy-import")

	sessions := sessionsOf(t, router, "emp-005", "2025-03-10", "2025-03-14")

	require.Len(t, sessions, 5)
	for _, s := range sessions {
		assert.Equal(t, "migrated", s.Source)
	}
	assert.Equal(t, 570, sessions[0].TotalMinutes)
	assert.True(t, sessions[1].Flags.EntryEstimated)
	assert.Equal(t, 480, sessions[1].TotalMinutes)
	assert.True(t, sessions[2].Flags.ExitEstimated)
	assert.Equal(t, 360, sessions[3].TotalMinutes)
	assert.True(t, sessions[4].Flags.ExitEstimated)

	rec := do(t, router, http.MethodGet, "/api/admin/backfill/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decodeAs[[]RunDTO](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 5, runs[0].SessionsCreated)
}

func TestLoadScenario_ReplacesPreviousData(t *testing.T) {
	_, router := newScenarioServer(t)
	loadScenario(t, router, "standard-week")

	loaded := loadScenario(t, router, "night-shift")

	assert.Equal(t, []string{"emp-002"}, loaded.Users)
	rec := do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "night-shift", decodeAs[ScenarioDTO](t, rec).ID)
}

func TestLoadScenario_Errors(t *testing.T) {
	_, router := newScenarioServer(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "payroll-2019"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetDatabase(t *testing.T) {
	_, router := newScenarioServer(t)
	loadScenario(t, router, "standard-week")

	rec := do(t, router, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeAs[[]string](t, rec))

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "null", rec.Body.String())
}
