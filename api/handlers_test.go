/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Punch recording, idempotency and request validation
- Session listing, detail, correction and voiding
- Dashboard panels and query parameter validation
- Legal info, hour validation and calculation preview
- Backfill and integrity admin endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
	"github.com/warp/worktime-engine/store/sqlite"
	"github.com/warp/worktime-engine/worktime"
)

var bogota = legal.Colombia2025().Location()

func wallClock(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, bogota)
}

// newTestServer wires a handler over an in-memory database with a fixed clock.
func newTestServer(t *testing.T, now time.Time, opts ...HandlerOption) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	opts = append([]HandlerOption{WithNow(func() time.Time { return now })}, opts...)
	h := NewHandler(store, legal.Colombia2025(), opts...)
	return h, NewRouter(h, []string{"http://localhost:5173"})
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func punch(t *testing.T, router http.Handler, user, kind string, at time.Time) PunchResponse {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/users/"+user+"/punches", map[string]any{
		"type":      kind,
		"timestamp": at.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeAs[PunchResponse](t, rec)
}

// =============================================================================
// PUNCHES
// =============================================================================

func TestRecordPunch_EntryThenExit(t *testing.T) {
	// GIVEN: Entry Monday 08:00 and exit 17:00
	// WHEN: Both punches are posted
	// THEN: The exit closes a 540-minute session with one hour of daytime overtime

	_, router := newTestServer(t, wallClock(10, 17, 0))

	entry := punch(t, router, "emp-001", "entry", wallClock(10, 8, 0))
	assert.Equal(t, string(worktime.ActionEntry), entry.Action)
	require.NotNil(t, entry.Opened)
	assert.Equal(t, "active", entry.Opened.Status)
	assert.Nil(t, entry.Closed)

	exit := punch(t, router, "emp-001", "exit", wallClock(10, 17, 0))
	assert.Equal(t, string(worktime.ActionExit), exit.Action)
	require.NotNil(t, exit.Closed)
	assert.Equal(t, 540, exit.Closed.TotalMinutes)
	assert.Equal(t, "09:00", exit.Closed.TotalHours)
	assert.Equal(t, 480, exit.Closed.Distribution.OrdinaryDay)
	assert.Equal(t, 60, exit.Closed.Distribution.OvertimeDay)
	assert.Equal(t, 15, exit.Closed.Surcharge.Total)
	require.NotNil(t, exit.Aggregate)
	assert.Equal(t, "2025-03-10", exit.Aggregate.Day)
	assert.Equal(t, 540, exit.Aggregate.TotalMinutes)
	require.NotNil(t, exit.Compliance)
	assert.False(t, exit.Compliance.Compliant)
	require.Len(t, exit.Compliance.Violations, 1)
	assert.Equal(t, legal.DailyLimitExceeded, exit.Compliance.Violations[0].Code)
}

func TestRecordPunch_TimestampDefaultsToNow(t *testing.T) {
	now := wallClock(10, 8, 15)
	_, router := newTestServer(t, now)

	rec := do(t, router, http.MethodPost, "/api/users/emp-001/punches", map[string]any{"type": "entry"})

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeAs[PunchResponse](t, rec)
	assert.Equal(t, now.UTC().Format(time.RFC3339), resp.Event.Timestamp)
}

func TestRecordPunch_DuplicateKeyIsConflict(t *testing.T) {
	_, router := newTestServer(t, wallClock(10, 8, 0))
	body := map[string]any{"type": "entry", "idempotency_key": "tablet-7-0001"}

	first := do(t, router, http.MethodPost, "/api/users/emp-001/punches", body)
	second := do(t, router, http.MethodPost, "/api/users/emp-001/punches", body)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "Punch already recorded", decodeAs[ErrorResponse](t, second).Error)
}

func TestRecordPunch_RejectsInvalidBodies(t *testing.T) {
	_, router := newTestServer(t, wallClock(10, 8, 0))

	tests := []struct {
		name   string
		body   any
		fields map[string]string
	}{
		{"unknown type", map[string]any{"type": "lunch"}, map[string]string{"type": "oneof"}},
		{"empty body", nil, map[string]string{"type": "required"}},
		{"malformed json", `{"type":`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/users/emp-001/punches", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			if tt.fields != nil {
				assert.Equal(t, tt.fields, decodeAs[ErrorResponse](t, rec).Fields)
			}
		})
	}
}

func TestRecordPunch_ExitBeforeEntryIsBadRequest(t *testing.T) {
	_, router := newTestServer(t, wallClock(10, 9, 0))
	punch(t, router, "emp-001", "entry", wallClock(10, 9, 0))

	rec := do(t, router, http.MethodPost, "/api/users/emp-001/punches", map[string]any{
		"type":      "exit",
		"timestamp": wallClock(10, 8, 0).Format(time.RFC3339),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetActiveSession(t *testing.T) {
	_, router := newTestServer(t, wallClock(10, 10, 30))

	rec := do(t, router, http.MethodGet, "/api/users/emp-001/active-session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "null", rec.Body.String())

	punch(t, router, "emp-001", "entry", wallClock(10, 8, 0))
	rec = do(t, router, http.MethodGet, "/api/users/emp-001/active-session", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	active := decodeAs[ActiveSessionDTO](t, rec)
	assert.Equal(t, 150, active.ElapsedMinutes)
	assert.Equal(t, "02:30", active.Elapsed)
	require.NotNil(t, active.Projection)
	assert.Equal(t, 150, active.Projection.Distribution.OrdinaryDay)
}

func TestListUsers(t *testing.T) {
	_, router := newTestServer(t, wallClock(10, 9, 0))
	punch(t, router, "emp-002", "entry", wallClock(10, 8, 0))
	punch(t, router, "emp-001", "entry", wallClock(10, 8, 0))

	rec := do(t, router, http.MethodGet, "/api/users", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"emp-001", "emp-002"}, decodeAs[[]string](t, rec))
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestSessions_ListAndDetail(t *testing.T) {
	_, router := newTestServer(t, wallClock(12, 9, 0))
	punch(t, router, "emp-001", "entry", wallClock(10, 8, 0))
	closed := punch(t, router, "emp-001", "exit", wallClock(10, 17, 0)).Closed
	punch(t, router, "emp-001", "entry", wallClock(11, 22, 0))
	punch(t, router, "emp-001", "exit", wallClock(11, 23, 0))

	rec := do(t, router, http.MethodGet, "/api/users/emp-001/sessions?from=2025-03-10&to=2025-03-10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decodeAs[[]SessionDTO](t, rec)
	require.Len(t, sessions, 1)
	assert.Equal(t, closed.ID, sessions[0].ID)

	// default period is the current week
	rec = do(t, router, http.MethodGet, "/api/users/emp-001/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]SessionDTO](t, rec), 2)

	rec = do(t, router, http.MethodGet, "/api/users/emp-001/sessions/"+closed.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeAs[SessionDetailDTO](t, rec)
	assert.Equal(t, 540, detail.Session.TotalMinutes)
	require.NotNil(t, detail.Legal)
	assert.True(t, detail.Legal.ExceedsOrdinary)
	assert.NotEmpty(t, detail.Legal.Articles)
}

func TestSessions_NotFoundAndBadPeriod(t *testing.T) {
	_, router := newTestServer(t, wallClock(12, 9, 0))

	rec := do(t, router, http.MethodGet, "/api/users/emp-001/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/users/emp-001/sessions?from=2025-03-12&to=2025-03-10", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/users/emp-001/sessions?from=12/03/2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCorrectSession(t *testing.T) {
	// GIVEN: A 9-hour Monday session
	// WHEN: Corrected to 08:00-16:00
	// THEN: 480 minutes, source corrected, Monday aggregate rebuilt

	_, router := newTestServer(t, wallClock(11, 9, 0))
	punch(t, router, "emp-001", "entry", wallClock(10, 8, 0))
	closed := punch(t, router, "emp-001", "exit", wallClock(10, 17, 0)).Closed

	rec := do(t, router, http.MethodPost, "/api/users/emp-001/sessions/"+closed.ID+"/correct", map[string]any{
		"entry": wallClock(10, 8, 0).Format(time.RFC3339),
		"exit":  wallClock(10, 16, 0).Format(time.RFC3339),
		"note":  "left early, approved by supervisor",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeAs[CorrectionDTO](t, rec)
	assert.Equal(t, 480, result.Session.TotalMinutes)
	assert.Equal(t, "corrected", result.Session.Source)
	require.Len(t, result.Aggregates, 1)
	assert.Equal(t, 480, result.Aggregates[0].TotalMinutes)
	assert.Equal(t, 2, result.Aggregates[0].Revision)
}

func TestCorrectSession_RequiresBothTimestamps(t *testing.T) {
	_, router := newTestServer(t, wallClock(11, 9, 0))

	rec := do(t, router, http.MethodPost, "/api/users/emp-001/sessions/any/correct", map[string]any{
		"entry": wallClock(10, 8, 0).Format(time.RFC3339),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{"exit": "required"}, decodeAs[ErrorResponse](t, rec).Fields)
}

func TestMarkIncomplete(t *testing.T) {
	_, router := newTestServer(t, wallClock(12, 9, 0))
	opened := punch(t, router, "emp-001", "entry", wallClock(10, 8, 0)).Opened

	rec := do(t, router, http.MethodPost, "/api/users/emp-001/sessions/"+opened.ID+"/incomplete", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "incomplete", decodeAs[SessionDTO](t, rec).Status)

	// a second time the session is no longer active
	rec = do(t, router, http.MethodPost, "/api/users/emp-001/sessions/"+opened.ID+"/incomplete", NoteRequest{Note: "again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// DASHBOARD
// =============================================================================

func TestDashboardEndpoints(t *testing.T) {
	_, router := newTestServer(t, wallClock(12, 10, 0))
	punch(t, router, "emp-001", "entry", wallClock(10, 8, 0))
	punch(t, router, "emp-001", "exit", wallClock(10, 17, 0))
	punch(t, router, "emp-001", "entry", wallClock(12, 8, 0))

	rec := do(t, router, http.MethodGet, "/api/users/emp-001/dashboard?chart_days=14", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decodeAs[DashboardDTO](t, rec)
	assert.Equal(t, 540, dash.Week.TotalMinutes)
	assert.Equal(t, "2025-03-09", dash.Week.From)
	assert.Equal(t, 540, dash.Month.TotalMinutes)
	assert.Len(t, dash.Chart.Labels, 14)
	require.NotNil(t, dash.Today.Active)
	assert.Equal(t, 120, dash.Today.Active.ElapsedMinutes)

	rec = do(t, router, http.MethodGet, "/api/users/emp-001/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-03-12", decodeAs[TodayDTO](t, rec).Day)

	rec = do(t, router, http.MethodGet, "/api/users/emp-001/week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	week := decodeAs[PeriodSummaryDTO](t, rec)
	assert.Equal(t, 1, week.DaysWorked)
	assert.True(t, decimal.NewFromInt(9).Equal(week.AverageHours))

	rec = do(t, router, http.MethodGet, "/api/users/emp-001/month", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-03-31", decodeAs[PeriodSummaryDTO](t, rec).To)

	rec = do(t, router, http.MethodGet, "/api/users/emp-001/charts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chart := decodeAs[ChartDTO](t, rec)
	require.Len(t, chart.Hours, 7)
	assert.True(t, decimal.NewFromInt(9).Equal(chart.Hours[4]))
}

func TestChart_RejectsOutOfRangeDays(t *testing.T) {
	_, router := newTestServer(t, wallClock(12, 10, 0))

	for _, q := range []string{"0", "367", "week"} {
		rec := do(t, router, http.MethodGet, "/api/users/emp-001/charts?days="+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "days=%s", q)
	}
}

// =============================================================================
// LEGAL
// =============================================================================

func TestGetLegalInfo(t *testing.T) {
	_, router := newTestServer(t, wallClock(12, 10, 0))

	rec := do(t, router, http.MethodGet, "/api/legal/info?year=2025", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeAs[LegalInfoDTO](t, rec)
	assert.Equal(t, "America/Bogota", info.TimeZone)
	assert.Equal(t, [2]int{6, 22}, info.DayWindow)
	assert.Equal(t, "35", info.Surcharges["night_ordinary"])
	assert.Contains(t, info.Holidays, HolidayDTO{Date: "2025-03-24", Name: "San José", Kind: string(generic.HolidayMondayShifted)})
}

func TestValidateHours(t *testing.T) {
	_, router := newTestServer(t, wallClock(12, 10, 0))

	tests := []struct {
		name       string
		daily      float64
		weekly     float64
		compliant  bool
		violations []legal.Code
		warnings   []legal.Code
	}{
		{"exactly at the caps", 8, 44, true, nil, nil},
		{"just over the daily cap", 8.01, 0, false, []legal.Code{legal.DailyLimitExceeded}, nil},
		{"approaching the daily cap", 7.5, 0, true, nil, []legal.Code{legal.DailyLimitApproach}},
		{"weekly over", 8, 45, false, []legal.Code{legal.WeeklyLimitExceeded}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/legal/validate", ValidateHoursRequest{DailyHours: tt.daily, WeeklyHours: tt.weekly})

			require.Equal(t, http.StatusOK, rec.Code)
			c := decodeAs[legal.Compliance](t, rec)
			assert.Equal(t, tt.compliant, c.Compliant)
			assert.Equal(t, tt.violations, codes(c.Violations))
			assert.Equal(t, tt.warnings, codes(c.Warnings))
		})
	}

	rec := do(t, router, http.MethodPost, "/api/legal/validate", ValidateHoursRequest{DailyHours: 25})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func codes(issues []legal.Issue) []legal.Code {
	var out []legal.Code
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func TestCalculatePreview(t *testing.T) {
	// GIVEN: Monday 08:00-17:00 at 12,000 per hour
	// THEN: 60 overtime minutes, 15 surcharge minutes worth 3,000

	h, router := newTestServer(t, wallClock(12, 10, 0))

	rec := do(t, router, http.MethodPost, "/api/legal/calculate", map[string]any{
		"entry":       wallClock(10, 8, 0).Format(time.RFC3339),
		"exit":        wallClock(10, 17, 0).Format(time.RFC3339),
		"hourly_wage": "12000",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeAs[CalculateResponse](t, rec)
	assert.Equal(t, 540, resp.Classification.TotalMinutes)
	assert.Equal(t, 60, resp.Classification.Distribution.OvertimeDay)
	assert.True(t, resp.Report.AppliesSurcharge)
	require.NotNil(t, resp.Amounts)
	assert.True(t, decimal.NewFromInt(3000).Equal(resp.Amounts.OvertimeDay))
	assert.True(t, decimal.NewFromInt(3000).Equal(resp.Amounts.Total))

	// nothing was stored
	users, err := h.Store.Users(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestCalculatePreview_ExitMustFollowEntry(t *testing.T) {
	_, router := newTestServer(t, wallClock(12, 10, 0))

	rec := do(t, router, http.MethodPost, "/api/legal/calculate", map[string]any{
		"entry": wallClock(10, 17, 0).Format(time.RFC3339),
		"exit":  wallClock(10, 8, 0).Format(time.RFC3339),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{"exit": "gtfield"}, decodeAs[ErrorResponse](t, rec).Fields)
}

// =============================================================================
// ADMIN
// =============================================================================

func seedRawPunches(t *testing.T, h *Handler, user generic.UserID, punches ...generic.AttendanceEvent) {
	t.Helper()
	log := generic.NewPunchLog(h.Store)
	for _, ev := range punches {
		ev.UserID = user
		_, err := log.Record(context.Background(), ev)
		require.NoError(t, err)
	}
}

func TestRunBackfill(t *testing.T) {
	// GIVEN: Raw punches for two users and no sessions
	// WHEN: Backfilling the week
	// THEN: One result per user in request order, runs recorded

	h, router := newTestServer(t, wallClock(14, 9, 0))
	seedRawPunches(t, h, "emp-001",
		generic.AttendanceEvent{Kind: generic.EventEntry, At: wallClock(10, 8, 0)},
		generic.AttendanceEvent{Kind: generic.EventExit, At: wallClock(10, 16, 0)},
	)
	seedRawPunches(t, h, "emp-002",
		generic.AttendanceEvent{Kind: generic.EventExit, At: wallClock(11, 18, 0)},
	)

	rec := do(t, router, http.MethodPost, "/api/admin/backfill", BackfillRequest{
		UserIDs: []string{"emp-002", "emp-001"},
		From:    "2025-03-10",
		To:      "2025-03-14",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	results := decodeAs[[]BackfillResultDTO](t, rec)
	require.Len(t, results, 2)
	assert.Equal(t, "emp-002", results[0].UserID)
	assert.Equal(t, "emp-001", results[1].UserID)
	for _, r := range results {
		assert.Equal(t, string(generic.RunCompleted), r.Status)
		assert.Equal(t, 1, r.SessionsCreated)
		assert.Empty(t, r.Errors)
	}

	rec = do(t, router, http.MethodGet, "/api/users/emp-002/sessions?from=2025-03-11&to=2025-03-11", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decodeAs[[]SessionDTO](t, rec)
	require.Len(t, sessions, 1)
	assert.Equal(t, "migrated", sessions[0].Source)
	assert.True(t, sessions[0].Flags.EntryEstimated)
	assert.Equal(t, 480, sessions[0].TotalMinutes)

	rec = do(t, router, http.MethodGet, "/api/admin/backfill/runs?user_id=emp-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decodeAs[[]RunDTO](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, "emp-001", runs[0].UserID)
	assert.NotNil(t, runs[0].CompletedAt)
}

func TestRunBackfill_RejectsBadInput(t *testing.T) {
	_, router := newTestServer(t, wallClock(14, 9, 0))

	tests := []struct {
		name string
		body BackfillRequest
	}{
		{"no users", BackfillRequest{From: "2025-03-10", To: "2025-03-14"}},
		{"blank user", BackfillRequest{UserIDs: []string{""}, From: "2025-03-10", To: "2025-03-14"}},
		{"bad date", BackfillRequest{UserIDs: []string{"emp-001"}, From: "10/03/2025", To: "2025-03-14"}},
		{"inverted period", BackfillRequest{UserIDs: []string{"emp-001"}, From: "2025-03-14", To: "2025-03-10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/admin/backfill", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCheckIntegrity_PerUser(t *testing.T) {
	_, router := newTestServer(t, wallClock(12, 9, 0))
	punch(t, router, "emp-001", "entry", wallClock(10, 8, 0))

	rec := do(t, router, http.MethodGet, "/api/users/emp-001/integrity", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeAs[worktime.Report](t, rec)
	assert.Equal(t, worktime.StatusOK, report.Status)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, worktime.FindingStaleActive, report.Findings[0].Kind)
}

func TestIntegrityReports_WithoutScheduler(t *testing.T) {
	_, router := newTestServer(t, wallClock(12, 9, 0))

	rec := do(t, router, http.MethodGet, "/api/admin/integrity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/admin/integrity/run", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIntegrityReports_RunNow(t *testing.T) {
	now := wallClock(12, 9, 0)
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer store.Close()

	rules := legal.Colombia2025()
	scheduler := NewIntegrityScheduler(store, rules, nil)
	scheduler.now = func() time.Time { return now }
	h := NewHandler(store, rules, WithNow(func() time.Time { return now }), WithScheduler(scheduler))
	router := NewRouter(h, nil)

	punch(t, router, "emp-001", "entry", wallClock(10, 8, 0))
	punch(t, router, "emp-002", "entry", wallClock(12, 8, 0))

	rec := do(t, router, http.MethodPost, "/api/admin/integrity/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]worktime.Report](t, rec), 2)

	rec = do(t, router, http.MethodGet, "/api/admin/integrity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reports := decodeAs[[]worktime.Report](t, rec)
	require.Len(t, reports, 2)
	assert.Equal(t, generic.UserID("emp-001"), reports[0].UserID)
	assert.Equal(t, 1, reports[0].Warnings)
	assert.Zero(t, reports[1].Warnings)
}

func TestIndex(t *testing.T) {
	_, router := newTestServer(t, wallClock(12, 9, 0))

	rec := do(t, router, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "worktime-engine")
}
