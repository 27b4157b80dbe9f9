/*
handlers.go - HTTP API handlers for the worked-time engine

PURPOSE:
  Exposes punches, dashboards, corrections and the admin tools via REST.
  Handles HTTP request/response, JSON serialization and request
  validation, and delegates everything else to the worktime package.

ENDPOINTS:
  Users:
    GET    /api/users                                  Users with punches or sessions
    POST   /api/users/{id}/punches                     Record an entry or exit punch
    GET    /api/users/{id}/active-session              Active session with live projection
    GET    /api/users/{id}/dashboard                   Today + week + month + chart
    GET    /api/users/{id}/today | week | month        Single dashboard panels
    GET    /api/users/{id}/charts?days=7               Daily series
    GET    /api/users/{id}/sessions?from=&to=          Sessions by day
    GET    /api/users/{id}/sessions/{sessionID}        Session with legal report
    POST   /api/users/{id}/sessions/{sessionID}/correct
    POST   /api/users/{id}/sessions/{sessionID}/incomplete
    GET    /api/users/{id}/integrity?from=&to=         On-demand integrity check

  Legal:
    GET    /api/legal/info?year=                       Rule table and holidays
    POST   /api/legal/validate                         Check hours against the caps
    POST   /api/legal/calculate                        Classify a pair without storing it

  Admin:
    POST   /api/admin/backfill                         Replay punches into sessions
    GET    /api/admin/backfill/runs                    Backfill history
    GET    /api/admin/integrity                        Latest scheduled reports
    POST   /api/admin/integrity/run                    Run the scheduled check now

ARCHITECTURE:
  Handler struct holds all dependencies. The lifecycle manager and the
  backfiller share one lock table, so a replayed day and a live punch of
  the same user never interleave.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Session not found
  - 409: Duplicate punch, concurrent active session (retry)
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The user id is taken from the path.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
	"github.com/warp/worktime-engine/store/sqlite"
	"github.com/warp/worktime-engine/worktime"
)

const (
	defaultChartDays     = 7
	maxChartDays         = 366
	defaultIntegrityDays = 30
	maxRunsListed        = 200
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Legal     *legal.Config
	Manager   *worktime.Manager
	Dashboard *worktime.Dashboard
	Backfill  *worktime.Backfiller
	Integrity *worktime.IntegrityValidator
	Scheduler *IntegrityScheduler

	logger      *zap.Logger
	validate    *validator.Validate
	now         func() time.Time
	concurrency int

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

type HandlerOption func(*Handler)

// WithLogger sets the logger used by the handler and the components it builds.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// WithNow replaces time.Now for "today" views and punches without a timestamp.
func WithNow(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// WithScheduler exposes a running scheduler's reports under /api/admin/integrity.
func WithScheduler(s *IntegrityScheduler) HandlerOption {
	return func(h *Handler) { h.Scheduler = s }
}

// WithBackfillConcurrency bounds how many users one backfill request replays at once.
func WithBackfillConcurrency(n int) HandlerOption {
	return func(h *Handler) { h.concurrency = n }
}

// NewHandler creates a handler and the domain components behind it.
func NewHandler(store *sqlite.Store, rules *legal.Config, opts ...HandlerOption) *Handler {
	h := &Handler{
		Store:    store,
		Legal:    rules,
		logger:   zap.NewNop(),
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.Manager = worktime.NewManager(store, rules, h.logger, worktime.WithClock(h.now))
	h.Backfill = worktime.NewBackfiller(store, rules, h.logger,
		worktime.WithRunStore(store),
		worktime.WithBackfillLocks(h.Manager.Locks()),
		worktime.WithConcurrency(h.concurrency),
		worktime.WithBackfillClock(h.now),
	)
	h.Dashboard = worktime.NewDashboard(store, rules)
	h.Integrity = worktime.NewIntegrityValidator(store, rules)
	return h
}

// newValidator reports JSON field names instead of Go field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns every user with at least one punch or session.
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.Users(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = string(u)
	}
	writeJSON(w, http.StatusOK, ids)
}

// RecordPunch records an entry or exit.
// POST /api/users/{id}/punches
func (h *Handler) RecordPunch(w http.ResponseWriter, r *http.Request) {
	var req PunchRequest
	if !h.decode(w, r, &req) {
		return
	}

	at := h.now()
	if req.Timestamp != nil {
		at = *req.Timestamp
	}
	result, err := h.Manager.Punch(r.Context(), worktime.Punch{
		UserID:         userParam(r),
		Kind:           generic.EventKind(req.Type),
		At:             at,
		Location:       req.Location,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := PunchResponse{
		Action:     string(result.Action),
		Event:      toEventDTO(result.Event),
		Opened:     toSessionDTOPtr(result.Opened),
		Closed:     toSessionDTOPtr(result.Closed),
		Compliance: result.Compliance,
	}
	if result.Aggregate != nil {
		agg := toAggregateDTO(*result.Aggregate)
		resp.Aggregate = &agg
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GetActiveSession returns the active session or null.
// GET /api/users/{id}/active-session
func (h *Handler) GetActiveSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.Manager.ActiveSession(r.Context(), userParam(r), h.now())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toActiveSessionDTO(view))
}

// =============================================================================
// DASHBOARD HANDLERS
// =============================================================================

// GetDashboard returns today, week, month and a chart in one call.
// GET /api/users/{id}/dashboard?chart_days=7
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "chart_days", defaultChartDays, 1, maxChartDays)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	s, err := h.Dashboard.Summary(r.Context(), userParam(r), days, h.now())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DashboardDTO{
		Today: toTodayDTO(s.Today),
		Week:  toPeriodSummaryDTO(s.Week),
		Month: toPeriodSummaryDTO(s.Month),
		Chart: toChartDTO(s.Chart),
	})
}

// GET /api/users/{id}/today
func (h *Handler) GetToday(w http.ResponseWriter, r *http.Request) {
	view, err := h.Dashboard.Today(r.Context(), userParam(r), h.now())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTodayDTO(view))
}

// GET /api/users/{id}/week
func (h *Handler) GetWeek(w http.ResponseWriter, r *http.Request) {
	s, err := h.Dashboard.Week(r.Context(), userParam(r), h.now())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodSummaryDTO(s))
}

// GET /api/users/{id}/month
func (h *Handler) GetMonth(w http.ResponseWriter, r *http.Request) {
	s, err := h.Dashboard.Month(r.Context(), userParam(r), h.now())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodSummaryDTO(s))
}

// GET /api/users/{id}/charts?days=7
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", defaultChartDays, 1, maxChartDays)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	chart, err := h.Dashboard.Chart(r.Context(), userParam(r), days, h.now())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChartDTO(chart))
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// ListSessions returns sessions by day. Defaults to the current week.
// GET /api/users/{id}/sessions?from=2025-03-01&to=2025-03-31
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r, generic.WeekOf(h.today()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	sessions, err := h.Dashboard.Sessions(r.Context(), userParam(r), period)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTOs(sessions))
}

// GetSession returns one session with the provisions that applied to it.
// GET /api/users/{id}/sessions/{sessionID}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, report, err := h.Dashboard.Session(r.Context(), userParam(r), sessionParam(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionDetailDTO{Session: toSessionDTO(s), Legal: report})
}

// CorrectSession replaces a session's timestamps and rebuilds its days.
// POST /api/users/{id}/sessions/{sessionID}/correct
func (h *Handler) CorrectSession(w http.ResponseWriter, r *http.Request) {
	var req CorrectRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.Manager.Correct(r.Context(), userParam(r), sessionParam(r), req.Entry, req.Exit, req.Note)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CorrectionDTO{
		Session:    toSessionDTO(result.Session),
		Aggregates: toAggregateDTOs(result.Aggregates),
	})
}

// MarkIncomplete voids an active session that will never be closed.
// POST /api/users/{id}/sessions/{sessionID}/incomplete
func (h *Handler) MarkIncomplete(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, err := h.Manager.MarkIncomplete(r.Context(), userParam(r), sessionParam(r), req.Note)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(s))
}

// CheckIntegrity audits one user. Defaults to the last 30 days.
// GET /api/users/{id}/integrity?from=&to=
func (h *Handler) CheckIntegrity(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r, generic.LastDays(h.today(), defaultIntegrityDays))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	report, err := h.Integrity.Check(r.Context(), userParam(r), period, h.now())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// LEGAL HANDLERS
// =============================================================================

// GET /api/legal/info?year=2025
func (h *Handler) GetLegalInfo(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r, "year", h.today().Year(), 1900, 2200)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLegalInfoDTO(h.Dashboard.LegalInfo(year)))
}

// ValidateHours checks arbitrary daily and weekly hours against the caps.
// POST /api/legal/validate
func (h *Handler) ValidateHours(w http.ResponseWriter, r *http.Request) {
	var req ValidateHoursRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, legal.Validate(h.Legal,
		decimal.NewFromFloat(req.DailyHours),
		decimal.NewFromFloat(req.WeeklyHours)))
}

// CalculatePreview classifies an entry/exit pair without storing anything.
// POST /api/legal/calculate
func (h *Handler) CalculatePreview(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := legal.Classify(req.Entry, req.Exit, h.Legal)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	hours := generic.Hours(c.TotalMinutes)
	resp := CalculateResponse{
		Classification: toProjectionDTO(c),
		Report:         legal.BuildReport(c, h.Legal),
		Compliance:     legal.Validate(h.Legal, hours, hours),
	}
	if req.HourlyWage != nil {
		if req.HourlyWage.IsNegative() {
			h.writeDomainError(w, r, &generic.ValidationError{Field: "hourly_wage", Reason: "must not be negative"})
			return
		}
		a := legal.SurchargeValue(c.Surcharge, *req.HourlyWage)
		resp.Amounts = &SurchargeAmountsDTO{
			NightOrdinary:  a.NightOrdinary,
			OvertimeDay:    a.OvertimeDay,
			OvertimeNight:  a.OvertimeNight,
			DominicalDay:   a.DominicalDay,
			DominicalNight: a.DominicalNight,
			Total:          a.Total,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunBackfill replays stored punches for several users. Days that fail are
// reported per user; the request itself only fails on bad input.
// POST /api/admin/backfill
func (h *Handler) RunBackfill(w http.ResponseWriter, r *http.Request) {
	var req BackfillRequest
	if !h.decode(w, r, &req) {
		return
	}
	from, err := generic.ParseDay(req.From)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	to, err := generic.ParseDay(req.To)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	period := generic.Period{Start: from, End: to}
	if err := period.Validate(); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	users := make([]generic.UserID, len(req.UserIDs))
	for i, u := range req.UserIDs {
		users[i] = generic.UserID(u)
	}
	results, err := h.Backfill.RunMany(r.Context(), users, period)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dtos := make([]BackfillResultDTO, len(results))
	for i, res := range results {
		dtos[i] = toBackfillResultDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListBackfillRuns returns recorded runs, newest first.
// GET /api/admin/backfill/runs?user_id=&limit=50
func (h *Handler) ListBackfillRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50, 1, maxRunsListed)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	runs, err := h.Backfill.Runs(r.Context(), generic.UserID(r.URL.Query().Get("user_id")), limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListIntegrityReports returns the scheduler's latest report per user.
// GET /api/admin/integrity
func (h *Handler) ListIntegrityReports(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeJSON(w, http.StatusOK, []worktime.Report{})
		return
	}
	writeJSON(w, http.StatusOK, h.Scheduler.Latest())
}

// TriggerIntegrityCheck runs the scheduled check immediately.
// POST /api/admin/integrity/run
func (h *Handler) TriggerIntegrityCheck(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "Integrity scheduler not configured", nil)
		return
	}
	reports, err := h.Scheduler.RunNow(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) today() generic.TimePoint {
	return h.Legal.DayOf(h.now())
}

func userParam(r *http.Request) generic.UserID {
	return generic.UserID(chi.URLParam(r, "id"))
}

func sessionParam(r *http.Request) generic.SessionID {
	return generic.SessionID(chi.URLParam(r, "sessionID"))
}

// decode reads a JSON body into dst and validates it. An empty body
// decodes to the zero value. Returns false after writing a 400.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// periodParam reads ?from= and ?to= over fallback.
func periodParam(r *http.Request, fallback generic.Period) (generic.Period, error) {
	p := fallback
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		d, err := generic.ParseDay(v)
		if err != nil {
			return p, err
		}
		p.Start = d
	}
	if v := q.Get("to"); v != "" {
		d, err := generic.ParseDay(v)
		if err != nil {
			return p, err
		}
		p.End = d
	}
	return p, p.Validate()
}

func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, &generic.ValidationError{Field: name, Reason: "must be an integer between " + strconv.Itoa(lo) + " and " + strconv.Itoa(hi)}
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeValidationError(w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, "Invalid input", err)
		return
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: fields})
}

// writeDomainError maps domain errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, generic.ErrDuplicatePunch):
		writeError(w, http.StatusConflict, "Punch already recorded", err)
	case errors.Is(err, generic.ErrStateConflict):
		writeError(w, http.StatusConflict, "Concurrent punch for this user, retry", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
