/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: snake_case
  names, "HH:MM" renderings next to minute counts, dates as YYYY-MM-DD.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Punches:     PunchRequest, PunchResponse, EventDTO
  Sessions:    SessionDTO, ActiveSessionDTO, CorrectRequest, NoteRequest
  Aggregates:  AggregateDTO, PeriodSummaryDTO, TodayDTO, ChartDTO
  Legal:       LegalInfoDTO, ValidateHoursRequest, CalculateRequest
  Admin:       BackfillRequest, BackfillResultDTO, RunDTO
  Scenarios:   ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry go-playground/validator tags, checked by decode()
  in handlers.go before any domain call. Domain validation still runs
  behind it.

SEE ALSO:
  - handlers.go: Uses these types
  - worktime/dashboard.go: Source views
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/legal"
	"github.com/warp/worktime-engine/worktime"
)

// =============================================================================
// PUNCHES
// =============================================================================

// PunchRequest is one clock-in or clock-out. Timestamp defaults to now.
type PunchRequest struct {
	Type           string     `json:"type" validate:"required,oneof=entry exit"`
	Timestamp      *time.Time `json:"timestamp"`
	Location       string     `json:"location" validate:"max=200"`
	IdempotencyKey string     `json:"idempotency_key" validate:"max=128"`
}

type EventDTO struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Type           string `json:"type"`
	Timestamp      string `json:"timestamp"`
	Location       string `json:"location,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type PunchResponse struct {
	Action     string            `json:"action"`
	Event      EventDTO          `json:"event"`
	Opened     *SessionDTO       `json:"opened_session,omitempty"`
	Closed     *SessionDTO       `json:"closed_session,omitempty"`
	Aggregate  *AggregateDTO     `json:"daily_aggregate,omitempty"`
	Compliance *legal.Compliance `json:"compliance,omitempty"`
}

// =============================================================================
// SESSIONS
// =============================================================================

type DistributionDTO struct {
	OrdinaryDay    int `json:"ordinary_day"`
	OrdinaryNight  int `json:"ordinary_night"`
	OvertimeDay    int `json:"overtime_day"`
	OvertimeNight  int `json:"overtime_night"`
	DominicalDay   int `json:"dominical_day"`
	DominicalNight int `json:"dominical_night"`
}

type SurchargeDTO struct {
	NightOrdinary  int `json:"night_ordinary"`
	OvertimeDay    int `json:"overtime_day"`
	OvertimeNight  int `json:"overtime_night"`
	DominicalDay   int `json:"dominical_day"`
	DominicalNight int `json:"dominical_night"`
	Total          int `json:"total"`
}

type SessionFlagsDTO struct {
	WeekendOrHoliday bool `json:"weekend_or_holiday"`
	EntryEstimated   bool `json:"entry_estimated"`
	ExitEstimated    bool `json:"exit_estimated"`
	Anomaly          bool `json:"anomaly"`
}

type SessionDTO struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Day           string          `json:"day"`
	Entry         string          `json:"entry"`
	Exit          *string         `json:"exit"`
	Status        string          `json:"status"`
	TotalMinutes  int             `json:"total_minutes"`
	TotalHours    string          `json:"total_hours"`
	Distribution  DistributionDTO `json:"distribution"`
	Surcharge     SurchargeDTO    `json:"surcharge"`
	Flags         SessionFlagsDTO `json:"flags"`
	Source        string          `json:"source"`
	EntryLocation string          `json:"entry_location,omitempty"`
	ExitLocation  string          `json:"exit_location,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// ProjectionDTO is what an active session would classify as if it ended now.
type ProjectionDTO struct {
	Day          string          `json:"day"`
	Dominical    bool            `json:"dominical"`
	Holiday      string          `json:"holiday,omitempty"`
	TotalMinutes int             `json:"total_minutes"`
	Distribution DistributionDTO `json:"distribution"`
	Surcharge    SurchargeDTO    `json:"surcharge"`
}

type ActiveSessionDTO struct {
	Session        SessionDTO     `json:"session"`
	ElapsedMinutes int            `json:"elapsed_minutes"`
	Elapsed        string         `json:"elapsed"`
	Projection     *ProjectionDTO `json:"projection,omitempty"`
}

type SessionDetailDTO struct {
	Session SessionDTO    `json:"session"`
	Legal   *legal.Report `json:"legal_report,omitempty"`
}

// CorrectRequest replaces both timestamps of a session.
type CorrectRequest struct {
	Entry time.Time `json:"entry" validate:"required"`
	Exit  time.Time `json:"exit" validate:"required"`
	Note  string    `json:"note" validate:"max=500"`
}

type NoteRequest struct {
	Note string `json:"note" validate:"max=500"`
}

type CorrectionDTO struct {
	Session    SessionDTO     `json:"session"`
	Aggregates []AggregateDTO `json:"daily_aggregates"`
}

// =============================================================================
// AGGREGATES & DASHBOARD
// =============================================================================

type ComplianceFlagsDTO struct {
	MetEightHours     bool            `json:"met_daily_hours"`
	ExceededOrdinary  bool            `json:"exceeded_ordinary"`
	PercentCompliance decimal.Decimal `json:"percent_compliance"`
}

type AggregateDTO struct {
	Day             string             `json:"day"`
	TotalMinutes    int                `json:"total_minutes"`
	TotalHours      string             `json:"total_hours"`
	OrdinaryMinutes int                `json:"ordinary_minutes"`
	OvertimeMinutes int                `json:"overtime_minutes"`
	NightMinutes    int                `json:"night_minutes"`
	Distribution    DistributionDTO    `json:"distribution"`
	Surcharge       SurchargeDTO       `json:"surcharge"`
	FirstEntry      *string            `json:"first_entry"`
	LastExit        *string            `json:"last_exit"`
	SessionCount    int                `json:"session_count"`
	SundayOrHoliday bool               `json:"sunday_or_holiday"`
	Compliance      ComplianceFlagsDTO `json:"compliance"`
	Revision        int                `json:"revision"`
}

type TodayDTO struct {
	Day        string            `json:"day"`
	Aggregate  AggregateDTO      `json:"aggregate"`
	Active     *ActiveSessionDTO `json:"active_session"`
	Compliance legal.Compliance  `json:"compliance"`
}

type PeriodSummaryDTO struct {
	From             string           `json:"from"`
	To               string           `json:"to"`
	TotalMinutes     int              `json:"total_minutes"`
	TotalHours       string           `json:"total_hours"`
	OvertimeMinutes  int              `json:"overtime_minutes"`
	NightMinutes     int              `json:"night_minutes"`
	SurchargeMinutes int              `json:"surcharge_minutes"`
	Distribution     DistributionDTO  `json:"distribution"`
	Surcharge        SurchargeDTO     `json:"surcharge"`
	DaysWorked       int              `json:"days_worked"`
	AverageHours     decimal.Decimal  `json:"average_hours"`
	Days             []AggregateDTO   `json:"days"`
	Compliance       legal.Compliance `json:"compliance"`
}

type ChartDTO struct {
	Labels    []string          `json:"labels"`
	Hours     []decimal.Decimal `json:"hours"`
	Overtime  []decimal.Decimal `json:"overtime"`
	Surcharge []decimal.Decimal `json:"surcharge"`
}

type DashboardDTO struct {
	Today TodayDTO         `json:"today"`
	Week  PeriodSummaryDTO `json:"week"`
	Month PeriodSummaryDTO `json:"month"`
	Chart ChartDTO         `json:"chart"`
}

// =============================================================================
// LEGAL
// =============================================================================

type HolidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type LegalInfoDTO struct {
	Name                string            `json:"name"`
	TimeZone            string            `json:"time_zone"`
	DayWindow           [2]int            `json:"day_window"`
	NightWindow         [2]int            `json:"night_window"`
	DailyOrdinaryHours  decimal.Decimal   `json:"daily_ordinary_hours"`
	WeeklyOrdinaryHours decimal.Decimal   `json:"weekly_ordinary_hours"`
	Surcharges          map[string]string `json:"surcharge_percentages"`
	Holidays            []HolidayDTO      `json:"holidays"`
}

type ValidateHoursRequest struct {
	DailyHours  float64 `json:"daily_hours" validate:"gte=0,lte=24"`
	WeeklyHours float64 `json:"weekly_hours" validate:"gte=0,lte=168"`
}

// CalculateRequest previews the classification of an entry/exit pair
// without storing anything.
type CalculateRequest struct {
	Entry      time.Time        `json:"entry" validate:"required"`
	Exit       time.Time        `json:"exit" validate:"required,gtfield=Entry"`
	HourlyWage *decimal.Decimal `json:"hourly_wage"`
}

type SurchargeAmountsDTO struct {
	NightOrdinary  decimal.Decimal `json:"night_ordinary"`
	OvertimeDay    decimal.Decimal `json:"overtime_day"`
	OvertimeNight  decimal.Decimal `json:"overtime_night"`
	DominicalDay   decimal.Decimal `json:"dominical_day"`
	DominicalNight decimal.Decimal `json:"dominical_night"`
	Total          decimal.Decimal `json:"total"`
}

type CalculateResponse struct {
	Classification ProjectionDTO        `json:"classification"`
	Report         legal.Report         `json:"legal_report"`
	Compliance     legal.Compliance     `json:"compliance"`
	Amounts        *SurchargeAmountsDTO `json:"surcharge_amounts,omitempty"`
}

// =============================================================================
// ADMIN
// =============================================================================

type BackfillRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,required"`
	From    string   `json:"from" validate:"required,datetime=2006-01-02"`
	To      string   `json:"to" validate:"required,datetime=2006-01-02"`
}

type DayErrorDTO struct {
	Day     string `json:"day"`
	Message string `json:"message"`
}

type BackfillResultDTO struct {
	RunID             string        `json:"run_id"`
	UserID            string        `json:"user_id"`
	From              string        `json:"from"`
	To                string        `json:"to"`
	Status            string        `json:"status"`
	EventsRead        int           `json:"events_read"`
	SessionsCreated   int           `json:"sessions_created"`
	SessionsSkipped   int           `json:"sessions_skipped"`
	AggregatesUpdated int           `json:"aggregates_updated"`
	Errors            []DayErrorDTO `json:"errors"`
}

type RunDTO struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	From              string        `json:"from"`
	To                string        `json:"to"`
	Status            string        `json:"status"`
	EventsRead        int           `json:"events_read"`
	SessionsCreated   int           `json:"sessions_created"`
	AggregatesUpdated int           `json:"aggregates_updated"`
	Errors            []DayErrorDTO `json:"errors"`
	StartedAt         string        `json:"started_at"`
	CompletedAt       *string       `json:"completed_at"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

const timeLayout = time.RFC3339

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toEventDTO(ev generic.AttendanceEvent) EventDTO {
	return EventDTO{
		ID:             string(ev.ID),
		UserID:         string(ev.UserID),
		Type:           string(ev.Kind),
		Timestamp:      formatTime(ev.At),
		Location:       ev.Location,
		IdempotencyKey: ev.IdempotencyKey,
	}
}

func toDistributionDTO(d generic.Distribution) DistributionDTO {
	return DistributionDTO{
		OrdinaryDay:    d.OrdinaryDay,
		OrdinaryNight:  d.OrdinaryNight,
		OvertimeDay:    d.OvertimeDay,
		OvertimeNight:  d.OvertimeNight,
		DominicalDay:   d.DominicalDay,
		DominicalNight: d.DominicalNight,
	}
}

func toSurchargeDTO(s generic.Surcharge) SurchargeDTO {
	return SurchargeDTO{
		NightOrdinary:  s.NightOrdinary,
		OvertimeDay:    s.OvertimeDay,
		OvertimeNight:  s.OvertimeNight,
		DominicalDay:   s.DominicalDay,
		DominicalNight: s.DominicalNight,
		Total:          s.Total,
	}
}

func toSessionDTO(s generic.WorkSession) SessionDTO {
	return SessionDTO{
		ID:           string(s.ID),
		UserID:       string(s.UserID),
		Day:          s.Day.String(),
		Entry:        formatTime(s.Entry),
		Exit:         formatTimePtr(s.Exit),
		Status:       string(s.Status),
		TotalMinutes: s.TotalMinutes,
		TotalHours:   generic.FormatMinutes(s.TotalMinutes),
		Distribution: toDistributionDTO(s.Distribution),
		Surcharge:    toSurchargeDTO(s.Surcharge),
		Flags: SessionFlagsDTO{
			WeekendOrHoliday: s.Flags.WeekendOrHoliday,
			EntryEstimated:   s.Flags.EntryEstimated,
			ExitEstimated:    s.Flags.ExitEstimated,
			Anomaly:          s.Flags.Anomaly,
		},
		Source:        string(s.Source),
		EntryLocation: s.EntryLocation,
		ExitLocation:  s.ExitLocation,
		Notes:         s.Notes,
	}
}

func toSessionDTOPtr(s *generic.WorkSession) *SessionDTO {
	if s == nil {
		return nil
	}
	dto := toSessionDTO(*s)
	return &dto
}

func toSessionDTOs(sessions []generic.WorkSession) []SessionDTO {
	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = toSessionDTO(s)
	}
	return dtos
}

func toProjectionDTO(c legal.Classification) ProjectionDTO {
	return ProjectionDTO{
		Day:          c.Day.String(),
		Dominical:    c.Dominical,
		Holiday:      c.HolidayName,
		TotalMinutes: c.TotalMinutes,
		Distribution: toDistributionDTO(c.Distribution),
		Surcharge:    toSurchargeDTO(c.Surcharge),
	}
}

func toActiveSessionDTO(v *worktime.ActiveView) *ActiveSessionDTO {
	if v == nil {
		return nil
	}
	dto := &ActiveSessionDTO{
		Session:        toSessionDTO(v.Session),
		ElapsedMinutes: v.ElapsedMinutes,
		Elapsed:        v.Elapsed,
	}
	if v.Projection != nil {
		p := toProjectionDTO(*v.Projection)
		dto.Projection = &p
	}
	return dto
}

func toAggregateDTO(a generic.DailyAggregate) AggregateDTO {
	return AggregateDTO{
		Day:             a.Day.String(),
		TotalMinutes:    a.TotalMinutes,
		TotalHours:      generic.FormatMinutes(a.TotalMinutes),
		OrdinaryMinutes: a.OrdinaryMinutes,
		OvertimeMinutes: a.OvertimeMinutes,
		NightMinutes:    a.NightMinutes,
		Distribution:    toDistributionDTO(a.Distribution),
		Surcharge:       toSurchargeDTO(a.Surcharge),
		FirstEntry:      formatTimePtr(a.FirstEntry),
		LastExit:        formatTimePtr(a.LastExit),
		SessionCount:    a.SessionCount,
		SundayOrHoliday: a.SundayOrHoliday,
		Compliance: ComplianceFlagsDTO{
			MetEightHours:     a.Compliance.MetEightHours,
			ExceededOrdinary:  a.Compliance.ExceededOrdinary,
			PercentCompliance: a.Compliance.PercentCompliance,
		},
		Revision: a.Revision,
	}
}

func toAggregateDTOs(aggs []generic.DailyAggregate) []AggregateDTO {
	dtos := make([]AggregateDTO, len(aggs))
	for i, a := range aggs {
		dtos[i] = toAggregateDTO(a)
	}
	return dtos
}

func toTodayDTO(v worktime.TodayView) TodayDTO {
	return TodayDTO{
		Day:        v.Day.String(),
		Aggregate:  toAggregateDTO(v.Aggregate),
		Active:     toActiveSessionDTO(v.Active),
		Compliance: v.Compliance,
	}
}

func toPeriodSummaryDTO(s worktime.PeriodSummary) PeriodSummaryDTO {
	return PeriodSummaryDTO{
		From:             s.Period.Start.String(),
		To:               s.Period.End.String(),
		TotalMinutes:     s.TotalMinutes,
		TotalHours:       generic.FormatMinutes(s.TotalMinutes),
		OvertimeMinutes:  s.OvertimeMinutes,
		NightMinutes:     s.NightMinutes,
		SurchargeMinutes: s.SurchargeMinutes,
		Distribution:     toDistributionDTO(s.Distribution),
		Surcharge:        toSurchargeDTO(s.Surcharge),
		DaysWorked:       s.DaysWorked,
		AverageHours:     s.AverageHours,
		Days:             toAggregateDTOs(s.Days),
		Compliance:       s.Compliance,
	}
}

func toChartDTO(c worktime.Chart) ChartDTO {
	return ChartDTO{Labels: c.Labels, Hours: c.Hours, Overtime: c.Overtime, Surcharge: c.Surcharge}
}

func toLegalInfoDTO(info worktime.LegalInfo) LegalInfoDTO {
	holidays := make([]HolidayDTO, len(info.Holidays))
	for i, h := range info.Holidays {
		holidays[i] = HolidayDTO{Date: h.Date.String(), Name: h.Name, Kind: string(h.Kind)}
	}
	p := info.Surcharges
	return LegalInfoDTO{
		Name:                info.Name,
		TimeZone:            info.TimeZone,
		DayWindow:           info.DayWindow,
		NightWindow:         info.NightWindow,
		DailyOrdinaryHours:  info.DailyOrdinaryHours,
		WeeklyOrdinaryHours: info.WeeklyOrdinaryHours,
		Surcharges: map[string]string{
			"night_ordinary":  p.NightOrdinary.String(),
			"overtime_day":    p.OvertimeDay.String(),
			"overtime_night":  p.OvertimeNight.String(),
			"dominical_day":   p.DominicalDay.String(),
			"dominical_night": p.DominicalNight.String(),
		},
		Holidays: holidays,
	}
}

func toDayErrorDTOs(errs []generic.DayError) []DayErrorDTO {
	dtos := make([]DayErrorDTO, len(errs))
	for i, e := range errs {
		dtos[i] = DayErrorDTO{Day: e.Day.String(), Message: e.Message}
	}
	return dtos
}

func toBackfillResultDTO(r worktime.BackfillResult) BackfillResultDTO {
	return BackfillResultDTO{
		RunID:             string(r.RunID),
		UserID:            string(r.UserID),
		From:              r.Period.Start.String(),
		To:                r.Period.End.String(),
		Status:            string(r.Status),
		EventsRead:        r.EventsRead,
		SessionsCreated:   r.SessionsCreated,
		SessionsSkipped:   r.SessionsSkipped,
		AggregatesUpdated: r.AggregatesUpdated,
		Errors:            toDayErrorDTOs(r.Errors),
	}
}

func toRunDTO(r generic.BackfillRun) RunDTO {
	return RunDTO{
		ID:                string(r.ID),
		UserID:            string(r.UserID),
		From:              r.Period.Start.String(),
		To:                r.Period.End.String(),
		Status:            string(r.Status),
		EventsRead:        r.EventsRead,
		SessionsCreated:   r.SessionsCreated,
		AggregatesUpdated: r.AggregatesUpdated,
		Errors:            toDayErrorDTOs(r.Errors),
		StartedAt:         formatTime(r.StartedAt),
		CompletedAt:       formatTimePtr(r.CompletedAt),
	}
}
