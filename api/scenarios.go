/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	punches. Each scenario goes through the same code paths as real
	traffic (the lifecycle manager, or the punch log plus a backfill),
	so the resulting sessions and aggregates are exactly what production
	would compute.

AVAILABLE SCENARIOS:

	standard-week:   Five 9-hour days, daily and weekly overtime
	night-shift:     22:00-06:00 shifts, night surcharge only
	sunday-holiday:  Work on a Sunday and on a moved holiday (San José)
	forgotten-exit:  Missing exit punches: auto-close and a stale session
	legacy-import:   Raw punches without sessions, replayed by a backfill

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Replay scripted punches for the week of Monday 10 March 2025
 3. Optionally run a backfill over the replayed period

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "night-shift"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description and loader

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and shared helpers
  - worktime/lifecycle.go: Punch processing
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warp/worktime-engine/generic"
	"github.com/warp/worktime-engine/worktime"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, h *Handler) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "standard-week",
			Name:        "Standard Week",
			Description: "Monday to Friday 08:00-17:00: one hour of daytime overtime per day, 45h week",
			Category:    "overtime",
		},
		load: loadStandardWeek,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "night-shift",
			Name:        "Night Shift",
			Description: "Four 22:00-06:00 shifts crossing midnight, ordinary night hours",
			Category:    "night",
		},
		load: loadNightShift,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "sunday-holiday",
			Name:        "Sunday & Holiday",
			Description: "Sunday morning and the San José holiday (moved to Monday 24 March)",
			Category:    "dominical",
		},
		load: loadSundayHoliday,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "forgotten-exit",
			Name:        "Forgotten Exit",
			Description: "Missing exit closed automatically by the next entry, plus a stale active session",
			Category:    "anomalies",
		},
		load: loadForgottenExit,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "legacy-import",
			Name:        "Legacy Import",
			Description: "Punches imported without sessions and rebuilt by a backfill run",
			Category:    "migration",
		},
		load: loadLegacyImport,
	},
}

// ScenarioLoadedDTO is returned after a scenario is loaded.
type ScenarioLoadedDTO struct {
	Scenario ScenarioDTO `json:"scenario"`
	Users    []string    `json:"users"`
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var found *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			found = &scenarios[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := found.load(ctx, h); err != nil {
		h.writeDomainError(w, r, fmt.Errorf("load scenario %s: %w", found.ID, err))
		return
	}

	h.mu.Lock()
	h.currentScenario = found.ID
	h.mu.Unlock()

	users, err := h.Store.Users(ctx)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = string(u)
	}
	h.logger.Info("scenario loaded", zap.String("scenario", found.ID), zap.Int("users", len(ids)))
	writeJSON(w, http.StatusOK, ScenarioLoadedDTO{Scenario: found.ScenarioDTO, Users: ids})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	if h.Scheduler != nil {
		h.Scheduler.Forget()
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCRIPT HELPERS
// =============================================================================

type scriptedPunch struct {
	kind generic.EventKind
	at   time.Time
}

// wall returns a wall-clock time in the rule table's zone, counted in days
// from Monday 10 March 2025.
func (h *Handler) wall(dayOffset, hour, minute int) time.Time {
	return time.Date(2025, time.March, 10+dayOffset, hour, minute, 0, 0, h.Legal.Location())
}

func in(at time.Time) scriptedPunch  { return scriptedPunch{kind: generic.EventEntry, at: at} }
func out(at time.Time) scriptedPunch { return scriptedPunch{kind: generic.EventExit, at: at} }

// replay sends punches through the lifecycle manager.
func replay(ctx context.Context, h *Handler, user generic.UserID, script []scriptedPunch) error {
	for i, p := range script {
		_, err := h.Manager.Punch(ctx, worktime.Punch{
			UserID:         user,
			Kind:           p.kind,
			At:             p.at,
			Location:       "demo",
			IdempotencyKey: fmt.Sprintf("scenario-%s-%d", user, i),
		})
		if err != nil {
			return fmt.Errorf("punch %d (%s at %s): %w", i, p.kind, p.at.Format(time.RFC3339), err)
		}
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadStandardWeek(ctx context.Context, h *Handler) error {
	var script []scriptedPunch
	for d := 0; d < 5; d++ {
		script = append(script, in(h.wall(d, 8, 0)), out(h.wall(d, 17, 0)))
	}
	return replay(ctx, h, "emp-001", script)
}

func loadNightShift(ctx context.Context, h *Handler) error {
	var script []scriptedPunch
	for d := 0; d < 4; d++ {
		script = append(script, in(h.wall(d, 22, 0)), out(h.wall(d+1, 6, 0)))
	}
	return replay(ctx, h, "emp-002", script)
}

func loadSundayHoliday(ctx context.Context, h *Handler) error {
	return replay(ctx, h, "emp-003", []scriptedPunch{
		// Sunday 9 March
		in(h.wall(-1, 8, 0)), out(h.wall(-1, 14, 0)),
		// ordinary Monday for contrast
		in(h.wall(0, 8, 0)), out(h.wall(0, 16, 0)),
		// San José, Monday 24 March
		in(h.wall(14, 8, 0)), out(h.wall(14, 12, 0)),
	})
}

func loadForgottenExit(ctx context.Context, h *Handler) error {
	return replay(ctx, h, "emp-004", []scriptedPunch{
		in(h.wall(0, 8, 0)), // no exit on Monday
		in(h.wall(1, 8, 0)),
		out(h.wall(1, 17, 0)),
		in(h.wall(2, 7, 0)), // never closed
	})
}

// loadLegacyImport writes punches straight into the punch log, as an
// import from a previous system would, then rebuilds sessions from them.
func loadLegacyImport(ctx context.Context, h *Handler) error {
	const user generic.UserID = "emp-005"
	log := generic.NewPunchLog(h.Store)
	raw := []scriptedPunch{
		// double tap
		in(h.wall(0, 8, 0)), in(h.wall(0, 8, 1)), out(h.wall(0, 17, 30)),
		// exit without entry
		out(h.wall(1, 18, 0)),
		in(h.wall(2, 7, 0)), in(h.wall(2, 12, 0)), out(h.wall(2, 13, 0)), out(h.wall(2, 18, 0)),
		// pending entry closes at end of day
		in(h.wall(3, 9, 0)),
	}
	for i, p := range raw {
		if _, err := log.Record(ctx, generic.AttendanceEvent{
			UserID:         user,
			Kind:           p.kind,
			At:             p.at,
			Location:       "legacy",
			IdempotencyKey: fmt.Sprintf("legacy-%d", i),
		}); err != nil {
			return err
		}
	}
	_, err := h.Backfill.Run(ctx, user, generic.Period{
		Start: generic.NewTimePoint(2025, time.March, 10),
		End:   generic.NewTimePoint(2025, time.March, 14),
	})
	return err
}
