/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	roster data for testing and demos. Each scenario creates personnel with
	a mix of live statuses so the roll-up and finalization paths have
	something to chew on.

AVAILABLE SCENARIOS:

	shift-day:      Ten-person roster, mixed statuses
	full-house:     Everyone present, nothing to report
	heavy-absence:  Small crew with most people away

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create personnel
 3. Set live statuses with reasons where applicable

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "shift-day"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Shares the Handler context and JSON helpers
  - server.go: Route registration
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/muster-engine/muster"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "shift-day",
		Name:        "Shift Day",
		Description: "Ten-person roster: six on the line, three away, one held back",
	},
	{
		ID:          "full-house",
		Name:        "Full House",
		Description: "Everyone present, the quiet day",
	},
	{
		ID:          "heavy-absence",
		Name:        "Heavy Absence",
		Description: "Small crew with most people away",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario_id": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario_id": h.currentScenario})
}

// LoadScenario resets the database and loads the requested scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "shift-day":
		err = h.loadShiftDayScenario(ctx)
	case "full-house":
		err = h.loadFullHouseScenario(ctx)
	case "heavy-absence":
		err = h.loadHeavyAbsenceScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Scenario loaded",
		"scenario_id": req.ScenarioID,
	})
}

// ResetDatabase clears all data. Dev only.
// POST /api/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]any{"message": "Database reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadShiftDayScenario builds the canonical ten-person day: three absent,
// one unavailable, six present.
func (h *Handler) loadShiftDayScenario(ctx context.Context) error {
	people := []struct {
		id, name, reason string
		status           muster.Status
	}{
		{"p-01", "Ade Kurnia", "", muster.StatusPresent},
		{"p-02", "Bambang Wijaya", "sick leave", muster.StatusAbsent},
		{"p-03", "Citra Lestari", "", muster.StatusPresent},
		{"p-04", "Dewi Anggraini", "family matter", muster.StatusAbsent},
		{"p-05", "Eko Prasetyo", "", muster.StatusPresent},
		{"p-06", "Fajar Nugroho", "training off-site", muster.StatusAbsent},
		{"p-07", "Gita Maharani", "standby duty", muster.StatusUnavailable},
		{"p-08", "Hendra Saputra", "", muster.StatusPresent},
		{"p-09", "Indah Permata", "", muster.StatusPresent},
		{"p-10", "Joko Santoso", "", muster.StatusPresent},
	}

	now := time.Now()
	for _, p := range people {
		person := muster.PersonStatus{
			ID:        p.id,
			Name:      p.name,
			Status:    p.status,
			CreatedAt: now,
		}
		if p.status != muster.StatusPresent {
			started := now.Add(-3 * time.Hour)
			person.StatusStartedAt = &started
			person.Reason = p.reason
		}
		if err := h.Store.SavePerson(ctx, person); err != nil {
			return err
		}
	}
	return nil
}

// loadFullHouseScenario creates five personnel, all at baseline.
func (h *Handler) loadFullHouseScenario(ctx context.Context) error {
	names := []string{"Kartika Sari", "Lukman Hakim", "Mega Utami", "Nanda Pratama", "Oka Wibowo"}

	now := time.Now()
	for i, name := range names {
		person := muster.PersonStatus{
			ID:        fmt.Sprintf("p-%02d", i+1),
			Name:      name,
			Status:    muster.StatusPresent,
			CreatedAt: now,
		}
		if err := h.Store.SavePerson(ctx, person); err != nil {
			return err
		}
	}
	return nil
}

// loadHeavyAbsenceScenario creates four personnel with three away.
func (h *Handler) loadHeavyAbsenceScenario(ctx context.Context) error {
	people := []struct {
		id, name, reason string
		status           muster.Status
	}{
		{"p-01", "Putri Handayani", "", muster.StatusPresent},
		{"p-02", "Rizky Ramadhan", "annual leave", muster.StatusAbsent},
		{"p-03", "Siti Nurjanah", "sick leave", muster.StatusAbsent},
		{"p-04", "Taufik Hidayat", "equipment escort", muster.StatusUnavailable},
	}

	now := time.Now()
	for _, p := range people {
		person := muster.PersonStatus{
			ID:        p.id,
			Name:      p.name,
			Status:    p.status,
			CreatedAt: now,
		}
		if p.status != muster.StatusPresent {
			started := now.Add(-26 * time.Hour)
			person.StatusStartedAt = &started
			person.Reason = p.reason
		}
		if err := h.Store.SavePerson(ctx, person); err != nil {
			return err
		}
	}
	return nil
}
