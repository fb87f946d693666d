/*
handlers.go - HTTP API handlers for the day accounting engine

PURPOSE:
  Exposes the muster engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Personnel:
    GET    /api/personnel              List the live roster
    POST   /api/personnel              Register a person
    GET    /api/personnel/{id}         Get one person
    PUT    /api/personnel/{id}/status  Change a person's live status
    DELETE /api/personnel/{id}         Remove a person

  Aggregates:
    GET    /api/aggregates             Recent business-day roll-ups
    GET    /api/aggregates/current     Live roll-up of the open day
    GET    /api/aggregates/{date}      One day's roll-up (live if open)

  Snapshots:
    GET    /api/snapshots/{date}       Frozen per-person rows, ?status= filter

  Admin:
    POST   /api/admin/finalize         Run day finalization now
    POST   /api/admin/snapshot         Run the aggregate upsert now
    GET    /api/admin/runs             Finalize audit trail, ?status= filter

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Engine: Day accounting logic (tally, upsert, finalize)
  - Clock: Business-day labeling

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (job already running)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  The admin triggers in particular must sit behind a gateway in production.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/muster-engine/muster"
	"github.com/warp/muster-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

type Handler struct {
	Store  *sqlite.Store
	Engine *muster.Engine
	Clock  muster.Clock

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler around the store and engine.
func NewHandler(store *sqlite.Store, engine *muster.Engine) *Handler {
	return &Handler{
		Store:  store,
		Engine: engine,
		Clock:  engine.Clock,
	}
}

// =============================================================================
// PERSONNEL ENDPOINTS
// =============================================================================

// ListPersonnel returns the live roster.
// GET /api/personnel
func (h *Handler) ListPersonnel(w http.ResponseWriter, r *http.Request) {
	people, err := h.Store.ListPersonnel(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list personnel", err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTOs(people))
}

// GetPerson returns one roster record.
// GET /api/personnel/{id}
func (h *Handler) GetPerson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	person, err := h.Store.GetPerson(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get person", err)
		return
	}
	if person == nil {
		writeError(w, http.StatusNotFound, "Person not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(*person))
}

// CreatePerson registers a person on the live roster, starting at baseline.
// POST /api/personnel
func (h *Handler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req CreatePersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required", nil)
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	person := muster.PersonStatus{
		ID:        id,
		Name:      req.Name,
		Status:    muster.StatusPresent,
		CreatedAt: time.Now(),
	}
	if err := h.Store.SavePerson(r.Context(), person); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create person", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonDTO(person))
}

// SetStatus changes a person's live status.
// PUT /api/personnel/{id}/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status := muster.Status(req.Status)
	if !status.Known() {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid status %q (use present, absent or unavailable)", req.Status), nil)
		return
	}

	person, err := h.Store.GetPerson(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get person", err)
		return
	}
	if person == nil {
		writeError(w, http.StatusNotFound, "Person not found", nil)
		return
	}

	person.Status = status
	if status == muster.StatusPresent {
		// Baseline carries no departure details.
		person.StatusStartedAt = nil
		person.Reason = ""
	} else {
		now := time.Now()
		person.StatusStartedAt = &now
		person.Reason = req.Reason
	}

	if err := h.Store.SavePerson(r.Context(), *person); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update status", err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(*person))
}

// DeletePerson removes a person from the live roster. History rows already
// written for past days are kept.
// DELETE /api/personnel/{id}
func (h *Handler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeletePerson(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete person", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Person deleted", "id": id})
}

// =============================================================================
// AGGREGATE ENDPOINTS
// =============================================================================

// ListAggregates returns recent business-day roll-ups, newest first.
// GET /api/aggregates?limit=30
func (h *Handler) ListAggregates(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	aggs, err := h.Store.ListAggregates(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list aggregates", err)
		return
	}

	dtos := make([]AggregateDTO, len(aggs))
	for i, agg := range aggs {
		dtos[i] = toAggregateDTO(agg, false)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentAggregate recomputes the open day's roll-up from the live roster.
// Always fresh, never read from the stored row.
// GET /api/aggregates/current
func (h *Handler) GetCurrentAggregate(w http.ResponseWriter, r *http.Request) {
	agg, err := h.Engine.ComputeCurrent(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute current aggregate", err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateDTO(agg, true))
}

// GetAggregate returns one day's roll-up. For the open day it recomputes from
// the live roster; for closed days it reads the frozen row.
// GET /api/aggregates/{date}
func (h *Handler) GetAggregate(w http.ResponseWriter, r *http.Request) {
	label, err := muster.ParseDayLabel(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	if label == h.Clock.LabelFor(time.Now()) {
		agg, err := h.Engine.ComputeCurrent(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to compute current aggregate", err)
			return
		}
		writeJSON(w, http.StatusOK, toAggregateDTO(agg, true))
		return
	}

	agg, err := h.Store.GetAggregate(r.Context(), label)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get aggregate", err)
		return
	}
	if agg == nil {
		writeError(w, http.StatusNotFound, "No aggregate for that date", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateDTO(*agg, false))
}

// =============================================================================
// SNAPSHOT ENDPOINTS
// =============================================================================

// ListSnapshots returns the frozen per-person rows for one business day,
// optionally filtered by status.
// GET /api/snapshots/{date}?status=absent
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	label, err := muster.ParseDayLabel(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	var status muster.Status
	if s := r.URL.Query().Get("status"); s != "" {
		status = muster.Status(s)
		if !status.Known() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid status %q", s), nil)
			return
		}
	}

	rows, err := h.Store.ListPersonSnapshots(r.Context(), label, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTOs(rows))
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// TriggerFinalize runs day finalization immediately. Same code path as the
// scheduled run at cutover, so re-triggering a label is a no-op.
// POST /api/admin/finalize
func (h *Handler) TriggerFinalize(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engine.FinalizeDay(r.Context())
	if err != nil {
		if muster.IsJobBusy(err) {
			writeError(w, http.StatusConflict, "Finalization already running", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Finalization failed", err)
		return
	}

	writeJSON(w, http.StatusOK, FinalizeResultDTO{
		Message:        "Day finalized",
		DateLabel:      string(result.DateLabel),
		OpeningLabel:   string(result.OpeningLabel),
		Closing:        toAggregateDTO(result.Closing, false),
		Opening:        toAggregateDTO(result.Opening, false),
		PersonnelReset: result.PersonnelReset,
		RunID:          result.RunID,
	})
}

// TriggerSnapshot runs the periodic aggregate upsert immediately.
// POST /api/admin/snapshot
func (h *Handler) TriggerSnapshot(w http.ResponseWriter, r *http.Request) {
	agg, err := h.Engine.UpsertAggregate(r.Context())
	if err != nil {
		if muster.IsJobBusy(err) {
			writeError(w, http.StatusConflict, "Snapshot already running", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Snapshot failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateDTO(agg, false))
}

// ListRuns returns the finalize audit trail, newest first.
// GET /api/admin/runs?status=failed
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	var status muster.RunStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status = muster.RunStatus(s)
		switch status {
		case muster.RunRunning, muster.RunCompleted, muster.RunFailed:
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid run status %q", s), nil)
			return
		}
	}

	runs, err := h.Store.ListRuns(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness plus the currently open business day.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"open_day": string(h.Clock.LabelFor(time.Now())),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

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
