/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Personnel CRUD and status validation
- Live vs stored aggregate reads
- Manual finalize/snapshot triggers
- Snapshot reads with status filter
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/warp/muster-engine/muster"
	"github.com/warp/muster-engine/store/sqlite"
)

func newTestAPI(t *testing.T) (*Handler, http.Handler) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock, err := muster.NewClock("Asia/Jakarta", 6)
	if err != nil {
		t.Fatalf("Failed to create clock: %v", err)
	}

	engine := muster.NewEngine(clock, store)
	handler := NewHandler(store, engine)
	return handler, NewRouter(handler)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return out
}

// =============================================================================
// PERSONNEL
// =============================================================================

func TestCreatePerson_StartsAtBaseline(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, "POST", "/api/personnel", CreatePersonRequest{Name: "Ade Kurnia"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	person := decode[PersonDTO](t, rec)
	if person.ID == "" {
		t.Error("Expected a generated ID")
	}
	if person.Status != "present" {
		t.Errorf("Status = %q, want present", person.Status)
	}
}

func TestCreatePerson_NameRequired(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, "POST", "/api/personnel", CreatePersonRequest{Name: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}

func TestSetStatus_ValidTransition(t *testing.T) {
	_, router := newTestAPI(t)

	doJSON(t, router, "POST", "/api/personnel", CreatePersonRequest{ID: "p-01", Name: "Ade"})

	rec := doJSON(t, router, "PUT", "/api/personnel/p-01/status",
		SetStatusRequest{Status: "absent", Reason: "sick leave"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	person := decode[PersonDTO](t, rec)
	if person.Status != "absent" || person.Reason != "sick leave" {
		t.Errorf("Got %+v, want absent/sick leave", person)
	}
	if person.StatusStartedAt == nil {
		t.Error("Expected a status start instant for a departure")
	}
}

func TestSetStatus_BackToPresent_ClearsDetails(t *testing.T) {
	_, router := newTestAPI(t)

	doJSON(t, router, "POST", "/api/personnel", CreatePersonRequest{ID: "p-01", Name: "Ade"})
	doJSON(t, router, "PUT", "/api/personnel/p-01/status", SetStatusRequest{Status: "absent", Reason: "leave"})

	rec := doJSON(t, router, "PUT", "/api/personnel/p-01/status", SetStatusRequest{Status: "present"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	person := decode[PersonDTO](t, rec)
	if person.Reason != "" || person.StatusStartedAt != nil {
		t.Errorf("Return to present must clear details, got %+v", person)
	}
}

func TestSetStatus_RejectsUnknownStatus(t *testing.T) {
	_, router := newTestAPI(t)

	doJSON(t, router, "POST", "/api/personnel", CreatePersonRequest{ID: "p-01", Name: "Ade"})

	rec := doJSON(t, router, "PUT", "/api/personnel/p-01/status", SetStatusRequest{Status: "on-loan"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}

func TestSetStatus_UnknownPerson404(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, "PUT", "/api/personnel/ghost/status", SetStatusRequest{Status: "absent"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rec.Code)
	}
}

// =============================================================================
// AGGREGATES
// =============================================================================

func loadShiftDay(t *testing.T, router http.Handler) {
	t.Helper()
	rec := doJSON(t, router, "POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "shift-day"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Failed to load scenario: %d %s", rec.Code, rec.Body.String())
	}
}

func TestGetCurrentAggregate_LiveRecompute(t *testing.T) {
	_, router := newTestAPI(t)
	loadShiftDay(t, router)

	rec := doJSON(t, router, "GET", "/api/aggregates/current", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	agg := decode[AggregateDTO](t, rec)
	if agg.Total != 10 || agg.Absent != 3 || agg.Present != 7 || agg.Unavailable != 1 || agg.OnTheLine != 6 {
		t.Errorf("Counts = %+v, want 10/3/7/1/6", agg)
	}
	if !agg.Live {
		t.Error("Current aggregate must be flagged live")
	}
}

func TestGetAggregate_OpenDayIsLive_NotStoredRow(t *testing.T) {
	h, router := newTestAPI(t)
	loadShiftDay(t, router)

	// GIVEN: a stale stored row for the open day
	openLabel := h.Clock.LabelFor(time.Now())
	rec := doJSON(t, router, "POST", "/api/admin/snapshot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Snapshot trigger failed: %d", rec.Code)
	}
	doJSON(t, router, "PUT", "/api/personnel/p-01/status", SetStatusRequest{Status: "absent", Reason: "late change"})

	// WHEN: reading the open day by date
	rec = doJSON(t, router, "GET", "/api/aggregates/"+string(openLabel), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	// THEN: the late change is visible, the stored row was not served
	agg := decode[AggregateDTO](t, rec)
	if agg.Absent != 4 {
		t.Errorf("Absent = %d, want 4 (live recompute)", agg.Absent)
	}
	if !agg.Live {
		t.Error("Open-day read must be flagged live")
	}
}

func TestGetAggregate_InvalidDate400(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, "GET", "/api/aggregates/20-05-2025", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}

func TestGetAggregate_MissingClosedDay404(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, "GET", "/api/aggregates/1999-01-01", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", rec.Code)
	}
}

// =============================================================================
// ADMIN TRIGGERS
// =============================================================================

func TestTriggerSnapshot_WritesOpenDayRow(t *testing.T) {
	h, router := newTestAPI(t)
	loadShiftDay(t, router)

	rec := doJSON(t, router, "POST", "/api/admin/snapshot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	agg := decode[AggregateDTO](t, rec)
	openLabel := string(h.Clock.LabelFor(time.Now()))
	if agg.DateLabel != openLabel {
		t.Errorf("DateLabel = %s, want %s", agg.DateLabel, openLabel)
	}
	if agg.Total != 10 {
		t.Errorf("Total = %d, want 10", agg.Total)
	}
}

func TestTriggerFinalize_ClosesDayAndResets(t *testing.T) {
	_, router := newTestAPI(t)
	loadShiftDay(t, router)

	rec := doJSON(t, router, "POST", "/api/admin/finalize", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	result := decode[FinalizeResultDTO](t, rec)
	if result.Closing.Absent != 3 || result.Closing.OnTheLine != 6 {
		t.Errorf("Closing = %+v, want 3 absent, 6 on the line", result.Closing)
	}
	if result.Opening.Present != 10 {
		t.Errorf("Opening.Present = %d, want 10 after reset", result.Opening.Present)
	}
	if result.PersonnelReset != 10 {
		t.Errorf("PersonnelReset = %d, want 10", result.PersonnelReset)
	}

	// The closed day's history is readable, filterable by status.
	rec = doJSON(t, router, "GET", fmt.Sprintf("/api/snapshots/%s?status=absent", result.DateLabel), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Snapshot read failed: %d", rec.Code)
	}
	rows := decode[[]PersonSnapshotDTO](t, rec)
	if len(rows) != 3 {
		t.Errorf("Expected 3 absent snapshots, got %d", len(rows))
	}

	// The live roster is back at baseline.
	rec = doJSON(t, router, "GET", "/api/personnel", nil)
	people := decode[[]PersonDTO](t, rec)
	for _, p := range people {
		if p.Status != "present" {
			t.Errorf("Person %s status = %q after finalize, want present", p.ID, p.Status)
		}
	}

	// And the audit trail shows one completed run.
	rec = doJSON(t, router, "GET", "/api/admin/runs?status=completed", nil)
	runs := decode[[]RunDTO](t, rec)
	if len(runs) != 1 {
		t.Fatalf("Expected 1 completed run, got %d", len(runs))
	}
	if runs[0].PersonnelCount != 10 {
		t.Errorf("Run personnel count = %d, want 10", runs[0].PersonnelCount)
	}
}

func TestTriggerFinalize_RetriggerIsSafe(t *testing.T) {
	_, router := newTestAPI(t)
	loadShiftDay(t, router)

	first := doJSON(t, router, "POST", "/api/admin/finalize", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("First finalize failed: %d", first.Code)
	}
	second := doJSON(t, router, "POST", "/api/admin/finalize", nil)
	if second.Code != http.StatusOK {
		t.Fatalf("Second finalize failed: %d", second.Code)
	}

	result := decode[FinalizeResultDTO](t, second)
	rec := doJSON(t, router, "GET", "/api/snapshots/"+result.DateLabel, nil)
	rows := decode[[]PersonSnapshotDTO](t, rec)
	if len(rows) != 10 {
		t.Errorf("Expected 10 snapshot rows after retrigger, got %d", len(rows))
	}
}

// =============================================================================
// SNAPSHOT READS
// =============================================================================

func TestListSnapshots_BadStatus400(t *testing.T) {
	_, router := newTestAPI(t)

	rec := doJSON(t, router, "GET", "/api/snapshots/2025-05-20?status=on-loan", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth_ReportsOpenDay(t *testing.T) {
	h, router := newTestAPI(t)

	rec := doJSON(t, router, "GET", "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	body := decode[map[string]string](t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
	if body["open_day"] != string(h.Clock.LabelFor(time.Now())) {
		t.Errorf("open_day = %q, want the current label", body["open_day"])
	}
}
