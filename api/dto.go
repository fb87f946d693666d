/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/muster-engine/muster"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// PersonDTO represents a live roster record in API responses.
type PersonDTO struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	StatusStartedAt *string `json:"status_started_at,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// CreatePersonRequest is the request to register a person on the roster.
// ID is optional; one is generated when omitted.
type CreatePersonRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// SetStatusRequest is the request to change a person's live status.
type SetStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// AggregateDTO represents one business day's roll-up.
type AggregateDTO struct {
	DateLabel    string `json:"date_label"`
	Total        int    `json:"total"`
	Absent       int    `json:"absent"`
	Present      int    `json:"present"`
	Unavailable  int    `json:"unavailable"`
	OnTheLine    int    `json:"on_the_line"`
	PresenceRate string `json:"presence_rate"`
	Live         bool   `json:"live"` // computed now vs read from history
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// PersonSnapshotDTO represents one frozen per-person history row.
type PersonSnapshotDTO struct {
	DateLabel string `json:"date_label"`
	PersonID  string `json:"person_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// FinalizeResultDTO is returned by the manual finalize trigger.
type FinalizeResultDTO struct {
	Message        string       `json:"message"`
	DateLabel      string       `json:"date_label"`
	OpeningLabel   string       `json:"opening_label"`
	Closing        AggregateDTO `json:"closing"`
	Opening        AggregateDTO `json:"opening"`
	PersonnelReset int          `json:"personnel_reset"`
	RunID          string       `json:"run_id"`
}

// RunDTO represents a finalize audit record.
type RunDTO struct {
	ID             string  `json:"id"`
	DateLabel      string  `json:"date_label"`
	Status         string  `json:"status"`
	PersonnelCount int     `json:"personnel_count"`
	Error          string  `json:"error,omitempty"`
	StartedAt      *string `json:"started_at,omitempty"`
	CompletedAt    *string `json:"completed_at,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPersonDTO(p muster.PersonStatus) PersonDTO {
	dto := PersonDTO{
		ID:     p.ID,
		Name:   p.Name,
		Status: string(p.Status),
		Reason: p.Reason,
	}
	if p.StatusStartedAt != nil {
		s := p.StatusStartedAt.Format(time.RFC3339)
		dto.StatusStartedAt = &s
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toPersonDTOs(people []muster.PersonStatus) []PersonDTO {
	dtos := make([]PersonDTO, len(people))
	for i, p := range people {
		dtos[i] = toPersonDTO(p)
	}
	return dtos
}

func toAggregateDTO(agg muster.Aggregate, live bool) AggregateDTO {
	dto := AggregateDTO{
		DateLabel:    string(agg.DateLabel),
		Total:        agg.Total,
		Absent:       agg.Absent,
		Present:      agg.Present,
		Unavailable:  agg.Unavailable,
		OnTheLine:    agg.OnTheLine,
		PresenceRate: agg.PresenceRate.String(),
		Live:         live,
	}
	if !agg.UpdatedAt.IsZero() {
		dto.UpdatedAt = agg.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toSnapshotDTOs(rows []muster.PersonSnapshot) []PersonSnapshotDTO {
	dtos := make([]PersonSnapshotDTO, len(rows))
	for i, r := range rows {
		dtos[i] = PersonSnapshotDTO{
			DateLabel: string(r.DateLabel),
			PersonID:  r.PersonID,
			Status:    string(r.Status),
			Reason:    r.Reason,
		}
	}
	return dtos
}

func toRunDTO(r muster.FinalizeRun) RunDTO {
	dto := RunDTO{
		ID:             r.ID,
		DateLabel:      string(r.DateLabel),
		Status:         string(r.Status),
		PersonnelCount: r.PersonnelCount,
		Error:          r.Error,
	}
	if r.StartedAt != nil {
		s := r.StartedAt.Format(time.RFC3339)
		dto.StartedAt = &s
	}
	if r.CompletedAt != nil {
		s := r.CompletedAt.Format(time.RFC3339)
		dto.CompletedAt = &s
	}
	return dto
}
