/*
Package muster provides the core day-accounting engine for live presence
tracking.

PURPOSE:
  This package contains the domain types and algorithms for tracking the
  presence status of a personnel roster across fixed-offset business days.
  It knows how to label instants with business days, roll a roster up into
  an aggregate, and close a business day atomically.

KEY CONCEPTS IN THIS FILE (types.go):
  - Status: A person's live presence state (present/absent/unavailable)
  - PersonStatus: The live, mutable roster record for one person
  - Aggregate: The per-day roll-up of status counts
  - PersonSnapshot: A person's state frozen into history for one day
  - FinalizeRun: Audit record of a day-close attempt

DESIGN PRINCIPLES:
  1. Derived counts are recomputed together: present and on_the_line are
     never stored independently of the counts they derive from
  2. History is immutable: snapshot rows are replaced wholesale, never
     edited field-by-field
  3. Precision: presence rate uses decimal.Decimal, not float64

SEE ALSO:
  - clock.go: Business-day labeling and window arithmetic
  - tally.go: Aggregate computation from a roster
  - engine.go: The periodic upsert and day-finalize jobs
*/
package muster

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Live presence state
// =============================================================================

// Status is a person's live presence state.
type Status string

const (
	StatusPresent     Status = "present"
	StatusAbsent      Status = "absent"
	StatusUnavailable Status = "unavailable"
)

// Known reports whether s is one of the three recognized states.
// Unknown values are tolerated by the tally (counted as present) but
// flagged to the caller.
func (s Status) Known() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusUnavailable:
		return true
	}
	return false
}

// =============================================================================
// PERSON STATUS - The live roster record
// =============================================================================

// PersonStatus is the long-lived, mutable roster record for one person.
// Ordinary request traffic mutates Status/StatusStartedAt/Reason throughout
// the day; only the finalizer mass-resets them.
type PersonStatus struct {
	ID              string
	Name            string
	Status          Status
	StatusStartedAt *time.Time // nil when at baseline
	Reason          string     // empty when at baseline
	CreatedAt       time.Time
}

// AtBaseline reports whether the record is in the opening state of a
// business day: present, with no start instant and no reason.
func (p PersonStatus) AtBaseline() bool {
	return p.Status == StatusPresent && p.StatusStartedAt == nil && p.Reason == ""
}

// =============================================================================
// AGGREGATE - Per-day roll-up of status counts
// =============================================================================

// Aggregate is the roll-up of status counts for one business day.
// One row exists per day label; it is refreshed in place until the day is
// finalized, then treated as history.
//
// Invariants (enforced by Tally, never by partial updates):
//   Present   = Total - Absent
//   OnTheLine = Present - Unavailable
type Aggregate struct {
	DateLabel   DayLabel
	Total       int
	Absent      int
	Present     int
	Unavailable int
	OnTheLine   int

	// PresenceRate is Present/Total as a percentage (0 when the roster is
	// empty). Derived alongside the counts.
	PresenceRate decimal.Decimal

	UpdatedAt time.Time
}

// Equal compares the count fields (not UpdatedAt). Used by tests to verify
// upsert idempotence.
func (a Aggregate) Equal(other Aggregate) bool {
	return a.DateLabel == other.DateLabel &&
		a.Total == other.Total &&
		a.Absent == other.Absent &&
		a.Present == other.Present &&
		a.Unavailable == other.Unavailable &&
		a.OnTheLine == other.OnTheLine &&
		a.PresenceRate.Equal(other.PresenceRate)
}

// =============================================================================
// PERSON SNAPSHOT - Frozen per-person state
// =============================================================================

// PersonSnapshot is one person's state frozen into history for one business
// day. Uniqueness is (DateLabel, PersonID); all rows for a label are replaced
// together when the day is finalized.
type PersonSnapshot struct {
	DateLabel DayLabel
	PersonID  string
	Status    Status
	Reason    string
	CreatedAt time.Time
}

// =============================================================================
// FINALIZE RUN - Audit record of a day-close attempt
// =============================================================================

// RunStatus is the lifecycle state of a finalize run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// FinalizeRun records one attempt to close a business day. Runs are written
// outside the finalize transaction so a failed close still leaves a visible
// trail.
type FinalizeRun struct {
	ID             string
	DateLabel      DayLabel
	Status         RunStatus
	PersonnelCount int
	Error          string
	StartedAt      *time.Time
	CompletedAt    *time.Time
	CreatedAt      time.Time
}
