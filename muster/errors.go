/*
errors.go - Centralized error types for the muster engine

PURPOSE:
  All domain error values in one place for consistency and discoverability.
  Callers match with errors.Is(); the API layer maps them to HTTP statuses.

ERROR CATEGORIES:
  1. Input errors - malformed labels/configuration
  2. Job errors - overlap guards and finalize failures
  3. Store errors - duplicate snapshot rows (expected on rerun, absorbed)

SEE ALSO:
  - engine.go: Returns these from the two jobs
  - store/sqlite: Translates constraint violations into these
*/
package muster

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDayLabel is returned for labels that are not YYYY-MM-DD dates.
	ErrInvalidDayLabel = errors.New("invalid business-day label")

	// ErrInvalidCutoverHour is returned for cutover hours outside 0-23.
	ErrInvalidCutoverHour = errors.New("invalid cutover hour")

	// ErrFinalizeInProgress is returned when a finalize run is requested while
	// another is still executing. The caller should retry after the current
	// run settles; the running instance owns the day.
	ErrFinalizeInProgress = errors.New("finalize already in progress")

	// ErrUpsertInProgress is the same guard for the aggregate upsert job.
	ErrUpsertInProgress = errors.New("aggregate upsert already in progress")

	// ErrDuplicateSnapshot marks a per-person snapshot row that already
	// exists for (label, person). Reruns for the same label are a normal
	// recovery path, so store implementations absorb the collision
	// (insert-skip-duplicates) instead of surfacing this; it exists for
	// implementations that cannot.
	ErrDuplicateSnapshot = errors.New("duplicate person snapshot")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// FinalizeError wraps a failure inside the finalize transaction with the
// label that failed to close. The transaction has been rolled back; the day
// remains open and must be retried.
type FinalizeError struct {
	DateLabel DayLabel
	Err       error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("finalize %s: %v", e.DateLabel, e.Err)
}

func (e *FinalizeError) Unwrap() error { return e.Err }

// IsJobBusy reports whether the error is an overlap guard, not a real
// failure. Busy runs are skipped quietly by the scheduler.
func IsJobBusy(err error) bool {
	return errors.Is(err, ErrFinalizeInProgress) || errors.Is(err, ErrUpsertInProgress)
}
