/*
engine.go - The two day-accounting jobs

PURPOSE:
  Implements the periodic aggregate upsert and the day-boundary finalize.
  Both jobs are invoked by the scheduler on their cadence and by the admin
  endpoints on demand; both must be safe to re-trigger at any time.

JOBS:
  UpsertAggregate (every 2 hours):
    Full recompute of the open day's counts from the live roster, written as
    a single one-row upsert. Idempotent by construction - rerunning converges
    to the same row. Non-transactional; a failure is logged by the caller and
    simply waits for the next tick.

  FinalizeDay (once per day at cutover):
    Closes the business day that has just ended, inside ONE transaction:
      1. ending label = the label preceding the currently-open window
      2. compute + upsert the final aggregate for that label
      3. replace that label's per-person snapshot rows from the live roster
      4. reset every live record to the baseline (present/nil/nil)
      5. snapshot the freshly-reset roster under the new open label
    Any failure rolls the whole thing back: never a reset roster without its
    history, never history without the reset.

LABEL CHOICE AT CUTOVER:
  At the cutover instant the open window has already flipped, so
  LabelFor(now) names the NEW day. The ending day is therefore
  LabelFor(now).Previous(). This also makes operator re-triggers minutes or
  hours after a crash close the correct (still-open) day.

OVERLAP GUARD:
  Each job holds a per-job mutex for its whole run and refuses to start if
  the previous run of the same job is still executing (TryLock). The
  scheduler treats that as a skip, not a failure.

TIMEOUT:
  The finalize transaction is bounded by FinalizeTimeout; hitting it rolls
  back and surfaces like any other failure.

SEE ALSO:
  - tally.go: The count computation both jobs share
  - api/scheduler.go: Cadence and trigger wiring
  - api/handlers.go: Manual trigger endpoints
*/
package muster

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine runs the day-accounting jobs against a transactional store.
type Engine struct {
	Clock Clock
	Store TxStore

	// FinalizeTimeout bounds the finalize transaction. Zero means no bound.
	FinalizeTimeout time.Duration

	// Now is the time source, swappable in tests. Defaults to time.Now.
	Now func() time.Time

	upsertMu   sync.Mutex
	finalizeMu sync.Mutex
}

// NewEngine creates an engine with the default timeout and time source.
func NewEngine(clock Clock, store TxStore) *Engine {
	return &Engine{
		Clock:           clock,
		Store:           store,
		FinalizeTimeout: 2 * time.Minute,
		Now:             time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// =============================================================================
// LIVE AGGREGATE
// =============================================================================

// ComputeCurrent tallies the live roster under the currently-open label
// without persisting anything. The reporting layer calls this when asked
// about the still-open day instead of reading a possibly stale row.
func (e *Engine) ComputeCurrent(ctx context.Context) (Aggregate, error) {
	roster, err := e.Store.ListPersonnel(ctx)
	if err != nil {
		return Aggregate{}, err
	}

	agg, unknown := Tally(e.Clock.LabelFor(e.now()), roster)
	logUnknown(unknown)
	return agg, nil
}

// =============================================================================
// AGGREGATE UPSERT (2-hourly job)
// =============================================================================

// UpsertAggregate recomputes the open day's counts and upserts its single
// aggregate row. Returns the written aggregate.
func (e *Engine) UpsertAggregate(ctx context.Context) (Aggregate, error) {
	if !e.upsertMu.TryLock() {
		return Aggregate{}, ErrUpsertInProgress
	}
	defer e.upsertMu.Unlock()

	agg, err := e.ComputeCurrent(ctx)
	if err != nil {
		return Aggregate{}, err
	}

	if err := e.Store.UpsertAggregate(ctx, agg); err != nil {
		return Aggregate{}, err
	}
	return agg, nil
}

// =============================================================================
// DAY FINALIZE (cutover job)
// =============================================================================

// FinalizeResult reports what a successful finalize did.
type FinalizeResult struct {
	DateLabel      DayLabel  // the day that was closed
	OpeningLabel   DayLabel  // the day that was opened
	Closing        Aggregate // final counts of the closed day
	Opening        Aggregate // opening counts of the new day (all present)
	PersonnelReset int
	RunID          string
}

// FinalizeDay closes the business day that has just ended and opens the
// next one. Safe to re-run for the same label: the aggregate upsert and the
// snapshot replace both converge, and a failure leaves the day untouched
// for the next attempt.
func (e *Engine) FinalizeDay(ctx context.Context) (*FinalizeResult, error) {
	if !e.finalizeMu.TryLock() {
		return nil, ErrFinalizeInProgress
	}
	defer e.finalizeMu.Unlock()

	now := e.now()
	openingLabel := e.Clock.LabelFor(now)
	endingLabel := openingLabel.Previous()

	run := FinalizeRun{
		ID:        uuid.NewString(),
		DateLabel: endingLabel,
		Status:    RunRunning,
		StartedAt: &now,
		CreatedAt: now,
	}
	// Best effort: the audit record must not gate the close itself.
	if err := e.Store.SaveRun(ctx, run); err != nil {
		log.Printf("[Finalizer] Warning: could not record run for %s: %v", endingLabel, err)
	}

	if e.FinalizeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.FinalizeTimeout)
		defer cancel()
	}

	result := &FinalizeResult{
		DateLabel:    endingLabel,
		OpeningLabel: openingLabel,
		RunID:        run.ID,
	}

	err := e.Store.WithTx(ctx, func(s Store) error {
		// Final counts of the ending day, from the un-reset roster.
		roster, err := s.ListPersonnel(ctx)
		if err != nil {
			return err
		}

		closing, unknown := Tally(endingLabel, roster)
		logUnknown(unknown)
		if err := s.UpsertAggregate(ctx, closing); err != nil {
			return err
		}

		// Replace (not merge) the day's per-person history.
		if err := s.ReplacePersonSnapshots(ctx, endingLabel, SnapshotRoster(endingLabel, roster)); err != nil {
			return err
		}

		// Open the next day: everyone back to the baseline.
		reset, err := s.ResetStatuses(ctx)
		if err != nil {
			return err
		}

		// Record the opening state immediately instead of waiting for the
		// next periodic tick.
		fresh, err := s.ListPersonnel(ctx)
		if err != nil {
			return err
		}
		opening, _ := Tally(openingLabel, fresh)
		if err := s.UpsertAggregate(ctx, opening); err != nil {
			return err
		}
		if err := s.ReplacePersonSnapshots(ctx, openingLabel, SnapshotRoster(openingLabel, fresh)); err != nil {
			return err
		}

		result.Closing = closing
		result.Opening = opening
		result.PersonnelReset = reset
		return nil
	})

	completed := e.now()
	run.CompletedAt = &completed
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		if saveErr := e.Store.SaveRun(context.WithoutCancel(ctx), run); saveErr != nil {
			log.Printf("[Finalizer] Warning: could not record failed run for %s: %v", endingLabel, saveErr)
		}
		return nil, &FinalizeError{DateLabel: endingLabel, Err: err}
	}

	run.Status = RunCompleted
	run.PersonnelCount = result.Closing.Total
	if saveErr := e.Store.SaveRun(ctx, run); saveErr != nil {
		log.Printf("[Finalizer] Warning: could not record completed run for %s: %v", endingLabel, saveErr)
	}

	return result, nil
}

func logUnknown(unknown []PersonStatus) {
	for _, p := range unknown {
		log.Printf("[Tally] Warning: person %s has unknown status %q, counted as present", p.ID, p.Status)
	}
}
