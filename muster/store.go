/*
store.go - Persistence interfaces for the muster engine

PURPOSE:
  Defines the storage contracts the engine runs against. The engine never
  touches SQL directly; it composes these interfaces, and the transactional
  wrapper (WithTx) is what gives the day-finalize its atomicity.

INTERFACES:
  RosterStore:    The live status table (read by everything, mass-reset
                  only by the finalizer)
  AggregateStore: One aggregate row per day label, full-row upserts only
  SnapshotStore:  Per-person history rows, replaced wholesale per label
  RunStore:       Finalize audit records (written OUTSIDE the transaction)
  TxStore:        Everything above plus WithTx

TRANSACTION RULE:
  WithTx(ctx, fn) runs fn against a view of the store where every read and
  write happens inside one database transaction. If fn returns an error the
  transaction rolls back completely. The finalizer's snapshot-then-reset
  ordering relies on reads inside fn observing earlier uncommitted writes
  from the same fn.

SEE ALSO:
  - engine.go: The only owner of the reset write path
  - store/sqlite: Production implementation
  - store/memory.go: In-memory implementation for tests
*/
package muster

import "context"

// RosterStore is the live status table.
type RosterStore interface {
	// ListPersonnel returns every live status record.
	ListPersonnel(ctx context.Context) ([]PersonStatus, error)

	// ResetStatuses unconditionally returns every record to the baseline:
	// status present, no start instant, no reason. Returns the number of
	// records reset. Only the finalizer calls this.
	ResetStatuses(ctx context.Context) (int, error)
}

// AggregateStore holds one aggregate row per business-day label.
type AggregateStore interface {
	// UpsertAggregate inserts or fully overwrites the row for agg.DateLabel.
	// All count fields are written together; there is no field-level update.
	UpsertAggregate(ctx context.Context, agg Aggregate) error

	// GetAggregate returns the row for the label, or nil if absent.
	GetAggregate(ctx context.Context, label DayLabel) (*Aggregate, error)
}

// SnapshotStore holds the per-person history rows.
type SnapshotStore interface {
	// ReplacePersonSnapshots deletes every row for the label and inserts the
	// given rows. Inserts skip rows that collide on (label, person) so an
	// overlapping rerun cannot accumulate duplicates; the delete plus the
	// surrounding transaction remain the primary correctness mechanism.
	ReplacePersonSnapshots(ctx context.Context, label DayLabel, rows []PersonSnapshot) error

	// ListPersonSnapshots returns rows for a label, optionally filtered by
	// status ("" means all).
	ListPersonSnapshots(ctx context.Context, label DayLabel, status Status) ([]PersonSnapshot, error)
}

// Store is the transactional surface of the engine: everything that may
// participate in the finalize transaction.
type Store interface {
	RosterStore
	AggregateStore
	SnapshotStore
}

// RunStore persists finalize audit records. Deliberately outside Store: run
// records must survive a rolled-back finalize.
type RunStore interface {
	SaveRun(ctx context.Context, run FinalizeRun) error
	ListRuns(ctx context.Context, status RunStatus) ([]FinalizeRun, error)
}

// TxStore is a Store that can execute a function inside one database
// transaction.
type TxStore interface {
	Store
	RunStore

	// WithTx runs fn against a transactional view of the store. Any error
	// from fn rolls the whole transaction back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
