// Package store provides an in-memory TxStore implementation (for testing/dev).
package store

import (
	"context"
	"sync"
	"time"

	"github.com/warp/muster-engine/muster"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements muster.TxStore in memory. WithTx simulates a database
// transaction with a full snapshot + restore on error, which is exactly the
// rollback behavior the finalizer's tests need to observe.
type Memory struct {
	mu         sync.RWMutex
	personnel  map[string]muster.PersonStatus
	aggregates map[muster.DayLabel]muster.Aggregate
	snapshots  map[muster.DayLabel][]muster.PersonSnapshot
	runs       []muster.FinalizeRun

	// FailOn, when set, is consulted before each named operation
	// ("list", "reset", "upsert", "replace") and its error, if any, is
	// returned instead of executing. Tests use it to inject failures at
	// specific points inside a transaction.
	FailOn func(op string) error
}

func NewMemory() *Memory {
	return &Memory{
		personnel:  make(map[string]muster.PersonStatus),
		aggregates: make(map[muster.DayLabel]muster.Aggregate),
		snapshots:  make(map[muster.DayLabel][]muster.PersonSnapshot),
	}
}

// SeedPerson inserts or replaces a live roster record.
func (m *Memory) SeedPerson(p muster.PersonStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.personnel[p.ID] = p
}

func (m *Memory) fail(op string) error {
	if m.FailOn != nil {
		return m.FailOn(op)
	}
	return nil
}

// =============================================================================
// ROSTER
// =============================================================================

func (m *Memory) ListPersonnel(_ context.Context) ([]muster.PersonStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked()
}

func (m *Memory) listLocked() ([]muster.PersonStatus, error) {
	if err := m.fail("list"); err != nil {
		return nil, err
	}
	out := make([]muster.PersonStatus, 0, len(m.personnel))
	for _, p := range m.personnel {
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) ResetStatuses(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetLocked()
}

func (m *Memory) resetLocked() (int, error) {
	if err := m.fail("reset"); err != nil {
		return 0, err
	}
	for id, p := range m.personnel {
		p.Status = muster.StatusPresent
		p.StatusStartedAt = nil
		p.Reason = ""
		m.personnel[id] = p
	}
	return len(m.personnel), nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (m *Memory) UpsertAggregate(_ context.Context, agg muster.Aggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertLocked(agg)
}

func (m *Memory) upsertLocked(agg muster.Aggregate) error {
	if err := m.fail("upsert"); err != nil {
		return err
	}
	m.aggregates[agg.DateLabel] = agg
	return nil
}

func (m *Memory) GetAggregate(_ context.Context, label muster.DayLabel) (*muster.Aggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agg, ok := m.aggregates[label]
	if !ok {
		return nil, nil
	}
	return &agg, nil
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func (m *Memory) ReplacePersonSnapshots(_ context.Context, label muster.DayLabel, rows []muster.PersonSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceLocked(label, rows)
}

func (m *Memory) replaceLocked(label muster.DayLabel, rows []muster.PersonSnapshot) error {
	if err := m.fail("replace"); err != nil {
		return err
	}
	seen := make(map[string]bool, len(rows))
	kept := make([]muster.PersonSnapshot, 0, len(rows))
	for _, r := range rows {
		if seen[r.PersonID] {
			// Same skip-duplicates behavior as the unique index in SQLite.
			continue
		}
		seen[r.PersonID] = true
		kept = append(kept, r)
	}
	m.snapshots[label] = kept
	return nil
}

func (m *Memory) ListPersonSnapshots(_ context.Context, label muster.DayLabel, status muster.Status) ([]muster.PersonSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []muster.PersonSnapshot
	for _, r := range m.snapshots[label] {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// RUNS
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, run muster.FinalizeRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.runs {
		if r.ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListRuns(_ context.Context, status muster.RunStatus) ([]muster.FinalizeRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []muster.FinalizeRun
	for _, r := range m.runs {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a simulated transaction: the whole store state
// is snapshotted first and restored if fn errors.
func (m *Memory) WithTx(_ context.Context, fn func(muster.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	personnel  map[string]muster.PersonStatus
	aggregates map[muster.DayLabel]muster.Aggregate
	snapshots  map[muster.DayLabel][]muster.PersonSnapshot
}

func (m *Memory) snapshot() memorySnapshot {
	people := make(map[string]muster.PersonStatus, len(m.personnel))
	for k, v := range m.personnel {
		people[k] = v
	}
	aggs := make(map[muster.DayLabel]muster.Aggregate, len(m.aggregates))
	for k, v := range m.aggregates {
		aggs[k] = v
	}
	snaps := make(map[muster.DayLabel][]muster.PersonSnapshot, len(m.snapshots))
	for k, v := range m.snapshots {
		snaps[k] = append([]muster.PersonSnapshot{}, v...)
	}
	return memorySnapshot{personnel: people, aggregates: aggs, snapshots: snaps}
}

func (m *Memory) restore(s memorySnapshot) {
	m.personnel = s.personnel
	m.aggregates = s.aggregates
	m.snapshots = s.snapshots
}

// txMemoryView routes operations to the parent under its already-held lock,
// so reads inside the transaction observe the transaction's own writes.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) ListPersonnel(_ context.Context) ([]muster.PersonStatus, error) {
	return tv.parent.listLocked()
}

func (tv *txMemoryView) ResetStatuses(_ context.Context) (int, error) {
	return tv.parent.resetLocked()
}

func (tv *txMemoryView) UpsertAggregate(_ context.Context, agg muster.Aggregate) error {
	return tv.parent.upsertLocked(agg)
}

func (tv *txMemoryView) GetAggregate(_ context.Context, label muster.DayLabel) (*muster.Aggregate, error) {
	agg, ok := tv.parent.aggregates[label]
	if !ok {
		return nil, nil
	}
	return &agg, nil
}

func (tv *txMemoryView) ReplacePersonSnapshots(_ context.Context, label muster.DayLabel, rows []muster.PersonSnapshot) error {
	return tv.parent.replaceLocked(label, rows)
}

func (tv *txMemoryView) ListPersonSnapshots(_ context.Context, label muster.DayLabel, status muster.Status) ([]muster.PersonSnapshot, error) {
	var out []muster.PersonSnapshot
	for _, r := range tv.parent.snapshots[label] {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}
