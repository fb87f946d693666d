/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (muster.Store, muster.RunStore,
  muster.TxStore) using SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  muster.RosterStore:    Live personnel status table
  muster.AggregateStore: One aggregate row per business-day label
  muster.SnapshotStore:  Per-person history rows per label
  muster.RunStore:       Finalize audit records
  muster.TxStore:        WithTx transaction wrapper

KEY TABLES:
  personnel:            Live status roster (long-lived, reset at cutover)
  day_aggregates:       Per-label roll-up, full-row upserts only
  day_person_snapshots: Per-(label, person) frozen state, PRIMARY KEY on
                        (date_label, person_id) as defense-in-depth against
                        duplicate inserts from overlapping reruns
  finalize_runs:        Audit trail of day-close attempts

TRANSACTION ROUTING:
  Every store method runs its SQL through a dbtx interface satisfied by both
  *sql.DB and *sql.Tx, so WithTx can hand out a view whose reads observe the
  transaction's own uncommitted writes. The finalizer depends on this: its
  post-reset roster read must see the reset.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/muster.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - muster/store.go: Interface definitions
  - muster/engine.go: The jobs running against this store
  - muster/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/muster-engine/muster"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Live status roster (one row per person, long-lived)
	CREATE TABLE IF NOT EXISTS personnel (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'present',
		status_started_at TEXT,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_personnel_status
		ON personnel(status);

	-- Aggregate history (one row per business-day label)
	CREATE TABLE IF NOT EXISTS day_aggregates (
		date_label TEXT PRIMARY KEY,
		total INTEGER NOT NULL,
		absent INTEGER NOT NULL,
		present INTEGER NOT NULL,
		unavailable INTEGER NOT NULL,
		on_the_line INTEGER NOT NULL,
		presence_rate TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Per-person history (one row per label+person)
	-- The composite primary key is the second line of defense against
	-- duplicate rows from overlapping reruns; the first is the
	-- delete-then-insert inside the finalize transaction.
	CREATE TABLE IF NOT EXISTS day_person_snapshots (
		date_label TEXT NOT NULL,
		person_id TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (date_label, person_id)
	);

	CREATE INDEX IF NOT EXISTS idx_day_person_snapshots_status
		ON day_person_snapshots(date_label, status);

	-- Finalize runs (audit trail, survives rolled-back closes)
	CREATE TABLE IF NOT EXISTS finalize_runs (
		id TEXT PRIMARY KEY,
		date_label TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		personnel_count INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_finalize_runs_label
		ON finalize_runs(date_label);
	CREATE INDEX IF NOT EXISTS idx_finalize_runs_status
		ON finalize_runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so queries can run inside
// or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ROSTER STORE (muster.RosterStore interface)
// =============================================================================

// SavePerson inserts or updates a live roster record.
func (s *Store) SavePerson(ctx context.Context, p muster.PersonStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO personnel (id, name, status, status_started_at, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			status_started_at = excluded.status_started_at,
			reason = excluded.reason
	`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, string(p.Status),
		nullTime(p.StatusStartedAt),
		nullString(p.Reason),
		createdAt.Format(time.RFC3339),
	)
	return err
}

// GetPerson retrieves one live roster record, or nil if absent.
func (s *Store) GetPerson(ctx context.Context, id string) (*muster.PersonStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := queryPersonnel(ctx, s.db,
		"SELECT id, name, status, status_started_at, reason, created_at FROM personnel WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// DeletePerson removes a person from the live roster. History rows are kept.
func (s *Store) DeletePerson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM personnel WHERE id = ?", id)
	return err
}

// ListPersonnel returns every live roster record.
func (s *Store) ListPersonnel(ctx context.Context) ([]muster.PersonStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPersonnel(ctx, s.db)
}

func listPersonnel(ctx context.Context, db dbtx) ([]muster.PersonStatus, error) {
	return queryPersonnel(ctx, db,
		"SELECT id, name, status, status_started_at, reason, created_at FROM personnel ORDER BY name, id")
}

func queryPersonnel(ctx context.Context, db dbtx, query string, args ...any) ([]muster.PersonStatus, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query personnel: %w", err)
	}
	defer rows.Close()

	var out []muster.PersonStatus
	for rows.Next() {
		var (
			p         muster.PersonStatus
			status    string
			startedAt sql.NullString
			reason    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Name, &status, &startedAt, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		p.Status = muster.Status(status)
		p.Reason = reason.String
		if startedAt.Valid {
			t, _ := time.Parse(time.RFC3339, startedAt.String)
			p.StatusStartedAt = &t
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ResetStatuses returns every live record to the baseline. Only the
// finalizer calls this, inside its transaction.
func (s *Store) ResetStatuses(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return resetStatuses(ctx, s.db)
}

func resetStatuses(ctx context.Context, db dbtx) (int, error) {
	res, err := db.ExecContext(ctx,
		"UPDATE personnel SET status = ?, status_started_at = NULL, reason = NULL",
		string(muster.StatusPresent))
	if err != nil {
		return 0, fmt.Errorf("failed to reset statuses: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// AGGREGATE STORE (muster.AggregateStore interface)
// =============================================================================

// UpsertAggregate inserts or fully overwrites the aggregate row for a label.
// Count fields are always written together; there is no field-level update.
func (s *Store) UpsertAggregate(ctx context.Context, agg muster.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertAggregate(ctx, s.db, agg)
}

func upsertAggregate(ctx context.Context, db dbtx, agg muster.Aggregate) error {
	query := `
		INSERT INTO day_aggregates
		(date_label, total, absent, present, unavailable, on_the_line, presence_rate, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date_label) DO UPDATE SET
			total = excluded.total,
			absent = excluded.absent,
			present = excluded.present,
			unavailable = excluded.unavailable,
			on_the_line = excluded.on_the_line,
			presence_rate = excluded.presence_rate,
			updated_at = excluded.updated_at
	`

	_, err := db.ExecContext(ctx, query,
		string(agg.DateLabel),
		agg.Total, agg.Absent, agg.Present, agg.Unavailable, agg.OnTheLine,
		agg.PresenceRate.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert aggregate for %s: %w", agg.DateLabel, err)
	}
	return nil
}

// GetAggregate returns the aggregate row for a label, or nil if absent.
func (s *Store) GetAggregate(ctx context.Context, label muster.DayLabel) (*muster.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAggregate(ctx, s.db, label)
}

func getAggregate(ctx context.Context, db dbtx, label muster.DayLabel) (*muster.Aggregate, error) {
	var (
		agg       muster.Aggregate
		dateLabel string
		rate      string
		updatedAt string
	)

	err := db.QueryRowContext(ctx,
		`SELECT date_label, total, absent, present, unavailable, on_the_line, presence_rate, updated_at
		 FROM day_aggregates WHERE date_label = ?`, string(label),
	).Scan(&dateLabel, &agg.Total, &agg.Absent, &agg.Present, &agg.Unavailable, &agg.OnTheLine, &rate, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	agg.DateLabel = muster.DayLabel(dateLabel)
	agg.PresenceRate, _ = decimal.NewFromString(rate)
	agg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &agg, nil
}

// ListAggregates returns up to limit aggregate rows, newest label first.
func (s *Store) ListAggregates(ctx context.Context, limit int) ([]muster.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT date_label, total, absent, present, unavailable, on_the_line, presence_rate, updated_at
		 FROM day_aggregates ORDER BY date_label DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []muster.Aggregate
	for rows.Next() {
		var (
			agg       muster.Aggregate
			dateLabel string
			rate      string
			updatedAt string
		)
		if err := rows.Scan(&dateLabel, &agg.Total, &agg.Absent, &agg.Present,
			&agg.Unavailable, &agg.OnTheLine, &rate, &updatedAt); err != nil {
			return nil, err
		}
		agg.DateLabel = muster.DayLabel(dateLabel)
		agg.PresenceRate, _ = decimal.NewFromString(rate)
		agg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, agg)
	}
	return out, rows.Err()
}

// =============================================================================
// SNAPSHOT STORE (muster.SnapshotStore interface)
// =============================================================================

// ReplacePersonSnapshots deletes every snapshot row for the label and
// inserts the given rows. INSERT OR IGNORE absorbs (label, person)
// collisions from a concurrent or overlapping run.
func (s *Store) ReplacePersonSnapshots(ctx context.Context, label muster.DayLabel, rows []muster.PersonSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return replacePersonSnapshots(ctx, s.db, label, rows)
}

func replacePersonSnapshots(ctx context.Context, db dbtx, label muster.DayLabel, rows []muster.PersonSnapshot) error {
	if _, err := db.ExecContext(ctx,
		"DELETE FROM day_person_snapshots WHERE date_label = ?", string(label)); err != nil {
		return fmt.Errorf("failed to clear snapshots for %s: %w", label, err)
	}

	query := `
		INSERT OR IGNORE INTO day_person_snapshots
		(date_label, person_id, status, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range rows {
		createdAt := now
		if !r.CreatedAt.IsZero() {
			createdAt = r.CreatedAt.UTC().Format(time.RFC3339)
		}
		if _, err := db.ExecContext(ctx, query,
			string(label), r.PersonID, string(r.Status), nullString(r.Reason), createdAt); err != nil {
			return fmt.Errorf("failed to insert snapshot for %s/%s: %w", label, r.PersonID, err)
		}
	}
	return nil
}

// ListPersonSnapshots returns snapshot rows for a label, optionally
// filtered by status ("" means all).
func (s *Store) ListPersonSnapshots(ctx context.Context, label muster.DayLabel, status muster.Status) ([]muster.PersonSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPersonSnapshots(ctx, s.db, label, status)
}

func listPersonSnapshots(ctx context.Context, db dbtx, label muster.DayLabel, status muster.Status) ([]muster.PersonSnapshot, error) {
	query := `
		SELECT date_label, person_id, status, reason, created_at
		FROM day_person_snapshots
		WHERE date_label = ?
	`
	args := []any{string(label)}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY person_id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []muster.PersonSnapshot
	for rows.Next() {
		var (
			r         muster.PersonSnapshot
			dateLabel string
			st        string
			reason    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&dateLabel, &r.PersonID, &st, &reason, &createdAt); err != nil {
			return nil, err
		}
		r.DateLabel = muster.DayLabel(dateLabel)
		r.Status = muster.Status(st)
		r.Reason = reason.String
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// RUN STORE (muster.RunStore interface)
// =============================================================================

// SaveRun inserts or updates a finalize run record.
func (s *Store) SaveRun(ctx context.Context, run muster.FinalizeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO finalize_runs
		(id, date_label, status, personnel_count, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			personnel_count = excluded.personnel_count,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.DateLabel), string(run.Status), run.PersonnelCount,
		nullString(run.Error),
		nullTime(run.StartedAt), nullTime(run.CompletedAt),
		createdAt.Format(time.RFC3339),
	)
	return err
}

// ListRuns returns finalize runs, newest first, optionally filtered by status.
func (s *Store) ListRuns(ctx context.Context, status muster.RunStatus) ([]muster.FinalizeRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, date_label, status, personnel_count, error, started_at, completed_at, created_at
		FROM finalize_runs
	`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []muster.FinalizeRun
	for rows.Next() {
		var (
			r         muster.FinalizeRun
			dateLabel string
			st        string
			errMsg    sql.NullString
			startedAt sql.NullString
			completed sql.NullString
			createdAt string
		)
		if err := rows.Scan(&r.ID, &dateLabel, &st, &r.PersonnelCount,
			&errMsg, &startedAt, &completed, &createdAt); err != nil {
			return nil, err
		}
		r.DateLabel = muster.DayLabel(dateLabel)
		r.Status = muster.RunStatus(st)
		r.Error = errMsg.String
		if startedAt.Valid {
			t, _ := time.Parse(time.RFC3339, startedAt.String)
			r.StartedAt = &t
		}
		if completed.Valid {
			t, _ := time.Parse(time.RFC3339, completed.String)
			r.CompletedAt = &t
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (muster.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. The view passed
// to fn routes ALL operations - reads included - through the transaction,
// so the finalizer's post-reset read observes the uncommitted reset.
func (s *Store) WithTx(ctx context.Context, fn func(muster.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) ListPersonnel(ctx context.Context) ([]muster.PersonStatus, error) {
	return listPersonnel(ctx, ts.tx)
}

func (ts *txStore) ResetStatuses(ctx context.Context) (int, error) {
	return resetStatuses(ctx, ts.tx)
}

func (ts *txStore) UpsertAggregate(ctx context.Context, agg muster.Aggregate) error {
	return upsertAggregate(ctx, ts.tx, agg)
}

func (ts *txStore) GetAggregate(ctx context.Context, label muster.DayLabel) (*muster.Aggregate, error) {
	return getAggregate(ctx, ts.tx, label)
}

func (ts *txStore) ReplacePersonSnapshots(ctx context.Context, label muster.DayLabel, rows []muster.PersonSnapshot) error {
	return replacePersonSnapshots(ctx, ts.tx, label, rows)
}

func (ts *txStore) ListPersonSnapshots(ctx context.Context, label muster.DayLabel, status muster.Status) ([]muster.PersonSnapshot, error) {
	return listPersonSnapshots(ctx, ts.tx, label, status)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"personnel", "day_aggregates", "day_person_snapshots", "finalize_runs"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
