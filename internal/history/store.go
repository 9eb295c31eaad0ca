// Package history keeps a SQLite ledger of bucketsort runs and the outcome
// of every file they processed.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/bucketsort/internal/models"
)

const timeLayout = time.RFC3339Nano

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID         string
	SourceRoot    string
	OutputRoot    string
	StartedAt     time.Time
	FinishedAt    time.Time // zero while the run is in progress or was interrupted hard
	Duration      time.Duration
	Discovered    int
	Excluded      int
	Succeeded     int
	SkippedLocked int
	Failed        int
}

// Finished reports whether the run recorded its summary.
func (r *RunRecord) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// OutcomeRecord is one row of the outcomes table.
type OutcomeRecord struct {
	ID          int64
	RunID       string
	SourcePath  string
	RelPath     string
	Destination string
	Kind        string
	Attempts    int
	Reason      string
	Duration    time.Duration
}

// Store manages the SQLite run ledger
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginRun inserts the run row before any outcome is recorded.
func (s *Store) BeginRun(summary *models.RunSummary) error {
	_, err := s.db.Exec(`INSERT INTO runs (run_id, source_root, output_root, started_at) VALUES (?, ?, ?, ?)`,
		summary.RunID, summary.SourceRoot, summary.OutputRoot, summary.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", summary.RunID, err)
	}
	return nil
}

// RecordOutcome stores one file outcome of runID.
func (s *Store) RecordOutcome(runID string, outcome models.Outcome) error {
	_, err := s.db.Exec(`INSERT INTO outcomes
		(run_id, source_path, rel_path, destination, kind, attempts, reason, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		outcome.Task.SourcePath,
		outcome.Task.RelPath,
		outcome.Destination,
		outcome.Kind.String(),
		outcome.Attempts,
		outcome.Reason(),
		outcome.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert outcome for %s: %w", outcome.Task.SourcePath, err)
	}
	return nil
}

// FinishRun stores the final counts of a run.
func (s *Store) FinishRun(summary *models.RunSummary) error {
	res, err := s.db.Exec(`UPDATE runs SET
		finished_at = ?, duration_ms = ?, discovered = ?, excluded = ?,
		succeeded = ?, skipped_locked = ?, failed = ?
		WHERE run_id = ?`,
		summary.StartedAt.Add(summary.Duration).UTC().Format(timeLayout),
		summary.Duration.Milliseconds(),
		summary.Discovered,
		summary.Excluded,
		summary.Succeeded,
		summary.SkippedLocked,
		summary.Failed,
		summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", summary.RunID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %s: run not found", summary.RunID)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `SELECT run_id, source_root, output_root, started_at, finished_at, duration_ms,
		discovered, excluded, succeeded, skipped_locked, failed
		FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var (
			r          RunRecord
			startedAt  string
			finishedAt sql.NullString
			durationMs int64
		)
		if err := rows.Scan(&r.RunID, &r.SourceRoot, &r.OutputRoot, &startedAt, &finishedAt, &durationMs,
			&r.Discovered, &r.Excluded, &r.Succeeded, &r.SkippedLocked, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at of run %s: %w", r.RunID, err)
		}
		if finishedAt.Valid {
			if r.FinishedAt, err = time.Parse(timeLayout, finishedAt.String); err != nil {
				return nil, fmt.Errorf("parse finished_at of run %s: %w", r.RunID, err)
			}
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetOutcomes returns the outcomes of runID in insertion order. kind filters
// by outcome kind when not empty.
func (s *Store) GetOutcomes(ctx context.Context, runID, kind string) ([]*OutcomeRecord, error) {
	query := `SELECT id, run_id, source_path, rel_path, destination, kind, attempts, reason, duration_ms
		FROM outcomes WHERE run_id = ?`
	args := []interface{}{runID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*OutcomeRecord
	for rows.Next() {
		var (
			o           OutcomeRecord
			destination sql.NullString
			reason      sql.NullString
			durationMs  int64
		)
		if err := rows.Scan(&o.ID, &o.RunID, &o.SourcePath, &o.RelPath, &destination, &o.Kind,
			&o.Attempts, &reason, &durationMs); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Destination = destination.String
		o.Reason = reason.String
		o.Duration = time.Duration(durationMs) * time.Millisecond
		outcomes = append(outcomes, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}
