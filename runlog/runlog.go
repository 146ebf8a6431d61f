// Package runlog keeps the history of verification runs in SQLite.
//
// The store is an observability side-channel: recording a run must never
// fail the run itself, so callers log write errors and move on. Reads
// back the history for the serve surface.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voilier/constat/dbopen"
)

// Run summarises one pipeline invocation.
type Run struct {
	RunID          string    `json:"run_id"`
	BaseURL        string    `json:"base_url"`
	Routes         string    `json:"routes"`
	OutDir         string    `json:"out_dir"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	AssertFailures int       `json:"assert_failures"`
	VisualFailures int       `json:"visual_failures"`
	OK             bool      `json:"ok"`
}

// RouteRow is the per-route outcome within a run.
type RouteRow struct {
	RunID          string `json:"run_id"`
	Route          string `json:"route"`
	ArtifactKey    string `json:"artifact_key"`
	AssertFailures int    `json:"assert_failures"`
	VisualStatus   string `json:"visual_status"`
	VisualSummary  string `json:"visual_summary"`
}

// Store wraps the run-history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a run-history database at path and
// applies the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := ApplySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle, applying the schema.
func NewStore(db *sql.DB) (*Store, error) {
	if err := ApplySchema(db); err != nil {
		return nil, fmt.Errorf("runlog: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// RecordRun inserts a run and its route rows in one transaction.
// Re-recording the same run ID replaces the previous rows.
func (s *Store) RecordRun(ctx context.Context, run Run, routes []RouteRow) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO verification_runs (
				run_id, base_url, routes, out_dir,
				started_at, finished_at, assert_failures, visual_failures, ok
			) VALUES (?,?,?,?,?,?,?,?,?)`,
			run.RunID, run.BaseURL, run.Routes, run.OutDir,
			run.StartedAt.Unix(), run.FinishedAt.Unix(),
			run.AssertFailures, run.VisualFailures, boolToInt(run.OK))
		if err != nil {
			return fmt.Errorf("runlog: insert run: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM verification_routes WHERE run_id = ?`, run.RunID); err != nil {
			return fmt.Errorf("runlog: clear routes: %w", err)
		}
		for _, r := range routes {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO verification_routes (
					run_id, route, artifact_key, assert_failures, visual_status, visual_summary
				) VALUES (?,?,?,?,?,?)`,
				run.RunID, r.Route, r.ArtifactKey, r.AssertFailures, r.VisualStatus, r.VisualSummary)
			if err != nil {
				return fmt.Errorf("runlog: insert route %s: %w", r.Route, err)
			}
		}
		return nil
	})
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, base_url, routes, out_dir, started_at, finished_at,
		       assert_failures, visual_failures, ok
		FROM verification_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run and its route rows. Returns sql.ErrNoRows
// wrapped when the run does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, []RouteRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, base_url, routes, out_dir, started_at, finished_at,
		       assert_failures, visual_failures, ok
		FROM verification_runs WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if err != nil {
		return Run{}, nil, fmt.Errorf("runlog: get run %s: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, route, artifact_key, assert_failures, visual_status, visual_summary
		FROM verification_routes WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return Run{}, nil, fmt.Errorf("runlog: get routes %s: %w", runID, err)
	}
	defer rows.Close()

	var routes []RouteRow
	for rows.Next() {
		var r RouteRow
		if err := rows.Scan(&r.RunID, &r.Route, &r.ArtifactKey,
			&r.AssertFailures, &r.VisualStatus, &r.VisualSummary); err != nil {
			return Run{}, nil, fmt.Errorf("runlog: scan route: %w", err)
		}
		routes = append(routes, r)
	}
	return run, routes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var started, finished int64
	var ok int
	err := sc.Scan(&r.RunID, &r.BaseURL, &r.Routes, &r.OutDir,
		&started, &finished, &r.AssertFailures, &r.VisualFailures, &ok)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(started, 0).UTC()
	r.FinishedAt = time.Unix(finished, 0).UTC()
	r.OK = ok != 0
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
