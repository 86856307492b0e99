package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status is the terminal state of one dependency in a run.
type Status string

const (
	StatusInstalled Status = "installed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Run is one recorded reconciliation.
type Run struct {
	ID           string
	Operation    string // "install", "add" or "codegen"
	Group        string // target group selector
	GenerateCode bool
	StartedAt    time.Time
	FinishedAt   time.Time
	Outcomes     []Outcome
}

// Outcome is the result for one dependency. Seq is the position in the
// report, starting at 1.
type Outcome struct {
	Seq        int
	Group      string
	Dependency string
	Status     Status
	Version    string
	Path       string
	Detail     string // skip reason or error message
}

// Summary is a run with its outcome counts, as listed by ListRuns.
type Summary struct {
	Run
	Installed int
	Skipped   int
	Failed    int
}

const timeLayout = time.RFC3339Nano

// RecordRun appends a run and its outcomes in one transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - recording the same run
// ID twice keeps the first record.
func (s *Store) RecordRun(ctx context.Context, run Run) (err error) {
	if run.ID == "" {
		return errors.New("record run: empty run ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, operation, target_group, generate_code, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Operation,
		run.Group,
		run.GenerateCode,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("record run: %w", err)
	} else if n == 0 {
		return tx.Commit()
	}

	for _, o := range run.Outcomes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO outcomes (run_id, seq, group_name, dependency, status, version, path, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, o.Seq, o.Group, o.Dependency, string(o.Status), o.Version, o.Path, o.Detail)
		if err != nil {
			return fmt.Errorf("record outcome %s: %w", o.Dependency, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first, with outcome
// counts. limit <= 0 returns every run. Outcomes are not loaded; use
// Outcomes for one run's entries.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.operation, r.target_group, r.generate_code, r.started_at, r.finished_at,
			COALESCE(SUM(o.status = 'installed'), 0),
			COALESCE(SUM(o.status = 'skipped'), 0),
			COALESCE(SUM(o.status = 'failed'), 0)
		FROM runs r
		LEFT JOIN outcomes o ON o.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Summary{}
	for rows.Next() {
		var sum Summary
		var started, finished string
		if err := rows.Scan(
			&sum.ID, &sum.Operation, &sum.Group, &sum.GenerateCode, &started, &finished,
			&sum.Installed, &sum.Skipped, &sum.Failed,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if sum.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s: started_at: %w", sum.ID, err)
		}
		if sum.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("run %s: finished_at: %w", sum.ID, err)
		}
		runs = append(runs, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Outcomes returns the outcomes of one run in report order. An unknown run
// yields sql.ErrNoRows.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, group_name, dependency, status, version, path, detail
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []Outcome{}
	for rows.Next() {
		var o Outcome
		var status string
		if err := rows.Scan(&o.Seq, &o.Group, &o.Dependency, &status, &o.Version, &o.Path, &o.Detail); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = Status(status)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outcomes, nil
}
