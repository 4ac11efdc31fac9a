package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/kiln/internal/scheduler"
)

const queryTimeout = 5 * time.Second

// StartRun inserts a run in the running state.
func (s *SQLiteStore) StartRun(ctx context.Context, runID, target string, started time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, target, status, started_at)
		VALUES (?, ?, ?, ?)
	`, runID, target, RunRunning, started.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", runID, err)
	}
	return nil
}

// RecordTask appends the outcome of task to runID. Tasks are numbered in
// the order they are recorded.
func (s *SQLiteStore) RecordTask(ctx context.Context, runID string, task *scheduler.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM task_results WHERE run_id = ?`, runID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("failed to number task result: %w", err)
	}

	errorStr := ""
	if task.Error != nil {
		errorStr = task.Error.Error()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO task_results (run_id, seq, name, status, skip_reason, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, seq, task.Name, task.Status.String(), task.SkipReason, errorStr, task.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record task %s: %w", task.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FinishRun sets the final status of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID, status string, finished time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ? WHERE id = ?
	`, status, finished.UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target, status, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Target, &r.Status, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRunTasks returns the task results of a run in execution order.
func (s *SQLiteStore) GetRunTasks(ctx context.Context, runID string) ([]TaskRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, status, COALESCE(skip_reason, ''), COALESCE(error, ''), duration_ms
		FROM task_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task results: %w", err)
	}
	defer rows.Close()

	var tasks []TaskRecord
	for rows.Next() {
		var tr TaskRecord
		var ms int64
		if err := rows.Scan(&tr.Seq, &tr.Name, &tr.Status, &tr.SkipReason, &tr.Error, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan task result: %w", err)
		}
		tr.Duration = time.Duration(ms) * time.Millisecond
		tasks = append(tasks, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task results: %w", err)
	}
	return tasks, nil
}
