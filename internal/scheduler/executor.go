package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Executor runs the body of one task at a time against its DAG, holding the
// task's write locks while it runs.
type Executor struct {
	dag     *DAG
	lockMgr *ResourceLockManager
}

// NewExecutor creates a new Executor.
func NewExecutor(dag *DAG, lockMgr *ResourceLockManager) *Executor {
	if lockMgr == nil {
		lockMgr = NewResourceLockManager()
	}
	return &Executor{
		dag:     dag,
		lockMgr: lockMgr,
	}
}

// ExecuteTask runs a single task: criteria first, then its actions, the
// error handler on failure and the finally action last.
// The outcome is recorded in the DAG; the returned error only reports
// misuse (unknown or ineligible task).
func (e *Executor) ExecuteTask(ctx context.Context, taskID string) error {
	task, exists := e.dag.Get(taskID)
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}

	if task.Status != TaskPending && task.Status != TaskEligible {
		return fmt.Errorf("task %q is not eligible (status: %s)", task.Name, task.Status)
	}

	if !e.dag.DependenciesResolved(task.ID) {
		return fmt.Errorf("task %q has unresolved dependencies", task.Name)
	}

	start := time.Now()
	defer func() { _ = e.dag.SetDuration(task.ID, time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		_ = e.dag.MarkFailed(task.ID, fmt.Errorf("context cancelled before execution: %w", err))
		return nil
	}

	for _, c := range task.Criteria {
		ok, err := c.Predicate(ctx)
		if err != nil {
			_ = e.dag.MarkFailed(task.ID, fmt.Errorf("evaluating criteria: %w", err))
			return nil
		}
		if !ok {
			_ = e.dag.MarkSkipped(task.ID, c.Message)
			return nil
		}
	}

	if err := e.dag.MarkRunning(task.ID); err != nil {
		return err
	}

	e.lockMgr.LockAll(task.WritesFiles)
	defer e.lockMgr.UnlockAll(task.WritesFiles)

	var runErr error
	for _, action := range task.Actions {
		if runErr = action(ctx); runErr != nil {
			break
		}
	}

	if runErr != nil && task.ErrorHandler != nil {
		runErr = task.ErrorHandler(ctx, runErr)
	}

	if task.Finally != nil {
		if err := task.Finally(ctx); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("finally: %w", err))
		}
	}

	switch {
	case runErr != nil:
		_ = e.dag.MarkFailed(task.ID, runErr)
	case task.Delegated():
		_ = e.dag.MarkDelegated(task.ID)
	default:
		_ = e.dag.MarkCompleted(task.ID, "")
	}
	return nil
}

// NextEligible returns tasks that are ready to run.
func (e *Executor) NextEligible() []*Task {
	return e.dag.Eligible()
}
