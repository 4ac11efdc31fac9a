package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/kiln/internal/events"
	"github.com/aristath/kiln/internal/logging"
	"github.com/aristath/kiln/internal/persistence"
	"github.com/aristath/kiln/internal/scheduler"
)

// TaskFailedError aborts a run when a task that does not continue on error fails.
type TaskFailedError struct {
	Task string
	Err  error
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task, e.Err)
}

func (e *TaskFailedError) Unwrap() error { return e.Err }

// Recorder stores run history. *persistence.SQLiteStore satisfies it.
type Recorder interface {
	StartRun(ctx context.Context, runID, target string, started time.Time) error
	RecordTask(ctx context.Context, runID string, task *scheduler.Task) error
	FinishRun(ctx context.Context, runID, status string, finished time.Time) error
}

// Config configures a Runner.
type Config struct {
	Concurrency int  // Max tasks at once; <= 1 runs the plan sequentially
	Exclusive   bool // Run only the target, ignoring its dependencies
	Bus         *events.EventBus
	Recorder    Recorder
	Setup       func(ctx context.Context) error // Before the first task
	Teardown    func(ctx context.Context) error // After the last task, always
	Logger      *slog.Logger
}

// TaskResult is the outcome of one executed task.
type TaskResult struct {
	Name       string
	Status     scheduler.TaskStatus
	Error      error
	SkipReason string
	Duration   time.Duration
}

// Report summarises a run.
type Report struct {
	RunID    string
	Target   string
	Plan     []string
	Results  []TaskResult // In completion order
	Duration time.Duration
}

// Failed returns the results of failed tasks.
func (r *Report) Failed() []TaskResult {
	var failed []TaskResult
	for _, res := range r.Results {
		if res.Status == scheduler.TaskFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Runner executes the plan for a target over a task graph.
type Runner struct {
	config  Config
	dag     *scheduler.DAG
	lockMgr *scheduler.ResourceLockManager
	logger  *slog.Logger
}

// NewRunner creates a new runner. lockMgr may be nil.
func NewRunner(cfg Config, dag *scheduler.DAG, lockMgr *scheduler.ResourceLockManager) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if lockMgr == nil {
		lockMgr = scheduler.NewResourceLockManager()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{
		config:  cfg,
		dag:     dag,
		lockMgr: lockMgr,
		logger:  logger,
	}
}

// run is the state of one Run call.
type run struct {
	*Runner
	id     string
	graph  *scheduler.DAG
	exec   *scheduler.Executor
	mu     sync.Mutex
	report *Report
}

// Run executes target and everything it depends on. A task failing
// without continue-on-error stops the run with *TaskFailedError; tasks not
// yet started are not executed. Teardown runs regardless.
func (r *Runner) Run(ctx context.Context, target string) (*Report, error) {
	plan, err := r.dag.Plan(target, r.config.Exclusive)
	if err != nil {
		return nil, err
	}
	graph, err := r.dag.Subgraph(plan, !r.config.Exclusive)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	st := &run{
		Runner: r,
		id:     uuid.NewString(),
		graph:  graph,
		exec:   scheduler.NewExecutor(graph, r.lockMgr),
		report: &Report{Target: target, Plan: plan},
	}
	st.report.RunID = st.id

	logger := r.logger.With("run", st.id)
	logger.Info("starting run", "target", target, "tasks", len(plan))

	if r.config.Recorder != nil {
		if err := r.config.Recorder.StartRun(ctx, st.id, target, start); err != nil {
			logger.Warn("failed to record run start", "error", err)
		}
	}
	st.emit(events.RunStartedEvent{RunID: st.id, Target: target, Plan: plan, Timestamp: start})

	runErr := st.setup(ctx)
	if runErr == nil {
		if r.config.Concurrency > 1 && !r.config.Exclusive {
			runErr = st.runParallel(ctx)
		} else {
			runErr = st.runSequential(ctx, plan)
		}
	}

	if r.config.Teardown != nil {
		if err := r.config.Teardown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("teardown failed", "error", err)
			runErr = errors.Join(runErr, fmt.Errorf("teardown: %w", err))
		}
	}

	st.report.Duration = time.Since(start)
	status := persistence.RunSucceeded
	if runErr != nil {
		status = persistence.RunFailed
		logger.Error("run failed", "error", runErr, "duration", st.report.Duration)
	} else {
		logger.Info("run finished", "duration", st.report.Duration)
	}

	if r.config.Recorder != nil {
		if err := r.config.Recorder.FinishRun(context.WithoutCancel(ctx), st.id, status, time.Now()); err != nil {
			logger.Warn("failed to record run end", "error", err)
		}
	}
	st.emit(events.RunFinishedEvent{RunID: st.id, Err: runErr, Duration: st.report.Duration, Timestamp: time.Now()})

	return st.report, runErr
}

func (st *run) setup(ctx context.Context) error {
	if st.config.Setup == nil {
		return nil
	}
	if err := st.config.Setup(ctx); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	return nil
}

func (st *run) runSequential(ctx context.Context, plan []string) error {
	for _, id := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := st.runTask(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// runParallel executes waves of eligible tasks with bounded concurrency.
func (st *run) runParallel(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		eligible := st.graph.Eligible()
		if len(eligible) == 0 {
			return nil
		}

		var (
			g       errgroup.Group
			abortMu sync.Mutex
			abort   error
		)
		g.SetLimit(st.config.Concurrency)

		for _, task := range eligible {
			g.Go(func() error {
				if err := st.runTask(ctx, task.ID); err != nil {
					abortMu.Lock()
					abort = errors.Join(abort, err)
					abortMu.Unlock()
				}
				return nil
			})
		}
		g.Wait()

		if abort != nil {
			return abort
		}
	}
}

// runTask executes one task and reports it. The returned error aborts the run.
func (st *run) runTask(ctx context.Context, id string) error {
	task, ok := st.graph.Get(id)
	if !ok {
		return fmt.Errorf("task %q not in plan", id)
	}

	logger := st.logger.With("run", st.id, "task", task.Name)
	taskCtx := logging.WithLogger(ctx, logger)
	taskCtx = events.WithOutput(taskCtx, func(line string) {
		logger.Debug(line)
		st.emit(events.TaskOutputEvent{ID: task.ID, Line: line, Timestamp: time.Now()})
	})

	logger.Info("task started")
	st.emit(events.TaskStartedEvent{ID: task.ID, Name: task.Name, Description: task.Description, Timestamp: time.Now()})

	if err := st.exec.ExecuteTask(taskCtx, id); err != nil {
		return err
	}

	done, _ := st.graph.Get(id)
	st.finish(ctx, logger, done)

	if done.Status == scheduler.TaskFailed && done.FailureMode == scheduler.FailHard {
		return &TaskFailedError{Task: done.Name, Err: done.Error}
	}
	return nil
}

func (st *run) finish(ctx context.Context, logger *slog.Logger, task *scheduler.Task) {
	now := time.Now()

	switch task.Status {
	case scheduler.TaskCompleted, scheduler.TaskDelegated:
		logger.Info("task completed", "duration", task.Duration, "delegated", task.Status == scheduler.TaskDelegated)
		st.emit(events.TaskCompletedEvent{ID: task.ID, Delegated: task.Status == scheduler.TaskDelegated, Duration: task.Duration, Timestamp: now})
	case scheduler.TaskSkipped:
		logger.Info("task skipped", "reason", task.SkipReason)
		st.emit(events.TaskSkippedEvent{ID: task.ID, Reason: task.SkipReason, Timestamp: now})
	case scheduler.TaskFailed:
		continued := task.FailureMode != scheduler.FailHard
		if continued {
			logger.Warn("task failed, continuing", "error", task.Error)
		} else {
			logger.Error("task failed", "error", task.Error)
		}
		st.emit(events.TaskFailedEvent{ID: task.ID, Err: task.Error, Continued: continued, Duration: task.Duration, Timestamp: now})
	}

	st.mu.Lock()
	st.report.Results = append(st.report.Results, TaskResult{
		Name:       task.Name,
		Status:     task.Status,
		Error:      task.Error,
		SkipReason: task.SkipReason,
		Duration:   task.Duration,
	})
	st.mu.Unlock()

	if st.config.Recorder != nil {
		if err := st.config.Recorder.RecordTask(context.WithoutCancel(ctx), st.id, task); err != nil {
			logger.Warn("failed to record task", "error", err)
		}
	}

	st.progress()
}

// progress publishes task counts for the current graph.
func (st *run) progress() {
	if st.config.Bus == nil {
		return
	}
	p := events.RunProgressEvent{Timestamp: time.Now()}
	for _, t := range st.graph.Tasks() {
		p.Total++
		switch t.Status {
		case scheduler.TaskCompleted, scheduler.TaskDelegated:
			p.Completed++
		case scheduler.TaskRunning:
			p.Running++
		case scheduler.TaskFailed:
			p.Failed++
		case scheduler.TaskSkipped:
			p.Skipped++
		default:
			p.Pending++
		}
	}
	st.config.Bus.Emit(p)
}

func (st *run) emit(e events.Event) {
	if st.config.Bus != nil {
		st.config.Bus.Emit(e)
	}
}
