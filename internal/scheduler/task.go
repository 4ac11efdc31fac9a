package scheduler

import (
	"context"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus int

const (
	TaskPending   TaskStatus = iota // Waiting for dependencies
	TaskEligible                    // All dependencies resolved, ready to run
	TaskRunning                     // Currently executing
	TaskCompleted                   // Finished successfully
	TaskFailed                      // Finished with error
	TaskSkipped                     // Criteria not met
	TaskDelegated                   // No actions, ordering only
)

var statusNames = map[TaskStatus]string{
	TaskPending:   "pending",
	TaskEligible:  "eligible",
	TaskRunning:   "running",
	TaskCompleted: "completed",
	TaskFailed:    "failed",
	TaskSkipped:   "skipped",
	TaskDelegated: "delegated",
}

func (s TaskStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Finished reports whether the task has reached a terminal state.
func (s TaskStatus) Finished() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskSkipped, TaskDelegated:
		return true
	}
	return false
}

// FailureMode determines how a task's failure affects the run.
type FailureMode int

const (
	FailHard FailureMode = iota // Abort the run, dependents never start
	FailSoft                    // Continue on error: dependents still run
	FailSkip                    // Treat as success for dependency purposes
)

// Action is one step of a task body.
type Action func(ctx context.Context) error

// ErrorHandler observes a task failure. Returning nil marks the error as
// handled; returning an error (the same or another) keeps the task failed.
type ErrorHandler func(ctx context.Context, err error) error

// Predicate decides whether a task should run.
type Predicate func(ctx context.Context) (bool, error)

// Criterion gates a task. Message is reported when the task is skipped.
type Criterion struct {
	Predicate Predicate
	Message   string
}

// Task is one node of the execution graph.
type Task struct {
	ID           string   // Case-folded name, unique within a DAG
	Name         string   // Name as registered
	Description  string
	DependsOn    []string // Names this task depends on
	DependeeOf   []string // Names that depend on this task
	WritesFiles  []string // Paths this task writes (for resource locking)
	Criteria     []Criterion
	Actions      []Action
	ErrorHandler ErrorHandler
	Finally      Action
	Status       TaskStatus
	FailureMode  FailureMode
	SkipReason   string        // Message of the criterion that skipped the task
	Result       string        // Output summary (populated after completion)
	Error        error         // Error if failed
	Duration     time.Duration // Wall time of the last execution
}

// Delegated reports whether the task only orders other tasks.
func (t *Task) Delegated() bool {
	return len(t.Actions) == 0
}
