package scheduler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/toposort"
)

// DAG is the execution graph of tasks. Task names are case-insensitive.
type DAG struct {
	mu    sync.RWMutex
	tasks map[string]*Task // All tasks indexed by ID
	order []string         // IDs in registration order
}

// NewDAG creates an empty DAG.
func NewDAG() *DAG {
	return &DAG{
		tasks: make(map[string]*Task),
	}
}

// TaskID returns the ID a task named name is stored under.
func TaskID(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AddTask adds a task to the DAG. Returns error if a task with the same name already exists.
func (d *DAG) AddTask(task *Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addLocked(task)
}

func (d *DAG) addLocked(task *Task) error {
	if task.Name == "" {
		task.Name = task.ID
	}
	task.ID = TaskID(task.Name)
	if task.ID == "" {
		return fmt.Errorf("task name must not be empty")
	}

	if _, exists := d.tasks[task.ID]; exists {
		return fmt.Errorf("task with name %q already exists", task.Name)
	}

	d.tasks[task.ID] = task
	d.order = append(d.order, task.ID)
	return nil
}

// RegisterTask adds an empty task and returns the builder used to configure it.
func (d *DAG) RegisterTask(name string) (*TaskBuilder, error) {
	task := &Task{Name: name}
	if err := d.AddTask(task); err != nil {
		return nil, err
	}
	return &TaskBuilder{dag: d, id: task.ID}, nil
}

// Builder returns the builder for an already registered task.
func (d *DAG) Builder(name string) (*TaskBuilder, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id := TaskID(name)
	if _, ok := d.tasks[id]; !ok {
		return nil, false
	}
	return &TaskBuilder{dag: d, id: id}, true
}

// Has reports whether a task named name is registered.
func (d *DAG) Has(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.tasks[TaskID(name)]
	return ok
}

// dependenciesLocked returns the IDs a task waits for: its own DependsOn in
// declaration order, then every task naming it in DependeeOf in registration
// order.
func (d *DAG) dependenciesLocked(task *Task) []string {
	seen := make(map[string]bool)
	var deps []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			deps = append(deps, id)
		}
	}

	for _, name := range task.DependsOn {
		add(TaskID(name))
	}
	for _, id := range d.order {
		for _, name := range d.tasks[id].DependeeOf {
			if TaskID(name) == task.ID {
				add(id)
			}
		}
	}
	return deps
}

// Dependencies returns the IDs the named task waits for.
func (d *DAG) Dependencies(name string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	task, ok := d.tasks[TaskID(name)]
	if !ok {
		return nil
	}
	return d.dependenciesLocked(task)
}

// Validate runs topological sort using gammazero/toposort.
// Returns ordered task IDs or error if cycle detected.
// Also verifies every task named in DependsOn or DependeeOf exists.
func (d *DAG) Validate() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, id := range d.order {
		task := d.tasks[id]
		for _, name := range task.DependsOn {
			if _, exists := d.tasks[TaskID(name)]; !exists {
				return nil, fmt.Errorf("task %q depends on non-existent task %q", task.Name, name)
			}
		}
		for _, name := range task.DependeeOf {
			if _, exists := d.tasks[TaskID(name)]; !exists {
				return nil, fmt.Errorf("task %q is a dependee of non-existent task %q", task.Name, name)
			}
		}
	}

	var edges []toposort.Edge
	for _, id := range d.order {
		deps := d.dependenciesLocked(d.tasks[id])
		if len(deps) == 0 {
			// Root task: edge from nil keeps it in the result
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, dep := range deps {
			// Edge (dep, id) means dep must come before id
			edges = append(edges, toposort.Edge{dep, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("task graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	// Every task must appear, otherwise part of the graph sits on a cycle
	if len(order) != len(d.tasks) {
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		var missing []string
		for _, id := range d.order {
			if !found[id] {
				missing = append(missing, d.tasks[id].Name)
			}
		}
		return nil, fmt.Errorf("task graph contains cycle through: %s", strings.Join(missing, ", "))
	}

	return order, nil
}

// Plan returns the IDs to execute for target, dependencies first. Siblings
// keep their declaration order. With exclusive set only the target itself
// is planned.
func (d *DAG) Plan(target string, exclusive bool) ([]string, error) {
	if _, err := d.Validate(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	root, ok := d.tasks[TaskID(target)]
	if !ok {
		return nil, fmt.Errorf("task %q not found", target)
	}
	if exclusive {
		return []string{root.ID}, nil
	}

	var plan []string
	seen := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, dep := range d.dependenciesLocked(d.tasks[id]) {
			visit(dep)
		}
		plan = append(plan, id)
	}
	visit(root.ID)

	return plan, nil
}

// Subgraph copies the listed tasks into a new DAG in the given order.
// Edges to tasks outside the list are dropped; with keepEdges false every
// edge is dropped.
func (d *DAG) Subgraph(ids []string, keepEdges bool) (*DAG, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	in := make(map[string]bool, len(ids))
	for _, id := range ids {
		in[TaskID(id)] = true
	}

	filter := func(names []string) []string {
		if !keepEdges {
			return nil
		}
		var kept []string
		for _, name := range names {
			if in[TaskID(name)] {
				kept = append(kept, name)
			}
		}
		return kept
	}

	sub := NewDAG()
	for _, id := range ids {
		task, ok := d.tasks[TaskID(id)]
		if !ok {
			return nil, fmt.Errorf("task %q not found", id)
		}
		cp := cloneTask(task)
		cp.DependsOn = filter(task.DependsOn)
		cp.DependeeOf = filter(task.DependeeOf)
		cp.Status, cp.SkipReason, cp.Result, cp.Error, cp.Duration = TaskPending, "", "", nil, 0
		if err := sub.addLocked(cp); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// Eligible returns all tasks with status TaskPending whose dependencies are ALL resolved,
// in registration order.
func (d *DAG) Eligible() []*Task {
	d.mu.RLock()
	defer d.mu.RUnlock()

	eligible := []*Task{}

	for _, id := range d.order {
		task := d.tasks[id]
		if task.Status != TaskPending {
			continue
		}

		allResolved := true
		for _, depID := range d.dependenciesLocked(task) {
			dep, exists := d.tasks[depID]
			if !exists || !isDependencyResolved(dep) {
				allResolved = false
				break
			}
		}

		if allResolved {
			eligible = append(eligible, cloneTask(task))
		}
	}

	return eligible
}

// DependenciesResolved reports whether every dependency of the task allows it to start.
func (d *DAG) DependenciesResolved(taskID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	task, ok := d.tasks[TaskID(taskID)]
	if !ok {
		return false
	}
	for _, depID := range d.dependenciesLocked(task) {
		dep, exists := d.tasks[depID]
		if !exists || !isDependencyResolved(dep) {
			return false
		}
	}
	return true
}

// isDependencyResolved checks if a dependency task is resolved based on its status and failure mode.
func isDependencyResolved(dep *Task) bool {
	switch dep.Status {
	case TaskCompleted, TaskSkipped, TaskDelegated:
		return true
	case TaskFailed:
		switch dep.FailureMode {
		case FailSoft, FailSkip:
			return true
		case FailHard:
			return false
		}
	}
	return false
}

func (d *DAG) update(taskID string, fn func(*Task)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, exists := d.tasks[TaskID(taskID)]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	fn(task)
	return nil
}

// MarkRunning sets task status to TaskRunning.
func (d *DAG) MarkRunning(taskID string) error {
	return d.update(taskID, func(t *Task) { t.Status = TaskRunning })
}

// MarkCompleted sets task status to TaskCompleted and stores result.
func (d *DAG) MarkCompleted(taskID string, result string) error {
	return d.update(taskID, func(t *Task) {
		t.Status = TaskCompleted
		t.Result = result
	})
}

// MarkFailed sets task status to TaskFailed and stores error.
// Behavior depends on FailureMode:
// - FailHard: dependents stay pending forever
// - FailSoft: dependents can become eligible
// - FailSkip: treat as completed for dependency resolution
func (d *DAG) MarkFailed(taskID string, err error) error {
	return d.update(taskID, func(t *Task) {
		t.Status = TaskFailed
		t.Error = err
	})
}

// MarkSkipped sets task status to TaskSkipped with the criterion message.
func (d *DAG) MarkSkipped(taskID string, reason string) error {
	return d.update(taskID, func(t *Task) {
		t.Status = TaskSkipped
		t.SkipReason = reason
	})
}

// MarkDelegated sets task status to TaskDelegated.
func (d *DAG) MarkDelegated(taskID string) error {
	return d.update(taskID, func(t *Task) { t.Status = TaskDelegated })
}

// SetDuration records how long the task took.
func (d *DAG) SetDuration(taskID string, duration time.Duration) error {
	return d.update(taskID, func(t *Task) { t.Duration = duration })
}

// Get returns a copy of the task.
func (d *DAG) Get(taskID string) (*Task, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	task, exists := d.tasks[TaskID(taskID)]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns copies of all tasks in registration order.
func (d *DAG) Tasks() []*Task {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tasks := make([]*Task, 0, len(d.order))
	for _, id := range d.order {
		tasks = append(tasks, cloneTask(d.tasks[id]))
	}
	return tasks
}

// Len returns the number of tasks.
func (d *DAG) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

// Order returns topologically sorted task IDs (calls Validate).
func (d *DAG) Order() ([]string, error) {
	return d.Validate()
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	if task.DependeeOf != nil {
		cp.DependeeOf = append([]string(nil), task.DependeeOf...)
	}
	if task.WritesFiles != nil {
		cp.WritesFiles = append([]string(nil), task.WritesFiles...)
	}
	if task.Criteria != nil {
		cp.Criteria = append([]Criterion(nil), task.Criteria...)
	}
	if task.Actions != nil {
		cp.Actions = append([]Action(nil), task.Actions...)
	}
	return &cp
}
