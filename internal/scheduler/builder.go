package scheduler

import "strings"

// TaskBuilder configures a registered task. It is the handle configurators
// receive; every method returns the builder for chaining.
type TaskBuilder struct {
	dag *DAG
	id  string
}

func (b *TaskBuilder) with(fn func(*Task)) *TaskBuilder {
	_ = b.dag.update(b.id, fn)
	return b
}

// Name returns the task name as registered.
func (b *TaskBuilder) Name() string {
	task, _ := b.dag.Get(b.id)
	return task.Name
}

// ID returns the task ID.
func (b *TaskBuilder) ID() string {
	return b.id
}

// Description sets the task description.
func (b *TaskBuilder) Description(text string) *TaskBuilder {
	return b.with(func(t *Task) { t.Description = text })
}

// IsDependentOn makes the task wait for the named task.
func (b *TaskBuilder) IsDependentOn(name string) *TaskBuilder {
	return b.with(func(t *Task) { t.DependsOn = appendName(t.DependsOn, name) })
}

// IsDependeeOf makes the named task wait for this one.
func (b *TaskBuilder) IsDependeeOf(name string) *TaskBuilder {
	return b.with(func(t *Task) { t.DependeeOf = appendName(t.DependeeOf, name) })
}

// WithCriteria adds a gate. The task is skipped with message when the
// predicate returns false.
func (b *TaskBuilder) WithCriteria(predicate Predicate, message string) *TaskBuilder {
	return b.with(func(t *Task) {
		t.Criteria = append(t.Criteria, Criterion{Predicate: predicate, Message: message})
	})
}

// Does appends an action to the task body.
func (b *TaskBuilder) Does(action Action) *TaskBuilder {
	return b.with(func(t *Task) { t.Actions = append(t.Actions, action) })
}

// ContinueOnError lets the run proceed past this task's failure.
func (b *TaskBuilder) ContinueOnError() *TaskBuilder {
	return b.with(func(t *Task) { t.FailureMode = FailSoft })
}

// OnError sets the error handler.
func (b *TaskBuilder) OnError(handler ErrorHandler) *TaskBuilder {
	return b.with(func(t *Task) { t.ErrorHandler = handler })
}

// Finally sets the teardown action, run after the body whatever its outcome.
func (b *TaskBuilder) Finally(action Action) *TaskBuilder {
	return b.with(func(t *Task) { t.Finally = action })
}

// Writes declares paths the task writes. Tasks writing the same path never
// run at the same time.
func (b *TaskBuilder) Writes(paths ...string) *TaskBuilder {
	return b.with(func(t *Task) { t.WritesFiles = append(t.WritesFiles, paths...) })
}

func appendName(names []string, name string) []string {
	for _, existing := range names {
		if strings.EqualFold(existing, name) {
			return names
		}
	}
	return append(names, name)
}
