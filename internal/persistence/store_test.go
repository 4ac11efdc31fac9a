package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/kiln/internal/scheduler"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := store.StartRun(ctx, "run-1", "Default", started); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	tasks := []*scheduler.Task{
		{Name: "Clean", Status: scheduler.TaskCompleted, Duration: 1500 * time.Millisecond},
		{Name: "Pack", Status: scheduler.TaskSkipped, SkipReason: "only on CI"},
		{Name: "Test", Status: scheduler.TaskFailed, Error: errors.New("exit status 1")},
	}
	for _, task := range tasks {
		if err := store.RecordTask(ctx, "run-1", task); err != nil {
			t.Fatalf("RecordTask(%s): %v", task.Name, err)
		}
	}

	if err := store.FinishRun(ctx, "run-1", RunFailed, started.Add(time.Minute)); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	run := runs[0]
	if run.ID != "run-1" || run.Target != "Default" || run.Status != RunFailed {
		t.Errorf("unexpected run %+v", run)
	}
	if !run.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", run.StartedAt, started)
	}
	if run.FinishedAt.Sub(run.StartedAt) != time.Minute {
		t.Errorf("FinishedAt = %v", run.FinishedAt)
	}

	got, err := store.GetRunTasks(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRunTasks: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d task results, want 3", len(got))
	}

	want := []TaskRecord{
		{Seq: 1, Name: "Clean", Status: "completed", Duration: 1500 * time.Millisecond},
		{Seq: 2, Name: "Pack", Status: "skipped", SkipReason: "only on CI"},
		{Seq: 3, Name: "Test", Status: "failed", Error: "exit status 1"},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("task %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestListRuns_NewestFirstWithLimit(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := store.StartRun(ctx, id, "Default", base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("StartRun(%s): %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("ListRuns(2) = %+v", runs)
	}
	if runs[0].Status != RunRunning || !runs[0].FinishedAt.IsZero() {
		t.Errorf("unfinished run = %+v", runs[0])
	}

	all, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns(0): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListRuns(0) returned %d runs, want 3", len(all))
	}
}

func TestRecordTask_UnknownRun(t *testing.T) {
	store := testStore(t)

	err := store.RecordTask(context.Background(), "ghost", &scheduler.Task{Name: "Build"})
	if err == nil {
		t.Fatal("expected foreign key error for unknown run")
	}
}

func TestFinishRun_UnknownRun(t *testing.T) {
	store := testStore(t)

	err := store.FinishRun(context.Background(), "ghost", RunSucceeded, time.Now())
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestMemoryStoresAreIsolated(t *testing.T) {
	first := testStore(t)
	second := testStore(t)
	ctx := context.Background()

	if err := first.StartRun(ctx, "run-1", "Default", time.Now()); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	runs, err := second.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("second store sees %d runs", len(runs))
	}
}

func TestNewSQLiteStore_CreatesFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := store.StartRun(ctx, "run-1", "Build", time.Now()); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	runs, err := reopened.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Target != "Build" {
		t.Errorf("runs after reopen = %+v", runs)
	}
}
