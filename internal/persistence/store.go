package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/kiln/internal/scheduler"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run status values stored in the runs table.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunRecord is one row of the run history.
type RunRecord struct {
	ID         string
	Target     string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time // Zero while running
}

// TaskRecord is the recorded outcome of one task in a run.
type TaskRecord struct {
	Seq        int
	Name       string
	Status     string
	SkipReason string
	Error      string
	Duration   time.Duration
}

// Store defines the persistence interface for run history.
type Store interface {
	StartRun(ctx context.Context, runID, target string, started time.Time) error
	RecordTask(ctx context.Context, runID string, task *scheduler.Task) error
	FinishRun(ctx context.Context, runID, status string, finished time.Time) error

	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	GetRunTasks(ctx context.Context, runID string) ([]TaskRecord, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// modernc.org/sqlite ignores _foreign_keys in the DSN; it is set by PRAGMA below.
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates an in-memory store. Each call gets its own
// database, shared between the pool's connections.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:kiln-%s?mode=memory&cache=shared", uuid.NewString())
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
