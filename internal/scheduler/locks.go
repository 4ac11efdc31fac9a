package scheduler

import (
	"path/filepath"
	"slices"
	"sync"
)

// ResourceLockManager serialises tasks that write the same path.
// Each cleaned path gets its own mutex, so tasks writing different paths run
// in parallel while writers of one path take turns.
type ResourceLockManager struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-path mutexes
}

// NewResourceLockManager creates a new ResourceLockManager.
func NewResourceLockManager() *ResourceLockManager {
	return &ResourceLockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *ResourceLockManager) mutex(path string, create bool) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.locks[path]
	if !ok && create {
		m = &sync.Mutex{}
		r.locks[path] = m
	}
	return m
}

// Lock acquires the mutex for path, creating it on first use.
func (r *ResourceLockManager) Lock(path string) {
	r.mutex(filepath.Clean(path), true).Lock()
}

// Unlock releases the mutex for path.
func (r *ResourceLockManager) Unlock(path string) {
	if m := r.mutex(filepath.Clean(path), false); m != nil {
		m.Unlock()
	}
}

// normalize cleans, sorts and de-duplicates paths. A fixed acquisition order
// prevents deadlocks between tasks sharing several paths.
func normalize(paths []string) []string {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		cleaned = append(cleaned, filepath.Clean(p))
	}
	slices.Sort(cleaned)
	return slices.Compact(cleaned)
}

// LockAll acquires locks for all given paths in sorted order.
func (r *ResourceLockManager) LockAll(paths []string) {
	for _, p := range normalize(paths) {
		r.Lock(p)
	}
}

// UnlockAll releases locks for all given paths in reverse sorted order.
func (r *ResourceLockManager) UnlockAll(paths []string) {
	sorted := normalize(paths)
	for i := len(sorted) - 1; i >= 0; i-- {
		r.Unlock(sorted[i])
	}
}
