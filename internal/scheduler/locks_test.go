package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestResourceLockManager_SamePathBlocks verifies that two writers of one path take turns.
func TestResourceLockManager_SamePathBlocks(t *testing.T) {
	mgr := NewResourceLockManager()
	orderChan := make(chan int, 2)

	go func() {
		mgr.Lock("artifacts/app.nupkg")
		orderChan <- 1
		time.Sleep(50 * time.Millisecond)
		mgr.Unlock("artifacts/app.nupkg")
	}()

	time.Sleep(10 * time.Millisecond)

	// Same path spelled differently still contends
	go func() {
		mgr.Lock("artifacts/../artifacts/app.nupkg")
		orderChan <- 2
		mgr.Unlock("artifacts/app.nupkg")
	}()

	first := <-orderChan
	second := <-orderChan
	if first != 1 || second != 2 {
		t.Errorf("Expected order [1, 2], got [%d, %d]", first, second)
	}
}

// TestResourceLockManager_DifferentPathsConcurrent verifies that different paths don't block.
func TestResourceLockManager_DifferentPathsConcurrent(t *testing.T) {
	mgr := NewResourceLockManager()
	var wg sync.WaitGroup
	var binLocked, objLocked atomic.Bool

	wg.Add(2)
	go func() {
		defer wg.Done()
		mgr.Lock("bin")
		binLocked.Store(true)
		time.Sleep(20 * time.Millisecond)
		mgr.Unlock("bin")
	}()
	go func() {
		defer wg.Done()
		mgr.Lock("obj")
		objLocked.Store(true)
		time.Sleep(20 * time.Millisecond)
		mgr.Unlock("obj")
	}()

	time.Sleep(10 * time.Millisecond)
	if !binLocked.Load() || !objLocked.Load() {
		t.Error("Both goroutines should have acquired their locks concurrently")
	}
	wg.Wait()
}

// TestResourceLockManager_LockAllOrdering verifies that LockAll sorts and prevents deadlocks.
func TestResourceLockManager_LockAllOrdering(t *testing.T) {
	mgr := NewResourceLockManager()
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		mgr.LockAll([]string{"obj", "bin"})
		time.Sleep(10 * time.Millisecond)
		mgr.UnlockAll([]string{"obj", "bin"})
	}()
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		mgr.LockAll([]string{"bin", "obj"})
		time.Sleep(10 * time.Millisecond)
		mgr.UnlockAll([]string{"bin", "obj"})
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Deadlock detected: LockAll did not prevent deadlock through ordering")
	}
}

// TestResourceLockManager_DuplicatePaths verifies a task listing a path twice does not deadlock itself.
func TestResourceLockManager_DuplicatePaths(t *testing.T) {
	mgr := NewResourceLockManager()
	paths := []string{"bin", "./bin", "bin/"}

	done := make(chan struct{})
	go func() {
		mgr.LockAll(paths)
		mgr.UnlockAll(paths)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("LockAll deadlocked on duplicate paths")
	}
}

// TestResourceLockManager_UnlockAllReleasesAll verifies that UnlockAll releases all locks.
func TestResourceLockManager_UnlockAllReleasesAll(t *testing.T) {
	mgr := NewResourceLockManager()
	paths := []string{"bin", "obj", "artifacts"}
	mgr.LockAll(paths)
	mgr.UnlockAll(paths)

	acquired := make(chan bool, 1)
	go func() {
		mgr.LockAll(paths)
		acquired <- true
		mgr.UnlockAll(paths)
	}()

	select {
	case <-acquired:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Locks were not fully released by UnlockAll")
	}
}

func TestResourceLockManager_EmptyPaths(t *testing.T) {
	mgr := NewResourceLockManager()
	mgr.LockAll(nil)
	mgr.UnlockAll([]string{})
}
