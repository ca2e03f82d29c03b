package lock

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestMutexMap_SerializesPerKey(t *testing.T) {
	m := NewMutexMap()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock("ops")
			counter++
			m.Unlock("ops")
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
}

func TestMutexMap_IndependentKeys(t *testing.T) {
	m := NewMutexMap()

	m.Lock("a")
	// A different key must not block.
	done := make(chan struct{})
	go func() {
		m.Lock("b")
		m.Unlock("b")
		close(done)
	}()
	<-done
	m.Unlock("a")
}

func TestFileLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	fl1 := NewFileLock(path)
	if err := fl1.TryLock(); err != nil {
		t.Fatalf("first TryLock: %v", err)
	}

	fl2 := NewFileLock(path)
	if err := fl2.TryLock(); err == nil {
		t.Error("second TryLock succeeded, want failure")
		fl2.Unlock()
	}

	if err := fl1.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	// After release the lock is free again.
	fl3 := NewFileLock(path)
	if err := fl3.TryLock(); err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}
	fl3.Unlock()
}

func TestFileLock_WritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.lock")

	fl := NewFileLock(path)
	if err := fl.TryLock(); err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	defer fl.Unlock()

	pid, err := ReadPID(path)
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("PID = %d, want %d", pid, os.Getpid())
	}
}

func TestReadPID_Missing(t *testing.T) {
	if _, err := ReadPID(filepath.Join(t.TempDir(), "nope.lock")); err == nil {
		t.Error("expected error for missing lock file")
	}
}

func TestFileLock_UnlockWithoutLock(t *testing.T) {
	fl := NewFileLock(filepath.Join(t.TempDir(), "daemon.lock"))
	if err := fl.Unlock(); err != nil {
		t.Errorf("Unlock without lock: %v", err)
	}
}
