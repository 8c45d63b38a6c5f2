package orchestrator

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireLockExcludesConcurrentHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".orchestrator.lock")
	release, err := AcquireLock(path, time.Second, time.Hour)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer release()

	if _, err := AcquireLock(path, 150*time.Millisecond, time.Hour); err == nil {
		t.Fatalf("expected second acquire to fail while lock is held")
	}
}

func TestAcquireLockReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".orchestrator.lock")
	release, err := AcquireLock(path, time.Second, time.Hour)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	release()

	release2, err := AcquireLock(path, time.Second, time.Hour)
	if err != nil {
		t.Fatalf("expected reacquire after release, got: %v", err)
	}
	release2()
}

func TestAcquireLockReapsStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".orchestrator.lock")
	release, err := AcquireLock(path, time.Second, time.Hour)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	_ = release // simulate a crashed holder that never released

	release2, err := AcquireLock(path, time.Second, time.Millisecond)
	if err != nil {
		t.Fatalf("expected stale lock to be reaped, got: %v", err)
	}
	release2()
}
