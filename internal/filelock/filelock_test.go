package filelock

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBatchLockAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	lock := NewBatchLock(dir)

	acquired, err := lock.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire() error = %v", err)
	}
	if !acquired {
		t.Fatal("TryAcquire() = false, want true on fresh lock")
	}

	if _, err := os.Stat(lock.Path()); err != nil {
		t.Errorf("lock file not created: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(lock.Path()); !os.IsNotExist(err) {
		t.Error("lock file not removed after release")
	}
}

func TestBatchLockContention(t *testing.T) {
	dir := t.TempDir()
	first := NewBatchLock(dir)
	second := NewBatchLock(dir)

	acquired, err := first.TryAcquire()
	if err != nil || !acquired {
		t.Fatalf("first TryAcquire() = %v, %v", acquired, err)
	}
	defer first.Release()

	// Same process, separate flock handle: must not double-acquire.
	acquired, err = second.TryAcquire()
	if err != nil {
		t.Fatalf("second TryAcquire() error = %v", err)
	}
	if acquired {
		t.Error("second TryAcquire() = true, want false while held")
	}
}

func TestBatchLockReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()
	lock := NewBatchLock(dir)

	if acquired, _ := lock.TryAcquire(); !acquired {
		t.Fatal("initial acquire failed")
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	again := NewBatchLock(dir)
	acquired, err := again.TryAcquire()
	if err != nil || !acquired {
		t.Errorf("reacquire after release = %v, %v", acquired, err)
	}
	again.Release()
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	if err := AtomicWrite(path, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("AtomicWrite() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("content = %q", data)
	}

	// Overwrite must fully replace.
	if err := AtomicWrite(path, []byte("v2")); err != nil {
		t.Fatalf("AtomicWrite() overwrite error = %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "v2" {
		t.Errorf("content after overwrite = %q", data)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.Name() != "report.json" {
			t.Errorf("leftover file: %s", e.Name())
		}
	}
}

func TestAtomicWriteCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "report.json")

	if err := AtomicWrite(path, []byte("x")); err != nil {
		t.Fatalf("AtomicWrite() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not created: %v", err)
	}
}
