// Package filelock provides the inter-process lock that keeps two
// pdfpress runs from interleaving writes into the same output
// directory, plus atomic file writes for report export.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// lockFileName is the lock file placed inside a batch output directory.
const lockFileName = ".pdfpress.lock"

// BatchLock guards one output directory against concurrent batch runs.
type BatchLock struct {
	flock *flock.Flock
	path  string
}

// NewBatchLock creates a lock for the given output directory. The lock
// file lives inside the directory itself so the guard travels with it.
func NewBatchLock(outputDir string) *BatchLock {
	path := filepath.Join(outputDir, lockFileName)
	return &BatchLock{
		flock: flock.New(path),
		path:  path,
	}
}

// TryAcquire attempts to take the lock without blocking. Returns false
// when another process holds it.
func (bl *BatchLock) TryAcquire() (bool, error) {
	acquired, err := bl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", bl.path, err)
	}
	return acquired, nil
}

// Release releases the lock and removes the lock file. A failed removal
// is ignored; a stale lock file is harmless since flock state lives in
// the kernel, not the file content.
func (bl *BatchLock) Release() error {
	if err := bl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", bl.path, err)
	}
	_ = os.Remove(bl.path)
	return nil
}

// Path returns the lock file path.
func (bl *BatchLock) Path() string {
	return bl.path
}

// AtomicWrite writes data to path via a temp file and rename so readers
// never observe a partial write. The original file is untouched if any
// step fails.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Same directory as the target keeps the rename atomic (same
	// filesystem).
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}
