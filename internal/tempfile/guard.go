// Package tempfile manages the temporary output artifact of one engine
// invocation. The engine always writes to a uniquely named placeholder
// next to the final destination; the artifact is promoted atomically on
// success and deleted on every other exit path.
package tempfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Deletion retry bounds. A file held open by a scanner hook or virus
// checker usually frees up within a second; past that we abandon the
// file rather than stall the batch.
const (
	maxRemoveAttempts = 3
	removeRetryDelay  = 500 * time.Millisecond
)

// Logger is the subset of the run logger the guard needs.
type Logger interface {
	LogDebug(message string)
	LogWarn(message string)
}

// Artifact is an ownership token for a temporary file on disk. It is
// exclusively owned by the invocation that acquired it and must be
// released (or promoted) exactly once; Release is idempotent so a
// deferred call is always safe.
type Artifact struct {
	path     string
	log      Logger
	released bool
}

// Acquire creates a uniquely named placeholder file in the directory of
// finalPath and returns the owning token. The name combines a timestamp
// and a random suffix so concurrent invocations in the same directory
// never collide.
func Acquire(finalPath string, log Logger) (*Artifact, error) {
	dir := filepath.Dir(finalPath)
	base := filepath.Base(finalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	tmpName := fmt.Sprintf(".%s-%s-%s.tmp%s",
		name,
		time.Now().Format("20060102-150405"),
		uuid.New().String()[:8],
		ext,
	)
	tmpPath := filepath.Join(dir, tmpName)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	log.LogDebug(fmt.Sprintf("Acquired temp artifact: %s", tmpPath))
	return &Artifact{path: tmpPath, log: log}, nil
}

// Path returns the artifact's on-disk path.
func (a *Artifact) Path() string {
	return a.path
}

// Promote atomically moves the artifact over finalPath, replacing any
// existing file, and disarms cleanup. After a successful promote the
// token owns nothing and Release becomes a no-op.
func (a *Artifact) Promote(finalPath string) error {
	if a.released {
		return fmt.Errorf("artifact already released: %s", a.path)
	}
	if err := os.Rename(a.path, finalPath); err != nil {
		return fmt.Errorf("failed to move temp file to final location: %w", err)
	}
	a.released = true
	a.log.LogDebug(fmt.Sprintf("Promoted temp artifact to: %s", finalPath))
	return nil
}

// Release deletes the underlying file. It is idempotent. Transient
// deletion failures (file locked, permission denied) are retried with
// backoff; persistent failure is logged as a warning and abandoned,
// never escalated — a leftover temp file must not abort the batch.
func (a *Artifact) Release() {
	if a.released {
		return
	}
	a.released = true

	delay := removeRetryDelay
	for attempt := 1; attempt <= maxRemoveAttempts; attempt++ {
		err := os.Remove(a.path)
		if err == nil || os.IsNotExist(err) {
			a.log.LogDebug(fmt.Sprintf("Released temp artifact: %s", a.path))
			return
		}

		if attempt < maxRemoveAttempts {
			a.log.LogWarn(fmt.Sprintf("Attempt %d/%d failed to remove %s: %v", attempt, maxRemoveAttempts, a.path, err))
			time.Sleep(delay)
			delay *= 2
			continue
		}

		a.log.LogWarn(fmt.Sprintf("Abandoning temp file after %d attempts: %s", maxRemoveAttempts, a.path))
	}
}
