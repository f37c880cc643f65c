// Package persistence writes single JSON documents atomically under an advisory file lock.
//
// A document lives in a directory next to a zero-length lock file and a transient temp file:
//
//	<dir>/lock
//	<dir>/<name>
//	<dir>/<name>.tmp
//
// Writers take the lock with a bounded wait, write the temp file, fsync it and rename it over
// the target. Readers never observe a partially written document.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	// DefaultLockTimeout bounds how long a writer waits for the lock file.
	DefaultLockTimeout = 1000 * time.Millisecond

	lockRetryDelay = 10 * time.Millisecond
	lockFileName   = "lock"
	tmpSuffix      = ".tmp"
)

// ErrLockTimeout is returned when the lock could not be acquired in time.
var ErrLockTimeout = errors.New("timed out waiting for file lock")

// Paths names the three files involved in writing one document.
type Paths struct {
	Lock   string
	Target string
	Tmp    string
}

// DocumentPaths returns the lock, target and temp paths for document name inside dir.
func DocumentPaths(dir, name string) Paths {
	target := filepath.Join(dir, name)
	return Paths{
		Lock:   filepath.Join(dir, lockFileName),
		Target: target,
		Tmp:    target + tmpSuffix,
	}
}

// WriteDocument writes data to targetPath using the default lock timeout.
func WriteDocument(lockPath, targetPath, tmpPath string, data []byte) error {
	return WriteDocumentWithTimeout(lockPath, targetPath, tmpPath, data, DefaultLockTimeout)
}

// WriteDocumentWithTimeout acquires the advisory lock on lockPath, waiting at most timeout,
// writes data to tmpPath and renames it over targetPath. The lock is released on every path.
// Failing to get the lock is reported as ErrLockTimeout and is not retried here.
func WriteDocumentWithTimeout(lockPath, targetPath, tmpPath string, data []byte, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	lock := flock.New(lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %v", ErrLockTimeout, lockPath, timeout)
		}
		return fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s after %v", ErrLockTimeout, lockPath, timeout)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	return writeAndRename(targetPath, tmpPath, data)
}

// Write writes data to the document described by p.
func (p Paths) Write(data []byte, timeout time.Duration) error {
	return WriteDocumentWithTimeout(p.Lock, p.Target, p.Tmp, data, timeout)
}

// Read returns the current contents of the document described by p.
func (p Paths) Read() ([]byte, error) {
	return ReadDocument(p.Target)
}

// ReadDocument reads a document written by WriteDocument. Because writes go through a
// rename, no lock is needed to read a complete document.
func ReadDocument(targetPath string) ([]byte, error) {
	data, err := os.ReadFile(targetPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", targetPath, err)
	}
	return data, nil
}

func writeAndRename(targetPath, tmpPath string, data []byte) (err error) {
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpPath, err)
	}

	// The temp file must not outlive a failed write.
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err = os.Rename(tmpPath, targetPath); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpPath, targetPath, err)
	}
	return nil
}
