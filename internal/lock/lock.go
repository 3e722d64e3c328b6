// Package lock guards a data directory so that only one process writes
// its documents at a time.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file created inside the guarded directory.
const FileName = "LOCK"

// LockHeldError is returned when another process holds the lock.
type LockHeldError struct {
	PID   int
	Owner string
	Path  string
}

func (e *LockHeldError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("data dir locked by %s (PID %d, %s)", e.Owner, e.PID, e.Path)
	}
	return fmt.Sprintf("data dir locked by PID %d (%s)", e.PID, e.Path)
}

// Lock is an acquired exclusive lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive non-blocking flock on dir/LOCK. owner is
// recorded for the diagnostics of a later failed Acquire.
func Acquire(dir, owner string) (*Lock, error) {
	lockPath := filepath.Join(dir, FileName)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		data, _ := os.ReadFile(lockPath)
		pid, holder := parse(string(data))
		_ = f.Close()
		return nil, &LockHeldError{PID: pid, Owner: holder, Path: lockPath}
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	content := fmt.Sprintf("pid=%d\nowner=%s\ntime=%s\n", os.Getpid(), owner, time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: lockPath}, nil
}

// Release drops the lock. Safe on a nil receiver and when called twice.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func parse(content string) (pid int, owner string) {
	for _, line := range strings.Split(content, "\n") {
		if after, ok := strings.CutPrefix(line, "pid="); ok {
			pid, _ = strconv.Atoi(after)
		}
		if after, ok := strings.CutPrefix(line, "owner="); ok {
			owner = after
		}
	}
	return pid, owner
}
