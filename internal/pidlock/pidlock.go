// Package pidlock enforces single-instance execution through a PID file.
package pidlock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/zulandar/vinyard/internal/logger"
)

// ErrAlreadyRunning is returned when another live process holds the lock.
var ErrAlreadyRunning = errors.New("pidlock: another instance is already running")

// Lock manages the PID lock file.
type Lock struct {
	path string
	pid  int
	log  logger.Logger
}

// New returns an unacquired lock at path.
func New(path string, log logger.Logger) *Lock {
	if log == nil {
		log = logger.Discard()
	}
	return &Lock{path: path, pid: os.Getpid(), log: log}
}

// Acquire takes the lock. A lock file naming a live process fails with
// ErrAlreadyRunning; a stale file (dead pid) is cleaned up and replaced.
func (l *Lock) Acquire() error {
	if existing, err := l.readExisting(); err == nil {
		if processAlive(existing) {
			l.log.Warnf("pidlock: pid %d is still running", existing)
			return ErrAlreadyRunning
		}
		l.log.Infof("pidlock: stale lock file found (pid %d not running), cleaning up", existing)
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("pidlock: remove stale lock: %w", err)
		}
	}
	if err := os.WriteFile(l.path, []byte(strconv.Itoa(l.pid)), 0o644); err != nil {
		return fmt.Errorf("pidlock: write lock file: %w", err)
	}
	return nil
}

// Release removes the lock file, but only if it still names this process.
func (l *Lock) Release() error {
	existing, err := l.readExisting()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("pidlock: read lock file: %w", err)
	}
	if existing != l.pid {
		l.log.Warnf("pidlock: lock file pid mismatch: expected %d, found %d", l.pid, existing)
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("pidlock: remove lock file: %w", err)
	}
	return nil
}

func (l *Lock) readExisting() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("pidlock: malformed lock file: %w", err)
	}
	return pid, nil
}

// processAlive reports whether a process with the given pid exists, using
// the null signal.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to another user.
	return errors.Is(err, syscall.EPERM)
}
