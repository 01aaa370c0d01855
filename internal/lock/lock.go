// Package lock guards the daemon singleton: an advisory file lock plus a
// pidfile so CLI invocations can tell whether a daemon already owns the
// data directory.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
)

// ErrHeld is returned by Acquire when another process holds the lock.
var ErrHeld = errors.New("daemon lock is held")

// Lock is an acquired daemon lock.
type Lock struct {
	fl      *flock.Flock
	pidPath string
}

func lockPath(dir string) string { return filepath.Join(dir, "daemon.lock") }

// PIDPath returns the daemon pidfile path under dir.
func PIDPath(dir string) string { return filepath.Join(dir, "daemon.pid") }

// Acquire takes the daemon lock under dir and records the current pid.
// Returns ErrHeld (wrapped with the holder's pid when known) if another
// process has it.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock dir: %w", err)
	}
	fl := flock.New(lockPath(dir))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring daemon lock: %w", err)
	}
	if !locked {
		if pid, err := ReadPID(dir); err == nil {
			return nil, fmt.Errorf("%w by pid %d", ErrHeld, pid)
		}
		return nil, ErrHeld
	}

	l := &Lock{fl: fl, pidPath: PIDPath(dir)}
	if err := os.WriteFile(l.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		l.Release()
		return nil, fmt.Errorf("writing pidfile: %w", err)
	}
	return l, nil
}

// Release drops the lock and removes the pidfile. Safe to call once.
func (l *Lock) Release() {
	if l.pidPath != "" {
		_ = os.Remove(l.pidPath)
	}
	_ = l.fl.Unlock()
}

// ReadPID reads the daemon pidfile under dir.
func ReadPID(dir string) (int, error) {
	data, err := os.ReadFile(PIDPath(dir))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pidfile: %w", err)
	}
	return pid, nil
}

// IsRunning reports whether a daemon process recorded in dir's pidfile is
// alive, and its pid.
func IsRunning(dir string) (bool, int) {
	pid, err := ReadPID(dir)
	if err != nil || pid <= 0 {
		return false, 0
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, pid
	}
	// Signal 0 probes existence without delivering anything.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return false, pid
	}
	return true, pid
}
