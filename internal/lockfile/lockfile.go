// Package lockfile is the File Locker: the only mutual-exclusion primitive
// used between processes sharing a .jit/ or jit/ control directory. It
// wraps github.com/gofrs/flock with a poll-until-timeout acquire loop and an
// optional diagnostic sidecar file, mirroring the cross-process locking the
// teacher's internal/daemon/registry.go performs by hand against a raw
// *os.File, but through the vendored flock library instead of a bespoke
// syscall wrapper.
package lockfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/jit-dev/jit/internal/errkind"
)

// DefaultPollInterval is how often Locker retries acquisition while waiting
// for a contended lock (spec.md §4.1: "polls at a fixed interval ~10ms").
const DefaultPollInterval = 10 * time.Millisecond

// Guard represents a held lock. Release drops it; a Guard must not be used
// concurrently from multiple goroutines.
type Guard struct {
	fl        *flock.Flock
	meta      *diagnostic
	released  bool
}

// Release drops the lock and removes any diagnostic sidecar file. Safe to
// call more than once.
func (g *Guard) Release() error {
	if g == nil || g.released {
		return nil
	}
	g.released = true
	if g.meta != nil {
		_ = g.meta.remove()
	}
	return g.fl.Unlock()
}

// Locker acquires advisory exclusive/shared locks on a regular file,
// creating it if absent. It never substitutes for itself with an in-process
// mutex: every acquisition round-trips through the OS lock so that
// cross-process callers see the same serialization as in-process ones.
type Locker struct {
	// PollInterval overrides DefaultPollInterval; zero means use the
	// default.
	PollInterval time.Duration

	// Diagnostic, when set, makes every acquire write a sibling
	// "<path>.meta" file with {pid, agent_id, created_at, last_updated}
	// and delete it on release.
	Diagnostic bool
	AgentID    string
}

func (l *Locker) pollInterval() time.Duration {
	if l.PollInterval > 0 {
		return l.PollInterval
	}
	return DefaultPollInterval
}

// LockExclusive blocks (polling) until it acquires an exclusive lock on
// path, or until timeout elapses, in which case it returns a LOCK_TIMEOUT
// error.
func (l *Locker) LockExclusive(path string, timeout time.Duration) (*Guard, error) {
	return l.lock(path, timeout, true)
}

// LockShared blocks (polling) until it acquires a shared lock on path.
func (l *Locker) LockShared(path string, timeout time.Duration) (*Guard, error) {
	return l.lock(path, timeout, false)
}

// TryLockExclusive attempts a single non-blocking acquisition. ok is false
// (with a nil error) if the lock is currently held elsewhere.
func (l *Locker) TryLockExclusive(path string) (g *Guard, ok bool, err error) {
	return l.tryLock(path, true)
}

// TryLockShared attempts a single non-blocking shared acquisition.
func (l *Locker) TryLockShared(path string) (g *Guard, ok bool, err error) {
	return l.tryLock(path, false)
}

func (l *Locker) tryLock(path string, exclusive bool) (*Guard, bool, error) {
	fl := flock.New(path)
	var ok bool
	var err error
	if exclusive {
		ok, err = fl.TryLock()
	} else {
		ok, err = fl.TryRLock()
	}
	if err != nil {
		return nil, false, errkind.Wrap(errkind.IO, err, "lock %s", path)
	}
	if !ok {
		return nil, false, nil
	}
	g := &Guard{fl: fl}
	if l.Diagnostic {
		g.meta = newDiagnostic(path, l.AgentID)
		if err := g.meta.write(); err != nil {
			_ = fl.Unlock()
			return nil, false, err
		}
	}
	return g, true, nil
}

func (l *Locker) lock(path string, timeout time.Duration, exclusive bool) (*Guard, error) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	interval := l.pollInterval()
	for {
		g, ok, err := l.tryLock(path, exclusive)
		if err != nil {
			return nil, err
		}
		if ok {
			return g, nil
		}
		select {
		case <-ctx.Done():
			return nil, errkind.New(errkind.LockTimeout, "timed out acquiring lock on %s after %s", path, timeout)
		case <-time.After(interval):
		}
	}
}

// diagnostic is the optional "<path>.meta" sidecar written on acquire.
type diagnostic struct {
	path    string
	agentID string
}

type diagnosticPayload struct {
	PID       int       `json:"pid"`
	AgentID   string    `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"last_updated"`
}

func newDiagnostic(lockPath, agentID string) *diagnostic {
	return &diagnostic{path: lockPath + ".meta", agentID: agentID}
}

func (d *diagnostic) write() error {
	now := time.Now().UTC()
	payload := diagnosticPayload{PID: os.Getpid(), AgentID: d.agentID, CreatedAt: now, UpdatedAt: now}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errkind.Wrap(errkind.IO, err, "marshal lock diagnostic")
	}
	if err := os.WriteFile(d.path, data, 0o644); err != nil {
		return errkind.Wrap(errkind.IO, err, "write lock diagnostic %s", d.path)
	}
	return nil
}

func (d *diagnostic) remove() error {
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock diagnostic %s: %w", d.path, err)
	}
	return nil
}
