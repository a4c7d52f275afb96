// Package eventlog implements the Event Log component (spec.md §4.3, §6):
// an append-only JSONL audit trail of domain events at .jit/events.log.
// Grounded directly on the teacher's internal/audit/audit.go Append, which
// opens in O_APPEND mode, encodes one json.Encoder line, and fsyncs —
// generalized here to the fixed Event shape and guarded by the File Locker
// instead of being lock-free, since spec.md §4.3 requires "Append holds the
// events.lock exclusive lock".
package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/idgen"
	"github.com/jit-dev/jit/internal/lockfile"
	"github.com/jit-dev/jit/internal/types"
)

// FileName is the event log's name under local_jit.
const FileName = "events.log"

// LockTimeout is how long Append waits to acquire events.lock before
// failing LOCK_TIMEOUT.
const LockTimeout = 5 * time.Second

// Log appends domain events to a single worktree's events.log.
type Log struct {
	path     string
	lockPath string
	locker   *lockfile.Locker
}

// New returns a Log rooted at localJIT/events.log, with its lock at
// localJIT/events.lock.
func New(localJIT string) *Log {
	return &Log{
		path:     filepath.Join(localJIT, FileName),
		lockPath: filepath.Join(localJIT, "events.lock"),
		locker:   &lockfile.Locker{},
	}
}

// Append writes ev as one JSONL line under the exclusive events.lock,
// assigning EventID and SchemaVersion if unset. Returns the event actually
// written (with IDs filled in).
func (l *Log) Append(ev types.Event) (types.Event, error) {
	if ev.SchemaVersion == 0 {
		ev.SchemaVersion = types.CurrentSchemaVersion
	}
	if ev.EventID == "" {
		ev.EventID = idgen.GateRun() // any UUID generator; events don't need sortability
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	} else {
		ev.Timestamp = ev.Timestamp.UTC()
	}

	guard, err := l.locker.LockExclusive(l.lockPath, LockTimeout)
	if err != nil {
		return types.Event{}, err
	}
	defer func() { _ = guard.Release() }()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return types.Event{}, errkind.Wrap(errkind.IO, err, "create events directory")
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return types.Event{}, errkind.Wrap(errkind.IO, err, "open %s", l.path)
	}
	defer func() { _ = f.Close() }()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return types.Event{}, errkind.Wrap(errkind.IO, err, "encode event")
	}
	if err := bw.Flush(); err != nil {
		return types.Event{}, errkind.Wrap(errkind.IO, err, "flush events log")
	}
	if err := f.Sync(); err != nil {
		return types.Event{}, errkind.Wrap(errkind.IO, err, "fsync events log")
	}

	return ev, nil
}

// All reads and parses every event in the log, in file order. A missing
// file is treated as an empty log, not an error.
func (l *Log) All() ([]types.Event, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errkind.Wrap(errkind.IO, err, "read %s", l.path)
	}

	var events []types.Event
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var ev types.Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errkind.Wrap(errkind.Corruption, err, "parse %s", l.path)
		}
		if ev.SchemaVersion != types.CurrentSchemaVersion {
			return nil, errkind.New(errkind.Corruption, "events.log: unknown schema_version %d", ev.SchemaVersion)
		}
		events = append(events, ev)
	}
	return events, nil
}

// ForIssue filters All() down to events carrying the given issue ID.
func (l *Log) ForIssue(issueID string) ([]types.Event, error) {
	all, err := l.All()
	if err != nil {
		return nil, err
	}
	var out []types.Event
	for _, ev := range all {
		if ev.IssueID == issueID {
			out = append(out, ev)
		}
	}
	return out, nil
}
