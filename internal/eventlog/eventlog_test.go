package eventlog

import (
	"testing"

	"github.com/jit-dev/jit/internal/types"
)

func TestAppendAssignsIDsAndTimestamp(t *testing.T) {
	log := New(t.TempDir())
	ev, err := log.Append(types.Event{Type: types.EventIssueCreated, IssueID: "a"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ev.EventID == "" {
		t.Fatal("expected event_id to be assigned")
	}
	if ev.SchemaVersion != types.CurrentSchemaVersion {
		t.Fatalf("expected schema_version %d, got %d", types.CurrentSchemaVersion, ev.SchemaVersion)
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be assigned")
	}
}

func TestAllReturnsAppendedEventsInOrder(t *testing.T) {
	log := New(t.TempDir())
	if _, err := log.Append(types.Event{Type: types.EventIssueCreated, IssueID: "a"}); err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if _, err := log.Append(types.Event{Type: types.EventIssueStateChanged, IssueID: "a", ToState: types.StateReady}); err != nil {
		t.Fatalf("append 2: %v", err)
	}

	all, err := log.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}
	if all[0].Type != types.EventIssueCreated || all[1].Type != types.EventIssueStateChanged {
		t.Fatalf("unexpected order: %+v", all)
	}
}

func TestAllOnMissingLogReturnsEmpty(t *testing.T) {
	log := New(t.TempDir())
	all, err := log.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no events, got %d", len(all))
	}
}

func TestForIssueFiltersByIssueID(t *testing.T) {
	log := New(t.TempDir())
	if _, err := log.Append(types.Event{Type: types.EventIssueCreated, IssueID: "a"}); err != nil {
		t.Fatalf("append a: %v", err)
	}
	if _, err := log.Append(types.Event{Type: types.EventIssueCreated, IssueID: "b"}); err != nil {
		t.Fatalf("append b: %v", err)
	}

	forA, err := log.ForIssue("a")
	if err != nil {
		t.Fatalf("for issue: %v", err)
	}
	if len(forA) != 1 || forA[0].IssueID != "a" {
		t.Fatalf("expected exactly one event for a, got %+v", forA)
	}
}

func TestAllRejectsUnknownSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	log := New(dir)
	if _, err := log.Append(types.Event{Type: types.EventIssueCreated, IssueID: "a", SchemaVersion: 99}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := log.All(); err == nil {
		t.Fatal("expected corruption error for unknown schema_version")
	}
}
