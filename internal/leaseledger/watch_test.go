package leaseledger

import (
	"testing"
	"time"
)

func TestWatchIndexNotifiesOnAcquire(t *testing.T) {
	l, _ := newTestLedger(t)

	w, err := l.WatchIndex()
	if err != nil {
		t.Fatalf("watch index: %v", err)
	}
	defer w.Close()

	changed := w.Changed()

	if _, err := l.Acquire("issue-1", "agent-a", "wt-1", "main", 600, ""); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change notification after acquire rewrote the index")
	}
}

func TestWatchIndexChannelClosesOnClose(t *testing.T) {
	l, _ := newTestLedger(t)

	w, err := l.WatchIndex()
	if err != nil {
		t.Fatalf("watch index: %v", err)
	}
	changed := w.Changed()

	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case _, ok := <-changed:
		if ok {
			t.Fatal("expected channel to be closed, not to deliver a value")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("expected Changed() channel to close after Close()")
	}
}
