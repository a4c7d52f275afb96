package clock

import (
	"testing"
	"time"
)

func TestManualAdvanceMovesBothClocks(t *testing.T) {
	m := NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	startWall := m.NowWall()
	startMono := m.NowMonotonic()

	m.Advance(time.Hour)

	if m.NowWall().Sub(startWall) != time.Hour {
		t.Fatalf("expected wall clock to advance by 1h, got %s", m.NowWall().Sub(startWall))
	}
	if m.NowMonotonic().Sub(startMono) != time.Hour {
		t.Fatalf("expected monotonic clock to advance by 1h, got %s", m.NowMonotonic().Sub(startMono))
	}
}

func TestManualSetWallDoesNotAffectMonotonic(t *testing.T) {
	m := NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	startMono := m.NowMonotonic()

	m.SetWall(m.NowWall().Add(-1000 * time.Hour))

	if m.NowMonotonic().Sub(startMono) != 0 {
		t.Fatal("expected monotonic clock to be unaffected by a wall-clock jump")
	}
}

func TestManualAdvanceMonotonicDoesNotAffectWall(t *testing.T) {
	m := NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	startWall := m.NowWall()

	m.AdvanceMonotonic(time.Hour)

	if !m.NowWall().Equal(startWall) {
		t.Fatal("expected wall clock to be unaffected by AdvanceMonotonic")
	}
}

func TestInstantElapsedAndAdd(t *testing.T) {
	m := NewManual(time.Now())
	a := m.NowMonotonic()
	b := a.Add(5 * time.Second)
	if b.Sub(a) != 5*time.Second {
		t.Fatalf("expected 5s delta, got %s", b.Sub(a))
	}
	if a.Elapsed(b) != 5*time.Second {
		t.Fatalf("expected Elapsed to report 5s, got %s", a.Elapsed(b))
	}
}

func TestInstantIsZero(t *testing.T) {
	var zero Instant
	if !zero.IsZero() {
		t.Fatal("expected zero-value Instant to report IsZero")
	}
	m := NewManual(time.Now())
	if m.NowMonotonic().IsZero() {
		t.Fatal("expected a real Instant to not be zero")
	}
}
