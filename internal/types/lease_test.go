package types

import (
	"testing"
	"time"

	"github.com/jit-dev/jit/internal/clock"
)

func TestLeaseIsExpiredRespectsTTL(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	lease := NewLease("lease-1", "issue-1", "agent-a", "wt-1", "main", 60, "", clk.NowWall(), clk.NowMonotonic())

	if lease.IsExpired(clk.NowMonotonic()) {
		t.Fatal("expected fresh lease to not be expired")
	}

	clk.AdvanceMonotonic(61 * time.Second)
	if !lease.IsExpired(clk.NowMonotonic()) {
		t.Fatal("expected lease to be expired after TTL elapses")
	}
}

func TestLeaseIndefiniteNeverExpires(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	lease := NewLease("lease-1", "issue-1", "agent-a", "wt-1", "main", 0, "long task", clk.NowWall(), clk.NowMonotonic())

	if !lease.Indefinite() {
		t.Fatal("expected TTL<=0 lease to report Indefinite")
	}
	clk.AdvanceMonotonic(365 * 24 * time.Hour)
	if lease.IsExpired(clk.NowMonotonic()) {
		t.Fatal("expected indefinite lease to never expire")
	}
}

func TestLeaseIsStaleOnlyAppliesToIndefiniteLeases(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	indefinite := NewLease("lease-1", "issue-1", "agent-a", "wt-1", "main", 0, "long task", clk.NowWall(), clk.NowMonotonic())
	ttl := NewLease("lease-2", "issue-2", "agent-a", "wt-1", "main", 600, "", clk.NowWall(), clk.NowMonotonic())

	future := clk.NowWall().Add(2 * time.Hour)
	if !indefinite.IsStale(future, time.Hour) {
		t.Fatal("expected indefinite lease with no recent heartbeat to be stale")
	}
	if ttl.IsStale(future, time.Hour) {
		t.Fatal("expected TTL lease to never be reported stale")
	}
}

func TestLeaseReconstructInstantIsConservativeAcrossWallJumpBackward(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	lease := NewLease("lease-1", "issue-1", "agent-a", "wt-1", "main", 60, "", clk.NowWall(), clk.NowMonotonic())

	clk.AdvanceMonotonic(10 * time.Second)
	clk.SetWall(clk.NowWall().Add(-time.Hour))

	lease.ReconstructInstant(clk.NowWall(), clk.NowMonotonic())

	// A backward wall-clock jump must not let the lease appear to have
	// aged more than the monotonic time that actually passed.
	if lease.IsExpired(clk.NowMonotonic()) {
		t.Fatal("expected reconstructed instant to not spuriously expire the lease")
	}
}
