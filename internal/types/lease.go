package types

import (
	"time"

	"github.com/jit-dev/jit/internal/clock"
)

// Lease is an exclusive hold on an issue by an agent (spec.md §3,
// GLOSSARY "Lease").
type Lease struct {
	LeaseID     string `json:"lease_id"`
	IssueID     string `json:"issue_id"`
	AgentID     string `json:"agent_id"`
	WorktreeID  string `json:"worktree_id"`
	Branch      string `json:"branch,omitempty"`
	TTLSecs     int64  `json:"ttl_secs"`
	Reason      string `json:"reason,omitempty"`

	AcquiredAt time.Time  `json:"acquired_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastBeat   time.Time  `json:"last_beat"`

	// acquiredInstant is the non-serialized monotonic anchor (spec.md §3:
	// "A non-serialized monotonic-instant anchor is reconstructed on load
	// by subtracting the elapsed wall-clock delta from the current
	// monotonic instant"). It is populated by NewLease at acquire time and
	// by ReconstructInstant after a load from disk.
	acquiredInstant clock.Instant
}

// AcquiredInstant returns the monotonic anchor for this lease's TTL math.
func (l *Lease) AcquiredInstant() clock.Instant { return l.acquiredInstant }

// NewLease constructs a freshly-acquired lease. now is the current wall
// time, nowInstant the current monotonic instant — both from the same
// Clock read so AcquiredAt and acquiredInstant agree.
func NewLease(leaseID, issueID, agentID, worktreeID, branch string, ttlSecs int64, reason string, now time.Time, nowInstant clock.Instant) *Lease {
	l := &Lease{
		LeaseID:         leaseID,
		IssueID:         issueID,
		AgentID:         agentID,
		WorktreeID:      worktreeID,
		Branch:          branch,
		TTLSecs:         ttlSecs,
		Reason:          reason,
		AcquiredAt:      now,
		LastBeat:        now,
		acquiredInstant: nowInstant,
	}
	if ttlSecs > 0 {
		exp := now.Add(time.Duration(ttlSecs) * time.Second)
		l.ExpiresAt = &exp
	}
	return l
}

// ReconstructInstant rebuilds the monotonic anchor after a load from disk
// by subtracting the wall-clock delta since AcquiredAt from the current
// monotonic instant. A backward wall-clock jump gives a smaller (or, once
// clamped, zero) delta, so the anchor lands later and the remaining TTL
// grows. A forward wall-clock jump gives a larger delta, so the anchor
// lands earlier and the remaining TTL shrinks by the size of the jump.
func (l *Lease) ReconstructInstant(nowWall time.Time, nowInstant clock.Instant) {
	elapsed := nowWall.Sub(l.AcquiredAt)
	if elapsed < 0 {
		elapsed = 0
	}
	l.acquiredInstant = nowInstant.Add(-elapsed)
}

// Indefinite reports whether this lease never expires (TTL=0).
func (l *Lease) Indefinite() bool { return l.TTLSecs <= 0 }

// IsExpired reports whether the lease's TTL has elapsed, measured against
// monotonic time only (spec.md §4.6 "Expiration semantics"). Indefinite
// leases are never expired.
func (l *Lease) IsExpired(nowInstant clock.Instant) bool {
	if l.Indefinite() {
		return false
	}
	return l.acquiredInstant.Elapsed(nowInstant) >= time.Duration(l.TTLSecs)*time.Second
}

// IsStale reports whether an indefinite lease's last heartbeat is older
// than staleThreshold (spec.md §4.6, GLOSSARY "Stale lease"). Non-indefinite
// leases are never "stale" in this sense — they simply expire.
func (l *Lease) IsStale(nowWall time.Time, staleThreshold time.Duration) bool {
	if !l.Indefinite() {
		return false
	}
	return nowWall.Sub(l.LastBeat) > staleThreshold
}

// ClaimOp is the tagged operation recorded in a claim log entry (spec.md
// §3, §6).
type ClaimOp string

const (
	ClaimOpAcquire    ClaimOp = "acquire"
	ClaimOpRenew      ClaimOp = "renew"
	ClaimOpRelease    ClaimOp = "release"
	ClaimOpAutoEvict  ClaimOp = "auto_evict"
	ClaimOpForceEvict ClaimOp = "force_evict"
	ClaimOpHeartbeat  ClaimOp = "heartbeat"
)

// ClaimLogEntry is one line of shared_jit/claims.jsonl (spec.md §3, §6).
type ClaimLogEntry struct {
	SchemaVersion uint32    `json:"schema_version"`
	Seq           uint64    `json:"seq"`
	Timestamp     time.Time `json:"timestamp"`
	Op            ClaimOp   `json:"op"`

	LeaseID    string `json:"lease_id"`
	IssueID    string `json:"issue_id"`
	AgentID    string `json:"agent_id,omitempty"`
	WorktreeID string `json:"worktree_id,omitempty"`
	Branch     string `json:"branch,omitempty"`
	TTLSecs    int64  `json:"ttl_secs,omitempty"`
	Reason     string `json:"reason,omitempty"`

	// Snapshot fields for acquire/renew, so the index can be rebuilt by
	// replaying the log without re-deriving acquired_at from TTL deltas.
	AcquiredAt *time.Time `json:"acquired_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// ClaimsIndex is the derived, rebuildable index of active leases (spec.md
// §3, §4.6).
type ClaimsIndex struct {
	SchemaVersion      uint32   `json:"schema_version"`
	LastSeq            uint64   `json:"last_seq"`
	StaleThresholdSecs int64    `json:"stale_threshold_secs"`
	Leases             []*Lease `json:"leases"`

	// SequenceGaps records seq numbers skipped during replay (spec.md
	// §4.6 "Index rebuild"), surfaced by validation as a warning.
	SequenceGaps []uint64 `json:"sequence_gaps,omitempty"`
}
