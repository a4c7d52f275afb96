// Package leaseledger implements the Lease Ledger (spec.md §4.6): the
// append-only claims.jsonl operation log, the derived claims.index.json,
// and the single claims.lock guarding every mutation. Grounded on the
// teacher's internal/audit/audit.go append-log idiom (JSONL + fsync) for
// the log half, and internal/daemon/registry.go's load-mutate-atomic-
// write-under-flock idiom for the index half — composed here because
// spec.md §4.6 requires both to advance together under one lock.
package leaseledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jit-dev/jit/internal/atomicfile"
	"github.com/jit-dev/jit/internal/clock"
	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/idgen"
	"github.com/jit-dev/jit/internal/lockfile"
	"github.com/jit-dev/jit/internal/types"
)

const (
	claimsLogName   = "claims.jsonl"
	claimsIndexName = "claims.index.json"
	lockFileName    = "locks/claims.lock"

	// DefaultStaleThreshold matches spec.md §4.6's notion of a stale
	// indefinite lease, used when the index carries no explicit value.
	DefaultStaleThreshold = 15 * time.Minute

	// LockTimeout is how long Ledger operations wait for claims.lock.
	LockTimeout = 5 * time.Second
)

// Ledger mediates all claim mutations under shared_jit for one repository.
type Ledger struct {
	sharedJIT string
	clock     clock.Clock
	locker    *lockfile.Locker
}

// New returns a Ledger rooted at sharedJIT, using clk for wall/monotonic
// time. Production callers pass clock.System{}; tests pass
// clock.NewManual(...) to drive expiry deterministically without sleeping.
func New(sharedJIT string, clk clock.Clock) *Ledger {
	return &Ledger{sharedJIT: sharedJIT, clock: clk, locker: &lockfile.Locker{}}
}

func (l *Ledger) logPath() string   { return filepath.Join(l.sharedJIT, claimsLogName) }
func (l *Ledger) indexPath() string { return filepath.Join(l.sharedJIT, claimsIndexName) }
func (l *Ledger) lockPath() string  { return filepath.Join(l.sharedJIT, lockFileName) }

// withLock acquires claims.lock, loads the current index (rebuilding from
// the log if the index file is missing or corrupt), runs fn, and
// persists whatever fn leaves in idx unless fn returns an error.
func (l *Ledger) withLock(fn func(idx *types.ClaimsIndex) error) error {
	if err := os.MkdirAll(filepath.Dir(l.lockPath()), 0o750); err != nil {
		return errkind.Wrap(errkind.IO, err, "create locks directory")
	}
	guard, err := l.locker.LockExclusive(l.lockPath(), LockTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = guard.Release() }()

	idx, err := l.loadIndex()
	if err != nil {
		return err
	}
	if err := fn(idx); err != nil {
		return err
	}
	return l.writeIndex(idx)
}

func (l *Ledger) loadIndex() (*types.ClaimsIndex, error) {
	data, err := os.ReadFile(l.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return l.RebuildIndex()
		}
		return nil, errkind.Wrap(errkind.IO, err, "read %s", l.indexPath())
	}
	var idx types.ClaimsIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return l.RebuildIndex()
	}
	if idx.SchemaVersion != types.CurrentSchemaVersion {
		return nil, errkind.New(errkind.Corruption, "claims.index.json: unknown schema_version %d", idx.SchemaVersion)
	}
	if idx.StaleThresholdSecs == 0 {
		idx.StaleThresholdSecs = int64(DefaultStaleThreshold.Seconds())
	}
	return &idx, nil
}

func (l *Ledger) writeIndex(idx *types.ClaimsIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return errkind.Wrap(errkind.IO, err, "encode claims index")
	}
	return atomicfile.Write(l.indexPath(), data, 0o644)
}

func (l *Ledger) appendLog(entry types.ClaimLogEntry) error {
	if err := os.MkdirAll(l.sharedJIT, 0o750); err != nil {
		return errkind.Wrap(errkind.IO, err, "create %s", l.sharedJIT)
	}
	f, err := os.OpenFile(l.logPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errkind.Wrap(errkind.IO, err, "open %s", l.logPath())
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entry); err != nil {
		return errkind.Wrap(errkind.IO, err, "encode claim log entry")
	}
	return f.Sync()
}

// RebuildIndex replays claims.jsonl in sequence order and reconstructs
// the index from scratch (spec.md §4.6 "Index rebuild"). Gaps in the
// sequence are recorded rather than treated as fatal.
func (l *Ledger) RebuildIndex() (*types.ClaimsIndex, error) {
	idx := &types.ClaimsIndex{
		SchemaVersion:      types.CurrentSchemaVersion,
		StaleThresholdSecs: int64(DefaultStaleThreshold.Seconds()),
	}

	data, err := os.ReadFile(l.logPath())
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, errkind.Wrap(errkind.IO, err, "read %s", l.logPath())
	}

	byLease := map[string]*types.Lease{}
	var lastSeq uint64
	first := true

	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var entry types.ClaimLogEntry
		if err := dec.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errkind.Wrap(errkind.Corruption, err, "parse %s", l.logPath())
		}
		if entry.SchemaVersion != types.CurrentSchemaVersion {
			return nil, errkind.New(errkind.Corruption, "claims.jsonl: unknown schema_version %d", entry.SchemaVersion)
		}
		if !first && entry.Seq != lastSeq+1 {
			for gap := lastSeq + 1; gap < entry.Seq; gap++ {
				idx.SequenceGaps = append(idx.SequenceGaps, gap)
			}
		}
		first = false
		lastSeq = entry.Seq

		applyEntry(byLease, entry)
	}

	idx.LastSeq = lastSeq
	for _, lease := range byLease {
		idx.Leases = append(idx.Leases, lease)
	}
	return idx, nil
}

func applyEntry(byLease map[string]*types.Lease, entry types.ClaimLogEntry) {
	switch entry.Op {
	case types.ClaimOpAcquire:
		byLease[entry.LeaseID] = &types.Lease{
			LeaseID:    entry.LeaseID,
			IssueID:    entry.IssueID,
			AgentID:    entry.AgentID,
			WorktreeID: entry.WorktreeID,
			Branch:     entry.Branch,
			TTLSecs:    entry.TTLSecs,
			Reason:     entry.Reason,
			AcquiredAt: valueOrZero(entry.AcquiredAt),
			ExpiresAt:  entry.ExpiresAt,
			LastBeat:   entry.Timestamp,
		}
	case types.ClaimOpRenew:
		if lease, ok := byLease[entry.LeaseID]; ok {
			lease.ExpiresAt = entry.ExpiresAt
			lease.LastBeat = entry.Timestamp
		}
	case types.ClaimOpHeartbeat:
		if lease, ok := byLease[entry.LeaseID]; ok {
			lease.LastBeat = entry.Timestamp
		}
	case types.ClaimOpRelease, types.ClaimOpAutoEvict, types.ClaimOpForceEvict:
		delete(byLease, entry.LeaseID)
	}
}

func valueOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func findByIssue(idx *types.ClaimsIndex, issueID string) *types.Lease {
	for _, lease := range idx.Leases {
		if lease.IssueID == issueID {
			return lease
		}
	}
	return nil
}

func findByID(idx *types.ClaimsIndex, leaseID string) *types.Lease {
	for _, lease := range idx.Leases {
		if lease.LeaseID == leaseID {
			return lease
		}
	}
	return nil
}

func removeLease(idx *types.ClaimsIndex, leaseID string) {
	out := idx.Leases[:0]
	for _, lease := range idx.Leases {
		if lease.LeaseID != leaseID {
			out = append(out, lease)
		}
	}
	idx.Leases = out
}

// evictExpiredLocked evicts every lease whose expires_at has passed
// (monotonic check), appending an auto_evict log entry per eviction.
// Must be called while holding claims.lock.
func (l *Ledger) evictExpiredLocked(idx *types.ClaimsIndex, nowWall time.Time, nowInstant clock.Instant) error {
	var expired []*types.Lease
	for _, lease := range idx.Leases {
		if lease.Indefinite() {
			continue
		}
		lease.ReconstructInstant(nowWall, nowInstant)
		if lease.IsExpired(nowInstant) {
			expired = append(expired, lease)
		}
	}
	for _, lease := range expired {
		idx.LastSeq++
		if err := l.appendLog(types.ClaimLogEntry{
			SchemaVersion: types.CurrentSchemaVersion,
			Seq:           idx.LastSeq,
			Timestamp:     nowWall,
			Op:            types.ClaimOpAutoEvict,
			LeaseID:       lease.LeaseID,
			IssueID:       lease.IssueID,
			AgentID:       lease.AgentID,
		}); err != nil {
			return err
		}
		removeLease(idx, lease.LeaseID)
	}
	return nil
}

// Acquire implements spec.md §4.6's 7-step acquire sequence.
func (l *Ledger) Acquire(issueID, agentID, worktreeID, branch string, ttlSecs int64, reason string) (*types.Lease, error) {
	if ttlSecs <= 0 && reason == "" {
		return nil, errkind.New(errkind.InvalidArgument, "an indefinite lease (ttl_secs = 0) requires a non-empty reason")
	}

	var result *types.Lease
	err := l.withLock(func(idx *types.ClaimsIndex) error {
		nowWall := l.clock.NowWall()
		nowInstant := l.clock.NowMonotonic()

		if err := l.evictExpiredLocked(idx, nowWall, nowInstant); err != nil {
			return err
		}

		if existing := findByIssue(idx, issueID); existing != nil {
			holderExpiry := "indefinite"
			if existing.ExpiresAt != nil {
				holderExpiry = existing.ExpiresAt.Format(time.RFC3339)
			} else {
				holderExpiry = "last_beat=" + existing.LastBeat.Format(time.RFC3339)
			}
			return errkind.New(errkind.AlreadyClaimed, "issue %s already claimed by %s (expiry: %s)", issueID, existing.AgentID, holderExpiry).
				WithSuggestion("wait for expiry, ask the holder to release, or force-evict as an administrator")
		}

		lease := types.NewLease(idgen.Lease(), issueID, agentID, worktreeID, branch, ttlSecs, reason, nowWall, nowInstant)

		idx.LastSeq++
		if err := l.appendLog(types.ClaimLogEntry{
			SchemaVersion: types.CurrentSchemaVersion,
			Seq:           idx.LastSeq,
			Timestamp:     nowWall,
			Op:            types.ClaimOpAcquire,
			LeaseID:       lease.LeaseID,
			IssueID:       lease.IssueID,
			AgentID:       lease.AgentID,
			WorktreeID:    lease.WorktreeID,
			Branch:        lease.Branch,
			TTLSecs:       lease.TTLSecs,
			Reason:        lease.Reason,
			AcquiredAt:    &lease.AcquiredAt,
			ExpiresAt:     lease.ExpiresAt,
		}); err != nil {
			return err
		}

		idx.Leases = append(idx.Leases, lease)
		result = lease
		return nil
	})
	return result, err
}

// Renew extends a fixed-TTL lease, or refreshes the heartbeat of an
// indefinite one, per spec.md §4.6 "Renew".
func (l *Ledger) Renew(leaseID string, extensionSecs int64) (*types.Lease, error) {
	var result *types.Lease
	err := l.withLock(func(idx *types.ClaimsIndex) error {
		nowWall := l.clock.NowWall()
		nowInstant := l.clock.NowMonotonic()
		if err := l.evictExpiredLocked(idx, nowWall, nowInstant); err != nil {
			return err
		}

		lease := findByID(idx, leaseID)
		if lease == nil {
			return errkind.New(errkind.NotFound, "lease %s not found", leaseID)
		}

		idx.LastSeq++
		op := types.ClaimOpRenew
		entry := types.ClaimLogEntry{
			SchemaVersion: types.CurrentSchemaVersion,
			Seq:           idx.LastSeq,
			Timestamp:     nowWall,
			LeaseID:       leaseID,
			IssueID:       lease.IssueID,
			AgentID:       lease.AgentID,
		}
		if lease.TTLSecs > 0 {
			expires := nowWall.Add(time.Duration(extensionSecs) * time.Second)
			lease.ExpiresAt = &expires
			lease.LastBeat = nowWall
			entry.ExpiresAt = lease.ExpiresAt
		} else {
			lease.LastBeat = nowWall
			op = types.ClaimOpHeartbeat
		}
		entry.Op = op

		if err := l.appendLog(entry); err != nil {
			return err
		}
		result = lease
		return nil
	})
	return result, err
}

// Heartbeat refreshes last_beat for an indefinite lease only (spec.md
// §4.6 "Heartbeat").
func (l *Ledger) Heartbeat(leaseID string) (*types.Lease, error) {
	var result *types.Lease
	err := l.withLock(func(idx *types.ClaimsIndex) error {
		nowWall := l.clock.NowWall()
		nowInstant := l.clock.NowMonotonic()
		if err := l.evictExpiredLocked(idx, nowWall, nowInstant); err != nil {
			return err
		}

		lease := findByID(idx, leaseID)
		if lease == nil {
			return errkind.New(errkind.NotFound, "lease %s not found", leaseID)
		}
		if !lease.Indefinite() {
			return errkind.New(errkind.InvalidArgument, "heartbeat is only valid for indefinite leases; lease %s has a TTL", leaseID)
		}

		lease.LastBeat = nowWall
		idx.LastSeq++
		if err := l.appendLog(types.ClaimLogEntry{
			SchemaVersion: types.CurrentSchemaVersion,
			Seq:           idx.LastSeq,
			Timestamp:     nowWall,
			Op:            types.ClaimOpHeartbeat,
			LeaseID:       leaseID,
			IssueID:       lease.IssueID,
			AgentID:       lease.AgentID,
		}); err != nil {
			return err
		}
		result = lease
		return nil
	})
	return result, err
}

// Release removes leaseID from the index, provided callerAgentID owns it
// (spec.md §4.6 "Release" — "an agent may release only its own lease
// unless the caller is an administrator", i.e. uses ForceEvict instead).
func (l *Ledger) Release(leaseID, callerAgentID string) error {
	return l.withLock(func(idx *types.ClaimsIndex) error {
		nowWall := l.clock.NowWall()
		nowInstant := l.clock.NowMonotonic()
		if err := l.evictExpiredLocked(idx, nowWall, nowInstant); err != nil {
			return err
		}

		lease := findByID(idx, leaseID)
		if lease == nil {
			return errkind.New(errkind.NotFound, "lease %s not found", leaseID)
		}
		if lease.AgentID != callerAgentID {
			return errkind.New(errkind.InvalidArgument, "lease %s is held by %s, not %s; use force-evict as an administrator", leaseID, lease.AgentID, callerAgentID)
		}

		idx.LastSeq++
		if err := l.appendLog(types.ClaimLogEntry{
			SchemaVersion: types.CurrentSchemaVersion,
			Seq:           idx.LastSeq,
			Timestamp:     nowWall,
			Op:            types.ClaimOpRelease,
			LeaseID:       leaseID,
			IssueID:       lease.IssueID,
			AgentID:       lease.AgentID,
		}); err != nil {
			return err
		}
		removeLease(idx, leaseID)
		return nil
	})
}

// ForceEvict removes leaseID regardless of owner, with a mandatory
// reason (spec.md §4.6 "ForceEvict").
func (l *Ledger) ForceEvict(leaseID, reason string) error {
	if reason == "" {
		return errkind.New(errkind.InvalidArgument, "force-evict requires a reason")
	}
	return l.withLock(func(idx *types.ClaimsIndex) error {
		nowWall := l.clock.NowWall()
		nowInstant := l.clock.NowMonotonic()
		if err := l.evictExpiredLocked(idx, nowWall, nowInstant); err != nil {
			return err
		}

		lease := findByID(idx, leaseID)
		if lease == nil {
			return errkind.New(errkind.NotFound, "lease %s not found", leaseID)
		}

		idx.LastSeq++
		if err := l.appendLog(types.ClaimLogEntry{
			SchemaVersion: types.CurrentSchemaVersion,
			Seq:           idx.LastSeq,
			Timestamp:     nowWall,
			Op:            types.ClaimOpForceEvict,
			LeaseID:       leaseID,
			IssueID:       lease.IssueID,
			AgentID:       lease.AgentID,
			Reason:        reason,
		}); err != nil {
			return err
		}
		removeLease(idx, leaseID)
		return nil
	})
}

// LeaseForIssue returns the active lease on issueID, if any, without
// mutating state (expired leases already evicted by a prior operation
// are not returned; a caller wanting up-to-date eviction should call an
// Acquire/Renew/Heartbeat cycle, since read-only queries intentionally
// avoid taking the exclusive lock for a write).
func (l *Ledger) LeaseForIssue(issueID string) (*types.Lease, error) {
	idx, err := l.loadIndex()
	if err != nil {
		return nil, err
	}
	return findByIssue(idx, issueID), nil
}

// ValidateIndex checks the structural invariants of spec.md §4.6 "Index
// validation": duplicate leases for the same issue (corruption), unknown
// schema_version (corruption; already enforced by loadIndex), and
// reports sequence gaps as warnings rather than errors.
func (l *Ledger) ValidateIndex() (warnings []string, err error) {
	idx, err := l.loadIndex()
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for _, lease := range idx.Leases {
		if seen[lease.IssueID] {
			return nil, errkind.New(errkind.Corruption, "duplicate lease for issue %s in claims.index.json", lease.IssueID)
		}
		seen[lease.IssueID] = true
	}

	for _, gap := range idx.SequenceGaps {
		warnings = append(warnings, "sequence gap at "+itoa(gap))
	}
	return warnings, nil
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}
