// Package jit provides the public API of the repo-local coordination
// engine: a thin re-export of the core types plus CommandExecutor, the
// single composition root every operation is a method call on (spec.md
// §9 "Global state -> explicit configuration"). Grounded on the
// teacher's top-level beads.go, which plays the same re-export role over
// its internal storage package.
package jit

import (
	"log/slog"
	"path/filepath"

	"github.com/jit-dev/jit/internal/bulk"
	"github.com/jit-dev/jit/internal/clock"
	"github.com/jit-dev/jit/internal/config"
	"github.com/jit-dev/jit/internal/gateregistry"
	"github.com/jit-dev/jit/internal/leaseledger"
	"github.com/jit-dev/jit/internal/lifecycle"
	"github.com/jit-dev/jit/internal/logging"
	"github.com/jit-dev/jit/internal/store"
	"github.com/jit-dev/jit/internal/types"
	"github.com/jit-dev/jit/internal/validator"
	"github.com/jit-dev/jit/internal/worktree"
)

// Re-exported core types, so callers never need to import internal/types
// directly.
type (
	Issue          = types.Issue
	Priority       = types.Priority
	State          = types.State
	GateDefinition = types.GateDefinition
	GateRunResult  = types.GateRunResult
	GateState      = types.GateState
	LabelNamespace = types.LabelNamespace
	Lease          = types.Lease
	Event          = types.Event
	Comment        = types.Comment
)

const (
	PriorityLow      = types.PriorityLow
	PriorityNormal   = types.PriorityNormal
	PriorityHigh     = types.PriorityHigh
	PriorityCritical = types.PriorityCritical

	StateBacklog    = types.StateBacklog
	StateReady      = types.StateReady
	StateInProgress = types.StateInProgress
	StateGated      = types.StateGated
	StateDone       = types.StateDone
	StateRejected   = types.StateRejected
	StateArchived   = types.StateArchived
)

// CommandExecutor owns an Issue Store, a Clock, a config view, and a path
// bundle, and composes every other component behind method calls (spec.md
// §9). It is the only supported way to mutate or query the coordination
// engine; there is no process-wide singleton.
type CommandExecutor struct {
	Paths  types.WorktreePaths
	Config config.Config
	Clock  clock.Clock

	Lifecycle *lifecycle.Engine
	Bulk      *bulk.Engine
	Validator *validator.Validator
	Log       *slog.Logger
}

// Open resolves WorktreePaths from dir (any directory inside a worktree),
// loads config.toml, and assembles a CommandExecutor wired from
// production components (clock.System, an os/exec-backed worktree
// resolver). identity names the worktree/branch this process acts as
// when acquiring leases.
func Open(dir string, identity lifecycle.Identity) (*CommandExecutor, error) {
	paths, err := worktree.Resolve(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.LocalJIT)
	if err != nil {
		return nil, err
	}
	return assemble(paths, cfg, clock.System{}, identity), nil
}

// OpenWithClock is Open's test seam: it accepts an explicit Clock (e.g.
// clock.NewManual) instead of clock.System, so expiry and ordering
// behavior can be driven deterministically.
func OpenWithClock(dir string, identity lifecycle.Identity, clk clock.Clock) (*CommandExecutor, error) {
	paths, err := worktree.Resolve(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.LocalJIT)
	if err != nil {
		return nil, err
	}
	return assemble(paths, cfg, clk, identity), nil
}

func assemble(paths types.WorktreePaths, cfg config.Config, clk clock.Clock, identity lifecycle.Identity) *CommandExecutor {
	engine := lifecycle.New(paths, paths.WorktreeRoot, clk, identity)
	bulkEngine := bulk.New(engine.Store, engine.Events, engine.Registry)
	val := validator.New(engine.Store, engine.Registry, engine.Ledger, validator.TypeHierarchy{}, paths.WorktreeRoot)

	logger := logging.New(paths.LocalJIT, logging.Options{
		Enabled:    cfg.LogToFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   true,
	})

	if seed, err := gateregistry.LoadSeed(filepath.Join(paths.WorktreeRoot, gateregistry.SeedFileName)); err == nil {
		if err := engine.Registry.ApplySeed(seed); err != nil {
			logger.Warn("apply gate/namespace seed", "error", err)
		}
	} else {
		logger.Warn("load gate/namespace seed", "error", err)
	}

	return &CommandExecutor{
		Paths:     paths,
		Config:    cfg,
		Clock:     clk,
		Lifecycle: engine,
		Bulk:      bulkEngine,
		Validator: val,
		Log:       logger,
	}
}

// Create delegates to the Lifecycle Engine (spec.md §4.7 "Create").
func (c *CommandExecutor) Create(issue *types.Issue) (*types.Issue, error) {
	return c.Lifecycle.Create(issue)
}

// Load resolves a (possibly partial) issue ID via the Issue Store's
// 3-tier fallback.
func (c *CommandExecutor) Load(idOrPrefix string) (*types.Issue, error) {
	return c.Lifecycle.Store.Load(idOrPrefix)
}

// List returns every issue visible across the 3-tier fallback.
func (c *CommandExecutor) List() ([]*types.Issue, error) {
	return c.Lifecycle.Store.List()
}

// ClaimNext claims the highest-priority unassigned, unblocked issue,
// using the configured default claim TTL when ttlSecs is 0.
func (c *CommandExecutor) ClaimNext(assignee string, ttlSecs int64, reason string) (*types.Issue, error) {
	if ttlSecs == 0 {
		ttlSecs = c.Config.DefaultClaimTTLSecs
	}
	return c.Lifecycle.ClaimNext(assignee, ttlSecs, reason)
}

// Events returns every event recorded for an issue, in append order.
func (c *CommandExecutor) Events(issueID string) ([]types.Event, error) {
	return c.Lifecycle.Events.ForIssue(issueID)
}

// GateRegistry exposes the Gate Registry directly, for callers managing
// gate and label-namespace definitions outside the Lifecycle Engine's
// mutation path.
func (c *CommandExecutor) GateRegistry() *gateregistry.Registry {
	return c.Lifecycle.Registry
}

// Leases exposes the Lease Ledger directly, for callers that need
// heartbeat/renew/force-evict outside a Lifecycle-mediated claim.
func (c *CommandExecutor) Leases() *leaseledger.Ledger {
	return c.Lifecycle.Ledger
}

// Store exposes the Issue Store directly, for read-only callers that
// want to bypass the Lifecycle Engine per spec.md §4.2 ("Reads bypass
// the engine and go directly through Issue Store").
func (c *CommandExecutor) Store() *store.Store {
	return c.Lifecycle.Store
}
