// Package lifecycle implements the Lifecycle Engine (spec.md §4.7): the
// single entry point for every mutation, composing the Issue Store, Event
// Log, Dependency Graph, Gate Registry, Gate Executor, and Lease Ledger.
// Grounded on the teacher's top-level beads.go, which plays the same
// composition-root role over its storage/audit/validation packages;
// generalized here from a SQL-transaction boundary to the file-locked,
// multi-process boundary spec.md requires.
package lifecycle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jit-dev/jit/internal/atomicfile"
	"github.com/jit-dev/jit/internal/clock"
	"github.com/jit-dev/jit/internal/depgraph"
	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/eventlog"
	"github.com/jit-dev/jit/internal/gateexec"
	"github.com/jit-dev/jit/internal/gateregistry"
	"github.com/jit-dev/jit/internal/idgen"
	"github.com/jit-dev/jit/internal/leaseledger"
	"github.com/jit-dev/jit/internal/store"
	"github.com/jit-dev/jit/internal/types"
)

// Identity is the caller context every mutating Engine method is invoked
// under: which worktree and branch currently holds whatever lease it
// takes out (spec.md §3 "Lease").
type Identity struct {
	WorktreeID string
	Branch     string
}

// Engine is the composition root: "every operation is a method call,
// never a module-level global" (spec.md §9 design note).
type Engine struct {
	Store    *store.Store
	Events   *eventlog.Log
	Registry *gateregistry.Registry
	Executor *gateexec.Executor
	Ledger   *leaseledger.Ledger
	Clock    clock.Clock
	Identity Identity

	paths types.WorktreePaths
}

// New assembles an Engine over the given worktree paths. repoRoot is
// where the Gate Executor resolves relative working_dir entries against.
func New(paths types.WorktreePaths, repoRoot string, clk clock.Clock, identity Identity) *Engine {
	return &Engine{
		Store:    store.New(paths),
		Events:   eventlog.New(paths.LocalJIT),
		Registry: gateregistry.New(paths.LocalJIT),
		Executor: gateexec.New(repoRoot),
		Ledger:   leaseledger.New(paths.SharedJIT, clk),
		Clock:    clk,
		Identity: identity,
		paths:    paths,
	}
}

func (e *Engine) graph() (*depgraph.Graph, []*types.Issue, error) {
	issues, err := e.Store.List()
	if err != nil {
		return nil, nil, err
	}
	nodes := make([]depgraph.Node, len(issues))
	for i, issue := range issues {
		nodes[i] = issue
	}
	return depgraph.New(nodes), issues, nil
}

func (e *Engine) now() time.Time { return e.Clock.NowWall() }

func (e *Engine) emit(ev types.Event) error {
	_, err := e.Events.Append(ev)
	return err
}

// Create assigns a new UUID, validates labels/namespaces, saves the issue,
// emits issue_created, and auto-promotes to ready when it has no
// dependencies (spec.md §4.7 "Create").
func (e *Engine) Create(issue *types.Issue) (*types.Issue, error) {
	if err := e.Registry.ResolveGateKeys(issue.GatesRequired); err != nil {
		return nil, err
	}
	if err := e.Registry.ValidateLabels(issue.Labels); err != nil {
		return nil, err
	}

	_, allIssues, err := e.graph()
	if err != nil {
		return nil, err
	}
	for _, dep := range issue.Dependencies {
		if !containsID(allIssues, dep) {
			return nil, errkind.New(errkind.InvalidArgument, "dependency %s does not resolve to an existing issue", dep)
		}
	}

	now := e.now()
	issue.ID = idgen.Issue()
	issue.State = types.StateBacklog
	issue.CreatedAt = now
	issue.UpdatedAt = now
	if issue.Gates == nil && len(issue.GatesRequired) > 0 {
		issue.Gates = map[string]types.GateState{}
		for _, key := range issue.GatesRequired {
			issue.Gates[key] = types.GateState{Status: types.GateStatusPending}
		}
	}

	if err := e.Store.Save(issue); err != nil {
		return nil, err
	}
	if err := e.emit(types.Event{Type: types.EventIssueCreated, IssueID: issue.ID, ToState: issue.State}); err != nil {
		return nil, err
	}

	if len(issue.Dependencies) == 0 {
		if err := e.promote(issue, types.StateReady); err != nil {
			return nil, err
		}
	}

	return issue, nil
}

func containsID(issues []*types.Issue, id string) bool {
	for _, i := range issues {
		if i.ID == id {
			return true
		}
	}
	return false
}

// promote moves issue directly to target without precondition checks
// (used for the backlog->ready auto-promotion paths, where the caller has
// already established the precondition holds).
func (e *Engine) promote(issue *types.Issue, target types.State) error {
	from := issue.State
	issue.State = target
	issue.UpdatedAt = e.now()
	if err := e.Store.Save(issue); err != nil {
		return err
	}
	return e.emit(types.Event{Type: types.EventIssueStateChanged, IssueID: issue.ID, FromState: from, ToState: target})
}

// AddDependency adds depID to issue's dependency list. Cycle-forming adds
// are always rejected; redundant edges are allowed (spec.md §4.7
// "Redundancy policy on add-dependency") and surfaced only by the
// Validator.
func (e *Engine) AddDependency(issueID, depID string) (*types.Issue, error) {
	issue, err := e.Store.Load(issueID)
	if err != nil {
		return nil, err
	}
	g, _, err := e.graph()
	if err != nil {
		return nil, err
	}
	if !g.Exists(depID) {
		return nil, errkind.New(errkind.InvalidArgument, "dependency %s does not resolve to an existing issue", depID)
	}
	if err := g.ValidateAddEdge(issue.ID, depID); err != nil {
		return nil, err
	}
	if issue.HasDependency(depID) {
		return issue, nil
	}
	issue.Dependencies = append(issue.Dependencies, depID)
	issue.UpdatedAt = e.now()
	if err := e.Store.Save(issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// RemoveDependency removes depID from issue's dependency list, then
// re-evaluates whether the issue can now promote to ready.
func (e *Engine) RemoveDependency(issueID, depID string) (*types.Issue, error) {
	issue, err := e.Store.Load(issueID)
	if err != nil {
		return nil, err
	}
	kept := issue.Dependencies[:0]
	for _, d := range issue.Dependencies {
		if d != depID {
			kept = append(kept, d)
		}
	}
	issue.Dependencies = kept
	issue.UpdatedAt = e.now()
	if err := e.Store.Save(issue); err != nil {
		return nil, err
	}
	if issue.State == types.StateBacklog {
		ready, err := e.dependenciesAllDone(issue)
		if err != nil {
			return nil, err
		}
		if ready {
			if err := e.promote(issue, types.StateReady); err != nil {
				return nil, err
			}
		}
	}
	return issue, nil
}

func (e *Engine) dependenciesAllDone(issue *types.Issue) (bool, error) {
	for _, depID := range issue.Dependencies {
		dep, err := e.Store.LoadFull(depID)
		if err != nil {
			return false, err
		}
		if dep.State != types.StateDone {
			return false, nil
		}
	}
	return true, nil
}

// gatesRequiredPassed reports whether every gate in issue.GatesRequired
// has status passed.
func gatesRequiredPassed(issue *types.Issue) bool {
	for _, key := range issue.GatesRequired {
		if issue.Gates[key].Status != types.GateStatusPassed {
			return false
		}
	}
	return true
}

func gatesByStage(registry *gateregistry.Registry, keys []string, stage types.Stage) ([]*types.GateDefinition, error) {
	var out []*types.GateDefinition
	for _, key := range keys {
		def, err := registry.Gate(key)
		if err != nil {
			return nil, err
		}
		if def.Stage == stage {
			out = append(out, def)
		}
	}
	return out, nil
}

func sortedKeys(m map[string]types.GateState) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// persistGateRun writes a GateRunResult under local_jit/gate-runs/<run-
// id>.json (spec.md §6 — unique filename, no lock needed).
func (e *Engine) persistGateRun(result *types.GateRunResult) error {
	dir := filepath.Join(e.paths.LocalJIT, "gate-runs")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errkind.Wrap(errkind.IO, err, "create gate-runs directory")
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errkind.Wrap(errkind.IO, err, "encode gate run result")
	}
	return atomicfile.Write(filepath.Join(dir, result.RunID+".json"), data, 0o644)
}
