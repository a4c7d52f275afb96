// Package bulk implements the Bulk Engine (spec.md §4.7 "Bulk updates"):
// a query-filter selection followed by per-entity, best-effort literal
// updates — no automatic gate execution, no Gated-rewrite. Grounded on
// the teacher's internal/queries package shape (a filter predicate over
// the full listing) combined with its batch-apply/collect-errors idiom
// from internal/merge, generalized here from SQL predicates to in-memory
// predicates over *types.Issue.
package bulk

import (
	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/eventlog"
	"github.com/jit-dev/jit/internal/gateregistry"
	"github.com/jit-dev/jit/internal/store"
	"github.com/jit-dev/jit/internal/types"
)

// Filter selects the set of issues a bulk operation applies to. A nil
// field matches everything for that dimension.
type Filter struct {
	States   []types.State
	Labels   []string
	Assignee *string // pointer so "" (unassigned) is distinguishable from "unset"
	Priority *types.Priority
}

func (f Filter) matches(issue *types.Issue) bool {
	if len(f.States) > 0 && !stateIn(issue.State, f.States) {
		return false
	}
	for _, label := range f.Labels {
		if !issue.HasLabel(label) {
			return false
		}
	}
	if f.Assignee != nil && issue.Assignee != *f.Assignee {
		return false
	}
	if f.Priority != nil && issue.Priority != *f.Priority {
		return false
	}
	return true
}

func stateIn(s types.State, states []types.State) bool {
	for _, candidate := range states {
		if s == candidate {
			return true
		}
	}
	return false
}

// Update is the operation set a bulk call applies to every matched issue
// (spec.md §4.7 "Bulk updates"). A nil/empty field leaves that aspect of
// the issue untouched.
type Update struct {
	State       *types.State
	AddLabels   []string
	RemoveLabels []string
	AddGates    []string
	RemoveGates []string
	Assignee    *string
	Unassign    bool
	Priority    *types.Priority
}

// Result captures the outcome for one matched issue.
type Result struct {
	IssueID string
	Changed bool
	Err     error
}

// Engine applies bulk updates directly against the Issue Store, Event
// Log, and Gate Registry — deliberately bypassing the Lifecycle Engine's
// gate automation, per spec.md's "Bulk state transitions are literal".
type Engine struct {
	Store    *store.Store
	Events   *eventlog.Log
	Registry *gateregistry.Registry
}

// New returns a bulk Engine over the given components.
func New(st *store.Store, events *eventlog.Log, registry *gateregistry.Registry) *Engine {
	return &Engine{Store: st, Events: events, Registry: registry}
}

// Apply resolves filter against the full listing, then applies update to
// each match independently: a per-issue error is recorded in that issue's
// Result without aborting the rest of the batch (spec.md §4.7, §7
// "Propagation ... except in bulk operations").
func (e *Engine) Apply(filter Filter, update Update) ([]Result, error) {
	issues, err := e.Store.List()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*types.Issue, len(issues))
	for _, issue := range issues {
		byID[issue.ID] = issue
	}

	var results []Result
	for _, issue := range issues {
		if !filter.matches(issue) {
			continue
		}
		results = append(results, e.applyOne(issue, update, byID))
	}
	return results, nil
}

func (e *Engine) applyOne(issue *types.Issue, update Update, byID map[string]*types.Issue) Result {
	before := issue.ComputeContentHash()
	working := issue.Clone()
	var modified []string

	if update.State != nil && *update.State != working.State {
		if err := validateStateLiteral(working, *update.State, byID); err != nil {
			return Result{IssueID: issue.ID, Err: err}
		}
		working.State = *update.State
		modified = append(modified, "state")
	}

	if len(update.AddLabels) > 0 || len(update.RemoveLabels) > 0 {
		working.Labels = applyLabelDelta(working.Labels, update.AddLabels, update.RemoveLabels)
		if err := e.Registry.ValidateLabels(working.Labels); err != nil {
			return Result{IssueID: issue.ID, Err: err}
		}
		modified = append(modified, "labels")
	}

	if len(update.AddGates) > 0 || len(update.RemoveGates) > 0 {
		if err := e.Registry.ResolveGateKeys(update.AddGates); err != nil {
			return Result{IssueID: issue.ID, Err: err}
		}
		working.GatesRequired = applyGateDelta(working.GatesRequired, update.AddGates, update.RemoveGates)
		if working.Gates == nil {
			working.Gates = map[string]types.GateState{}
		}
		for _, key := range update.AddGates {
			if _, ok := working.Gates[key]; !ok {
				working.Gates[key] = types.GateState{Status: types.GateStatusPending}
			}
		}
		for _, key := range update.RemoveGates {
			delete(working.Gates, key)
		}
		modified = append(modified, "gates_required")
	}

	if update.Unassign {
		working.Assignee = ""
		modified = append(modified, "assignee")
	} else if update.Assignee != nil {
		working.Assignee = *update.Assignee
		modified = append(modified, "assignee")
	}

	if update.Priority != nil {
		working.Priority = *update.Priority
		modified = append(modified, "priority")
	}

	if len(modified) == 0 {
		return Result{IssueID: issue.ID, Changed: false}
	}

	after := working.ComputeContentHash()
	if after == before {
		return Result{IssueID: issue.ID, Changed: false}
	}

	working.UpdatedAt = issue.UpdatedAt
	if err := e.Store.Save(working); err != nil {
		return Result{IssueID: issue.ID, Err: err}
	}
	if _, err := e.Events.Append(types.Event{
		Type:           types.EventIssueUpdated,
		IssueID:        working.ID,
		ModifiedFields: modified,
	}); err != nil {
		return Result{IssueID: issue.ID, Err: err}
	}

	return Result{IssueID: issue.ID, Changed: true}
}

// validateStateLiteral enforces I7/I8 against the literal target state a
// bulk caller asked for, without running any gate automation (spec.md
// §4.7 "Bulk state transitions are literal"): ready/in_progress/done all
// require every dependency to be done (I7), and done additionally
// requires every configured gate passed (I8).
func validateStateLiteral(issue *types.Issue, target types.State, byID map[string]*types.Issue) error {
	if !target.Valid() {
		return errkind.New(errkind.InvalidArgument, "invalid target state %q", target)
	}
	switch target {
	case types.StateReady, types.StateInProgress, types.StateDone:
		for _, depID := range issue.Dependencies {
			dep, ok := byID[depID]
			if !ok || dep.State != types.StateDone {
				return errkind.New(errkind.Blocked, "issue %s: dependency %s is not done", issue.ID, depID)
			}
		}
	}
	if target == types.StateDone {
		for _, key := range issue.GatesRequired {
			if issue.Gates[key].Status != types.GateStatusPassed {
				return errkind.New(errkind.Blocked, "issue %s: gate %q not passed; literal bulk transition to done requires all required gates passed", issue.ID, key)
			}
		}
	}
	return nil
}

func applyLabelDelta(labels, add, remove []string) []string {
	set := map[string]bool{}
	for _, l := range labels {
		set[l] = true
	}
	for _, l := range remove {
		delete(set, l)
	}
	for _, l := range add {
		set[l] = true
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	return out
}

func applyGateDelta(keys, add, remove []string) []string {
	set := map[string]bool{}
	for _, k := range keys {
		set[k] = true
	}
	for _, k := range remove {
		delete(set, k)
	}
	for _, k := range add {
		set[k] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
