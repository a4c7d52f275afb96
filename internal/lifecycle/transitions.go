package lifecycle

import (
	"fmt"
	"strings"

	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/types"
)

// Ready attempts the "* -> ready" transition: allowed only if no
// dependency has a state other than done (spec.md §4.7 transition table).
func (e *Engine) Ready(issueID string) (*types.Issue, error) {
	issue, err := e.Store.Load(issueID)
	if err != nil {
		return nil, err
	}
	ok, err := e.dependenciesAllDone(issue)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errkind.New(errkind.Blocked, "issue %s has unfinished dependencies", issue.ID)
	}
	from := issue.State
	issue.State = types.StateReady
	issue.UpdatedAt = e.now()
	if err := e.Store.Save(issue); err != nil {
		return nil, err
	}
	if err := e.emit(types.Event{Type: types.EventIssueStateChanged, IssueID: issue.ID, FromState: from, ToState: types.StateReady}); err != nil {
		return nil, err
	}
	return issue, nil
}

// Start attempts "ready -> in_progress": runs every auto precheck gate
// (manual precheck gates must already be passed); on any failure the
// issue remains in ready and the error summarizes the failing gates.
func (e *Engine) Start(issueID, by string) (*types.Issue, error) {
	issue, err := e.Store.Load(issueID)
	if err != nil {
		return nil, err
	}
	if issue.State != types.StateReady {
		return nil, errkind.New(errkind.InvalidArgument, "issue %s is %s, not ready", issue.ID, issue.State)
	}

	if err := e.runGateStage(issue, types.StagePrecheck, by); err != nil {
		return nil, err
	}

	from := issue.State
	issue.State = types.StateInProgress
	issue.UpdatedAt = e.now()
	if err := e.Store.Save(issue); err != nil {
		return nil, err
	}
	if err := e.emit(types.Event{Type: types.EventIssueStateChanged, IssueID: issue.ID, FromState: from, ToState: types.StateInProgress}); err != nil {
		return nil, err
	}
	return issue, nil
}

// runGateStage runs every gate of the given stage required by issue:
// auto gates are executed via the Gate Executor and their checker
// outcome recorded; manual gates of the stage must already be passed.
// Returns a BLOCKED error naming every failing gate if any fail.
func (e *Engine) runGateStage(issue *types.Issue, stage types.Stage, by string) error {
	defs, err := gatesByStage(e.Registry, issue.GatesRequired, stage)
	if err != nil {
		return err
	}

	var failing []string
	for _, def := range defs {
		switch def.Mode {
		case types.ModeAuto:
			result, err := e.Executor.Execute(def.Checker, issue.ID, def.Key, stage)
			if err != nil {
				return err
			}
			if err := e.persistGateRun(result); err != nil {
				return err
			}
			status := types.GateStatusFailed
			eventType := types.EventGateFailed
			if result.Status == types.RunPassed {
				status = types.GateStatusPassed
				eventType = types.EventGatePassed
			}
			e.setGateState(issue, def.Key, status, by)
			if err := e.emit(types.Event{Type: eventType, IssueID: issue.ID, GateKey: def.Key, By: by}); err != nil {
				return err
			}
			if status != types.GateStatusPassed {
				failing = append(failing, fmt.Sprintf("%s (%s)", def.Key, result.Status))
			}
		case types.ModeManual:
			if issue.Gates[def.Key].Status != types.GateStatusPassed {
				failing = append(failing, fmt.Sprintf("%s (manual, not yet passed)", def.Key))
			}
		}
	}

	if len(failing) > 0 {
		return errkind.New(errkind.Blocked, "issue %s has failing %s gates: %s", issue.ID, stage, strings.Join(failing, ", ")).
			WithSuggestion("resolve the failing gates and retry")
	}
	return nil
}

func (e *Engine) setGateState(issue *types.Issue, key string, status types.GateStatus, by string) {
	if issue.Gates == nil {
		issue.Gates = map[string]types.GateState{}
	}
	issue.Gates[key] = types.GateState{Status: status, UpdatedBy: by, UpdatedAt: e.now()}
}

// Gate attempts "in_progress -> gated": runs every auto postcheck gate;
// if all required gates end up passed, atomically rolls forward to done,
// emitting both state_changed events in order (spec.md §4.7).
func (e *Engine) Gate(issueID, by string) (*types.Issue, error) {
	issue, err := e.Store.Load(issueID)
	if err != nil {
		return nil, err
	}
	if issue.State != types.StateInProgress {
		return nil, errkind.New(errkind.InvalidArgument, "issue %s is %s, not in_progress", issue.ID, issue.State)
	}

	defs, err := gatesByStage(e.Registry, issue.GatesRequired, types.StagePostcheck)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		if def.Mode != types.ModeAuto {
			continue
		}
		result, err := e.Executor.Execute(def.Checker, issue.ID, def.Key, types.StagePostcheck)
		if err != nil {
			return nil, err
		}
		if err := e.persistGateRun(result); err != nil {
			return nil, err
		}
		status := types.GateStatusFailed
		eventType := types.EventGateFailed
		if result.Status == types.RunPassed {
			status = types.GateStatusPassed
			eventType = types.EventGatePassed
		}
		e.setGateState(issue, def.Key, status, by)
		if err := e.emit(types.Event{Type: eventType, IssueID: issue.ID, GateKey: def.Key, By: by}); err != nil {
			return nil, err
		}
	}

	from := issue.State
	issue.State = types.StateGated
	issue.UpdatedAt = e.now()
	if err := e.Store.Save(issue); err != nil {
		return nil, err
	}
	if err := e.emit(types.Event{Type: types.EventIssueStateChanged, IssueID: issue.ID, FromState: from, ToState: types.StateGated}); err != nil {
		return nil, err
	}

	if gatesRequiredPassed(issue) {
		return e.completeFrom(issue, types.StateGated)
	}
	return issue, nil
}

// Complete attempts "* -> done": requires every dependency done and
// every required gate passed (I7, I8); when gates are outstanding the
// target is rewritten to gated instead (spec.md §4.7).
func (e *Engine) Complete(issueID string) (*types.Issue, error) {
	issue, err := e.Store.Load(issueID)
	if err != nil {
		return nil, err
	}
	depsOK, err := e.dependenciesAllDone(issue)
	if err != nil {
		return nil, err
	}
	if !depsOK {
		return nil, errkind.New(errkind.Blocked, "issue %s has unfinished dependencies", issue.ID)
	}
	if !gatesRequiredPassed(issue) {
		from := issue.State
		issue.State = types.StateGated
		issue.UpdatedAt = e.now()
		if err := e.Store.Save(issue); err != nil {
			return nil, err
		}
		if err := e.emit(types.Event{Type: types.EventIssueStateChanged, IssueID: issue.ID, FromState: from, ToState: types.StateGated}); err != nil {
			return nil, err
		}
		return issue, nil
	}
	return e.completeFrom(issue, issue.State)
}

// completeFrom performs the done transition and its side effects
// (issue_completed event, dependency propagation) from whatever state
// issue is currently recorded at.
func (e *Engine) completeFrom(issue *types.Issue, from types.State) (*types.Issue, error) {
	issue.State = types.StateDone
	issue.UpdatedAt = e.now()
	if err := e.Store.Save(issue); err != nil {
		return nil, err
	}
	if err := e.emit(types.Event{Type: types.EventIssueStateChanged, IssueID: issue.ID, FromState: from, ToState: types.StateDone}); err != nil {
		return nil, err
	}
	if err := e.emit(types.Event{Type: types.EventIssueCompleted, IssueID: issue.ID}); err != nil {
		return nil, err
	}
	if err := e.propagateReadiness(); err != nil {
		return nil, err
	}
	return issue, nil
}

// propagateReadiness scans every backlog issue and promotes to ready any
// whose dependencies are now all done, one pass only (spec.md §4.7
// "Dependency propagation" — "Propagation is single-pass").
func (e *Engine) propagateReadiness() error {
	issues, err := e.Store.List()
	if err != nil {
		return err
	}
	for _, issue := range issues {
		if issue.State != types.StateBacklog {
			continue
		}
		ok, err := e.dependenciesAllDone(issue)
		if err != nil {
			return err
		}
		if ok {
			if err := e.promote(issue, types.StateReady); err != nil {
				return err
			}
		}
	}
	return nil
}

// Release attempts "in_progress -> ready": an explicit release that
// clears the assignee and emits issue_released before the state_changed
// event (spec.md §4.7).
func (e *Engine) Release(issueID, reason string) (*types.Issue, error) {
	issue, err := e.Store.Load(issueID)
	if err != nil {
		return nil, err
	}
	if issue.State != types.StateInProgress {
		return nil, errkind.New(errkind.InvalidArgument, "issue %s is %s, not in_progress", issue.ID, issue.State)
	}

	assignee := issue.Assignee
	issue.Assignee = ""
	from := issue.State
	issue.State = types.StateReady
	issue.UpdatedAt = e.now()
	if err := e.Store.Save(issue); err != nil {
		return nil, err
	}
	if err := e.emit(types.Event{Type: types.EventIssueReleased, IssueID: issue.ID, Assignee: assignee, Reason: reason}); err != nil {
		return nil, err
	}
	if err := e.emit(types.Event{Type: types.EventIssueStateChanged, IssueID: issue.ID, FromState: from, ToState: types.StateReady}); err != nil {
		return nil, err
	}

	if assignee != "" {
		// best effort: a release without a held lease is not an error condition here
		if lease, err := e.Ledger.LeaseForIssue(issue.ID); err == nil && lease != nil {
			_ = e.Ledger.Release(lease.LeaseID, assignee)
		}
	}
	return issue, nil
}

// Reject attempts "* -> rejected", an explicit terminal transition.
func (e *Engine) Reject(issueID string) (*types.Issue, error) {
	return e.explicitTransition(issueID, types.StateRejected)
}

// Archive attempts "* -> archived", an explicit terminal transition.
func (e *Engine) Archive(issueID string) (*types.Issue, error) {
	return e.explicitTransition(issueID, types.StateArchived)
}

func (e *Engine) explicitTransition(issueID string, target types.State) (*types.Issue, error) {
	issue, err := e.Store.Load(issueID)
	if err != nil {
		return nil, err
	}
	from := issue.State
	issue.State = target
	issue.UpdatedAt = e.now()
	if err := e.Store.Save(issue); err != nil {
		return nil, err
	}
	if err := e.emit(types.Event{Type: types.EventIssueStateChanged, IssueID: issue.ID, FromState: from, ToState: target}); err != nil {
		return nil, err
	}
	return issue, nil
}
