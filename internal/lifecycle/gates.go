package lifecycle

import (
	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/types"
)

// PassGate marks a gate passed. On an auto gate this delegates to the
// Gate Executor and the checker outcome wins, overriding the caller's
// intent; on a manual gate it simply marks the gate passed (spec.md §4.7
// "Gate pass/fail"). Passing the last pending required gate of a gated
// issue auto-transitions it to done.
func (e *Engine) PassGate(issueID, key, by string) (*types.Issue, error) {
	issue, err := e.Store.Load(issueID)
	if err != nil {
		return nil, err
	}
	def, err := e.Registry.Gate(key)
	if err != nil {
		return nil, err
	}
	if !containsString(issue.GatesRequired, key) {
		return nil, errkind.New(errkind.GateNotRequired, "gate %q is not required by issue %s", key, issue.ID)
	}

	switch def.Mode {
	case types.ModeAuto:
		result, err := e.Executor.Execute(def.Checker, issue.ID, key, def.Stage)
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
		e.setGateState(issue, key, status, by)
		if err := e.Store.Save(issue); err != nil {
			return nil, err
		}
		if err := e.emit(types.Event{Type: eventType, IssueID: issue.ID, GateKey: key, By: by}); err != nil {
			return nil, err
		}
		if status != types.GateStatusPassed {
			return issue, errkind.New(errkind.Blocked, "checker for gate %q did not pass (%s)", key, result.Status)
		}
	case types.ModeManual:
		e.setGateState(issue, key, types.GateStatusPassed, by)
		if err := e.Store.Save(issue); err != nil {
			return nil, err
		}
		if err := e.emit(types.Event{Type: types.EventGatePassed, IssueID: issue.ID, GateKey: key, By: by}); err != nil {
			return nil, err
		}
	}

	if issue.State == types.StateGated && gatesRequiredPassed(issue) {
		return e.completeFrom(issue, types.StateGated)
	}
	return issue, nil
}

// FailGate marks a manual gate failed. Auto gates are rejected with
// guidance to run the checker instead (spec.md §4.7 "Gate pass/fail").
func (e *Engine) FailGate(issueID, key, by string) (*types.Issue, error) {
	issue, err := e.Store.Load(issueID)
	if err != nil {
		return nil, err
	}
	def, err := e.Registry.Gate(key)
	if err != nil {
		return nil, err
	}
	if !containsString(issue.GatesRequired, key) {
		return nil, errkind.New(errkind.GateNotRequired, "gate %q is not required by issue %s", key, issue.ID)
	}
	if def.Mode == types.ModeAuto {
		return nil, errkind.New(errkind.InvalidArgument, "gate %q is automatic; run its checker instead of failing it manually", key).
			WithSuggestion("invoke the gate's checker (pass_gate) to record its real outcome")
	}

	e.setGateState(issue, key, types.GateStatusFailed, by)
	if err := e.Store.Save(issue); err != nil {
		return nil, err
	}
	if err := e.emit(types.Event{Type: types.EventGateFailed, IssueID: issue.ID, GateKey: key, By: by}); err != nil {
		return nil, err
	}
	return issue, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
