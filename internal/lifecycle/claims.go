package lifecycle

import (
	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/types"
)

// Assign is unconditional: it does not touch state or the claim ledger
// (spec.md §4.7 "Claim vs. assign").
func (e *Engine) Assign(issueID, assignee string) (*types.Issue, error) {
	issue, err := e.Store.Load(issueID)
	if err != nil {
		return nil, err
	}
	issue.Assignee = assignee
	issue.UpdatedAt = e.now()
	if err := e.Store.Save(issue); err != nil {
		return nil, err
	}
	return issue, nil
}

// Claim requires the current assignee to be empty, sets it, acquires a
// lease on the issue from the Lease Ledger under that assignee, and —
// when the issue is ready — rolls forward to in_progress, triggering
// prechecks (spec.md §4.7 "Claim vs. assign").
func (e *Engine) Claim(issueID, assignee string, ttlSecs int64, reason string) (*types.Issue, error) {
	issue, err := e.Store.Load(issueID)
	if err != nil {
		return nil, err
	}
	if issue.Assignee != "" {
		return nil, errkind.New(errkind.AlreadyExists, "issue %s is already assigned to %s", issue.ID, issue.Assignee)
	}

	if _, err := e.Ledger.Acquire(issue.ID, assignee, e.Identity.WorktreeID, e.Identity.Branch, ttlSecs, reason); err != nil {
		return nil, err
	}

	issue.Assignee = assignee
	issue.UpdatedAt = e.now()
	if err := e.Store.Save(issue); err != nil {
		return nil, err
	}
	if err := e.emit(types.Event{Type: types.EventIssueClaimed, IssueID: issue.ID, Assignee: assignee}); err != nil {
		return nil, err
	}

	if issue.State == types.StateReady {
		return e.Start(issue.ID, assignee)
	}
	return issue, nil
}

// ClaimNext picks the unassigned, unblocked candidate with the highest
// priority and claims it (spec.md §4.7 "Claim vs. assign" — claim_next).
// "Not blocked" means the issue is in the ready state; backlog, gated,
// in_progress and terminal issues are not candidates.
func (e *Engine) ClaimNext(assignee string, ttlSecs int64, reason string) (*types.Issue, error) {
	issues, err := e.Store.List()
	if err != nil {
		return nil, err
	}

	var candidates []*types.Issue
	for _, issue := range issues {
		if issue.Assignee != "" {
			continue
		}
		if issue.State != types.StateReady {
			continue
		}
		candidates = append(candidates, issue)
	}
	if len(candidates) == 0 {
		return nil, errkind.New(errkind.NotFound, "no unassigned, unblocked issue is available to claim")
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Priority.Rank() > best.Priority.Rank() {
			best = c
		}
	}
	return e.Claim(best.ID, assignee, ttlSecs, reason)
}
