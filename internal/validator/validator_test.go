package validator

import (
	"path/filepath"
	"testing"

	"github.com/jit-dev/jit/internal/clock"
	"github.com/jit-dev/jit/internal/gateregistry"
	"github.com/jit-dev/jit/internal/leaseledger"
	"github.com/jit-dev/jit/internal/store"
	"github.com/jit-dev/jit/internal/types"
)

func newTestValidator(t *testing.T, hierarchy TypeHierarchy) (*Validator, *store.Store, *gateregistry.Registry) {
	t.Helper()
	root := t.TempDir()
	localJIT := filepath.Join(root, ".jit")
	paths := types.WorktreePaths{WorktreeRoot: root, LocalJIT: localJIT, SharedJIT: filepath.Join(root, ".git", "jit")}
	st := store.New(paths)
	reg := gateregistry.New(localJIT)
	ledger := leaseledger.New(paths.SharedJIT, clock.System{})
	return New(st, reg, ledger, hierarchy, root), st, reg
}

func mustSave(t *testing.T, st *store.Store, issue *types.Issue) {
	t.Helper()
	if issue.ID == "" {
		issue.ID = issue.Title
	}
	if err := st.Save(issue); err != nil {
		t.Fatalf("save %s: %v", issue.ID, err)
	}
}

func TestValidateCleanRepositoryPasses(t *testing.T) {
	v, st, _ := newTestValidator(t, TypeHierarchy{})
	mustSave(t, st, &types.Issue{ID: "a", Title: "a", State: types.StateBacklog, Priority: types.PriorityNormal})
	violation, err := v.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if violation != nil {
		t.Fatalf("expected no violation, got %+v", violation)
	}
}

func TestValidateRule1UnresolvedDependency(t *testing.T) {
	v, st, _ := newTestValidator(t, TypeHierarchy{})
	mustSave(t, st, &types.Issue{ID: "a", Title: "a", State: types.StateBacklog, Priority: types.PriorityNormal, Dependencies: []string{"missing"}})
	violation, err := v.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if violation == nil || violation.Rule != 1 {
		t.Fatalf("expected rule 1 violation, got %+v", violation)
	}
}

func TestValidateRule2UnresolvedGateKey(t *testing.T) {
	v, st, _ := newTestValidator(t, TypeHierarchy{})
	mustSave(t, st, &types.Issue{ID: "a", Title: "a", State: types.StateBacklog, Priority: types.PriorityNormal, GatesRequired: []string{"nope"}})
	violation, err := v.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if violation == nil || violation.Rule != 2 {
		t.Fatalf("expected rule 2 violation, got %+v", violation)
	}
}

func TestValidateRule3BadLabelSyntax(t *testing.T) {
	v, st, _ := newTestValidator(t, TypeHierarchy{})
	mustSave(t, st, &types.Issue{ID: "a", Title: "a", State: types.StateBacklog, Priority: types.PriorityNormal, Labels: []string{"NOT-VALID"}})
	violation, err := v.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if violation == nil || violation.Rule != 3 {
		t.Fatalf("expected rule 3 violation, got %+v", violation)
	}
}

func TestValidateRule4UnknownTypeSuggestsFix(t *testing.T) {
	v, st, _ := newTestValidator(t, TypeHierarchy{Types: []string{"bug", "feature"}})
	if err := v.Registry.PutNamespace(&types.LabelNamespace{Name: "type"}); err != nil {
		t.Fatalf("put namespace: %v", err)
	}
	mustSave(t, st, &types.Issue{ID: "a", Title: "a", State: types.StateBacklog, Priority: types.PriorityNormal, Labels: []string{"type:bvg"}})

	violation, err := v.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if violation == nil || violation.Rule != 4 {
		t.Fatalf("expected rule 4 violation, got %+v", violation)
	}
	if violation.Suggestion != "bug" {
		t.Fatalf("expected suggestion 'bug', got %q", violation.Suggestion)
	}
}

func TestValidateRule6CycleDetected(t *testing.T) {
	v, st, _ := newTestValidator(t, TypeHierarchy{})
	mustSave(t, st, &types.Issue{ID: "a", Title: "a", State: types.StateBacklog, Priority: types.PriorityNormal, Dependencies: []string{"b"}})
	mustSave(t, st, &types.Issue{ID: "b", Title: "b", State: types.StateBacklog, Priority: types.PriorityNormal, Dependencies: []string{"a"}})

	violation, err := v.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if violation == nil || violation.Rule != 6 {
		t.Fatalf("expected rule 6 violation, got %+v", violation)
	}
}

func TestValidateRule7RedundantEdgeAndFix(t *testing.T) {
	v, st, _ := newTestValidator(t, TypeHierarchy{})
	mustSave(t, st, &types.Issue{ID: "c", Title: "c", State: types.StateBacklog, Priority: types.PriorityNormal})
	mustSave(t, st, &types.Issue{ID: "b", Title: "b", State: types.StateBacklog, Priority: types.PriorityNormal, Dependencies: []string{"c"}})
	mustSave(t, st, &types.Issue{ID: "a", Title: "a", State: types.StateBacklog, Priority: types.PriorityNormal, Dependencies: []string{"b", "c"}})

	violation, err := v.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if violation == nil || violation.Rule != 7 {
		t.Fatalf("expected rule 7 violation, got %+v", violation)
	}

	fixed, err := v.Fix()
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if len(fixed) == 0 {
		t.Fatalf("expected at least one violation fixed")
	}

	clean, err := v.Validate()
	if err != nil {
		t.Fatalf("validate after fix: %v", err)
	}
	if clean != nil {
		t.Fatalf("expected clean validation after fix, got %+v", clean)
	}

	a, err := st.LoadFull("a")
	if err != nil {
		t.Fatalf("load a: %v", err)
	}
	if len(a.Dependencies) != 1 || a.Dependencies[0] != "b" {
		t.Fatalf("expected a's redundant dependency on c removed, got %+v", a.Dependencies)
	}
}

func TestFixIsIdempotent(t *testing.T) {
	v, st, _ := newTestValidator(t, TypeHierarchy{})
	mustSave(t, st, &types.Issue{ID: "c", Title: "c", State: types.StateBacklog, Priority: types.PriorityNormal})
	mustSave(t, st, &types.Issue{ID: "b", Title: "b", State: types.StateBacklog, Priority: types.PriorityNormal, Dependencies: []string{"c"}})
	mustSave(t, st, &types.Issue{ID: "a", Title: "a", State: types.StateBacklog, Priority: types.PriorityNormal, Dependencies: []string{"b", "c"}})

	if _, err := v.Fix(); err != nil {
		t.Fatalf("first fix: %v", err)
	}
	secondFixed, err := v.Fix()
	if err != nil {
		t.Fatalf("second fix: %v", err)
	}
	if len(secondFixed) != 0 {
		t.Fatalf("expected second fix to be a no-op, got %+v", secondFixed)
	}
}
