package gateregistry

import (
	"testing"

	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/types"
)

func TestPutAndGetGate(t *testing.T) {
	r := New(t.TempDir())
	def := &types.GateDefinition{Key: "tests", Title: "Tests", Stage: types.StagePostcheck, Mode: types.ModeManual}
	if err := r.PutGate(def); err != nil {
		t.Fatalf("put gate: %v", err)
	}
	got, err := r.Gate("tests")
	if err != nil {
		t.Fatalf("get gate: %v", err)
	}
	if got.Title != "Tests" {
		t.Fatalf("unexpected gate: %+v", got)
	}
}

func TestPutGateRejectsAutoWithoutChecker(t *testing.T) {
	r := New(t.TempDir())
	err := r.PutGate(&types.GateDefinition{Key: "tests", Stage: types.StagePrecheck, Mode: types.ModeAuto})
	if err == nil {
		t.Fatal("expected validation error for auto gate with no checker")
	}
}

func TestPutGateRejectsManualWithChecker(t *testing.T) {
	r := New(t.TempDir())
	err := r.PutGate(&types.GateDefinition{
		Key: "tests", Stage: types.StagePrecheck, Mode: types.ModeManual,
		Checker: &types.Checker{Command: "true"},
	})
	if err == nil {
		t.Fatal("expected validation error for manual gate with a checker")
	}
}

func TestGateNotFound(t *testing.T) {
	r := New(t.TempDir())
	if _, err := r.Gate("missing"); !errkind.Is(err, errkind.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestDeleteGate(t *testing.T) {
	r := New(t.TempDir())
	if err := r.PutGate(&types.GateDefinition{Key: "tests", Stage: types.StagePrecheck, Mode: types.ModeManual}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := r.DeleteGate("tests"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Gate("tests"); !errkind.Is(err, errkind.NotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestResolveGateKeysRejectsUnknown(t *testing.T) {
	r := New(t.TempDir())
	if err := r.PutGate(&types.GateDefinition{Key: "tests", Stage: types.StagePrecheck, Mode: types.ModeManual}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := r.ResolveGateKeys([]string{"tests"}); err != nil {
		t.Fatalf("expected known key to resolve: %v", err)
	}
	if err := r.ResolveGateKeys([]string{"tests", "missing"}); err == nil {
		t.Fatal("expected unknown key to fail resolution")
	}
}

func TestValidateLabelsEnforcesSyntaxAndNamespace(t *testing.T) {
	r := New(t.TempDir())
	if err := r.PutNamespace(&types.LabelNamespace{Name: "team"}); err != nil {
		t.Fatalf("put namespace: %v", err)
	}
	if err := r.ValidateLabels([]string{"team:infra"}); err != nil {
		t.Fatalf("expected valid label to pass: %v", err)
	}
	if err := r.ValidateLabels([]string{"BadLabel"}); err == nil {
		t.Fatal("expected syntax violation to fail")
	}
	if err := r.ValidateLabels([]string{"unknown:x"}); err == nil {
		t.Fatal("expected unknown namespace to fail")
	}
}

func TestValidateLabelsEnforcesUniqueness(t *testing.T) {
	r := New(t.TempDir())
	if err := r.PutNamespace(&types.LabelNamespace{Name: "type", Unique: true}); err != nil {
		t.Fatalf("put namespace: %v", err)
	}
	if err := r.ValidateLabels([]string{"type:bug"}); err != nil {
		t.Fatalf("expected single unique label to pass: %v", err)
	}
	if err := r.ValidateLabels([]string{"type:bug", "type:feature"}); err == nil {
		t.Fatal("expected two labels in a unique namespace to fail")
	}
}
