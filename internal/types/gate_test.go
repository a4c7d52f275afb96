package types

import "testing"

func TestGateDefinitionValidateRequiresKey(t *testing.T) {
	g := &GateDefinition{Stage: StagePrecheck, Mode: ModeManual}
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestGateDefinitionValidateRejectsUnknownStage(t *testing.T) {
	g := &GateDefinition{Key: "tests", Stage: "mid", Mode: ModeManual}
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestGateDefinitionValidateAutoRequiresChecker(t *testing.T) {
	g := &GateDefinition{Key: "tests", Stage: StagePrecheck, Mode: ModeAuto}
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for auto gate without checker")
	}
	g.Checker = &Checker{Command: "go test ./..."}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected auto gate with checker to validate, got %v", err)
	}
}

func TestGateDefinitionValidateManualRejectsChecker(t *testing.T) {
	g := &GateDefinition{Key: "review", Stage: StagePostcheck, Mode: ModeManual, Checker: &Checker{Command: "true"}}
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for manual gate with checker")
	}
}

func TestGateDefinitionValidateRejectsUnknownMode(t *testing.T) {
	g := &GateDefinition{Key: "tests", Stage: StagePrecheck, Mode: "sometimes"}
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
