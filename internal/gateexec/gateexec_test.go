package gateexec

import (
	"testing"
	"time"

	"github.com/jit-dev/jit/internal/types"
)

func TestExecutePassed(t *testing.T) {
	e := New(t.TempDir())
	result, err := e.Execute(&types.Checker{Command: "true", TimeoutSeconds: 5}, "issue-1", "tests", types.StagePrecheck)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != types.RunPassed {
		t.Fatalf("expected passed, got %s", result.Status)
	}
	if result.ExitCode == nil || *result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %+v", result.ExitCode)
	}
}

func TestExecuteFailed(t *testing.T) {
	e := New(t.TempDir())
	result, err := e.Execute(&types.Checker{Command: "false", TimeoutSeconds: 5}, "issue-1", "tests", types.StagePrecheck)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != types.RunFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
}

func TestExecuteTimeout(t *testing.T) {
	e := New(t.TempDir())
	result, err := e.Execute(&types.Checker{Command: "sleep 5", TimeoutSeconds: 1}, "issue-1", "tests", types.StagePrecheck)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != types.RunTimeout {
		t.Fatalf("expected timeout, got %s", result.Status)
	}
}

func TestExecuteRejectsEmptyCommand(t *testing.T) {
	e := New(t.TempDir())
	_, err := e.Execute(&types.Checker{Command: ""}, "issue-1", "tests", types.StagePrecheck)
	if err == nil {
		t.Fatal("expected error for empty checker command")
	}
}

func TestExecuteCapturesStdout(t *testing.T) {
	e := New(t.TempDir())
	result, err := e.Execute(&types.Checker{Command: "echo hello", TimeoutSeconds: 5}, "issue-1", "tests", types.StagePrecheck)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Stdout != "hello\n" {
		t.Fatalf("expected captured stdout 'hello\\n', got %q", result.Stdout)
	}
}

func TestExecuteSetsEnvironment(t *testing.T) {
	e := New(t.TempDir())
	result, err := e.Execute(&types.Checker{Command: "env", TimeoutSeconds: 5}, "issue-42", "tests", types.StagePrecheck)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !contains(result.Stdout, "JIT_ISSUE_ID=issue-42") {
		t.Fatalf("expected JIT_ISSUE_ID in environment, got %q", result.Stdout)
	}
	if !contains(result.Stdout, "JIT_GATE_KEY=tests") {
		t.Fatalf("expected JIT_GATE_KEY in environment, got %q", result.Stdout)
	}
	if !contains(result.Stdout, "JIT_GATE_STAGE=precheck") {
		t.Fatalf("expected JIT_GATE_STAGE in environment, got %q", result.Stdout)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

func TestExecuteTimesOutQuickly(t *testing.T) {
	start := time.Now()
	e := New(t.TempDir())
	_, err := e.Execute(&types.Checker{Command: "sleep 10", TimeoutSeconds: 1}, "i", "g", types.StagePrecheck)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("expected timeout to cut the run short, took %s", elapsed)
	}
}
