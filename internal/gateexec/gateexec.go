// Package gateexec implements the Gate Executor (spec.md §4.5): it spawns
// a gate's configured checker as a subprocess, enforces its timeout, and
// captures stdout/stderr/exit-code into a GateRunResult. Grounded on the
// teacher's daemon process-spawning idiom (os/exec with CommandContext for
// timeout-bounded children), generalized from the teacher's MCP/tool
// subprocess wrapper to checker processes keyed by gate + issue + stage.
package gateexec

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/idgen"
	"github.com/jit-dev/jit/internal/types"
)

var osEnviron = os.Environ

// maxCapturedBytes bounds stdout/stderr capture per run so a runaway
// checker can't exhaust memory.
const maxCapturedBytes = 1 << 20 // 1 MiB

// DefaultTimeout applies when a checker declares timeout_seconds <= 0.
const DefaultTimeout = 60 * time.Second

// Executor spawns checker subprocesses.
type Executor struct {
	// RepoRoot is the directory a checker's working_dir is resolved
	// against when it is relative (spec.md §4.5 "resolved against the
	// repository root").
	RepoRoot string
}

// New returns an Executor rooted at repoRoot.
func New(repoRoot string) *Executor {
	return &Executor{RepoRoot: repoRoot}
}

// Execute spawns checker's command for issueID/key/stage, waits up to its
// configured timeout, and returns the resulting GateRunResult. Execute
// itself never returns an error for a checker failure, timeout, or
// nonzero exit — those are encoded in the result's Status; it only errors
// on inputs it cannot even attempt to run (e.g. an empty command).
func (e *Executor) Execute(checker *types.Checker, issueID, key string, stage types.Stage) (*types.GateRunResult, error) {
	if checker == nil || strings.TrimSpace(checker.Command) == "" {
		return nil, errkind.New(errkind.InvalidArgument, "gate %q has no checker command", key)
	}

	timeout := DefaultTimeout
	if checker.TimeoutSeconds > 0 {
		timeout = time.Duration(checker.TimeoutSeconds) * time.Second
	}

	workDir := e.RepoRoot
	if checker.WorkingDir != "" {
		workDir = resolveDir(e.RepoRoot, checker.WorkingDir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	args := tokenize(checker.Command)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = workDir
	cmd.Env = mergedEnv(checker.Env, issueID, key, stage)

	var stdout, stderr boundedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now().UTC()
	runErr := cmd.Run()
	finished := time.Now().UTC()

	result := &types.GateRunResult{
		RunID:      idgen.GateRun(),
		Key:        key,
		IssueID:    issueID,
		Stage:      stage,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		StartedAt:  started,
		FinishedAt: finished,
	}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.Status = types.RunTimeout
	case runErr == nil:
		code := 0
		result.ExitCode = &code
		result.Status = types.RunPassed
	default:
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			code := exitErr.ExitCode()
			result.ExitCode = &code
			result.Status = types.RunFailed
		} else {
			result.Status = types.RunError
		}
	}

	return result, nil
}

// tokenize splits a checker command by whitespace, or treats it as a
// single shell invocation if it contains shell metacharacters (spec.md
// §4.5 "tokenized by whitespace (or a shell invocation when required)").
func tokenize(command string) []string {
	if strings.ContainsAny(command, "|&;<>(){}$`\"'*?[]~") {
		return []string{"/bin/sh", "-c", command}
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return []string{command}
	}
	return fields
}

func resolveDir(repoRoot, dir string) string {
	if strings.HasPrefix(dir, "/") {
		return dir
	}
	return repoRoot + "/" + dir
}

// mergedEnv builds the checker's environment: the parent process's
// environment (so checkers resolve PATH, etc.), then the three JIT_*
// variables set unconditionally, then any declared env entry of the same
// name overriding those (spec.md §6 glossary "JIT_ISSUE_ID, JIT_GATE_KEY,
// JIT_GATE_STAGE set unconditionally; declared env entries override").
func mergedEnv(declared map[string]string, issueID, key string, stage types.Stage) []string {
	merged := map[string]string{}
	for _, kv := range osEnviron() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	merged["JIT_ISSUE_ID"] = issueID
	merged["JIT_GATE_KEY"] = key
	merged["JIT_GATE_STAGE"] = string(stage)
	for k, v := range declared {
		merged[k] = v
	}
	env := make([]string, 0, len(merged))
	for k, v := range merged {
		env = append(env, k+"="+v)
	}
	return env
}

// boundedBuffer caps how much output it retains, discarding the rest
// rather than growing without bound.
type boundedBuffer struct {
	buf bytes.Buffer
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := maxCapturedBytes - b.buf.Len()
	if remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string { return b.buf.String() }
