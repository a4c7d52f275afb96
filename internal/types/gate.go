package types

import "time"

// Stage is when a gate runs relative to a state transition (spec.md §3,
// GLOSSARY "Precheck / postcheck").
type Stage string

const (
	StagePrecheck  Stage = "precheck"
	StagePostcheck Stage = "postcheck"
)

// Mode determines whether a gate is toggled by a caller or decided by
// spawning a checker process.
type Mode string

const (
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
)

// Checker describes the subprocess an auto gate spawns (spec.md §4.5).
type Checker struct {
	Command        string            `json:"command"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	WorkingDir     string            `json:"working_dir,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
}

// GateDefinition is a named quality checkpoint (spec.md §3).
type GateDefinition struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Stage       Stage    `json:"stage"`
	Mode        Mode     `json:"mode"`
	Checker     *Checker `json:"checker,omitempty"`
}

// Validate enforces "auto gates must have a checker; manual gates must not"
// (spec.md §3).
func (g *GateDefinition) Validate() error {
	if g.Key == "" {
		return errRequired("gate key")
	}
	if g.Stage != StagePrecheck && g.Stage != StagePostcheck {
		return errInvalid("gate stage", string(g.Stage))
	}
	switch g.Mode {
	case ModeAuto:
		if g.Checker == nil {
			return errInvalid("gate", g.Key+": auto gate requires a checker")
		}
	case ModeManual:
		if g.Checker != nil {
			return errInvalid("gate", g.Key+": manual gate must not have a checker")
		}
	default:
		return errInvalid("gate mode", string(g.Mode))
	}
	return nil
}

// RunStatus is the outcome of executing a gate's checker (spec.md §3).
type RunStatus string

const (
	RunPassed  RunStatus = "passed"
	RunFailed  RunStatus = "failed"
	RunError   RunStatus = "error"
	RunTimeout RunStatus = "timeout"
)

// GateRunResult is the persisted record of one checker execution (spec.md
// §3, §4.5).
type GateRunResult struct {
	RunID      string    `json:"run_id"`
	Key        string    `json:"key"`
	IssueID    string    `json:"issue_id"`
	Stage      Stage     `json:"stage"`
	Status     RunStatus `json:"status"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Stdout     string    `json:"stdout"`
	Stderr     string    `json:"stderr"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	By         string    `json:"by,omitempty"`
}

// LabelNamespace governs a family of labels (spec.md §3).
type LabelNamespace struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Unique      bool   `json:"unique"`
	Strategic   bool   `json:"strategic"`
}

func errRequired(field string) error {
	return fieldError{field: field, reason: "required"}
}

func errInvalid(field, value string) error {
	return fieldError{field: field, value: value, reason: "invalid"}
}

type fieldError struct {
	field  string
	value  string
	reason string
}

func (e fieldError) Error() string {
	if e.value == "" {
		return e.field + ": " + e.reason
	}
	return e.field + " " + e.value + ": " + e.reason
}
