// Package types defines the core data structures of the coordination
// engine: Issue, gate definitions and run results, label namespaces,
// events, leases, and the claim log shapes. It is the Go-native analogue of
// the teacher's internal/types package (see other_examples for the
// upstream shape), cut down to exactly the fields spec.md's invariants and
// operations need, plus the handful of supplemented fields SPEC_FULL.md §3a
// calls for (CreatedAt/UpdatedAt, ContentHash, Comments).
package types

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Priority is an ordinal ranking; higher sorts first for claim_next.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns a higher number for higher priority, for sorting
// claim-candidate sets (spec.md §4.7 claim_next: "critical > high > normal
// > low").
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 0
	default:
		return -1
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// State is the issue lifecycle state (spec.md §3).
type State string

const (
	StateBacklog    State = "backlog"
	StateReady      State = "ready"
	StateInProgress State = "in_progress"
	StateGated      State = "gated"
	StateDone       State = "done"
	StateRejected   State = "rejected"
	StateArchived   State = "archived"

	// legacyOpenAlias is accepted as input and mapped inward to
	// StateBacklog (spec.md §9 "Legacy state alias `open`"); it must never
	// be emitted on output.
	legacyOpenAlias = "open"
)

// NormalizeState maps the legacy "open" alias to StateBacklog, passing
// every other value through unchanged (including invalid ones — validity is
// checked separately by Valid()).
func NormalizeState(s State) State {
	if string(s) == legacyOpenAlias {
		return StateBacklog
	}
	return s
}

func (s State) Valid() bool {
	switch s {
	case StateBacklog, StateReady, StateInProgress, StateGated, StateDone, StateRejected, StateArchived:
		return true
	}
	return false
}

// GateStatus is the per-gate outcome recorded on an issue (spec.md §3).
type GateStatus string

const (
	GateStatusPending GateStatus = "pending"
	GateStatusPassed  GateStatus = "passed"
	GateStatusFailed  GateStatus = "failed"
)

// GateState is the value side of an issue's gates_required map.
type GateState struct {
	Status    GateStatus `json:"status"`
	UpdatedBy string     `json:"updated_by,omitempty"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// labelPattern implements invariant I5.
var labelPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*:[A-Za-z0-9][A-Za-z0-9._-]*$`)

// LabelValid reports whether a label string satisfies I5.
func LabelValid(label string) bool {
	return labelPattern.MatchString(label)
}

// LabelNamespaceOf returns the portion of a label before its first colon,
// or "" if the label doesn't contain one (callers should check LabelValid
// first).
func LabelNamespaceOf(label string) string {
	for i, r := range label {
		if r == ':' {
			return label[:i]
		}
	}
	return ""
}

// Comment is a lightweight narrative entry on an issue, outside the formal
// event stream — carried because the teacher's Issue always has a comment
// thread and the Bulk/Lifecycle engines need somewhere to record
// human-readable notes that aren't state transitions (SPEC_FULL.md §3a).
type Comment struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue is the central entity of the coordination engine (spec.md §3).
type Issue struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority"`
	State       State    `json:"state"`
	Assignee    string   `json:"assignee,omitempty"`

	Dependencies []string `json:"dependencies,omitempty"`

	GatesRequired []string             `json:"gates_required,omitempty"`
	Gates         map[string]GateState `json:"gates,omitempty"`

	Context map[string]any `json:"context,omitempty"`

	DocRefs []string `json:"doc_refs,omitempty"`
	Labels  []string `json:"labels,omitempty"`

	Comments []Comment `json:"comments,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ContentHash is excluded from JSON and is not filled in on load;
	// ComputeContentHash derives the value on demand, following the teacher's ComputeContentHash
	// pattern (other_examples/*types.go.go) of hashing only substantive
	// fields in a fixed order.
	ContentHash string `json:"-"`
}

// NodeID returns i.ID, satisfying depgraph's node contract.
func (i *Issue) NodeID() string { return i.ID }

// NodeDependencies returns i.Dependencies, satisfying depgraph's node
// contract.
func (i *Issue) NodeDependencies() []string { return i.Dependencies }

// ComputeContentHash hashes the substantive, user-editable fields of the
// issue in a stable order, excluding ID and timestamps, so bulk updates can
// cheaply detect a no-op change (SPEC_FULL.md §3a). Mirrors the teacher's
// Issue.ComputeContentHash field ordering and separator convention.
func (i *Issue) ComputeContentHash() string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(i.Title)
	write(i.Description)
	write(string(i.Priority))
	write(string(i.State))
	write(i.Assignee)

	deps := append([]string(nil), i.Dependencies...)
	sort.Strings(deps)
	for _, d := range deps {
		write(d)
	}

	labels := append([]string(nil), i.Labels...)
	sort.Strings(labels)
	for _, l := range labels {
		write(l)
	}

	gateKeys := make([]string, 0, len(i.Gates))
	for k := range i.Gates {
		gateKeys = append(gateKeys, k)
	}
	sort.Strings(gateKeys)
	for _, k := range gateKeys {
		write(k)
		write(string(i.Gates[k].Status))
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}

// HasDependency reports whether id appears in i.Dependencies.
func (i *Issue) HasDependency(id string) bool {
	for _, d := range i.Dependencies {
		if d == id {
			return true
		}
	}
	return false
}

// HasLabel reports whether label is present verbatim.
func (i *Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy for safe mutation by callers (slices and
// maps, including the Context map, are copied; the values stored in Context
// are shared, matching the "open-valued" nature of that field).
func (i *Issue) Clone() *Issue {
	c := *i
	c.Dependencies = append([]string(nil), i.Dependencies...)
	c.GatesRequired = append([]string(nil), i.GatesRequired...)
	c.DocRefs = append([]string(nil), i.DocRefs...)
	c.Labels = append([]string(nil), i.Labels...)
	c.Comments = append([]Comment(nil), i.Comments...)
	if i.Gates != nil {
		c.Gates = make(map[string]GateState, len(i.Gates))
		for k, v := range i.Gates {
			c.Gates[k] = v
		}
	}
	if i.Context != nil {
		c.Context = make(map[string]any, len(i.Context))
		for k, v := range i.Context {
			c.Context[k] = v
		}
	}
	return &c
}
