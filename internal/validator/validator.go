// Package validator implements the Validator (spec.md §4.8): an ordered
// pipeline of checks over the full issue set, stopping at the first
// violation, plus a --fix mode that applies automatic remedies and
// re-runs. Grounded on the teacher's internal/validation package
// (sequential rule-checking over a loaded dataset), generalized from its
// SQL-backed checks to spec.md's file-backed Issue Store, Dependency
// Graph, Gate Registry, and Lease Ledger. The Levenshtein-distance type
// suggestion (rule 4) is grounded on the teacher's use of
// github.com/agnivade/levenshtein for fuzzy entity matching.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/jit-dev/jit/internal/depgraph"
	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/gateregistry"
	"github.com/jit-dev/jit/internal/leaseledger"
	"github.com/jit-dev/jit/internal/store"
	"github.com/jit-dev/jit/internal/types"
	"github.com/jit-dev/jit/internal/worktree"
)

// maxTypeSuggestionDistance bounds how far a misspelled type:* label may
// be from a known type before the Validator stops suggesting a fix
// (spec.md §4.8 rule 4: "Levenshtein distance <= 3").
const maxTypeSuggestionDistance = 3

// TypeHierarchy names the set of configured type:* label values this
// repository recognizes, e.g. {"bug", "feature", "chore"}.
type TypeHierarchy struct {
	Types []string
}

func (h TypeHierarchy) valid(t string) bool {
	for _, known := range h.Types {
		if known == t {
			return true
		}
	}
	return false
}

// Suggest returns the closest known type to t by Levenshtein distance,
// or "" if nothing is within maxTypeSuggestionDistance.
func (h TypeHierarchy) Suggest(t string) string {
	best := ""
	bestDist := maxTypeSuggestionDistance + 1
	for _, known := range h.Types {
		d := levenshtein.ComputeDistance(t, known)
		if d < bestDist {
			bestDist = d
			best = known
		}
	}
	if bestDist > maxTypeSuggestionDistance {
		return ""
	}
	return best
}

// Validator runs the ordered pipeline of spec.md §4.8 over one
// worktree's issues.
type Validator struct {
	Store         *store.Store
	Registry      *gateregistry.Registry
	Ledger        *leaseledger.Ledger
	Hierarchy     TypeHierarchy
	WorktreeRoot  string
}

// New returns a Validator over the given components.
func New(st *store.Store, registry *gateregistry.Registry, ledger *leaseledger.Ledger, hierarchy TypeHierarchy, worktreeRoot string) *Validator {
	return &Validator{Store: st, Registry: registry, Ledger: ledger, Hierarchy: hierarchy, WorktreeRoot: worktreeRoot}
}

// Violation is one failure reported by Validate (or, in --fix mode, the
// state before a remedy was applied).
type Violation struct {
	Rule       int
	IssueID    string
	Message    string
	Suggestion string
}

// Validate runs rules 1-8 in order against the full issue set, stopping
// at the first violation (spec.md §4.8 "Performs, in order, and fails at
// the first violation"). A clean run returns a nil Violation.
func (v *Validator) Validate() (*Violation, error) {
	issues, err := v.Store.List()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*types.Issue, len(issues))
	nodes := make([]depgraph.Node, len(issues))
	for i, issue := range issues {
		byID[issue.ID] = issue
		nodes[i] = issue
	}
	graph := depgraph.New(nodes)

	// Rule 1: every dependency ID resolves.
	for _, issue := range issues {
		for _, dep := range issue.Dependencies {
			if _, ok := byID[dep]; !ok {
				return &Violation{Rule: 1, IssueID: issue.ID, Message: fmt.Sprintf("dependency %s does not resolve to an existing issue", dep)}, nil
			}
		}
	}

	// Rule 2: every required gate key resolves in the registry.
	for _, issue := range issues {
		if err := v.Registry.ResolveGateKeys(issue.GatesRequired); err != nil {
			return &Violation{Rule: 2, IssueID: issue.ID, Message: err.Error()}, nil
		}
	}

	// Rule 3: labels match the regex; namespaces exist; uniqueness holds.
	for _, issue := range issues {
		if err := v.Registry.ValidateLabels(issue.Labels); err != nil {
			return &Violation{Rule: 3, IssueID: issue.ID, Message: err.Error()}, nil
		}
	}

	// Rule 4: type:* labels resolve in the configured hierarchy.
	if len(v.Hierarchy.Types) > 0 {
		for _, issue := range issues {
			for _, label := range issue.Labels {
				if types.LabelNamespaceOf(label) != "type" {
					continue
				}
				t := strings.TrimPrefix(label, "type:")
				if v.Hierarchy.valid(t) {
					continue
				}
				suggestion := v.Hierarchy.Suggest(t)
				msg := fmt.Sprintf("unknown type %q", t)
				return &Violation{Rule: 4, IssueID: issue.ID, Message: msg, Suggestion: suggestion}, nil
			}
		}
	}

	// Rule 5: every doc-ref's file exists at the referenced commit (or the
	// working tree if no commit is specified and no commits exist).
	for _, issue := range issues {
		for _, ref := range issue.DocRefs {
			if err := v.checkDocRef(ref); err != nil {
				return &Violation{Rule: 5, IssueID: issue.ID, Message: err.Error()}, nil
			}
		}
	}

	// Rule 6: the dependency graph is a DAG.
	if err := graph.ValidateDAG(); err != nil {
		return &Violation{Rule: 6, Message: err.Error()}, nil
	}

	// Rule 7: the dependency edge set equals its own transitive reduction.
	for _, issue := range issues {
		redundant := graph.RedundantEdges(issue.ID)
		if len(redundant) > 0 {
			for edge, path := range redundant {
				return &Violation{
					Rule:    7,
					IssueID: issue.ID,
					Message: fmt.Sprintf("dependency %s is redundant; already implied via %s", edge, strings.Join(path, " -> ")),
				}, nil
			}
		}
	}

	// Rule 8: the claims index is structurally valid.
	if v.Ledger != nil {
		if _, err := v.Ledger.ValidateIndex(); err != nil {
			return &Violation{Rule: 8, Message: err.Error()}, nil
		}
	}

	return nil, nil
}

// checkDocRef verifies that ref exists at HEAD, falling back to the
// working tree when the repository has no commits yet (spec.md §4.8 rule
// 5).
func (v *Validator) checkDocRef(ref string) error {
	if _, err := worktree.ReadHEADBlob(v.WorktreeRoot, ref); err == nil {
		return nil
	}
	if _, err := worktree.ListHEADDir(v.WorktreeRoot, ""); err == nil {
		return errkind.New(errkind.InvalidArgument, "doc ref %q does not exist at HEAD", ref)
	}
	if existsInWorkingTree(v.WorktreeRoot, ref) {
		return nil
	}
	return errkind.New(errkind.InvalidArgument, "doc ref %q does not exist at HEAD or in the working tree", ref)
}

func existsInWorkingTree(worktreeRoot, relPath string) bool {
	_, err := os.Stat(filepath.Join(worktreeRoot, relPath))
	return err == nil
}

// Fix runs Validate repeatedly, applying an automatic remedy for each
// violation it can resolve mechanically (type suggestions, redundant-
// edge removal), until either a clean run or an unfixable violation is
// reached (spec.md §4.8 "--fix mode applies automatic remedies ... and
// re-runs validation"). It is idempotent: a second Fix call after a
// first is a no-op.
func (v *Validator) Fix() ([]Violation, error) {
	var fixed []Violation
	for i := 0; i < maxFixIterations; i++ {
		violation, err := v.Validate()
		if err != nil {
			return fixed, err
		}
		if violation == nil {
			return fixed, nil
		}
		applied, err := v.applyFix(*violation)
		if err != nil {
			return fixed, err
		}
		if !applied {
			return fixed, errkind.New(errkind.InvalidArgument, "validation rule %d has no automatic fix: %s", violation.Rule, violation.Message)
		}
		fixed = append(fixed, *violation)
	}
	return fixed, errkind.New(errkind.InvalidArgument, "validation did not converge after repeated fixes")
}

// maxFixIterations caps Fix's loop so a pathological cycle of violations
// cannot run forever; a real repository converges in at most a few
// iterations (one per distinct violation).
const maxFixIterations = 1000

func (v *Validator) applyFix(violation Violation) (bool, error) {
	switch violation.Rule {
	case 4:
		if violation.Suggestion == "" {
			return false, nil
		}
		issue, err := v.Store.LoadFull(violation.IssueID)
		if err != nil {
			return false, err
		}
		for i, label := range issue.Labels {
			if types.LabelNamespaceOf(label) == "type" {
				issue.Labels[i] = "type:" + violation.Suggestion
			}
		}
		return true, v.Store.Save(issue)
	case 7:
		issue, err := v.Store.LoadFull(violation.IssueID)
		if err != nil {
			return false, err
		}
		issues, err := v.Store.List()
		if err != nil {
			return false, err
		}
		nodes := make([]depgraph.Node, len(issues))
		for i, is := range issues {
			nodes[i] = is
		}
		graph := depgraph.New(nodes)
		issue.Dependencies = graph.TransitiveReduction(issue.ID)
		sort.Strings(issue.Dependencies)
		return true, v.Store.Save(issue)
	default:
		return false, nil
	}
}
