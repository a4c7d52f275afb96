// Package depgraph implements the Dependency Graph component (spec.md
// §4.4): pure functions over a borrowed slice of entities, rebuilt per
// query from the Issue Store's current listing rather than held as a
// standing cyclic structure — the design note in spec.md §9 ("Dependency
// graph cycles & back-references") calls for an arena-plus-index-map shape
// instead of owned graph nodes, which is what Graph.nodes/byID below is.
package depgraph

import (
	"fmt"

	"github.com/jit-dev/jit/internal/errkind"
)

// Node is anything the graph can reason about: an ID and an ordered list
// of dependency IDs.
type Node interface {
	NodeID() string
	NodeDependencies() []string
}

// Graph is a read-only view over a slice of Nodes, indexed by ID. It holds
// no ownership over the underlying entities — it borrows them for the
// lifetime of the queries made against it, the same way the teacher's
// query helpers (internal/queries/graph.go) operate against a borrowed
// *sql.DB rather than an owned copy of the data.
type Graph struct {
	nodes []Node
	byID  map[string]Node
}

// New builds a Graph over nodes. Construction is O(V); every query below is
// then at most O(V+E), matching spec.md §4.4's cost bound for the small
// (≤ a few thousand issue) graphs this engine targets.
func New(nodes []Node) *Graph {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.NodeID()] = n
	}
	return &Graph{nodes: nodes, byID: byID}
}

func (g *Graph) deps(id string) []string {
	n, ok := g.byID[id]
	if !ok {
		return nil
	}
	return n.NodeDependencies()
}

// reachable returns the set of IDs reachable from start by following
// dependency edges (start -> dep -> dep's deps -> ...), not including start
// itself unless it's reachable via a cycle.
func (g *Graph) reachable(start string) map[string]bool {
	seen := map[string]bool{}
	var visit func(id string)
	visit = func(id string) {
		for _, d := range g.deps(id) {
			if !seen[d] {
				seen[d] = true
				visit(d)
			}
		}
	}
	visit(start)
	return seen
}

// ValidateAddEdge checks whether adding an edge from -> to (from depends on
// to) would introduce a cycle: it fails iff from is reachable from to,
// i.e. to already (transitively) depends on from.
func (g *Graph) ValidateAddEdge(from, to string) error {
	if from == to {
		return errkind.New(errkind.InvalidArgument, "issue %s cannot depend on itself", from)
	}
	if g.reachable(to)[from] || to == from {
		return errkind.New(errkind.CycleDetected, "adding %s -> %s would create a cycle (%s is already reachable from %s)", from, to, from, to)
	}
	return nil
}

// ValidateDAG performs a full cycle check over every node's edges.
func (g *Graph) ValidateDAG() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))

	var cyclePath []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		cyclePath = append(cyclePath, id)
		for _, d := range g.deps(id) {
			switch color[d] {
			case gray:
				cyclePath = append(cyclePath, d)
				return true
			case white:
				if visit(d) {
					return true
				}
			}
		}
		cyclePath = cyclePath[:len(cyclePath)-1]
		color[id] = black
		return false
	}

	for _, n := range g.nodes {
		id := n.NodeID()
		if color[id] == white {
			if visit(id) {
				return errkind.New(errkind.CycleDetected, "cycle detected: %v", cyclePath)
			}
		}
	}
	return nil
}

// Roots returns the IDs of entities with no outgoing edges (no
// dependencies) — spec.md §4.4(c).
func (g *Graph) Roots() []string {
	var roots []string
	for _, n := range g.nodes {
		if len(n.NodeDependencies()) == 0 {
			roots = append(roots, n.NodeID())
		}
	}
	return roots
}

// DirectDependents returns the IDs of entities that directly depend on id
// (spec.md §4.4(d)).
func (g *Graph) DirectDependents(id string) []string {
	var out []string
	for _, n := range g.nodes {
		for _, d := range n.NodeDependencies() {
			if d == id {
				out = append(out, n.NodeID())
				break
			}
		}
	}
	return out
}

// TransitiveDependents returns every entity that depends on id, directly or
// transitively.
func (g *Graph) TransitiveDependents(id string) []string {
	// Build a reverse-adjacency map once, then BFS from id.
	rev := make(map[string][]string, len(g.nodes))
	for _, n := range g.nodes {
		for _, d := range n.NodeDependencies() {
			rev[d] = append(rev[d], n.NodeID())
		}
	}

	seen := map[string]bool{}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range rev[cur] {
			if !seen[dep] {
				seen[dep] = true
				out = append(out, dep)
				queue = append(queue, dep)
			}
		}
	}
	return out
}

// TransitiveReduction computes the minimal set M ⊆ deps(id) whose reachable
// closure equals the reachable closure of deps(id) (spec.md §4.4(e)): for
// each direct dependency d, d is removed iff d is reachable from some other
// direct dependency. The kept dependencies are returned in their deps(id)
// order; the result is not sorted.
func (g *Graph) TransitiveReduction(id string) []string {
	direct := g.deps(id)
	redundant := make(map[string]bool, len(direct))

	for _, d := range direct {
		for _, other := range direct {
			if other == d {
				continue
			}
			if g.reachable(other)[d] {
				redundant[d] = true
				break
			}
		}
	}

	var kept []string
	for _, d := range direct {
		if !redundant[d] {
			kept = append(kept, d)
		}
	}
	return kept
}

// RedundantEdges returns the direct dependencies of id that
// TransitiveReduction would drop, each paired with the shortest alternative
// path (through another direct dependency) that already implies it —
// spec.md §4.8 item 7 ("redundant edges list the shortest alternative
// path").
func (g *Graph) RedundantEdges(id string) map[string][]string {
	direct := g.deps(id)
	out := map[string][]string{}
	for _, d := range direct {
		var best []string
		for _, other := range direct {
			if other == d {
				continue
			}
			if path := g.ShortestPath(other, d); path != nil {
				if best == nil || len(path) < len(best) {
					best = path
				}
			}
		}
		if best != nil {
			out[d] = append([]string{id}, best...)
		}
	}
	return out
}

// ShortestPath returns the shortest dependency-edge path from from to to
// (inclusive of both endpoints), or nil if to is not reachable from from —
// spec.md §4.4(f).
func (g *Graph) ShortestPath(from, to string) []string {
	if from == to {
		return []string{from}
	}
	type frame struct {
		id   string
		path []string
	}
	seen := map[string]bool{from: true}
	queue := []frame{{id: from, path: []string{from}}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.deps(cur.id) {
			if d == to {
				return append(append([]string(nil), cur.path...), d)
			}
			if !seen[d] {
				seen[d] = true
				queue = append(queue, frame{id: d, path: append(append([]string(nil), cur.path...), d)})
			}
		}
	}
	return nil
}

// Exists reports whether id is present in the graph.
func (g *Graph) Exists(id string) bool {
	_, ok := g.byID[id]
	return ok
}

// ValidateEdgesResolve checks invariant I3: every dependency ID resolves to
// an existing node.
func (g *Graph) ValidateEdgesResolve() error {
	for _, n := range g.nodes {
		for _, d := range n.NodeDependencies() {
			if !g.Exists(d) {
				return errkind.New(errkind.InvalidArgument, "issue %s depends on unknown issue %s", n.NodeID(), d)
			}
		}
	}
	return nil
}

// String is a debug helper.
func (g *Graph) String() string {
	return fmt.Sprintf("depgraph{%d nodes}", len(g.nodes))
}
