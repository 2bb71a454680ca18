// Package dag builds the dependency DAG over clusters and computes
// per-cluster confidence, per spec.md §4.8.
package dag

import (
	"sort"

	"github.com/rcourtman/xcprobe/internal/packplan"
)

// Collapse unions parallel edges between the same (from, to) pair,
// regardless of dep_type, combining their evidence_refs and keeping the
// lexicographically smallest dep_type as canonical — a deterministic
// resolution for spec.md §4.8's "unioning dep_types" against the single
// dep_type field in the Data Model's DependencyEdge shape (DESIGN.md open
// question).
func Collapse(edges []packplan.DependencyEdge) []packplan.DependencyEdge {
	type key struct{ from, to string }
	byPair := make(map[key]*packplan.DependencyEdge)
	var order []key
	for _, e := range edges {
		k := key{e.From, e.To}
		existing, ok := byPair[k]
		if !ok {
			clone := e
			clone.EvidenceRefs = append([]string(nil), e.EvidenceRefs...)
			byPair[k] = &clone
			order = append(order, k)
			continue
		}
		if e.DepType < existing.DepType {
			existing.DepType = e.DepType
		}
		for _, ref := range e.EvidenceRefs {
			if !contains(existing.EvidenceRefs, ref) {
				existing.EvidenceRefs = append(existing.EvidenceRefs, ref)
			}
		}
	}
	out := make([]packplan.DependencyEdge, 0, len(order))
	for _, k := range order {
		e := *byPair[k]
		sort.Strings(e.EvidenceRefs)
		out = append(out, e)
	}
	sortEdges(out)
	return out
}

func contains(hay []string, needle string) bool {
	for _, s := range hay {
		if s == needle {
			return true
		}
	}
	return false
}

func sortEdges(edges []packplan.DependencyEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].DepType < edges[j].DepType
	})
}

// BreakCycles removes edges participating in cycles until the graph is
// acyclic, always removing the highest-indexed edge in a detected cycle —
// edges ordered by (from_id, to_id, dep_type) — per spec.md §4.8. Returns
// the acyclic edge set and the removed edges, in removal order.
func BreakCycles(edges []packplan.DependencyEdge) (acyclic, removed []packplan.DependencyEdge) {
	remaining := append([]packplan.DependencyEdge(nil), edges...)
	sortEdges(remaining)

	for {
		cycle := findCycle(remaining)
		if cycle == nil {
			break
		}
		sortEdges(cycle)
		worst := cycle[len(cycle)-1]
		removed = append(removed, worst)
		remaining = removeEdge(remaining, worst)
	}
	return remaining, removed
}

func removeEdge(edges []packplan.DependencyEdge, target packplan.DependencyEdge) []packplan.DependencyEdge {
	out := make([]packplan.DependencyEdge, 0, len(edges))
	removedOnce := false
	for _, e := range edges {
		if !removedOnce && e.From == target.From && e.To == target.To && e.DepType == target.DepType {
			removedOnce = true
			continue
		}
		out = append(out, e)
	}
	return out
}

// findCycle returns the edges forming one cycle in the graph, or nil if the
// graph is acyclic, via DFS with a recursion-stack membership check.
func findCycle(edges []packplan.DependencyEdge) []packplan.DependencyEdge {
	adj := make(map[string][]packplan.DependencyEdge)
	nodes := make(map[string]bool)
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e)
		nodes[e.From] = true
		nodes[e.To] = true
	}
	sortedNodes := make([]string, 0, len(nodes))
	for n := range nodes {
		sortedNodes = append(sortedNodes, n)
	}
	sort.Strings(sortedNodes)
	for _, n := range adj {
		sortEdges(n)
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int)
	var pathEdges []packplan.DependencyEdge

	var visit func(node string) []packplan.DependencyEdge
	visit = func(node string) []packplan.DependencyEdge {
		state[node] = inStack
		for _, e := range adj[node] {
			pathEdges = append(pathEdges, e)
			if state[e.To] == inStack {
				// Found the cycle: walk back from here to where e.To first appeared.
				start := 0
				for i := len(pathEdges) - 1; i >= 0; i-- {
					if pathEdges[i].From == e.To {
						start = i
						break
					}
				}
				cycle := append([]packplan.DependencyEdge(nil), pathEdges[start:]...)
				return cycle
			}
			if state[e.To] == unvisited {
				if cycle := visit(e.To); cycle != nil {
					return cycle
				}
			}
			pathEdges = pathEdges[:len(pathEdges)-1]
		}
		state[node] = done
		return nil
	}

	for _, n := range sortedNodes {
		if state[n] == unvisited {
			pathEdges = nil
			if cycle := visit(n); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalOrder runs Kahn's algorithm over the (already acyclic) edge
// set, breaking ties by cluster id lexicographic order, producing
// startup_order (spec.md §4.8).
func TopologicalOrder(clusterIDs []string, edges []packplan.DependencyEdge) []string {
	inDegree := make(map[string]int, len(clusterIDs))
	adj := make(map[string][]string)
	for _, id := range clusterIDs {
		inDegree[id] = 0
	}
	for _, e := range edges {
		if _, ok := inDegree[e.To]; ok {
			inDegree[e.To]++
		}
		adj[e.From] = append(adj[e.From], e.To)
	}
	for from := range adj {
		sort.Strings(adj[from])
	}

	var ready []string
	for _, id := range clusterIDs {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, m := range adj[n] {
			inDegree[m]--
			if inDegree[m] == 0 {
				ready = append(ready, m)
			}
		}
	}
	return order
}

// Confidence computes a cluster's confidence from its decisions, per
// spec.md §4.8's weighted-mean formula. Returns 0.0 and ok=false if the
// cluster has zero decisions (caller should emit a "no_decisions" warning).
func Confidence(decisions []packplan.Decision) (value float64, ok bool) {
	if len(decisions) == 0 {
		return 0.0, false
	}
	var numerator, denominator float64
	for _, d := range decisions {
		numerator += d.Confidence * d.Weight
		denominator += d.Weight
	}
	if denominator == 0 {
		return 0.0, false
	}
	return numerator / denominator, true
}
