package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/xcprobe/internal/packplan"
)

func edge(from, to string, depType packplan.DependencyType, refs ...string) packplan.DependencyEdge {
	return packplan.DependencyEdge{From: from, To: to, DepType: depType, EvidenceRefs: refs}
}

func TestCollapseUnionsParallelEdges(t *testing.T) {
	edges := []packplan.DependencyEdge{
		edge("app-0", "app-1", packplan.DepCache, "ev1"),
		edge("app-0", "app-1", packplan.DepAPI, "ev2"),
	}
	out := Collapse(edges)
	require.Len(t, out, 1)
	assert.Equal(t, packplan.DepAPI, out[0].DepType) // "api" < "cache" lexicographically
	assert.Equal(t, []string{"ev1", "ev2"}, out[0].EvidenceRefs)
}

func TestCollapseLeavesDistinctPairsAlone(t *testing.T) {
	edges := []packplan.DependencyEdge{
		edge("app-0", "app-1", packplan.DepDatabase),
		edge("app-1", "app-2", packplan.DepCache),
	}
	out := Collapse(edges)
	assert.Len(t, out, 2)
}

func TestBreakCyclesRemovesHighestIndexedEdgeInCycle(t *testing.T) {
	edges := []packplan.DependencyEdge{
		edge("app-0", "app-1", packplan.DepAPI),
		edge("app-1", "app-0", packplan.DepAPI),
	}
	acyclic, removed := BreakCycles(edges)
	require.Len(t, removed, 1)
	require.Len(t, acyclic, 1)
	assert.Equal(t, edge("app-1", "app-0", packplan.DepAPI), removed[0])
	assert.Equal(t, edge("app-0", "app-1", packplan.DepAPI), acyclic[0])
}

func TestBreakCyclesHandlesThreeNodeCycle(t *testing.T) {
	edges := []packplan.DependencyEdge{
		edge("app-0", "app-1", packplan.DepAPI),
		edge("app-1", "app-2", packplan.DepAPI),
		edge("app-2", "app-0", packplan.DepAPI),
	}
	acyclic, removed := BreakCycles(edges)
	require.Len(t, removed, 1)
	assert.Len(t, acyclic, 2)
	assert.Equal(t, edge("app-2", "app-0", packplan.DepAPI), removed[0])
}

func TestBreakCyclesNoCycleLeavesEdgesUntouched(t *testing.T) {
	edges := []packplan.DependencyEdge{
		edge("app-0", "app-1", packplan.DepAPI),
		edge("app-1", "app-2", packplan.DepAPI),
	}
	acyclic, removed := BreakCycles(edges)
	assert.Empty(t, removed)
	assert.Len(t, acyclic, 2)
}

func TestTopologicalOrderBreaksTiesByClusterID(t *testing.T) {
	ids := []string{"app-2", "app-0", "app-1"}
	edges := []packplan.DependencyEdge{
		edge("app-0", "app-2", packplan.DepAPI),
	}
	order := TopologicalOrder(ids, edges)
	assert.Equal(t, []string{"app-0", "app-1", "app-2"}, order)
}

func TestTopologicalOrderRespectsDependencyDirection(t *testing.T) {
	ids := []string{"app-0", "app-1"}
	edges := []packplan.DependencyEdge{
		edge("app-1", "app-0", packplan.DepDatabase),
	}
	order := TopologicalOrder(ids, edges)
	assert.Equal(t, []string{"app-1", "app-0"}, order)
}

func TestConfidenceWeightedMean(t *testing.T) {
	decisions := []packplan.Decision{
		packplan.NewDecision("framework match", 1.0, []string{"ev1"}), // weight 1.0
		packplan.NewDecision("guess", 0.5, nil),                       // weight 0.5
	}
	value, ok := Confidence(decisions)
	require.True(t, ok)
	assert.InDelta(t, (1.0*1.0+0.5*0.5)/1.5, value, 1e-9)
}

func TestConfidenceNoDecisionsIsZeroAndNotOK(t *testing.T) {
	value, ok := Confidence(nil)
	assert.False(t, ok)
	assert.Zero(t, value)
}
