package packplan

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() *PackPlan {
	return &PackPlan{
		Version:            Version,
		SourceBundleDigest: "sha256:deadbeef",
		GeneratedAt:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Clusters: []Cluster{
			{
				ID:          "app-0",
				Name:        "myapp",
				AppType:     AppTypeAPI,
				ProcessPIDs: []int{100},
				Confidence:  0.9,
				Decisions:   []Decision{NewDecision("framework match", 1.0, []string{"evidence/0001_ps.txt"})},
			},
		},
		Edges:        []DependencyEdge{{From: "app-0", To: "app-1", DepType: DepDatabase}},
		StartupOrder: []string{"app-1", "app-0"},
		Thresholds:   Thresholds{BusinessScore: 0.6, MinConfidence: 0.5},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	plan := samplePlan()

	require.NoError(t, Write(path, plan))
	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, plan.Clusters, got.Clusters)
	assert.Equal(t, plan.Edges, got.Edges)
	assert.Equal(t, plan.StartupOrder, got.StartupOrder)
}

func TestMarshalIsByteIdenticalAcrossCalls(t *testing.T) {
	plan := samplePlan()
	a, err := Marshal(plan)
	require.NoError(t, err)
	b, err := Marshal(plan)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteEndsWithSingleTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Write(path, samplePlan()))

	data, err := Read(path)
	require.NoError(t, err)
	require.NotNil(t, data)

	raw, err := Marshal(samplePlan())
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), raw[len(raw)-1])
	assert.NotEqual(t, byte('\n'), raw[len(raw)-2])
}
