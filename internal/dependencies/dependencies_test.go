package dependencies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/xcprobe/internal/packplan"
)

type fakeIndex map[string]string

func (f fakeIndex) Lookup(host string) (string, bool) {
	id, ok := f[host]
	return id, ok
}

func TestScanTextFindsConnectionURI(t *testing.T) {
	cands := ScanText("app-0", "DATABASE_URL=postgres://[REDACTED]@db:5432/app", "evidence/0001_cat.txt")
	require.Len(t, cands, 1)
	assert.Equal(t, "postgres", cands[0].Scheme)
	assert.Equal(t, "db", cands[0].Host)
	assert.Equal(t, 5432, cands[0].Port)
	assert.Equal(t, packplan.DepDatabase, cands[0].DepType)
	assert.Equal(t, ConfidenceURLInConfig, cands[0].Confidence)
}

func TestScanEnvNamesHeuristic(t *testing.T) {
	cands := ScanEnvNames("app-0", []string{"DATABASE_URL", "LOG_LEVEL", "REDIS_HOST"}, "evidence/0002_env.txt")
	require.Len(t, cands, 2)
	assert.Equal(t, ConfidenceEnvNameOnly, cands[0].Confidence)
}

func TestResolveInternalEdge(t *testing.T) {
	cands := ScanText("app-0", "postgres://db-cluster:5432/app", "ev1")
	idx := fakeIndex{"db-cluster": "app-1"}
	edges, external := Resolve(cands, idx)
	require.Len(t, edges, 1)
	assert.Equal(t, "app-0", edges[0].From)
	assert.Equal(t, "app-1", edges[0].To)
	assert.Empty(t, external)
}

func TestResolveSynthesizesExternalCluster(t *testing.T) {
	cands := ScanText("app-0", "redis://cache.example.com:6379/0", "ev1")
	idx := fakeIndex{}
	edges, external := Resolve(cands, idx)
	require.Len(t, edges, 1)
	require.Len(t, external, 1)
	assert.Equal(t, edges[0].To, external[0].ID)
	assert.Equal(t, packplan.AppTypeCache, external[0].AppType)
}

func TestResolveCollapsesDuplicateExternalHosts(t *testing.T) {
	cands := append(
		ScanText("app-0", "redis://cache.example.com:6379/0", "ev1"),
		ScanText("app-1", "redis://cache.example.com:6379/1", "ev2")...,
	)
	idx := fakeIndex{}
	edges, external := Resolve(cands, idx)
	require.Len(t, edges, 2)
	require.Len(t, external, 1)
	assert.Equal(t, edges[0].To, edges[1].To)
}

func TestDecisionsGroupedByCluster(t *testing.T) {
	cands := ScanText("app-0", "postgres://db:5432/app", "ev1")
	decisions := Decisions(cands)
	require.Len(t, decisions["app-0"], 1)
	assert.True(t, decisions["app-0"][0].HasEvidence)
}
