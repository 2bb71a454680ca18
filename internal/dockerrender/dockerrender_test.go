package dockerrender

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcourtman/xcprobe/internal/bundle"
	"github.com/rcourtman/xcprobe/internal/packplan"
)

func samplePlan() *packplan.PackPlan {
	return &packplan.PackPlan{
		Version: packplan.Version,
		Clusters: []packplan.Cluster{
			{
				ID:          "app-0",
				Name:        "myapp",
				AppType:     packplan.AppTypeWeb,
				ServiceRefs: []string{"myapp.service"},
				PortRefs:    []int{0},
				EnvNames:    []string{"DATABASE_URL"},
				Confidence:  0.92,
				Decisions:   []packplan.Decision{packplan.NewDecision("process_matched_service", 0.9, []string{"evidence/0001_ps.txt"})},
			},
			{
				ID:         "external-0",
				Name:       "postgres",
				AppType:    packplan.AppTypeDB,
				Confidence: 0.5,
			},
		},
		Edges: []packplan.DependencyEdge{
			{From: "app-0", To: "external-0", DepType: packplan.DepDatabase},
		},
		StartupOrder: []string{"external-0", "app-0"},
	}
}

func sampleManifest() *bundle.Manifest {
	return &bundle.Manifest{
		Services: []bundle.Service{
			{Name: "myapp.service", ExecStart: "/usr/bin/python3 app.py", WorkingDirectory: "/opt/myapp", User: "appuser"},
		},
		Ports: []bundle.PortBinding{
			{Protocol: bundle.ProtocolTCP, Address: "0.0.0.0", Port: 8080},
		},
	}
}

func TestRenderWritesDockerfileEntrypointAndConfidenceForEachCluster(t *testing.T) {
	dir := t.TempDir()
	plan := samplePlan()
	manifest := sampleManifest()

	err := Render(plan, manifest, dir)
	require.NoError(t, err)

	dockerfile, err := os.ReadFile(filepath.Join(dir, "app-0", "Dockerfile"))
	require.NoError(t, err)
	assert.Contains(t, string(dockerfile), "FROM python:3.11-slim")
	assert.Contains(t, string(dockerfile), "WORKDIR /opt/myapp")
	assert.Contains(t, string(dockerfile), "EXPOSE 8080")
	assert.Contains(t, string(dockerfile), "USER appuser")

	entrypoint, err := os.ReadFile(filepath.Join(dir, "app-0", "entrypoint.sh"))
	require.NoError(t, err)
	assert.Contains(t, string(entrypoint), "#!/bin/bash")
	assert.Contains(t, string(entrypoint), "wait_for_port external-0")

	confidence, err := os.ReadFile(filepath.Join(dir, "app-0", "confidence.json"))
	require.NoError(t, err)
	assert.Contains(t, string(confidence), `"confidence": 0.92`)

	_, err = os.Stat(filepath.Join(dir, "external-0", "Dockerfile"))
	require.NoError(t, err)
}

func TestRenderWritesRootComposeWithDependsOnAndPorts(t *testing.T) {
	dir := t.TempDir()
	err := Render(samplePlan(), sampleManifest(), dir)
	require.NoError(t, err)

	compose, err := os.ReadFile(filepath.Join(dir, "docker-compose.yaml"))
	require.NoError(t, err)
	content := string(compose)
	assert.Contains(t, content, "app-0:")
	assert.Contains(t, content, "external-0:")
	assert.Contains(t, content, `"8080:8080"`)
	assert.Contains(t, content, "depends_on:")
	assert.Contains(t, content, "condition: service_healthy")
}

func TestRenderDefaultsToDebianBaseImageWhenNoExecStartMatches(t *testing.T) {
	dir := t.TempDir()
	plan := &packplan.PackPlan{Clusters: []packplan.Cluster{{ID: "worker-0", Name: "batchjob", AppType: packplan.AppTypeWorker}}}

	err := Render(plan, &bundle.Manifest{}, dir)
	require.NoError(t, err)

	dockerfile, err := os.ReadFile(filepath.Join(dir, "worker-0", "Dockerfile"))
	require.NoError(t, err)
	assert.Contains(t, string(dockerfile), "FROM debian:bookworm-slim")
}
