// Package dockerrender implements the mechanical Docker-artifact
// generation SPEC_FULL.md §4.11 adds on top of spec.md's analyzer: one
// Dockerfile, entrypoint.sh, and confidence.json per cluster directory,
// plus one root docker-compose.yaml. It reads only the already-computed
// pack plan (and the manifest it was derived from, to resolve service and
// port details) and contains no scoring, clustering, or dependency logic
// of its own.
package dockerrender

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rcourtman/xcprobe/internal/bundle"
	"github.com/rcourtman/xcprobe/internal/packplan"
	"github.com/rcourtman/xcprobe/internal/xcerror"
)

// Render writes one subdirectory per cluster (Dockerfile, entrypoint.sh,
// confidence.json) under outDir, plus a root docker-compose.yaml, grounded
// on _examples/original_source/crates/analyzer/src/docker.rs's four
// generator functions.
func Render(plan *packplan.PackPlan, manifest *bundle.Manifest, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return xcerror.Wrap(xcerror.Unsupported, "create output directory "+outDir, err)
	}

	for _, cluster := range plan.Clusters {
		services := resolveServices(manifest, cluster.ServiceRefs)
		ports := resolvePorts(manifest, cluster.PortRefs)

		dir := filepath.Join(outDir, cluster.ID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return xcerror.Wrap(xcerror.Unsupported, "create cluster directory "+dir, err).WithCluster(cluster.ID)
		}

		dockerfile := generateDockerfile(cluster, services, ports)
		if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte(dockerfile), 0o644); err != nil {
			return xcerror.Wrap(xcerror.Unsupported, "write Dockerfile", err).WithCluster(cluster.ID)
		}

		entrypoint := generateEntrypoint(cluster, plan)
		if err := os.WriteFile(filepath.Join(dir, "entrypoint.sh"), []byte(entrypoint), 0o755); err != nil {
			return xcerror.Wrap(xcerror.Unsupported, "write entrypoint.sh", err).WithCluster(cluster.ID)
		}

		confidenceJSON, err := bundle.MarshalDeterministic(confidenceDoc{
			Confidence: cluster.Confidence,
			Warnings:   cluster.Warnings,
			Decisions:  cluster.Decisions,
		})
		if err != nil {
			return xcerror.Wrap(xcerror.BundleSchema, "marshal confidence.json", err).WithCluster(cluster.ID)
		}
		if err := os.WriteFile(filepath.Join(dir, "confidence.json"), append(confidenceJSON, '\n'), 0o644); err != nil {
			return xcerror.Wrap(xcerror.Unsupported, "write confidence.json", err).WithCluster(cluster.ID)
		}
	}

	portsByCluster := make(map[string][]bundle.PortBinding, len(plan.Clusters))
	for _, cluster := range plan.Clusters {
		portsByCluster[cluster.ID] = resolvePorts(manifest, cluster.PortRefs)
	}
	compose := generateCompose(plan, portsByCluster)
	if err := os.WriteFile(filepath.Join(outDir, "docker-compose.yaml"), []byte(compose), 0o644); err != nil {
		return xcerror.Wrap(xcerror.Unsupported, "write docker-compose.yaml", err)
	}
	return nil
}

// confidenceDoc is the shape written to each cluster's confidence.json,
// carrying the scoring/clustering decision trail spec.md §3 attaches to a
// Cluster so a reviewer can see why a cluster was classified the way it
// was without re-running the analyzer.
type confidenceDoc struct {
	Confidence float64             `json:"confidence"`
	Warnings   []string            `json:"warnings,omitempty"`
	Decisions  []packplan.Decision `json:"decisions"`
}

func resolveServices(manifest *bundle.Manifest, refs []string) []bundle.Service {
	if manifest == nil {
		return nil
	}
	want := make(map[string]bool, len(refs))
	for _, r := range refs {
		want[r] = true
	}
	var out []bundle.Service
	for _, svc := range manifest.Services {
		if want[svc.Name] {
			out = append(out, svc)
		}
	}
	return out
}

func resolvePorts(manifest *bundle.Manifest, refs []int) []bundle.PortBinding {
	if manifest == nil {
		return nil
	}
	var out []bundle.PortBinding
	for _, idx := range refs {
		if idx >= 0 && idx < len(manifest.Ports) {
			out = append(out, manifest.Ports[idx])
		}
	}
	return out
}

func baseImage(cluster packplan.Cluster, services []bundle.Service) string {
	switch cluster.AppType {
	case packplan.AppTypeAPI, packplan.AppTypeWeb:
		for _, s := range services {
			switch {
			case strings.Contains(s.ExecStart, "node") || strings.Contains(s.ExecStart, "npm"):
				return "node:20-alpine"
			case strings.Contains(s.ExecStart, "python"):
				return "python:3.11-slim"
			case strings.Contains(s.ExecStart, "java"):
				return "eclipse-temurin:17-jre-alpine"
			case strings.Contains(s.ExecStart, "dotnet"):
				return "mcr.microsoft.com/dotnet/aspnet:8.0"
			}
		}
		return "debian:bookworm-slim"
	case packplan.AppTypeOther:
		return "debian:bookworm-slim"
	default:
		return "debian:bookworm-slim"
	}
}

func generateDockerfile(cluster packplan.Cluster, services []bundle.Service, ports []bundle.PortBinding) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Auto-generated Dockerfile for %s\n", cluster.Name)
	fmt.Fprintf(&b, "# Confidence: %.2f\n", cluster.Confidence)
	b.WriteString("#\n")
	b.WriteString("# Review and adjust before production use.\n")
	b.WriteString("# This is a lift-and-shift migration starting point.\n\n")

	fmt.Fprintf(&b, "FROM %s\n\n", baseImage(cluster, services))

	b.WriteString("LABEL maintainer=\"xcprobe-generated\"\n")
	fmt.Fprintf(&b, "LABEL app.type=\"%s\"\n\n", cluster.AppType)

	workdir := "/app"
	if len(services) > 0 && services[0].WorkingDirectory != "" {
		workdir = services[0].WorkingDirectory
	}
	fmt.Fprintf(&b, "WORKDIR %s\n\n", workdir)

	b.WriteString("# Copy entrypoint script\n")
	b.WriteString("COPY entrypoint.sh /entrypoint.sh\n")
	b.WriteString("RUN chmod +x /entrypoint.sh\n\n")

	if len(cluster.ConfigRefs) > 0 {
		b.WriteString("# Copy configuration templates\n")
		b.WriteString("COPY templates/ /templates/\n\n")
	}

	b.WriteString("# Copy application files (adjust path as needed)\n")
	b.WriteString("# COPY pack/ /app/\n\n")

	if len(services) > 0 && services[0].User != "" && services[0].User != "root" {
		b.WriteString("# Create application user\n")
		fmt.Fprintf(&b, "RUN adduser --disabled-password --gecos '' %s || true\n", services[0].User)
		fmt.Fprintf(&b, "USER %s\n\n", services[0].User)
	}

	if len(ports) > 0 {
		b.WriteString("# Expose ports\n")
		for _, p := range ports {
			fmt.Fprintf(&b, "EXPOSE %d\n", p.Port)
		}
		b.WriteString("\n")
	}

	if len(cluster.EnvNames) > 0 {
		b.WriteString("# Environment variables (set at runtime)\n")
		for _, name := range cluster.EnvNames {
			fmt.Fprintf(&b, "# ENV %s - set at runtime\n", name)
		}
		b.WriteString("\n")
	}

	if len(ports) > 0 {
		fmt.Fprintf(&b, "HEALTHCHECK --interval=10s --timeout=5s --retries=3 \\\n  CMD nc -z localhost %d || exit 1\n\n", ports[0].Port)
	}

	b.WriteString("ENTRYPOINT [\"/entrypoint.sh\"]\n")

	if len(services) > 0 && services[0].ExecStart != "" {
		parts := strings.Fields(services[0].ExecStart)
		if len(parts) > 0 {
			quoted := make([]string, len(parts))
			for i, p := range parts {
				quoted[i] = fmt.Sprintf("%q", p)
			}
			fmt.Fprintf(&b, "CMD [%s]\n", strings.Join(quoted, ", "))
		}
	}

	return b.String()
}

func generateEntrypoint(cluster packplan.Cluster, plan *packplan.PackPlan) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("set -e\n\n")
	fmt.Fprintf(&b, "# Auto-generated entrypoint for %s\n\n", cluster.Name)

	deps := dependsOn(cluster, plan)
	if len(deps) > 0 {
		b.WriteString("# Wait for dependencies\n")
		b.WriteString("wait_for_port() {\n")
		b.WriteString("  local host=\"$1\"\n")
		b.WriteString("  local port=\"$2\"\n")
		b.WriteString("  local retries=\"${3:-30}\"\n")
		b.WriteString("  local wait=\"${4:-2}\"\n\n")
		b.WriteString("  echo \"Waiting for $host:$port...\"\n")
		b.WriteString("  for i in $(seq 1 $retries); do\n")
		b.WriteString("    if nc -z \"$host\" \"$port\" 2>/dev/null; then\n")
		b.WriteString("      echo \"$host:$port is available\"\n")
		b.WriteString("      return 0\n")
		b.WriteString("    fi\n")
		b.WriteString("    sleep $wait\n")
		b.WriteString("  done\n")
		b.WriteString("  echo \"Timeout waiting for $host:$port\"\n")
		b.WriteString("  return 1\n")
		b.WriteString("}\n\n")
		b.WriteString("# Example dependency waits (configure as needed):\n")
		for _, dep := range deps {
			fmt.Fprintf(&b, "# wait_for_port %s <port>\n", dep)
		}
		b.WriteString("\n")
	}

	b.WriteString("# Execute the main command\n")
	b.WriteString("exec \"$@\"\n")
	return b.String()
}

func dependsOn(cluster packplan.Cluster, plan *packplan.PackPlan) []string {
	var deps []string
	for _, e := range plan.Edges {
		if e.From == cluster.ID {
			deps = append(deps, e.To)
		}
	}
	sort.Strings(deps)
	return deps
}

func generateCompose(plan *packplan.PackPlan, portsByCluster map[string][]bundle.PortBinding) string {
	var b strings.Builder
	b.WriteString("# Auto-generated docker-compose.yaml\n")
	b.WriteString("# Generated by xcprobe analyzer\n\n")
	b.WriteString("services:\n")

	for _, cluster := range plan.Clusters {
		fmt.Fprintf(&b, "  %s:\n", cluster.ID)
		b.WriteString("    build:\n")
		fmt.Fprintf(&b, "      context: ./%s\n", cluster.ID)
		b.WriteString("      dockerfile: Dockerfile\n")

		ports := portsByCluster[cluster.ID]
		if len(ports) > 0 {
			b.WriteString("    ports:\n")
			for _, p := range ports {
				fmt.Fprintf(&b, "      - \"%d:%d\"\n", p.Port, p.Port)
			}
		}

		if len(cluster.EnvNames) > 0 {
			b.WriteString("    environment:\n")
			for _, name := range cluster.EnvNames {
				fmt.Fprintf(&b, "      %s: \"${%s:-}\"\n", name, name)
			}
		}

		deps := dependsOn(cluster, plan)
		if len(deps) > 0 {
			b.WriteString("    depends_on:\n")
			for _, dep := range deps {
				fmt.Fprintf(&b, "      %s:\n", dep)
				b.WriteString("        condition: service_healthy\n")
			}
		}

		if len(ports) > 0 {
			b.WriteString("    healthcheck:\n")
			fmt.Fprintf(&b, "      test: [\"CMD\", \"nc\", \"-z\", \"localhost\", \"%d\"]\n", ports[0].Port)
			b.WriteString("      interval: 10s\n")
			b.WriteString("      timeout: 5s\n")
			b.WriteString("      retries: 3\n")
		}

		b.WriteString("\n")
	}

	return b.String()
}
