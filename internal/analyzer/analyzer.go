// Package analyzer wires the bundle codec, fact derivation, scorer,
// clusterer, dependency detector, and DAG builder into the single
// offline entry point described in spec.md §6: given a sealed bundle,
// produce a deterministic pack plan.
package analyzer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rcourtman/xcprobe/internal/bundle"
	"github.com/rcourtman/xcprobe/internal/clustering"
	"github.com/rcourtman/xcprobe/internal/dag"
	"github.com/rcourtman/xcprobe/internal/dependencies"
	"github.com/rcourtman/xcprobe/internal/factmodel"
	"github.com/rcourtman/xcprobe/internal/packplan"
	"github.com/rcourtman/xcprobe/internal/redaction"
	"github.com/rcourtman/xcprobe/internal/scoring"
	"github.com/rcourtman/xcprobe/internal/xcerror"
)

// Options configures one analysis run (spec.md §6).
type Options struct {
	ClusterPrefix  string  // default "app"
	MinConfidence  float64 // default 0.7
	StrictEvidence bool    // default false; promotes EvidenceMissing to fatal
}

func (o Options) withDefaults() Options {
	if o.ClusterPrefix == "" {
		o.ClusterPrefix = "app"
	}
	if o.MinConfidence == 0 {
		o.MinConfidence = 0.7
	}
	return o
}

// Analyzer is the offline collaborator described in spec.md §6. It holds
// no state between runs: Analyze is a pure function of the bundle it reads.
type Analyzer struct{}

// New constructs an Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Analyze reads the sealed bundle at bundlePath, derives facts, scores and
// clusters the business processes it finds, resolves dependencies between
// clusters, builds the startup DAG, and writes the resulting pack plan to
// outDir/pack-plan.json.
func (a *Analyzer) Analyze(ctx context.Context, bundlePath, outDir string, opts Options) (*packplan.PackPlan, error) {
	opts = opts.withDefaults()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(bundlePath)
	if err != nil {
		return nil, xcerror.Wrap(xcerror.Unsupported, fmt.Sprintf("read bundle %s", bundlePath), err)
	}
	b, err := bundle.Read(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	plan, err := analyzeBundle(b, opts)
	if err != nil {
		return nil, err
	}
	plan.SourceBundleDigest = digestHex(raw)
	plan.GeneratedAt = time.Now().UTC()

	if err := checkForRedactionLeaks(plan); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, xcerror.Wrap(xcerror.Unsupported, fmt.Sprintf("create output directory %s", outDir), err)
	}
	if err := packplan.Write(filepath.Join(outDir, packplan.FileName), plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func analyzeBundle(b *bundle.Bundle, opts Options) (*packplan.PackPlan, error) {
	portsByPID := buildPortsByPID(b.Manifest.Ports)
	serviceByName := buildServiceByName(b.Manifest.Services)
	mainPIDByService := buildMainPIDByService(b.Manifest.Services)
	correlation := factmodel.Correlate(mainPIDByService)

	serviceByMainPID := make(map[int]string, len(correlation.PrimaryService))
	for pid, name := range correlation.PrimaryService {
		serviceByMainPID[pid] = name
	}

	scoreDecisions := make(map[int][]packplan.Decision)
	var facts []clustering.ProcessFact
	for _, p := range b.Manifest.Processes {
		serviceName := serviceByMainPID[p.PID]
		score := scoring.Score(scoring.Input{
			Process:          p,
			IsPortBound:      portsByPID[p.PID],
			IsServiceMainPID: serviceName != "",
			EvidenceRef:      p.EvidenceRef,
		})
		if !score.IsBusiness {
			continue
		}
		scoreDecisions[p.PID] = score.Decisions
		facts = append(facts, buildProcessFact(p, serviceName, serviceByName, b.Manifest))
	}

	for pid, services := range conflictsByPID(correlation) {
		for _, svc := range services {
			scoreDecisions[pid] = append(scoreDecisions[pid], packplan.NewDecision(
				fmt.Sprintf("services_sharing_pid: also claimed by %q", svc), 0.5, nil))
		}
	}

	clusters := clustering.Cluster(facts, clustering.Options{Prefix: opts.ClusterPrefix})
	pidToCluster := make(map[int]string)
	for _, c := range clusters {
		for _, pid := range c.ProcessPIDs {
			pidToCluster[pid] = c.ID
		}
	}

	clusterByID := make(map[string]*packplan.Cluster, len(clusters))
	for i := range clusters {
		clusterByID[clusters[i].ID] = &clusters[i]
	}
	for pid, decisions := range scoreDecisions {
		id, ok := pidToCluster[pid]
		if !ok {
			continue
		}
		clusterByID[id].Decisions = append(clusterByID[id].Decisions, decisions...)
	}

	idx := newClusterIndex(clusters)
	candidates := collectDependencyCandidates(b, clusters)
	edges, externalClusters := dependencies.Resolve(candidates, idx)
	depDecisions := dependencies.Decisions(candidates)
	for clusterID, decisions := range depDecisions {
		if c, ok := clusterByID[clusterID]; ok {
			c.Decisions = append(c.Decisions, decisions...)
		}
	}

	externalClusters, edges = renumberExternalClusters(opts.ClusterPrefix, len(clusters), externalClusters, edges)
	clusters = append(clusters, externalClusters...)
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })
	for i := range clusters {
		sort.Slice(clusters[i].Decisions, func(a, b int) bool {
			return clusters[i].Decisions[a].Decision < clusters[i].Decisions[b].Decision
		})
	}

	edges = dag.Collapse(edges)
	acyclic, removedEdges := dag.BreakCycles(edges)

	clusterIDs := make([]string, len(clusters))
	for i, c := range clusters {
		clusterIDs[i] = c.ID
	}
	startupOrder := dag.TopologicalOrder(clusterIDs, acyclic)

	for i := range clusters {
		confidence, ok := dag.Confidence(clusters[i].Decisions)
		if !ok {
			clusters[i].Confidence = 0.0
			clusters[i].Warnings = append(clusters[i].Warnings, "no_decisions")
			continue
		}
		clusters[i].Confidence = confidence
		if confidence < opts.MinConfidence {
			clusters[i].Warnings = append(clusters[i].Warnings, "below_min_confidence")
		}
	}

	evidenceMissingWarnings, err := checkEvidenceRefs(b, clusters, opts.StrictEvidence)
	if err != nil {
		return nil, err
	}
	for clusterID, warning := range evidenceMissingWarnings {
		if c, ok := clusterByID[clusterID]; ok {
			c.Warnings = append(c.Warnings, warning)
		}
	}

	plan := &packplan.PackPlan{
		Version:           packplan.Version,
		Clusters:          clusters,
		Edges:             acyclic,
		StartupOrder:      startupOrder,
		Thresholds:        packplan.Thresholds{BusinessScore: scoring.BusinessThreshold, MinConfidence: opts.MinConfidence},
		RemovedCycleEdges: removedEdges,
	}
	return plan, nil
}

func digestHex(b []byte) string {
	sum := sha256.Sum256(b)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func buildPortsByPID(ports []bundle.PortBinding) map[int]bool {
	out := make(map[int]bool, len(ports))
	for _, p := range ports {
		if p.PID != nil {
			out[*p.PID] = true
		}
	}
	return out
}

func buildServiceByName(services []bundle.Service) map[string]bundle.Service {
	out := make(map[string]bundle.Service, len(services))
	for _, s := range services {
		out[s.Name] = s
	}
	return out
}

func buildMainPIDByService(services []bundle.Service) map[string]int {
	out := make(map[string]int)
	for _, s := range services {
		if s.MainPID != nil {
			out[s.Name] = *s.MainPID
		}
	}
	return out
}

func conflictsByPID(c factmodel.Correlation) map[int][]string {
	out := make(map[int][]string, len(c.Conflicts))
	for _, conflict := range c.Conflicts {
		out[conflict.PID] = conflict.Services
	}
	return out
}

func buildProcessFact(p bundle.Process, serviceName string, serviceByName map[string]bundle.Service, m bundle.Manifest) clustering.ProcessFact {
	f := clustering.ProcessFact{
		PID:         p.PID,
		PPID:        p.PPID,
		Cmdline:     p.Cmdline,
		ServiceName: serviceName,
		EnvNames:    p.EnvNames,
	}
	if p.EvidenceRef != "" {
		f.EvidenceRefs = append(f.EvidenceRefs, p.EvidenceRef)
	}
	for _, port := range m.Ports {
		if port.PID != nil && *port.PID == p.PID {
			f.Ports = append(f.Ports, port.Port)
		}
	}
	if svc, ok := serviceByName[serviceName]; ok {
		f.WorkingDirectory = svc.WorkingDirectory
		if len(svc.EnvironmentFilePaths) > 0 {
			f.EnvironmentFilePath = svc.EnvironmentFilePaths[0]
		}
		f.ServiceRef = svc.EvidenceRef
		for _, snippet := range m.ConfigSnippets {
			if svc.WorkingDirectory != "" && strings.HasPrefix(snippet.OriginalPath, svc.WorkingDirectory) {
				f.ConfigRefs = append(f.ConfigRefs, snippet.AttachmentRef)
			}
		}
	}
	for _, task := range m.ScheduledTasks {
		if task.Unit == serviceName || (serviceName == "" && strings.Contains(task.Command, factmodel.Basename(p.Cmdline))) {
			f.HasScheduledTask = true
		}
	}
	return f
}

// renumberExternalClusters assigns external clusters ids continuing the
// same "<prefix>-<n>" dense sequence clustering.Cluster already used for
// the process-derived clusters, instead of leaving them in their own
// "external-N" namespace, per spec.md §3 invariant 3 and §8 testable
// property 6. existingCount is the number of already-numbered clusters;
// external is renumbered in its existing deterministic order and edges'
// From/To fields are rewritten to match.
func renumberExternalClusters(prefix string, existingCount int, external []packplan.Cluster, edges []packplan.DependencyEdge) ([]packplan.Cluster, []packplan.DependencyEdge) {
	if len(external) == 0 {
		return external, edges
	}
	rename := make(map[string]string, len(external))
	renamed := make([]packplan.Cluster, len(external))
	for i, c := range external {
		newID := fmt.Sprintf("%s-%d", prefix, existingCount+i)
		rename[c.ID] = newID
		c.ID = newID
		renamed[i] = c
	}
	for i := range edges {
		if newID, ok := rename[edges[i].From]; ok {
			edges[i].From = newID
		}
		if newID, ok := rename[edges[i].To]; ok {
			edges[i].To = newID
		}
	}
	return renamed, edges
}

// clusterIndex resolves a dependency's host string to the cluster that
// exposes a matching name, for dependencies.Resolve.
type clusterIndex map[string]string

func newClusterIndex(clusters []packplan.Cluster) clusterIndex {
	idx := make(clusterIndex, len(clusters))
	for _, c := range clusters {
		idx[strings.ToLower(c.Name)] = c.ID
		idx[strings.ToLower(c.ID)] = c.ID
	}
	return idx
}

func (idx clusterIndex) Lookup(host string) (string, bool) {
	id, ok := idx[strings.ToLower(host)]
	return id, ok
}

func collectDependencyCandidates(b *bundle.Bundle, clusters []packplan.Cluster) []dependencies.Candidate {
	configRefToCluster := make(map[string]string)
	for _, c := range clusters {
		for _, ref := range c.ConfigRefs {
			configRefToCluster[ref] = c.ID
		}
	}

	attachmentByRef := make(map[string][]byte, len(b.Attachments))
	for _, a := range b.Attachments {
		attachmentByRef[a.Ref] = a.Data
	}

	var candidates []dependencies.Candidate
	for _, snippet := range b.Manifest.ConfigSnippets {
		clusterID, ok := configRefToCluster[snippet.AttachmentRef]
		if !ok {
			continue
		}
		data, ok := attachmentByRef[snippet.AttachmentRef]
		if !ok {
			continue
		}
		candidates = append(candidates, dependencies.ScanText(clusterID, string(data), snippet.AttachmentRef)...)
	}

	for _, c := range clusters {
		if len(c.EnvNames) == 0 {
			continue
		}
		evidenceRef := ""
		if len(c.ServiceRefs) > 0 {
			evidenceRef = c.ServiceRefs[0]
		}
		candidates = append(candidates, dependencies.ScanEnvNames(c.ID, c.EnvNames, evidenceRef)...)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FromClusterID != candidates[j].FromClusterID {
			return candidates[i].FromClusterID < candidates[j].FromClusterID
		}
		return candidates[i].DetectedFrom < candidates[j].DetectedFrom
	})
	return candidates
}

func checkEvidenceRefs(b *bundle.Bundle, clusters []packplan.Cluster, strict bool) (map[string]string, error) {
	known := make(map[string]bool, len(b.Evidence)+len(b.Attachments))
	for _, a := range b.Evidence {
		known[a.Ref] = true
	}
	for _, a := range b.Attachments {
		known[a.Ref] = true
	}

	warnings := make(map[string]string)
	for _, c := range clusters {
		for _, d := range c.Decisions {
			for _, ref := range d.EvidenceRefs {
				if known[ref] {
					continue
				}
				if strict {
					return nil, xcerror.New(xcerror.EvidenceMissing, fmt.Sprintf("decision %q references missing evidence %q", d.Decision, ref)).
						WithCluster(c.ID).WithEvidenceRef(ref)
				}
				warnings[c.ID] = "evidence_missing"
			}
		}
	}
	return warnings, nil
}

// checkForRedactionLeaks re-scans every human-readable string in the plan
// with the redaction engine before it is written, refusing to emit the
// plan if anything would still be redacted (spec.md §3 invariant 5).
func checkForRedactionLeaks(plan *packplan.PackPlan) error {
	check := func(s string) error {
		if s == "" {
			return nil
		}
		if redaction.WouldRedact(s, redaction.Options{}) {
			return xcerror.New(xcerror.RedactionLeak, fmt.Sprintf("pack plan string would be redacted: %q", s))
		}
		return nil
	}
	for _, c := range plan.Clusters {
		if err := check(c.Name); err != nil {
			return err
		}
		for _, d := range c.Decisions {
			if err := check(d.Decision); err != nil {
				return err
			}
		}
	}
	return nil
}
