// Package dependencies extracts typed dependency edges between clusters
// from config text, environment variable names, and log tails, per
// spec.md §4.7.
package dependencies

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rcourtman/xcprobe/internal/packplan"
)

// Confidence weights from spec.md §4.7.
const (
	ConfidenceURLInConfig  = 0.8
	ConfidenceEnvNameOnly  = 0.5
)

// schemeDepType maps the connection-URI schemes from §4.2 to a dependency
// type, per spec.md §4.7 ("same scheme list as §4.2 connection URIs").
var schemeDepType = map[string]packplan.DependencyType{
	"postgres": packplan.DepDatabase,
	"mysql":    packplan.DepDatabase,
	"mongodb":  packplan.DepDatabase,
	"mssql":    packplan.DepDatabase,
	"redis":    packplan.DepCache,
	"amqp":     packplan.DepQueue,
}

var schemeAppType = map[packplan.DependencyType]packplan.AppType{
	packplan.DepDatabase: packplan.AppTypeDB,
	packplan.DepCache:    packplan.AppTypeCache,
	packplan.DepQueue:    packplan.AppTypeQueue,
	packplan.DepAPI:      packplan.AppTypeAPI,
}

var urlPattern = regexp.MustCompile(`(?i)(postgres|mysql|mongodb|redis|amqp|mssql)://(?:[^\s/@]*@)?([^\s:/]+)(?::(\d+))?`)

// envNameHints maps a case-insensitive substring of an env var name to a
// dependency type, used when only the variable's presence (never its
// value) is known.
var envNameHints = []struct {
	substr  string
	depType packplan.DependencyType
}{
	{"database_url", packplan.DepDatabase},
	{"postgres", packplan.DepDatabase},
	{"mysql", packplan.DepDatabase},
	{"mongo", packplan.DepDatabase},
	{"redis", packplan.DepCache},
	{"rabbitmq", packplan.DepQueue},
	{"amqp", packplan.DepQueue},
	{"queue_url", packplan.DepQueue},
}

// Candidate is one raw dependency hit before host resolution.
type Candidate struct {
	FromClusterID string
	Scheme        string // "" for env-name-only hits
	Host          string // "" if unknown (env-name-only hits)
	Port          int
	DepType       packplan.DependencyType
	Confidence    float64
	EvidenceRef   string
	DetectedFrom  string // human-readable origin, e.g. a URL or env var name, for Decision text
}

// ScanText scans redacted config or log text for typed connection URIs.
func ScanText(fromClusterID, text, evidenceRef string) []Candidate {
	var out []Candidate
	for _, m := range urlPattern.FindAllStringSubmatch(text, -1) {
		scheme := strings.ToLower(m[1])
		depType, ok := schemeDepType[scheme]
		if !ok {
			continue
		}
		port := 0
		if m[3] != "" {
			port, _ = strconv.Atoi(m[3])
		}
		out = append(out, Candidate{
			FromClusterID: fromClusterID,
			Scheme:        scheme,
			Host:          m[2],
			Port:          port,
			DepType:       depType,
			Confidence:    ConfidenceURLInConfig,
			EvidenceRef:   evidenceRef,
			DetectedFrom:  m[0],
		})
	}
	return out
}

// ScanEnvNames scans environment variable *names* (never values) for
// dependency hints, producing lower-confidence, host-unresolved candidates.
func ScanEnvNames(fromClusterID string, envNames []string, evidenceRef string) []Candidate {
	var out []Candidate
	for _, name := range envNames {
		lower := strings.ToLower(name)
		for _, hint := range envNameHints {
			if strings.Contains(lower, hint.substr) {
				out = append(out, Candidate{
					FromClusterID: fromClusterID,
					DepType:       hint.depType,
					Confidence:    ConfidenceEnvNameOnly,
					EvidenceRef:   evidenceRef,
					DetectedFrom:  name,
				})
				break
			}
		}
	}
	return out
}

// ClusterIndex resolves a host string to the cluster it refers to, if any.
type ClusterIndex interface {
	// Lookup returns the cluster id whose name or any linked service name
	// equals host, and ok=true if found.
	Lookup(host string) (clusterID string, ok bool)
}

// Resolve turns candidates into DependencyEdges, synthesizing external
// clusters for hosts that don't match an existing cluster (spec.md §4.7).
// Returns the edges and any newly synthesized external clusters, both in
// deterministic order.
func Resolve(candidates []Candidate, idx ClusterIndex) ([]packplan.DependencyEdge, []packplan.Cluster) {
	type edgeKey struct {
		from, to string
		depType  packplan.DependencyType
	}
	edges := make(map[edgeKey]*packplan.DependencyEdge)

	type externalKey struct {
		scheme string
		host   string
		port   int
	}
	externalID := make(map[externalKey]string)
	var externalClusters []packplan.Cluster
	externalSeq := 0

	resolveTo := func(c Candidate) string {
		if c.Host != "" {
			if id, ok := idx.Lookup(c.Host); ok {
				return id
			}
		}
		host := c.Host
		if host == "" {
			host = "unknown"
		}
		key := externalKey{scheme: c.Scheme, host: host, port: c.Port}
		if id, ok := externalID[key]; ok {
			return id
		}
		id := fmt.Sprintf("external-%d", externalSeq)
		externalSeq++
		externalID[key] = id
		name := host
		if c.Port != 0 {
			name = fmt.Sprintf("%s:%d", host, c.Port)
		}
		externalClusters = append(externalClusters, packplan.Cluster{
			ID:      id,
			Name:    name,
			AppType: schemeAppType[c.DepType],
		})
		return id
	}

	for _, c := range candidates {
		to := resolveTo(c)
		key := edgeKey{from: c.FromClusterID, to: to, depType: c.DepType}
		e, ok := edges[key]
		if !ok {
			e = &packplan.DependencyEdge{From: c.FromClusterID, To: to, DepType: c.DepType}
			edges[key] = e
		}
		if c.EvidenceRef != "" && !containsStr(e.EvidenceRefs, c.EvidenceRef) {
			e.EvidenceRefs = append(e.EvidenceRefs, c.EvidenceRef)
		}
	}

	out := make([]packplan.DependencyEdge, 0, len(edges))
	for _, e := range edges {
		sort.Strings(e.EvidenceRefs)
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].DepType < out[j].DepType
	})
	sort.Slice(externalClusters, func(i, j int) bool { return externalClusters[i].ID < externalClusters[j].ID })
	return out, externalClusters
}

// Decisions converts candidates into per-cluster Decisions for the C8
// confidence aggregate, grouped by FromClusterID and ordered deterministically.
func Decisions(candidates []Candidate) map[string][]packplan.Decision {
	out := make(map[string][]packplan.Decision)
	for _, c := range candidates {
		var refs []string
		if c.EvidenceRef != "" {
			refs = []string{c.EvidenceRef}
		}
		var text string
		if c.Host != "" {
			text = fmt.Sprintf("dependency on %s (%s)", c.DetectedFrom, c.DepType)
		} else {
			text = fmt.Sprintf("env var %q suggests a %s dependency", c.DetectedFrom, c.DepType)
		}
		out[c.FromClusterID] = append(out[c.FromClusterID], packplan.NewDecision(text, c.Confidence, refs))
	}
	for id := range out {
		sort.Slice(out[id], func(i, j int) bool { return out[id][i].Decision < out[id][j].Decision })
	}
	return out
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
