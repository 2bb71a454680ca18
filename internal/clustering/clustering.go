// Package clustering groups scored business processes into application
// clusters, per spec.md §4.6.
package clustering

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rcourtman/xcprobe/internal/packplan"
)

// ProcessFact is the subset of process/service/port facts the clusterer
// needs about one business process.
type ProcessFact struct {
	PID                 int
	PPID                int
	Cmdline             []string
	WorkingDirectory    string
	ServiceName         string
	EnvironmentFilePath string
	Ports               []int
	HasScheduledTask    bool
	EnvNames            []string
	ConfigRefs          []string
	ServiceRef          string
	EvidenceRefs        []string
}

// Options configures cluster naming.
type Options struct {
	Prefix string // default "app" (spec.md §6 cluster_prefix default)
}

func (o Options) prefix() string {
	if o.Prefix == "" {
		return "app"
	}
	return o.Prefix
}

// disjointSet is a union-find structure over process indices, following
// spec.md §4.6's "union-find over processes; stable traversal order by
// ascending pid".
type disjointSet struct {
	parent []int
}

func newDisjointSet(n int) *disjointSet {
	d := &disjointSet{parent: make([]int, n)}
	for i := range d.parent {
		d.parent[i] = i
	}
	return d
}

func (d *disjointSet) find(x int) int {
	for d.parent[x] != x {
		d.parent[x] = d.parent[d.parent[x]]
		x = d.parent[x]
	}
	return x
}

func (d *disjointSet) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return
	}
	if ra > rb {
		ra, rb = rb, ra
	}
	d.parent[rb] = ra
}

// httpPorts, dbPorts, cachePorts, and queuePorts implement spec.md §4.6's
// app_type rule table.
var (
	httpPorts  = map[int]bool{80: true, 8080: true, 3000: true, 5000: true, 8000: true, 8443: true}
	dbPorts    = map[int]bool{5432: true, 3306: true, 27017: true, 1433: true}
	cachePorts = map[int]bool{6379: true, 11211: true}
	queuePorts = map[int]bool{5672: true, 4222: true, 9092: true}
)

// Cluster partitions facts (assumed already filtered to business processes)
// into application clusters and assigns dense, stable cluster ids.
func Cluster(facts []ProcessFact, opts Options) []packplan.Cluster {
	sorted := make([]ProcessFact, len(facts))
	copy(sorted, facts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PID < sorted[j].PID })

	indexByPID := make(map[int]int, len(sorted))
	for i, f := range sorted {
		indexByPID[f.PID] = i
	}

	dsu := newDisjointSet(len(sorted))

	// Signal 1: same service name.
	byService := make(map[string][]int)
	for i, f := range sorted {
		if f.ServiceName != "" {
			byService[f.ServiceName] = append(byService[f.ServiceName], i)
		}
	}
	unionAll(dsu, byService)

	// Signal 2: same working directory.
	byWorkDir := make(map[string][]int)
	for i, f := range sorted {
		if f.WorkingDirectory != "" {
			byWorkDir[f.WorkingDirectory] = append(byWorkDir[f.WorkingDirectory], i)
		}
	}
	unionAll(dsu, byWorkDir)

	// Signal 3: same EnvironmentFile path.
	byEnvFile := make(map[string][]int)
	for i, f := range sorted {
		if f.EnvironmentFilePath != "" {
			byEnvFile[f.EnvironmentFilePath] = append(byEnvFile[f.EnvironmentFilePath], i)
		}
	}
	unionAll(dsu, byEnvFile)

	// Signal 4: parent/child pairs, both business (facts is already
	// filtered to business processes, so any ppid found in indexByPID
	// qualifies).
	for i, f := range sorted {
		if j, ok := indexByPID[f.PPID]; ok {
			dsu.union(i, j)
		}
	}

	groups := make(map[int][]int)
	for i := range sorted {
		root := dsu.find(i)
		groups[root] = append(groups[root], i)
	}

	roots := make([]int, 0, len(groups))
	minPID := make(map[int]int, len(groups))
	for root, members := range groups {
		m := sorted[members[0]].PID
		for _, idx := range members {
			if sorted[idx].PID < m {
				m = sorted[idx].PID
			}
		}
		minPID[root] = m
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool { return minPID[roots[i]] < minPID[roots[j]] })

	clusters := make([]packplan.Cluster, 0, len(roots))
	for n, root := range roots {
		members := groups[root]
		sort.Ints(members)
		clusters = append(clusters, buildCluster(fmt.Sprintf("%s-%d", opts.prefix(), n), sorted, members))
	}
	return clusters
}

func unionAll(dsu *disjointSet, groups map[string][]int) {
	for _, indices := range groups {
		for i := 1; i < len(indices); i++ {
			dsu.union(indices[0], indices[i])
		}
	}
}

func buildCluster(id string, facts []ProcessFact, members []int) packplan.Cluster {
	c := packplan.Cluster{ID: id}

	serviceNames := make(map[string]bool)
	firstTokenCounts := make(map[string]int)
	envNameSet := make(map[string]bool)
	configRefSet := make(map[string]bool)
	hasScheduledTask := false
	var ports []int
	cmdlineContainsNginxLike := false

	for _, idx := range members {
		f := facts[idx]
		c.ProcessPIDs = append(c.ProcessPIDs, f.PID)
		if f.ServiceName != "" {
			serviceNames[f.ServiceName] = true
			if f.ServiceRef != "" {
				c.ServiceRefs = append(c.ServiceRefs, f.ServiceRef)
			}
		}
		if len(f.Cmdline) > 0 {
			first := basename(f.Cmdline[0])
			firstTokenCounts[first]++
			if first == "nginx" || first == "httpd" || first == "apache" || first == "apache2" {
				cmdlineContainsNginxLike = true
			}
		}
		for _, p := range f.Ports {
			ports = append(ports, p)
		}
		for _, n := range f.EnvNames {
			envNameSet[n] = true
		}
		for _, ref := range f.ConfigRefs {
			configRefSet[ref] = true
		}
		if f.HasScheduledTask {
			hasScheduledTask = true
		}
	}

	c.Name = clusterName(serviceNames, firstTokenCounts)
	c.AppType = appType(ports, hasScheduledTask, cmdlineContainsNginxLike)
	c.PortRefs = dedupSortInts(ports)
	c.EnvNames = sortedKeys(envNameSet)
	c.ConfigRefs = sortedKeys(configRefSet)
	sort.Ints(c.ProcessPIDs)
	sort.Strings(c.ServiceRefs)
	return c
}

func clusterName(serviceNames map[string]bool, firstTokenCounts map[string]int) string {
	if len(serviceNames) == 1 {
		for name := range serviceNames {
			return name
		}
	}
	best, bestCount := "", -1
	keys := sortedKeys(toSet(firstTokenCounts))
	for _, k := range keys {
		if firstTokenCounts[k] > bestCount {
			best, bestCount = k, firstTokenCounts[k]
		}
	}
	if best != "" {
		return best
	}
	return "app"
}

func toSet(m map[string]int) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

func appType(ports []int, hasScheduledTask, nginxLike bool) packplan.AppType {
	for _, p := range ports {
		if httpPorts[p] {
			if nginxLike {
				return packplan.AppTypeWeb
			}
			return packplan.AppTypeAPI
		}
	}
	for _, p := range ports {
		if dbPorts[p] {
			return packplan.AppTypeDB
		}
	}
	for _, p := range ports {
		if cachePorts[p] {
			return packplan.AppTypeCache
		}
	}
	for _, p := range ports {
		if queuePorts[p] {
			return packplan.AppTypeQueue
		}
	}
	if len(ports) == 0 && hasScheduledTask {
		return packplan.AppTypeBatch
	}
	return packplan.AppTypeOther
}

func basename(path string) string {
	if strings.HasPrefix(path, "[") && strings.HasSuffix(path, "]") {
		return path[1 : len(path)-1]
	}
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func dedupSortInts(in []int) []int {
	set := make(map[int]bool, len(in))
	for _, v := range in {
		set[v] = true
	}
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
