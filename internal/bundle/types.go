// Package bundle defines the bundle schema (spec.md §3) and its codec
// (spec.md §4.1): the canonical on-disk format shared by the collector and
// the analyzer, plus a verifiable, integrity-protected archive format.
package bundle

import "time"

// ManifestSchemaVersion is the bundle manifest schema version string (§6).
const ManifestSchemaVersion = "1"

// Manifest is manifest.json: the structured facts gathered during
// collection (spec.md §3).
type Manifest struct {
	SchemaVersion string    `json:"schema_version"`
	CollectionID  string    `json:"collection_id"`
	CollectedAt   time.Time `json:"collected_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	System        SystemInfo `json:"system"`

	Processes        []Process         `json:"processes"`
	Services         []Service         `json:"services"`
	Ports            []PortBinding     `json:"ports"`
	Packages         []Package         `json:"packages"`
	ConfigSnippets   []ConfigSnippet   `json:"config_snippets"`
	LogSnippets      []ConfigSnippet   `json:"log_snippets,omitempty"`
	EnvironmentFiles []EnvironmentFile `json:"environment_files"`

	// ScheduledTasks, present in the original implementation's manifest but
	// not in spec.md's data model, is carried as an optional supplement
	// (SPEC_FULL.md §3) used by the Clusterer's batch-app-type rule.
	ScheduledTasks []ScheduledTask `json:"scheduled_tasks,omitempty"`
	// CollectionErrors supplements spec.md's error model (§7) with a
	// per-collection record of recovered command failures.
	CollectionErrors []CollectionError `json:"collection_errors,omitempty"`
}

// SystemInfo describes the target host.
type SystemInfo struct {
	Hostname     string `json:"hostname"`
	OSType       string `json:"os_type"` // "linux" or "windows"
	OSVersion    string `json:"os_version,omitempty"`
	Architecture string `json:"architecture,omitempty"`
}

// Process is a collected process record (spec.md §3).
type Process struct {
	PID         int      `json:"pid"`
	PPID        int      `json:"ppid"`
	User        string   `json:"user"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	Elapsed     string   `json:"elapsed,omitempty"`
	Cmdline     []string `json:"cmdline"`
	Cwd         string   `json:"cwd,omitempty"`
	EnvNames    []string `json:"env_names,omitempty"`
	EvidenceRef string   `json:"evidence_ref,omitempty"`
}

// ServiceManager enumerates the managers a Service may belong to.
type ServiceManager string

const (
	ManagerSystemd ServiceManager = "systemd"
	ManagerWindows ServiceManager = "windows"
)

// Service is a collected systemd unit or Windows service record.
type Service struct {
	Name               string         `json:"name"`
	Manager            ServiceManager `json:"manager"`
	UnitFilePath       string         `json:"unit_file_path,omitempty"`
	ExecStart          string         `json:"exec_start,omitempty"`
	WorkingDirectory   string         `json:"working_directory,omitempty"`
	User               string         `json:"user,omitempty"`
	EnvironmentLines   []string       `json:"environment_lines,omitempty"`
	EnvironmentFilePaths []string     `json:"env_file_paths,omitempty"`
	State              string         `json:"state,omitempty"`
	MainPID            *int           `json:"main_pid,omitempty"`
	PIDRefs            []int          `json:"pid_refs,omitempty"`
	EvidenceRef        string         `json:"evidence_ref,omitempty"`
}

// Protocol enumerates transport-layer protocols for a PortBinding.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// PortBinding is a collected listener record.
type PortBinding struct {
	Protocol    Protocol `json:"protocol"`
	Address     string   `json:"address"`
	Port        int      `json:"port"`
	PID         *int     `json:"pid,omitempty"`
	EvidenceRef string   `json:"evidence_ref,omitempty"`
}

// PackageSource enumerates package-manager origins for a Package.
type PackageSource string

const (
	SourceDPKG    PackageSource = "dpkg"
	SourceRPM     PackageSource = "rpm"
	SourceWindows PackageSource = "windows"
)

// Package is a collected installed-package record.
type Package struct {
	Name    string        `json:"name"`
	Version string        `json:"version"`
	Source  PackageSource `json:"source"`
}

// RedactionReport is the per-document redaction summary (spec.md §3/§4.2).
type RedactionReport struct {
	Replacements int            `json:"replacements"`
	PatternsHit  map[string]int `json:"patterns_hit,omitempty"`
	EntropyHits  int            `json:"entropy_hits"`
}

// ConfigSnippet is a collected, already-redacted config (or log) file
// attachment (spec.md §3).
type ConfigSnippet struct {
	OriginalPath    string          `json:"original_path"`
	AttachmentRef   string          `json:"attachment_ref"`
	Size            int64           `json:"size"`
	Truncated       bool            `json:"truncated"`
	RedactionReport RedactionReport `json:"redaction_report"`
}

// EnvironmentFile records the *names* of variables found in an
// EnvironmentFile= reference (values are never collected).
type EnvironmentFile struct {
	Path          string   `json:"path"`
	VariableNames []string `json:"variable_names"`
	EvidenceRef   string   `json:"evidence_ref,omitempty"`
}

// ScheduledTask is the manifest supplement described in SPEC_FULL.md §3,
// used to recognize batch applications that have no listening port.
type ScheduledTask struct {
	Name        string `json:"name"`
	TaskType    string `json:"task_type"` // cron, systemd-timer, windows-task
	Command     string `json:"command,omitempty"`
	Unit        string `json:"unit,omitempty"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
}

// CollectionError supplements spec.md §7's error model with a record of a
// recovered per-command failure during collection.
type CollectionError struct {
	Phase       string    `json:"phase"`
	Command     string    `json:"command,omitempty"`
	Error       string    `json:"error"`
	Timestamp   time.Time `json:"timestamp"`
	Recoverable bool      `json:"recoverable"`
}

// AuditRecord is one line of audit.jsonl (spec.md §3).
type AuditRecord struct {
	Seq         uint64    `json:"seq"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Command     string    `json:"command"`
	ExitCode    int       `json:"exit_code"`
	EvidenceRef string    `json:"evidence_ref"`
	Bytes       int64     `json:"bytes"`
}
