package collector

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/rcourtman/xcprobe/internal/bundle"
	"github.com/rcourtman/xcprobe/internal/transport"
)

// WindowsCommandSet builds the sc/netstat/schtasks command set, grounded on
// the WindowsCommands branch of
// _examples/original_source/crates/probe-cli/src/commands.rs. Several
// native Windows tools (wmic's comma-joined property lists, the legacy
// "/flag" argument style) don't survive transport's allowlist grammar
// (`^[A-Za-z0-9._-]{1,255}$`, no "," and no "/"); those commands are kept
// here in their real form for documentation and are noted as a known
// reference-transport limitation in DESIGN.md rather than contorted into
// something that no longer matches what an operator would actually run.
type WindowsCommandSet struct{}

func (WindowsCommandSet) OSType() string { return "windows" }

func (WindowsCommandSet) Hostname() transport.Command {
	return transport.Command{Name: "hostname", Capability: transport.CapEnumerateProcesses}
}

func (WindowsCommandSet) OSVersion() transport.Command {
	return transport.Command{Name: "wmic", Args: []string{"os", "get", "Caption"}, Capability: transport.CapEnumerateProcesses}
}

func (WindowsCommandSet) ParseOSVersion(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && line != "Caption" {
			return line
		}
	}
	return ""
}

// Processes' property-list argument is intentionally comma-joined to match
// real wmic syntax; under the default allowlist grammar it gets sentineled,
// which is a known limitation documented in DESIGN.md.
func (WindowsCommandSet) Processes() transport.Command {
	return transport.Command{
		Name:       "wmic",
		Args:       []string{"process", "get", "ProcessId,ParentProcessId,CommandLine", "/format:csv"},
		Capability: transport.CapEnumerateProcesses,
	}
}

func (WindowsCommandSet) ParseProcesses(raw string) ([]bundle.Process, int) {
	var procs []bundle.Process
	skipped := 0
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "Node,") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 4 {
			skipped++
			continue
		}
		cmdline := fields[1]
		ppid, err1 := strconv.Atoi(strings.TrimSpace(fields[2]))
		pid, err2 := strconv.Atoi(strings.TrimSpace(fields[3]))
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}
		procs = append(procs, bundle.Process{PID: pid, PPID: ppid, Cmdline: strings.Fields(cmdline)})
	}
	return procs, skipped
}

func (WindowsCommandSet) ServiceList() transport.Command {
	return transport.Command{Name: "sc", Args: []string{"query"}, Capability: transport.CapEnumerateServices}
}

var scServiceNamePattern = regexp.MustCompile(`^SERVICE_NAME:\s*(\S+)`)

func (WindowsCommandSet) ParseServiceNames(raw string) []string {
	var names []string
	for _, line := range strings.Split(raw, "\n") {
		if m := scServiceNamePattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}

func (WindowsCommandSet) ServiceShow(unit string) transport.Command {
	return transport.Command{Name: "sc", Args: []string{"qc", unit}, Capability: transport.CapEnumerateServices}
}

func (WindowsCommandSet) ParseService(unit, raw string) bundle.Service {
	svc := bundle.Service{Name: unit, Manager: bundle.ManagerWindows}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, ":")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		switch key {
		case "BINARY_PATH_NAME":
			svc.ExecStart = val
		case "SERVICE_START_NAME":
			svc.User = val
		case "STATE":
			svc.State = val
		}
	}
	return svc
}

func (WindowsCommandSet) Ports() transport.Command {
	return transport.Command{Name: "netstat", Args: []string{"-ano"}, Capability: transport.CapEnumeratePorts}
}

// netstatListenLinePattern matches one LISTENING line, e.g.:
// "  TCP    0.0.0.0:8080           0.0.0.0:0              LISTENING       1234"
var netstatListenLinePattern = regexp.MustCompile(`^\s*(TCP|UDP)\s+(\S+):(\d+)\s+\S+\s+(?:LISTENING\s+)?(\d+)\s*$`)

func (WindowsCommandSet) ParsePorts(raw string) []bundle.PortBinding {
	var ports []bundle.PortBinding
	for _, line := range strings.Split(raw, "\n") {
		m := netstatListenLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		port, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		pid, err := strconv.Atoi(m[4])
		if err != nil {
			continue
		}
		ports = append(ports, bundle.PortBinding{
			Protocol: bundle.Protocol(strings.ToLower(m[1])),
			Address:  m[2],
			Port:     port,
			PID:      &pid,
		})
	}
	return ports
}

// ScheduledTasks' CSV-format flags use legacy "/flag" syntax, documented as
// the same allowlist limitation as Processes above.
func (WindowsCommandSet) ScheduledTasks() transport.Command {
	return transport.Command{
		Name:       "schtasks",
		Args:       []string{"/query", "/fo", "csv", "/nh"},
		Capability: transport.CapEnumerateServices,
	}
}

func (WindowsCommandSet) ParseScheduledTasks(raw string) []bundle.ScheduledTask {
	var tasks []bundle.ScheduledTask
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 1 {
			continue
		}
		name := strings.Trim(fields[0], `"`)
		if name == "" {
			continue
		}
		tasks = append(tasks, bundle.ScheduledTask{Name: name, TaskType: "windows-task"})
	}
	return tasks
}
