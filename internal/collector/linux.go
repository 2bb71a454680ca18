package collector

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/rcourtman/xcprobe/internal/bundle"
	"github.com/rcourtman/xcprobe/internal/factmodel"
	"github.com/rcourtman/xcprobe/internal/transport"
)

// LinuxCommandSet builds the systemd/procps command set, grounded on
// _examples/original_source/crates/probe-cli/src/commands.rs's
// LinuxCommands implementation, adapted into fixed argv (no shell string)
// since transport.Transport runs binaries directly and validates every
// argument against the allowlist grammar (`^[A-Za-z0-9._-]{1,255}$`, no "="
// and no path separators). Flags that would otherwise need "=" or "," are
// split into separate tokens or repeated so they survive that grammar.
type LinuxCommandSet struct{}

func (LinuxCommandSet) OSType() string { return "linux" }

func (LinuxCommandSet) Hostname() transport.Command {
	return transport.Command{Name: "hostname", Capability: transport.CapEnumerateProcesses}
}

func (LinuxCommandSet) OSVersion() transport.Command {
	return transport.Command{Name: "uname", Args: []string{"-sr"}, Capability: transport.CapEnumerateProcesses}
}

func (LinuxCommandSet) ParseOSVersion(raw string) string {
	return strings.TrimSpace(raw)
}

// Processes emits the exact shape factmodel.ParsePSLinux expects: pid,
// ppid, user, elapsed seconds, then the command line. Using five separate
// -o flags rather than one comma-joined "-eo pid,ppid,user,etimes,args"
// argument keeps every argument free of commas, since the allowlist
// grammar rejects them.
func (LinuxCommandSet) Processes() transport.Command {
	return transport.Command{
		Name: "ps",
		Args: []string{"-e", "-o", "pid", "-o", "ppid", "-o", "user", "-o", "etimes", "-o", "args", "--no-headers"},
		Capability: transport.CapEnumerateProcesses,
	}
}

func (LinuxCommandSet) ParseProcesses(raw string) ([]bundle.Process, int) {
	return factmodel.ParsePSLinux(raw)
}

func (LinuxCommandSet) ServiceList() transport.Command {
	return transport.Command{
		Name:       "systemctl",
		Args:       []string{"list-units", "--type", "service", "--all", "--no-pager", "--no-legend"},
		Capability: transport.CapEnumerateServices,
	}
}

var systemdUnitListLinePattern = regexp.MustCompile(`^\s*\S*?([A-Za-z0-9_.:@-]+\.service)\b`)

func (LinuxCommandSet) ParseServiceNames(raw string) []string {
	var names []string
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		unit := strings.TrimPrefix(fields[0], "●")
		unit = strings.TrimSpace(unit)
		if strings.HasSuffix(unit, ".service") {
			names = append(names, unit)
		}
	}
	return names
}

func (LinuxCommandSet) ServiceShow(unit string) transport.Command {
	return transport.Command{
		Name:       "systemctl",
		Args:       []string{"show", unit, "--no-pager"},
		Capability: transport.CapEnumerateServices,
	}
}

func (LinuxCommandSet) ParseService(unit, raw string) bundle.Service {
	return factmodel.ParseSystemdShow(unit, raw)
}

func (LinuxCommandSet) Ports() transport.Command {
	return transport.Command{Name: "ss", Args: []string{"-lntup"}, Capability: transport.CapEnumeratePorts}
}

// ssListenLinePattern matches one `ss -lntup` listener line, e.g.:
// "tcp   LISTEN 0      128    0.0.0.0:8080      0.0.0.0:*    users:(("gunicorn",pid=100,fd=6))"
var ssListenLinePattern = regexp.MustCompile(`^(tcp|udp)\s+\S+\s+\S+\s+\S+\s+(\S+):(\*|\d+)\s`)
var ssPidPattern = regexp.MustCompile(`pid=(\d+)`)

func (LinuxCommandSet) ParsePorts(raw string) []bundle.PortBinding {
	var ports []bundle.PortBinding
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := sc.Text()
		m := ssListenLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		port, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		binding := bundle.PortBinding{
			Protocol: bundle.Protocol(m[1]),
			Address:  m[2],
			Port:     port,
		}
		if pm := ssPidPattern.FindStringSubmatch(line); pm != nil {
			if pid, err := strconv.Atoi(pm[1]); err == nil {
				binding.PID = &pid
			}
		}
		ports = append(ports, binding)
	}
	return ports
}

func (LinuxCommandSet) ScheduledTasks() transport.Command {
	return transport.Command{
		Name:       "systemctl",
		Args:       []string{"list-timers", "--all", "--no-pager", "--no-legend"},
		Capability: transport.CapEnumerateServices,
	}
}

func (LinuxCommandSet) ParseScheduledTasks(raw string) []bundle.ScheduledTask {
	var tasks []bundle.ScheduledTask
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		timerUnit := fields[len(fields)-2]
		activates := fields[len(fields)-1]
		if !strings.HasSuffix(timerUnit, ".timer") {
			continue
		}
		tasks = append(tasks, bundle.ScheduledTask{
			Name:     timerUnit,
			TaskType: "systemd-timer",
			Unit:     activates,
		})
	}
	return tasks
}
