package factmodel

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/rcourtman/xcprobe/internal/bundle"
)

// psLinePattern matches one line of `ps -eo pid,ppid,user,etimes,args
// --no-headers` output: pid, ppid, user, elapsed seconds, then the
// remainder of the line as the command and its arguments.
var psLinePattern = regexp.MustCompile(`^\s*(\d+)\s+(\d+)\s+(\S+)\s+(\d+)\s+(.*)$`)

// ParsePSLinux parses POSIX `ps` output into Process facts, tokenizing the
// trailing args column with POSIX shell word-splitting. Malformed lines are
// skipped and counted rather than treated as fatal, per spec.md §4.4.
func ParsePSLinux(raw string) ([]bundle.Process, int) {
	var procs []bundle.Process
	skipped := 0
	for _, line := range splitLines(raw) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := psLinePattern.FindStringSubmatch(line)
		if m == nil {
			skipped++
			continue
		}
		pid, err1 := strconv.Atoi(m[1])
		ppid, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}
		cmdline := TokenizePOSIX(m[5])
		if len(cmdline) == 0 {
			cmdline = []string{NormalizeKernelThreadName(m[5])}
		}
		procs = append(procs, bundle.Process{
			PID:     pid,
			PPID:    ppid,
			User:    m[3],
			Elapsed: m[4] + "s",
			Cmdline: cmdline,
		})
	}
	return procs, skipped
}

// wmiProcessLinePattern matches one CSV line of a `Get-CimInstance
// Win32_Process | Select ProcessId,ParentProcessId,CommandLine` dump in the
// shape "pid,ppid,command line here".
var wmiProcessLinePattern = regexp.MustCompile(`^\s*(\d+),(\d+),(.*)$`)

// ParsePSWindows parses the collector's WMI process dump into Process
// facts, tokenizing the command line with Windows argv quoting rules.
func ParsePSWindows(raw string) ([]bundle.Process, int) {
	var procs []bundle.Process
	skipped := 0
	for _, line := range splitLines(raw) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := wmiProcessLinePattern.FindStringSubmatch(line)
		if m == nil {
			skipped++
			continue
		}
		pid, err1 := strconv.Atoi(m[1])
		ppid, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}
		cmdline := TokenizeWindows(m[3])
		if len(cmdline) == 0 {
			skipped++
			continue
		}
		procs = append(procs, bundle.Process{PID: pid, PPID: ppid, Cmdline: cmdline})
	}
	return procs, skipped
}

// ParseEnvironNames extracts variable names only from a NUL-or-newline
// separated `environ`-equivalent dump; values are discarded immediately,
// never returned or retained (spec.md §4.4).
func ParseEnvironNames(raw string) []string {
	raw = strings.ReplaceAll(raw, "\x00", "\n")
	var names []string
	for _, line := range splitLines(raw) {
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}
		names = append(names, line[:idx])
	}
	return names
}

// systemdShowLinePattern matches one "Key=Value" line of `systemctl show`.
var systemdShowLinePattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*)=(.*)$`)

// ParseSystemdShow parses `systemctl show <unit>` key=value output into a
// partial Service fact. EnvironmentFilePaths is populated from
// EnvironmentFile= lines; Environment= lines contribute only variable
// names via ParseEnvironNames semantics (values are discarded).
func ParseSystemdShow(unitName, raw string) bundle.Service {
	svc := bundle.Service{Name: unitName, Manager: bundle.ManagerSystemd}
	for _, line := range splitLines(raw) {
		m := systemdShowLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key, val := m[1], m[2]
		switch key {
		case "ExecStart":
			svc.ExecStart = val
		case "WorkingDirectory":
			svc.WorkingDirectory = val
		case "User":
			svc.User = val
		case "ActiveState":
			svc.State = val
		case "MainPID":
			if pid, err := strconv.Atoi(val); err == nil && pid > 0 {
				svc.MainPID = &pid
			}
		case "EnvironmentFile":
			for _, path := range strings.Fields(val) {
				path = strings.TrimSuffix(path, " (ignore_errors=yes)")
				svc.EnvironmentFilePaths = append(svc.EnvironmentFilePaths, path)
			}
		case "Environment":
			svc.EnvironmentLines = append(svc.EnvironmentLines, namesOnly(val)...)
		}
	}
	return svc
}

func namesOnly(environmentLine string) []string {
	var names []string
	for _, tok := range strings.Fields(environmentLine) {
		if idx := strings.IndexByte(tok, '='); idx > 0 {
			names = append(names, tok[:idx])
		}
	}
	return names
}

func splitLines(raw string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
