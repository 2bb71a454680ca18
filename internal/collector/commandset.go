// Package collector implements the online side of collection (spec.md §5):
// a bounded worker pool that runs a platform's allowlisted commands through
// a transport.Transport, redacts and stores their output, and assembles the
// resulting bundle.Manifest.
package collector

import (
	"github.com/rcourtman/xcprobe/internal/bundle"
	"github.com/rcourtman/xcprobe/internal/transport"
)

// CommandSet builds the fixed, allowlisted commands for one platform and
// parses their output into facts, grounded on the trait-with-per-platform-
// implementations shape of the original probe-cli's CommandSet (Linux and
// Windows variants sharing one interface). Command construction and parsing
// are paired here rather than split across packages because each platform's
// command text and its output format are two halves of the same contract:
// changing one without the other breaks collection silently.
type CommandSet interface {
	// OSType names the platform for bundle.SystemInfo ("linux" or
	// "windows").
	OSType() string

	Hostname() transport.Command
	OSVersion() transport.Command
	Processes() transport.Command
	ServiceList() transport.Command
	ServiceShow(unit string) transport.Command
	Ports() transport.Command
	ScheduledTasks() transport.Command

	ParseProcesses(raw string) ([]bundle.Process, int)
	ParseServiceNames(raw string) []string
	ParseService(unit, raw string) bundle.Service
	ParsePorts(raw string) []bundle.PortBinding
	ParseScheduledTasks(raw string) []bundle.ScheduledTask
	ParseOSVersion(raw string) string
}

// NewCommandSet returns the CommandSet for osType ("linux" or "windows"),
// grounded on the probe-cli crate's OS dispatch in its
// CommandSet::for_platform constructor.
func NewCommandSet(osType string) CommandSet {
	if osType == "windows" {
		return WindowsCommandSet{}
	}
	return LinuxCommandSet{}
}
