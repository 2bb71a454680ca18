package collector

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rcourtman/xcprobe/internal/bundle"
	"github.com/rcourtman/xcprobe/internal/evidence"
	"github.com/rcourtman/xcprobe/internal/redaction"
	"github.com/rcourtman/xcprobe/internal/transport"
	"github.com/rcourtman/xcprobe/internal/xcerror"
)

// DefaultWorkers, DefaultCommandTimeout and DefaultBudget are spec.md §5's
// collection defaults.
const (
	DefaultWorkers        = 4
	DefaultCommandTimeout = 30 * time.Second
	DefaultBudget         = 300 * time.Second
)

// Options configures a collection run.
type Options struct {
	Workers        int
	CommandTimeout time.Duration
	Budget         time.Duration
	Redaction      redaction.Options
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return DefaultWorkers
}

func (o Options) commandTimeout() time.Duration {
	if o.CommandTimeout > 0 {
		return o.CommandTimeout
	}
	return DefaultCommandTimeout
}

func (o Options) budget() time.Duration {
	if o.Budget > 0 {
		return o.Budget
	}
	return DefaultBudget
}

// Collector runs a CommandSet's commands against a target through a
// Transport, grounded on SPEC_FULL.md §4.10's worker-pool design: a bounded
// errgroup.Group submits allowlisted commands, redacts captured output,
// stores it as evidence, and folds the parsed facts into a bundle.Manifest.
type Collector struct {
	transport transport.Transport
	commands  CommandSet
	opts      Options
}

// New constructs a Collector for one target's transport and platform.
func New(t transport.Transport, osType string, opts Options) *Collector {
	return &Collector{transport: t, commands: NewCommandSet(osType), opts: opts}
}

// Run executes the full collection pipeline and returns a sealed
// bundle.Bundle, ready for bundle.Write. Collection errors on individual
// commands are recovered (spec.md §5 "the command is terminated... and
// collection continues"); only a cancelled or budget-exhausted context
// halts further submissions, and even then the bundle is still sealed with
// whatever was gathered so far.
func (c *Collector) Run(ctx context.Context, collectionID string) (*bundle.Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.budget())
	defer cancel()

	store := evidence.NewStore()
	manifest := bundle.Manifest{
		SchemaVersion: bundle.ManifestSchemaVersion,
		CollectionID:  collectionID,
		CollectedAt:   time.Now().UTC(),
		System:        bundle.SystemInfo{OSType: c.commands.OSType()},
	}

	var mu sync.Mutex
	addError := func(phase, command string, err error) {
		mu.Lock()
		defer mu.Unlock()
		manifest.CollectionErrors = append(manifest.CollectionErrors, bundle.CollectionError{
			Phase:       phase,
			Command:     command,
			Error:       err.Error(),
			Timestamp:   time.Now().UTC(),
			Recoverable: true,
		})
	}

	run := func(cmd transport.Command) (transport.Result, error) {
		cctx, ccancel := context.WithTimeout(ctx, c.opts.commandTimeout())
		defer ccancel()
		start := time.Now()
		result, err := c.transport.Execute(cctx, cmd)
		completed := time.Now()
		result.Duration = completed.Sub(start)
		c.record(store, cmd.Name, start, completed, result, err)
		if err == nil && result.ExitCode != 0 {
			err = xcerror.New(xcerror.Unsupported, "command exited non-zero").WithMember(cmd.Name)
		}
		return result, err
	}

	hostnameResult, hostnameErr := run(c.commands.Hostname())
	if hostnameErr != nil {
		addError("system", "hostname", hostnameErr)
	} else {
		manifest.System.Hostname = trimmed(hostnameResult.Stdout)
	}

	osVersionResult, osVersionErr := run(c.commands.OSVersion())
	if osVersionErr != nil {
		addError("system", "osversion", osVersionErr)
	} else {
		manifest.System.OSVersion = c.commands.ParseOSVersion(osVersionResult.Stdout)
	}

	processesResult, processesErr := run(c.commands.Processes())
	if processesErr != nil {
		addError("processes", "ps", processesErr)
	} else {
		procs, skipped := c.commands.ParseProcesses(processesResult.Stdout)
		_ = skipped
		manifest.Processes = procs
	}

	portsResult, portsErr := run(c.commands.Ports())
	if portsErr != nil {
		addError("ports", "ports", portsErr)
	} else {
		manifest.Ports = c.commands.ParsePorts(portsResult.Stdout)
	}

	scheduledResult, scheduledErr := run(c.commands.ScheduledTasks())
	if scheduledErr != nil {
		addError("scheduled_tasks", "scheduled_tasks", scheduledErr)
	} else {
		manifest.ScheduledTasks = c.commands.ParseScheduledTasks(scheduledResult.Stdout)
	}

	serviceListResult, serviceListErr := run(c.commands.ServiceList())
	if serviceListErr != nil {
		addError("services", "servicelist", serviceListErr)
	} else {
		unitNames := c.commands.ParseServiceNames(serviceListResult.Stdout)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.opts.workers())
		services := make([]bundle.Service, len(unitNames))
		for i, unit := range unitNames {
			i, unit := i, unit
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				result, err := run(c.commands.ServiceShow(unit))
				if err != nil {
					addError("services", "service show "+unit, err)
					return nil
				}
				services[i] = c.commands.ParseService(unit, result.Stdout)
				return nil
			})
		}
		_ = g.Wait()

		for _, svc := range services {
			if svc.Name != "" {
				manifest.Services = append(manifest.Services, svc)
			}
		}
	}

	completedAt := time.Now().UTC()
	manifest.CompletedAt = &completedAt

	b := &bundle.Bundle{
		Manifest:    manifest,
		AuditTrail:  store.AuditTrail(),
		Evidence:    store.Evidence(),
		Attachments: store.Attachments(),
	}
	return b, nil
}

// record stores one command's captured output as evidence, after redacting
// it, regardless of whether the command itself succeeded (spec.md §4.3 "no
// silent drops").
func (c *Collector) record(store *evidence.Store, command string, started, completed time.Time, result transport.Result, execErr error) {
	output := result.Stdout
	if result.Stderr != "" {
		output += "\n--- stderr ---\n" + result.Stderr
	}
	redacted, _ := redaction.Redact(output, c.opts.Redaction)
	store.Put(command, started, completed, result.ExitCode, []byte(redacted), execErr)
}

func trimmed(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r' || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}
	return s
}
