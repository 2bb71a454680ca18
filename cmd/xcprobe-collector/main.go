// Command xcprobe-collector runs an evidence collection against one host
// (local or remote over SSH) and writes the resulting bundle to disk.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/rcourtman/xcprobe/internal/bundle"
	"github.com/rcourtman/xcprobe/internal/collector"
	"github.com/rcourtman/xcprobe/internal/logging"
	"github.com/rcourtman/xcprobe/internal/redaction"
	"github.com/rcourtman/xcprobe/internal/ssh/knownhosts"
	"github.com/rcourtman/xcprobe/internal/transport"
	"github.com/rcourtman/xcprobe/internal/xcconfig"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var envPath string

var rootCmd = &cobra.Command{
	Use:     "xcprobe-collector",
	Short:   "Collects process, service, port and scheduled-task evidence from a host",
	Long:    "Runs an allowlisted command set against a local or SSH-reachable host and writes the collected evidence as a single bundle file for later analysis.",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("xcprobe-collector %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", "Path to a .env file overriding XCPROBE_* configuration")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := xcconfig.LoadCollectorConfig(envPath)
	if err != nil {
		log.Logger = log.Output(os.Stderr)
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Component: "xcprobe-collector"})
	defer logging.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	exec, osType, cleanup, err := buildTransport(ctx, cfg)
	if err != nil {
		return fmt.Errorf("prepare transport: %w", err)
	}
	defer cleanup()

	log.Info().
		Str("target", cfg.Target).
		Str("os_type", osType).
		Int("workers", cfg.Workers).
		Dur("budget", cfg.Budget).
		Msg("starting collection")

	opts := collector.Options{
		Workers:        cfg.Workers,
		CommandTimeout: cfg.CommandTimeout,
		Budget:         cfg.Budget,
		Redaction: redaction.Options{
			Mode:             cfg.RedactionMode,
			EntropyThreshold: cfg.EntropyThreshold,
		},
	}
	c := collector.New(exec, osType, opts)

	collectionID := ulid.Make().String()
	b, err := c.Run(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("run collection: %w", err)
	}

	out, err := os.Create(cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("create output file %s: %w", cfg.OutputPath, err)
	}
	defer out.Close()

	if err := bundle.Write(out, b); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}

	log.Info().
		Str("collection_id", collectionID).
		Str("output", cfg.OutputPath).
		Int("services", len(b.Manifest.Services)).
		Int("processes", len(b.Manifest.Processes)).
		Int("collection_errors", len(b.Manifest.CollectionErrors)).
		Msg("collection complete")
	return nil
}

// buildTransport selects the local or SSH executor based on cfg.Target and
// probes the host's OS family so the right CommandSet gets used. It returns
// a no-op cleanup for the local case and one that closes the SSH connection
// for the remote case.
func buildTransport(ctx context.Context, cfg *xcconfig.CollectorConfig) (transport.Transport, string, func(), error) {
	if cfg.Target == "local" {
		return transport.NewLocalExecutor(), localOSType(), func() {}, nil
	}

	user, addr, found := strings.Cut(cfg.Target, "@")
	if !found {
		return nil, "", nil, fmt.Errorf("target %q must be in user@host[:port] form", cfg.Target)
	}

	keyBytes, err := os.ReadFile(cfg.SSHKeyPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("read ssh key %s: %w", cfg.SSHKeyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, "", nil, fmt.Errorf("parse ssh key %s: %w", cfg.SSHKeyPath, err)
	}

	knownHostsPath := cfg.KnownHostsPath
	if knownHostsPath == "" {
		knownHostsPath = os.ExpandEnv("$HOME/.xcprobe/known_hosts")
	}
	hostKeys, err := knownhosts.NewManager(knownHostsPath)
	if err != nil {
		return nil, "", nil, fmt.Errorf("init known_hosts manager: %w", err)
	}

	exec, err := transport.DialSSH(ctx, addr, user, signer, hostKeys)
	if err != nil {
		return nil, "", nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	osType, err := probeRemoteOSType(ctx, exec)
	if err != nil {
		exec.Close()
		return nil, "", nil, fmt.Errorf("probe remote os: %w", err)
	}
	return exec, osType, func() { exec.Close() }, nil
}

func localOSType() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}
	return "linux"
}

func probeRemoteOSType(ctx context.Context, exec *transport.SSHExecutor) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	result, err := exec.Execute(probeCtx, transport.Command{Name: "uname", Args: []string{"-s"}, Capability: transport.CapEnumerateProcesses})
	if err != nil || result.ExitCode != 0 {
		return "", fmt.Errorf("uname probe failed: %w", err)
	}
	if strings.Contains(strings.ToLower(result.Stdout), "linux") {
		return "linux", nil
	}
	return "windows", nil
}
