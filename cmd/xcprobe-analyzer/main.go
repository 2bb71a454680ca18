// Command xcprobe-analyzer reads a sealed evidence bundle and produces a
// pack plan, optionally rendering Docker build artifacts for each cluster.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rcourtman/xcprobe/internal/analyzer"
	"github.com/rcourtman/xcprobe/internal/bundle"
	"github.com/rcourtman/xcprobe/internal/dockerrender"
	"github.com/rcourtman/xcprobe/internal/logging"
	"github.com/rcourtman/xcprobe/internal/xcconfig"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var envPath string

var rootCmd = &cobra.Command{
	Use:     "xcprobe-analyzer",
	Short:   "Turns a collected evidence bundle into a pack plan and Docker artifacts",
	Long:    "Reads a sealed bundle produced by xcprobe-collector, scores and clusters the business processes it describes, resolves dependencies, and writes a pack plan plus (by default) per-cluster Docker build artifacts.",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("xcprobe-analyzer %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
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
	cfg, err := xcconfig.LoadAnalyzerConfig(envPath)
	if err != nil {
		log.Logger = log.Output(os.Stderr)
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Init(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Component: "xcprobe-analyzer"})
	defer logging.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().
		Str("bundle", cfg.BundlePath).
		Str("out_dir", cfg.OutputDir).
		Float64("min_confidence", cfg.MinConfidence).
		Bool("strict_evidence", cfg.StrictEvidence).
		Msg("starting analysis")

	a := analyzer.New()
	plan, err := a.Analyze(ctx, cfg.BundlePath, cfg.OutputDir, analyzer.Options{
		ClusterPrefix:  cfg.ClusterPrefix,
		MinConfidence:  cfg.MinConfidence,
		StrictEvidence: cfg.StrictEvidence,
	})
	if err != nil {
		return fmt.Errorf("analyze %s: %w", cfg.BundlePath, err)
	}

	log.Info().
		Int("clusters", len(plan.Clusters)).
		Int("edges", len(plan.Edges)).
		Msg("pack plan written")

	if !cfg.RenderDocker {
		return nil
	}

	manifest, err := readManifest(cfg.BundlePath)
	if err != nil {
		return fmt.Errorf("re-read bundle manifest for docker rendering: %w", err)
	}

	dockerDir := filepath.Join(cfg.OutputDir, "docker")
	if err := dockerrender.Render(plan, manifest, dockerDir); err != nil {
		return fmt.Errorf("render docker artifacts: %w", err)
	}
	log.Info().Str("docker_dir", dockerDir).Msg("docker artifacts rendered")
	return nil
}

func readManifest(bundlePath string) (*bundle.Manifest, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := bundle.Read(f)
	if err != nil {
		return nil, err
	}
	return &b.Manifest, nil
}
