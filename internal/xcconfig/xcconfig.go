// Package xcconfig loads configuration for both CLIs from environment
// variables, optionally overridden by a ".env" file, grounded on the
// teacher's internal/config.Load: godotenv populates the process
// environment first, then every field is read explicitly with os.Getenv
// and a hard-coded default, rather than bound automatically from struct
// tags.
package xcconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/rcourtman/xcprobe/internal/collector"
	"github.com/rcourtman/xcprobe/internal/redaction"
)

// loadEnvFile loads envPath if set and present, then falls back to a
// ".env" file in the current directory, exactly as the teacher's
// config.Load does for deployment overrides vs. local development.
func loadEnvFile(envPath string) {
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				log.Warn().Err(err).Str("file", envPath).Msg("failed to load env file")
			} else {
				log.Info().Str("file", envPath).Msg("loaded env file")
			}
			return
		}
	}
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("loaded .env from current directory")
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer env var, using default")
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration env var, using default")
		return def
	}
	return d
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid float env var, using default")
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("invalid bool env var, using default")
		return def
	}
	return b
}

// CollectorConfig configures cmd/xcprobe-collector.
type CollectorConfig struct {
	Target         string // "local" or "user@host[:port]"
	SSHKeyPath     string
	KnownHostsPath string
	OutputPath     string
	LogLevel       string
	LogFormat      string

	Workers        int
	CommandTimeout time.Duration
	Budget         time.Duration

	RedactionMode    redaction.Mode
	EntropyThreshold float64
}

// LoadCollectorConfig reads the collector's configuration from the
// environment (and envPath, if non-empty), applying spec.md §5's defaults
// wherever a variable is unset.
func LoadCollectorConfig(envPath string) (*CollectorConfig, error) {
	loadEnvFile(envPath)

	cfg := &CollectorConfig{
		Target:         getenvDefault("XCPROBE_TARGET", "local"),
		SSHKeyPath:     getenvDefault("XCPROBE_SSH_KEY", ""),
		KnownHostsPath: getenvDefault("XCPROBE_KNOWN_HOSTS", ""),
		OutputPath:     getenvDefault("XCPROBE_OUTPUT", "bundle.tar.gz"),
		LogLevel:       getenvDefault("XCPROBE_LOG_LEVEL", "info"),
		LogFormat:      getenvDefault("XCPROBE_LOG_FORMAT", "auto"),

		Workers:        getenvInt("XCPROBE_WORKERS", collector.DefaultWorkers),
		CommandTimeout: getenvDuration("XCPROBE_COMMAND_TIMEOUT", collector.DefaultCommandTimeout),
		Budget:         getenvDuration("XCPROBE_BUDGET", collector.DefaultBudget),

		RedactionMode:    redaction.Mode(getenvDefault("XCPROBE_REDACTION_MODE", string(redaction.ModeStandard))),
		EntropyThreshold: getenvFloat("XCPROBE_ENTROPY_THRESHOLD", redaction.DefaultEntropyThreshold),
	}

	if cfg.Target != "local" && cfg.SSHKeyPath == "" {
		return nil, fmt.Errorf("xcconfig: XCPROBE_SSH_KEY is required when XCPROBE_TARGET is not \"local\" (got %q)", cfg.Target)
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("xcconfig: XCPROBE_WORKERS must be positive, got %d", cfg.Workers)
	}
	return cfg, nil
}

// AnalyzerConfig configures cmd/xcprobe-analyzer.
type AnalyzerConfig struct {
	BundlePath string
	OutputDir  string
	LogLevel   string
	LogFormat  string

	ClusterPrefix  string
	MinConfidence  float64
	StrictEvidence bool
	RenderDocker   bool
}

// LoadAnalyzerConfig reads the analyzer's configuration from the
// environment (and envPath, if non-empty).
func LoadAnalyzerConfig(envPath string) (*AnalyzerConfig, error) {
	loadEnvFile(envPath)

	cfg := &AnalyzerConfig{
		BundlePath: getenvDefault("XCPROBE_BUNDLE", ""),
		OutputDir:  getenvDefault("XCPROBE_OUT_DIR", "./xcprobe-out"),
		LogLevel:   getenvDefault("XCPROBE_LOG_LEVEL", "info"),
		LogFormat:  getenvDefault("XCPROBE_LOG_FORMAT", "auto"),

		ClusterPrefix:  getenvDefault("XCPROBE_CLUSTER_PREFIX", "app"),
		MinConfidence:  getenvFloat("XCPROBE_MIN_CONFIDENCE", 0.7),
		StrictEvidence: getenvBool("XCPROBE_STRICT_EVIDENCE", false),
		RenderDocker:   getenvBool("XCPROBE_RENDER_DOCKER", true),
	}

	if cfg.BundlePath == "" {
		return nil, fmt.Errorf("xcconfig: XCPROBE_BUNDLE is required")
	}
	return cfg, nil
}
