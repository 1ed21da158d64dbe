// Package config provides configuration loading for hookd.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. It covers the manifest location, hook runner limits, output
// scrubbing, logging, and OpenTelemetry export settings.
package config

import (
	"errors"
	"fmt"
)

// Config holds the complete hookd configuration.
type Config struct {
	Manifest      ManifestConfig      `koanf:"manifest"`
	Runner        RunnerConfig        `koanf:"runner"`
	Scrub         ScrubConfig         `koanf:"scrub"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ManifestConfig locates the hook manifest.
type ManifestConfig struct {
	Path string `koanf:"path"` // default: hooks.yaml in the working directory
}

// RunnerConfig holds hook subprocess limits and the failure policy.
type RunnerConfig struct {
	DefaultTimeout Duration `koanf:"default_timeout"`  // per-hook budget when the manifest sets none
	MaxOutputBytes int      `koanf:"max_output_bytes"` // stdout/stderr capture cap, per stream
	SkipOnFailure  bool     `koanf:"skip_on_failure"`  // abort a phase on the first failure or unmet dependency
	CacheResults   bool     `koanf:"cache_results"`    // reuse prior successes within one process
}

// ScrubConfig controls secret redaction of captured hook output.
type ScrubConfig struct {
	Enabled       bool   `koanf:"enabled"`
	ConfigPath    string `koanf:"config_path"`    // project .gitleaks.toml with [allowlist] sections
	AllowlistPath string `koanf:"allowlist_path"` // user-level allowlist TOML
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// ObservabilityConfig holds OpenTelemetry export configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool     `koanf:"enable_telemetry"`
	ServiceName     string   `koanf:"service_name"`
	OTLPEndpoint    string   `koanf:"otlp_endpoint"`
	Protocol        string   `koanf:"protocol"` // grpc or http/protobuf
	Insecure        bool     `koanf:"insecure"`
	AuthHeader      Secret   `koanf:"auth_header"` // optional Authorization header for the collector
	MetricInterval  Duration `koanf:"metric_interval"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Validate validates the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if c.Manifest.Path == "" {
		return errors.New("manifest path cannot be empty")
	}

	if c.Runner.DefaultTimeout.Duration() <= 0 {
		return errors.New("runner default timeout must be positive")
	}
	if c.Runner.MaxOutputBytes <= 0 {
		return errors.New("runner max output bytes must be positive")
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}

	if c.Observability.EnableTelemetry {
		if c.Observability.ServiceName == "" {
			return errors.New("service name required when telemetry is enabled")
		}
		switch c.Observability.Protocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("invalid observability protocol: %q (must be grpc or http/protobuf)", c.Observability.Protocol)
		}
		if c.Observability.OTLPEndpoint == "" {
			return errors.New("otlp endpoint required when telemetry is enabled")
		}
	}

	return nil
}
