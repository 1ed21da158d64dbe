package main

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hookd/internal/config"
	"github.com/fyrsmithlabs/hookd/internal/logging"
	"github.com/fyrsmithlabs/hookd/internal/manifest"
	"github.com/fyrsmithlabs/hookd/internal/orchestrator"
	"github.com/fyrsmithlabs/hookd/internal/runner"
	"github.com/fyrsmithlabs/hookd/internal/scrub"
	"github.com/fyrsmithlabs/hookd/internal/telemetry"
)

// app bundles what every command wires up before touching the manifest:
// validated config with flag overrides applied, structured logging, and
// the telemetry runtime (a no-op instance when export is disabled).
type app struct {
	cfg *config.Config
	log *logging.Logger
	tel *telemetry.Telemetry
}

// newApp loads config and brings up logging and telemetry. The caller
// owns Close.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithFile(cfgFile)
	if err != nil {
		return nil, err
	}
	if manifestPath != "" {
		cfg.Manifest.Path = manifestPath
	}
	if debugMode {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
	}

	tel, err := buildTelemetry(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}

	log, err := buildLogger(cfg, tel)
	if err != nil {
		sctx, cancel := context.WithTimeout(ctx, cfg.Observability.ShutdownTimeout.Duration())
		_ = tel.Shutdown(sctx)
		cancel()
		return nil, fmt.Errorf("initializing logging: %w", err)
	}

	return &app{cfg: cfg, log: log, tel: tel}, nil
}

// Close flushes pending telemetry and log output. Call once, on exit.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Observability.ShutdownTimeout.Duration())
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.log.Warn(ctx, "telemetry shutdown incomplete", zap.Error(err))
	}
	_ = a.log.Sync()
}

// newOrchestrator assembles the scrubber, runner, and orchestrator for
// one manifest. Watch mode calls this again after every manifest
// reload, so hook definitions never go stale mid-loop.
func (a *app) newOrchestrator(m *manifest.Manifest) (*orchestrator.Orchestrator, error) {
	ropts := []runner.Option{
		runner.WithLogger(a.log),
		runner.WithWorkDir(filepath.Dir(a.cfg.Manifest.Path)),
		runner.WithDefaultTimeout(a.cfg.Runner.DefaultTimeout.Duration()),
		runner.WithMaxOutputBytes(a.cfg.Runner.MaxOutputBytes),
	}

	if a.cfg.Scrub.Enabled {
		allow, err := scrub.LoadAllowlists(a.cfg.Scrub.ConfigPath, a.cfg.Scrub.AllowlistPath)
		if err != nil {
			return nil, fmt.Errorf("loading scrub allowlists: %w", err)
		}
		scrubber, err := scrub.New(allow, scrub.WithLogger(a.log))
		if err != nil {
			return nil, fmt.Errorf("building output scrubber: %w", err)
		}
		ropts = append(ropts, runner.WithScrubber(scrubber))
	}

	oopts := []orchestrator.Option{
		orchestrator.WithLogger(a.log),
		orchestrator.WithSkipOnFailure(a.cfg.Runner.SkipOnFailure),
		orchestrator.WithCacheResults(a.cfg.Runner.CacheResults),
	}
	if a.cfg.Observability.EnableTelemetry {
		metrics, err := orchestrator.NewMetrics(a.tel.Meter(orchestrator.InstrumentationName))
		if err != nil {
			return nil, fmt.Errorf("initializing hook metrics: %w", err)
		}
		oopts = append(oopts, orchestrator.WithMetrics(metrics))
	}

	return orchestrator.New(m, runner.New(ropts...), oopts...), nil
}

// buildTelemetry maps the observability config section onto the
// telemetry runtime. Disabled export yields a valid no-op instance.
func buildTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	tcfg := telemetry.NewDefaultConfig()
	tcfg.Enabled = cfg.Observability.EnableTelemetry
	tcfg.ServiceName = cfg.Observability.ServiceName
	tcfg.ServiceVersion = version
	tcfg.Endpoint = cfg.Observability.OTLPEndpoint
	tcfg.Protocol = cfg.Observability.Protocol
	tcfg.Insecure = cfg.Observability.Insecure
	tcfg.AuthHeader = cfg.Observability.AuthHeader
	tcfg.Metrics.ExportInterval = cfg.Observability.MetricInterval
	tcfg.Shutdown.Timeout = cfg.Observability.ShutdownTimeout
	return telemetry.New(ctx, tcfg)
}

func buildLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	lcfg := logging.NewDefaultConfig()
	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	lcfg.Level = level
	lcfg.Format = cfg.Logging.Format
	return logging.NewLogger(lcfg, tel.LoggerProvider())
}
