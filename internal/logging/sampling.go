// internal/logging/sampling.go
package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with level-aware sampling.
// Error and above are never sampled. Each level below error samples
// independently using its configured rate; levels without a configured
// rate pass through unsampled.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	// Errors and above always pass through
	cores := []zapcore.Core{&minLevelCore{Core: core, min: zapcore.ErrorLevel}}

	for lvl := TraceLevel; lvl < zapcore.ErrorLevel; lvl++ {
		levelCore := &exactLevelCore{Core: core, level: lvl}

		rate, ok := cfg.Levels[lvl]
		if !ok {
			cores = append(cores, levelCore)
			continue
		}

		cores = append(cores, zapcore.NewSamplerWithOptions(
			levelCore,
			cfg.Tick.Duration(),
			rate.Initial,
			rate.Thereafter,
		))
	}

	return zapcore.NewTee(cores...)
}

// exactLevelCore passes through entries of exactly one level.
// Each sampled level owns one so sampler counters never mix levels.
type exactLevelCore struct {
	zapcore.Core
	level zapcore.Level
}

func (c *exactLevelCore) Enabled(lvl zapcore.Level) bool {
	return lvl == c.level && c.Core.Enabled(lvl)
}

func (c *exactLevelCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that preserves level filtering.
func (c *exactLevelCore) With(fields []zapcore.Field) zapcore.Core {
	return &exactLevelCore{
		Core:  c.Core.With(fields),
		level: c.level,
	}
}

// minLevelCore passes through entries at or above a minimum level.
type minLevelCore struct {
	zapcore.Core
	min zapcore.Level
}

func (c *minLevelCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && c.Core.Enabled(lvl)
}

func (c *minLevelCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that preserves level filtering.
func (c *minLevelCore) With(fields []zapcore.Field) zapcore.Core {
	return &minLevelCore{
		Core: c.Core.With(fields),
		min:  c.min,
	}
}
