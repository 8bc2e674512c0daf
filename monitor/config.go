// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor // import "github.com/researchops/opsmon/monitor"

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultSamplingInterval is used by DefaultConfig.
	DefaultSamplingInterval = 60 * time.Second
	// DefaultJoinTimeout bounds how long Stop waits for goroutines to exit.
	DefaultJoinTimeout = 5 * time.Second

	maxDefaultCollectTimeout = 30 * time.Second
)

// Config is the per-monitor configuration. It is immutable once a monitor was
// constructed from it.
type Config struct {
	// Name identifies the monitor. It is lower-cased on construction.
	Name string
	// SamplingInterval is the target time between the start of two samples.
	SamplingInterval time.Duration
	// Enabled monitors can be started. Start on a disabled monitor is a no-op.
	Enabled bool
	// LogDir is created on construction if not empty.
	LogDir string
	// JoinTimeout bounds Stop. Zero selects DefaultJoinTimeout.
	JoinTimeout time.Duration
	// CollectTimeout bounds a single GetMetrics call. Zero selects the sampling
	// interval, capped at 30s.
	CollectTimeout time.Duration
}

// DefaultConfig returns an enabled configuration with default values for name.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		SamplingInterval: DefaultSamplingInterval,
		Enabled:          true,
		LogDir:           filepath.Join("logs", strings.ToLower(name)),
	}
}

// Validate checks the invariants of cfg.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Name) == "" {
		return &ConfigurationError{Field: "name", Reason: "must not be empty"}
	}
	if cfg.SamplingInterval <= 0 {
		return &ConfigurationError{Field: "sampling_interval",
			Reason: "must be greater than zero, got " + cfg.SamplingInterval.String()}
	}
	if cfg.JoinTimeout < 0 {
		return &ConfigurationError{Field: "join_timeout",
			Reason: "must not be negative, got " + cfg.JoinTimeout.String()}
	}
	if cfg.CollectTimeout < 0 {
		return &ConfigurationError{Field: "collect_timeout",
			Reason: "must not be negative, got " + cfg.CollectTimeout.String()}
	}
	return nil
}

// normalize validates cfg, applies defaults and creates LogDir.
func (cfg Config) normalize() (Config, error) {
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.Name = strings.ToLower(strings.TrimSpace(cfg.Name))
	if cfg.JoinTimeout == 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}
	if cfg.CollectTimeout == 0 {
		cfg.CollectTimeout = min(cfg.SamplingInterval, maxDefaultCollectTimeout)
	}
	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o750); err != nil {
			return Config{}, &ConfigurationError{Field: "log_dir", Reason: err.Error()}
		}
	}
	return cfg, nil
}
