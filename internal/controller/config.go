// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/researchops/opsmon/internal/controller"

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
)

// ExitParseError is the exit code for invalid arguments.
const ExitParseError = 2

// Config holds the daemon settings collected from flags, environment and
// configuration file.
type Config struct {
	LogDir string

	CompositeInterval time.Duration
	ResourceInterval  time.Duration
	TransferInterval  time.Duration
	ProbeInterval     time.Duration
	ProbeSize         int64
	JoinTimeout       time.Duration

	// StoreURL selects the object store probed by the transfer monitor.
	StoreURL string
	// PrometheusAddr is the query API used for device utilization.
	PrometheusAddr string
	// MetricsAddr serves the recorded metrics for scraping.
	MetricsAddr string
	PprofAddr   string

	// OTLPEndpoint receives the metrics over OTLP/gRPC. Empty disables the
	// export.
	OTLPEndpoint   string
	OTLPInterval   time.Duration
	OTLPDisableTLS bool

	DisableResource bool
	DisableTransfer bool
	Snapshot        bool

	VerboseMode bool
	Version     bool

	Fs *flag.FlagSet
}

// Dump visits all flag sets, and dumps them all to debug
// Used for verbose mode logging.
func (cfg *Config) Dump() {
	log.Debug("Config:")
	cfg.Fs.VisitAll(func(f *flag.Flag) {
		log.Debug(fmt.Sprintf("%s: %v", f.Name, f.Value))
	})
}

// Validate runs validations on the provided configuration, and returns errors
// if invalid values were provided. The errors carry ExitParseError.
func (cfg *Config) Validate() error {
	var errs []error
	for name, d := range map[string]time.Duration{
		"composite-interval": cfg.CompositeInterval,
		"resource-interval":  cfg.ResourceInterval,
		"transfer-interval":  cfg.TransferInterval,
		"probe-interval":     cfg.ProbeInterval,
		"join-timeout":       cfg.JoinTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if cfg.ProbeSize <= 0 {
		errs = append(errs, fmt.Errorf("probe-size must be positive, got %d", cfg.ProbeSize))
	}
	if cfg.LogDir == "" {
		errs = append(errs, errors.New("log-dir must not be empty"))
	}
	if cfg.StoreURL != "" {
		if _, err := url.Parse(cfg.StoreURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid store: %w", err))
		}
	}
	if cfg.OTLPEndpoint != "" && cfg.OTLPInterval <= 0 {
		errs = append(errs, fmt.Errorf("otlp-interval must be positive, got %s", cfg.OTLPInterval))
	}
	if cfg.DisableResource && cfg.DisableTransfer {
		log.Warn("All domain monitors are disabled, only the environment is monitored")
	}
	if err := errors.Join(errs...); err != nil {
		return ErrorWithExitCode{error: err, code: ExitParseError}
	}
	return nil
}
