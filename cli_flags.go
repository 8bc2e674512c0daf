// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"time"

	"github.com/peterbourgon/ff/v3"

	"github.com/researchops/opsmon/internal/controller"
)

const (
	// Default values for CLI flags
	defaultLogDir            = "logs"
	defaultCompositeInterval = 60 * time.Second
	defaultResourceInterval  = 60 * time.Second
	defaultTransferInterval  = 60 * time.Second
	defaultProbeInterval     = 30 * time.Minute
	defaultProbeSize         = 10 << 20
	defaultJoinTimeout       = 5 * time.Second
	defaultOTLPInterval      = 60 * time.Second

	envVarPrefix = "OPSMON"
)

// Help strings for command line arguments
var (
	logDirHelp            = "Directory for event files, snapshots and probe results."
	compositeIntervalHelp = "Sampling interval of the environment metrics."
	resourceIntervalHelp  = "Sampling interval of the host and device metrics."
	transferIntervalHelp  = "Sampling interval of the network and connectivity metrics."
	probeIntervalHelp     = "Time between two transfer probe rounds."
	probeSizeHelp         = "Size in bytes of a transfer probe object."
	storeHelp             = "Object store probed for transfer rates " +
		"(s3://bucket/prefix or file:///dir). Empty disables the probes."
	prometheusHelp = "Address of the Prometheus query API providing device " +
		"utilization (e.g. http://localhost:9090)."
	metricsAddrHelp     = "Listening address (e.g. localhost:9464) to serve the recorded metrics."
	otlpEndpointHelp    = "OTLP/gRPC endpoint (e.g. otel-collector:4317) receiving the metrics."
	otlpIntervalHelp    = "Time between two OTLP metric exports."
	otlpDisableTLSHelp  = "Disable encryption of the OTLP connection."
	pprofHelp           = "Listening address (e.g. localhost:6060) to serve pprof information."
	disableResourceHelp = "Do not run the resource monitor."
	disableTransferHelp = "Do not run the transfer monitor."
	joinTimeoutHelp     = "Maximum time to wait for a monitor to stop."
	snapshotHelp        = "Write the latest metrics of every monitor to " +
		"<log-dir>/<monitor>/latest_metrics.json."
	verboseModeHelp = "Enable verbose logging and debugging capabilities."
	versionHelp     = "Show version."
)

func parseArgs(arguments []string) (*controller.Config, error) {
	var args controller.Config

	fs := flag.NewFlagSet("opsmon", flag.ContinueOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.DurationVar(&args.CompositeInterval, "composite-interval", defaultCompositeInterval,
		compositeIntervalHelp)

	fs.BoolVar(&args.DisableResource, "disable-resource", false, disableResourceHelp)
	fs.BoolVar(&args.DisableTransfer, "disable-transfer", false, disableTransferHelp)

	fs.DurationVar(&args.JoinTimeout, "join-timeout", defaultJoinTimeout, joinTimeoutHelp)

	fs.StringVar(&args.LogDir, "log-dir", defaultLogDir, logDirHelp)

	fs.StringVar(&args.MetricsAddr, "metrics-addr", "", metricsAddrHelp)

	fs.BoolVar(&args.OTLPDisableTLS, "otlp-disable-tls", false, otlpDisableTLSHelp)
	fs.StringVar(&args.OTLPEndpoint, "otlp-endpoint", "", otlpEndpointHelp)
	fs.DurationVar(&args.OTLPInterval, "otlp-interval", defaultOTLPInterval, otlpIntervalHelp)

	fs.StringVar(&args.PprofAddr, "pprof", "", pprofHelp)

	fs.DurationVar(&args.ProbeInterval, "probe-interval", defaultProbeInterval, probeIntervalHelp)
	fs.Int64Var(&args.ProbeSize, "probe-size", defaultProbeSize, probeSizeHelp)

	fs.StringVar(&args.PrometheusAddr, "prometheus", "", prometheusHelp)

	fs.DurationVar(&args.ResourceInterval, "resource-interval", defaultResourceInterval,
		resourceIntervalHelp)

	fs.BoolVar(&args.Snapshot, "snapshot", false, snapshotHelp)

	fs.StringVar(&args.StoreURL, "store", "", storeHelp)

	fs.DurationVar(&args.TransferInterval, "transfer-interval", defaultTransferInterval,
		transferIntervalHelp)

	fs.BoolVar(&args.VerboseMode, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&args.VerboseMode, "verbose", false, verboseModeHelp)
	fs.BoolVar(&args.Version, "version", false, versionHelp)

	fs.Usage = func() {
		fs.PrintDefaults()
	}

	args.Fs = fs

	return &args, ff.Parse(fs, arguments,
		ff.WithEnvVarPrefix(envVarPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		// This will ignore configuration file (only) options that the current
		// version does not recognize.
		ff.WithIgnoreUndefined(true),
		ff.WithAllowMissingConfigFile(true),
	)
}
