// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package controller wires the monitors of the opsmon daemon.
package controller // import "github.com/researchops/opsmon/internal/controller"

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc"

	"github.com/researchops/opsmon/monitor"
	"github.com/researchops/opsmon/objectstore"
	"github.com/researchops/opsmon/resource"
	"github.com/researchops/opsmon/sink"
	"github.com/researchops/opsmon/telemetry"
	"github.com/researchops/opsmon/transfer"
)

// RootName is the name of the composite owning all monitors.
const RootName = "opsmon"

const metricsNamespace = "opsmon"

// Controller is an instance that runs, manages and stops the monitors.
type Controller struct {
	config *Config

	store        objectstore.Store
	telemetry    resource.TelemetrySource
	promRegistry *prometheus.Registry
	// meterProvider receives the OTel metrics. sdkProvider and otlpConn are
	// set if the controller created the pipeline itself.
	meterProvider metric.MeterProvider
	sdkProvider   *sdkmetric.MeterProvider
	otlpConn      *grpc.ClientConn

	registry *monitor.Registry
	root     *monitor.Composite
	events   *sink.EventFile
	server   *http.Server
	// metricsAddr is the address the server listens on.
	metricsAddr string
}

// New creates a new controller.
func New(cfg *Config, opts ...Option) *Controller {
	c := &Controller{
		config:   cfg,
		registry: monitor.NewRegistry(),
	}
	for _, opt := range opts {
		c = opt.applyOption(c)
	}
	if c.promRegistry == nil {
		c.promRegistry = prometheus.NewRegistry()
		c.promRegistry.MustRegister(collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return c
}

// Registry returns the registry holding the top-level monitors.
func (c *Controller) Registry() *monitor.Registry {
	return c.registry
}

// Root returns the composite owning all monitors. It is nil before Start.
func (c *Controller) Root() *monitor.Composite {
	return c.root
}

// EventFile returns the file all metrics are recorded to. It is nil before
// Start.
func (c *Controller) EventFile() *sink.EventFile {
	return c.events
}

// Start builds and starts the monitors.
// The controller should only be started once.
func (c *Controller) Start(ctx context.Context) error {
	var err error
	if err = c.setupMeterProvider(ctx); err != nil {
		return err
	}
	if c.events, err = sink.NewEventFile(c.config.LogDir); err != nil {
		return fmt.Errorf("failed to create event file: %w", err)
	}
	log.Infof("Recording metrics to %s", c.events.Path())

	if c.root, err = monitor.NewComposite(c.monitorConfig(RootName, c.config.CompositeInterval),
		c.sinkFor(RootName)); err != nil {
		return err
	}

	if !c.config.DisableResource {
		if err = c.addResource(ctx); err != nil {
			return err
		}
	}
	if !c.config.DisableTransfer {
		if err = c.addTransfer(ctx); err != nil {
			return err
		}
	}

	if c.config.Snapshot {
		for _, m := range append(c.root.Children(), monitor.Monitor(c.root)) {
			m.Subscribe(monitor.SnapshotWriter(
				filepath.Join(m.Config().LogDir, monitor.SnapshotFileName)))
		}
	}

	if err = c.registry.Register(c.root); err != nil {
		return err
	}
	report := c.registry.StartAll()
	log.Infof("Started %d monitors, %d failed", len(report.Started), len(report.Failed))
	if len(report.Started) == 0 {
		return errors.New("no monitor could be started")
	}
	for _, child := range c.root.Children() {
		log.Infof("Monitor %s is %s", child.Name(), child.State())
	}

	if c.config.MetricsAddr != "" {
		if err = c.serveMetrics(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) monitorConfig(name string, interval time.Duration) monitor.Config {
	cfg := monitor.DefaultConfig(name)
	cfg.SamplingInterval = interval
	cfg.LogDir = filepath.Join(c.config.LogDir, name)
	cfg.JoinTimeout = c.config.JoinTimeout
	return cfg
}

// sinkFor returns the sink of one monitor. Event names are prefixed with
// the monitor name, Prometheus and OTel series carry it as label.
func (c *Controller) sinkFor(name string) sink.MetricSink {
	sinks := []sink.MetricSink{
		sink.WithPrefix(c.events, name+"/"),
		sink.NewPrometheus(c.promRegistry, sink.PrometheusOptions{
			Namespace: metricsNamespace,
			Monitor:   name,
		}),
	}
	if s := c.otelSink(name); s != nil {
		sinks = append(sinks, s)
	}
	return sink.Multi(sinks...)
}

func (c *Controller) addResource(ctx context.Context) error {
	opts := resource.DefaultOptions()
	opts.Telemetry = c.telemetry
	if opts.Telemetry == nil && c.config.PrometheusAddr != "" {
		opts.Telemetry = telemetry.New(ctx, telemetry.Config{Address: c.config.PrometheusAddr})
	}
	m, err := resource.New(c.monitorConfig("resource", c.config.ResourceInterval),
		c.sinkFor("resource"), opts)
	if err != nil {
		return err
	}
	return c.root.AddChild(m)
}

func (c *Controller) addTransfer(ctx context.Context) error {
	store := c.store
	if store == nil && c.config.StoreURL != "" {
		var err error
		if store, err = objectstore.Open(ctx, c.config.StoreURL); err != nil {
			return fmt.Errorf("failed to open object store: %w", err)
		}
	}
	m, err := transfer.New(c.monitorConfig("transfer", c.config.TransferInterval),
		c.sinkFor("transfer"), store, transfer.Options{
			ProbeInterval:  c.config.ProbeInterval,
			ProbeSizeBytes: c.config.ProbeSize,
		})
	if err != nil {
		return err
	}
	return c.root.AddChild(m)
}

func (c *Controller) serveMetrics() error {
	ln, err := net.Listen("tcp", c.config.MetricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.config.MetricsAddr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.promRegistry, promhttp.HandlerOpts{}))
	c.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	c.metricsAddr = ln.Addr().String()
	go func() {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Serving metrics on %s failed: %v", ln.Addr(), err)
		}
	}()
	log.Infof("Serving metrics on http://%s/metrics", ln.Addr())
	return nil
}

// MetricsAddr returns the address metrics are served on, if any.
func (c *Controller) MetricsAddr() string {
	return c.metricsAddr
}

// Shutdown stops the controller
func (c *Controller) Shutdown() error {
	log.Info("Stop processing ...")
	var errs []error

	report := c.registry.StopAll()
	log.Infof("Stopped %d monitors, %d failed", len(report.Stopped), len(report.Failed))
	if report.Err != nil {
		errs = append(errs, report.Err)
	}

	if c.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, c.server.Shutdown(ctx))
	}
	if c.sdkProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, c.shutdownMeterProvider(ctx))
	}
	if c.events != nil {
		errs = append(errs, c.events.Close())
	}
	return errors.Join(errs...)
}
