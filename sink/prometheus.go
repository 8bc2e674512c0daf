// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sink // import "github.com/researchops/opsmon/sink"

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/researchops/opsmon/metrics"
)

// PrometheusOptions configures a Prometheus sink.
type PrometheusOptions struct {
	// Namespace is prepended to every metric name.
	Namespace string
	// Monitor is added as constant label "monitor" to every gauge.
	Monitor string
}

// Prometheus sets a gauge per metric name on a Prometheus registry. Several
// sinks may share a registry as long as their monitor labels differ.
type Prometheus struct {
	reg  prometheus.Registerer
	opts PrometheusOptions

	mu     sync.Mutex
	gauges map[string]prometheus.Gauge
}

var _ MetricSink = (*Prometheus)(nil)

// NewPrometheus returns a sink registering its gauges on reg. A nil reg
// selects prometheus.DefaultRegisterer.
func NewPrometheus(reg prometheus.Registerer, opts PrometheusOptions) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		reg:    reg,
		opts:   opts,
		gauges: make(map[string]prometheus.Gauge),
	}
}

func (p *Prometheus) gauge(name string) (prometheus.Gauge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.gauges[name]; ok {
		return g, nil
	}

	help := name
	if md, ok := metrics.Lookup(name); ok && md.Description != "" {
		help = md.Description
	}
	gopts := prometheus.GaugeOpts{
		Namespace: p.opts.Namespace,
		Name:      name,
		Help:      help,
	}
	if p.opts.Monitor != "" {
		gopts.ConstLabels = prometheus.Labels{"monitor": p.opts.Monitor}
	}

	g := prometheus.NewGauge(gopts)
	if err := p.reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("registering gauge %s: %w", name, err)
		}
		existing, ok := are.ExistingCollector.(prometheus.Gauge)
		if !ok {
			return nil, fmt.Errorf("%s is registered with a different type", name)
		}
		g = existing
	}
	p.gauges[name] = g
	return g, nil
}

func (p *Prometheus) Write(name string, value float64, _ int64) error {
	g, err := p.gauge(name)
	if err != nil {
		return err
	}
	g.Set(value)
	return nil
}
