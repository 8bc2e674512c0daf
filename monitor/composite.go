// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor // import "github.com/researchops/opsmon/monitor"

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"

	"github.com/researchops/opsmon/metrics"
	"github.com/researchops/opsmon/metrics/agentmetrics"
	"github.com/researchops/opsmon/sink"
)

// Composite is a Monitor owning child monitors. Its own sampling loop only
// reports environment metrics; children record and publish independently.
type Composite struct {
	*Base

	mu       sync.Mutex
	children []Monitor

	// env and agent are only used by the collector.
	env   Collector
	agent *agentmetrics.Sampler
}

var _ Monitor = (*Composite)(nil)

// CompositeOption configures a Composite.
type CompositeOption func(*Composite)

// WithEnvironment replaces the host environment collector.
func WithEnvironment(env Collector) CompositeOption {
	return func(c *Composite) { c.env = env }
}

// NewComposite returns an idle Composite without children.
func NewComposite(cfg Config, snk sink.MetricSink, opts ...CompositeOption) (*Composite, error) {
	c := &Composite{env: collectHost}
	for _, opt := range opts {
		opt(c)
	}
	base, err := New(cfg, snk, c.collect)
	if err != nil {
		return nil, err
	}
	c.Base = base

	if c.agent, err = agentmetrics.NewSampler(); err != nil {
		c.log.Warnf("Process metrics are unavailable: %v", err)
	}
	return c, nil
}

// treeMu guards the parent links of all monitors. A single lock keeps two
// concurrent AddChild calls from closing a cycle.
var treeMu sync.Mutex

// baseProvider is implemented by every monitor embedding *Base.
type baseProvider interface {
	monitorBase() *Base
}

// AddChild adds m to the owned children. Children must be added before the
// composite is started. A monitor built on Base can only be owned by one
// composite, and adding an ancestor of c is rejected.
func (c *Composite) AddChild(m Monitor) error {
	if m == nil {
		return errors.New("child must not be nil")
	}

	treeMu.Lock()
	defer treeMu.Unlock()

	var mb *Base
	if bp, ok := m.(baseProvider); ok {
		mb = bp.monitorBase()
	}
	if mb != nil {
		for p := c; p != nil; p = p.parent {
			if p.Base == mb {
				return fmt.Errorf("adding %s to %s would create a cycle", m.Name(), c.Name())
			}
		}
		if mb.parent != nil {
			return fmt.Errorf("%s is already a child of %s", m.Name(), mb.parent.Name())
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.children, m) {
		return fmt.Errorf("%s is already a child of %s", m.Name(), c.Name())
	}
	if c.State() != Idle && c.State() != Stopped {
		c.log.Warnf("Adding child %s to a running composite", m.Name())
	}
	if mb != nil {
		mb.parent = c
	}
	c.children = append(c.children, m)
	return nil
}

// Children returns the children in insertion order.
func (c *Composite) Children() []Monitor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.children)
}

// Start starts the composite itself and then every child. A child failing to
// start is logged and skipped. Start returns true only if everything started.
func (c *Composite) Start() bool {
	if !c.Base.Start() {
		return false
	}
	ok := true
	for _, child := range c.Children() {
		if !c.startChild(child) {
			ok = false
		}
	}
	return ok
}

func (c *Composite) startChild(child Monitor) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("Starting child %s panicked: %v", child.Name(), r)
			ok = false
		}
	}()
	if !child.Start() {
		c.log.Warnf("Failed to start child %s", child.Name())
		return false
	}
	return true
}

func (c *Composite) Stop() bool {
	return c.Shutdown() == nil
}

// Shutdown stops the composite itself and then every child in insertion
// order. All errors are joined.
func (c *Composite) Shutdown() error {
	errs := []error{c.Base.Shutdown()}
	for _, child := range c.Children() {
		errs = append(errs, c.stopChild(child))
	}
	return errors.Join(errs...)
}

func (c *Composite) stopChild(child Monitor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stopping child %s: %w", child.Name(), panicError{value: r})
			c.log.Error(err)
		}
	}()
	return child.Shutdown()
}

func (c *Composite) collect(ctx context.Context, b *Batch) error {
	if c.env != nil {
		if err := c.env(ctx, b); err != nil {
			b.SetError("environment", err)
		}
	}

	children := c.Children()
	running := 0
	for _, child := range children {
		if child.State() == Running {
			running++
		}
	}
	b.SetNumber(metrics.NameChildrenTotal, float64(len(children)))
	b.SetNumber(metrics.NameChildrenRunning, float64(running))

	if c.agent != nil {
		stats, err := c.agent.Sample()
		if err != nil {
			b.SetError("agent", err)
			return nil
		}
		b.SetNumber(metrics.NameAgentGoRoutines, float64(stats.GoRoutines))
		b.SetNumber(metrics.NameAgentHeapAlloc, float64(stats.HeapAlloc))
		b.SetNumber(metrics.NameAgentUTime, float64(stats.UTimeMs))
		b.SetNumber(metrics.NameAgentSTime, float64(stats.STimeMs))
	}
	return nil
}

// collectHost reports the host identity, uptime and load.
func collectHost(ctx context.Context, b *Batch) error {
	var errs []error
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		b.SetText("system_hostname", info.Hostname)
		b.SetText("platform", fmt.Sprintf("%s %s (%s/%s)",
			info.Platform, info.PlatformVersion, info.OS, runtime.GOARCH))
		b.SetNumber(metrics.NameHostUptime, float64(info.Uptime))
	}

	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		b.SetNumber(metrics.NameLoadAvg1, avg.Load1)
		b.SetNumber(metrics.NameLoadAvg5, avg.Load5)
		b.SetNumber(metrics.NameLoadAvg15, avg.Load15)
	}
	return errors.Join(errs...)
}
