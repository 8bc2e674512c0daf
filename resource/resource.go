// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package resource implements the monitor for host resources and attached
// accelerator devices.
package resource // import "github.com/researchops/opsmon/resource"

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/researchops/opsmon/metrics"
	"github.com/researchops/opsmon/metrics/cpumetrics"
	"github.com/researchops/opsmon/metrics/iometrics"
	"github.com/researchops/opsmon/metrics/netmetrics"
	"github.com/researchops/opsmon/monitor"
	"github.com/researchops/opsmon/sink"
	"github.com/researchops/opsmon/telemetry"
)

const bytesPerGB = 1 << 30

// TelemetrySource provides remote device series. *telemetry.Client
// implements it.
type TelemetrySource interface {
	IsAvailable() bool
	GetMetricData(ctx context.Context, metricType, resourceType string,
		lookback time.Duration) map[string][]telemetry.Point
}

var _ TelemetrySource = (*telemetry.Client)(nil)

// Options configures a Monitor. Start from DefaultOptions.
type Options struct {
	MonitorHost    bool
	MonitorDevices bool
	// DiskPath is the mount point whose usage is reported.
	DiskPath string
	// Telemetry is queried for device utilization. Nil disables it.
	Telemetry TelemetrySource
	Device    DeviceConfig

	// ProcStat and Diskstats override the /proc files read by the delta
	// samplers.
	ProcStat  string
	Diskstats string
	// NetCounters overrides the source of the interface counters.
	NetCounters netmetrics.ReadFunc
}

// DefaultOptions monitors host and devices.
func DefaultOptions() Options {
	return Options{
		MonitorHost:    true,
		MonitorDevices: true,
		DiskPath:       "/",
		Device:         DefaultDeviceConfig(),
	}
}

// Monitor reports host and device metrics.
type Monitor struct {
	*monitor.Base

	opts Options

	cpu     *cpumetrics.Sampler
	io      *iometrics.Sampler
	ioErr   error
	net     *netmetrics.Tracker
	devices *deviceProbe
}

// New returns an idle resource monitor.
func New(cfg monitor.Config, snk sink.MetricSink, opts Options) (*Monitor, error) {
	if opts.DiskPath == "" {
		opts.DiskPath = "/"
	}
	opts.Device = opts.Device.withDefaults()
	if opts.NetCounters == nil {
		opts.NetCounters = netmetrics.ReadHost
	}

	m := &Monitor{opts: opts}
	base, err := monitor.New(cfg, snk, m.collect)
	if err != nil {
		return nil, err
	}
	m.Base = base

	if opts.MonitorHost {
		if m.cpu, err = cpumetrics.NewSampler(opts.ProcStat); err != nil {
			m.Logger().Warnf("Falling back to gopsutil for CPU usage: %v", err)
		}
		if m.io, m.ioErr = iometrics.NewSampler(opts.Diskstats); m.ioErr != nil {
			m.Logger().Warnf("Disk I/O rates are unavailable: %v", m.ioErr)
		}
		m.net = netmetrics.NewTracker(opts.NetCounters)
	}
	if opts.MonitorDevices {
		m.devices = &deviceProbe{cfg: opts.Device, telemetry: opts.Telemetry, log: m.Logger()}
	}
	return m, nil
}

func (m *Monitor) collect(ctx context.Context, b *monitor.Batch) error {
	if m.opts.MonitorHost {
		m.collectHost(ctx, b)
	}
	if m.devices != nil {
		m.devices.collect(ctx, b)
	}
	return nil
}

func (m *Monitor) collectHost(ctx context.Context, b *monitor.Batch) {
	if hostname, err := os.Hostname(); err == nil {
		b.SetText("system_hostname", hostname)
	}

	if usage, err := m.cpuUsage(ctx); err != nil {
		b.SetError("cpu", err)
	} else {
		b.SetNumber(metrics.NameCPUPercent, usage)
	}
	b.SetNumber(metrics.NameCPUCount, float64(cpumetrics.CPUCount()))

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		b.SetError("memory", err)
	} else {
		b.SetNumber(metrics.NameMemoryTotalGB, float64(vm.Total)/bytesPerGB)
		b.SetNumber(metrics.NameMemoryUsedGB, float64(vm.Used)/bytesPerGB)
		b.SetNumber(metrics.NameMemoryPercent, vm.UsedPercent)
	}

	if du, err := disk.UsageWithContext(ctx, m.opts.DiskPath); err != nil {
		b.SetError("disk", err)
	} else {
		b.SetNumber(metrics.NameDiskTotalGB, float64(du.Total)/bytesPerGB)
		b.SetNumber(metrics.NameDiskUsedGB, float64(du.Used)/bytesPerGB)
		b.SetNumber(metrics.NameDiskPercent, du.UsedPercent)
	}

	if m.io == nil {
		b.SetError("disk_io", m.ioErr)
	} else if throughput, duration, err := m.io.Sample(time.Now()); err != nil {
		b.SetError("disk_io", err)
	} else {
		b.SetNumber(metrics.NameDiskIOBytesPerSec, float64(throughput))
		b.SetNumber(metrics.NameDiskIOTimeMsPerSec, float64(duration))
	}

	CollectNetwork(ctx, m.net, b)
}

func (m *Monitor) cpuUsage(ctx context.Context) (float64, error) {
	if m.cpu != nil {
		return m.cpu.Usage()
	}
	percent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percent) == 0 {
		return 0, errors.New("no CPU usage reported")
	}
	return percent[0], nil
}

// CollectNetwork adds the interface counters of t and, once a previous
// sample exists, the transfer rates.
func CollectNetwork(ctx context.Context, t *netmetrics.Tracker, b *monitor.Batch) {
	counters, rates, err := t.Sample(ctx)
	if err != nil {
		b.SetError("network", err)
		return
	}
	b.SetNumber(metrics.NameNetBytesSent, float64(counters.BytesSent))
	b.SetNumber(metrics.NameNetBytesRecv, float64(counters.BytesRecv))
	if rates == nil {
		return
	}
	b.SetNumber(metrics.NameNetSendBytesPerSec, rates.SendBytesPerSec)
	b.SetNumber(metrics.NameNetRecvBytesPerSec, rates.RecvBytesPerSec)
	b.SetNumber(metrics.NameNetSendRateMbps, rates.SendMbps())
	b.SetNumber(metrics.NameNetRecvRateMbps, rates.RecvMbps())
}
