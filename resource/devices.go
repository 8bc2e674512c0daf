// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package resource // import "github.com/researchops/opsmon/resource"

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/researchops/opsmon/metrics"
	"github.com/researchops/opsmon/monitor"
	"github.com/researchops/opsmon/telemetry"
)

// Device status values.
const (
	DeviceAvailable    = "available"
	DeviceNotAvailable = "not_available"
	DeviceError        = "error"
)

// DeviceConfig describes how accelerator devices are found and measured.
type DeviceConfig struct {
	// Glob matches the device nodes.
	Glob string
	// MetricType and ResourceType select the utilization series.
	MetricType   string
	ResourceType string
	Lookback     time.Duration
	// FallbackCommand is run when no telemetry is available. Lines of its
	// output whose key contains FallbackFilter are reported.
	FallbackCommand []string
	FallbackFilter  string
	CommandTimeout  time.Duration
}

// DefaultDeviceConfig returns the configuration for TPU hosts.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Glob:            "/dev/accel*",
		MetricType:      "tpu.googleapis.com/util/duty_cycle",
		ResourceType:    "tpu_worker",
		Lookback:        5 * time.Minute,
		FallbackCommand: []string{"lscpu"},
		FallbackFilter:  "tpu",
		CommandTimeout:  5 * time.Second,
	}
}

func (c DeviceConfig) withDefaults() DeviceConfig {
	def := DefaultDeviceConfig()
	if c.Glob == "" {
		c.Glob = def.Glob
	}
	if c.MetricType == "" {
		c.MetricType = def.MetricType
	}
	if c.Lookback <= 0 {
		c.Lookback = def.Lookback
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = def.CommandTimeout
	}
	return c
}

type deviceProbe struct {
	cfg       DeviceConfig
	telemetry TelemetrySource
	log       *log.Entry
}

func (p *deviceProbe) collect(ctx context.Context, b *monitor.Batch) {
	matches, err := filepath.Glob(p.cfg.Glob)
	if err != nil {
		b.SetText("device_status", DeviceError)
		b.SetError("device", err)
		return
	}
	b.SetNumber(metrics.NameDeviceCount, float64(len(matches)))
	if len(matches) == 0 {
		b.SetText("device_status", DeviceNotAvailable)
		return
	}
	b.SetText("device_status", DeviceAvailable)

	if p.collectTelemetry(ctx, b) {
		return
	}
	if err := p.collectFallback(ctx, b); err != nil {
		b.SetError("device_utilization", err)
	}
}

// collectTelemetry adds the latest duty cycle of every series. It returns
// false if no series was found.
func (p *deviceProbe) collectTelemetry(ctx context.Context, b *monitor.Batch) bool {
	if p.telemetry == nil || !p.telemetry.IsAvailable() {
		return false
	}
	series := p.telemetry.GetMetricData(ctx, p.cfg.MetricType, p.cfg.ResourceType, p.cfg.Lookback)

	var sum float64
	n := 0
	for key, points := range series {
		latest, ok := latestFinite(points)
		if !ok {
			continue
		}
		b.SetNumber("device_duty_cycle_"+metricKey(key), latest)
		sum += latest
		n++
	}
	if n == 0 {
		return false
	}
	b.SetNumber(metrics.NameDeviceAvgDutyCycle, sum/float64(n))
	return true
}

// latestFinite returns the newest value of points that is neither NaN nor
// infinite. Backends report NaN for steps without data.
func latestFinite(points []telemetry.Point) (float64, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		if v := points[i].Value; !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v, true
		}
	}
	return 0, false
}

func (p *deviceProbe) collectFallback(ctx context.Context, b *monitor.Batch) error {
	if len(p.cfg.FallbackCommand) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.cfg.FallbackCommand[0], p.cfg.FallbackCommand[1:]...)
	cmd.WaitDelay = p.cfg.CommandTimeout
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with %d", p.cfg.FallbackCommand[0], exitErr.ExitCode())
		}
		return err
	}
	for key, value := range parseKeyValues(out, p.cfg.FallbackFilter) {
		name := "device_" + metricKey(key)
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			b.SetNumber(name, f)
		} else {
			b.SetText(name, value)
		}
	}
	return nil
}

// parseKeyValues returns the "key: value" lines of out whose key contains
// filter, case-insensitive. Keys are lower-cased with blanks replaced by '_'.
func parseKeyValues(out []byte, filter string) map[string]string {
	filter = strings.ToLower(filter)
	result := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" || !strings.Contains(key, filter) {
			continue
		}
		result[strings.Join(strings.Fields(key), "_")] = strings.TrimSpace(value)
	}
	return result
}

// metricKey turns a series key into a metric name suffix.
func metricKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, key)
}
