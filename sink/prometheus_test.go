// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchops/opsmon/metrics"
)

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	resource := NewPrometheus(reg, PrometheusOptions{Namespace: "opsmon", Monitor: "resource"})
	transfer := NewPrometheus(reg, PrometheusOptions{Namespace: "opsmon", Monitor: "transfer"})

	require.NoError(t, resource.Write(metrics.NameCPUPercent, 12.5, 1))
	require.NoError(t, resource.Write(metrics.NameCPUPercent, 42, 2))
	require.NoError(t, transfer.Write(metrics.NameNetBytesSent, 100, 1))
	require.NoError(t, resource.Write(metrics.NameNetBytesSent, 200, 1))

	md, ok := metrics.Lookup(metrics.NameCPUPercent)
	require.True(t, ok)
	expected := `
# HELP opsmon_cpu_percent ` + md.Description + `
# TYPE opsmon_cpu_percent gauge
opsmon_cpu_percent{monitor="resource"} 42
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"opsmon_cpu_percent"))

	n, err := testutil.GatherAndCount(reg, "opsmon_net_bytes_sent")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrometheusSharedGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewPrometheus(reg, PrometheusOptions{Monitor: "m"})
	b := NewPrometheus(reg, PrometheusOptions{Monitor: "m"})

	require.NoError(t, a.Write("custom_value", 1, 0))
	require.NoError(t, b.Write("custom_value", 2, 0))

	assert.InDelta(t, 2, testutil.ToFloat64(a.gauges["custom_value"]), 1e-9)
}

func TestPrometheusEmptyName(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry(), PrometheusOptions{})
	assert.Error(t, p.Write("", 1, 0))
}
