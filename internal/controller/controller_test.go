// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/researchops/opsmon/monitor"
	"github.com/researchops/opsmon/objectstore"
	"github.com/researchops/opsmon/sink"
)

func testConfig(t *testing.T) *Config {
	return &Config{
		LogDir:            t.TempDir(),
		CompositeInterval: 50 * time.Millisecond,
		ResourceInterval:  50 * time.Millisecond,
		TransferInterval:  50 * time.Millisecond,
		ProbeInterval:     time.Hour,
		ProbeSize:         1024,
		JoinTimeout:       5 * time.Second,
	}
}

func TestControllerStart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Snapshot = true
	cfg.MetricsAddr = "127.0.0.1:0"

	store, err := objectstore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctlr := New(cfg, WithStore(store), WithPrometheusRegistry(prometheus.NewRegistry()))
	require.NoError(t, ctlr.Start(context.Background()))

	root := ctlr.Root()
	require.NotNil(t, root)
	assert.Equal(t, monitor.Running, root.State())
	assert.Equal(t, []string{RootName}, ctlr.Registry().Names())

	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "resource", children[0].Name())
	assert.Equal(t, "transfer", children[1].Name())

	snapshot := filepath.Join(cfg.LogDir, RootName, monitor.SnapshotFileName)
	require.Eventually(t, func() bool {
		_, err := os.Stat(snapshot)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	require.NotEmpty(t, ctlr.MetricsAddr())
	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ctlr.MetricsAddr() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return strings.Contains(body, "opsmon_children_total")
	}, 5*time.Second, 20*time.Millisecond)
	assert.Contains(t, body, `monitor="opsmon"`)

	require.NoError(t, ctlr.Shutdown())
	assert.Equal(t, monitor.Stopped, root.State())
	for _, child := range children {
		assert.Equal(t, monitor.Stopped, child.State(), child.Name())
	}

	events, err := sink.ReadEvents(ctlr.EventFile().Path())
	require.NoError(t, err)
	require.NotEmpty(t, events)
	names := map[string]bool{}
	for _, e := range events {
		names[e.Name] = true
	}
	assert.True(t, names["opsmon/children_total"])
}

func TestControllerOnlyEnvironment(t *testing.T) {
	cfg := testConfig(t)
	cfg.DisableResource = true
	cfg.DisableTransfer = true

	ctlr := New(cfg)
	require.NoError(t, ctlr.Start(context.Background()))
	assert.Empty(t, ctlr.Root().Children())
	assert.Empty(t, ctlr.MetricsAddr())
	require.NoError(t, ctlr.Shutdown())
}

func TestControllerMeterProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.DisableResource = true
	cfg.DisableTransfer = true

	reader := sdkmetric.NewManualReader()
	ctlr := New(cfg, WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))
	require.NoError(t, ctlr.Start(context.Background()))

	require.Eventually(t, func() bool {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(context.Background(), &rm); err != nil {
			return false
		}
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if m.Name == "children_total" {
					return true
				}
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)
	require.NoError(t, ctlr.Shutdown())
}

func TestControllerOTLPPipeline(t *testing.T) {
	cfg := testConfig(t)
	cfg.DisableResource = true
	cfg.DisableTransfer = true
	cfg.OTLPEndpoint = "127.0.0.1:4317"
	cfg.OTLPInterval = time.Hour
	cfg.OTLPDisableTLS = true

	ctlr := New(cfg)
	require.NoError(t, ctlr.Start(context.Background()))
	require.NotNil(t, ctlr.sdkProvider)
	require.NotNil(t, ctlr.otlpConn)
	assert.Same(t, ctlr.sdkProvider, ctlr.meterProvider)

	// Nothing listens on the endpoint, so the final export may fail.
	_ = ctlr.Shutdown()
	assert.Equal(t, monitor.Stopped, ctlr.Root().State())
}

func TestControllerWithoutMeterProvider(t *testing.T) {
	ctlr := New(testConfig(t))
	assert.Nil(t, ctlr.otelSink("resource"))
}

func TestControllerBadStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.DisableResource = true
	cfg.StoreURL = "gs://bucket"

	ctlr := New(cfg)
	require.Error(t, ctlr.Start(context.Background()))
	require.NoError(t, ctlr.Shutdown())
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		modify  func(cfg *Config)
		wantErr bool
	}{
		"valid":           {modify: func(*Config) {}},
		"zero interval":   {modify: func(cfg *Config) { cfg.ResourceInterval = 0 }, wantErr: true},
		"negative join":   {modify: func(cfg *Config) { cfg.JoinTimeout = -time.Second }, wantErr: true},
		"zero probe size": {modify: func(cfg *Config) { cfg.ProbeSize = 0 }, wantErr: true},
		"empty log dir":   {modify: func(cfg *Config) { cfg.LogDir = "" }, wantErr: true},
		"invalid store":   {modify: func(cfg *Config) { cfg.StoreURL = "s3://%zz" }, wantErr: true},
		"otlp without interval": {modify: func(cfg *Config) {
			cfg.OTLPEndpoint = "localhost:4317"
		}, wantErr: true},
		"all monitors disabled": {modify: func(cfg *Config) {
			cfg.DisableResource = true
			cfg.DisableTransfer = true
		}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.modify(cfg)
			err := cfg.Validate()
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var exitErr ErrorWithExitCode
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, ExitParseError, exitErr.Code())
		})
	}
}
