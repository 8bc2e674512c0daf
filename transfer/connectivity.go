// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package transfer // import "github.com/researchops/opsmon/transfer"

import (
	"context"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/researchops/opsmon/metrics"
	"github.com/researchops/opsmon/monitor"
)

// Endpoint is a TCP service whose reachability is checked on every sample.
type Endpoint struct {
	// Name is used in the metric names and must be a valid name fragment.
	Name    string
	Address string
}

// DefaultEndpoints returns the services needed by training hosts.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		{Name: "gcs", Address: "storage.googleapis.com:443"},
		{Name: "googleapis", Address: "www.googleapis.com:443"},
		{Name: "pypi", Address: "pypi.org:443"},
		{Name: "github", Address: "github.com:443"},
		{Name: "tensorflow", Address: "tensorflow.org:443"},
	}
}

// checkConnectivity dials all endpoints concurrently.
func checkConnectivity(ctx context.Context, endpoints []Endpoint, timeout time.Duration,
	b *monitor.Batch) {
	latencies := make([]time.Duration, len(endpoints))
	errs := make([]error, len(endpoints))

	var g errgroup.Group
	for i, ep := range endpoints {
		g.Go(func() error {
			d := net.Dialer{Timeout: timeout}
			start := time.Now()
			conn, err := d.DialContext(ctx, "tcp", ep.Address)
			if err != nil {
				errs[i] = err
				return nil
			}
			latencies[i] = time.Since(start)
			conn.Close()
			return nil
		})
	}
	_ = g.Wait()

	available := 0
	for i, ep := range endpoints {
		prefix := "connectivity_" + ep.Name
		if errs[i] != nil {
			b.SetText(prefix+"_status", "unavailable")
			b.SetText(prefix+"_error", errs[i].Error())
			continue
		}
		available++
		b.SetText(prefix+"_status", "available")
		b.SetNumber(prefix+"_latency_ms", float64(latencies[i].Microseconds())/1000)
	}
	b.SetNumber(metrics.NameConnectivityAvailable, float64(available))
	b.SetNumber(metrics.NameConnectivityTotal, float64(len(endpoints)))
}
