// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sink // import "github.com/researchops/opsmon/sink"

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/researchops/opsmon/metrics"
	"github.com/researchops/opsmon/vc"
)

// InstrumentationName is the name of the meter used when none is given.
const InstrumentationName = "github.com/researchops/opsmon"

// OTelOptions configures an OTel sink.
type OTelOptions struct {
	// Monitor is added as attribute "monitor" to every measurement.
	Monitor string
}

// OTel records every write on a Float64Gauge named after the metric. Units and
// descriptions are taken from the metric catalog.
type OTel struct {
	meter metric.Meter
	opt   metric.RecordOption

	mu     sync.Mutex
	gauges map[string]metric.Float64Gauge
}

var _ MetricSink = (*OTel)(nil)

// NewOTel returns an OTel sink recording on meter. A nil meter selects the
// global meter provider.
func NewOTel(meter metric.Meter, opts OTelOptions) *OTel {
	if meter == nil {
		meter = otel.Meter(InstrumentationName,
			metric.WithInstrumentationVersion(vc.Version()))
	}
	var attrs []attribute.KeyValue
	if opts.Monitor != "" {
		attrs = append(attrs, attribute.String("monitor", opts.Monitor))
	}
	return &OTel{
		meter:  meter,
		opt:    metric.WithAttributeSet(attribute.NewSet(attrs...)),
		gauges: make(map[string]metric.Float64Gauge),
	}
}

func (o *OTel) gauge(name string) (metric.Float64Gauge, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if g, ok := o.gauges[name]; ok {
		return g, nil
	}

	var opts []metric.Float64GaugeOption
	if md, ok := metrics.Lookup(name); ok {
		opts = append(opts, metric.WithDescription(md.Description), metric.WithUnit(md.Unit))
	}
	g, err := o.meter.Float64Gauge(name, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating Float64Gauge %s: %w", name, err)
	}
	log.Debugf("Created gauge %s", name)
	o.gauges[name] = g
	return g, nil
}

func (o *OTel) Write(name string, value float64, _ int64) error {
	g, err := o.gauge(name)
	if err != nil {
		return err
	}
	g.Record(context.Background(), value, o.opt)
	return nil
}
