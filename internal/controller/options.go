// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/researchops/opsmon/internal/controller"

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"

	"github.com/researchops/opsmon/objectstore"
	"github.com/researchops/opsmon/resource"
)

type Option interface {
	applyOption(*Controller) *Controller
}
type controllerOptionFunc func(*Controller) *Controller

func (f controllerOptionFunc) applyOption(c *Controller) *Controller {
	return f(c)
}

// WithStore sets the object store probed by the transfer monitor instead of
// opening Config.StoreURL.
func WithStore(store objectstore.Store) Option {
	return controllerOptionFunc(func(c *Controller) *Controller {
		c.store = store
		return c
	})
}

// WithTelemetry sets the device telemetry source instead of connecting to
// Config.PrometheusAddr.
func WithTelemetry(src resource.TelemetrySource) Option {
	return controllerOptionFunc(func(c *Controller) *Controller {
		c.telemetry = src
		return c
	})
}

// WithPrometheusRegistry sets the registry the metrics are exposed on.
// This defaults to a new registry.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return controllerOptionFunc(func(c *Controller) *Controller {
		c.promRegistry = reg
		return c
	})
}

// WithMeterProvider sets the provider the OTel sinks record on. It replaces
// the OTLP pipeline configured by Config.OTLPEndpoint.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return controllerOptionFunc(func(c *Controller) *Controller {
		c.meterProvider = mp
		return c
	})
}
