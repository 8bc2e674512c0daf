// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/researchops/opsmon/internal/controller"

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/researchops/opsmon/sink"
	"github.com/researchops/opsmon/vc"
)

// setupMeterProvider creates the OTLP metric pipeline if an endpoint is
// configured and no provider was passed with WithMeterProvider.
func (c *Controller) setupMeterProvider(ctx context.Context) error {
	if c.meterProvider != nil || c.config.OTLPEndpoint == "" {
		return nil
	}

	var creds credentials.TransportCredentials
	if c.config.OTLPDisableTLS {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewTLS(&tls.Config{
			// Support only TLS1.3+ with valid CA certificates
			MinVersion:         tls.VersionTLS13,
			InsecureSkipVerify: false,
		})
	}
	conn, err := grpc.NewClient(c.config.OTLPEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return fmt.Errorf("failed to set up gRPC connection to %s: %w",
			c.config.OTLPEndpoint, err)
	}
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	c.otlpConn = conn
	c.sdkProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(
		sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(c.config.OTLPInterval))))
	c.meterProvider = c.sdkProvider
	log.Infof("Exporting metrics to %s every %s", c.config.OTLPEndpoint, c.config.OTLPInterval)
	return nil
}

// otelSink returns the OTel sink of one monitor, or nil without a meter provider.
func (c *Controller) otelSink(name string) sink.MetricSink {
	if c.meterProvider == nil {
		return nil
	}
	meter := c.meterProvider.Meter(sink.InstrumentationName,
		metric.WithInstrumentationVersion(vc.Version()))
	return sink.NewOTel(meter, sink.OTelOptions{Monitor: name})
}

// shutdownMeterProvider flushes and stops the pipeline created by
// setupMeterProvider.
func (c *Controller) shutdownMeterProvider(ctx context.Context) error {
	if c.sdkProvider == nil {
		return nil
	}
	err := c.sdkProvider.Shutdown(ctx)
	if c.otlpConn != nil {
		err = errors.Join(err, c.otlpConn.Close())
	}
	return err
}
