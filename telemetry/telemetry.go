// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry queries a Prometheus compatible backend for device
// utilization series. A Client that cannot reach its backend degrades to a
// no-op for the rest of its lifetime.
package telemetry // import "github.com/researchops/opsmon/telemetry"

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/elastic/go-freelru"
	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultStep      = 60 * time.Second
	defaultCacheSize = 128

	// DefaultSeriesKey is the key of a series without labels.
	DefaultSeriesKey = "default"
)

// Config configures a Client.
type Config struct {
	// Address of the Prometheus HTTP API. Empty disables the client.
	Address string
	// Timeout bounds the availability probe. Zero selects 10s.
	Timeout time.Duration
	// Step is the query resolution. Zero selects 60s.
	Step time.Duration
	// CacheSize is the number of cached query results. Zero selects 128.
	CacheSize uint32
	// CacheLifetime is how long a query result is reused. Zero selects Step.
	CacheLifetime time.Duration
	// RoundTripper is used for all requests. Nil selects api.DefaultRoundTripper.
	RoundTripper http.RoundTripper
}

// Point is a single value of a series.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// BackendUnavailableError reports a backend that was found unreachable.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("telemetry backend %s unavailable: %v", e.Backend, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

type cacheKey struct {
	metricType   string
	resourceType string
	lookback     time.Duration
}

func (k cacheKey) hash() uint32 {
	return uint32(xxh3.HashString(k.metricType + "\x00" + k.resourceType + "\x00" +
		strconv.FormatInt(int64(k.lookback), 10)))
}

// Client queries device series. It is safe for concurrent use.
type Client struct {
	cfg       Config
	api       v1.API
	available atomic.Bool
	cache     *lru.SyncedLRU[cacheKey, map[string][]Point]
	now       func() time.Time
}

// New creates a Client and probes the backend once. New never fails; use
// IsAvailable to learn whether the backend answered.
func New(ctx context.Context, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Step <= 0 {
		cfg.Step = defaultStep
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheLifetime <= 0 {
		cfg.CacheLifetime = cfg.Step
	}
	c := &Client{cfg: cfg, now: time.Now}

	if cfg.Address == "" {
		log.Debug("No telemetry backend configured")
		return c
	}
	if err := c.init(ctx); err != nil {
		log.Warn(&BackendUnavailableError{Backend: cfg.Address, Err: err})
		return c
	}
	c.available.Store(true)
	log.Infof("Using telemetry backend %s", cfg.Address)
	return c
}

func (c *Client) init(ctx context.Context) error {
	client, err := api.NewClient(api.Config{
		Address:      c.cfg.Address,
		RoundTripper: c.cfg.RoundTripper,
	})
	if err != nil {
		return err
	}
	cache, err := lru.NewSynced[cacheKey, map[string][]Point](c.cfg.CacheSize, cacheKey.hash)
	if err != nil {
		return fmt.Errorf("failed to create query cache: %w", err)
	}
	cache.SetLifetime(c.cfg.CacheLifetime)
	c.cache = cache
	c.api = v1.NewAPI(client)

	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	info, err := c.api.Buildinfo(probeCtx)
	if err != nil {
		return err
	}
	log.Debugf("Telemetry backend version %s", info.Version)
	return nil
}

// IsAvailable reports whether queries are sent to the backend.
func (c *Client) IsAvailable() bool {
	return c.available.Load()
}

// GetMetricData returns the series of metricType for resourceType over the
// last lookback, keyed by their sorted labels. It returns nil if the client is
// unavailable or the query failed. The returned map must not be modified.
func (c *Client) GetMetricData(ctx context.Context, metricType, resourceType string,
	lookback time.Duration) map[string][]Point {
	if !c.IsAvailable() {
		return nil
	}
	key := cacheKey{metricType: metricType, resourceType: resourceType, lookback: lookback}
	if series, ok := c.cache.Get(key); ok {
		return series
	}

	end := c.now()
	result, warnings, err := c.api.QueryRange(ctx, Selector(metricType, resourceType), v1.Range{
		Start: end.Add(-lookback),
		End:   end,
		Step:  c.cfg.Step,
	})
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			c.available.Store(false)
			log.Warn(&BackendUnavailableError{Backend: c.cfg.Address, Err: err})
			return nil
		}
		log.Warnf("Failed to query %s: %v", metricType, err)
		return nil
	}
	for _, w := range warnings {
		log.Debugf("Query %s: %s", metricType, w)
	}

	matrix, ok := result.(model.Matrix)
	if !ok {
		log.Warnf("Unexpected result type %s for %s", result.Type(), metricType)
		return nil
	}
	series := make(map[string][]Point, len(matrix))
	for _, stream := range matrix {
		points := make([]Point, 0, len(stream.Values))
		for _, v := range stream.Values {
			points = append(points, Point{Timestamp: v.Timestamp.Time(), Value: float64(v.Value)})
		}
		slices.SortFunc(points, func(a, b Point) int { return a.Timestamp.Compare(b.Timestamp) })
		k := SeriesKey(stream.Metric)
		series[k] = append(series[k], points...)
	}
	c.cache.Add(key, series)
	return series
}

// Selector returns the PromQL selector for metricType, restricted to
// resourceType if not empty.
func Selector(metricType, resourceType string) string {
	name := sanitizeMetricName(metricType)
	if resourceType == "" {
		return name
	}
	return fmt.Sprintf("%s{resource_type=%s}", name, strconv.Quote(resourceType))
}

// sanitizeMetricName maps a metric type like tpu.googleapis.com/util/duty_cycle
// to a valid Prometheus metric name.
func sanitizeMetricName(metricType string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, metricType)
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "_" + name
	}
	return name
}

// SeriesKey joins the sorted labels of m as "k:v/k:v". The metric name is not
// part of the key. A series without labels is keyed DefaultSeriesKey.
func SeriesKey(m model.Metric) string {
	parts := make([]string, 0, len(m))
	for name, value := range m {
		if name == model.MetricNameLabel {
			continue
		}
		parts = append(parts, string(name)+":"+string(value))
	}
	if len(parts) == 0 {
		return DefaultSeriesKey
	}
	slices.Sort(parts)
	return strings.Join(parts, "/")
}
