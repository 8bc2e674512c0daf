// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "github.com/researchops/opsmon/metrics"

// Create names.go from metrics.json
//go:generate go run genids/main.go metrics.json names.go

// MetricType is the kind of value a metric reports.
type MetricType string

const (
	// MetricTypeGauge is a point in time value.
	MetricTypeGauge MetricType = "gauge"
	// MetricTypeCounter is a monotonically increasing value.
	MetricTypeCounter MetricType = "counter"
)

// MetricDefinition describes a metric with a fixed name.
type MetricDefinition struct {
	Name        string     `json:"name"`
	Field       string     `json:"field"`
	Description string     `json:"description"`
	Unit        string     `json:"unit"`
	Type        MetricType `json:"type"`
	Obsolete    bool       `json:"obsolete,omitempty"`
}
