// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

/*
Package metrics contains the catalog of metrics reported by the monitors and
the host samplers they are built from.

Every metric with a fixed name is declared in metrics.json together with its
unit and description. The Name* constants in names.go are generated from it.
Metrics whose name is derived at runtime (per device, per endpoint) are not
part of the catalog.

# Directory Structure

	metrics
	├── agentmetrics/  // rusage, heap and goroutine stats of the own process
	├── cpumetrics/    // CPU usage from /proc/stat
	├── genids/        // generator for names.go
	├── iometrics/     // block device throughput from /proc/diskstats
	├── netmetrics/    // network byte counters and rates
	├── doc.go         // this file
	├── metrics.go     // GetDefinitions() and Lookup()
	├── metrics.json   // the catalog
	├── names.go       // generated
	└── types.go       // MetricDefinition and MetricType

The samplers in the sub packages keep their previous sample per instance. A
monitor owns its samplers and only uses them from its sampling goroutine, so
two monitors never share delta state.
*/
package metrics
