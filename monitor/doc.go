// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

/*
Package monitor implements the lifecycle shared by all monitors.

A Monitor samples at a fixed interval on its own goroutine. Every iteration
collects a Batch, records its numeric entries to a sink.MetricSink and
publishes the batch to all subscribers. The wait between two iterations
accounts for the time the iteration took, so the cadence stays close to the
sampling interval even for slow collectors.

Stopping is cooperative. Shutdown cancels the context handed to the collector
and to all workers and waits up to the join timeout. A goroutine that does not
return in time leaves the monitor in StopRequested until it finally exits.

Composite owns child monitors and cascades Start and Stop to them. Registry is
the caller owned set of top level monitors used by the daemon.
*/
package monitor
