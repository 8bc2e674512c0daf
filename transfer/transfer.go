// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package transfer implements the monitor for network transfers to and from
// an object store.
//
// The sampling loop reports interface counters, service reachability and the
// outcome of the latest transfer probes. Probes run on their own worker, as
// they can take much longer than a sampling interval.
package transfer // import "github.com/researchops/opsmon/transfer"

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/researchops/opsmon/metrics"
	"github.com/researchops/opsmon/metrics/netmetrics"
	"github.com/researchops/opsmon/monitor"
	"github.com/researchops/opsmon/objectstore"
	"github.com/researchops/opsmon/periodiccaller"
	"github.com/researchops/opsmon/resource"
	"github.com/researchops/opsmon/sink"
)

// bucketCheckKey is read to find out whether the store is accessible.
const bucketCheckKey = ".opsmon-bucket-check"

// Options configures a Monitor. Zero values select the defaults.
type Options struct {
	// ProbeInterval is the time between probe rounds. Default 30m.
	ProbeInterval time.Duration
	// ProbeGap separates the upload and download probe of a round. Default
	// 5s, negative disables the gap.
	ProbeGap time.Duration
	// ProbeSizeBytes is the size of a probe object. Default 10 MiB.
	ProbeSizeBytes int64
	// FlushThreshold is the number of buffered results that triggers a
	// write. Default 10.
	FlushThreshold int
	// ProbePrefix is the store path probe objects are created below.
	ProbePrefix string
	// ScratchDir holds the local probe files. Default os.TempDir().
	ScratchDir string
	// ProbeTimeout bounds a single probe. Default 5m.
	ProbeTimeout time.Duration

	// Endpoints are checked for reachability on every sample.
	// Nil selects DefaultEndpoints, an empty slice disables the check.
	Endpoints   []Endpoint
	DialTimeout time.Duration

	// ResultWriter persists buffered results. Default is a
	// FileResultWriter in the log directory.
	ResultWriter ResultWriter
	// NetCounters overrides the source of the interface counters.
	NetCounters netmetrics.ReadFunc
}

func (o Options) withDefaults(logDir string) Options {
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = 30 * time.Minute
	}
	if o.ProbeGap < 0 {
		o.ProbeGap = 0
	} else if o.ProbeGap == 0 {
		o.ProbeGap = 5 * time.Second
	}
	if o.ProbeSizeBytes <= 0 {
		o.ProbeSizeBytes = 10 << 20
	}
	if o.FlushThreshold <= 0 {
		o.FlushThreshold = 10
	}
	if o.ProbePrefix == "" {
		o.ProbePrefix = "opsmon-probe/"
	}
	if o.ScratchDir == "" {
		o.ScratchDir = os.TempDir()
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 5 * time.Minute
	}
	if o.Endpoints == nil {
		o.Endpoints = DefaultEndpoints()
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 2 * time.Second
	}
	if o.ResultWriter == nil {
		o.ResultWriter = &FileResultWriter{Dir: logDir}
	}
	return o
}

// Monitor measures transfer rates against an object store.
type Monitor struct {
	*monitor.Base

	store objectstore.Store
	opts  Options
	net   *netmetrics.Tracker

	trigger chan struct{}

	// The latest results are written by the probe worker and read by the
	// sampling loop.
	lastUpload   atomic.Pointer[ProbeResult]
	lastDownload atomic.Pointer[ProbeResult]
	probesOK     atomic.Int64
	probesFailed atomic.Int64

	// buffer is owned by the probe worker.
	buffer []ProbeResult
}

// New returns an idle transfer monitor probing store. A nil store disables
// probes and the bucket check.
func New(cfg monitor.Config, snk sink.MetricSink, store objectstore.Store,
	opts Options) (*Monitor, error) {
	m := &Monitor{
		store:   store,
		trigger: make(chan struct{}, 1),
	}
	base, err := monitor.New(cfg, snk, m.collect)
	if err != nil {
		return nil, err
	}
	m.Base = base
	m.opts = opts.withDefaults(base.Config().LogDir)
	m.net = netmetrics.NewTracker(m.opts.NetCounters)

	if store != nil {
		m.AddWorker("transfer-probe", m.probeLoop)
	} else {
		m.Logger().Warn("No object store configured, transfer probes are disabled")
	}
	return m, nil
}

// TriggerProbe requests an immediate probe round. It never blocks; a request
// made while one is pending is dropped.
func (m *Monitor) TriggerProbe() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// LatestResult returns the latest result of op, if any.
func (m *Monitor) LatestResult(op Operation) (ProbeResult, bool) {
	var p *ProbeResult
	switch op {
	case Upload:
		p = m.lastUpload.Load()
	case Download:
		p = m.lastDownload.Load()
	}
	if p == nil {
		return ProbeResult{}, false
	}
	return *p, true
}

// RunProbeRound runs one upload and one download probe synchronously. The
// results are not buffered. The download is skipped if the upload failed.
func (m *Monitor) RunProbeRound(ctx context.Context) []ProbeResult {
	if m.store == nil {
		return nil
	}
	upload := m.probeUpload(ctx)
	m.observe(upload)
	if !upload.OK() {
		m.Logger().Warn("Upload probe failed, skipping download probe")
		return []ProbeResult{upload}
	}
	download := m.probeDownload(ctx)
	m.observe(download)
	return []ProbeResult{upload, download}
}

func (m *Monitor) probeLoop(ctx context.Context) {
	done := periodiccaller.StartWithManualTrigger(ctx, m.opts.ProbeInterval, m.trigger,
		func(ctx context.Context, manual bool) {
			if manual {
				m.Logger().Debug("Probe round triggered")
			}
			m.probeRound(ctx)
		})
	<-done
	m.flush()
}

// probeRound runs an upload probe and, after ProbeGap, a download probe.
func (m *Monitor) probeRound(ctx context.Context) {
	upload := m.probeUpload(ctx)
	m.observe(upload)
	m.buffer = append(m.buffer, upload)

	gap := time.NewTimer(m.opts.ProbeGap)
	select {
	case <-ctx.Done():
		gap.Stop()
		return
	case <-gap.C:
	}

	download := m.probeDownload(ctx)
	m.observe(download)
	m.buffer = append(m.buffer, download)

	if len(m.buffer) >= m.opts.FlushThreshold {
		m.flush()
	}
}

// flush hands the buffered results to the result writer.
func (m *Monitor) flush() {
	if len(m.buffer) == 0 {
		return
	}
	if err := m.opts.ResultWriter.WriteResults(m.buffer); err != nil {
		m.Logger().Errorf("Failed to save %d transfer probe results: %v", len(m.buffer), err)
	}
	m.buffer = nil
}

// observe publishes r as the latest result of its operation and records it.
func (m *Monitor) observe(r ProbeResult) {
	switch r.Operation {
	case Upload:
		m.lastUpload.Store(&r)
	case Download:
		m.lastDownload.Store(&r)
	}
	if !r.OK() {
		m.probesFailed.Add(1)
		m.Logger().Warn(r.Err)
		return
	}
	m.probesOK.Add(1)
	m.Logger().Infof("%s rate: %.2f MB/s", r.Operation, r.RateBytesPerSec/1e6)

	step := r.Timestamp.Unix()
	rateName, durationName := resultNames(r.Operation)
	err := errors.Join(
		m.Sink().Write(rateName, r.RateBytesPerSec, step),
		m.Sink().Write(durationName, r.DurationSeconds, step))
	if err != nil {
		m.Logger().Warnf("Failed to record %s probe: %v", r.Operation, err)
	}
}

func resultNames(op Operation) (rate, duration string) {
	if op == Upload {
		return metrics.NameTransferUploadRate, metrics.NameTransferUploadDuration
	}
	return metrics.NameTransferDownloadRate, metrics.NameTransferDownloadDuration
}

func (m *Monitor) collect(ctx context.Context, b *monitor.Batch) error {
	resource.CollectNetwork(ctx, m.net, b)

	if len(m.opts.Endpoints) > 0 {
		checkConnectivity(ctx, m.opts.Endpoints, m.opts.DialTimeout, b)
	}

	if m.store != nil {
		accessible := 0.0
		if err := m.checkBucket(ctx); err != nil {
			b.SetText("bucket_error", err.Error())
		} else {
			accessible = 1
		}
		b.SetNumber(metrics.NameBucketAccessible, accessible)
	}

	for _, op := range []Operation{Upload, Download} {
		r, ok := m.LatestResult(op)
		if !ok {
			continue
		}
		prefix := "transfer_" + string(op)
		b.SetText(prefix+"_status", string(r.Status))
		if r.OK() {
			rateName, durationName := resultNames(op)
			b.SetNumber(rateName, r.RateBytesPerSec)
			b.SetNumber(durationName, r.DurationSeconds)
		} else {
			b.SetText(prefix+"_error", r.ErrorDetail)
		}
	}
	b.SetNumber(metrics.NameTransferProbesOK, float64(m.probesOK.Load()))
	b.SetNumber(metrics.NameTransferProbesFailed, float64(m.probesFailed.Load()))
	return nil
}

type bucketChecker interface {
	HeadBucket(ctx context.Context) error
}

// checkBucket returns nil if the store can be read.
func (m *Monitor) checkBucket(ctx context.Context) error {
	if bc, ok := m.store.(bucketChecker); ok {
		return bc.HeadBucket(ctx)
	}
	_, err := m.store.Get(ctx, bucketCheckKey)
	if err == nil || errors.Is(err, objectstore.ErrNotFound) {
		return nil
	}
	return err
}
