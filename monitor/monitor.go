// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor // import "github.com/researchops/opsmon/monitor"

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/researchops/opsmon/periodiccaller"
	"github.com/researchops/opsmon/sink"
)

// Monitor is an independently schedulable unit that periodically collects,
// records and publishes metrics.
type Monitor interface {
	Name() string
	Config() Config
	State() State

	// Start launches the sampling loop. It returns true if the monitor is
	// running afterwards.
	Start() bool
	// Stop is Shutdown() == nil.
	Stop() bool
	// Shutdown stops the sampling loop and all workers and waits for them
	// to exit, bounded by the join timeout.
	Shutdown() error

	GetMetrics() Batch
	RecordMetrics(opts ...RecordOption)

	Subscribe(fn Subscriber) Token
	Unsubscribe(tok Token) bool
}

// Collector adds domain metrics to b. Collectors must honor ctx; an error is
// reported as a CollectionError and whatever was added to b before is kept.
type Collector func(ctx context.Context, b *Batch) error

type worker struct {
	name string
	fn   func(ctx context.Context)
}

// run is the handle of one Start/Stop cycle.
type run struct {
	ctx     context.Context
	cancels []context.CancelFunc
	// done is closed after the sampling loop and all workers returned.
	done chan struct{}
}

// Base implements Monitor. Concrete monitors provide a Collector and embed
// *Base.
type Base struct {
	Publisher

	cfg     Config
	sink    sink.MetricSink
	collect Collector
	log     *log.Entry

	state atomic.Int32

	// mu guards the lifecycle: run and workers.
	mu      sync.Mutex
	run     *run
	workers []worker

	// collectMu serializes collector calls, so collectors can keep delta
	// state without locking.
	collectMu sync.Mutex

	// step is only accessed by the sampling loop.
	step int64

	// parent is the composite this monitor is a child of. Guarded by treeMu.
	parent *Composite
}

var _ Monitor = (*Base)(nil)

// New validates cfg and returns an idle monitor. A nil snk discards all
// metrics and a nil collect only reports the base fields.
func New(cfg Config, snk sink.MetricSink, collect Collector) (*Base, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if snk == nil {
		snk = sink.Discard
	}
	b := &Base{
		cfg:     cfg,
		sink:    snk,
		collect: collect,
		log:     log.WithField("monitor", cfg.Name),
	}
	b.Publisher.owner = cfg.Name
	return b, nil
}

func (b *Base) Name() string { return b.cfg.Name }

func (b *Base) monitorBase() *Base { return b }

func (b *Base) Config() Config { return b.cfg }

func (b *Base) State() State { return State(b.state.Load()) }

// Logger returns the log entry of this monitor.
func (b *Base) Logger() *log.Entry { return b.log }

// Sink returns the sink metrics are recorded to.
func (b *Base) Sink() sink.MetricSink { return b.sink }

// AddWorker registers fn to run in its own goroutine whenever the monitor
// runs. fn must return once its context is canceled. Workers added while the
// monitor is running are started with the next Start.
func (b *Base) AddWorker(name string, fn func(ctx context.Context)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.workers = append(b.workers, worker{name: name, fn: fn})
}

func (b *Base) Start() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.State() {
	case Running:
		return true
	case StopRequested:
		b.log.Warn("Previous sampling loop is still shutting down")
		return false
	}
	if !b.cfg.Enabled {
		b.log.Warn("Monitor is disabled, not starting")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		ctx:     ctx,
		cancels: []context.CancelFunc{cancel},
		done:    make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(1 + len(b.workers))
	go func() {
		defer wg.Done()
		b.loop(ctx)
	}()
	for _, w := range b.workers {
		wctx, wcancel := context.WithCancel(context.Background())
		r.cancels = append(r.cancels, wcancel)
		go func() {
			defer wg.Done()
			b.log.Debugf("Starting worker %s", w.name)
			w.fn(wctx)
			b.log.Debugf("Worker %s exited", w.name)
		}()
	}
	go func() {
		wg.Wait()
		b.state.CompareAndSwap(int32(StopRequested), int32(Stopped))
		close(r.done)
	}()

	b.run = r
	b.state.Store(int32(Running))
	b.log.Infof("Started with sampling interval %s", b.cfg.SamplingInterval)
	return true
}

func (b *Base) Stop() bool {
	return b.Shutdown() == nil
}

func (b *Base) Shutdown() error {
	b.mu.Lock()
	r := b.run
	switch b.State() {
	case Running:
		b.state.Store(int32(StopRequested))
		for _, cancel := range r.cancels {
			cancel()
		}
	case StopRequested:
		// A previous Shutdown timed out, wait again.
	default:
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	timer := time.NewTimer(b.cfg.JoinTimeout)
	defer timer.Stop()
	select {
	case <-r.done:
		b.log.Info("Stopped")
		return nil
	case <-timer.C:
		err := &ShutdownTimeoutError{Monitor: b.cfg.Name, Timeout: b.cfg.JoinTimeout}
		b.log.Warn(err)
		return err
	}
}

// GetMetrics collects a batch outside of the sampling loop.
func (b *Base) GetMetrics() Batch {
	parent := context.Background()
	b.mu.Lock()
	if b.run != nil && b.State() == Running {
		parent = b.run.ctx
	}
	b.mu.Unlock()

	batch, err := b.gather(parent)
	if err != nil {
		b.log.Warn(err)
	}
	return batch
}

// gather returns the base fields plus whatever the collector added.
func (b *Base) gather(parent context.Context) (batch Batch, err error) {
	now := time.Now()
	batch = NewBatch(now)
	batch.SetText(KeyTimestamp, now.UTC().Format(time.RFC3339))
	batch.SetText(KeyMonitorName, b.cfg.Name)
	if b.collect == nil {
		return batch, nil
	}

	ctx, cancel := context.WithTimeout(parent, b.cfg.CollectTimeout)
	defer cancel()
	b.collectMu.Lock()
	defer b.collectMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = &CollectionError{Monitor: b.cfg.Name, Err: panicError{value: r}}
		}
	}()
	if cerr := b.collect(ctx, &batch); cerr != nil {
		return batch, &CollectionError{Monitor: b.cfg.Name, Err: cerr}
	}
	return batch, nil
}

type recordOptions struct {
	batch *Batch
	step  *int64
}

// RecordOption configures RecordMetrics.
type RecordOption func(*recordOptions)

// WithBatch records b instead of a freshly collected batch.
func WithBatch(b Batch) RecordOption {
	return func(o *recordOptions) { o.batch = &b }
}

// WithStep tags the recorded values with step instead of the current Unix time.
func WithStep(step int64) RecordOption {
	return func(o *recordOptions) { o.step = &step }
}

// RecordMetrics writes all numeric entries of a batch to the sink. Text
// entries are skipped. Sink errors are logged.
func (b *Base) RecordMetrics(opts ...RecordOption) {
	var o recordOptions
	for _, opt := range opts {
		opt(&o)
	}
	var batch Batch
	if o.batch != nil {
		batch = *o.batch
	} else {
		batch = b.GetMetrics()
	}
	step := time.Now().Unix()
	if o.step != nil {
		step = *o.step
	}
	b.record(batch, step)
}

func (b *Base) record(batch Batch, step int64) {
	var errs []error
	for _, name := range batch.Names() {
		if name == KeyTimestamp {
			continue
		}
		v, ok := batch.Number(name)
		if !ok {
			continue
		}
		if err := b.sink.Write(name, v, step); err != nil {
			errs = append(errs, err)
		}
	}
	if f, ok := b.sink.(sink.Flusher); ok {
		if err := f.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		b.log.Warnf("Failed to record metrics for step %d: %v", step, errors.Join(errs...))
	}
}

func (b *Base) loop(ctx context.Context) {
	periodiccaller.Paced(ctx, b.cfg.SamplingInterval, b.iterate)
}

// iterate runs one sampling step. Errors and panics are logged and do not
// advance the step counter.
func (b *Base) iterate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error(&CollectionError{Monitor: b.cfg.Name, Err: panicError{value: r}})
		}
	}()

	batch, err := b.gather(ctx)
	if err != nil {
		if ctx.Err() == nil {
			b.log.Warn(err)
		}
		return
	}
	batch.SetStep(b.step)
	b.record(batch, b.step)
	b.Publish(batch, time.Now())
	b.step++
}
