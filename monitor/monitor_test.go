// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchops/opsmon/sink"
)

func testConfig(name string, interval time.Duration) Config {
	return Config{Name: name, SamplingInterval: interval, Enabled: true}
}

// valueCollector reports a single numeric metric.
func valueCollector(_ context.Context, b *Batch) error {
	b.SetNumber("value", 1)
	return nil
}

func newTestMonitor(t *testing.T, cfg Config, snk sink.MetricSink, c Collector) *Base {
	t.Helper()
	m, err := New(cfg, snk, c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func TestGetMetricsBaseFields(t *testing.T) {
	m := newTestMonitor(t, testConfig("Base", time.Hour), nil, nil)
	b := m.GetMetrics()

	assert.Equal(t, 2, b.Len())
	s, ok := b.Get(KeyMonitorName)
	require.True(t, ok)
	assert.Equal(t, "base", s.Value.String())

	s, ok = b.Get(KeyTimestamp)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339, s.Value.String())
	require.NoError(t, err)
}

func TestGetMetricsCollectorFailure(t *testing.T) {
	tests := map[string]Collector{
		"error": func(_ context.Context, b *Batch) error {
			b.SetNumber("partial", 1)
			return errors.New("collect failed")
		},
		"panic": func(_ context.Context, b *Batch) error {
			b.SetNumber("partial", 1)
			panic("collector panicked")
		},
	}

	for name, c := range tests {
		t.Run(name, func(t *testing.T) {
			m := newTestMonitor(t, testConfig(name, time.Hour), nil, c)
			var b Batch
			require.NotPanics(t, func() { b = m.GetMetrics() })
			_, ok := b.Number("partial")
			assert.True(t, ok, "partially filled batch is returned")

			_, err := m.gather(context.Background())
			var cerr *CollectionError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, name, cerr.Monitor)
		})
	}
}

func TestGetMetricsCollectTimeout(t *testing.T) {
	cfg := testConfig("slow", time.Hour)
	cfg.CollectTimeout = 20 * time.Millisecond
	m := newTestMonitor(t, cfg, nil, func(ctx context.Context, _ *Batch) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	m.GetMetrics()
	assert.Less(t, time.Since(start), time.Second)
}

func TestRecordMetrics(t *testing.T) {
	mem := &sink.Memory{}
	m := newTestMonitor(t, testConfig("rec", time.Hour), mem, nil)

	b := NewBatch(time.Now())
	b.SetText(KeyTimestamp, "2024-01-01T00:00:00Z")
	b.SetText("device_status", "available")
	b.SetNumber("cpu_percent", 12)
	b.SetNumber("memory_percent", 34)

	m.RecordMetrics(WithBatch(b), WithStep(5))
	assert.Equal(t, []sink.Point{
		{Name: "cpu_percent", Value: 12, Step: 5},
		{Name: "memory_percent", Value: 34, Step: 5},
	}, mem.Points())
	assert.Equal(t, 1, mem.Flushes())
}

func TestRecordMetricsDefaults(t *testing.T) {
	mem := &sink.Memory{}
	m := newTestMonitor(t, testConfig("rec", time.Hour), mem, valueCollector)

	before := time.Now().Unix()
	m.RecordMetrics()
	after := time.Now().Unix()

	points := mem.Points()
	require.Len(t, points, 1)
	assert.Equal(t, "value", points[0].Name)
	assert.GreaterOrEqual(t, points[0].Step, before)
	assert.LessOrEqual(t, points[0].Step, after)
}

type failingSink struct{ calls atomic.Int32 }

func (f *failingSink) Write(string, float64, int64) error {
	f.calls.Add(1)
	return errors.New("sink unavailable")
}

func TestRecordMetricsSinkFailure(t *testing.T) {
	fs := &failingSink{}
	m := newTestMonitor(t, testConfig("rec", time.Hour), fs, valueCollector)
	require.NotPanics(t, func() { m.RecordMetrics() })
	assert.Equal(t, int32(1), fs.calls.Load())
}

func TestStartDisabled(t *testing.T) {
	cfg := testConfig("disabled", time.Hour)
	cfg.Enabled = false
	m := newTestMonitor(t, cfg, nil, nil)

	assert.False(t, m.Start())
	assert.Equal(t, Idle, m.State())
	assert.True(t, m.Stop())
}

func TestIdempotence(t *testing.T) {
	m := newTestMonitor(t, testConfig("idem", time.Hour), nil, nil)

	// Stop on an idle monitor does not touch any goroutine.
	before := runtime.NumGoroutine()
	assert.True(t, m.Stop())
	assert.Equal(t, before, runtime.NumGoroutine())
	assert.Equal(t, Idle, m.State())

	require.True(t, m.Start())
	running := runtime.NumGoroutine()
	assert.True(t, m.Start())
	assert.Equal(t, running, runtime.NumGoroutine(), "second Start launched goroutines")

	assert.True(t, m.Stop())
	assert.Equal(t, Stopped, m.State())
	assert.True(t, m.Stop())
	assert.Equal(t, Stopped, m.State())
}

func TestAtMostOneLoop(t *testing.T) {
	var calls atomic.Int32
	m := newTestMonitor(t, testConfig("once", time.Hour), nil,
		func(context.Context, *Batch) error {
			calls.Add(1)
			return nil
		})

	var wg sync.WaitGroup
	results := make([]bool, 10)
	start := make(chan struct{})
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i] = m.Start()
		}()
	}
	close(start)
	wg.Wait()

	for _, ok := range results {
		assert.True(t, ok)
	}
	require.Eventually(t, func() bool { return calls.Load() >= 1 },
		time.Second, time.Millisecond)
	// A second loop would sample right away as well.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, m.Stop())
}

func TestElapsedAwareCadence(t *testing.T) {
	const (
		interval   = 100 * time.Millisecond
		work       = 40 * time.Millisecond
		iterations = 10
	)
	m := newTestMonitor(t, testConfig("cadence", interval), nil,
		func(context.Context, *Batch) error {
			time.Sleep(work)
			return nil
		})

	done := make(chan time.Time, 1)
	var n atomic.Int32
	m.Subscribe(func(Batch, time.Time) error {
		if n.Add(1) == iterations {
			done <- time.Now()
		}
		return nil
	})

	start := time.Now()
	require.True(t, m.Start())
	var tenth time.Time
	select {
	case tenth = <-done:
	case <-time.After(5 * time.Second):
		require.Fail(t, "no 10 iterations within 5s")
	}
	assert.True(t, m.Stop())

	elapsed := tenth.Sub(start)
	assert.Less(t, elapsed, iterations*interval+50*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed, (iterations-1)*interval)
}

func TestScenario(t *testing.T) {
	mem := &sink.Memory{}
	m := newTestMonitor(t, testConfig("scenario", 50*time.Millisecond), mem, valueCollector)

	require.True(t, m.Start())
	assert.Equal(t, Running, m.State())
	time.Sleep(220 * time.Millisecond)

	start := time.Now()
	assert.True(t, m.Stop())
	assert.Less(t, time.Since(start), DefaultJoinTimeout)
	assert.Equal(t, Stopped, m.State())

	steps := mem.Steps()
	assert.GreaterOrEqual(t, len(steps), 3)
	assert.LessOrEqual(t, len(steps), 5)
	for i, step := range steps {
		assert.Equal(t, int64(i), step, "steps are strictly increasing")
	}
}

func TestSoftTermination(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	cfg := testConfig("stuck", time.Hour)
	cfg.JoinTimeout = 50 * time.Millisecond
	m := newTestMonitor(t, cfg, nil, func(context.Context, *Batch) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		// Ignores cancellation on purpose.
		<-release
		return nil
	})

	require.True(t, m.Start())
	<-entered

	err := m.Shutdown()
	var terr *ShutdownTimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "stuck", terr.Monitor)
	assert.Equal(t, StopRequested, m.State())
	assert.False(t, m.Stop(), "still stuck")
	assert.False(t, m.Start(), "previous loop still running")

	close(release)
	require.Eventually(t, func() bool { return m.State() == Stopped },
		time.Second, time.Millisecond)
	assert.True(t, m.Stop())

	// The monitor can be started again afterwards.
	assert.True(t, m.Start())
	assert.True(t, m.Stop())
}

func TestFailedIterationDoesNotAdvanceStep(t *testing.T) {
	var calls atomic.Int32
	m := newTestMonitor(t, testConfig("flaky", 5*time.Millisecond), nil,
		func(_ context.Context, b *Batch) error {
			switch calls.Add(1) {
			case 1:
				return errors.New("first collection fails")
			case 2:
				panic("second collection panics")
			}
			b.SetNumber("value", 1)
			return nil
		})

	steps := make(chan int64, 16)
	m.Subscribe(func(b Batch, _ time.Time) error {
		select {
		case steps <- b.Step:
		default:
		}
		return nil
	})

	require.True(t, m.Start())
	var got []int64
	for len(got) < 2 {
		select {
		case s := <-steps:
			got = append(got, s)
		case <-time.After(time.Second):
			require.Fail(t, "loop stopped after a failed iteration")
		}
	}
	assert.True(t, m.Stop())
	assert.Equal(t, []int64{0, 1}, got)
	assert.GreaterOrEqual(t, calls.Load(), int32(4))
}

func TestWorkers(t *testing.T) {
	m := newTestMonitor(t, testConfig("workers", time.Hour), nil, nil)

	var running atomic.Int32
	var sawStopRequested atomic.Bool
	m.AddWorker("probe", func(ctx context.Context) {
		running.Add(1)
		defer running.Add(-1)
		<-ctx.Done()
		if m.State() == StopRequested {
			sawStopRequested.Store(true)
		}
	})

	for range 2 {
		require.True(t, m.Start())
		require.Eventually(t, func() bool { return running.Load() == 1 },
			time.Second, time.Millisecond)
		assert.True(t, m.Stop())
		assert.Equal(t, int32(0), running.Load())
	}
	assert.True(t, sawStopRequested.Load())
}

func TestStuckWorker(t *testing.T) {
	cfg := testConfig("stuck-worker", time.Hour)
	cfg.JoinTimeout = 20 * time.Millisecond
	m := newTestMonitor(t, cfg, nil, nil)

	release := make(chan struct{})
	m.AddWorker("stuck", func(context.Context) { <-release })

	require.True(t, m.Start())
	assert.False(t, m.Stop())
	assert.Equal(t, StopRequested, m.State())

	close(release)
	require.Eventually(t, func() bool { return m.State() == Stopped },
		time.Second, time.Millisecond)
}
