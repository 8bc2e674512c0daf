// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package sink contains the time-series destinations monitors record their
// numeric metrics to.
package sink // import "github.com/researchops/opsmon/sink"

import (
	"errors"
	"io"
	"slices"
	"sync"
)

// MetricSink persists named numeric values.
type MetricSink interface {
	Write(name string, value float64, step int64) error
}

// Flusher is implemented by sinks that buffer writes.
type Flusher interface {
	Flush() error
}

// Discard drops all writes.
var Discard MetricSink = discard{}

type discard struct{}

func (discard) Write(string, float64, int64) error { return nil }

type multi []MetricSink

// Multi returns a sink that writes to all sinks. Errors of the individual
// sinks are joined. The returned sink forwards Flush and Close.
func Multi(sinks ...MetricSink) MetricSink {
	return multi(slices.DeleteFunc(slices.Clone(sinks),
		func(s MetricSink) bool { return s == nil }))
}

func (m multi) Write(name string, value float64, step int64) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(name, value, step); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Flush() error {
	var errs []error
	for _, s := range m {
		if f, ok := s.(Flusher); ok {
			if err := f.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

type prefixed struct {
	MetricSink
	prefix string
}

// WithPrefix returns a sink that prepends prefix to every metric name.
func WithPrefix(s MetricSink, prefix string) MetricSink {
	return prefixed{MetricSink: s, prefix: prefix}
}

func (p prefixed) Write(name string, value float64, step int64) error {
	return p.MetricSink.Write(p.prefix+name, value, step)
}

func (p prefixed) Flush() error {
	if f, ok := p.MetricSink.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Point is a single write recorded by Memory.
type Point struct {
	Name  string
	Value float64
	Step  int64
}

// Memory keeps all writes in memory. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	points  []Point
	flushes int
}

func (m *Memory) Write(name string, value float64, step int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, Point{Name: name, Value: value, Step: step})
	return nil
}

func (m *Memory) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

// Points returns a copy of all writes.
func (m *Memory) Points() []Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.points)
}

// Steps returns the distinct steps in the order they were first written.
func (m *Memory) Steps() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var steps []int64
	seen := make(map[int64]bool)
	for _, p := range m.points {
		if !seen[p.Step] {
			seen[p.Step] = true
			steps = append(steps, p.Step)
		}
	}
	return steps
}

// Flushes returns how often Flush was called.
func (m *Memory) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}
