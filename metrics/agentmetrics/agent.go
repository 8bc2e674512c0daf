// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentmetrics samples resource usage of the own process.
package agentmetrics // import "github.com/researchops/opsmon/metrics/agentmetrics"

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// rusageTimes holdes time values of a rusage call.
type rusageTimes struct {
	// utime represents the user time in usec.
	utime unix.Timeval
	// stime represents the system time in usec.
	stime unix.Timeval
}

const (
	// rusageSelf is the indicator that we get the rusage
	// of the calling process itself.
	rusageSelf = 0
)

// Stats is one sample of the process resource usage.
type Stats struct {
	// GoRoutines is the absolute number of goroutines.
	GoRoutines int
	// HeapAlloc is the absolute number of bytes of allocated heap objects.
	HeapAlloc uint64
	// UTimeMs is the user CPU time since the previous sample.
	UTimeMs int64
	// STimeMs is the system CPU time since the previous sample.
	STimeMs int64
}

// Sampler keeps the rusage values of the previous sample.
// A Sampler is not safe for concurrent use.
type Sampler struct {
	prev rusageTimes
}

// timeDelta calculates the difference between two time values
// and returns the difference in milliseconds.
func timeDelta(now, prev unix.Timeval) int64 {
	secDelta := (now.Sec - prev.Sec) * 1000
	usecDelta := (now.Usec - prev.Usec) / 1000
	return secDelta + usecDelta
}

// NewSampler records the current rusage as baseline for the first sample.
func NewSampler() (*Sampler, error) {
	var rusage unix.Rusage
	if err := unix.Getrusage(rusageSelf, &rusage); err != nil {
		return nil, fmt.Errorf("failed to fetch rusage: %w", err)
	}
	return &Sampler{prev: rusageTimes{utime: rusage.Utime, stime: rusage.Stime}}, nil
}

// Sample returns the current process stats.
func (s *Sampler) Sample() (Stats, error) {
	nGoRoutines := runtime.NumGoroutine()

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	var rusage unix.Rusage
	if err := unix.Getrusage(rusageSelf, &rusage); err != nil {
		return Stats{}, fmt.Errorf("failed to fetch rusage: %w", err)
	}

	// Get the difference to the previous call of rusage.
	deltaStime := timeDelta(rusage.Stime, s.prev.stime)
	deltaUtime := timeDelta(rusage.Utime, s.prev.utime)

	// Save the current values of the rusage call.
	s.prev.stime = rusage.Stime
	s.prev.utime = rusage.Utime

	return Stats{
		GoRoutines: nGoRoutines,
		HeapAlloc:  stats.HeapAlloc,
		UTimeMs:    deltaUtime,
		STimeMs:    deltaStime,
	}, nil
}
