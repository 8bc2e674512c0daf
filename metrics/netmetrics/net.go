// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package netmetrics tracks the host network byte counters and derives
// send and receive rates from consecutive samples.
package netmetrics // import "github.com/researchops/opsmon/metrics/netmetrics"

import (
	"context"
	"errors"
	"time"

	"github.com/shirou/gopsutil/v4/net"
)

// Counters is a snapshot of the byte counters summed over all interfaces.
type Counters struct {
	BytesSent uint64
	BytesRecv uint64
	Time      time.Time
}

// Rates are derived from two consecutive Counters.
type Rates struct {
	SendBytesPerSec float64
	RecvBytesPerSec float64
}

// SendMbps returns the send rate in megabits per second.
func (r Rates) SendMbps() float64 {
	return r.SendBytesPerSec * 8 / 1e6
}

// RecvMbps returns the receive rate in megabits per second.
func (r Rates) RecvMbps() float64 {
	return r.RecvBytesPerSec * 8 / 1e6
}

// ReadFunc returns the current counters.
type ReadFunc func(ctx context.Context) (Counters, error)

// ReadHost reads the counters of all host interfaces via gopsutil.
func ReadHost(ctx context.Context) (Counters, error) {
	stats, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return Counters{}, err
	}
	if len(stats) == 0 {
		return Counters{}, errors.New("no network counters available")
	}
	return Counters{
		BytesSent: stats[0].BytesSent,
		BytesRecv: stats[0].BytesRecv,
		Time:      time.Now(),
	}, nil
}

// Tracker keeps the previous sample of one owner. A Tracker is not safe for
// concurrent use.
type Tracker struct {
	read ReadFunc
	prev *Counters
}

// NewTracker returns a Tracker using read. A nil read selects ReadHost.
func NewTracker(read ReadFunc) *Tracker {
	if read == nil {
		read = ReadHost
	}
	return &Tracker{read: read}
}

// Sample reads the current counters. The returned rates are nil on the first
// sample, after a counter reset and when no time elapsed.
func (t *Tracker) Sample(ctx context.Context) (Counters, *Rates, error) {
	cur, err := t.read(ctx)
	if err != nil {
		return Counters{}, nil, err
	}
	prev := t.prev
	t.prev = &cur
	if prev == nil {
		return cur, nil, nil
	}

	elapsed := cur.Time.Sub(prev.Time).Seconds()
	if elapsed <= 0 || cur.BytesSent < prev.BytesSent || cur.BytesRecv < prev.BytesRecv {
		return cur, nil, nil
	}
	return cur, &Rates{
		SendBytesPerSec: float64(cur.BytesSent-prev.BytesSent) / elapsed,
		RecvBytesPerSec: float64(cur.BytesRecv-prev.BytesRecv) / elapsed,
	}, nil
}
