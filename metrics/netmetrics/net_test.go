// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package netmetrics

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounters returns the given counters one after another.
func fakeCounters(samples ...Counters) ReadFunc {
	i := 0
	return func(context.Context) (Counters, error) {
		if i >= len(samples) {
			return Counters{}, errors.New("no more samples")
		}
		c := samples[i]
		i++
		return c, nil
	}
}

func TestTracker(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		prev     Counters
		cur      Counters
		expRates *Rates
	}{
		"two seconds": {
			prev:     Counters{BytesSent: 1000, BytesRecv: 5000, Time: t0},
			cur:      Counters{BytesSent: 3000, BytesRecv: 9000, Time: t0.Add(2 * time.Second)},
			expRates: &Rates{SendBytesPerSec: 1000, RecvBytesPerSec: 2000},
		},
		"idle": {
			prev:     Counters{BytesSent: 1000, BytesRecv: 5000, Time: t0},
			cur:      Counters{BytesSent: 1000, BytesRecv: 5000, Time: t0.Add(time.Second)},
			expRates: &Rates{},
		},
		"no time elapsed": {
			prev: Counters{BytesSent: 1000, Time: t0},
			cur:  Counters{BytesSent: 2000, Time: t0},
		},
		"counter reset": {
			prev: Counters{BytesSent: 1000, BytesRecv: 1000, Time: t0},
			cur:  Counters{BytesSent: 10, BytesRecv: 2000, Time: t0.Add(time.Second)},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			tr := NewTracker(fakeCounters(tc.prev, tc.cur))

			first, rates, err := tr.Sample(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.prev, first)
			assert.Nil(t, rates, "first sample has no rates")

			cur, rates, err := tr.Sample(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.cur, cur)
			assert.Equal(t, tc.expRates, rates)
		})
	}
}

func TestTrackerKeepsPreviousOnError(t *testing.T) {
	t0 := time.Now()
	calls := 0
	tr := NewTracker(func(context.Context) (Counters, error) {
		calls++
		switch calls {
		case 1:
			return Counters{BytesSent: 0, Time: t0}, nil
		case 2:
			return Counters{}, errors.New("boom")
		default:
			return Counters{BytesSent: 8e6, Time: t0.Add(time.Second)}, nil
		}
	})

	_, _, err := tr.Sample(context.Background())
	require.NoError(t, err)
	_, _, err = tr.Sample(context.Background())
	require.Error(t, err)
	_, rates, err := tr.Sample(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rates)
	assert.InDelta(t, 64.0, rates.SendMbps(), 1e-9)
	assert.InDelta(t, 0.0, rates.RecvMbps(), 1e-9)
}

func TestReadHost(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("requires /proc/net/dev")
	}
	c, err := ReadHost(context.Background())
	require.NoError(t, err)
	assert.False(t, c.Time.IsZero())
}
