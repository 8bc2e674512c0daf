// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package periodiccaller allows periodic calls of functions.
package periodiccaller // import "github.com/researchops/opsmon/periodiccaller"

import (
	"context"
	"time"
)

// Start starts a timer that calls <callback> every <interval> until the <ctx> is canceled.
// The returned channel is closed once the background goroutine has returned.
func Start(ctx context.Context, interval time.Duration,
	callback func(ctx context.Context)) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				callback(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	return done
}

// StartWithManualTrigger starts a timer that calls <callback> every <interval>
// until the <ctx> is canceled. Additionally the 'trigger' channel can be used
// to trigger callback immediately. The returned channel is closed once the
// background goroutine has returned.
func StartWithManualTrigger(ctx context.Context, interval time.Duration,
	trigger <-chan struct{}, callback func(ctx context.Context, manualTrigger bool)) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				callback(ctx, false)
			case <-trigger:
				callback(ctx, true)
			case <-ctx.Done():
				return
			}
		}
	}()

	return done
}

// Paced calls <callback> immediately and then keeps calling it so that
// consecutive calls start <interval> apart, until <ctx> is canceled. The time
// spent inside <callback> is subtracted from the following wait, so a slow
// callback does not stretch the cadence. If a call takes longer than
// <interval>, the next one starts right away.
//
// Paced blocks. Cancellation is observed during the wait, at the latest one
// wait window after <ctx> is canceled.
func Paced(ctx context.Context, interval time.Duration, callback func(ctx context.Context)) {
	timer := time.NewTimer(interval)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		callback(ctx)

		wait := max(0, interval-time.Since(start))
		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
	}
}
