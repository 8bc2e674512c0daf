// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor // import "github.com/researchops/opsmon/monitor"

import (
	"fmt"
	"time"
)

// ConfigurationError reports invalid construction parameters.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CollectionError reports a failed metrics collection. The sampling loop logs
// it and carries on with the next tick.
type CollectionError struct {
	Monitor string
	Err     error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("%s: collecting metrics: %v", e.Monitor, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// ShutdownTimeoutError reports goroutines that outlived the join timeout.
// They may still be finishing their last iteration.
type ShutdownTimeoutError struct {
	Monitor string
	Timeout time.Duration
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("%s: did not stop within %s", e.Monitor, e.Timeout)
}

// panicError wraps a recovered panic value.
type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
