// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor // import "github.com/researchops/opsmon/monitor"

import (
	"errors"

	log "github.com/sirupsen/logrus"
)

// Scope starts m, runs fn and stops m again on every exit path. A panic in fn
// is re-raised after m was stopped. A failing stop is joined into the
// returned error.
func Scope(m Monitor, fn func() error) (err error) {
	if !m.Start() {
		log.WithField("monitor", m.Name()).Warn("Running scope without a running monitor")
	}
	defer func() {
		r := recover()
		stopErr := m.Shutdown()
		if r != nil {
			panic(r)
		}
		err = errors.Join(err, stopErr)
	}()
	return fn()
}
