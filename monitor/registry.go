// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor // import "github.com/researchops/opsmon/monitor"

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Registry is a caller owned set of top level monitors, keyed by name.
type Registry struct {
	mu       sync.Mutex
	monitors map[string]Monitor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{monitors: make(map[string]Monitor)}
}

// Register adds m. Names must be unique within a registry.
func (r *Registry) Register(m Monitor) error {
	if m == nil {
		return errors.New("monitor must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.monitors[m.Name()]; ok {
		return fmt.Errorf("monitor %s is already registered", m.Name())
	}
	r.monitors[m.Name()] = m
	return nil
}

// Get returns the monitor registered as name.
func (r *Registry) Get(name string) (Monitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[name]
	return m, ok
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.monitors))
}

func (r *Registry) sorted() []Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Monitor, 0, len(r.monitors))
	for _, name := range slices.Sorted(maps.Keys(r.monitors)) {
		out = append(out, r.monitors[name])
	}
	return out
}

// StartReport lists the monitors that did and did not start.
type StartReport struct {
	Started []string
	Failed  []string
}

// StopReport lists the monitors that did and did not stop in time.
type StopReport struct {
	Stopped []string
	Failed  []string
	Err     error
}

// StartAll starts every monitor in name order. A failing monitor does not
// prevent the others from starting.
func (r *Registry) StartAll() StartReport {
	var rep StartReport
	for _, m := range r.sorted() {
		if startGuarded(m) {
			rep.Started = append(rep.Started, m.Name())
		} else {
			rep.Failed = append(rep.Failed, m.Name())
		}
	}
	log.Infof("Started %d of %d monitors", len(rep.Started), len(rep.Started)+len(rep.Failed))
	return rep
}

func startGuarded(m Monitor) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Starting %s panicked: %v", m.Name(), r)
			ok = false
		}
	}()
	return m.Start()
}

// StopAll stops all monitors concurrently. Each monitor is bounded by its own
// join timeout.
func (r *Registry) StopAll() StopReport {
	monitors := r.sorted()
	errs := make([]error, len(monitors))

	var g errgroup.Group
	for i, m := range monitors {
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("stopping %s: %w", m.Name(), panicError{value: rec})
				}
				errs[i] = err
			}()
			return m.Shutdown()
		})
	}
	_ = g.Wait()

	var rep StopReport
	for i, m := range monitors {
		if errs[i] != nil {
			rep.Failed = append(rep.Failed, m.Name())
		} else {
			rep.Stopped = append(rep.Stopped, m.Name())
		}
	}
	rep.Err = errors.Join(errs...)
	log.Infof("Stopped %d of %d monitors", len(rep.Stopped), len(monitors))
	return rep
}
