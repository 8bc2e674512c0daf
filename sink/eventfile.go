// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package sink // import "github.com/researchops/opsmon/sink"

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Event is one line of an event file.
type Event struct {
	WallTime float64 `json:"wall_time"`
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Step     int64   `json:"step"`
}

// EventFile writes zstd compressed JSON lines. NaN and infinite values are
// skipped. Each Flush completes a zstd
// frame so a crashed process leaves a readable file behind. EventFile is safe
// for concurrent use.
type EventFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
	zw   *zstd.Encoder
	enc  *json.Encoder
	// dirty is set when the current frame has unflushed events.
	dirty bool
}

var _ MetricSink = (*EventFile)(nil)

// NewEventFile creates a new event file in dir.
func NewEventFile(dir string) (*EventFile, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	path := filepath.Join(dir,
		fmt.Sprintf("events.opsmon.%d.%s.jsonl.zst", time.Now().Unix(), hostname))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &EventFile{path: path, f: f, zw: zw, enc: json.NewEncoder(zw)}, nil
}

// Path returns the file name.
func (e *EventFile) Path() string {
	return e.path
}

func (e *EventFile) Write(name string, value float64, step int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return os.ErrClosed
	}
	// JSON cannot represent these. A gap in the series is what readers
	// of the event file expect for a missing value.
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	now := time.Now()
	err := e.enc.Encode(Event{
		WallTime: float64(now.UnixNano()) / 1e9,
		Name:     name,
		Value:    value,
		Step:     step,
	})
	if err != nil {
		return fmt.Errorf("failed to write event %s: %w", name, err)
	}
	e.dirty = true
	return nil
}

// Flush ends the current zstd frame and writes it to disk.
func (e *EventFile) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flush()
}

func (e *EventFile) flush() error {
	if e.f == nil || !e.dirty {
		return nil
	}
	if err := e.zw.Close(); err != nil {
		return err
	}
	e.zw.Reset(e.f)
	e.dirty = false
	return nil
}

func (e *EventFile) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil
	}
	err := errors.Join(e.zw.Close(), e.f.Close())
	e.f = nil
	return err
}

// ReadEvents decodes all complete events of an event file.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var events []Event
	dec := json.NewDecoder(zr)
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return events, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		events = append(events, ev)
	}
}
