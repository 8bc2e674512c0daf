// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor // import "github.com/researchops/opsmon/monitor"

import (
	"encoding/json"
	"maps"
	"math"
	"slices"
	"strconv"
	"time"
)

// Well-known entries every Batch produced by GetMetrics carries.
const (
	KeyTimestamp   = "timestamp"
	KeyMonitorName = "monitor_name"
)

type valueKind uint8

const (
	kindNumber valueKind = iota
	kindText
)

// Value is either a number or a text. The zero value is the number 0.
type Value struct {
	kind valueKind
	num  float64
	text string
}

// Number returns a numeric Value.
func Number(f float64) Value {
	return Value{kind: kindNumber, num: f}
}

// Text returns a textual Value.
func Text(s string) Value {
	return Value{kind: kindText, text: s}
}

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool {
	return v.kind == kindNumber
}

// Float64 returns the number held by v and true, or 0 and false for text.
func (v Value) Float64() (float64, bool) {
	if v.kind != kindNumber {
		return 0, false
	}
	return v.num, true
}

func (v Value) String() string {
	if v.kind == kindText {
		return v.text
	}
	return strconv.FormatFloat(v.num, 'g', -1, 64)
}

// MarshalJSON encodes numbers as JSON numbers and text as JSON strings.
// NaN and infinite numbers have no JSON representation and are encoded as
// the strings "NaN", "+Inf" and "-Inf".
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == kindText {
		return json.Marshal(v.text)
	}
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return json.Marshal(strconv.FormatFloat(v.num, 'g', -1, 64))
	}
	return json.Marshal(v.num)
}

// Sample is a single named value.
type Sample struct {
	Name  string
	Value Value
	// Step is the timestamp or step the sample was recorded with. It is set
	// by Batch.SetStep.
	Step int64
}

// Batch is a named, timestamped group of samples. Names are unique within a batch.
//
// A Batch handed to subscribers must be treated as read-only; use Clone to
// get a private copy.
type Batch struct {
	Timestamp time.Time
	Step      int64

	samples map[string]Sample
}

// NewBatch returns an empty batch stamped with ts.
func NewBatch(ts time.Time) Batch {
	return Batch{Timestamp: ts, samples: make(map[string]Sample)}
}

// Set stores v under name, replacing any previous value.
func (b *Batch) Set(name string, v Value) {
	if b.samples == nil {
		b.samples = make(map[string]Sample)
	}
	b.samples[name] = Sample{Name: name, Value: v, Step: b.Step}
}

// SetNumber is a shorthand for Set(name, Number(f)).
func (b *Batch) SetNumber(name string, f float64) {
	b.Set(name, Number(f))
}

// SetText is a shorthand for Set(name, Text(s)).
func (b *Batch) SetText(name, s string) {
	b.Set(name, Text(s))
}

// SetError marks the collection of area as failed by setting
// <area>_status to "error" and <area>_error to the error text.
func (b *Batch) SetError(area string, err error) {
	b.SetText(area+"_status", "error")
	b.SetText(area+"_error", err.Error())
}

// Get returns the sample stored under name.
func (b Batch) Get(name string) (Sample, bool) {
	s, ok := b.samples[name]
	return s, ok
}

// Number returns the numeric value stored under name. The second return value
// is false if name is missing or holds text.
func (b Batch) Number(name string) (float64, bool) {
	s, ok := b.samples[name]
	if !ok {
		return 0, false
	}
	return s.Value.Float64()
}

// Len returns the number of samples.
func (b Batch) Len() int {
	return len(b.samples)
}

// Names returns the sample names in lexical order.
func (b Batch) Names() []string {
	return slices.Sorted(maps.Keys(b.samples))
}

// Merge copies all samples of other into b, overwriting samples with the same name.
func (b *Batch) Merge(other Batch) {
	for name, s := range other.samples {
		b.Set(name, s.Value)
	}
}

// Clone returns a deep copy of b.
func (b Batch) Clone() Batch {
	c := b
	c.samples = maps.Clone(b.samples)
	return c
}

// SetStep stamps the batch and all of its samples with step.
func (b *Batch) SetStep(step int64) {
	b.Step = step
	for name, s := range b.samples {
		s.Step = step
		b.samples[name] = s
	}
}

// MarshalJSON encodes the samples as a flat name/value object.
func (b Batch) MarshalJSON() ([]byte, error) {
	out := make(map[string]Value, len(b.samples))
	for name, s := range b.samples {
		out[name] = s.Value
	}
	return json.Marshal(out)
}
