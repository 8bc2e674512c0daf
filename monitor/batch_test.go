// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	tests := map[string]struct {
		v        Value
		isNumber bool
		str      string
		json     string
	}{
		"number":  {v: Number(1.5), isNumber: true, str: "1.5", json: "1.5"},
		"integer": {v: Number(42), isNumber: true, str: "42", json: "42"},
		"text":    {v: Text("ok"), isNumber: false, str: "ok", json: `"ok"`},
		"zero":    {v: Value{}, isNumber: true, str: "0", json: "0"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.isNumber, tc.v.IsNumber())
			assert.Equal(t, tc.str, tc.v.String())
			_, ok := tc.v.Float64()
			assert.Equal(t, tc.isNumber, ok)

			data, err := json.Marshal(tc.v)
			require.NoError(t, err)
			assert.JSONEq(t, tc.json, string(data))
		})
	}
}

func TestBatch(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := NewBatch(ts)
	b.SetNumber("cpu_percent", 10)
	b.SetText("device_status", "available")
	b.SetNumber("cpu_percent", 20)

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, []string{"cpu_percent", "device_status"}, b.Names())

	v, ok := b.Number("cpu_percent")
	require.True(t, ok)
	assert.InDelta(t, 20, v, 1e-9)

	_, ok = b.Number("device_status")
	assert.False(t, ok, "text is not a number")
	_, ok = b.Number("missing")
	assert.False(t, ok)

	b.SetStep(7)
	s, ok := b.Get("cpu_percent")
	require.True(t, ok)
	assert.Equal(t, int64(7), s.Step)
	assert.Equal(t, int64(7), b.Step)

	// Samples added after SetStep carry the batch step.
	b.SetNumber("memory_percent", 1)
	s, _ = b.Get("memory_percent")
	assert.Equal(t, int64(7), s.Step)
}

func TestBatchCloneAndMerge(t *testing.T) {
	a := NewBatch(time.Now())
	a.SetNumber("x", 1)

	c := a.Clone()
	c.SetNumber("x", 2)
	c.SetNumber("y", 3)

	v, _ := a.Number("x")
	assert.InDelta(t, 1, v, 1e-9, "clone must not share samples")
	assert.Equal(t, 1, a.Len())

	a.Merge(c)
	v, _ = a.Number("x")
	assert.InDelta(t, 2, v, 1e-9)
	assert.Equal(t, 2, a.Len())

	var zero Batch
	zero.SetText("z", "ok")
	assert.Equal(t, 1, zero.Len())
}

func TestBatchSetError(t *testing.T) {
	b := NewBatch(time.Now())
	b.SetError("disk", errors.New("no such file"))

	s, ok := b.Get("disk_status")
	require.True(t, ok)
	assert.Equal(t, "error", s.Value.String())
	s, ok = b.Get("disk_error")
	require.True(t, ok)
	assert.Equal(t, "no such file", s.Value.String())
}

func TestBatchMarshalJSON(t *testing.T) {
	b := NewBatch(time.Now())
	b.SetNumber("cpu_percent", 12.5)
	b.SetText("monitor_name", "resource")

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cpu_percent":12.5,"monitor_name":"resource"}`, string(data))
}

func TestBatchMarshalJSONNonFinite(t *testing.T) {
	b := NewBatch(time.Now())
	b.SetNumber("device_avg_duty_cycle", math.NaN())
	b.SetNumber("up", math.Inf(1))
	b.SetNumber("down", math.Inf(-1))
	b.SetNumber("cpu_percent", 3)

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"device_avg_duty_cycle":"NaN","up":"+Inf","down":"-Inf","cpu_percent":3}`,
		string(data))
}
