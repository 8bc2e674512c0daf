// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefinitions(t *testing.T) {
	defs, err := GetDefinitions()
	require.NoError(t, err)
	assert.Greater(t, len(defs), 1)

	names := make(map[string]bool, len(defs))
	fields := make(map[string]bool, len(defs))
	for _, md := range defs {
		assert.NotEmpty(t, md.Name)
		assert.NotEmpty(t, md.Unit, md.Name)
		assert.NotEmpty(t, md.Description, md.Name)
		assert.False(t, names[md.Name], "duplicate name %s", md.Name)
		assert.False(t, fields[md.Field], "duplicate field %s", md.Field)
		names[md.Name] = true
		fields[md.Field] = true
	}
}

func TestLookup(t *testing.T) {
	tests := map[string]struct {
		name  string
		found bool
		unit  string
		typ   MetricType
	}{
		"cpu":     {name: NameCPUPercent, found: true, unit: "%", typ: MetricTypeGauge},
		"counter": {name: NameTransferProbesOK, found: true, unit: "{probe}", typ: MetricTypeCounter},
		"dynamic": {name: "device_duty_cycle_tpu_0", found: false},
		"empty":   {name: "", found: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			md, ok := Lookup(tc.name)
			require.Equal(t, tc.found, ok)
			if !tc.found {
				return
			}
			assert.Equal(t, tc.name, md.Name)
			assert.Equal(t, tc.unit, md.Unit)
			assert.Equal(t, tc.typ, md.Type)
		})
	}
}
