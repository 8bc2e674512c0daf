// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "github.com/researchops/opsmon/metrics"

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
)

var (
	//go:embed metrics.json
	metricsJSON []byte

	byName = sync.OnceValues(func() (map[string]MetricDefinition, error) {
		defs, err := GetDefinitions()
		if err != nil {
			return nil, err
		}
		m := make(map[string]MetricDefinition, len(defs))
		for _, md := range defs {
			if md.Obsolete {
				continue
			}
			m[md.Name] = md
		}
		return m, nil
	})
)

// GetDefinitions returns the metric definitions from the embedded metrics.json file.
func GetDefinitions() ([]MetricDefinition, error) {
	var defs []MetricDefinition

	dec := json.NewDecoder(bytes.NewReader(metricsJSON))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("extracting definitions from metrics.json: %w", err)
	}
	for _, md := range defs {
		switch md.Type {
		case MetricTypeGauge, MetricTypeCounter:
		default:
			return nil, fmt.Errorf("metric %s: unknown type %q", md.Name, md.Type)
		}
	}
	return defs, nil
}

// Lookup returns the definition of the metric called name. Metrics with a
// dynamic name, like per device or per endpoint values, have no definition.
func Lookup(name string) (MetricDefinition, bool) {
	m, err := byName()
	if err != nil {
		return MetricDefinition{}, false
	}
	md, ok := m[name]
	return md, ok
}
