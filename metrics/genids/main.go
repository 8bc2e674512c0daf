// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"os"
)

type metricDef struct {
	Description string `json:"description"`
	MetricType  string `json:"type"`
	Name        string `json:"name"`
	FieldName   string `json:"field"`
	Unit        string `json:"unit"`
	Obsolete    bool   `json:"obsolete"`
}

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <metrics.json> <output.go>\n", os.Args[0])
		os.Exit(1)
	}

	input, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v", os.Args[1], err)
		os.Exit(1)
	}

	var metricDefs []metricDef
	if err = json.Unmarshal(input, &metricDefs); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling: %v", err)
		os.Exit(1)
	}

	var output bytes.Buffer
	output.WriteString(
		"// Code generated from metrics.json. DO NOT EDIT.\n" +
			"\n" +
			"package metrics\n" +
			"\n" +
			"// To add a new metric append an entry to metrics.json.\n" +
			"// Then run 'go generate ./metrics'.\n" +
			"\n" +
			"// Names of the metrics with a fixed name.\n" +
			"const (\n")

	seen := make(map[string]bool, len(metricDefs))
	for _, m := range metricDefs {
		if m.Obsolete {
			continue
		}
		if m.FieldName == "" || seen[m.FieldName] {
			fmt.Fprintf(os.Stderr, "Missing or duplicate field for %q\n", m.Name)
			os.Exit(1)
		}
		seen[m.FieldName] = true

		fmt.Fprintf(&output, "\n\t// %s\n\tName%s = %q\n", m.Description, m.FieldName, m.Name)
	}
	output.WriteString(")\n")

	src, err := format.Source(output.Bytes())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting: %v", err)
		os.Exit(1)
	}
	if err = os.WriteFile(os.Args[2], src, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v", err)
		os.Exit(1)
	}
}
