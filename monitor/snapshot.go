// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor // import "github.com/researchops/opsmon/monitor"

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SnapshotFileName is the conventional file name for SnapshotWriter.
const SnapshotFileName = "latest_metrics.json"

const snapshotStatusOK = "ok"

type snapshot struct {
	Timestamp string `json:"timestamp"`
	Monitor   string `json:"monitor"`
	Status    string `json:"status"`
	Metrics   Batch  `json:"metrics"`
}

// SnapshotWriter returns a Subscriber that keeps the latest batch in the JSON
// file at path. The file is replaced atomically so readers never see a partial
// document.
func SnapshotWriter(path string) Subscriber {
	return func(batch Batch, ts time.Time) error {
		name := ""
		if s, ok := batch.Get(KeyMonitorName); ok {
			name = s.Value.String()
		}
		data, err := json.MarshalIndent(snapshot{
			Timestamp: ts.UTC().Format(time.RFC3339),
			Monitor:   name,
			Status:    snapshotStatusOK,
			Metrics:   batch,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		return writeFileAtomic(path, data)
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err = f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
