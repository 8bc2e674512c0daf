// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package transfer // import "github.com/researchops/opsmon/transfer"

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// resultFilePrefix keeps the file names readable by existing report tooling.
const resultFilePrefix = "gcs_transfer_"

// ResultWriter persists a batch of buffered probe results.
type ResultWriter interface {
	WriteResults(results []ProbeResult) error
}

// FileResultWriter writes every batch to its own gcs_transfer_<time>.json file
// in Dir.
type FileResultWriter struct {
	Dir string
	now func() time.Time
}

var _ ResultWriter = (*FileResultWriter)(nil)

func (w *FileResultWriter) WriteResults(results []ProbeResult) error {
	if len(results) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	now := time.Now
	if w.now != nil {
		now = w.now
	}
	base := resultFilePrefix + now().Format("20060102_150405")

	name := filepath.Join(w.Dir, base+".json")
	for i := 1; ; i++ {
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if errors.Is(err, fs.ErrExist) {
			name = filepath.Join(w.Dir, fmt.Sprintf("%s_%d.json", base, i))
			continue
		}
		if err != nil {
			return err
		}
		if _, err = f.Write(data); err != nil {
			f.Close()
			return err
		}
		if err = f.Close(); err != nil {
			return err
		}
		log.Infof("Saved %d transfer probe results to %s", len(results), name)
		return nil
	}
}

// ReadResults reads a file written by FileResultWriter.
func ReadResults(name string) ([]ProbeResult, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var results []ProbeResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return results, nil
}
