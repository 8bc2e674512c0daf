// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package transfer // import "github.com/researchops/opsmon/transfer"

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
)

// Operation is the kind of a transfer probe.
type Operation string

const (
	Upload   Operation = "upload"
	Download Operation = "download"
)

// Status is the outcome of a probe.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// cleanupTimeout bounds the removal of a probe object.
const cleanupTimeout = 30 * time.Second

// ProbeError describes a failed probe.
type ProbeError struct {
	Operation Operation
	Path      string
	Err       error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s probe of %s failed: %v", e.Operation, e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// ProbeResult is the outcome of one upload or download probe.
type ProbeResult struct {
	Timestamp       time.Time `json:"timestamp"`
	Operation       Operation `json:"operation"`
	Path            string    `json:"path"`
	SizeBytes       int64     `json:"size_bytes"`
	DurationSeconds float64   `json:"duration_seconds"`
	RateBytesPerSec float64   `json:"rate_bytes_per_sec,omitempty"`
	Status          Status    `json:"status"`
	ErrorDetail     string    `json:"error,omitempty"`

	// Err is a *ProbeError if Status is StatusError.
	Err error `json:"-"`
}

// OK reports whether the probe succeeded.
func (r ProbeResult) OK() bool {
	return r.Status == StatusSuccess
}

func (r ProbeResult) fail(err error) ProbeResult {
	pe := &ProbeError{Operation: r.Operation, Path: r.Path, Err: err}
	r.Status = StatusError
	r.ErrorDetail = pe.Error()
	r.Err = pe
	return r
}

func (r ProbeResult) succeed(d time.Duration) ProbeResult {
	r.Status = StatusSuccess
	r.DurationSeconds = d.Seconds()
	if d > 0 {
		r.RateBytesPerSec = float64(r.SizeBytes) / d.Seconds()
	}
	return r
}

var errDigestMismatch = errors.New("downloaded content does not match the upload")

// objectPath returns a new unique object path below the probe prefix.
func (m *Monitor) objectPath() string {
	return path.Join(m.opts.ProbePrefix, fmt.Sprintf("probe_%d_%s.bin",
		m.opts.ProbeSizeBytes, uuid.NewString()))
}

// writeScratch fills a scratch file with random bytes and returns its name.
func (m *Monitor) writeScratch() (string, error) {
	data := make([]byte, m.opts.ProbeSizeBytes)
	if _, err := rand.Read(data); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(m.opts.ScratchDir, "opsmon-upload-*.bin")
	if err != nil {
		return "", err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err = f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// removeRemote deletes an object, also after ctx was canceled.
func (m *Monitor) removeRemote(ctx context.Context, p string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := m.store.Delete(ctx, p); err != nil {
		m.Logger().Warnf("Failed to remove probe object %s: %v", p, err)
	}
}

func removeScratch(name string) {
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("Failed to remove scratch file %s: %v", name, err)
	}
}

// probeUpload times the upload of a scratch file of random bytes.
func (m *Monitor) probeUpload(ctx context.Context) ProbeResult {
	res := ProbeResult{
		Timestamp: time.Now(),
		Operation: Upload,
		Path:      m.objectPath(),
		SizeBytes: m.opts.ProbeSizeBytes,
	}

	scratch, err := m.writeScratch()
	if err != nil {
		return res.fail(fmt.Errorf("failed to create scratch file: %w", err))
	}
	defer removeScratch(scratch)
	data, err := os.ReadFile(scratch)
	if err != nil {
		return res.fail(err)
	}
	defer m.removeRemote(ctx, res.Path)

	ctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()
	start := time.Now()
	if err = m.store.Put(ctx, res.Path, data); err != nil {
		return res.fail(err)
	}
	return res.succeed(time.Since(start))
}

// probeDownload seeds an object, times its download into a scratch file and
// verifies the content.
func (m *Monitor) probeDownload(ctx context.Context) ProbeResult {
	res := ProbeResult{
		Timestamp: time.Now(),
		Operation: Download,
		Path:      m.objectPath(),
		SizeBytes: m.opts.ProbeSizeBytes,
	}

	data := make([]byte, m.opts.ProbeSizeBytes)
	if _, err := rand.Read(data); err != nil {
		return res.fail(err)
	}
	digest := xxh3.Hash(data)

	ctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()
	defer m.removeRemote(ctx, res.Path)
	if err := m.store.Put(ctx, res.Path, data); err != nil {
		return res.fail(fmt.Errorf("failed to seed object: %w", err))
	}

	start := time.Now()
	got, err := m.store.Get(ctx, res.Path)
	if err != nil {
		return res.fail(err)
	}
	f, err := os.CreateTemp(m.opts.ScratchDir, "opsmon-download-*.bin")
	if err != nil {
		return res.fail(err)
	}
	defer removeScratch(f.Name())
	_, err = f.Write(got)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return res.fail(err)
	}
	elapsed := time.Since(start)

	if xxh3.Hash(got) != digest {
		return res.fail(errDigestMismatch)
	}
	return res.succeed(elapsed)
}
