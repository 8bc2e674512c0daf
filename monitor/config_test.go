// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("Resource")
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 60*time.Second, cfg.SamplingInterval)
	assert.Equal(t, filepath.Join("logs", "resource"), cfg.LogDir)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := map[string]struct {
		cfg   Config
		field string
	}{
		"empty name": {
			cfg:   Config{SamplingInterval: time.Second},
			field: "name"},
		"blank name": {
			cfg:   Config{Name: "  ", SamplingInterval: time.Second},
			field: "name"},
		"zero interval": {
			cfg:   Config{Name: "x"},
			field: "sampling_interval"},
		"negative interval": {
			cfg:   Config{Name: "x", SamplingInterval: -time.Second},
			field: "sampling_interval"},
		"negative join timeout": {
			cfg:   Config{Name: "x", SamplingInterval: time.Second, JoinTimeout: -1},
			field: "join_timeout"},
		"negative collect timeout": {
			cfg:   Config{Name: "x", SamplingInterval: time.Second, CollectTimeout: -1},
			field: "collect_timeout"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(tc.cfg, nil, nil)
			var cerr *ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.field, cerr.Field)
		})
	}
}

func TestConfigNormalize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "transfer")
	m, err := New(Config{
		Name:             " Transfer ",
		SamplingInterval: time.Minute,
		LogDir:           dir,
	}, nil, nil)
	require.NoError(t, err)

	cfg := m.Config()
	assert.Equal(t, "transfer", cfg.Name)
	assert.Equal(t, DefaultJoinTimeout, cfg.JoinTimeout)
	assert.Equal(t, 30*time.Second, cfg.CollectTimeout, "capped at 30s")

	st, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, st.IsDir())

	m, err = New(Config{Name: "fast", SamplingInterval: time.Second}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, m.Config().CollectTimeout)
}

func TestConfigLogDirFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := New(Config{
		Name:             "x",
		SamplingInterval: time.Second,
		LogDir:           filepath.Join(file, "sub"),
	}, nil, nil)
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "log_dir", cerr.Field)
}
