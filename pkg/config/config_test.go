package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.PageLoad.Std())
	assert.Equal(t, 2*time.Second, cfg.Timeouts.CheckInterval.Std())
	assert.Contains(t, cfg.Notebook.Cells, cfg.Notebook.InputCellIndex)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
notebook:
  url: https://colab.research.google.com/drive/abc123
  cells: [0, 1, 2, 3]
  input_cell_index: 2
timeouts:
  page_load: 90s
  generation: 15m
retry:
  max_attempts: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://colab.research.google.com/drive/abc123", cfg.Notebook.URL)
	assert.Equal(t, []int{0, 1, 2, 3}, cfg.Notebook.Cells)
	assert.Equal(t, 2, cfg.Notebook.InputCellIndex)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.PageLoad.Std())
	assert.Equal(t, 15*time.Minute, cfg.Timeouts.Generation.Std())
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)

	// untouched sections keep their defaults
	assert.Equal(t, 5*time.Minute, cfg.Timeouts.RuntimeConnect.Std())
	assert.Equal(t, "TEXT_TO_SYNTHESIZE", cfg.Notebook.TextVariable)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadNumericDurationsAreSeconds(t *testing.T) {
	path := writeConfig(t, `
timeouts:
  page_load: 45
  download: 1.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Timeouts.PageLoad.Std())
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeouts.Download.Std())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "notebook: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadInvalidDurationString(t *testing.T) {
	path := writeConfig(t, `
timeouts:
  page_load: soon
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty url",
			mutate:  func(c *Config) { c.Notebook.URL = " " },
			wantErr: "notebook url is required",
		},
		{
			name:    "empty cells",
			mutate:  func(c *Config) { c.Notebook.Cells = nil },
			wantErr: "cells list is empty",
		},
		{
			name:    "negative cell index",
			mutate:  func(c *Config) { c.Notebook.Cells = []int{-1, 14} },
			wantErr: "is negative",
		},
		{
			name:    "out of order cells",
			mutate:  func(c *Config) { c.Notebook.Cells = []int{4, 2, 14} },
			wantErr: "strictly increasing",
		},
		{
			name:    "duplicate cells",
			mutate:  func(c *Config) { c.Notebook.Cells = []int{2, 2, 14} },
			wantErr: "strictly increasing",
		},
		{
			name:    "input cell not in list",
			mutate:  func(c *Config) { c.Notebook.InputCellIndex = 99 },
			wantErr: "not in the cells list",
		},
		{
			name:    "unknown auth method",
			mutate:  func(c *Config) { c.Auth.Method = "oauth" },
			wantErr: "invalid auth method",
		},
		{
			name: "cookies without file",
			mutate: func(c *Config) {
				c.Auth.Method = AuthCookies
				c.Auth.CookiesFile = ""
			},
			wantErr: "requires cookies_file",
		},
		{
			name: "interactive without file is fine",
			mutate: func(c *Config) {
				c.Auth.Method = AuthInteractive
				c.Auth.CookiesFile = ""
			},
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Timeouts.Generation = 0 },
			wantErr: "timeout generation must be positive",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Retry.MaxAttempts = 0 },
			wantErr: "max_attempts must be at least 1",
		},
		{
			name:    "multiplier below one",
			mutate:  func(c *Config) { c.Retry.BackoffMultiplier = 0.5 },
			wantErr: "backoff_multiplier must be at least 1.0",
		},
		{
			name:    "zero viewport",
			mutate:  func(c *Config) { c.Browser.ViewportWidth = 0 },
			wantErr: "viewport dimensions must be positive",
		},
		{
			name:    "zero speed",
			mutate:  func(c *Config) { c.Generation.Speed = 0 },
			wantErr: "speed must be positive",
		},
		{
			name:    "empty bulletin dir",
			mutate:  func(c *Config) { c.Paths.BulletinDir = "" },
			wantErr: "bulletin_dir is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
