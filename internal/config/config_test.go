package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
remote:
  base_url: http://inventory.example:9000
  timeout: 3s
database:
  path: /var/lib/izposoja/cache.sqlite3
session:
  mode: local
jobs:
  sweep_schedule: "@every 1m"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://inventory.example:9000", cfg.Remote.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "/var/lib/izposoja/cache.sqlite3", cfg.Database.Path)
	assert.Equal(t, "local", cfg.Session.Mode)
	assert.Equal(t, "@every 1m", cfg.Jobs.SweepSchedule)
	assert.Equal(t, "info", cfg.Log.Level, "unset fields keep defaults")
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty db path", "database:\n  path: \"\"\n"},
		{"bad mode", "session:\n  mode: airplane\n"},
		{"bad schedule", "jobs:\n  sweep_schedule: \"every so often\"\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"negative timeout", "remote:\n  timeout: -1s\n"},
		{"malformed yaml", "remote: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Remote.BaseURL = "http://10.0.0.5:8080"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
