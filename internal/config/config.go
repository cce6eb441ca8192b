// Package config loads the client configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/erazemk/izposoja/internal/jobs"
	"github.com/erazemk/izposoja/internal/logging"
	"github.com/erazemk/izposoja/internal/session"
)

// Config is the client configuration.
type Config struct {
	Remote   RemoteConfig   `yaml:"remote"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Session  SessionConfig  `yaml:"session"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

// RemoteConfig points at the authoritative service.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig locates the local store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls logging. File is optional; when set, logs are also
// written there with rotation.
type LogConfig struct {
	Level      string `yaml:"level"` // "debug", "info", "warn", "error"
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// SessionConfig sets the mode used when no session has been saved.
type SessionConfig struct {
	Mode string `yaml:"mode"`
}

// JobsConfig schedules background jobs.
type JobsConfig struct {
	SweepSchedule string `yaml:"sweep_schedule"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Remote: RemoteConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 15 * time.Second,
		},
		Database: DatabaseConfig{Path: "izposoja.sqlite3"},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Session: SessionConfig{Mode: string(session.Connected)},
		Jobs:    JobsConfig{SweepSchedule: jobs.DefaultSweepSchedule},
	}
}

// Load reads configuration from a YAML file. Fields missing from the file
// keep their defaults; a missing file yields Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Remote.Timeout < 0 {
		return fmt.Errorf("invalid remote timeout: %s", c.Remote.Timeout)
	}
	if _, err := session.ParseMode(c.Session.Mode); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Jobs.SweepSchedule != "" {
		if _, err := jobs.ParseSchedule(c.Jobs.SweepSchedule); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
