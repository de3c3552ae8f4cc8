// Package config loads CLI settings from an optional YAML file and the
// environment. Command-line flags are applied on top by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/schemasync/internal/db"
	"github.com/tordrt/schemasync/internal/logging"
)

// Config is the full CLI configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig selects the target store
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// SQLiteConfig holds PRAGMA tuning
type SQLiteConfig struct {
	JournalMode  string        `yaml:"journal_mode"`
	Synchronous  string        `yaml:"synchronous"`
	ForeignKeys  bool          `yaml:"foreign_keys"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
	CacheSizeKiB int           `yaml:"cache_size_kib"`
}

// PostgresConfig holds the target schema and session timeouts
type PostgresConfig struct {
	Schema           string        `yaml:"schema"`
	LockTimeout      time.Duration `yaml:"lock_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		SQLite: SQLiteConfig{
			JournalMode: "WAL",
			Synchronous: "NORMAL",
			ForeignKeys: true,
			BusyTimeout: 5 * time.Second,
		},
		Postgres: PostgresConfig{
			Schema:      "public",
			LockTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults and then applies SCHEMASYNC_*
// environment variables. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml)", ext)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.LoadFromYAML(data); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromYAML decodes data over the current values
func (c *Config) LoadFromYAML(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// ApplyEnv overrides values from the environment:
//   - SCHEMASYNC_DATABASE_URL
//   - SCHEMASYNC_PG_SCHEMA
//   - SCHEMASYNC_LOG_LEVEL
//   - SCHEMASYNC_LOG_FORMAT
func (c *Config) ApplyEnv() {
	if val := os.Getenv("SCHEMASYNC_DATABASE_URL"); val != "" {
		c.Database.URL = val
	}
	if val := os.Getenv("SCHEMASYNC_PG_SCHEMA"); val != "" {
		c.Postgres.Schema = val
	}
	if val := os.Getenv("SCHEMASYNC_LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("SCHEMASYNC_LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
}

var (
	journalModes = []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}
	syncModes    = []string{"OFF", "NORMAL", "FULL", "EXTRA"}
)

// Validate checks enumerated settings and durations
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	if c.SQLite.JournalMode != "" && !oneOf(c.SQLite.JournalMode, journalModes) {
		return fmt.Errorf("sqlite journal_mode %q must be one of %s", c.SQLite.JournalMode, strings.Join(journalModes, ", "))
	}
	if c.SQLite.Synchronous != "" && !oneOf(c.SQLite.Synchronous, syncModes) {
		return fmt.Errorf("sqlite synchronous %q must be one of %s", c.SQLite.Synchronous, strings.Join(syncModes, ", "))
	}
	if c.SQLite.BusyTimeout < 0 || c.Postgres.LockTimeout < 0 || c.Postgres.StatementTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.SQLite.CacheSizeKiB < 0 {
		return fmt.Errorf("sqlite cache_size_kib must not be negative")
	}
	return nil
}

// SQLiteTuning converts the sqlite section for the store
func (c *Config) SQLiteTuning() db.SQLiteTuning {
	return db.SQLiteTuning{
		JournalMode:  strings.ToUpper(c.SQLite.JournalMode),
		Synchronous:  strings.ToUpper(c.SQLite.Synchronous),
		ForeignKeys:  c.SQLite.ForeignKeys,
		BusyTimeout:  c.SQLite.BusyTimeout,
		CacheSizeKiB: c.SQLite.CacheSizeKiB,
	}
}

// PostgresTuning converts the postgres section for the store
func (c *Config) PostgresTuning() db.PostgresTuning {
	return db.PostgresTuning{
		LockTimeout:      c.Postgres.LockTimeout,
		StatementTimeout: c.Postgres.StatementTimeout,
	}
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}
