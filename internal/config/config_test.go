package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SQLite.JournalMode != "WAL" || !cfg.SQLite.ForeignKeys || cfg.SQLite.BusyTimeout != 5*time.Second {
		t.Errorf("unexpected sqlite defaults %+v", cfg.SQLite)
	}
	if cfg.Postgres.Schema != "public" {
		t.Errorf("Postgres.Schema = %q, want public", cfg.Postgres.Schema)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "schemasync.yaml", `
database:
  url: sqlite:///var/lib/arena/arena.db
sqlite:
  journal_mode: delete
  foreign_keys: false
  busy_timeout: 250ms
  cache_size_kib: 8192
postgres:
  schema: arena
  statement_timeout: 30s
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != "sqlite:///var/lib/arena/arena.db" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	tuning := cfg.SQLiteTuning()
	if tuning.JournalMode != "DELETE" || tuning.ForeignKeys || tuning.BusyTimeout != 250*time.Millisecond || tuning.CacheSizeKiB != 8192 {
		t.Errorf("SQLiteTuning() = %+v", tuning)
	}
	// Untouched keys keep their defaults
	if tuning.Synchronous != "NORMAL" {
		t.Errorf("Synchronous = %q, want default NORMAL", tuning.Synchronous)
	}
	pg := cfg.PostgresTuning()
	if cfg.Postgres.Schema != "arena" || pg.StatementTimeout != 30*time.Second || pg.LockTimeout != 10*time.Second {
		t.Errorf("postgres config = %+v", cfg.Postgres)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log config = %+v", cfg.Log)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "schemasync.yml", "database:\n  url: sqlite://file.db\n")
	t.Setenv("SCHEMASYNC_DATABASE_URL", "postgres://localhost/arena")
	t.Setenv("SCHEMASYNC_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.URL != "postgres://localhost/arena" {
		t.Errorf("Database.URL = %q, want env value", cfg.Database.URL)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		errMsg  string
	}{
		{name: "unsupported extension", file: "config.toml", content: "", errMsg: "unsupported config file format"},
		{name: "malformed yaml", file: "bad.yaml", content: "sqlite: [", errMsg: "failed to parse YAML config"},
		{name: "bad journal mode", file: "jm.yaml", content: "sqlite:\n  journal_mode: fast\n", errMsg: "journal_mode"},
		{name: "bad log level", file: "lvl.yaml", content: "log:\n  level: loud\n", errMsg: "unknown log level"},
		{name: "negative timeout", file: "neg.yaml", content: "postgres:\n  lock_timeout: -1s\n", errMsg: "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
