package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadFileAndEnvLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskboard.toml")
	file := `
listen = ":9090"

[storage]
backend = "sqlite"
sqlite_path = "boards.db"

[log]
level = "debug"
format = "json"
`
	if err := os.WriteFile(path, []byte(file), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TASKBOARD_LISTEN", ":7070")
	t.Setenv("TASKBOARD_LOG_LEVEL", "warning")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Env wins over file, file wins over default.
	if cfg.Listen != ":7070" {
		t.Errorf("listen = %q, want :7070", cfg.Listen)
	}
	if cfg.Log.Level != "warning" {
		t.Errorf("log level = %q, want warning", cfg.Log.Level)
	}
	if cfg.Storage.Backend != BackendSQLite || cfg.Storage.SQLitePath != "boards.db" {
		t.Errorf("storage not taken from file: %+v", cfg.Storage)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format = %q, want json", cfg.Log.Format)
	}
	if cfg.CORSOrigin != DefaultCORSOrigin {
		t.Errorf("cors origin = %q, want default", cfg.CORSOrigin)
	}
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "dynamo" }, "storage.backend"},
		{"file without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"redis without addr", func(c *Config) { c.Storage.Backend = BackendRedis }, "storage.redis_addr"},
		{"bad redis ttl", func(c *Config) {
			c.Storage.Backend = BackendRedis
			c.Storage.RedisAddr = "localhost:6379"
			c.Storage.RedisTTL = "soon"
		}, "storage.redis_ttl"},
		{"tables without connection", func(c *Config) { c.Storage.Backend = BackendTables }, "storage.tables_connection_string"},
		{"hs256 without secret", func(c *Config) { c.Auth.Mode = AuthHS256 }, "auth.secret"},
		{"jwks without url", func(c *Config) { c.Auth.Mode = AuthJWKS }, "auth.jwks_url"},
		{"unknown auth mode", func(c *Config) { c.Auth.Mode = "mtls" }, "auth.mode"},
		{"queue without name", func(c *Config) {
			c.Queue.Enabled = true
			c.Queue.ConnectionString = "UseDevelopmentStorage=true"
		}, "queue.name"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Fatalf("error %q does not name field %s", err, tt.field)
			}
		})
	}
}

func TestValidateDefaultsQueueBuffer(t *testing.T) {
	cfg := Default()
	cfg.Queue.Buffer = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Queue.Buffer != DefaultQueueSize {
		t.Fatalf("buffer = %d, want %d", cfg.Queue.Buffer, DefaultQueueSize)
	}
}
