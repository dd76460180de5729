// Package config handles configuration loading: built-in defaults, an
// optional TOML file, then TASKBOARD_* environment overrides, in that order.
package config

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Storage backend names accepted by Config.Storage.Backend.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendTables = "aztables"
)

// Auth modes accepted by Config.Auth.Mode.
const (
	AuthOff   = "off"
	AuthHS256 = "hs256"
	AuthJWKS  = "jwks"
)

// Default values.
const (
	DefaultListen     = ":8080"
	DefaultCORSOrigin = "*"
	DefaultStatePath  = "taskboard.json"
	DefaultSQLitePath = "taskboard.db"
	DefaultTablesName = "taskboard"
	DefaultQueueSize  = 256
)

// Config holds the full configuration for taskboard.
type Config struct {
	Listen     string `toml:"listen"`
	CORSOrigin string `toml:"cors_origin"`

	Storage StorageConfig `toml:"storage"`
	Auth    AuthConfig    `toml:"auth"`
	Queue   QueueConfig   `toml:"queue"`
	Log     LogConfig     `toml:"log"`
}

// StorageConfig selects the document backend and its settings. Only the
// fields of the selected backend are consulted.
type StorageConfig struct {
	Backend string `toml:"backend"`

	// file
	Path string `toml:"path"`

	// redis
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisTTL      string `toml:"redis_ttl"`

	// sqlite
	SQLitePath string `toml:"sqlite_path"`

	// aztables
	TablesConnectionString string `toml:"tables_connection_string"`
	TablesName             string `toml:"tables_name"`
}

// RedisTTLDuration parses the configured TTL. Empty means no expiry.
func (s StorageConfig) RedisTTLDuration() (time.Duration, error) {
	if s.RedisTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.RedisTTL)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("storage.redis_ttl: invalid duration %q", s.RedisTTL)
	}
	return d, nil
}

// AuthConfig controls bearer auth on the HTTP surface.
type AuthConfig struct {
	Mode     string `toml:"mode"`
	Secret   string `toml:"secret"`
	JWKSURL  string `toml:"jwks_url"`
	Audience string `toml:"audience"`
	Issuer   string `toml:"issuer"`
}

// QueueConfig controls the optional Azure Storage Queue notification sink.
type QueueConfig struct {
	Enabled          bool   `toml:"enabled"`
	ConnectionString string `toml:"connection_string"`
	Name             string `toml:"name"`
	Buffer           int    `toml:"buffer"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration a bare invocation runs with: file
// persistence next to the working directory, no auth, no queue sink.
func Default() *Config {
	return &Config{
		Listen:     DefaultListen,
		CORSOrigin: DefaultCORSOrigin,
		Storage: StorageConfig{
			Backend:    BackendFile,
			Path:       DefaultStatePath,
			SQLitePath: DefaultSQLitePath,
			TablesName: DefaultTablesName,
		},
		Auth:  AuthConfig{Mode: AuthOff},
		Queue: QueueConfig{Buffer: DefaultQueueSize},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Validate rejects contradictory or incomplete settings. Error messages name
// the offending field in toml notation.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path: required for the file backend")
		}
	case BackendMemory:
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr: required for the redis backend")
		}
		if _, err := c.Storage.RedisTTLDuration(); err != nil {
			return err
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path: required for the sqlite backend")
		}
	case BackendTables:
		if c.Storage.TablesConnectionString == "" {
			return fmt.Errorf("storage.tables_connection_string: required for the aztables backend")
		}
		if c.Storage.TablesName == "" {
			return fmt.Errorf("storage.tables_name: required for the aztables backend")
		}
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}

	switch c.Auth.Mode {
	case AuthOff:
	case AuthHS256:
		if c.Auth.Secret == "" {
			return fmt.Errorf("auth.secret: required when auth.mode is hs256")
		}
	case AuthJWKS:
		if c.Auth.JWKSURL == "" {
			return fmt.Errorf("auth.jwks_url: required when auth.mode is jwks")
		}
	default:
		return fmt.Errorf("auth.mode: unknown mode %q", c.Auth.Mode)
	}

	if c.Queue.Enabled {
		if c.Queue.ConnectionString == "" {
			return fmt.Errorf("queue.connection_string: required when the queue sink is enabled")
		}
		if c.Queue.Name == "" {
			return fmt.Errorf("queue.name: required when the queue sink is enabled")
		}
	}
	if c.Queue.Buffer <= 0 {
		c.Queue.Buffer = DefaultQueueSize
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// NewLogger builds a logrus logger per the log section. Validate first; an
// unparsable level falls back to info here.
func (c *Config) NewLogger() *log.Logger {
	logger := log.New()
	if level, err := log.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Log.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	}
	return logger
}
