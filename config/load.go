package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// DefaultConfigFile is picked up from the working directory when no explicit
// path is given.
const DefaultConfigFile = "taskboard.toml"

// Load builds the effective configuration: defaults, then the TOML file (the
// given path, or DefaultConfigFile when present), then environment overrides.
// The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Listen = envStr("TASKBOARD_LISTEN", cfg.Listen)
	cfg.CORSOrigin = envStr("TASKBOARD_CORS_ORIGIN", cfg.CORSOrigin)

	cfg.Storage.Backend = envStr("TASKBOARD_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Path = envStr("TASKBOARD_STORAGE_PATH", cfg.Storage.Path)
	cfg.Storage.RedisAddr = envStr("TASKBOARD_REDIS_ADDR", cfg.Storage.RedisAddr)
	cfg.Storage.RedisPassword = envStr("TASKBOARD_REDIS_PASSWORD", cfg.Storage.RedisPassword)
	cfg.Storage.RedisDB = envInt("TASKBOARD_REDIS_DB", cfg.Storage.RedisDB)
	cfg.Storage.RedisTTL = envStr("TASKBOARD_REDIS_TTL", cfg.Storage.RedisTTL)
	cfg.Storage.SQLitePath = envStr("TASKBOARD_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.TablesConnectionString = envStr("TASKBOARD_TABLES_CONNECTION_STRING", cfg.Storage.TablesConnectionString)
	cfg.Storage.TablesName = envStr("TASKBOARD_TABLES_NAME", cfg.Storage.TablesName)

	cfg.Auth.Mode = envStr("TASKBOARD_AUTH_MODE", cfg.Auth.Mode)
	cfg.Auth.Secret = envStr("TASKBOARD_AUTH_SECRET", cfg.Auth.Secret)
	cfg.Auth.JWKSURL = envStr("TASKBOARD_AUTH_JWKS_URL", cfg.Auth.JWKSURL)
	cfg.Auth.Audience = envStr("TASKBOARD_AUTH_AUDIENCE", cfg.Auth.Audience)
	cfg.Auth.Issuer = envStr("TASKBOARD_AUTH_ISSUER", cfg.Auth.Issuer)

	cfg.Queue.Enabled = envBool("TASKBOARD_QUEUE_ENABLED", cfg.Queue.Enabled)
	cfg.Queue.ConnectionString = envStr("TASKBOARD_QUEUE_CONNECTION_STRING", cfg.Queue.ConnectionString)
	cfg.Queue.Name = envStr("TASKBOARD_QUEUE_NAME", cfg.Queue.Name)
	cfg.Queue.Buffer = envInt("TASKBOARD_QUEUE_BUFFER", cfg.Queue.Buffer)

	cfg.Log.Level = envStr("TASKBOARD_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envStr("TASKBOARD_LOG_FORMAT", cfg.Log.Format)
}

func envStr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
