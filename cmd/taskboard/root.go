package main

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskboard/config"
	"taskboard/domain"
	"taskboard/storage"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "taskboard",
	Short: "Task board manager with a versioned state store",
	Long: `taskboard keeps boards and tasks in a single versioned state document
and serves them over HTTP, with offline commands for listing, searching,
transfer and schema migration.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default "+config.DefaultConfigFile+" in the working directory)")
}

func loadConfig() (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.NewLogger(), nil
}

// openStore builds the configured backend and wraps it in the document store.
// The returned closer releases backend resources and is never nil.
func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (*storage.Store, func(), error) {
	backend, closeFn, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() {}
	}
	return storage.New(backend, logger), closeFn, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		return storage.NewFileBackend(cfg.Storage.Path), nil, nil
	case config.BackendMemory:
		return storage.NewMemoryBackend(), nil, nil
	case config.BackendRedis:
		ttl, err := cfg.Storage.RedisTTLDuration()
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Storage.RedisAddr, err)
		}
		return storage.NewRedisBackend(client, storage.DocumentKey, ttl), func() { _ = client.Close() }, nil
	case config.BackendSQLite:
		backend, err := storage.NewSQLiteBackend(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { _ = backend.Close() }, nil
	case config.BackendTables:
		backend, err := storage.NewTablesBackend(cfg.Storage.TablesConnectionString, cfg.Storage.TablesName)
		if err != nil {
			return nil, nil, err
		}
		if err := backend.EnsureTable(ctx); err != nil {
			return nil, nil, err
		}
		return backend, nil, nil
	}
	// Validate rejects unknown backends before we get here.
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// findBoard resolves a --board flag value against the state, by id first and
// by case-insensitive name second.
func findBoard(st domain.AppState, ref string) (domain.Board, bool) {
	if board, ok := st.FindBoard(ref); ok {
		return board, true
	}
	for i := range st.Boards {
		if strings.EqualFold(st.Boards[i].Name, ref) {
			return st.Boards[i].Clone(), true
		}
	}
	return domain.Board{}, false
}
