package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskboard/api"
	"taskboard/config"
	"taskboard/index"
	"taskboard/state"
)

const shutdownGrace = 10 * time.Second

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address, overrides the configured one")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	container := state.New(store, logger)
	defer container.Close()
	container.Load(ctx)

	idx := index.New(logger)
	binder := index.Bind(container, idx)
	defer binder.Close()

	auth, err := newAuthenticator(cfg)
	if err != nil {
		return err
	}

	if cfg.Queue.Enabled {
		queue, err := api.NewQueueClient(cfg.Queue.ConnectionString, cfg.Queue.Name)
		if err != nil {
			return err
		}
		sink := api.NewQueueSink(queue, cfg.Queue.Buffer, logger)
		sink.Attach(container)
		defer sink.Close()
	}

	server := api.NewServer(container, container, idx, api.Options{
		CORSOrigin: cfg.CORSOrigin,
		Auth:       auth,
		Logger:     logger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("api.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newAuthenticator(cfg *config.Config) (api.Authenticator, error) {
	switch cfg.Auth.Mode {
	case config.AuthHS256:
		return api.NewHS256Auth(cfg.Auth.Secret, cfg.Auth.Audience, cfg.Auth.Issuer), nil
	case config.AuthJWKS:
		return api.NewJWKSAuth(cfg.Auth.JWKSURL, cfg.Auth.Audience, cfg.Auth.Issuer)
	default:
		return api.NoAuth{}, nil
	}
}
