// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tomtom215/recommender/internal/api"
	"github.com/tomtom215/recommender/internal/config"
	"github.com/tomtom215/recommender/internal/logging"
	"github.com/tomtom215/recommender/internal/replica"
	"github.com/tomtom215/recommender/internal/supervisor"
	"github.com/tomtom215/recommender/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Recommender stopped with error")
	}
}

//nolint:gocyclo // sequential bootstrap
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	logging.Info().
		Str("bus_driver", cfg.Bus.Driver).
		Str("duckdb_path", cfg.Database.Path).
		Str("catalog", cfg.Catalog.BaseURL).
		Int("port", cfg.Server.Port).
		Msg("Starting recommender")

	store, err := replica.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open replica: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing replica")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if stats, err := store.Stats(ctx); err == nil {
		logging.Info().
			Int64("products", stats.Products).
			Int64("interactions", stats.Interactions).
			Msg("Replica opened")
	}

	tree, err := supervisor.NewSupervisorTree(
		slog.New(logging.NewSlogHandler(logger)),
		supervisor.TreeConfigFrom(&cfg.Supervisor),
	)
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	engine, err := initRecommend(ctx, cfg, store, logger, tree)
	if err != nil {
		return err
	}

	busComponents, err := initBus(cfg, store, logger, tree)
	if err != nil {
		return err
	}
	defer busComponents.Shutdown()

	handler := api.NewHandler(engine, store, logger)
	router := api.NewRouter(handler, api.MiddlewareConfigFromServer(&cfg.Server))
	httpServer := &http.Server{
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       2 * cfg.Server.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(logging.NewSlogHandler(logger), slog.LevelWarn),
	}
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, addr, cfg.Server.ShutdownTimeout, logger))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Recommender stopped")
	return nil
}
