package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"parcelas/internal/backend"
	"parcelas/internal/cache"
	"parcelas/internal/cli"
	apphttp "parcelas/internal/http"
	applog "parcelas/internal/log"
	"parcelas/internal/services"
	"parcelas/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(slog.Default())
	logger := cli.SetupLogger(cfg.LogLevel)
	origin := cli.InstanceOrigin()

	backendCfg, err := backend.FromAppConfig(cfg, origin)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	caches := cache.NewManager(logger.Logger)
	var aggOpts []services.AggregatorOption
	if cfg.CacheSize > 0 {
		aggOpts = append(aggOpts, services.WithCache(cfg.CacheSize, cfg.CacheTTL, caches))
		caches.StartCleanup(cfg.CacheTTL)
	}
	aggregator := services.NewAggregator(res.Backend, res.Backend, res.Backend, aggOpts...)

	ledgerOpts := []services.LedgerOption{
		services.WithAggregator(aggregator),
		services.WithLogger(logger),
	}
	if res.Events != nil {
		ledgerOpts = append(ledgerOpts, services.WithPublisher(res.Events))
	}
	ledger := services.NewLedgerService(res.Backend, ledgerOpts...)

	srv := apphttp.NewServer(":"+cfg.Port, ledger, apphttp.Options{
		UserHeader:         cfg.UserHeader,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		Logger:             logger,
		Caches:             caches,
	})

	release := func() {
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}

	ctx, done := cli.GracefulShutdown(logger.Logger, cfg.ShutdownTimeout, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		release()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting parcelas server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", res.Events != nil,
			"cache_size", cfg.CacheSize,
			applog.FieldOperation, applog.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if res.Events != nil {
		invalidator := worker.NewInvalidationWorker(aggregator, origin)
		g.Go(func() error {
			// Consumer failures are logged; the server keeps running.
			if err := invalidator.Run(gctx, res.Events); err != nil {
				logger.Error("Cache invalidation worker stopped", "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = srv.Shutdown(context.Background())
		release()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
