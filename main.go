package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/printexchange/print-exchange-backend/internal/domain/clock"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/config"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/telemetry"
	"github.com/printexchange/print-exchange-backend/internal/metrics"
	"github.com/printexchange/print-exchange-backend/internal/service"
	"github.com/printexchange/print-exchange-backend/internal/service/expiry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("engine failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting print exchange engine",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage.Driver))

	provider, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.Version, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	registry, err := metrics.NewRegistry("printx/engine")
	if err != nil {
		return err
	}

	engine, err := service.NewEngine(ctx, cfg, clock.RealClock{}, registry, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	var srv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", zap.String("address", cfg.Metrics.Address))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	var scheduler *expiry.Scheduler
	if cfg.Reaper.Enabled {
		scheduler, err = expiry.NewScheduler(&instrumentedSweeper{next: engine.Reaper}, cfg.Reaper.Interval, engine.Locker, logger)
		if err != nil {
			return err
		}
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
	}

	<-ctx.Done()
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler shutdown failed", zap.Error(err))
		}
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
	return nil
}
