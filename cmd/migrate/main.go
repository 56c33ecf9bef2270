package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/printexchange/print-exchange-backend/internal/infrastructure/config"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/database/migrations"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/telemetry"
)

// migrator is the part of migrations.Runner the command drives
type migrator interface {
	Up(steps int) error
	Down(steps int) error
	Version() (uint, bool, error)
}

func main() {
	var (
		configPath = flag.String("config", config.DefaultConfigPath, "Path to configuration file")
		action     = flag.String("action", "up", "Migration action: up, down, status")
		steps      = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	runner, err := migrations.NewRunner(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to prepare migrations", zap.Error(err))
		os.Exit(1)
	}

	err = execute(runner, *action, *steps, logger)
	if closeErr := runner.Close(); closeErr != nil {
		logger.Warn("failed to close migrator", zap.Error(closeErr))
	}
	if err != nil {
		logger.Error("migration failed", zap.String("action", *action), zap.Error(err))
		os.Exit(1)
	}
}

func execute(m migrator, action string, steps int, logger *zap.Logger) error {
	switch action {
	case "up":
		if err := m.Up(steps); err != nil {
			return err
		}
	case "down":
		if err := m.Down(steps); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logger.Info("schema version",
		zap.String("action", action),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}
