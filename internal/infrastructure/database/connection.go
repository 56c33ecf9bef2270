package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/printexchange/print-exchange-backend/internal/infrastructure/config"
)

const applicationName = "printx_engine"

// NewPool creates and pings a pgx pool configured from cfg
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	configurePool(poolCfg, cfg, logger)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection pool initialized",
		zap.Int32("max_connections", poolCfg.MaxConns),
		zap.Int32("min_connections", poolCfg.MinConns))
	return pool, nil
}

func configurePool(poolCfg *pgxpool.Config, cfg config.DatabaseConfig, logger *zap.Logger) {
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	} else {
		poolCfg.MaxConns = 25
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	} else {
		poolCfg.MaxConnLifetime = 30 * time.Minute
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	} else {
		poolCfg.MaxConnIdleTime = 10 * time.Minute
	}
	poolCfg.HealthCheckPeriod = time.Minute
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	// Row locks on a job are held for one short transaction; anything
	// waiting longer than lock_timeout is reported as a failure.
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	poolCfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	poolCfg.ConnConfig.RuntimeParams["lock_timeout"] = "10s"
	poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = "30s"
	poolCfg.ConnConfig.RuntimeParams["idle_in_transaction_session_timeout"] = "60s"

	poolCfg.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
		logger.Debug("establishing database connection",
			zap.String("host", cc.Host),
			zap.Uint16("port", cc.Port))
		return nil
	}
}
