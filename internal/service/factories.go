package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/printexchange/print-exchange-backend/internal/domain/agreement"
	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
	"github.com/printexchange/print-exchange-backend/internal/domain/clock"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/printer"
	"github.com/printexchange/print-exchange-backend/internal/domain/rating"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/cache"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/config"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/database"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/memstore"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/repository"
	"github.com/printexchange/print-exchange-backend/internal/metrics"
	"github.com/printexchange/print-exchange-backend/internal/service/bidding"
	"github.com/printexchange/print-exchange-backend/internal/service/expiry"
	"github.com/printexchange/print-exchange-backend/internal/service/jobs"
)

// Engine bundles the services built over one store
type Engine struct {
	Jobs    jobs.Service
	Bidding bidding.Service
	Reaper  *expiry.Reaper

	// Locker elects the sweeping instance; nil when leader election is off
	Locker expiry.Locker
	// Memory is the backing store when storage.driver is memory
	Memory *memstore.Store

	closers []func()
}

// storage is the set of repositories the services run on
type storage struct {
	jobs       job.Repository
	bids       bid.Repository
	agreements agreement.Repository
	ratings    rating.Repository
	profiles   printer.ProfileProvider
	// source reads profiles past any cache
	source printer.ProfileProvider
	tx     interface {
		WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	}
}

// NewEngine opens the configured store and optional profile cache and builds
// the services on top. Close releases what it opened.
func NewEngine(ctx context.Context, cfg *config.Config, clk clock.Clock, m *metrics.Registry, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{}
	var st storage

	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, pool.Close)

		repos := repository.NewRepositories(pool)
		st = storage{
			jobs:       repos.Jobs,
			bids:       repos.Bids,
			agreements: repos.Agreements,
			ratings:    repos.Ratings,
			profiles:   repos.Profiles,
			tx:         repos.Tx,
		}
		if cfg.Reaper.LeaderLock {
			lock := database.NewAdvisoryLock(pool, database.ReaperLockID)
			e.Locker = lock
		}

	case config.StorageDriverMemory:
		store := memstore.New()
		e.Memory = store
		st = storage{
			jobs:       store.Jobs,
			bids:       store.Bids,
			agreements: store.Agreements,
			ratings:    store.Ratings,
			profiles:   store.Profiles,
			tx:         store,
		}

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	st.source = st.profiles
	if cfg.Redis.URL != "" && cfg.Redis.ProfileTTL > 0 {
		client, err := cache.NewRedisClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("profile cache disabled", zap.Error(err))
		} else {
			e.closers = append(e.closers, func() { _ = client.Close() })
			st.profiles = cache.NewProfileCache(client, st.source, cfg.Redis.ProfileTTL, logger)
		}
	}

	if err := e.build(st, cfg, clk, m, logger); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) build(st storage, cfg *config.Config, clk clock.Clock, m *metrics.Registry, logger *zap.Logger) error {
	var err error

	e.Jobs, err = jobs.NewService(jobs.Dependencies{
		Jobs:       st.jobs,
		Agreements: st.agreements,
		Ratings:    st.ratings,
		Profiles:   st.profiles,
		Tx:         st.tx,
		Clock:      clk,
		Metrics:    m,
		Logger:     logger,
	}, jobs.Options{DefaultDurationHours: cfg.Bidding.DefaultDurationHours})
	if err != nil {
		return fmt.Errorf("jobs service: %w", err)
	}

	e.Bidding, err = bidding.NewService(bidding.Dependencies{
		Jobs:       st.jobs,
		Bids:       st.bids,
		Agreements: st.agreements,
		Profiles:   st.profiles,
		Terms:      st.source,
		Tx:         st.tx,
		Clock:      clk,
		Limiter:    bidding.NewSubmissionLimiter(cfg.Bidding.SubmitRatePerMinute, cfg.Bidding.SubmitBurst),
		Metrics:    m,
		Logger:     logger,
	}, bidding.Options{Currency: cfg.Bidding.DefaultCurrency})
	if err != nil {
		return fmt.Errorf("bidding service: %w", err)
	}

	e.Reaper, err = expiry.NewReaper(expiry.Dependencies{
		Jobs:    st.jobs,
		Bids:    st.bids,
		Tx:      st.tx,
		Clock:   clk,
		Metrics: m,
		Logger:  logger,
	}, expiry.Options{
		BatchSize:     cfg.Reaper.BatchSize,
		JobsPerSecond: cfg.Reaper.JobsPerSecond,
		Burst:         cfg.Reaper.Burst,
	})
	if err != nil {
		return fmt.Errorf("reaper: %w", err)
	}
	return nil
}

// Close releases connections in reverse order of opening
func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}
