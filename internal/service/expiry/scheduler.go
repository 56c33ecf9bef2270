package expiry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs one expiry pass
type Sweeper interface {
	ExpireOverdueJobs(ctx context.Context) (Result, error)
}

// Locker elects the single instance allowed to sweep, e.g. a Postgres
// advisory lock.
type Locker interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Scheduler drives the sweeper on a fixed interval. Ticks that arrive while a
// sweep is still running are dropped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	locker  Locker
	spec    string
	logger  *zap.Logger

	running atomic.Bool
	// initial tracks the sweep Start launches outside cron
	initial sync.WaitGroup
}

// NewScheduler creates a scheduler firing every interval. Intervals below
// one second are rounded up by cron. locker may be nil.
func NewScheduler(sweeper Sweeper, interval time.Duration, locker Locker, logger *zap.Logger) (*Scheduler, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("expiry: sweeper is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("expiry: interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		sweeper: sweeper,
		locker:  locker,
		spec:    fmt.Sprintf("@every %s", interval),
		logger:  logger,
	}, nil
}

// Start registers the sweep and starts the cron loop. One sweep also runs
// immediately so overdue jobs do not wait for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logger.Info("expiry scheduler started", zap.String("spec", s.spec))

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		s.RunOnce(ctx)
	}()
	return nil
}

// Stop waits for running sweeps to finish (or ctx to end) and gives up
// leadership.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	initialDone := make(chan struct{})
	go func() {
		s.initial.Wait()
		close(initialDone)
	}()

	for _, done := range []<-chan struct{}{cronDone.Done(), initialDone} {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if s.locker != nil {
		if err := s.locker.Release(ctx); err != nil {
			return fmt.Errorf("release reaper lock: %w", err)
		}
	}
	s.logger.Info("expiry scheduler stopped")
	return nil
}

// RunOnce performs a single sweep if this instance holds leadership. It
// reports whether a sweep ran.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	defer s.running.Store(false)

	if ctx.Err() != nil {
		return false
	}

	if s.locker != nil {
		held, err := s.locker.TryAcquire(ctx)
		if err != nil {
			s.logger.Warn("reaper leader election failed", zap.Error(err))
			return false
		}
		if !held {
			s.logger.Debug("another instance holds the reaper lock")
			return false
		}
	}

	if _, err := s.sweeper.ExpireOverdueJobs(ctx); err != nil {
		s.logger.Error("expiry sweep aborted", zap.Error(err))
	}
	return true
}
