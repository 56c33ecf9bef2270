// Package expiry closes jobs whose bidding window elapsed without an accepted
// bid.
package expiry

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
	"github.com/printexchange/print-exchange-backend/internal/domain/clock"
	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/telemetry"
	"github.com/printexchange/print-exchange-backend/internal/metrics"
)

// Transactor runs fn in a transaction carried by the context
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Dependencies struct {
	Jobs    job.Repository
	Bids    bid.Repository
	Tx      Transactor
	Clock   clock.Clock
	Metrics *metrics.Registry
	Logger  *zap.Logger
}

// Options bound the work done by one sweep
type Options struct {
	// BatchSize is how many overdue jobs are listed per page
	BatchSize int
	// JobsPerSecond paces expiry; zero disables pacing
	JobsPerSecond float64
	Burst         int
}

// Result summarizes one sweep
type Result struct {
	Scanned  int
	Expired  int
	Skipped  int
	Failed   int
	BidsLost int64
}

// Reaper expires overdue OPEN jobs
type Reaper struct {
	jobs    job.Repository
	bids    bid.Repository
	tx      Transactor
	clock   clock.Clock
	metrics *metrics.Registry
	logger  *zap.Logger
	tracer  trace.Tracer

	batchSize int
	limiter   *rate.Limiter
}

func NewReaper(deps Dependencies, opts Options) (*Reaper, error) {
	if deps.Jobs == nil || deps.Bids == nil {
		return nil, fmt.Errorf("expiry: repositories are required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("expiry: transactor is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}

	r := &Reaper{
		jobs:      deps.Jobs,
		bids:      deps.Bids,
		tx:        deps.Tx,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		logger:    deps.Logger.Named("reaper"),
		tracer:    telemetry.Tracer("printx/service/expiry"),
		batchSize: opts.BatchSize,
	}
	if opts.JobsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(opts.JobsPerSecond), burst)
	}
	return r, nil
}

// ExpireOverdueJobs moves every OPEN job whose window has elapsed to CLOSED
// and marks its open bids LOST. Candidates are paged in BatchSize chunks past
// the jobs already seen, so jobs that keep failing cannot hide the rest.
// Each job is handled in its own transaction. Only a cancelled context or a
// failure to list candidates is returned as an error.
func (r *Reaper) ExpireOverdueJobs(ctx context.Context) (res Result, err error) {
	ctx, span := r.tracer.Start(ctx, "expiry.ExpireOverdueJobs")
	defer func() {
		span.SetAttributes(
			attribute.Int("jobs.scanned", res.Scanned),
			attribute.Int("jobs.expired", res.Expired),
			attribute.Int("jobs.failed", res.Failed))
		telemetry.RecordError(span, err)
		span.End()
	}()

	start := time.Now()
	now := r.clock.Now()
	logger := telemetry.WithTrace(ctx, r.logger)

	var cursor *job.Overdue
	for {
		page, err := r.jobs.ListOverdue(ctx, now, cursor, r.batchSize)
		if err != nil {
			r.finishSweep(ctx, res, start)
			return res, fmt.Errorf("list overdue jobs: %w", err)
		}
		res.Scanned += len(page)

		for _, o := range page {
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					r.finishSweep(ctx, res, start)
					return res, err
				}
			}

			expired, lost, err := r.expireOne(ctx, o.UUID)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					r.finishSweep(ctx, res, start)
					return res, ctx.Err()
				}
				res.Failed++
				logger.Error("failed to expire job", zap.String("job_uuid", o.UUID.String()), zap.Error(err))
			case expired:
				res.Expired++
				res.BidsLost += lost
			default:
				res.Skipped++
			}
		}

		if len(page) < r.batchSize {
			break
		}
		cursor = &page[len(page)-1]
	}

	r.finishSweep(ctx, res, start)
	return res, nil
}

func (r *Reaper) finishSweep(ctx context.Context, res Result, start time.Time) {
	r.metrics.RecordSweep(ctx, int64(res.Expired), res.BidsLost, int64(res.Failed), time.Since(start))
	if res.Scanned == 0 {
		return
	}
	telemetry.WithTrace(ctx, r.logger).Info("expiry sweep finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("expired", res.Expired),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Int64("bids_lost", res.BidsLost),
		zap.Duration("duration", time.Since(start)))
}

// expireOne re-reads the job under its lock. A job accepted, completed or
// deleted since it was listed is skipped.
func (r *Reaper) expireOne(ctx context.Context, id uuid.UUID) (expired bool, lost int64, err error) {
	err = r.tx.WithTx(ctx, func(ctx context.Context) error {
		j, err := r.jobs.GetForUpdate(ctx, id)
		if err != nil {
			if stderrors.Is(err, errors.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		now := r.clock.Now()
		if j.State != job.StateOpen || !j.WindowElapsed(now) {
			return nil
		}
		if err := j.Expire(now); err != nil {
			return err
		}
		if err := r.jobs.Update(ctx, j); err != nil {
			return err
		}
		lost, err = r.bids.MarkOpenBidsLost(ctx, j.ID, 0, now)
		if err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	if expired {
		r.logger.Debug("job expired", zap.String("job_uuid", id.String()), zap.Int64("bids_lost", lost))
	}
	return expired, lost, nil
}
