package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the engine's domain metrics. A nil *Registry records nothing.
type Registry struct {
	meter metric.Meter

	// Job lifecycle
	JobsCreated   metric.Int64Counter
	JobsPublished metric.Int64Counter
	JobsExpired   metric.Int64Counter
	JobsCompleted metric.Int64Counter

	// Bid ledger
	BidsSubmitted  metric.Int64Counter
	BidsRejected   metric.Int64Counter
	BidsAccepted   metric.Int64Counter
	BidsLost       metric.Int64Counter
	AcceptDuration metric.Float64Histogram

	// Reaper
	SweepDuration metric.Float64Histogram
	SweepFailures metric.Int64Counter
}

// NewRegistry creates the instruments on the global meter provider
func NewRegistry(meterName string) (*Registry, error) {
	return NewRegistryWithMeter(otel.Meter(meterName))
}

// NewRegistryWithMeter creates the instruments on the given meter
func NewRegistryWithMeter(meter metric.Meter) (*Registry, error) {
	r := &Registry{meter: meter}

	if err := r.initJobMetrics(); err != nil {
		return nil, err
	}
	if err := r.initBidMetrics(); err != nil {
		return nil, err
	}
	if err := r.initReaperMetrics(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initJobMetrics() error {
	var err error

	r.JobsCreated, err = r.meter.Int64Counter(
		"printx.job.created_total",
		metric.WithDescription("Total number of draft jobs created"),
	)
	if err != nil {
		return err
	}

	r.JobsPublished, err = r.meter.Int64Counter(
		"printx.job.published_total",
		metric.WithDescription("Total number of jobs opened for bidding"),
	)
	if err != nil {
		return err
	}

	r.JobsExpired, err = r.meter.Int64Counter(
		"printx.job.expired_total",
		metric.WithDescription("Total number of jobs closed by the bidding window reaper"),
	)
	if err != nil {
		return err
	}

	r.JobsCompleted, err = r.meter.Int64Counter(
		"printx.job.completed_total",
		metric.WithDescription("Total number of jobs confirmed as fulfilled"),
	)
	return err
}

func (r *Registry) initBidMetrics() error {
	var err error

	r.BidsSubmitted, err = r.meter.Int64Counter(
		"printx.bid.submitted_total",
		metric.WithDescription("Total number of bids accepted into the ledger"),
	)
	if err != nil {
		return err
	}

	r.BidsRejected, err = r.meter.Int64Counter(
		"printx.bid.rejected_total",
		metric.WithDescription("Bid submissions refused, by reason"),
	)
	if err != nil {
		return err
	}

	r.BidsAccepted, err = r.meter.Int64Counter(
		"printx.bid.accepted_total",
		metric.WithDescription("Total number of winning bids"),
	)
	if err != nil {
		return err
	}

	r.BidsLost, err = r.meter.Int64Counter(
		"printx.bid.lost_total",
		metric.WithDescription("Total number of bids marked lost"),
	)
	if err != nil {
		return err
	}

	r.AcceptDuration, err = r.meter.Float64Histogram(
		"printx.bid.accept_duration",
		metric.WithDescription("Duration of the bid acceptance transaction in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000),
	)
	return err
}

func (r *Registry) initReaperMetrics() error {
	var err error

	r.SweepDuration, err = r.meter.Float64Histogram(
		"printx.reaper.sweep_duration",
		metric.WithDescription("Duration of a bidding window sweep in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	r.SweepFailures, err = r.meter.Int64Counter(
		"printx.reaper.job_failures_total",
		metric.WithDescription("Jobs the reaper failed to expire"),
	)
	return err
}

// RecordJobCreated increments the draft counter
func (r *Registry) RecordJobCreated(ctx context.Context) {
	if r == nil {
		return
	}
	r.JobsCreated.Add(ctx, 1)
}

func (r *Registry) RecordJobPublished(ctx context.Context, productType string) {
	if r == nil {
		return
	}
	r.JobsPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("product_type", productType)))
}

func (r *Registry) RecordJobCompleted(ctx context.Context) {
	if r == nil {
		return
	}
	r.JobsCompleted.Add(ctx, 1)
}

func (r *Registry) RecordBidSubmitted(ctx context.Context) {
	if r == nil {
		return
	}
	r.BidsSubmitted.Add(ctx, 1)
}

// RecordBidRejected counts a refused submission under a short reason label
func (r *Registry) RecordBidRejected(ctx context.Context, reason string) {
	if r == nil {
		return
	}
	r.BidsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordAcceptance records a committed acceptance and the bids it closed
func (r *Registry) RecordAcceptance(ctx context.Context, lost int64, duration time.Duration) {
	if r == nil {
		return
	}
	r.BidsAccepted.Add(ctx, 1)
	if lost > 0 {
		r.BidsLost.Add(ctx, lost, metric.WithAttributes(attribute.String("cause", "accepted")))
	}
	r.AcceptDuration.Record(ctx, float64(duration.Microseconds())/1000.0)
}

// RecordSweep records one completed reaper sweep
func (r *Registry) RecordSweep(ctx context.Context, expired, lost, failed int64, duration time.Duration) {
	if r == nil {
		return
	}
	if expired > 0 {
		r.JobsExpired.Add(ctx, expired)
	}
	if lost > 0 {
		r.BidsLost.Add(ctx, lost, metric.WithAttributes(attribute.String("cause", "expired")))
	}
	if failed > 0 {
		r.SweepFailures.Add(ctx, failed)
	}
	r.SweepDuration.Record(ctx, float64(duration.Microseconds())/1000.0)
}
