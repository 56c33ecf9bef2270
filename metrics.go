package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/printexchange/print-exchange-backend/internal/service/expiry"
)

// Reaper metrics exposed on /metrics

var (
	sweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "printx",
			Subsystem: "reaper",
			Name:      "sweeps_total",
			Help:      "Total number of expiry sweeps",
		},
		[]string{"outcome"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "printx",
			Subsystem: "reaper",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of one expiry sweep",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
	)

	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "printx",
			Subsystem: "reaper",
			Name:      "jobs_total",
			Help:      "Overdue jobs handled by the reaper",
		},
		[]string{"result"},
	)

	bidsLost = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "printx",
			Subsystem: "reaper",
			Name:      "bids_lost_total",
			Help:      "Open bids marked lost by expiry",
		},
	)

	lastSweep = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "printx",
			Subsystem: "reaper",
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time the last sweep finished",
		},
	)
)

// instrumentedSweeper records every sweep it forwards
type instrumentedSweeper struct {
	next expiry.Sweeper
}

func (s *instrumentedSweeper) ExpireOverdueJobs(ctx context.Context) (expiry.Result, error) {
	start := time.Now()
	res, err := s.next.ExpireOverdueJobs(ctx)
	sweepDuration.Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "aborted"
	}
	sweepsTotal.WithLabelValues(outcome).Inc()

	jobsProcessed.WithLabelValues("expired").Add(float64(res.Expired))
	jobsProcessed.WithLabelValues("skipped").Add(float64(res.Skipped))
	jobsProcessed.WithLabelValues("failed").Add(float64(res.Failed))
	bidsLost.Add(float64(res.BidsLost))
	lastSweep.SetToCurrentTime()

	return res, err
}
