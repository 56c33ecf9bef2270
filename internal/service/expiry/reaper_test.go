package expiry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
	"github.com/printexchange/print-exchange-backend/internal/domain/clock"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/memstore"
	"github.com/printexchange/print-exchange-backend/internal/testutil/fixtures"
)

// scriptedJobs lets a test inject stale candidates and per-job failures
type scriptedJobs struct {
	*memstore.JobRepository
	extra   []uuid.UUID
	failFor map[uuid.UUID]error
}

func (s *scriptedJobs) ListOverdue(ctx context.Context, now time.Time, after *job.Overdue, limit int) ([]job.Overdue, error) {
	page, err := s.JobRepository.ListOverdue(ctx, now, after, limit)
	if err != nil || after != nil {
		return page, err
	}
	for _, id := range s.extra {
		page = append(page, job.Overdue{UUID: id})
	}
	return page, nil
}

func (s *scriptedJobs) GetForUpdate(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	if err, ok := s.failFor[id]; ok {
		return nil, err
	}
	return s.JobRepository.GetForUpdate(ctx, id)
}

type reaperHarness struct {
	reaper *Reaper
	store  *memstore.Store
	jobs   *scriptedJobs
	clock  *clock.MockClock
}

func newReaperHarness(t *testing.T, opts Options) *reaperHarness {
	t.Helper()
	store := memstore.New()
	jobs := &scriptedJobs{JobRepository: store.Jobs, failFor: map[uuid.UUID]error{}}
	clk := clock.NewMockClock(fixtures.ReferenceTime)

	r, err := NewReaper(Dependencies{
		Jobs:   jobs,
		Bids:   store.Bids,
		Tx:     store,
		Clock:  clk,
		Logger: zaptest.NewLogger(t),
	}, opts)
	require.NoError(t, err)

	return &reaperHarness{reaper: r, store: store, jobs: jobs, clock: clk}
}

func (h *reaperHarness) openJobWithBids(t *testing.T, hours, bids int) *job.Job {
	t.Helper()
	ctx := context.Background()
	j := fixtures.NewJobBuilder().WithBiddingHours(hours).Published().Create(ctx, t, h.store.Jobs)
	for i := 0; i < bids; i++ {
		fixtures.NewBidBuilder(j.ID).Create(ctx, t, h.store.Bids)
	}
	return j
}

func (h *reaperHarness) bidStatuses(t *testing.T, j *job.Job) []bid.Status {
	t.Helper()
	list, err := h.store.Bids.ListByJob(context.Background(), j.ID)
	require.NoError(t, err)
	out := make([]bid.Status, 0, len(list))
	for _, b := range list {
		out = append(out, b.Status)
	}
	return out
}

func TestReaper_ExpireOverdueJobs(t *testing.T) {
	ctx := context.Background()
	h := newReaperHarness(t, Options{})

	overdue := h.openJobWithBids(t, 24, 3)
	boundary := h.openJobWithBids(t, 48, 1)
	fresh := h.openJobWithBids(t, 72, 2)
	draft := fixtures.NewJobBuilder().WithBiddingHours(1).Create(ctx, t, h.store.Jobs)

	h.clock.Set(fixtures.ReferenceTime.Add(48 * time.Hour))

	res, err := h.reaper.ExpireOverdueJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 2, Expired: 2, BidsLost: 4}, res)

	for _, j := range []*job.Job{overdue, boundary} {
		got, err := h.store.Jobs.GetByUUID(ctx, j.UUID)
		require.NoError(t, err)
		assert.Equal(t, job.StateClosed, got.State)
		require.NotNil(t, got.ClosedAt)
		assert.Equal(t, h.clock.Now(), *got.ClosedAt)
		assert.NoError(t, got.CheckInvariants())
		for _, s := range h.bidStatuses(t, j) {
			assert.Equal(t, bid.StatusLost, s)
		}
	}

	got, err := h.store.Jobs.GetByUUID(ctx, fresh.UUID)
	require.NoError(t, err)
	assert.Equal(t, job.StateOpen, got.State)
	for _, s := range h.bidStatuses(t, fresh) {
		assert.Equal(t, bid.StatusOpen, s)
	}

	got, err = h.store.Jobs.GetByUUID(ctx, draft.UUID)
	require.NoError(t, err)
	assert.Equal(t, job.StateDraft, got.State)

	t.Run("second sweep is a no-op", func(t *testing.T) {
		res, err := h.reaper.ExpireOverdueJobs(ctx)
		require.NoError(t, err)
		assert.Equal(t, Result{}, res)
	})
}

func TestReaper_SkipsJobsDecidedSinceListing(t *testing.T) {
	ctx := context.Background()
	h := newReaperHarness(t, Options{})

	awarded := h.openJobWithBids(t, 24, 2)
	h.clock.Set(fixtures.ReferenceTime.Add(25 * time.Hour))

	// accepted between the listing and the lock
	bids, err := h.store.Bids.ListByJob(ctx, awarded.ID)
	require.NoError(t, err)
	require.NoError(t, h.store.WithTx(ctx, func(ctx context.Context) error {
		j, err := h.store.Jobs.GetForUpdate(ctx, awarded.UUID)
		if err != nil {
			return err
		}
		winner := bids[0]
		if err := winner.Accept(h.clock.Now()); err != nil {
			return err
		}
		if err := h.store.Bids.Update(ctx, winner); err != nil {
			return err
		}
		if _, err := h.store.Bids.MarkOpenBidsLost(ctx, j.ID, winner.ID, h.clock.Now()); err != nil {
			return err
		}
		if err := j.StartFulfillment(h.clock.Now()); err != nil {
			return err
		}
		return h.store.Jobs.Update(ctx, j)
	}))
	h.jobs.extra = []uuid.UUID{awarded.UUID, uuid.New()}

	res, err := h.reaper.ExpireOverdueJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 2, Skipped: 2}, res)

	got, err := h.store.Jobs.GetByUUID(ctx, awarded.UUID)
	require.NoError(t, err)
	assert.Equal(t, job.StateInProgress, got.State)
	assert.ElementsMatch(t, []bid.Status{bid.StatusAccepted, bid.StatusLost}, h.bidStatuses(t, awarded))
}

func TestReaper_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	h := newReaperHarness(t, Options{})

	broken := h.openJobWithBids(t, 24, 1)
	healthy := h.openJobWithBids(t, 24, 1)
	h.jobs.failFor[broken.UUID] = stderrors.New("connection reset")
	h.clock.Set(fixtures.ReferenceTime.Add(30 * time.Hour))

	res, err := h.reaper.ExpireOverdueJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 1, res.Failed)

	got, err := h.store.Jobs.GetByUUID(ctx, broken.UUID)
	require.NoError(t, err)
	assert.Equal(t, job.StateOpen, got.State)
	assert.Equal(t, []bid.Status{bid.StatusOpen}, h.bidStatuses(t, broken))

	got, err = h.store.Jobs.GetByUUID(ctx, healthy.UUID)
	require.NoError(t, err)
	assert.Equal(t, job.StateClosed, got.State)
}

func TestReaper_PagesThroughBatches(t *testing.T) {
	h := newReaperHarness(t, Options{BatchSize: 2, JobsPerSecond: 1000, Burst: 1})
	for i := 0; i < 5; i++ {
		h.openJobWithBids(t, 24, 1)
	}
	h.clock.Set(fixtures.ReferenceTime.Add(25 * time.Hour))

	res, err := h.reaper.ExpireOverdueJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 5, Expired: 5, BidsLost: 5}, res)

	h.openJobWithBids(t, 24, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.reaper.ExpireOverdueJobs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReaper_FailingJobsDoNotHideLaterOnes(t *testing.T) {
	ctx := context.Background()
	h := newReaperHarness(t, Options{BatchSize: 1})

	stuck := h.openJobWithBids(t, 12, 1)
	healthy := h.openJobWithBids(t, 24, 1)
	h.jobs.failFor[stuck.UUID] = stderrors.New("deadlock detected")
	h.clock.Set(fixtures.ReferenceTime.Add(30 * time.Hour))

	for sweep := 0; sweep < 2; sweep++ {
		res, err := h.reaper.ExpireOverdueJobs(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed)
	}

	got, err := h.store.Jobs.GetByUUID(ctx, healthy.UUID)
	require.NoError(t, err)
	assert.Equal(t, job.StateClosed, got.State)
	assert.Equal(t, []bid.Status{bid.StatusLost}, h.bidStatuses(t, healthy))

	got, err = h.store.Jobs.GetByUUID(ctx, stuck.UUID)
	require.NoError(t, err)
	assert.Equal(t, job.StateOpen, got.State)
}

func TestNewReaper_RequiresDependencies(t *testing.T) {
	store := memstore.New()

	_, err := NewReaper(Dependencies{Bids: store.Bids, Tx: store}, Options{})
	assert.Error(t, err)

	_, err = NewReaper(Dependencies{Jobs: store.Jobs, Bids: store.Bids}, Options{})
	assert.Error(t, err)
}
