package memstore

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
)

var now = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func openJob(t *testing.T, s *Store) *job.Job {
	t.Helper()
	j, err := job.NewJob(uuid.New(), job.Details{
		ProductType:          values.ProductTypeLeaflets,
		Quantity:             250,
		DueDate:              now.Add(10 * 24 * time.Hour),
		BiddingDurationHours: 24,
	}, now)
	require.NoError(t, err)
	require.NoError(t, j.Publish(now))
	require.NoError(t, s.Jobs.Create(context.Background(), j))
	return j
}

func newBid(t *testing.T, jobID int64, printerID uuid.UUID) *bid.Bid {
	t.Helper()
	b, err := bid.NewBid(jobID, printerID, bid.Offer{Price: values.MustNewMoneyFromString("75.00", values.GBP)}, "Net 14", now)
	require.NoError(t, err)
	return b
}

func TestStore_CreateAssignsIDs(t *testing.T) {
	s := New()
	j1 := openJob(t, s)
	j2 := openJob(t, s)
	assert.NotZero(t, j1.ID)
	assert.Greater(t, j2.ID, j1.ID)

	got, err := s.Jobs.GetByUUID(context.Background(), j1.UUID)
	require.NoError(t, err)
	assert.Equal(t, j1.ID, got.ID)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New()
	j := openJob(t, s)

	got, err := s.Jobs.GetByUUID(context.Background(), j.UUID)
	require.NoError(t, err)
	got.Quantity = 1

	again, err := s.Jobs.GetByUUID(context.Background(), j.UUID)
	require.NoError(t, err)
	assert.Equal(t, 250, again.Quantity)
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	j := openJob(t, s)

	boom := stderrors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		locked, err := s.Jobs.GetForUpdate(ctx, j.UUID)
		require.NoError(t, err)
		require.NoError(t, locked.StartFulfillment(now))
		require.NoError(t, s.Jobs.Update(ctx, locked))
		require.NoError(t, s.Bids.Create(ctx, newBid(t, j.ID, uuid.New())))

		// the transaction sees its own writes
		bids, err := s.Bids.ListByJob(ctx, j.ID)
		require.NoError(t, err)
		assert.Len(t, bids, 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Jobs.GetByUUID(ctx, j.UUID)
	require.NoError(t, err)
	assert.Equal(t, job.StateOpen, got.State)

	bids, err := s.Bids.ListByJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Empty(t, bids)
}

func TestStore_UniqueBidPerPrinter(t *testing.T) {
	s := New()
	ctx := context.Background()
	j := openJob(t, s)
	printerID := uuid.New()

	require.NoError(t, s.Bids.Create(ctx, newBid(t, j.ID, printerID)))
	err := s.Bids.Create(ctx, newBid(t, j.ID, printerID))
	assert.ErrorIs(t, err, errors.ErrDuplicateRecord)

	require.NoError(t, s.Bids.Create(ctx, newBid(t, j.ID, uuid.New())))
	bids, err := s.Bids.ListByJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 2)
	assert.Less(t, bids[0].ID, bids[1].ID)
}

func TestStore_CommitRejectsSecondAcceptedBid(t *testing.T) {
	s := New()
	ctx := context.Background()
	j := openJob(t, s)

	b1 := newBid(t, j.ID, uuid.New())
	b2 := newBid(t, j.ID, uuid.New())
	require.NoError(t, s.Bids.Create(ctx, b1))
	require.NoError(t, s.Bids.Create(ctx, b2))

	require.NoError(t, b1.Accept(now))
	require.NoError(t, s.Bids.Update(ctx, b1))

	// bypasses the job lock on purpose; the commit check still holds
	require.NoError(t, b2.Accept(now))
	err := s.Bids.Update(ctx, b2)
	assert.ErrorIs(t, err, errors.ErrDuplicateRecord)

	got, err := s.Bids.GetByUUID(ctx, b2.UUID)
	require.NoError(t, err)
	assert.Equal(t, bid.StatusOpen, got.Status)
}

func TestStore_MarkOpenBidsLost(t *testing.T) {
	s := New()
	ctx := context.Background()
	j := openJob(t, s)

	keep := newBid(t, j.ID, uuid.New())
	require.NoError(t, s.Bids.Create(ctx, keep))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Bids.Create(ctx, newBid(t, j.ID, uuid.New())))
	}

	n, err := s.Bids.MarkOpenBidsLost(ctx, j.ID, keep.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.Bids.MarkOpenBidsLost(ctx, j.ID, keep.ID, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := s.Bids.GetByUUID(ctx, keep.UUID)
	require.NoError(t, err)
	assert.Equal(t, bid.StatusOpen, got.Status)
}

func TestStore_GetForUpdateSerializesPerJob(t *testing.T) {
	s := New()
	ctx := context.Background()
	j := openJob(t, s)
	other := openJob(t, s)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithTx(ctx, func(ctx context.Context) error {
			_, err := s.Jobs.GetForUpdate(ctx, j.UUID)
			assert.NoError(t, err)
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	// a different job does not contend
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context) error {
		_, err := s.Jobs.GetForUpdate(ctx, other.UUID)
		return err
	}))

	// the held job times out
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := s.WithTx(short, func(ctx context.Context) error {
		_, err := s.Jobs.GetForUpdate(ctx, j.UUID)
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.Eventually(t, func() bool {
		return s.WithTx(ctx, func(ctx context.Context) error {
			_, err := s.Jobs.GetForUpdate(ctx, j.UUID)
			return err
		}) == nil
	}, time.Second, 5*time.Millisecond)
}

func TestStore_GetForUpdateRequiresTx(t *testing.T) {
	s := New()
	j := openJob(t, s)
	_, err := s.Jobs.GetForUpdate(context.Background(), j.UUID)
	assert.Error(t, err)
}

func TestStore_ConcurrentBidsOnOneJob(t *testing.T) {
	s := New()
	ctx := context.Background()
	j := openJob(t, s)
	printerID := uuid.New()

	bids := make([]*bid.Bid, 10)
	for i := range bids {
		bids[i] = newBid(t, j.ID, printerID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(bids))
	for _, b := range bids {
		wg.Add(1)
		go func(b *bid.Bid) {
			defer wg.Done()
			errs <- s.Bids.Create(ctx, b)
		}(b)
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, errors.ErrDuplicateRecord)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestJobRepository_Lists(t *testing.T) {
	s := New()
	ctx := context.Background()
	customer := uuid.New()

	var created []*job.Job
	for i := 0; i < 3; i++ {
		j, err := job.NewJob(customer, job.Details{ProductType: values.ProductTypeFlyers, Quantity: 10, DueDate: now.Add(72 * time.Hour)}, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, s.Jobs.Create(ctx, j))
		created = append(created, j)
	}
	require.NoError(t, created[1].Publish(now))
	require.NoError(t, s.Jobs.Update(ctx, created[1]))

	all, err := s.Jobs.ListByCustomer(ctx, customer, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, created[2].UUID, all[0].UUID)
	assert.Equal(t, created[0].UUID, all[2].UUID)

	open := job.StateOpen
	onlyOpen, err := s.Jobs.ListByCustomer(ctx, customer, &open)
	require.NoError(t, err)
	require.Len(t, onlyOpen, 1)

	overdue, err := s.Jobs.ListOverdue(ctx, now.Add(25*time.Hour), nil, 10)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, created[1].UUID, overdue[0].UUID)
	assert.Equal(t, *created[1].BiddingEndsAt, overdue[0].BiddingEndsAt)

	none, err := s.Jobs.ListOverdue(ctx, now.Add(time.Hour), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJobRepository_ListOverduePages(t *testing.T) {
	s := New()
	ctx := context.Background()

	// two jobs share a window end so the id breaks the tie
	var want []uuid.UUID
	for _, hours := range []int{6, 6, 12, 24} {
		j, err := job.NewJob(uuid.New(), job.Details{ProductType: values.ProductTypeFlyers, Quantity: 10, DueDate: now.Add(72 * time.Hour), BiddingDurationHours: hours}, now)
		require.NoError(t, err)
		require.NoError(t, j.Publish(now))
		require.NoError(t, s.Jobs.Create(ctx, j))
		want = append(want, j.UUID)
	}

	first, err := s.Jobs.ListOverdue(ctx, now.Add(48*time.Hour), nil, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)

	rest, err := s.Jobs.ListOverdue(ctx, now.Add(48*time.Hour), &first[2], 3)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	var got []uuid.UUID
	for _, o := range append(first, rest...) {
		got = append(got, o.UUID)
	}
	assert.Equal(t, want, got)

	empty, err := s.Jobs.ListOverdue(ctx, now.Add(48*time.Hour), &rest[0], 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
