package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/printexchange/print-exchange-backend/internal/domain/agreement"
	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/printer"
	"github.com/printexchange/print-exchange-backend/internal/domain/rating"
)

// JobRepository mock
type JobRepository struct {
	mock.Mock
}

var _ job.Repository = (*JobRepository)(nil)

func (m *JobRepository) Create(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *JobRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *JobRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}

func (m *JobRepository) Update(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *JobRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *JobRepository) ListByCustomer(ctx context.Context, customerProfileID uuid.UUID, state *job.State) ([]*job.Job, error) {
	args := m.Called(ctx, customerProfileID, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*job.Job), args.Error(1)
}

func (m *JobRepository) ListByState(ctx context.Context, state job.State) ([]*job.Job, error) {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*job.Job), args.Error(1)
}

func (m *JobRepository) ListOverdue(ctx context.Context, now time.Time, after *job.Overdue, limit int) ([]job.Overdue, error) {
	args := m.Called(ctx, now, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]job.Overdue), args.Error(1)
}

// BidRepository mock
type BidRepository struct {
	mock.Mock
}

var _ bid.Repository = (*BidRepository)(nil)

func (m *BidRepository) Create(ctx context.Context, b *bid.Bid) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *BidRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bid.Bid), args.Error(1)
}

func (m *BidRepository) GetByJobAndPrinter(ctx context.Context, jobID int64, printerID uuid.UUID) (*bid.Bid, error) {
	args := m.Called(ctx, jobID, printerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bid.Bid), args.Error(1)
}

func (m *BidRepository) ListByJob(ctx context.Context, jobID int64) ([]*bid.Bid, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*bid.Bid), args.Error(1)
}

func (m *BidRepository) Update(ctx context.Context, b *bid.Bid) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *BidRepository) MarkOpenBidsLost(ctx context.Context, jobID, exceptID int64, now time.Time) (int64, error) {
	args := m.Called(ctx, jobID, exceptID, now)
	return args.Get(0).(int64), args.Error(1)
}

// AgreementRepository mock
type AgreementRepository struct {
	mock.Mock
}

var _ agreement.Repository = (*AgreementRepository)(nil)

func (m *AgreementRepository) Create(ctx context.Context, a *agreement.Agreement) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *AgreementRepository) GetByJobID(ctx context.Context, jobID int64) (*agreement.Agreement, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*agreement.Agreement), args.Error(1)
}

// RatingRepository mock
type RatingRepository struct {
	mock.Mock
}

var _ rating.Repository = (*RatingRepository)(nil)

func (m *RatingRepository) Create(ctx context.Context, r *rating.Rating) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *RatingRepository) GetByJobID(ctx context.Context, jobID int64) (*rating.Rating, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rating.Rating), args.Error(1)
}

// ProfileProvider mock
type ProfileProvider struct {
	mock.Mock
}

var _ printer.ProfileProvider = (*ProfileProvider)(nil)

func (m *ProfileProvider) GetProfile(ctx context.Context, printerID uuid.UUID) (*printer.Profile, error) {
	args := m.Called(ctx, printerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*printer.Profile), args.Error(1)
}

// Transactor runs fn inline with no isolation. Set Err to fail every call
// before fn runs.
type Transactor struct {
	Err   error
	Calls int
}

func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.Calls++
	if t.Err != nil {
		return t.Err
	}
	return fn(ctx)
}
