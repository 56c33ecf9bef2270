package fixtures

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
)

// ReferenceTime is the default "now" of every builder
var ReferenceTime = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

// JobBuilder builds test Job entities
type JobBuilder struct {
	customerID uuid.UUID
	details    job.Details
	now        time.Time
	publish    bool
}

// NewJobBuilder creates a DRAFT job builder with publishable defaults
func NewJobBuilder() *JobBuilder {
	return &JobBuilder{
		customerID: uuid.New(),
		now:        ReferenceTime,
		details: job.Details{
			ProductType:          values.ProductTypePosters,
			Quantity:             500,
			DueDate:              ReferenceTime.Add(14 * 24 * time.Hour),
			Description:          "A2 gloss posters",
			BiddingDurationHours: 48,
			DeliveryLocation:     "Austin",
		},
	}
}

// WithCustomer sets the owning customer profile
func (b *JobBuilder) WithCustomer(id uuid.UUID) *JobBuilder {
	b.customerID = id
	return b
}

func (b *JobBuilder) WithProductType(pt values.ProductType) *JobBuilder {
	b.details.ProductType = pt
	return b
}

func (b *JobBuilder) WithQuantity(q int) *JobBuilder {
	b.details.Quantity = q
	return b
}

func (b *JobBuilder) WithDueDate(d time.Time) *JobBuilder {
	b.details.DueDate = d
	return b
}

func (b *JobBuilder) WithBiddingHours(h int) *JobBuilder {
	b.details.BiddingDurationHours = h
	return b
}

func (b *JobBuilder) WithDeliveryLocation(loc string) *JobBuilder {
	b.details.DeliveryLocation = loc
	return b
}

// At sets the creation (and publish) time
func (b *JobBuilder) At(now time.Time) *JobBuilder {
	b.now = now
	return b
}

// Published makes Build return an OPEN job published at the builder's time
func (b *JobBuilder) Published() *JobBuilder {
	b.publish = true
	return b
}

// Build creates the Job entity
func (b *JobBuilder) Build(t *testing.T) *job.Job {
	t.Helper()
	j, err := job.NewJob(b.customerID, b.details, b.now)
	require.NoError(t, err)
	if b.publish {
		require.NoError(t, j.Publish(b.now))
	}
	return j
}

// Create builds the job and stores it
func (b *JobBuilder) Create(ctx context.Context, t *testing.T, repo job.Repository) *job.Job {
	t.Helper()
	j := b.Build(t)
	require.NoError(t, repo.Create(ctx, j))
	return j
}
