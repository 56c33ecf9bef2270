package fixtures

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
)

// BidBuilder builds test Bid entities
type BidBuilder struct {
	jobID        int64
	printerID    uuid.UUID
	price        string
	turnaround   int
	notes        string
	paymentTerms string
	now          time.Time
}

// NewBidBuilder creates a bid builder for the given job
func NewBidBuilder(jobID int64) *BidBuilder {
	return &BidBuilder{
		jobID:        jobID,
		printerID:    uuid.New(),
		price:        "120.00",
		turnaround:   3,
		paymentTerms: "Net 30",
		now:          ReferenceTime.Add(time.Hour),
	}
}

func (b *BidBuilder) WithPrinter(id uuid.UUID) *BidBuilder {
	b.printerID = id
	return b
}

// WithPrice sets the GBP price
func (b *BidBuilder) WithPrice(amount string) *BidBuilder {
	b.price = amount
	return b
}

func (b *BidBuilder) WithTurnaround(days int) *BidBuilder {
	b.turnaround = days
	return b
}

func (b *BidBuilder) WithNotes(notes string) *BidBuilder {
	b.notes = notes
	return b
}

func (b *BidBuilder) WithPaymentTerms(terms string) *BidBuilder {
	b.paymentTerms = terms
	return b
}

func (b *BidBuilder) At(now time.Time) *BidBuilder {
	b.now = now
	return b
}

// Build creates the Bid entity
func (b *BidBuilder) Build(t *testing.T) *bid.Bid {
	t.Helper()
	price, err := values.NewMoneyFromString(b.price, values.GBP)
	require.NoError(t, err)

	out, err := bid.NewBid(b.jobID, b.printerID, bid.Offer{
		Price:                   price,
		EstimatedTurnaroundDays: b.turnaround,
		Notes:                   b.notes,
	}, b.paymentTerms, b.now)
	require.NoError(t, err)
	return out
}

// Create builds the bid and stores it
func (b *BidBuilder) Create(ctx context.Context, t *testing.T, repo bid.Repository) *bid.Bid {
	t.Helper()
	out := b.Build(t)
	require.NoError(t, repo.Create(ctx, out))
	return out
}
