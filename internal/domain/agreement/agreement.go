// Package agreement holds the binding contract created when a customer
// accepts a bid. Agreements are written once and never updated.
package agreement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
)

type Agreement struct {
	ID                int64     `json:"-"`
	UUID              uuid.UUID `json:"uuid"`
	JobID             int64     `json:"-"`
	BidID             int64     `json:"-"`
	JobUUID           uuid.UUID `json:"job_uuid"`
	BidUUID           uuid.UUID `json:"bid_uuid"`
	CustomerProfileID uuid.UUID `json:"customer_profile_id"`
	PrinterID         uuid.UUID `json:"printer_id"`

	AgreedPrice             values.Money `json:"agreed_price"`
	EstimatedTurnaroundDays int          `json:"estimated_turnaround_days"`
	PaymentTerms            string       `json:"payment_terms,omitempty"`

	CustomerConfirmed     bool      `json:"customer_confirmed"`
	ConfirmationTimestamp time.Time `json:"confirmation_timestamp"`
	CreatedAt             time.Time `json:"created_at"`
}

// NewFromBid snapshots the accepted bid's commercial terms
func NewFromBid(j *job.Job, b *bid.Bid, now time.Time) *Agreement {
	return &Agreement{
		UUID:                    uuid.New(),
		JobID:                   j.ID,
		BidID:                   b.ID,
		JobUUID:                 j.UUID,
		BidUUID:                 b.UUID,
		CustomerProfileID:       j.CustomerProfileID,
		PrinterID:               b.PrinterID,
		AgreedPrice:             b.Price,
		EstimatedTurnaroundDays: b.EstimatedTurnaroundDays,
		PaymentTerms:            b.PaymentTerms,
		CustomerConfirmed:       true,
		ConfirmationTimestamp:   now,
		CreatedAt:               now,
	}
}

// Repository stores agreements. Create returns errors.ErrDuplicateRecord if
// the job or bid already has one.
type Repository interface {
	Create(ctx context.Context, a *Agreement) error
	GetByJobID(ctx context.Context, jobID int64) (*Agreement, error)
}
