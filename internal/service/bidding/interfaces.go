package bidding

import (
	"context"

	"github.com/google/uuid"

	"github.com/printexchange/print-exchange-backend/internal/domain/account"
	"github.com/printexchange/print-exchange-backend/internal/domain/agreement"
	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
)

// Service defines the bid ledger and acceptance operations
type Service interface {
	// SubmitBid records the calling printer's offer on an OPEN job
	SubmitBid(ctx context.Context, caller account.Principal, jobID uuid.UUID, req *SubmitBidRequest) (*bid.Bid, error)
	// ListBidsForJob returns every bid to the job owner and only their own
	// bid to a printer, oldest first
	ListBidsForJob(ctx context.Context, caller account.Principal, jobID uuid.UUID) ([]*bid.Bid, error)
	// MarkLost moves every OPEN bid on the job except exceptBidID to LOST.
	// exceptBidID may be uuid.Nil.
	MarkLost(ctx context.Context, jobID, exceptBidID uuid.UUID) (int64, error)
	// AcceptBid awards the job to one bid and returns the agreement
	AcceptBid(ctx context.Context, caller account.Principal, jobID, bidID uuid.UUID) (*agreement.Agreement, error)
}

// Transactor runs fn in one storage transaction
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RateLimiter decides whether a printer may submit another bid now
type RateLimiter interface {
	Allow(printerID uuid.UUID) bool
}

// SubmitBidRequest is a printer's offer. Price is a decimal string in the
// configured currency.
type SubmitBidRequest struct {
	Price                   string `json:"price" validate:"required,price"`
	EstimatedTurnaroundDays int    `json:"estimated_turnaround_days" validate:"gte=0,lte=365"`
	Notes                   string `json:"notes" validate:"max=2000"`
}
