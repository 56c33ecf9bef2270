package bid

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists bids. Create returns errors.ErrDuplicateRecord when the
// printer already bid on the job.
type Repository interface {
	Create(ctx context.Context, b *Bid) error
	GetByUUID(ctx context.Context, id uuid.UUID) (*Bid, error)
	GetByJobAndPrinter(ctx context.Context, jobID int64, printerID uuid.UUID) (*Bid, error)
	// ListByJob returns bids oldest first
	ListByJob(ctx context.Context, jobID int64) ([]*Bid, error)
	Update(ctx context.Context, b *Bid) error
	// MarkOpenBidsLost moves every OPEN bid on the job except exceptID to
	// LOST and returns how many changed. exceptID may be zero.
	MarkOpenBidsLost(ctx context.Context, jobID, exceptID int64, now time.Time) (int64, error)
}
