package job

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Overdue identifies an OPEN job whose bidding window has elapsed. The last
// entry of a page is the cursor for the next one.
type Overdue struct {
	ID            int64
	UUID          uuid.UUID
	BiddingEndsAt time.Time
}

// Repository persists jobs. Implementations return errors.ErrRecordNotFound
// for missing rows.
type Repository interface {
	// Create stores a new job and assigns its ID
	Create(ctx context.Context, j *Job) error
	// GetByUUID retrieves a job by its external UUID
	GetByUUID(ctx context.Context, id uuid.UUID) (*Job, error)
	// GetForUpdate retrieves a job and locks its aggregate until the
	// surrounding transaction ends
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Job, error)
	// Update persists every mutable column
	Update(ctx context.Context, j *Job) error
	// Delete removes a job
	Delete(ctx context.Context, id int64) error
	// ListByCustomer returns a customer's jobs newest first, optionally by state
	ListByCustomer(ctx context.Context, customerProfileID uuid.UUID, state *State) ([]*Job, error)
	// ListByState returns jobs in a state newest first
	ListByState(ctx context.Context, state State) ([]*Job, error)
	// ListOverdue returns up to limit OPEN jobs whose bidding window ended at
	// or before now, ordered by (bidding_ends_at, id) and starting after the
	// cursor when one is given
	ListOverdue(ctx context.Context, now time.Time, after *Overdue, limit int) ([]Overdue, error)
}
