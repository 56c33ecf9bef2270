package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/printexchange/print-exchange-backend/internal/domain/account"
	"github.com/printexchange/print-exchange-backend/internal/domain/agreement"
	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/rating"
)

// Service is the job lifecycle surface used by customers and printers
type Service interface {
	// CreateJob stores a new DRAFT job for the calling customer
	CreateJob(ctx context.Context, caller account.Principal, req *CreateJobRequest) (*job.Job, error)
	// UpdateJob edits a DRAFT job
	UpdateJob(ctx context.Context, caller account.Principal, jobID uuid.UUID, req *UpdateJobRequest) (*job.Job, error)
	// PublishJob validates a DRAFT job and opens its bidding window
	PublishJob(ctx context.Context, caller account.Principal, jobID uuid.UUID) (*job.Job, error)
	// DeleteJob removes a DRAFT job
	DeleteJob(ctx context.Context, caller account.Principal, jobID uuid.UUID) error
	// GetJob returns a job the caller may see
	GetJob(ctx context.Context, caller account.Principal, jobID uuid.UUID) (*job.Job, error)
	// ListJobsForCustomer returns the caller's jobs newest first, optionally
	// filtered by state
	ListJobsForCustomer(ctx context.Context, caller account.Principal, state *job.State) ([]*job.Job, error)
	// ListMatchingJobsForPrinter returns OPEN jobs the calling printer's
	// profile matches, newest first
	ListMatchingJobsForPrinter(ctx context.Context, caller account.Principal) ([]*job.Job, error)
	// CompleteJob confirms fulfillment of an IN_PROGRESS job
	CompleteJob(ctx context.Context, caller account.Principal, jobID uuid.UUID) (*job.Job, error)
	// RatePrinter records the customer's rating of the winning printer
	RatePrinter(ctx context.Context, caller account.Principal, jobID uuid.UUID, req *RatePrinterRequest) (*rating.Rating, error)
	// GetAgreement returns the job's agreement to its customer or the
	// winning printer
	GetAgreement(ctx context.Context, caller account.Principal, jobID uuid.UUID) (*agreement.Agreement, error)
}

// Transactor runs fn in one storage transaction
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CreateJobRequest carries the fields of a new job. Every field may be left
// empty on a draft; completeness is checked at publish.
type CreateJobRequest struct {
	ProductType          string     `json:"product_type" validate:"omitempty,product_type"`
	Quantity             int        `json:"quantity" validate:"gte=0"`
	DueDate              *time.Time `json:"due_date"`
	Description          string     `json:"description" validate:"max=5000"`
	SpecialInstructions  string     `json:"special_instructions" validate:"max=5000"`
	FileURL              string     `json:"file_url" validate:"omitempty,max=2048,file_ref"`
	BiddingDurationHours int        `json:"bidding_duration_hours" validate:"gte=0,lte=720"`
	DeliveryLocation     string     `json:"delivery_location" validate:"max=255"`
	PickupPreferred      bool       `json:"pickup_preferred"`
}

// UpdateJobRequest is a partial update; nil fields are left untouched
type UpdateJobRequest struct {
	ProductType          *string    `json:"product_type" validate:"omitempty,product_type"`
	Quantity             *int       `json:"quantity" validate:"omitempty,gte=0"`
	DueDate              *time.Time `json:"due_date"`
	Description          *string    `json:"description" validate:"omitempty,max=5000"`
	SpecialInstructions  *string    `json:"special_instructions" validate:"omitempty,max=5000"`
	FileURL              *string    `json:"file_url" validate:"omitempty,max=2048,file_ref"`
	BiddingDurationHours *int       `json:"bidding_duration_hours" validate:"omitempty,gte=0,lte=720"`
	DeliveryLocation     *string    `json:"delivery_location" validate:"omitempty,max=255"`
	PickupPreferred      *bool      `json:"pickup_preferred"`
}

// RatePrinterRequest scores the printer of a completed job
type RatePrinterRequest struct {
	Score    int    `json:"score" validate:"gte=1,lte=5"`
	Feedback string `json:"feedback" validate:"max=2000"`
}
