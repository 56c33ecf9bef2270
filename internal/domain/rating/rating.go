package rating

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
)

const (
	MinScore = 1
	MaxScore = 5
)

// Rating is a customer's score for the printer that fulfilled a job
type Rating struct {
	ID                int64     `json:"-"`
	UUID              uuid.UUID `json:"uuid"`
	JobID             int64     `json:"-"`
	PrinterID         uuid.UUID `json:"printer_id"`
	CustomerProfileID uuid.UUID `json:"customer_profile_id"`
	Score             int       `json:"score"`
	Feedback          string    `json:"feedback,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

func NewRating(jobID int64, printerID, customerProfileID uuid.UUID, score int, feedback string, now time.Time) (*Rating, error) {
	if score < MinScore || score > MaxScore {
		return nil, errors.NewValidationError("INVALID_SCORE", "score must be between 1 and 5")
	}
	return &Rating{
		UUID:              uuid.New(),
		JobID:             jobID,
		PrinterID:         printerID,
		CustomerProfileID: customerProfileID,
		Score:             score,
		Feedback:          strings.TrimSpace(feedback),
		CreatedAt:         now,
	}, nil
}

// Repository stores ratings. Create returns errors.ErrDuplicateRecord when the
// job was already rated.
type Repository interface {
	Create(ctx context.Context, r *Rating) error
	GetByJobID(ctx context.Context, jobID int64) (*Rating, error)
}
