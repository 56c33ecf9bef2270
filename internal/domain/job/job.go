package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
)

// DefaultBiddingDurationHours applies when a draft is created without one
const DefaultBiddingDurationHours = 24

// Job is a unit of printing work posted by a customer
type Job struct {
	ID                int64     `json:"-"`
	UUID              uuid.UUID `json:"uuid"`
	CustomerProfileID uuid.UUID `json:"customer_profile_id"`

	ProductType          values.ProductType `json:"product_type"`
	Quantity             int                `json:"quantity"`
	DueDate              time.Time          `json:"due_date"`
	Description          string             `json:"description,omitempty"`
	SpecialInstructions  string             `json:"special_instructions,omitempty"`
	FileURL              string             `json:"file_url,omitempty"`
	BiddingDurationHours int                `json:"bidding_duration_hours"`
	BiddingEndsAt        *time.Time         `json:"bidding_ends_at,omitempty"`
	DeliveryLocation     string             `json:"delivery_location,omitempty"`
	PickupPreferred      bool               `json:"pickup_preferred"`

	State State `json:"state"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Details are the customer-editable fields of a job
type Details struct {
	ProductType          values.ProductType
	Quantity             int
	DueDate              time.Time
	Description          string
	SpecialInstructions  string
	FileURL              string
	BiddingDurationHours int
	DeliveryLocation     string
	PickupPreferred      bool
}

// Patch carries a partial update; nil fields are left untouched
type Patch struct {
	ProductType          *values.ProductType
	Quantity             *int
	DueDate              *time.Time
	Description          *string
	SpecialInstructions  *string
	FileURL              *string
	BiddingDurationHours *int
	DeliveryLocation     *string
	PickupPreferred      *bool
}

// NewJob creates a DRAFT job owned by the given customer profile
func NewJob(customerProfileID uuid.UUID, d Details, now time.Time) (*Job, error) {
	if customerProfileID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_CUSTOMER_PROFILE", "customer profile is required")
	}
	if d.BiddingDurationHours == 0 {
		d.BiddingDurationHours = DefaultBiddingDurationHours
	}

	return &Job{
		UUID:                 uuid.New(),
		CustomerProfileID:    customerProfileID,
		ProductType:          d.ProductType,
		Quantity:             d.Quantity,
		DueDate:              d.DueDate,
		Description:          d.Description,
		SpecialInstructions:  d.SpecialInstructions,
		FileURL:              d.FileURL,
		BiddingDurationHours: d.BiddingDurationHours,
		DeliveryLocation:     d.DeliveryLocation,
		PickupPreferred:      d.PickupPreferred,
		State:                StateDraft,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// ApplyPatch edits a DRAFT job
func (j *Job) ApplyPatch(p Patch, now time.Time) error {
	if j.State != StateDraft {
		return errors.NewConflictError(errors.CodeInvalidState,
			fmt.Sprintf("job can only be edited in DRAFT state, current state: %s", j.State))
	}

	if p.ProductType != nil {
		j.ProductType = *p.ProductType
	}
	if p.Quantity != nil {
		j.Quantity = *p.Quantity
	}
	if p.DueDate != nil {
		j.DueDate = *p.DueDate
	}
	if p.Description != nil {
		j.Description = *p.Description
	}
	if p.SpecialInstructions != nil {
		j.SpecialInstructions = *p.SpecialInstructions
	}
	if p.FileURL != nil {
		j.FileURL = *p.FileURL
	}
	if p.BiddingDurationHours != nil {
		j.BiddingDurationHours = *p.BiddingDurationHours
	}
	if p.DeliveryLocation != nil {
		j.DeliveryLocation = *p.DeliveryLocation
	}
	if p.PickupPreferred != nil {
		j.PickupPreferred = *p.PickupPreferred
	}
	j.UpdatedAt = now
	return nil
}

// EnsureDeletable rejects deletion outside DRAFT
func (j *Job) EnsureDeletable() error {
	if j.State != StateDraft {
		return errors.NewConflictError(errors.CodeInvalidState,
			fmt.Sprintf("job can only be deleted in DRAFT state, current state: %s", j.State))
	}
	return nil
}

// ValidateForPublish checks every field publish requires. It does not
// mutate the job.
func (j *Job) ValidateForPublish(now time.Time) error {
	if j.ProductType == "" {
		return errors.NewValidationError("MISSING_PRODUCT_TYPE", "product_type is required")
	}
	if !j.ProductType.IsValid() {
		return errors.NewValidationError("INVALID_PRODUCT_TYPE", "unsupported product type: "+j.ProductType.String())
	}
	if j.Quantity <= 0 {
		return errors.NewValidationError("INVALID_QUANTITY", "quantity must be greater than 0")
	}
	if j.DueDate.IsZero() {
		return errors.NewValidationError("MISSING_DUE_DATE", "due_date is required")
	}
	if !j.DueDate.After(now) {
		return errors.NewValidationError("DUE_DATE_IN_PAST", "due_date must be in the future")
	}
	if j.BiddingDurationHours <= 0 {
		return errors.NewValidationError("INVALID_BIDDING_DURATION", "bidding_duration_hours must be greater than 0")
	}
	return nil
}

// Publish moves a DRAFT job to OPEN and opens the bidding window
func (j *Job) Publish(now time.Time) error {
	if !CanTransition(j.State, StateOpen) {
		return j.stateConflict(StateOpen)
	}
	if err := j.ValidateForPublish(now); err != nil {
		return err
	}

	endsAt := now.Add(time.Duration(j.BiddingDurationHours) * time.Hour)
	j.BiddingEndsAt = &endsAt
	j.PublishedAt = &now
	j.State = StateOpen
	j.UpdatedAt = now
	return nil
}

// AcceptsBids reports whether a bid submitted at now is inside the window
func (j *Job) AcceptsBids(now time.Time) bool {
	return j.State == StateOpen && j.BiddingEndsAt != nil && now.Before(*j.BiddingEndsAt)
}

// WindowElapsed reports whether the bidding window has ended at now
func (j *Job) WindowElapsed(now time.Time) bool {
	return j.BiddingEndsAt != nil && !now.Before(*j.BiddingEndsAt)
}

// Expire closes an OPEN job whose bidding window has elapsed without a winner
func (j *Job) Expire(now time.Time) error {
	if !CanTransition(j.State, StateClosed) {
		return j.stateConflict(StateClosed)
	}
	if !j.WindowElapsed(now) {
		return errors.NewConflictError(errors.CodeInvalidState, "bidding window has not elapsed")
	}
	j.State = StateClosed
	j.ClosedAt = &now
	j.UpdatedAt = now
	return nil
}

// StartFulfillment records that a winning bid was accepted
func (j *Job) StartFulfillment(now time.Time) error {
	if !CanTransition(j.State, StateInProgress) {
		return j.stateConflict(StateInProgress)
	}
	j.State = StateInProgress
	j.ClosedAt = &now
	j.UpdatedAt = now
	return nil
}

// Complete records fulfillment confirmation
func (j *Job) Complete(now time.Time) error {
	if !CanTransition(j.State, StateCompleted) {
		return j.stateConflict(StateCompleted)
	}
	j.State = StateCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// CheckInvariants verifies bidding_ends_at is set iff the job was published
func (j *Job) CheckInvariants() error {
	if j.State.HasBiddingWindow() != (j.BiddingEndsAt != nil) {
		return fmt.Errorf("job %s: bidding_ends_at presence does not match state %s", j.UUID, j.State)
	}
	return nil
}

// Clone returns a deep copy
func (j *Job) Clone() *Job {
	c := *j
	c.BiddingEndsAt = cloneTime(j.BiddingEndsAt)
	c.PublishedAt = cloneTime(j.PublishedAt)
	c.ClosedAt = cloneTime(j.ClosedAt)
	c.CompletedAt = cloneTime(j.CompletedAt)
	return &c
}

func (j *Job) stateConflict(to State) error {
	return errors.NewConflictError(errors.CodeInvalidState,
		fmt.Sprintf("cannot move job from %s to %s", j.State, to)).
		WithDetails(map[string]interface{}{"from": j.State.String(), "to": to.String()})
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
