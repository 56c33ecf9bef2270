package bid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/printexchange/print-exchange-backend/internal/domain/errors"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
)

// Bid is a printer's offer against an OPEN job. Once it leaves OPEN it is
// never modified again.
type Bid struct {
	ID        int64     `json:"-"`
	UUID      uuid.UUID `json:"uuid"`
	JobID     int64     `json:"-"`
	PrinterID uuid.UUID `json:"printer_id"`

	Price                   values.Money `json:"price"`
	EstimatedTurnaroundDays int          `json:"estimated_turnaround_days"`
	Notes                   string       `json:"notes,omitempty"`

	// Snapshot of the printer's payment terms at submission time
	PaymentTerms string `json:"payment_terms,omitempty"`

	Status Status `json:"status"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

type Status int

const (
	StatusOpen Status = iota
	StatusAccepted
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusLost:
		return "LOST"
	default:
		return "unknown"
	}
}

// ParseStatus converts a stored status name to a Status
func ParseStatus(s string) (Status, error) {
	switch s {
	case "OPEN":
		return StatusOpen, nil
	case "ACCEPTED":
		return StatusAccepted, nil
	case "LOST":
		return StatusLost, nil
	}
	return StatusOpen, fmt.Errorf("unknown bid status %q", s)
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	if s < StatusOpen || s > StatusLost {
		return nil, fmt.Errorf("unknown bid status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Offer is what a printer submits
type Offer struct {
	Price                   values.Money
	EstimatedTurnaroundDays int
	Notes                   string
}

// NewBid creates an OPEN bid on the job with the given storage id.
// paymentTerms is copied from the printer profile and never re-read.
func NewBid(jobID int64, printerID uuid.UUID, offer Offer, paymentTerms string, now time.Time) (*Bid, error) {
	if printerID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_PRINTER", "printer is required")
	}
	if !offer.Price.IsPositive() {
		return nil, errors.NewValidationError("INVALID_PRICE", "price must be greater than 0")
	}
	if offer.EstimatedTurnaroundDays < 0 {
		return nil, errors.NewValidationError("INVALID_TURNAROUND", "estimated_turnaround_days cannot be negative")
	}

	return &Bid{
		UUID:                    uuid.New(),
		JobID:                   jobID,
		PrinterID:               printerID,
		Price:                   offer.Price,
		EstimatedTurnaroundDays: offer.EstimatedTurnaroundDays,
		Notes:                   strings.TrimSpace(offer.Notes),
		PaymentTerms:            paymentTerms,
		Status:                  StatusOpen,
		CreatedAt:               now,
		UpdatedAt:               now,
	}, nil
}

// Accept marks the bid as the job's winner
func (b *Bid) Accept(now time.Time) error {
	if b.Status != StatusOpen {
		return errors.NewConflictError(errors.CodeAlreadyDecided,
			fmt.Sprintf("bid is %s and can no longer be accepted", b.Status))
	}
	b.Status = StatusAccepted
	b.AcceptedAt = &now
	b.UpdatedAt = now
	return nil
}

// MarkLost moves an OPEN bid to LOST. It reports whether anything changed;
// bids that already left OPEN are left alone.
func (b *Bid) MarkLost(now time.Time) bool {
	if b.Status != StatusOpen {
		return false
	}
	b.Status = StatusLost
	b.UpdatedAt = now
	return true
}

// IsOpen reports whether the bid can still change
func (b *Bid) IsOpen() bool {
	return b.Status == StatusOpen
}

// Clone returns a deep copy
func (b *Bid) Clone() *Bid {
	c := *b
	if b.AcceptedAt != nil {
		t := *b.AcceptedAt
		c.AcceptedAt = &t
	}
	return &c
}
