package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printexchange/print-exchange-backend/internal/domain/agreement"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/database"
)

// AgreementRepository implements agreement.Repository on PostgreSQL.
// Agreements are insert-only.
type AgreementRepository struct {
	pool *pgxpool.Pool
}

func NewAgreementRepository(pool *pgxpool.Pool) *AgreementRepository {
	return &AgreementRepository{pool: pool}
}

var _ agreement.Repository = (*AgreementRepository)(nil)

func (r *AgreementRepository) Create(ctx context.Context, a *agreement.Agreement) error {
	const query = `
		INSERT INTO agreements (
			uuid, job_id, bid_id, customer_profile_id, printer_id,
			agreed_price, currency, estimated_turnaround_days, payment_terms,
			customer_confirmed, confirmation_timestamp, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6::text::numeric, $7, $8, $9,
			$10, $11, $12
		)
		RETURNING id`

	err := database.Conn(ctx, r.pool).QueryRow(ctx, query,
		a.UUID, a.JobID, a.BidID, a.CustomerProfileID, a.PrinterID,
		a.AgreedPrice.Amount().StringFixed(2), a.AgreedPrice.Currency(), a.EstimatedTurnaroundDays, a.PaymentTerms,
		a.CustomerConfirmed, a.ConfirmationTimestamp, a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return WrapRepositoryError(err, "create agreement")
	}
	return nil
}

// GetByJobID returns the job's agreement with job and bid UUIDs resolved
func (r *AgreementRepository) GetByJobID(ctx context.Context, jobID int64) (*agreement.Agreement, error) {
	const query = `
		SELECT a.id, a.uuid, a.job_id, a.bid_id, j.uuid, b.uuid,
			a.customer_profile_id, a.printer_id, a.agreed_price::text, a.currency,
			a.estimated_turnaround_days, a.payment_terms, a.customer_confirmed,
			a.confirmation_timestamp, a.created_at
		FROM agreements a
		JOIN printing_jobs j ON j.id = a.job_id
		JOIN bids b ON b.id = a.bid_id
		WHERE a.job_id = $1`

	var (
		a        agreement.Agreement
		price    string
		currency string
	)
	err := database.Conn(ctx, r.pool).QueryRow(ctx, query, jobID).Scan(
		&a.ID, &a.UUID, &a.JobID, &a.BidID, &a.JobUUID, &a.BidUUID,
		&a.CustomerProfileID, &a.PrinterID, &price, &currency,
		&a.EstimatedTurnaroundDays, &a.PaymentTerms, &a.CustomerConfirmed,
		&a.ConfirmationTimestamp, &a.CreatedAt,
	)
	if err != nil {
		return nil, WrapRepositoryError(err, "get agreement")
	}
	if a.AgreedPrice, err = values.NewMoneyFromString(price, currency); err != nil {
		return nil, fmt.Errorf("agreement %s price: %w", a.UUID, err)
	}
	return &a, nil
}
