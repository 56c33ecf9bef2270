package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printexchange/print-exchange-backend/internal/domain/bid"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/database"
)

const bidColumns = `
	id, uuid, job_id, printer_id, price::text, currency, estimated_turnaround_days,
	notes, payment_terms, status, created_at, updated_at, accepted_at`

// BidRepository implements bid.Repository on PostgreSQL
type BidRepository struct {
	pool *pgxpool.Pool
}

// NewBidRepository creates a new bid repository
func NewBidRepository(pool *pgxpool.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

var _ bid.Repository = (*BidRepository)(nil)

// Create stores a new bid. The (job_id, printer_id) unique constraint turns a
// second bid by the same printer into ErrDuplicateKey.
func (r *BidRepository) Create(ctx context.Context, b *bid.Bid) error {
	const query = `
		INSERT INTO bids (
			uuid, job_id, printer_id, price, currency, estimated_turnaround_days,
			notes, payment_terms, status, created_at, updated_at, accepted_at
		) VALUES (
			$1, $2, $3, $4::text::numeric, $5, $6,
			$7, $8, $9, $10, $11, $12
		)
		RETURNING id`

	err := database.Conn(ctx, r.pool).QueryRow(ctx, query,
		b.UUID, b.JobID, b.PrinterID, b.Price.Amount().StringFixed(2), b.Price.Currency(), b.EstimatedTurnaroundDays,
		b.Notes, b.PaymentTerms, b.Status.String(), b.CreatedAt, b.UpdatedAt, b.AcceptedAt,
	).Scan(&b.ID)
	if err != nil {
		return WrapRepositoryError(err, "create bid")
	}
	return nil
}

// GetByUUID retrieves a bid by its external UUID
func (r *BidRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE uuid = $1`
	b, err := scanBid(database.Conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, WrapRepositoryError(err, "get bid")
	}
	return b, nil
}

// GetByJobAndPrinter retrieves the printer's bid on a job
func (r *BidRepository) GetByJobAndPrinter(ctx context.Context, jobID int64, printerID uuid.UUID) (*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE job_id = $1 AND printer_id = $2`
	b, err := scanBid(database.Conn(ctx, r.pool).QueryRow(ctx, query, jobID, printerID))
	if err != nil {
		return nil, WrapRepositoryError(err, "get bid by printer")
	}
	return b, nil
}

// ListByJob returns bids oldest first
func (r *BidRepository) ListByJob(ctx context.Context, jobID int64) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE job_id = $1 ORDER BY created_at, id`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, query, jobID)
	if err != nil {
		return nil, WrapRepositoryError(err, "list bids")
	}
	defer rows.Close()

	bids := make([]*bid.Bid, 0)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, WrapRepositoryError(err, "scan bid")
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapRepositoryError(err, "list bids")
	}
	return bids, nil
}

// Update persists the bid's status columns. Price and terms never change.
func (r *BidRepository) Update(ctx context.Context, b *bid.Bid) error {
	const query = `
		UPDATE bids SET status = $2, updated_at = $3, accepted_at = $4
		WHERE id = $1`

	tag, err := database.Conn(ctx, r.pool).Exec(ctx, query, b.ID, b.Status.String(), b.UpdatedAt, b.AcceptedAt)
	if err != nil {
		return WrapRepositoryError(err, "update bid")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOpenBidsLost moves every OPEN bid on the job except exceptID to LOST
func (r *BidRepository) MarkOpenBidsLost(ctx context.Context, jobID, exceptID int64, now time.Time) (int64, error) {
	const query = `
		UPDATE bids SET status = 'LOST', updated_at = $3
		WHERE job_id = $1 AND status = 'OPEN' AND id <> $2`

	tag, err := database.Conn(ctx, r.pool).Exec(ctx, query, jobID, exceptID, now)
	if err != nil {
		return 0, WrapRepositoryError(err, "mark bids lost")
	}
	return tag.RowsAffected(), nil
}

func scanBid(row pgx.Row) (*bid.Bid, error) {
	var (
		b        bid.Bid
		price    string
		currency string
		status   string
	)
	err := row.Scan(
		&b.ID, &b.UUID, &b.JobID, &b.PrinterID, &price, &currency, &b.EstimatedTurnaroundDays,
		&b.Notes, &b.PaymentTerms, &status, &b.CreatedAt, &b.UpdatedAt, &b.AcceptedAt,
	)
	if err != nil {
		return nil, err
	}

	if b.Price, err = values.NewMoneyFromString(price, currency); err != nil {
		return nil, fmt.Errorf("bid %s price: %w", b.UUID, err)
	}
	if b.Status, err = bid.ParseStatus(status); err != nil {
		return nil, err
	}
	return &b, nil
}
