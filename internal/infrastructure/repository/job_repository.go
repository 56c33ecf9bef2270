package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/values"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/database"
)

const jobColumns = `
	id, uuid, customer_profile_id, product_type, quantity, due_date,
	description, special_instructions, file_url, bidding_duration_hours,
	bidding_ends_at, delivery_location, pickup_preferred, state,
	created_at, updated_at, published_at, closed_at, completed_at`

// JobRepository implements job.Repository on PostgreSQL
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

var _ job.Repository = (*JobRepository)(nil)

// Create stores a new job and assigns its ID
func (r *JobRepository) Create(ctx context.Context, j *job.Job) error {
	const query = `
		INSERT INTO printing_jobs (
			uuid, customer_profile_id, product_type, quantity, due_date,
			description, special_instructions, file_url, bidding_duration_hours,
			bidding_ends_at, delivery_location, pickup_preferred, state,
			created_at, updated_at, published_at, closed_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17, $18
		)
		RETURNING id`

	err := database.Conn(ctx, r.pool).QueryRow(ctx, query,
		j.UUID, j.CustomerProfileID, string(j.ProductType), j.Quantity, nullTime(j.DueDate),
		j.Description, j.SpecialInstructions, j.FileURL, j.BiddingDurationHours,
		j.BiddingEndsAt, j.DeliveryLocation, j.PickupPreferred, j.State.String(),
		j.CreatedAt, j.UpdatedAt, j.PublishedAt, j.ClosedAt, j.CompletedAt,
	).Scan(&j.ID)
	if err != nil {
		return WrapRepositoryError(err, "create job")
	}
	return nil
}

// GetByUUID retrieves a job by its external UUID
func (r *JobRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM printing_jobs WHERE uuid = $1`
	return r.getOne(ctx, query, "get job", id)
}

// GetForUpdate locks the job row until the surrounding transaction ends.
// It must be called inside database.Transactor.WithTx.
func (r *JobRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	if database.TxFromContext(ctx) == nil {
		return nil, fmt.Errorf("get job for update: no transaction in context")
	}
	query := `SELECT ` + jobColumns + ` FROM printing_jobs WHERE uuid = $1 FOR UPDATE`
	return r.getOne(ctx, query, "get job for update", id)
}

func (r *JobRepository) getOne(ctx context.Context, query, op string, args ...any) (*job.Job, error) {
	j, err := scanJob(database.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, WrapRepositoryError(err, op)
	}
	return j, nil
}

// Update persists every mutable column
func (r *JobRepository) Update(ctx context.Context, j *job.Job) error {
	const query = `
		UPDATE printing_jobs SET
			product_type = $2, quantity = $3, due_date = $4,
			description = $5, special_instructions = $6, file_url = $7,
			bidding_duration_hours = $8, bidding_ends_at = $9,
			delivery_location = $10, pickup_preferred = $11, state = $12,
			updated_at = $13, published_at = $14, closed_at = $15, completed_at = $16
		WHERE id = $1`

	tag, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		j.ID, string(j.ProductType), j.Quantity, nullTime(j.DueDate),
		j.Description, j.SpecialInstructions, j.FileURL,
		j.BiddingDurationHours, j.BiddingEndsAt,
		j.DeliveryLocation, j.PickupPreferred, j.State.String(),
		j.UpdatedAt, j.PublishedAt, j.ClosedAt, j.CompletedAt,
	)
	if err != nil {
		return WrapRepositoryError(err, "update job")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a job
func (r *JobRepository) Delete(ctx context.Context, id int64) error {
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM printing_jobs WHERE id = $1`, id)
	if err != nil {
		return WrapRepositoryError(err, "delete job")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByCustomer returns a customer's jobs newest first, optionally by state
func (r *JobRepository) ListByCustomer(ctx context.Context, customerProfileID uuid.UUID, state *job.State) ([]*job.Job, error) {
	if state != nil {
		query := `SELECT ` + jobColumns + ` FROM printing_jobs
			WHERE customer_profile_id = $1 AND state = $2
			ORDER BY created_at DESC, id DESC`
		return r.list(ctx, "list customer jobs", query, customerProfileID, state.String())
	}
	query := `SELECT ` + jobColumns + ` FROM printing_jobs
		WHERE customer_profile_id = $1
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, "list customer jobs", query, customerProfileID)
}

// ListByState returns jobs in a state newest first
func (r *JobRepository) ListByState(ctx context.Context, state job.State) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM printing_jobs
		WHERE state = $1
		ORDER BY created_at DESC, id DESC`
	return r.list(ctx, "list jobs by state", query, state.String())
}

// ListOverdue pages through OPEN jobs whose bidding window ended at or before
// now using a keyset cursor on (bidding_ends_at, id)
func (r *JobRepository) ListOverdue(ctx context.Context, now time.Time, after *job.Overdue, limit int) ([]job.Overdue, error) {
	const query = `
		SELECT id, uuid, bidding_ends_at FROM printing_jobs
		WHERE state = 'OPEN' AND bidding_ends_at <= $1
		  AND ($2::timestamptz IS NULL OR (bidding_ends_at, id) > ($2::timestamptz, $3::bigint))
		ORDER BY bidding_ends_at, id
		LIMIT $4`

	var (
		afterAt *time.Time
		afterID int64
	)
	if after != nil {
		afterAt, afterID = &after.BiddingEndsAt, after.ID
	}

	rows, err := database.Conn(ctx, r.pool).Query(ctx, query, now, afterAt, afterID, limit)
	if err != nil {
		return nil, WrapRepositoryError(err, "list overdue jobs")
	}
	page, err := pgx.CollectRows(rows, pgx.RowToStructByPos[job.Overdue])
	if err != nil {
		return nil, WrapRepositoryError(err, "scan overdue jobs")
	}
	return page, nil
}

func (r *JobRepository) list(ctx context.Context, op, query string, args ...any) ([]*job.Job, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, WrapRepositoryError(err, op)
	}
	defer rows.Close()

	jobs := make([]*job.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, WrapRepositoryError(err, op)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapRepositoryError(err, op)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j           job.Job
		productType string
		dueDate     *time.Time
		state       string
	)
	err := row.Scan(
		&j.ID, &j.UUID, &j.CustomerProfileID, &productType, &j.Quantity, &dueDate,
		&j.Description, &j.SpecialInstructions, &j.FileURL, &j.BiddingDurationHours,
		&j.BiddingEndsAt, &j.DeliveryLocation, &j.PickupPreferred, &state,
		&j.CreatedAt, &j.UpdatedAt, &j.PublishedAt, &j.ClosedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	j.ProductType = values.ProductType(productType)
	if dueDate != nil {
		j.DueDate = dueDate.UTC()
	}
	if j.State, err = job.ParseState(state); err != nil {
		return nil, err
	}
	return &j, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
