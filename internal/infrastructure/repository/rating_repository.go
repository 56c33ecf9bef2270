package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printexchange/print-exchange-backend/internal/domain/rating"
	"github.com/printexchange/print-exchange-backend/internal/infrastructure/database"
)

type RatingRepository struct {
	pool *pgxpool.Pool
}

func NewRatingRepository(pool *pgxpool.Pool) *RatingRepository {
	return &RatingRepository{pool: pool}
}

var _ rating.Repository = (*RatingRepository)(nil)

func (r *RatingRepository) Create(ctx context.Context, rt *rating.Rating) error {
	const query = `
		INSERT INTO ratings (uuid, job_id, printer_id, customer_profile_id, score, feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := database.Conn(ctx, r.pool).QueryRow(ctx, query,
		rt.UUID, rt.JobID, rt.PrinterID, rt.CustomerProfileID, rt.Score, rt.Feedback, rt.CreatedAt,
	).Scan(&rt.ID)
	if err != nil {
		return WrapRepositoryError(err, "create rating")
	}
	return nil
}

func (r *RatingRepository) GetByJobID(ctx context.Context, jobID int64) (*rating.Rating, error) {
	const query = `
		SELECT id, uuid, job_id, printer_id, customer_profile_id, score, feedback, created_at
		FROM ratings WHERE job_id = $1`

	var rt rating.Rating
	err := database.Conn(ctx, r.pool).QueryRow(ctx, query, jobID).Scan(
		&rt.ID, &rt.UUID, &rt.JobID, &rt.PrinterID, &rt.CustomerProfileID, &rt.Score, &rt.Feedback, &rt.CreatedAt,
	)
	if err != nil {
		return nil, WrapRepositoryError(err, "get rating")
	}
	return &rt, nil
}
