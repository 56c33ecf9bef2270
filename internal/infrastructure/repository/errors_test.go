package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	domainerrors "github.com/printexchange/print-exchange-backend/internal/domain/errors"
)

func TestWrapRepositoryError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "no rows", err: pgx.ErrNoRows, target: domainerrors.ErrRecordNotFound},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, target: domainerrors.ErrDuplicateRecord},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), target: ErrDuplicateKey},
		{name: "foreign key", err: &pgconn.PgError{Code: "23503"}, target: ErrForeignKey},
		{name: "bad uuid text", err: &pgconn.PgError{Code: "22P02"}, target: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapRepositoryError(tt.err, "op")
			assert.True(t, errors.Is(got, tt.target), "got %v", got)
		})
	}

	t.Run("keeps driver error in chain", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "bids_one_per_printer"}
		got := WrapRepositoryError(pgErr, "create bid")

		var target *pgconn.PgError
		assert.True(t, errors.As(got, &target))
		assert.Equal(t, "bids_one_per_printer", target.ConstraintName)
		assert.Contains(t, got.Error(), "create bid")
	})

	assert.NoError(t, WrapRepositoryError(nil, "op"))
}
