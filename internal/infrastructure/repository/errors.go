package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	domainerrors "github.com/printexchange/print-exchange-backend/internal/domain/errors"
)

// Common repository errors. ErrNotFound and ErrDuplicateKey are the domain
// storage sentinels so services can test for them without importing this
// package.
var (
	ErrNotFound     = domainerrors.ErrRecordNotFound
	ErrDuplicateKey = domainerrors.ErrDuplicateRecord
	ErrForeignKey   = errors.New("foreign key violation")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRep      = "22P02"
	pgCheckViolation      = "23514"
)

// IsForeignKeyViolation checks if the error is a foreign key constraint violation
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}

	return strings.Contains(err.Error(), "violates foreign key constraint")
}

// IsDuplicateKeyViolation checks if the error is a unique constraint violation
func IsDuplicateKeyViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	return strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "violates unique constraint")
}

func isInvalidInput(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == pgInvalidTextRep || pgErr.Code == pgCheckViolation)
}

// IsNotFound checks if the error indicates a record was not found
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

// WrapRepositoryError maps driver errors onto the repository sentinels,
// keeping the driver error in the chain
func WrapRepositoryError(err error, operation string) error {
	if err == nil {
		return nil
	}

	switch {
	case IsNotFound(err):
		return ErrNotFound
	case IsDuplicateKeyViolation(err):
		return &opError{op: operation, kind: ErrDuplicateKey, err: err}
	case IsForeignKeyViolation(err):
		return &opError{op: operation, kind: ErrForeignKey, err: err}
	case isInvalidInput(err):
		return &opError{op: operation, kind: ErrInvalidInput, err: err}
	}
	return &opError{op: operation, err: err}
}

type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	return e.op + ": " + e.err.Error()
}

func (e *opError) Unwrap() []error {
	if e.kind == nil {
		return []error{e.err}
	}
	return []error{e.kind, e.err}
}
