package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"contabil/internal/core/apperror"
)

// PostgreSQL error codes the accounting core reacts to.
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgExclusionViolation   = "23P01"
	pgCheckViolation       = "23514"
)

// MapError converts driver errors into app errors. App errors and unknown
// errors pass through unchanged.
func MapError(err error) error {
	if err == nil || apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgLockNotAvailable:
		return apperror.NewLockTimeout(pgErr.TableName).WithCause(err)
	case pgSerializationFailure, pgDeadlockDetected:
		return apperror.NewConcurrentModification(pgErr.TableName, pgErr.ConstraintName).WithCause(err)
	case pgUniqueViolation:
		return apperror.NewDuplicate(pgErr.TableName, pgErr.ConstraintName, pgErr.Detail).WithCause(err)
	case pgExclusionViolation:
		return apperror.NewValidation("period overlaps an existing period").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgCheckViolation:
		return apperror.NewValidation("row violates constraint "+pgErr.ConstraintName).WithCause(err)
	}
	return err
}

// IsNoRows reports whether err is pgx.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
