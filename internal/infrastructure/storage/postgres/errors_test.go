package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contabil/internal/core/apperror"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		wantCode string
	}{
		{"lock timeout", pgLockNotAvailable, apperror.CodeLockTimeout},
		{"serialization failure", pgSerializationFailure, apperror.CodeConcurrentModification},
		{"deadlock", pgDeadlockDetected, apperror.CodeConcurrentModification},
		{"unique violation", pgUniqueViolation, apperror.CodeDuplicate},
		{"exclusion violation", pgExclusionViolation, apperror.CodeValidation},
		{"check violation", pgCheckViolation, apperror.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tt.code, TableName: "acc_ledger_entries"}
			err := MapError(fmt.Errorf("insert entry: %w", pgErr))

			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.wantCode), "got %v", err)
			assert.ErrorIs(t, err, pgErr)
		})
	}
}

func TestMapError_Retryable(t *testing.T) {
	assert.True(t, apperror.IsRetryable(MapError(&pgconn.PgError{Code: pgLockNotAvailable})))
	assert.True(t, apperror.IsRetryable(MapError(&pgconn.PgError{Code: pgSerializationFailure})))
	assert.False(t, apperror.IsRetryable(MapError(&pgconn.PgError{Code: pgUniqueViolation})))
}

func TestMapError_PassThrough(t *testing.T) {
	assert.NoError(t, MapError(nil))

	appErr := apperror.NewNotFound("ledger entry", "x")
	assert.Same(t, appErr, MapError(appErr))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, MapError(plain))

	unknown := &pgconn.PgError{Code: "42P01"}
	assert.Equal(t, unknown, MapError(unknown))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("select: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("other")))
}
