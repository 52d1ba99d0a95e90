package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsAppError_Wrapped(t *testing.T) {
	base := NewPeriodClosed("p-1", "hard_close")
	wrapped := fmt.Errorf("post entry: %w", base)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Same(t, base, appErr)
	assert.True(t, HasCode(wrapped, CodePeriodClosed))
	assert.Equal(t, "p-1", appErr.Details["period_id"])
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(wrapped))
}

func TestPlainErrors(t *testing.T) {
	err := errors.New("disk full")
	assert.False(t, IsAppError(err))
	assert.False(t, HasCode(err, CodeInternal))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(err))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewSequenceContention("INVOICE/FCT/2025"), true},
		{NewLockTimeout("fiscal_periods"), true},
		{NewConcurrentModification("ledger entry", "e-1"), true},
		{NewValidation("bad"), false},
		{NewUnbalancedEntry("1.0000", "2.0000"), false},
		{NewNotFound("period", "p-1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestErrorString(t *testing.T) {
	err := NewInternal(errors.New("connection reset"))
	assert.Contains(t, err.Error(), CodeInternal)
	assert.Contains(t, err.Error(), "connection reset")
	assert.ErrorIs(t, err, err.Err)

	v := NewValidation("posting date is required").WithDetail("field", "posting_date")
	assert.Equal(t, "VALIDATION_ERROR: posting date is required", v.Error())
	assert.Equal(t, "posting_date", v.Details["field"])
}
