package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contabil/internal/core/apperror"
)

func fastPolicy(attempts uint) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestDo_RetriesContentionUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperror.NewSequenceContention("JOURNAL/NC/2025")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_DoesNotRetryBusinessErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(ctx context.Context) error {
		calls++
		return apperror.NewUnbalancedEntry("10.0000", "9.0000")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnbalancedEntry))
}

func TestDo_StopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		return apperror.NewLockTimeout("acc_fiscal_periods")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, apperror.IsRetryable(err))
}

func TestDo_PlainErrorsArePermanent(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), fastPolicy(4), func(ctx context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
