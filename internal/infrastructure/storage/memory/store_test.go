package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/numerator"
	"contabil/internal/domain/periods"
)

func testKey() numerator.Key {
	return numerator.Key{CompanyID: id.New(), Type: numerator.CounterInvoice, Series: "FCT", Year: 2025}
}

func TestRunInTransaction_RollbackRestoresState(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := testKey()
	seq := s.Sequences()

	_, err := seq.Increment(ctx, key)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := seq.Increment(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := seq.Current(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRunInTransaction_PanicRollsBack(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := testKey()

	assert.Panics(t, func() {
		_ = s.RunInTransaction(ctx, func(ctx context.Context) error {
			_, _ = s.Sequences().Increment(ctx, key)
			panic("unexpected")
		})
	})

	n, _ := s.Sequences().Current(ctx, key)
	assert.Zero(t, n)

	// the lock was released
	require.NoError(t, s.RunInTransaction(ctx, func(context.Context) error { return nil }))
}

func TestRunInTransaction_NestedJoins(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := testKey()

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		assert.True(t, s.InTransaction(ctx))
		return s.RunInTransaction(ctx, func(ctx context.Context) error {
			_, err := s.Sequences().Increment(ctx, key)
			return err
		})
	})
	require.NoError(t, err)
	assert.False(t, s.InTransaction(ctx))
	assert.False(t, New().InTransaction(context.WithValue(ctx, txKey{}, s)))

	n, _ := s.Sequences().Current(ctx, key)
	assert.Equal(t, int64(1), n)
}

func TestRunInTransaction_LockTimeout(t *testing.T) {
	s := New(WithLockTimeout(20 * time.Millisecond))
	ctx := context.Background()

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.RunInTransaction(ctx, func(context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	err := s.RunInTransaction(ctx, func(context.Context) error { return nil })
	close(done)

	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeLockTimeout))
	assert.True(t, apperror.IsRetryable(err))
}

func TestRunInTransaction_ContextCancelled(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.RunInTransaction(context.Background(), func(context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	cancel()

	err := s.RunInTransaction(ctx, func(context.Context) error { return nil })
	close(done)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPeriodReadsSkipUncommittedWrites(t *testing.T) {
	s := New(WithLockTimeout(20 * time.Millisecond))
	ctx := context.Background()
	company := id.New()
	march := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	p := periods.Period{
		ID:        id.New(),
		CompanyID: company,
		StartDate: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
		Status:    periods.StatusOpen,
	}

	held := make(chan struct{})
	done := make(chan struct{})
	finished := make(chan error, 1)
	go func() {
		finished <- s.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := s.Periods().Create(ctx, &p); err != nil {
				return err
			}
			close(held)
			<-done
			return errors.New("abort")
		})
	}()
	<-held

	_, coverErr := s.Periods().FindCovering(ctx, company, march, periods.LockNone)
	_, getErr := s.Periods().Get(ctx, company, p.ID, periods.LockNone)
	_, listErr := s.Periods().List(ctx, company, p.StartDate, p.EndDate)
	close(done)
	require.Error(t, <-finished)

	assert.True(t, apperror.HasCode(coverErr, apperror.CodeLockTimeout), "got %v", coverErr)
	assert.True(t, apperror.HasCode(getErr, apperror.CodeLockTimeout), "got %v", getErr)
	assert.True(t, apperror.HasCode(listErr, apperror.CodeLockTimeout), "got %v", listErr)

	_, err := s.Periods().FindCovering(ctx, company, march, periods.LockNone)
	assert.True(t, apperror.HasCode(err, apperror.CodePeriodNotFound), "got %v", err)
	list, err := s.Periods().List(ctx, company, p.StartDate, p.EndDate)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWriteOutsideTransactionCommits(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := testKey()

	n, err := s.Sequences().Increment(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := s.Sequences().List(ctx, key.CompanyID, 2025)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, key, list[0].Key)
}
