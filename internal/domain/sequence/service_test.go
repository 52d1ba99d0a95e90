package sequence_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/numerator"
	"contabil/internal/domain/sequence"
	"contabil/internal/infrastructure/storage/memory"
)

func newService(opts ...memory.Option) (*sequence.Service, *memory.Store) {
	store := memory.New(opts...)
	return sequence.NewService(store.Sequences(), store), store
}

func invoiceKey(company id.ID, year int) numerator.Key {
	return numerator.Key{CompanyID: company, Type: numerator.CounterInvoice, Series: "FCT", Year: year}
}

func TestAllocate_Sequential(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	key := invoiceKey(id.New(), 2025)

	for want := int64(1); want <= 5; want++ {
		n, err := svc.Allocate(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	last, err := svc.Peek(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(5), last)
}

func TestAllocate_KeysAreIndependent(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	company := id.New()

	_, err := svc.Allocate(ctx, invoiceKey(company, 2024))
	require.NoError(t, err)
	_, err = svc.Allocate(ctx, invoiceKey(company, 2024))
	require.NoError(t, err)

	// a new year restarts at 1
	n, err := svc.Allocate(ctx, invoiceKey(company, 2025))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	other := invoiceKey(company, 2024)
	other.Series = "FCE"
	n, err = svc.Allocate(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.Allocate(ctx, invoiceKey(id.New(), 2024))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	counters, err := svc.List(ctx, company, 2024)
	require.NoError(t, err)
	require.Len(t, counters, 2)
	assert.Equal(t, "FCE", counters[0].Key.Series)
	assert.Equal(t, int64(2), counters[1].LastNumber)
}

func TestAllocate_ConcurrentCallersGetDistinctGaplessNumbers(t *testing.T) {
	svc, _ := newService()
	key := invoiceKey(id.New(), 2025)

	const callers = 100
	results := make([]int64, callers)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			n, err := svc.Allocate(ctx, key)
			results[i] = n
			return err
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, n := range results {
		assert.Equal(t, int64(i+1), n)
	}
}

func TestAllocate_RollbackDoesNotConsumeNumber(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	key := invoiceKey(id.New(), 2025)

	boom := apperror.NewValidation("document rejected")
	err := store.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := svc.Allocate(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := svc.Allocate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAllocate_LockTimeoutIsContention(t *testing.T) {
	svc, store := newService(memory.WithLockTimeout(20 * time.Millisecond))
	key := invoiceKey(id.New(), 2025)

	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = store.RunInTransaction(context.Background(), func(ctx context.Context) error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding

	_, err := svc.Allocate(context.Background(), key)
	close(done)

	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeSequenceContention))
	assert.True(t, apperror.IsRetryable(err))
}

func TestAllocate_InvalidKey(t *testing.T) {
	svc, _ := newService()

	_, err := svc.Allocate(context.Background(), numerator.Key{Type: numerator.CounterInvoice, Series: "F", Year: 2025})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = svc.Allocate(context.Background(), numerator.Key{CompanyID: id.New(), Type: numerator.CounterInvoice, Series: "F", Year: 0})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
