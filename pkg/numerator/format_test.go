package numerator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "contabil/internal/core/numerator"
	"contabil/internal/core/id"
)

func invoiceKey(year int) corenumerator.Key {
	return corenumerator.Key{
		CompanyID: id.MustParse("0190f1b2-7c4e-7000-8000-000000000001"),
		Type:      corenumerator.CounterInvoice,
		Series:    "FDI",
		Year:      year,
	}
}

func TestService_Next(t *testing.T) {
	svc := New(&corenumerator.MockAllocator{}, DefaultConfig())
	ctx := context.Background()

	first, err := svc.Next(ctx, invoiceKey(2025))
	require.NoError(t, err)
	second, err := svc.Next(ctx, invoiceKey(2025))
	require.NoError(t, err)
	nextYear, err := svc.Next(ctx, invoiceKey(2026))
	require.NoError(t, err)

	assert.Equal(t, "FDI-2025-00001", first)
	assert.Equal(t, "FDI-2025-00002", second)
	assert.Equal(t, "FDI-2026-00001", nextYear)
}

func TestService_NextPropagatesAllocatorError(t *testing.T) {
	boom := errors.New("busy")
	svc := New(&corenumerator.MockAllocator{
		AllocateFunc: func(ctx context.Context, key corenumerator.Key) (int64, error) { return 0, boom },
	}, DefaultConfig())

	_, err := svc.Next(context.Background(), invoiceKey(2025))
	assert.ErrorIs(t, err, boom)
}

func TestFormatAndParse(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		n      int64
		want   string
		wantYr int
	}{
		{name: "with year", cfg: DefaultConfig(), n: 42, want: "FDI-2025-00042", wantYr: 2025},
		{name: "without year", cfg: Config{PadWidth: 3}, n: 7, want: "FDI-007", wantYr: 0},
		{name: "wider than pad", cfg: Config{IncludeYear: true, PadWidth: 2}, n: 1234, want: "FDI-2025-1234", wantYr: 2025},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.cfg, invoiceKey(2025), tt.n)
			assert.Equal(t, tt.want, got)

			series, year, n, err := Parse(got)
			require.NoError(t, err)
			assert.Equal(t, "FDI", series)
			assert.Equal(t, tt.wantYr, year)
			assert.Equal(t, tt.n, n)
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, s := range []string{"", "FDI", "FDI-x", "FDI-20x5-001", "A-B-C-D"} {
		_, _, _, err := Parse(s)
		assert.Error(t, err, s)
	}
}
