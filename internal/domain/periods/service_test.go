package periods_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contabil/internal/core/apperror"
	appctx "contabil/internal/core/context"
	"contabil/internal/core/id"
	"contabil/internal/core/retry"
	"contabil/internal/domain/audit"
	"contabil/internal/domain/events"
	"contabil/internal/domain/ledger"
	"contabil/internal/domain/periods"
	"contabil/internal/infrastructure/storage/memory"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store   *memory.Store
	guard   *periods.Guard
	company id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	return &fixture{
		store:   store,
		guard:   periods.NewGuard(store.Periods(), store.Ledger(), store, store.Audit(), store.Outbox(), retry.NoRetry()),
		company: id.New(),
	}
}

func (f *fixture) month(t *testing.T, y int, m time.Month) *periods.Period {
	t.Helper()
	p, err := f.guard.CreatePeriod(context.Background(), f.company, date(y, m, 1), periods.MonthEnd(date(y, m, 1)))
	require.NoError(t, err)
	return p
}

func TestCreatePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.month(t, 2025, time.March)
	assert.Equal(t, periods.StatusOpen, p.Status)
	assert.Equal(t, "2025-03", p.Label())
	assert.Equal(t, date(2025, time.March, 31), p.EndDate)

	_, err := f.guard.CreatePeriod(ctx, f.company, date(2025, time.March, 15), date(2025, time.April, 15))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.guard.CreatePeriod(ctx, f.company, date(2025, time.May, 31), date(2025, time.May, 1))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	// another company may use the same dates
	_, err = f.guard.CreatePeriod(ctx, id.New(), date(2025, time.March, 1), date(2025, time.March, 31))
	assert.NoError(t, err)
}

func TestEnsureYear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.month(t, 2025, time.February)

	ps, err := f.guard.EnsureYear(ctx, f.company, 2025)
	require.NoError(t, err)
	require.Len(t, ps, 12)
	for i, p := range ps {
		assert.Equal(t, time.Month(i+1), p.StartDate.Month())
	}

	again, err := f.guard.EnsureYear(ctx, f.company, 2025)
	require.NoError(t, err)
	assert.Len(t, again, 12)
}

func TestCheckPostable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.month(t, 2025, time.January)

	status, err := f.guard.CheckPostable(ctx, f.company, date(2025, time.January, 20))
	require.NoError(t, err)
	assert.Equal(t, periods.StatusOpen, status)

	_, err = f.guard.CheckPostable(ctx, f.company, date(2025, time.February, 1))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodePeriodNotFound))

	_, err = f.guard.Close(ctx, f.company, p.ID, periods.StatusSoftClose)
	require.NoError(t, err)
	status, err = f.guard.CheckPostable(ctx, f.company, date(2025, time.January, 20))
	require.NoError(t, err)
	assert.Equal(t, periods.StatusSoftClose, status)

	got, err := f.guard.AcquireForPosting(ctx, f.company, date(2025, time.January, 31))
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestAcquireForPosting_HardClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.month(t, 2025, time.January)

	_, err := f.guard.Close(ctx, f.company, p.ID, periods.StatusHardClose)
	require.NoError(t, err)

	_, err = f.guard.AcquireForPosting(ctx, f.company, date(2025, time.January, 10))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodePeriodClosed, appErr.Code)
	assert.Equal(t, p.ID, appErr.Details["period_id"])
}

func TestClose_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    periods.Status
		to      periods.Status
		wantErr string
	}{
		{"open to soft", periods.StatusOpen, periods.StatusSoftClose, ""},
		{"open to hard", periods.StatusOpen, periods.StatusHardClose, ""},
		{"soft to hard", periods.StatusSoftClose, periods.StatusHardClose, ""},
		{"hard to soft", periods.StatusHardClose, periods.StatusSoftClose, apperror.CodeInvalidPeriodTransition},
		{"soft to soft", periods.StatusSoftClose, periods.StatusSoftClose, apperror.CodeInvalidPeriodTransition},
		{"close to open", periods.StatusSoftClose, periods.StatusOpen, apperror.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			p := f.month(t, 2025, time.June)
			if tt.from != periods.StatusOpen {
				_, err := f.guard.Close(ctx, f.company, p.ID, tt.from)
				require.NoError(t, err)
			}

			got, err := f.guard.Close(ctx, f.company, p.ID, tt.to)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperror.HasCode(err, tt.wantErr), "got %v", err)

				cur, err := f.guard.GetPeriod(ctx, f.company, p.ID)
				require.NoError(t, err)
				assert.Equal(t, tt.from, cur.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
			assert.NotNil(t, got.ClosedAt)
		})
	}
}

func TestReopen(t *testing.T) {
	f := newFixture(t)
	ctx := appctx.WithActor(context.Background(), &appctx.ActorContext{ActorID: "contabil-sef"})
	p := f.month(t, 2025, time.April)

	_, err := f.guard.Reopen(ctx, f.company, p.ID, "corectie", "ana")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidPeriodTransition), "open periods cannot be reopened")

	_, err = f.guard.Close(ctx, f.company, p.ID, periods.StatusHardClose)
	require.NoError(t, err)

	_, err = f.guard.Reopen(ctx, f.company, p.ID, "  ", "ana")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	_, err = f.guard.Reopen(ctx, f.company, p.ID, "corectie", "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	got, err := f.guard.Reopen(ctx, f.company, p.ID, "factura omisa", "ana")
	require.NoError(t, err)
	assert.Equal(t, periods.StatusOpen, got.Status)
	assert.Equal(t, "ana", got.ReopenedBy)
	assert.Equal(t, "factura omisa", got.ReopenReason)
	require.NotNil(t, got.ReopenedAt)

	records := f.store.Audit().Records()
	require.Len(t, records, 2)
	assert.Equal(t, audit.ActionClosePeriod, records[0].Action)
	assert.Equal(t, "contabil-sef", records[0].ActorID)
	assert.Equal(t, audit.ActionReopenPeriod, records[1].Action)
	assert.Equal(t, "ana", records[1].ActorID)
	assert.Equal(t, "factura omisa", records[1].Changes["reason"])

	msgs := f.store.Outbox().Messages()
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, events.TypePeriodStatusChanged, m.EventType)
		assert.Equal(t, p.ID, m.AggregateID)
	}
	assert.JSONEq(t, `"open"`, string(mustField(t, msgs[1].Payload, "to")))
}

func TestDeletePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	empty := f.month(t, 2025, time.July)
	used := f.month(t, 2025, time.August)

	require.NoError(t, f.guard.DeletePeriod(ctx, f.company, empty.ID))
	_, err := f.guard.GetPeriod(ctx, f.company, empty.ID)
	assert.True(t, apperror.IsNotFound(err))

	require.NoError(t, f.store.Ledger().Insert(ctx, &ledger.Entry{
		ID:            id.New(),
		CompanyID:     f.company,
		JournalSeries: "NC",
		JournalNumber: 1,
		PostingDate:   date(2025, time.August, 5),
		PeriodID:      id.Ptr(used.ID),
		Status:        ledger.StatusPosted,
	}))

	err = f.guard.DeletePeriod(ctx, f.company, used.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))

	_, err = f.guard.GetPeriod(ctx, f.company, used.ID)
	assert.NoError(t, err)
}

func mustField(t *testing.T, payload []byte, field string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &m))
	v, ok := m[field]
	require.True(t, ok, "payload has no %q", field)
	return v
}
