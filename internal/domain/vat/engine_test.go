package vat_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/retry"
	"contabil/internal/core/types"
	"contabil/internal/domain/accounts"
	"contabil/internal/domain/events"
	"contabil/internal/domain/ledger"
	"contabil/internal/domain/periods"
	"contabil/internal/domain/sequence"
	"contabil/internal/domain/vat"
	"contabil/internal/infrastructure/storage/memory"
)

func date(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store   *memory.Store
	guard   *periods.Guard
	ledger  *ledger.Service
	engine  *vat.Engine
	company id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	chart, err := accounts.NewStaticChart(accounts.DefaultAccounts())
	require.NoError(t, err)

	guard := periods.NewGuard(store.Periods(), store.Ledger(), store, store.Audit(), store.Outbox(), retry.NoRetry())
	svc := ledger.NewService(ledger.Dependencies{
		Repo:      store.Ledger(),
		Chart:     chart,
		Guard:     guard,
		Numbers:   sequence.NewService(store.Sequences(), store),
		TxManager: store,
		Audit:     store.Audit(),
		Events:    store.Outbox(),
		Retry:     retry.NoRetry(),
	}, ledger.DefaultConfig())
	engine := vat.NewEngine(store.VAT(), svc, store, store.Outbox(), retry.NoRetry(), vat.DefaultConfig())

	f := &fixture{store: store, guard: guard, ledger: svc, engine: engine, company: id.New()}
	_, err = guard.EnsureYear(context.Background(), f.company, 2025)
	require.NoError(t, err)
	return f
}

func (f *fixture) register(t *testing.T, dir vat.Direction) id.ID {
	t.Helper()
	l, err := f.engine.RegisterInvoice(context.Background(), vat.Link{
		InvoiceID:  id.New(),
		CompanyID:  f.company,
		Direction:  dir,
		Currency:   "ron",
		GrossTotal: types.MustMoney("1190.00"),
		VatTotal:   types.MustMoney("190.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "RON", l.Currency)
	assert.True(t, l.CumulativePaid.IsZero())
	return l.InvoiceID
}

func (f *fixture) pay(t *testing.T, invoice id.ID, amount string, on time.Time) *vat.Result {
	t.Helper()
	res, err := f.engine.OnPayment(context.Background(), invoice, types.MustMoney(amount), on)
	require.NoError(t, err)
	return res
}

func TestRegisterInvoice_Validation(t *testing.T) {
	f := newFixture(t)
	valid := vat.Link{
		InvoiceID:  id.New(),
		CompanyID:  f.company,
		Direction:  vat.DirectionSale,
		GrossTotal: types.MustMoney("119"),
		VatTotal:   types.MustMoney("19"),
	}

	tests := []struct {
		name   string
		mutate func(l *vat.Link)
	}{
		{"missing invoice", func(l *vat.Link) { l.InvoiceID = id.ID{} }},
		{"missing company", func(l *vat.Link) { l.CompanyID = id.ID{} }},
		{"unknown direction", func(l *vat.Link) { l.Direction = "import" }},
		{"zero gross", func(l *vat.Link) { l.GrossTotal = types.Zero() }},
		{"vat above gross", func(l *vat.Link) { l.VatTotal = types.MustMoney("120") }},
		{"negative vat", func(l *vat.Link) { l.VatTotal = types.MustMoney("-1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid
			tt.mutate(&l)
			_, err := f.engine.RegisterInvoice(context.Background(), l)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
		})
	}

	_, err := f.engine.RegisterInvoice(context.Background(), valid)
	require.NoError(t, err)
	_, err = f.engine.RegisterInvoice(context.Background(), valid)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestRegisterInvoice_Currency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	eur := vat.Link{
		InvoiceID:  id.New(),
		CompanyID:  f.company,
		Direction:  vat.DirectionSale,
		Currency:   "eur",
		GrossTotal: types.MustMoney("119"),
		VatTotal:   types.MustMoney("19"),
	}
	_, err := f.engine.RegisterInvoice(ctx, eur)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
	_, err = f.engine.GetLink(ctx, eur.InvoiceID)
	assert.True(t, apperror.IsNotFound(err), "got %v", err)

	blank := eur
	blank.InvoiceID = id.New()
	blank.Currency = ""
	l, err := f.engine.RegisterInvoice(ctx, blank)
	require.NoError(t, err)
	assert.Equal(t, "RON", l.Currency)

	res, err := f.engine.OnPayment(ctx, blank.InvoiceID, types.MustMoney("119"), date(time.March, 5))
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.Equal(t, "RON", res.Entry.Currency)
	assert.Equal(t, "19.00", res.Entry.Lines[0].Debit.StringFixed(2))
}

func TestOnPayment_Sale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice := f.register(t, vat.DirectionSale)

	first := f.pay(t, invoice, "400.00", date(time.March, 5))
	require.NotNil(t, first.Entry)
	assert.Equal(t, "TVAI", first.Entry.JournalSeries)
	assert.Equal(t, int64(1), first.Entry.JournalNumber)
	require.Len(t, first.Entry.Lines, 2)
	assert.Equal(t, "4428", first.Entry.Lines[0].AccountCode)
	assert.Equal(t, "63.87", first.Entry.Lines[0].Debit.StringFixed(2))
	assert.Equal(t, "4427", first.Entry.Lines[1].AccountCode)
	assert.Equal(t, "63.87", first.Entry.Lines[1].Credit.StringFixed(2))
	assert.Equal(t, ledger.InvoiceRef(invoice), first.Entry.Source)

	f.pay(t, invoice, "400.00", date(time.April, 5))
	last := f.pay(t, invoice, "390.00", date(time.May, 5))
	assert.True(t, last.Transfer.Final)
	assert.Equal(t, "62.27", last.Transfer.Amount.StringFixed(2))

	link, err := f.engine.GetLink(ctx, invoice)
	require.NoError(t, err)
	assert.Equal(t, "190.00", link.CumulativeTransferred.StringFixed(2))
	assert.Equal(t, "1190.00", link.CumulativePaid.StringFixed(2))

	transfers, err := f.engine.ListTransfers(ctx, invoice)
	require.NoError(t, err)
	require.Len(t, transfers, 3)
	assert.Equal(t, "63.86", transfers[1].Amount.StringFixed(2))
	assert.Equal(t, date(time.April, 5), transfers[1].PostingDate)

	totals, err := f.ledger.Totals(ctx, ledger.TotalsFilter{CompanyID: f.company, AccountPrefix: "4428"})
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, "190.00", totals[0].Debit.StringFixed(2))

	// paying after completion changes nothing
	after := f.pay(t, invoice, "10.00", date(time.June, 1))
	assert.Nil(t, after.Transfer)
	assert.Len(t, mustTransfers(t, f, invoice), 3)

	var vatEvents []events.Message
	for _, m := range f.store.Outbox().Messages() {
		if m.EventType == events.TypeVatTransferred {
			vatEvents = append(vatEvents, m)
		}
	}
	require.Len(t, vatEvents, 3)
	var payload vat.Transferred
	require.NoError(t, json.Unmarshal(vatEvents[2].Payload, &payload))
	assert.Equal(t, "62.27", payload.Amount)
	assert.Equal(t, "190.00", payload.CumulativeTransferred)
	assert.True(t, payload.Final)
}

func TestOnPayment_PurchaseCreditsDeductible(t *testing.T) {
	f := newFixture(t)
	invoice := f.register(t, vat.DirectionPurchase)

	res := f.pay(t, invoice, "1190.00", date(time.March, 5))
	require.NotNil(t, res.Entry)
	assert.Equal(t, "4426", res.Entry.Lines[1].AccountCode)
	assert.Equal(t, "190.00", res.Transfer.Amount.StringFixed(2))
	assert.True(t, res.Transfer.Final)
}

func TestOnPayment_ClosedPeriodRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice := f.register(t, vat.DirectionSale)

	march, err := f.guard.AcquireForPosting(ctx, f.company, date(time.March, 1))
	require.NoError(t, err)
	_, err = f.guard.Close(ctx, f.company, march.ID, periods.StatusHardClose)
	require.NoError(t, err)

	_, err = f.engine.OnPayment(ctx, invoice, types.MustMoney("400.00"), date(time.March, 5))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodePeriodClosed))

	link, err := f.engine.GetLink(ctx, invoice)
	require.NoError(t, err)
	assert.True(t, link.CumulativePaid.IsZero())
	assert.True(t, link.CumulativeTransferred.IsZero())
	assert.Empty(t, mustTransfers(t, f, invoice))

	lines, err := f.ledger.ListLines(ctx, ledger.LineFilter{CompanyID: f.company})
	require.NoError(t, err)
	assert.Empty(t, lines)

	// the same payment dated into an open period goes through
	res := f.pay(t, invoice, "400.00", date(time.April, 2))
	assert.Equal(t, "63.87", res.Transfer.Amount.StringFixed(2))
}

func TestOnPayment_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice := f.register(t, vat.DirectionSale)

	_, err := f.engine.OnPayment(ctx, invoice, types.Zero(), date(time.March, 5))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.engine.OnPayment(ctx, invoice, types.MustMoney("1"), time.Time{})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.engine.OnPayment(ctx, id.New(), types.MustMoney("1"), date(time.March, 5))
	assert.True(t, apperror.IsNotFound(err))
}

func mustTransfers(t *testing.T, f *fixture, invoice id.ID) []vat.Transfer {
	t.Helper()
	out, err := f.engine.ListTransfers(context.Background(), invoice)
	require.NoError(t, err)
	return out
}
