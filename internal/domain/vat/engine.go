package vat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/retry"
	"contabil/internal/core/tx"
	"contabil/internal/core/types"
	"contabil/internal/domain/events"
	"contabil/internal/domain/ledger"
	"contabil/pkg/logger"
)

var tracer = otel.Tracer("contabil/vat")

// Poster records ledger entries. The ledger service implements it; it must
// join the transaction carried by ctx.
type Poster interface {
	PostEntry(ctx context.Context, entry ledger.Entry, lines []ledger.Line) (*ledger.Entry, error)
}

// Config holds the VAT accounts and rounding. Account codes are
// configuration, not law.
type Config struct {
	DeferredAccount   string
	CollectedAccount  string
	DeductibleAccount string
	RoundingPlaces    int32
	JournalSeries     string
	// BaseCurrency is the ledger currency. Transfers are posted in it, so
	// only invoices in this currency can be deferred.
	BaseCurrency      string
}

// DefaultConfig returns the Romanian defaults 4428, 4427 and 4426.
func DefaultConfig() Config {
	return Config{
		DeferredAccount:   "4428",
		CollectedAccount:  "4427",
		DeductibleAccount: "4426",
		RoundingPlaces:    2,
		JournalSeries:     "TVAI",
		BaseCurrency:      "RON",
	}
}

// DueAccount returns the account credited for a direction.
func (c Config) DueAccount(d Direction) string {
	if d == DirectionPurchase {
		return c.DeductibleAccount
	}
	return c.CollectedAccount
}

// Transferred is the outbox payload of a VAT transfer.
type Transferred struct {
	InvoiceID             id.ID     `json:"invoice_id"`
	CompanyID             id.ID     `json:"company_id"`
	EntryID               id.ID     `json:"entry_id"`
	Direction             Direction `json:"direction"`
	Amount                string    `json:"amount"`
	CumulativeTransferred string    `json:"cumulative_transferred"`
	CumulativePaid        string    `json:"cumulative_paid"`
	Final                 bool      `json:"final"`
	PostingDate           string    `json:"posting_date"`
}

// Result describes what one payment did.
type Result struct {
	Link        Link
	Computation Computation
	// Entry and Transfer are nil when nothing was transferred.
	Entry    *ledger.Entry
	Transfer *Transfer
}

// Engine is the VAT deferral engine.
type Engine struct {
	repo      Repository
	poster    Poster
	txManager tx.Manager
	events    events.Publisher
	retry     retry.Policy
	cfg       Config
}

// NewEngine creates the engine.
func NewEngine(repo Repository, poster Poster, txManager tx.Manager, publisher events.Publisher, policy retry.Policy, cfg Config) *Engine {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	def := DefaultConfig()
	if cfg.DeferredAccount == "" {
		cfg.DeferredAccount = def.DeferredAccount
	}
	if cfg.CollectedAccount == "" {
		cfg.CollectedAccount = def.CollectedAccount
	}
	if cfg.DeductibleAccount == "" {
		cfg.DeductibleAccount = def.DeductibleAccount
	}
	if cfg.RoundingPlaces <= 0 {
		cfg.RoundingPlaces = def.RoundingPlaces
	}
	if cfg.JournalSeries == "" {
		cfg.JournalSeries = def.JournalSeries
	}
	cfg.BaseCurrency = strings.ToUpper(strings.TrimSpace(cfg.BaseCurrency))
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = def.BaseCurrency
	}
	return &Engine{
		repo:      repo,
		poster:    poster,
		txManager: txManager,
		events:    publisher,
		retry:     policy,
		cfg:       cfg,
	}
}

// RegisterInvoice starts deferral tracking for a cash-basis invoice.
func (e *Engine) RegisterInvoice(ctx context.Context, link Link) (*Link, error) {
	switch {
	case id.IsNil(link.InvoiceID):
		return nil, apperror.NewValidation("invoice id is required")
	case id.IsNil(link.CompanyID):
		return nil, apperror.NewValidation("company_id is required")
	case !link.Direction.Valid():
		return nil, apperror.NewValidation(fmt.Sprintf("unknown direction %q", link.Direction))
	case !link.GrossTotal.IsPositive():
		return nil, apperror.NewValidation("gross total must be positive")
	case link.VatTotal.IsNegative() || link.VatTotal.GreaterThan(link.GrossTotal):
		return nil, apperror.NewValidation("VAT total must be between zero and the gross total")
	}

	l := link
	l.Currency = strings.ToUpper(strings.TrimSpace(l.Currency))
	if l.Currency == "" {
		l.Currency = e.cfg.BaseCurrency
	}
	if l.Currency != e.cfg.BaseCurrency {
		return nil, apperror.NewValidation(fmt.Sprintf("deferred VAT is tracked in %s only", e.cfg.BaseCurrency)).
			WithDetail("invoice_id", l.InvoiceID).
			WithDetail("currency", l.Currency)
	}

	now := time.Now().UTC()
	l.CumulativePaid = types.Zero()
	l.CumulativeTransferred = types.Zero()
	l.CreatedAt, l.UpdatedAt = now, now

	err := retry.InTransaction(ctx, e.txManager, e.retry, func(ctx context.Context) error {
		return e.repo.Create(ctx, &l)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "deferred VAT registered",
		"invoice_id", l.InvoiceID,
		"direction", l.Direction,
		"vat_total", types.Format(l.VatTotal, e.cfg.RoundingPlaces),
	)
	return &l, nil
}

// GetLink returns the deferral state of an invoice.
func (e *Engine) GetLink(ctx context.Context, invoiceID id.ID) (*Link, error) {
	return e.repo.Get(ctx, invoiceID)
}

// ListTransfers returns the transfer history of an invoice, oldest first.
func (e *Engine) ListTransfers(ctx context.Context, invoiceID id.ID) ([]Transfer, error) {
	return e.repo.ListTransfers(ctx, invoiceID)
}

// OnPayment recognizes the VAT share of a payment. The link update, the
// transfer entry and the history row commit together; when posting fails
// (for example on a closed period) none of them is kept.
func (e *Engine) OnPayment(ctx context.Context, invoiceID id.ID, amount types.Money, paymentDate time.Time) (*Result, error) {
	ctx, span := tracer.Start(ctx, "vat.OnPayment",
		trace.WithAttributes(
			attribute.String("invoice.id", invoiceID.String()),
			attribute.String("payment.amount", amount.String()),
		))
	defer span.End()

	if !amount.IsPositive() {
		return nil, apperror.NewValidation("payment amount must be positive")
	}
	if paymentDate.IsZero() {
		return nil, apperror.NewValidation("payment date is required")
	}

	var result *Result
	err := retry.InTransaction(ctx, e.txManager, e.retry, func(ctx context.Context) error {
		link, err := e.repo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		comp := Compute(*link, amount, e.cfg.RoundingPlaces)
		res := &Result{Computation: comp}
		if !comp.Applied.IsPositive() {
			res.Link = *link
			result = res
			return nil
		}
		link.CumulativePaid = comp.CumulativePaid

		if comp.Transfer.IsPositive() {
			entry, err := e.postTransfer(ctx, link, comp.Transfer, paymentDate)
			if err != nil {
				return err
			}
			link.CumulativeTransferred = link.CumulativeTransferred.Add(comp.Transfer)

			t := &Transfer{
				ID:             id.New(),
				InvoiceID:      link.InvoiceID,
				CompanyID:      link.CompanyID,
				EntryID:        entry.ID,
				PaymentAmount:  comp.Applied,
				CumulativePaid: comp.CumulativePaid,
				Amount:         comp.Transfer,
				Final:          comp.Final,
				PostingDate:    entry.PostingDate,
				CreatedAt:      time.Now().UTC(),
			}
			if err := e.repo.InsertTransfer(ctx, t); err != nil {
				return fmt.Errorf("insert transfer: %w", err)
			}
			if err := e.publish(ctx, link, t); err != nil {
				return err
			}
			res.Entry, res.Transfer = entry, t
		}

		link.UpdatedAt = time.Now().UTC()
		if err := e.repo.UpdateProgress(ctx, link); err != nil {
			return fmt.Errorf("update deferred VAT link: %w", err)
		}
		res.Link = *link
		result = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if result.Transfer == nil {
		logger.Debug(ctx, "payment produced no VAT transfer",
			"invoice_id", invoiceID,
			"applied", result.Computation.Applied.String(),
		)
		return result, nil
	}
	logger.Info(ctx, "VAT transferred",
		"invoice_id", invoiceID,
		"entry_id", result.Transfer.EntryID,
		"amount", types.Format(result.Transfer.Amount, e.cfg.RoundingPlaces),
		"cumulative", types.Format(result.Link.CumulativeTransferred, e.cfg.RoundingPlaces),
		"final", result.Transfer.Final,
	)
	return result, nil
}

func (e *Engine) postTransfer(ctx context.Context, link *Link, amount types.Money, date time.Time) (*ledger.Entry, error) {
	src := ledger.SourceRef{Kind: ledger.SourceInvoice, ID: link.InvoiceID}
	entry := ledger.Entry{
		CompanyID:     link.CompanyID,
		JournalSeries: e.cfg.JournalSeries,
		PostingDate:   date,
		Source:        src,
		Currency:      link.Currency,
		Description:   fmt.Sprintf("TVA la incasare %s", link.Direction),
	}
	lines := []ledger.Line{
		{AccountCode: e.cfg.DeferredAccount, Debit: amount, Credit: types.Zero(), Source: src},
		{AccountCode: e.cfg.DueAccount(link.Direction), Debit: types.Zero(), Credit: amount, Source: src},
	}
	posted, err := e.poster.PostEntry(ctx, entry, lines)
	if err != nil {
		return nil, err
	}
	return posted, nil
}

func (e *Engine) publish(ctx context.Context, link *Link, t *Transfer) error {
	err := e.events.Publish(ctx, events.Event{
		AggregateType: events.AggregateDeferredVat,
		AggregateID:   link.InvoiceID,
		EventType:     events.TypeVatTransferred,
		Payload: Transferred{
			InvoiceID:             link.InvoiceID,
			CompanyID:             link.CompanyID,
			EntryID:               t.EntryID,
			Direction:             link.Direction,
			Amount:                types.Format(t.Amount, e.cfg.RoundingPlaces),
			CumulativeTransferred: types.Format(link.CumulativeTransferred, e.cfg.RoundingPlaces),
			CumulativePaid:        types.Format(link.CumulativePaid, e.cfg.RoundingPlaces),
			Final:                 t.Final,
			PostingDate:           t.PostingDate.Format(time.DateOnly),
		},
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
