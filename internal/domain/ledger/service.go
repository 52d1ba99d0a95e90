package ledger

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"contabil/internal/core/apperror"
	appctx "contabil/internal/core/context"
	"contabil/internal/core/id"
	"contabil/internal/core/numerator"
	"contabil/internal/core/retry"
	"contabil/internal/core/tx"
	"contabil/internal/core/types"
	"contabil/internal/domain/accounts"
	"contabil/internal/domain/audit"
	"contabil/internal/domain/events"
	"contabil/internal/domain/periods"
	"contabil/pkg/logger"
)

var tracer = otel.Tracer("contabil/ledger")

// PeriodGuard admits a posting date. The returned period stays share-locked
// until the caller's transaction ends.
type PeriodGuard interface {
	AcquireForPosting(ctx context.Context, companyID id.ID, date time.Time) (*periods.Period, error)
}

// SourceValidator checks that referenced source documents exist.
type SourceValidator interface {
	Exists(ctx context.Context, companyID id.ID, ref SourceRef) (bool, error)
}

// Config holds ledger settings.
type Config struct {
	BaseCurrency  string
	JournalSeries string
}

// DefaultConfig returns RON ledgers journaled under series NC.
func DefaultConfig() Config {
	return Config{BaseCurrency: "RON", JournalSeries: "NC"}
}

// Dependencies wires the ledger service. Sources, Audit and Events are optional.
type Dependencies struct {
	Repo      Repository
	Chart     accounts.Chart
	Guard     PeriodGuard
	Numbers   numerator.Allocator
	TxManager tx.Manager
	Audit     audit.Recorder
	Events    events.Publisher
	Sources   SourceValidator
	Retry     retry.Policy
}

// Service is the ledger store.
type Service struct {
	repo      Repository
	chart     accounts.Chart
	guard     PeriodGuard
	numbers   numerator.Allocator
	txManager tx.Manager
	audit     audit.Recorder
	events    events.Publisher
	sources   SourceValidator
	retry     retry.Policy
	cfg       Config
}

// NewService creates the ledger service.
func NewService(deps Dependencies, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = def.BaseCurrency
	}
	if cfg.JournalSeries == "" {
		cfg.JournalSeries = def.JournalSeries
	}
	if deps.Audit == nil {
		deps.Audit = audit.NopRecorder{}
	}
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	return &Service{
		repo:      deps.Repo,
		chart:     deps.Chart,
		guard:     deps.Guard,
		numbers:   deps.Numbers,
		txManager: deps.TxManager,
		audit:     deps.Audit,
		events:    deps.Events,
		sources:   deps.Sources,
		retry:     deps.Retry,
		cfg:       cfg,
	}
}

// EntryPosted is the outbox payload of a posting.
type EntryPosted struct {
	EntryID       id.ID     `json:"entry_id"`
	CompanyID     id.ID     `json:"company_id"`
	JournalSeries string    `json:"journal_series"`
	JournalNumber int64     `json:"journal_number"`
	PostingDate   string    `json:"posting_date"`
	PeriodID      *id.ID    `json:"period_id,omitempty"`
	Source        string    `json:"source,omitempty"`
	Total         string    `json:"total"`
	NeedsReview   bool      `json:"needs_review,omitempty"`
	ReversalOf    *id.ID    `json:"reversal_of,omitempty"`
	PostedAt      time.Time `json:"posted_at"`
}

// EntryReversed is the outbox payload of a reversal.
type EntryReversed struct {
	EntryID    id.ID  `json:"entry_id"`
	ReversalID id.ID  `json:"reversal_id"`
	CompanyID  id.ID  `json:"company_id"`
	ActorID    string `json:"actor_id"`
}

// PostEntry validates and records a balanced entry. Either the whole entry
// with all its lines is stored or nothing is.
func (s *Service) PostEntry(ctx context.Context, entry Entry, lines []Line) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "ledger.PostEntry",
		trace.WithAttributes(attribute.String("company.id", entry.CompanyID.String())))
	defer span.End()

	e, err := s.prepare(entry, lines)
	if err != nil {
		return nil, err
	}
	if err := s.validateForPosting(ctx, e); err != nil {
		span.RecordError(err)
		return nil, err
	}

	err = retry.InTransaction(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		if err := s.assignPeriodAndNumber(ctx, e); err != nil {
			return err
		}
		now := time.Now().UTC()
		e.Status = StatusPosted
		e.CreatedAt, e.UpdatedAt, e.PostedAt = now, now, &now
		audit.StampCreated(ctx, &e.CreatedBy, &e.UpdatedBy)
		e.setLineStatus()

		if err := s.repo.Insert(ctx, e); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		return s.afterPost(ctx, e)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("entry.journal_number", e.JournalNumber))
	logger.Info(ctx, "ledger entry posted",
		"entry_id", e.ID,
		"journal", fmt.Sprintf("%s-%d", e.JournalSeries, e.JournalNumber),
		"lines", len(e.Lines),
		"needs_review", e.NeedsReview,
	)
	return e, nil
}

// SaveDraft stores an entry without posting it. Drafts take no journal
// number and no period lock, and never count in balances. Line shape and
// accounts are checked; balance is checked on PostDraft.
func (s *Service) SaveDraft(ctx context.Context, entry Entry, lines []Line) (*Entry, error) {
	e, err := s.prepare(entry, lines)
	if err != nil {
		return nil, err
	}
	for _, l := range e.Lines {
		if _, err := s.chart.Resolve(ctx, e.CompanyID, l.AccountCode); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	e.Status = StatusDraft
	e.CreatedAt, e.UpdatedAt = now, now
	audit.StampCreated(ctx, &e.CreatedBy, &e.UpdatedBy)
	e.setLineStatus()

	err = retry.InTransaction(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		return s.repo.Insert(ctx, e)
	})
	if err != nil {
		return nil, fmt.Errorf("insert draft: %w", err)
	}
	logger.Debug(ctx, "ledger draft saved", "entry_id", e.ID)
	return e, nil
}

// PostDraft posts a previously saved draft under the same rules as PostEntry.
func (s *Service) PostDraft(ctx context.Context, companyID, entryID id.ID) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "ledger.PostDraft",
		trace.WithAttributes(attribute.String("entry.id", entryID.String())))
	defer span.End()

	var result *Entry
	err := retry.InTransaction(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		e, err := s.repo.GetForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if e.CompanyID != companyID {
			return apperror.NewNotFound("ledger entry", entryID)
		}
		if e.Status != StatusDraft {
			return apperror.NewConflict("entry is not a draft").
				WithDetail("entry_id", e.ID).
				WithDetail("status", e.Status)
		}
		if err := s.validateForPosting(ctx, e); err != nil {
			return err
		}
		if err := s.assignPeriodAndNumber(ctx, e); err != nil {
			return err
		}

		now := time.Now().UTC()
		e.Status = StatusPosted
		e.UpdatedAt, e.PostedAt = now, &now
		audit.StampCreated(ctx, nil, &e.UpdatedBy)
		e.setLineStatus()

		if err := s.repo.MarkPosted(ctx, e); err != nil {
			return fmt.Errorf("mark posted: %w", err)
		}
		if err := s.afterPost(ctx, e); err != nil {
			return err
		}
		result = e
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "ledger draft posted",
		"entry_id", result.ID,
		"journal", fmt.Sprintf("%s-%d", result.JournalSeries, result.JournalNumber),
	)
	return result, nil
}

// ReverseEntry posts a new entry with every line's debit and credit swapped
// and marks the original reversed. The original is never modified otherwise.
// A zero date posts the reversal on the original date.
func (s *Service) ReverseEntry(ctx context.Context, companyID, entryID id.ID, date time.Time) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "ledger.ReverseEntry",
		trace.WithAttributes(attribute.String("entry.id", entryID.String())))
	defer span.End()

	var result *Entry
	err := retry.InTransaction(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		orig, err := s.repo.GetForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if orig.CompanyID != companyID {
			return apperror.NewNotFound("ledger entry", entryID)
		}
		switch orig.Status {
		case StatusReversed:
			return apperror.NewEntryAlreadyReversed(orig.ID).WithDetail("reversed_by", orig.ReversedBy)
		case StatusDraft:
			return apperror.NewValidation("only posted entries can be reversed").
				WithDetail("entry_id", orig.ID)
		}
		if orig.ReversalOf != nil {
			return apperror.NewConflict("a reversal entry cannot be reversed").
				WithDetail("entry_id", orig.ID).
				WithDetail("reversal_of", *orig.ReversalOf)
		}

		rev := reversalOf(orig, date)
		if err := s.assignPeriodAndNumber(ctx, rev); err != nil {
			return err
		}
		now := time.Now().UTC()
		rev.CreatedAt, rev.UpdatedAt, rev.PostedAt = now, now, &now
		audit.StampCreated(ctx, &rev.CreatedBy, &rev.UpdatedBy)
		rev.setLineStatus()

		if err := s.repo.Insert(ctx, rev); err != nil {
			return fmt.Errorf("insert reversal: %w", err)
		}
		actor := appctx.GetActorID(ctx)
		if err := s.repo.MarkReversed(ctx, orig.ID, rev.ID, actor, now); err != nil {
			return fmt.Errorf("mark reversed: %w", err)
		}

		if err := s.audit.Record(ctx, audit.Stamp(ctx, audit.Record{
			CompanyID:  orig.CompanyID,
			EntityType: "ledger_entry",
			EntityID:   orig.ID,
			Action:     audit.ActionReverse,
			Changes: map[string]any{
				"reversal_id":     rev.ID,
				"reversal_number": rev.JournalNumber,
				"posting_date":    rev.PostingDate.Format(time.DateOnly),
			},
		})); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}
		if err := s.events.Publish(ctx, events.Event{
			AggregateType: events.AggregateLedgerEntry,
			AggregateID:   orig.ID,
			EventType:     events.TypeEntryReversed,
			Payload: EntryReversed{
				EntryID:    orig.ID,
				ReversalID: rev.ID,
				CompanyID:  orig.CompanyID,
				ActorID:    actor,
			},
		}); err != nil {
			return fmt.Errorf("publish event: %w", err)
		}
		if err := s.afterPost(ctx, rev); err != nil {
			return err
		}
		result = rev
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "ledger entry reversed",
		"entry_id", entryID,
		"reversal_id", result.ID,
		"journal", fmt.Sprintf("%s-%d", result.JournalSeries, result.JournalNumber),
	)
	return result, nil
}

func reversalOf(orig *Entry, date time.Time) *Entry {
	if date.IsZero() {
		date = orig.PostingDate
	}
	date = periods.DateOnly(date)

	origID := orig.ID
	rev := &Entry{
		ID:             id.New(),
		CompanyID:      orig.CompanyID,
		JournalSeries:  orig.JournalSeries,
		DocumentNumber: orig.DocumentNumber,
		PostingDate:    date,
		Source:         orig.Source,
		Currency:       orig.Currency,
		Description:    "Stornare: " + orig.Description,
		Status:         StatusPosted,
		ReversalOf:     &origID,
	}
	rev.Lines = make([]Line, len(orig.Lines))
	for i, l := range orig.Lines {
		l.ID = id.New()
		l.EntryID = rev.ID
		l.LineNumber = i + 1
		l.Debit, l.Credit = l.Credit, l.Debit
		l.PostingDate = date
		l.Reconciled = false
		l.ReconciliationID = nil
		l.ReconciledAt = nil
		rev.Lines[i] = l
	}
	return rev
}

// assignPeriodAndNumber admits the posting date and takes the next journal
// number. Both happen inside the posting transaction.
func (s *Service) assignPeriodAndNumber(ctx context.Context, e *Entry) error {
	p, err := s.guard.AcquireForPosting(ctx, e.CompanyID, e.PostingDate)
	if err != nil {
		return err
	}
	periodID := p.ID
	e.PeriodID = &periodID
	e.NeedsReview = p.Status == periods.StatusSoftClose

	n, err := s.numbers.Allocate(ctx, numerator.Key{
		CompanyID: e.CompanyID,
		Type:      numerator.CounterJournal,
		Series:    e.JournalSeries,
		Year:      e.PostingDate.Year(),
	})
	if err != nil {
		return err
	}
	e.JournalNumber = n
	return nil
}

func (s *Service) afterPost(ctx context.Context, e *Entry) error {
	if e.NeedsReview {
		logger.Warn(ctx, "entry posted into soft-closed period",
			"entry_id", e.ID,
			"period_id", e.PeriodID,
			"posting_date", e.PostingDate.Format(time.DateOnly),
		)
		if err := s.audit.Record(ctx, audit.Stamp(ctx, audit.Record{
			CompanyID:  e.CompanyID,
			EntityType: "ledger_entry",
			EntityID:   e.ID,
			Action:     audit.ActionPostIntoSoftClose,
			Changes: map[string]any{
				"period_id":      e.PeriodID,
				"journal_number": e.JournalNumber,
			},
		})); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}
	}

	debit, _ := e.Totals()
	payload := EntryPosted{
		EntryID:       e.ID,
		CompanyID:     e.CompanyID,
		JournalSeries: e.JournalSeries,
		JournalNumber: e.JournalNumber,
		PostingDate:   e.PostingDate.Format(time.DateOnly),
		PeriodID:      e.PeriodID,
		Source:        e.Source.String(),
		Total:         types.Format(debit, types.LedgerPrecision),
		NeedsReview:   e.NeedsReview,
		ReversalOf:    e.ReversalOf,
	}
	if e.PostedAt != nil {
		payload.PostedAt = *e.PostedAt
	}
	if err := s.events.Publish(ctx, events.Event{
		AggregateType: events.AggregateLedgerEntry,
		AggregateID:   e.ID,
		EventType:     events.TypeEntryPosted,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (e *Entry) setLineStatus() {
	for i := range e.Lines {
		e.Lines[i].EntryStatus = e.Status
		e.Lines[i].PostingDate = e.PostingDate
		e.Lines[i].CompanyID = e.CompanyID
		e.Lines[i].EntryID = e.ID
	}
}
