package ledger

import (
	"context"
	"fmt"
	"strings"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/types"
	"contabil/internal/domain/periods"
)

// prepare copies the caller's entry, fills defaults and numbers the lines
// 1..N in the order given. It checks the shape of every line but not the
// balance or the accounts.
func (s *Service) prepare(entry Entry, lines []Line) (*Entry, error) {
	if id.IsNil(entry.CompanyID) {
		return nil, apperror.NewValidation("company_id is required")
	}
	if entry.PostingDate.IsZero() {
		return nil, apperror.NewValidation("posting date is required")
	}
	if err := entry.Source.Validate(); err != nil {
		return nil, err
	}
	if len(lines) < 2 {
		return nil, apperror.NewValidation("an entry needs at least two lines").
			WithDetail("lines", len(lines))
	}

	e := entry
	if id.IsNil(e.ID) {
		e.ID = id.New()
	}
	e.PostingDate = periods.DateOnly(e.PostingDate)
	e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))
	if e.Currency == "" {
		e.Currency = s.cfg.BaseCurrency
	}
	if e.JournalSeries == "" {
		e.JournalSeries = s.cfg.JournalSeries
	}
	e.JournalNumber = 0
	e.PeriodID = nil
	e.ReversalOf = nil // set only by ReverseEntry
	e.ReversedBy = nil
	e.NeedsReview = false

	e.Lines = make([]Line, len(lines))
	for i, l := range lines {
		n := i + 1
		l.ID = id.New()
		l.EntryID = e.ID
		l.LineNumber = n
		l.CompanyID = e.CompanyID
		l.PostingDate = e.PostingDate
		l.AccountCode = strings.TrimSpace(l.AccountCode)
		l.Currency = strings.ToUpper(strings.TrimSpace(l.Currency))
		if l.Currency == "" {
			l.Currency = e.Currency
		}
		l.Reconciled = false
		l.ReconciliationID = nil
		l.ReconciledAt = nil

		if err := s.checkLineShape(l); err != nil {
			return nil, err
		}
		e.Lines[i] = l
	}
	return &e, nil
}

func (s *Service) checkLineShape(l Line) error {
	lineErr := func(msg string) error {
		return apperror.NewValidation(fmt.Sprintf("line %d: %s", l.LineNumber, msg)).
			WithDetail("line_number", l.LineNumber).
			WithDetail("account_code", l.AccountCode)
	}

	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return lineErr("amounts must not be negative")
	}
	if l.Debit.IsZero() == l.Credit.IsZero() {
		return lineErr("exactly one of debit and credit must be non-zero")
	}
	if !types.FitsPrecision(l.Debit, types.LedgerPrecision) || !types.FitsPrecision(l.Credit, types.LedgerPrecision) {
		return lineErr(fmt.Sprintf("amounts allow at most %d decimal places", types.LedgerPrecision))
	}

	if l.Currency != s.cfg.BaseCurrency {
		if l.OriginalAmount == nil || !l.OriginalAmount.IsPositive() {
			return lineErr(fmt.Sprintf("original amount is required for currency %s", l.Currency))
		}
		if l.ExchangeRate == nil || !l.ExchangeRate.IsPositive() {
			return lineErr(fmt.Sprintf("exchange rate is required for currency %s", l.Currency))
		}
	} else if l.OriginalAmount != nil || l.ExchangeRate != nil {
		return lineErr("original amount and exchange rate apply only to foreign currency lines")
	}

	if l.VAT != nil {
		if strings.TrimSpace(l.VAT.Code) == "" {
			return lineErr("VAT code is required when VAT is set")
		}
		if l.VAT.Rate.IsNegative() || l.VAT.Amount.IsNegative() {
			return lineErr("VAT rate and amount must not be negative")
		}
	}

	if l.Partner != nil {
		if l.Partner.Kind != PartnerCustomer && l.Partner.Kind != PartnerSupplier {
			return lineErr(fmt.Sprintf("unknown partner kind %q", l.Partner.Kind))
		}
		if id.IsNil(l.Partner.ID) {
			return lineErr("partner id is required")
		}
	}

	if err := l.Source.Validate(); err != nil {
		return lineErr(err.Error())
	}
	return nil
}

// validateForPosting runs the checks that gate the posted state: balance,
// accounts and source documents. Nothing is written before they pass.
func (s *Service) validateForPosting(ctx context.Context, e *Entry) error {
	debit, credit := e.Totals()
	if !types.SumEqual(debit, credit) {
		return apperror.NewUnbalancedEntry(
			types.Format(debit, types.LedgerPrecision),
			types.Format(credit, types.LedgerPrecision),
		).WithDetail("entry_id", e.ID)
	}

	for _, l := range e.Lines {
		if _, err := s.chart.Resolve(ctx, e.CompanyID, l.AccountCode); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("line_number", l.LineNumber).WithDetail("entry_id", e.ID)
			}
			return fmt.Errorf("resolve account %s: %w", l.AccountCode, err)
		}
	}

	return s.validateSources(ctx, e)
}

func (s *Service) validateSources(ctx context.Context, e *Entry) error {
	if s.sources == nil {
		return nil
	}
	refs := []SourceRef{e.Source}
	for _, l := range e.Lines {
		refs = append(refs, l.Source)
	}

	seen := make(map[SourceRef]bool, len(refs))
	for _, ref := range refs {
		if ref.IsZero() || seen[ref] {
			continue
		}
		seen[ref] = true
		ok, err := s.sources.Exists(ctx, e.CompanyID, ref)
		if err != nil {
			return fmt.Errorf("check source %s: %w", ref, err)
		}
		if !ok {
			return apperror.NewValidation(fmt.Sprintf("source document %s does not exist", ref)).
				WithDetail("source_kind", ref.Kind).
				WithDetail("source_id", ref.ID)
		}
	}
	return nil
}
