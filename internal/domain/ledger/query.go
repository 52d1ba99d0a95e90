package ledger

import (
	"context"
	"sort"
	"time"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/tx"
	"contabil/internal/core/types"
	"contabil/internal/domain/accounts"
)

// TrialBalanceRow is one account of a trial balance.
type TrialBalanceRow struct {
	AccountCode   string
	Function      accounts.Function
	Debit         types.Money
	Credit        types.Money
	ClosingDebit  types.Money
	ClosingCredit types.Money
	// Abnormal flags an asset with a credit balance or a liability with a
	// debit balance.
	Abnormal bool
}

// read runs fn in a read-only transaction when the manager supports it.
func (s *Service) read(ctx context.Context, fn func(ctx context.Context) error) error {
	if ro, ok := s.txManager.(tx.ReadOnlyManager); ok && !s.txManager.InTransaction(ctx) {
		return ro.ReadOnly(ctx, fn)
	}
	return fn(ctx)
}

// GetEntry returns an entry with its lines.
func (s *Service) GetEntry(ctx context.Context, companyID, entryID id.ID) (*Entry, error) {
	var e *Entry
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.repo.Get(ctx, entryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if e.CompanyID != companyID {
		return nil, apperror.NewNotFound("ledger entry", entryID)
	}
	return e, nil
}

// ListLines returns ledger lines of posted and reversed entries.
func (s *Service) ListLines(ctx context.Context, filter LineFilter) ([]Line, error) {
	if id.IsNil(filter.CompanyID) {
		return nil, apperror.NewValidation("company_id is required")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperror.NewValidation("date range end is before its start")
	}
	var lines []Line
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		lines, err = s.repo.ListLines(ctx, filter)
		return err
	})
	return lines, err
}

// ListUnreconciled returns the open items of an account and its analytics.
func (s *Service) ListUnreconciled(ctx context.Context, companyID id.ID, accountCode string) ([]Line, error) {
	if accountCode == "" {
		return nil, apperror.NewValidation("account code is required")
	}
	return s.ListLines(ctx, LineFilter{
		CompanyID:        companyID,
		AccountCode:      accountCode,
		UnreconciledOnly: true,
	})
}

// Totals aggregates debit and credit turnover. Drafts never count.
func (s *Service) Totals(ctx context.Context, filter TotalsFilter) ([]Total, error) {
	if id.IsNil(filter.CompanyID) {
		return nil, apperror.NewValidation("company_id is required")
	}
	switch filter.GroupBy {
	case "":
		filter.GroupBy = GroupByAccount
	case GroupByAccount, GroupByAccountDimension:
	default:
		return nil, apperror.NewValidation("unknown grouping " + string(filter.GroupBy))
	}
	var totals []Total
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		totals, err = s.repo.Totals(ctx, filter)
		return err
	})
	return totals, err
}

// TrialBalance returns per-account turnover and closing balance for the
// given date range, sorted by account code.
func (s *Service) TrialBalance(ctx context.Context, companyID id.ID, from, to *time.Time) ([]TrialBalanceRow, error) {
	totals, err := s.Totals(ctx, TotalsFilter{CompanyID: companyID, From: from, To: to, GroupBy: GroupByAccount})
	if err != nil {
		return nil, err
	}

	rows := make([]TrialBalanceRow, 0, len(totals))
	for _, t := range totals {
		row := TrialBalanceRow{
			AccountCode:   t.AccountCode,
			Debit:         t.Debit,
			Credit:        t.Credit,
			ClosingDebit:  types.Zero(),
			ClosingCredit: types.Zero(),
		}
		if acc, err := s.chart.Resolve(ctx, companyID, t.AccountCode); err == nil {
			row.Function = acc.Function
		} else if code, perr := accounts.ParseCode(t.AccountCode); perr == nil {
			row.Function = accounts.DefaultFunction(code.Class)
		}

		net := t.Net()
		if net.IsNegative() {
			row.ClosingCredit = net.Neg()
		} else {
			row.ClosingDebit = net
		}
		row.Abnormal = (row.Function == accounts.FunctionActive && net.IsNegative()) ||
			(row.Function == accounts.FunctionPassive && net.IsPositive())
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].AccountCode < rows[j].AccountCode })
	return rows, nil
}

// CountEntriesInPeriod reports how many entries reference periodID.
func (s *Service) CountEntriesInPeriod(ctx context.Context, periodID id.ID) (int64, error) {
	return s.repo.CountEntriesInPeriod(ctx, periodID)
}
