package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/types"
	"contabil/internal/domain/ledger"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct{ s *Store }

var _ ledger.Repository = (*LedgerRepo)(nil)

// Insert implements ledger.Repository.
func (r *LedgerRepo) Insert(ctx context.Context, e *ledger.Entry) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.entries[e.ID]; ok {
			return apperror.NewDuplicate("ledger_entry", "id", e.ID.String())
		}
		if e.JournalNumber > 0 {
			for _, other := range st.entries {
				if other.CompanyID == e.CompanyID &&
					other.JournalSeries == e.JournalSeries &&
					other.JournalNumber == e.JournalNumber &&
					other.PostingDate.Year() == e.PostingDate.Year() {
					return apperror.NewDuplicate("ledger_entry", "journal_number",
						fmt.Sprintf("%s-%d", e.JournalSeries, e.JournalNumber))
				}
			}
		}

		header := *e
		header.Lines = nil
		st.entries[e.ID] = header

		ids := make([]id.ID, 0, len(e.Lines))
		for _, l := range e.Lines {
			if _, ok := st.lines[l.ID]; ok {
				return apperror.NewDuplicate("ledger_line", "id", l.ID.String())
			}
			st.lines[l.ID] = l
			ids = append(ids, l.ID)
		}
		st.linesByEntry[e.ID] = ids
		return nil
	})
}

// Get implements ledger.Repository.
func (r *LedgerRepo) Get(_ context.Context, entryID id.ID) (*ledger.Entry, error) {
	var (
		e  ledger.Entry
		ok bool
	)
	r.s.read(func(st *state) {
		e, ok = st.entries[entryID]
		if !ok {
			return
		}
		e.Lines = make([]ledger.Line, 0, len(st.linesByEntry[entryID]))
		for _, lid := range st.linesByEntry[entryID] {
			l := st.lines[lid]
			l.EntryStatus = e.Status
			e.Lines = append(e.Lines, l)
		}
	})
	if !ok {
		return nil, apperror.NewNotFound("ledger entry", entryID)
	}
	sort.Slice(e.Lines, func(i, j int) bool { return e.Lines[i].LineNumber < e.Lines[j].LineNumber })
	return &e, nil
}

// GetForUpdate implements ledger.Repository.
func (r *LedgerRepo) GetForUpdate(ctx context.Context, entryID id.ID) (*ledger.Entry, error) {
	return r.Get(ctx, entryID)
}

// MarkPosted implements ledger.Repository.
func (r *LedgerRepo) MarkPosted(ctx context.Context, e *ledger.Entry) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.entries[e.ID]
		if !ok {
			return apperror.NewNotFound("ledger entry", e.ID)
		}
		if cur.Status != ledger.StatusDraft {
			return apperror.NewConcurrentModification("ledger entry", e.ID)
		}
		cur.Status = ledger.StatusPosted
		cur.JournalNumber = e.JournalNumber
		cur.PeriodID = e.PeriodID
		cur.NeedsReview = e.NeedsReview
		cur.PostedAt = e.PostedAt
		cur.UpdatedAt = e.UpdatedAt
		cur.UpdatedBy = e.UpdatedBy
		st.entries[e.ID] = cur
		return nil
	})
}

// MarkReversed implements ledger.Repository.
func (r *LedgerRepo) MarkReversed(ctx context.Context, entryID, reversalID id.ID, by string, at time.Time) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.entries[entryID]
		if !ok {
			return apperror.NewNotFound("ledger entry", entryID)
		}
		if cur.Status != ledger.StatusPosted {
			return apperror.NewConcurrentModification("ledger entry", entryID)
		}
		cur.Status = ledger.StatusReversed
		cur.ReversedBy = id.Ptr(reversalID)
		cur.UpdatedAt = at
		cur.UpdatedBy = by
		st.entries[entryID] = cur
		return nil
	})
}

// GetLinesForUpdate implements ledger.Repository.
func (r *LedgerRepo) GetLinesForUpdate(_ context.Context, lineIDs []id.ID) ([]ledger.Line, error) {
	var out []ledger.Line
	r.s.read(func(st *state) {
		for _, lid := range lineIDs {
			l, ok := st.lines[lid]
			if !ok {
				continue
			}
			l.EntryStatus = st.entries[l.EntryID].Status
			out = append(out, l)
		}
	})
	return out, nil
}

// SetReconciliation implements ledger.Repository.
func (r *LedgerRepo) SetReconciliation(ctx context.Context, lineIDs []id.ID, reconciliationID *id.ID, at *time.Time) error {
	return r.s.write(ctx, func(st *state) error {
		for _, lid := range lineIDs {
			l, ok := st.lines[lid]
			if !ok {
				return apperror.NewNotFound("ledger line", lid)
			}
			l.Reconciled = reconciliationID != nil
			l.ReconciliationID = reconciliationID
			l.ReconciledAt = at
			st.lines[lid] = l
		}
		return nil
	})
}

// LinesByReconciliation implements ledger.Repository.
func (r *LedgerRepo) LinesByReconciliation(_ context.Context, companyID, reconciliationID id.ID) ([]ledger.Line, error) {
	var out []ledger.Line
	r.s.read(func(st *state) {
		for _, l := range st.lines {
			if l.CompanyID == companyID && l.ReconciliationID != nil && *l.ReconciliationID == reconciliationID {
				l.EntryStatus = st.entries[l.EntryID].Status
				out = append(out, l)
			}
		}
	})
	return out, nil
}

// ListLines implements ledger.Repository.
func (r *LedgerRepo) ListLines(_ context.Context, f ledger.LineFilter) ([]ledger.Line, error) {
	type row struct {
		line   ledger.Line
		number int64
	}
	var rows []row
	r.s.read(func(st *state) {
		for _, l := range st.lines {
			e := st.entries[l.EntryID]
			if l.CompanyID != f.CompanyID || !e.Status.InLedger() {
				continue
			}
			if f.AccountCode != "" && !matchAccount(l.AccountCode, f.AccountCode, f.IncludeSubaccounts) {
				continue
			}
			if !inRange(l.PostingDate, f.From, f.To) {
				continue
			}
			if f.UnreconciledOnly && l.Reconciled {
				continue
			}
			l.EntryStatus = e.Status
			rows = append(rows, row{line: l, number: e.JournalNumber})
		}
	})

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.line.PostingDate.Equal(b.line.PostingDate) {
			return a.line.PostingDate.Before(b.line.PostingDate)
		}
		if a.number != b.number {
			return a.number < b.number
		}
		if a.line.EntryID != b.line.EntryID {
			return a.line.EntryID.String() < b.line.EntryID.String()
		}
		return a.line.LineNumber < b.line.LineNumber
	})

	if f.Offset > 0 {
		if f.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[f.Offset:]
		}
	}
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}

	out := make([]ledger.Line, len(rows))
	for i, rw := range rows {
		out[i] = rw.line
	}
	return out, nil
}

// Totals implements ledger.Repository.
func (r *LedgerRepo) Totals(_ context.Context, f ledger.TotalsFilter) ([]ledger.Total, error) {
	type key struct {
		account string
		dims    string
	}
	acc := make(map[key]*ledger.Total)
	var order []key

	r.s.read(func(st *state) {
		for _, l := range st.lines {
			e := st.entries[l.EntryID]
			if l.CompanyID != f.CompanyID || !e.Status.InLedger() {
				continue
			}
			if f.AccountPrefix != "" && !strings.HasPrefix(l.AccountCode, f.AccountPrefix) {
				continue
			}
			if !inRange(l.PostingDate, f.From, f.To) {
				continue
			}

			k := key{account: l.AccountCode}
			var dims ledger.Dimensions
			if f.GroupBy == ledger.GroupByAccountDimension {
				dims = l.Dimensions
				k.dims = dimensionKey(dims)
			}
			t, ok := acc[k]
			if !ok {
				t = &ledger.Total{AccountCode: l.AccountCode, Dimensions: dims, Debit: types.Zero(), Credit: types.Zero()}
				acc[k] = t
				order = append(order, k)
			}
			t.Debit = t.Debit.Add(l.Debit)
			t.Credit = t.Credit.Add(l.Credit)
		}
	})

	sort.Slice(order, func(i, j int) bool {
		if order[i].account != order[j].account {
			return order[i].account < order[j].account
		}
		return order[i].dims < order[j].dims
	})
	out := make([]ledger.Total, len(order))
	for i, k := range order {
		out[i] = *acc[k]
	}
	return out, nil
}

// CountEntriesInPeriod implements ledger.Repository.
func (r *LedgerRepo) CountEntriesInPeriod(_ context.Context, periodID id.ID) (int64, error) {
	var n int64
	r.s.read(func(st *state) {
		for _, e := range st.entries {
			if e.PeriodID != nil && *e.PeriodID == periodID {
				n++
			}
		}
	})
	return n, nil
}

func matchAccount(code, filter string, subaccounts bool) bool {
	if subaccounts {
		return strings.HasPrefix(code, filter)
	}
	return code == filter || strings.HasPrefix(code, filter+".")
}

func inRange(d time.Time, from, to *time.Time) bool {
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}

func dimensionKey(d ledger.Dimensions) string {
	part := func(v *id.ID) string {
		if v == nil {
			return "-"
		}
		return v.String()
	}
	return part(d.DepartmentID) + "/" + part(d.ProjectID) + "/" + part(d.CostCenterID)
}
