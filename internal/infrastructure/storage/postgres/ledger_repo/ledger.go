// Package ledger_repo stores ledger entries and lines in PostgreSQL.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/types"
	"contabil/internal/domain/ledger"
	"contabil/internal/infrastructure/storage/postgres"
)

const (
	entriesTable = "acc_ledger_entries"
	linesTable   = "acc_ledger_lines"
)

var (
	entryColumns = postgres.ExtractDBColumns[entryRow]()
	lineColumns  = postgres.ExtractDBColumns[lineRow]()
)

// ledgerStatuses are the entry statuses that count in balances.
var ledgerStatuses = []string{string(ledger.StatusPosted), string(ledger.StatusReversed)}

// Repo implements ledger.Repository.
type Repo struct {
	txm *postgres.TxManager
}

var _ ledger.Repository = (*Repo)(nil)

// New creates the ledger repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

// joinedLineColumns selects a line with its entry status and number.
func joinedLineColumns() []string {
	return append(prefixed("l", lineColumns), "e.status AS entry_status", "e.journal_number")
}

// Insert writes the header with one INSERT and the lines with COPY, both in
// the caller's transaction.
func (r *Repo) Insert(ctx context.Context, e *ledger.Entry) error {
	sql, args, err := builder().
		Insert(entriesTable).
		SetMap(postgres.StructToMap(toEntryRow(e))).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert entry: %w", err))
	}

	rows := make([]lineRow, len(e.Lines))
	for i, l := range e.Lines {
		rows[i] = toLineRow(l)
	}
	if _, err := postgres.CopyStructs(ctx, r.txm, linesTable, rows); err != nil {
		return postgres.MapError(err)
	}
	return nil
}

func (r *Repo) get(ctx context.Context, entryID id.ID, lock bool) (*ledger.Entry, error) {
	q := builder().Select(entryColumns...).From(entriesTable).Where(squirrel.Eq{"id": entryID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var row entryRow
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ledger entry", entryID)
		}
		return nil, postgres.MapError(fmt.Errorf("select entry: %w", err))
	}
	e := row.toDomain()

	sql, args, err = builder().
		Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"entry_id": entryID}).
		OrderBy("line_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select lines: %w", err)
	}
	var lines []lineRow
	if err := pgxscan.Select(ctx, querier, &lines, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("select lines: %w", err))
	}
	e.Lines = make([]ledger.Line, len(lines))
	for i, l := range lines {
		e.Lines[i] = l.toDomain(e.Status)
	}
	return &e, nil
}

// Get implements ledger.Repository.
func (r *Repo) Get(ctx context.Context, entryID id.ID) (*ledger.Entry, error) {
	return r.get(ctx, entryID, false)
}

// GetForUpdate implements ledger.Repository.
func (r *Repo) GetForUpdate(ctx context.Context, entryID id.ID) (*ledger.Entry, error) {
	return r.get(ctx, entryID, true)
}

// MarkPosted implements ledger.Repository. Only drafts are updated; a lost
// race surfaces as CONCURRENT_MODIFICATION.
func (r *Repo) MarkPosted(ctx context.Context, e *ledger.Entry) error {
	sql, args, err := builder().
		Update(entriesTable).
		SetMap(map[string]any{
			"status":         string(ledger.StatusPosted),
			"journal_number": e.JournalNumber,
			"journal_year":   e.PostingDate.Year(),
			"period_id":      e.PeriodID,
			"needs_review":   e.NeedsReview,
			"posted_at":      e.PostedAt,
			"updated_at":     e.UpdatedAt,
			"updated_by":     e.UpdatedBy,
		}).
		Where(squirrel.Eq{"id": e.ID, "status": string(ledger.StatusDraft)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return r.execOne(ctx, sql, args, e.ID)
}

// MarkReversed implements ledger.Repository.
func (r *Repo) MarkReversed(ctx context.Context, entryID, reversalID id.ID, by string, at time.Time) error {
	sql, args, err := builder().
		Update(entriesTable).
		SetMap(map[string]any{
			"status":      string(ledger.StatusReversed),
			"reversed_by": reversalID,
			"updated_at":  at,
			"updated_by":  by,
		}).
		Where(squirrel.Eq{"id": entryID, "status": string(ledger.StatusPosted)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return r.execOne(ctx, sql, args, entryID)
}

func (r *Repo) execOne(ctx context.Context, sql string, args []any, entryID id.ID) error {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update entry: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("ledger entry", entryID)
	}
	return nil
}

func (r *Repo) selectLines(ctx context.Context, q squirrel.SelectBuilder) ([]ledger.Line, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select lines: %w", err)
	}
	var rows []lineWithStatus
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("select lines: %w", err))
	}
	out := make([]ledger.Line, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain(ledger.Status(row.EntryStatus))
	}
	return out, nil
}

func linesJoined() squirrel.SelectBuilder {
	return builder().
		Select(joinedLineColumns()...).
		From(linesTable + " l").
		Join(entriesTable + " e ON e.id = l.entry_id")
}

// GetLinesForUpdate implements ledger.Repository.
func (r *Repo) GetLinesForUpdate(ctx context.Context, lineIDs []id.ID) ([]ledger.Line, error) {
	if len(lineIDs) == 0 {
		return nil, nil
	}
	return r.selectLines(ctx, linesJoined().
		Where(squirrel.Eq{"l.id": lineIDs}).
		OrderBy("l.id").
		Suffix("FOR UPDATE OF l"))
}

// SetReconciliation implements ledger.Repository.
func (r *Repo) SetReconciliation(ctx context.Context, lineIDs []id.ID, reconciliationID *id.ID, at *time.Time) error {
	if len(lineIDs) == 0 {
		return nil
	}
	sql, args, err := builder().
		Update(linesTable).
		SetMap(map[string]any{
			"reconciled":        reconciliationID != nil,
			"reconciliation_id": reconciliationID,
			"reconciled_at":     at,
		}).
		Where(squirrel.Eq{"id": lineIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update reconciliation: %w", err))
	}
	if tag.RowsAffected() != int64(len(lineIDs)) {
		return apperror.NewConcurrentModification("ledger lines", reconciliationID)
	}
	return nil
}

// LinesByReconciliation implements ledger.Repository.
func (r *Repo) LinesByReconciliation(ctx context.Context, companyID, reconciliationID id.ID) ([]ledger.Line, error) {
	return r.selectLines(ctx, linesJoined().
		Where(squirrel.Eq{"l.company_id": companyID, "l.reconciliation_id": reconciliationID}).
		OrderBy("l.id").
		Suffix("FOR UPDATE OF l"))
}

func accountCondition(column, code string, subaccounts bool) squirrel.Sqlizer {
	if subaccounts {
		return squirrel.Like{column: code + "%"}
	}
	return squirrel.Or{
		squirrel.Eq{column: code},
		squirrel.Like{column: code + ".%"},
	}
}

// ListLines implements ledger.Repository.
func (r *Repo) ListLines(ctx context.Context, f ledger.LineFilter) ([]ledger.Line, error) {
	q := linesJoined().
		Where(squirrel.Eq{"l.company_id": f.CompanyID, "e.status": ledgerStatuses})
	if f.AccountCode != "" {
		q = q.Where(accountCondition("l.account_code", f.AccountCode, f.IncludeSubaccounts))
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"l.posting_date": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"l.posting_date": *f.To})
	}
	if f.UnreconciledOnly {
		q = q.Where(squirrel.Eq{"l.reconciled": false})
	}
	q = q.OrderBy("l.posting_date", "e.journal_number", "l.entry_id", "l.line_number")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return r.selectLines(ctx, q)
}

type totalRow struct {
	AccountCode  string      `db:"account_code"`
	DepartmentID *id.ID      `db:"department_id"`
	ProjectID    *id.ID      `db:"project_id"`
	CostCenterID *id.ID      `db:"cost_center_id"`
	Debit        types.Money `db:"debit"`
	Credit       types.Money `db:"credit"`
}

// Totals implements ledger.Repository.
func (r *Repo) Totals(ctx context.Context, f ledger.TotalsFilter) ([]ledger.Total, error) {
	groupCols := []string{"l.account_code"}
	selectCols := []string{"l.account_code"}
	if f.GroupBy == ledger.GroupByAccountDimension {
		dims := []string{"l.department_id", "l.project_id", "l.cost_center_id"}
		groupCols = append(groupCols, dims...)
		selectCols = append(selectCols, dims...)
	} else {
		selectCols = append(selectCols,
			"NULL::uuid AS department_id", "NULL::uuid AS project_id", "NULL::uuid AS cost_center_id")
	}
	selectCols = append(selectCols, "COALESCE(SUM(l.debit), 0) AS debit", "COALESCE(SUM(l.credit), 0) AS credit")

	q := builder().
		Select(selectCols...).
		From(linesTable + " l").
		Join(entriesTable + " e ON e.id = l.entry_id").
		Where(squirrel.Eq{"l.company_id": f.CompanyID, "e.status": ledgerStatuses})
	if f.AccountPrefix != "" {
		q = q.Where(squirrel.Like{"l.account_code": f.AccountPrefix + "%"})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"l.posting_date": *f.From})
	}
	if f.To != nil {
		q = q.Where(squirrel.LtOrEq{"l.posting_date": *f.To})
	}
	q = q.GroupBy(groupCols...).OrderBy(groupCols...)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build totals: %w", err)
	}
	var rows []totalRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("select totals: %w", err))
	}

	out := make([]ledger.Total, len(rows))
	for i, row := range rows {
		out[i] = ledger.Total{
			AccountCode: row.AccountCode,
			Dimensions: ledger.Dimensions{
				DepartmentID: row.DepartmentID,
				ProjectID:    row.ProjectID,
				CostCenterID: row.CostCenterID,
			},
			Debit:  row.Debit,
			Credit: row.Credit,
		}
	}
	return out, nil
}

// CountEntriesInPeriod implements ledger.Repository.
func (r *Repo) CountEntriesInPeriod(ctx context.Context, periodID id.ID) (int64, error) {
	sql, args, err := builder().
		Select("COUNT(*)").
		From(entriesTable).
		Where(squirrel.Eq{"period_id": periodID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int64
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &n, sql, args...); err != nil {
		return 0, postgres.MapError(fmt.Errorf("count entries: %w", err))
	}
	return n, nil
}
