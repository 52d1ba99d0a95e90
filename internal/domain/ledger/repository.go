package ledger

import (
	"context"
	"time"

	"contabil/internal/core/id"
	"contabil/internal/core/types"
)

// LineFilter selects ledger lines. Only entries in the ledger (posted or
// reversed) are returned.
type LineFilter struct {
	CompanyID   id.ID
	AccountCode string
	// IncludeSubaccounts matches every code starting with AccountCode
	// (411 matches 4111 and 4111.00023). Otherwise the code matches itself
	// and its analytic accounts.
	IncludeSubaccounts bool
	From               *time.Time
	To                 *time.Time
	UnreconciledOnly   bool
	Limit              int
	Offset             int
}

// GroupBy selects the aggregation key of Totals.
type GroupBy string

const (
	GroupByAccount          GroupBy = "account"
	GroupByAccountDimension GroupBy = "account_dimension"
)

// TotalsFilter selects the lines aggregated by Totals.
type TotalsFilter struct {
	CompanyID     id.ID
	AccountPrefix string
	From          *time.Time
	To            *time.Time
	GroupBy       GroupBy
}

// Total is the debit/credit turnover of one account (and dimension set).
type Total struct {
	AccountCode string
	Dimensions  Dimensions
	Debit       types.Money
	Credit      types.Money
}

// Net returns debit minus credit.
func (t Total) Net() types.Money {
	return t.Debit.Sub(t.Credit)
}

// Repository persists entries and lines.
type Repository interface {
	// Insert writes the entry header and all its lines.
	Insert(ctx context.Context, entry *Entry) error
	// Get returns an entry with its lines.
	Get(ctx context.Context, entryID id.ID) (*Entry, error)
	// GetForUpdate is Get with the entry row locked.
	GetForUpdate(ctx context.Context, entryID id.ID) (*Entry, error)
	// MarkPosted moves a draft to posted with its journal number and period.
	MarkPosted(ctx context.Context, entry *Entry) error
	// MarkReversed sets status reversed and the link to the reversal entry.
	MarkReversed(ctx context.Context, entryID, reversalID id.ID, by string, at time.Time) error

	// GetLinesForUpdate returns lines by id, locked, with EntryStatus set.
	GetLinesForUpdate(ctx context.Context, lineIDs []id.ID) ([]Line, error)
	// SetReconciliation sets or clears (nil group) the reconciliation of lines.
	SetReconciliation(ctx context.Context, lineIDs []id.ID, reconciliationID *id.ID, at *time.Time) error
	// LinesByReconciliation returns the lines of a reconciliation group.
	LinesByReconciliation(ctx context.Context, companyID, reconciliationID id.ID) ([]Line, error)

	ListLines(ctx context.Context, filter LineFilter) ([]Line, error)
	Totals(ctx context.Context, filter TotalsFilter) ([]Total, error)
	CountEntriesInPeriod(ctx context.Context, periodID id.ID) (int64, error)
}
