package ledger_repo

import (
	"time"

	"contabil/internal/core/id"
	"contabil/internal/core/types"
	"contabil/internal/domain/ledger"
)

type entryRow struct {
	ID             id.ID      `db:"id"`
	CompanyID      id.ID      `db:"company_id"`
	JournalSeries  string     `db:"journal_series"`
	JournalNumber  int64      `db:"journal_number"`
	DocumentNumber string     `db:"document_number"`
	PostingDate    time.Time  `db:"posting_date"`
	JournalYear    int        `db:"journal_year"`
	PeriodID       *id.ID     `db:"period_id"`
	SourceKind     string     `db:"source_kind"`
	SourceID       *id.ID     `db:"source_id"`
	Currency       string     `db:"currency"`
	Description    string     `db:"description"`
	Status         string     `db:"status"`
	ReversalOf     *id.ID     `db:"reversal_of"`
	ReversedBy     *id.ID     `db:"reversed_by"`
	NeedsReview    bool       `db:"needs_review"`
	CreatedAt      time.Time  `db:"created_at"`
	CreatedBy      string     `db:"created_by"`
	UpdatedAt      time.Time  `db:"updated_at"`
	UpdatedBy      string     `db:"updated_by"`
	PostedAt       *time.Time `db:"posted_at"`
}

type lineRow struct {
	ID               id.ID        `db:"id"`
	EntryID          id.ID        `db:"entry_id"`
	LineNumber       int          `db:"line_number"`
	CompanyID        id.ID        `db:"company_id"`
	AccountCode      string       `db:"account_code"`
	Debit            types.Money  `db:"debit"`
	Credit           types.Money  `db:"credit"`
	Currency         string       `db:"currency"`
	OriginalAmount   *types.Money `db:"original_amount"`
	ExchangeRate     *types.Money `db:"exchange_rate"`
	DepartmentID     *id.ID       `db:"department_id"`
	ProjectID        *id.ID       `db:"project_id"`
	CostCenterID     *id.ID       `db:"cost_center_id"`
	VatCode          *string      `db:"vat_code"`
	VatRate          *types.Money `db:"vat_rate"`
	VatAmount        *types.Money `db:"vat_amount"`
	PartnerKind      *string      `db:"partner_kind"`
	PartnerID        *id.ID       `db:"partner_id"`
	PartnerDueDate   *time.Time   `db:"partner_due_date"`
	SourceKind       string       `db:"source_kind"`
	SourceID         *id.ID       `db:"source_id"`
	Description      string       `db:"description"`
	Reconciled       bool         `db:"reconciled"`
	ReconciliationID *id.ID       `db:"reconciliation_id"`
	ReconciledAt     *time.Time   `db:"reconciled_at"`
	PostingDate      time.Time    `db:"posting_date"`
}

// lineWithStatus is a line joined with its entry status.
type lineWithStatus struct {
	lineRow
	EntryStatus   string `db:"entry_status"`
	JournalNumber int64  `db:"journal_number"`
}

func sourceToRow(ref ledger.SourceRef) (string, *id.ID) {
	if ref.IsZero() {
		return "", nil
	}
	return string(ref.Kind), id.Ptr(ref.ID)
}

func sourceFromRow(kind string, sid *id.ID) ledger.SourceRef {
	if kind == "" || sid == nil {
		return ledger.SourceRef{}
	}
	return ledger.SourceRef{Kind: ledger.SourceKind(kind), ID: *sid}
}

func toEntryRow(e *ledger.Entry) entryRow {
	kind, sid := sourceToRow(e.Source)
	return entryRow{
		ID:             e.ID,
		CompanyID:      e.CompanyID,
		JournalSeries:  e.JournalSeries,
		JournalNumber:  e.JournalNumber,
		DocumentNumber: e.DocumentNumber,
		PostingDate:    e.PostingDate,
		JournalYear:    e.PostingDate.Year(),
		PeriodID:       e.PeriodID,
		SourceKind:     kind,
		SourceID:       sid,
		Currency:       e.Currency,
		Description:    e.Description,
		Status:         string(e.Status),
		ReversalOf:     e.ReversalOf,
		ReversedBy:     e.ReversedBy,
		NeedsReview:    e.NeedsReview,
		CreatedAt:      e.CreatedAt,
		CreatedBy:      e.CreatedBy,
		UpdatedAt:      e.UpdatedAt,
		UpdatedBy:      e.UpdatedBy,
		PostedAt:       e.PostedAt,
	}
}

func (row entryRow) toDomain() ledger.Entry {
	return ledger.Entry{
		ID:             row.ID,
		CompanyID:      row.CompanyID,
		JournalSeries:  row.JournalSeries,
		JournalNumber:  row.JournalNumber,
		DocumentNumber: row.DocumentNumber,
		PostingDate:    row.PostingDate.UTC(),
		PeriodID:       row.PeriodID,
		Source:         sourceFromRow(row.SourceKind, row.SourceID),
		Currency:       row.Currency,
		Description:    row.Description,
		Status:         ledger.Status(row.Status),
		ReversalOf:     row.ReversalOf,
		ReversedBy:     row.ReversedBy,
		NeedsReview:    row.NeedsReview,
		CreatedAt:      row.CreatedAt,
		CreatedBy:      row.CreatedBy,
		UpdatedAt:      row.UpdatedAt,
		UpdatedBy:      row.UpdatedBy,
		PostedAt:       row.PostedAt,
	}
}

func toLineRow(l ledger.Line) lineRow {
	kind, sid := sourceToRow(l.Source)
	row := lineRow{
		ID:               l.ID,
		EntryID:          l.EntryID,
		LineNumber:       l.LineNumber,
		CompanyID:        l.CompanyID,
		AccountCode:      l.AccountCode,
		Debit:            l.Debit,
		Credit:           l.Credit,
		Currency:         l.Currency,
		OriginalAmount:   l.OriginalAmount,
		ExchangeRate:     l.ExchangeRate,
		DepartmentID:     l.Dimensions.DepartmentID,
		ProjectID:        l.Dimensions.ProjectID,
		CostCenterID:     l.Dimensions.CostCenterID,
		SourceKind:       kind,
		SourceID:         sid,
		Description:      l.Description,
		Reconciled:       l.Reconciled,
		ReconciliationID: l.ReconciliationID,
		ReconciledAt:     l.ReconciledAt,
		PostingDate:      l.PostingDate,
	}
	if l.VAT != nil {
		code, rate, amount := l.VAT.Code, l.VAT.Rate, l.VAT.Amount
		row.VatCode, row.VatRate, row.VatAmount = &code, &rate, &amount
	}
	if l.Partner != nil {
		kind := string(l.Partner.Kind)
		pid := l.Partner.ID
		row.PartnerKind, row.PartnerID, row.PartnerDueDate = &kind, &pid, l.Partner.DueDate
	}
	return row
}

func (row lineRow) toDomain(status ledger.Status) ledger.Line {
	l := ledger.Line{
		ID:             row.ID,
		EntryID:        row.EntryID,
		LineNumber:     row.LineNumber,
		CompanyID:      row.CompanyID,
		AccountCode:    row.AccountCode,
		Debit:          row.Debit,
		Credit:         row.Credit,
		Currency:       row.Currency,
		OriginalAmount: row.OriginalAmount,
		ExchangeRate:   row.ExchangeRate,
		Dimensions: ledger.Dimensions{
			DepartmentID: row.DepartmentID,
			ProjectID:    row.ProjectID,
			CostCenterID: row.CostCenterID,
		},
		Source:           sourceFromRow(row.SourceKind, row.SourceID),
		Description:      row.Description,
		Reconciled:       row.Reconciled,
		ReconciliationID: row.ReconciliationID,
		ReconciledAt:     row.ReconciledAt,
		PostingDate:      row.PostingDate.UTC(),
		EntryStatus:      status,
	}
	if row.VatCode != nil {
		v := ledger.LineVAT{Code: *row.VatCode, Rate: types.Zero(), Amount: types.Zero()}
		if row.VatRate != nil {
			v.Rate = *row.VatRate
		}
		if row.VatAmount != nil {
			v.Amount = *row.VatAmount
		}
		l.VAT = &v
	}
	if row.PartnerKind != nil && row.PartnerID != nil {
		l.Partner = &ledger.PartnerRef{
			Kind:    ledger.PartnerKind(*row.PartnerKind),
			ID:      *row.PartnerID,
			DueDate: row.PartnerDueDate,
		}
	}
	return l
}
