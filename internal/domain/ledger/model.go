// Package ledger implements the double-entry ledger store: balanced entries,
// append-only reversal, reconciliation and the read paths used by reporting.
package ledger

import (
	"fmt"
	"time"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/types"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPosted   Status = "posted"
	StatusReversed Status = "reversed"
)

// InLedger reports whether entries with status s count in balances.
func (s Status) InLedger() bool {
	return s == StatusPosted || s == StatusReversed
}

// SourceKind enumerates the documents an entry or line can originate from.
type SourceKind string

const (
	SourceInvoice       SourceKind = "invoice"
	SourcePayment       SourceKind = "payment"
	SourceReceipt       SourceKind = "receipt"
	SourceBankStatement SourceKind = "bank_statement"
	SourceManualNote    SourceKind = "manual_note"
	SourceVatTransfer   SourceKind = "vat_transfer"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceInvoice, SourcePayment, SourceReceipt, SourceBankStatement, SourceManualNote, SourceVatTransfer:
		return true
	}
	return false
}

// SourceRef points at the document that produced an entry or line.
// The zero value means "no source".
type SourceRef struct {
	Kind SourceKind
	ID   id.ID
}

// InvoiceRef references an invoice.
func InvoiceRef(v id.ID) SourceRef { return SourceRef{Kind: SourceInvoice, ID: v} }

// PaymentRef references a payment.
func PaymentRef(v id.ID) SourceRef { return SourceRef{Kind: SourcePayment, ID: v} }

// ManualNoteRef references a manual accounting note.
func ManualNoteRef(v id.ID) SourceRef { return SourceRef{Kind: SourceManualNote, ID: v} }

// IsZero reports whether r is unset.
func (r SourceRef) IsZero() bool {
	return r.Kind == "" && id.IsNil(r.ID)
}

// Validate checks that a set reference carries a known kind and an id.
func (r SourceRef) Validate() error {
	if r.IsZero() {
		return nil
	}
	if !r.Kind.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown source kind %q", r.Kind))
	}
	if id.IsNil(r.ID) {
		return apperror.NewValidation(fmt.Sprintf("source %s has no id", r.Kind))
	}
	return nil
}

// String renders kind:id.
func (r SourceRef) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// Dimensions are the optional analytical axes of a line.
type Dimensions struct {
	DepartmentID *id.ID
	ProjectID    *id.ID
	CostCenterID *id.ID
}

// PartnerKind distinguishes customers from suppliers.
type PartnerKind string

const (
	PartnerCustomer PartnerKind = "customer"
	PartnerSupplier PartnerKind = "supplier"
)

// PartnerRef links a line to a third party.
type PartnerRef struct {
	Kind    PartnerKind
	ID      id.ID
	DueDate *time.Time
}

// LineVAT carries the VAT attributes of a line.
type LineVAT struct {
	Code   string
	Rate   types.Money
	Amount types.Money
}

// Line is one debit or credit row of an entry. Amounts are in base currency.
type Line struct {
	ID          id.ID
	EntryID     id.ID
	LineNumber  int
	CompanyID   id.ID
	AccountCode string
	Debit       types.Money
	Credit      types.Money

	// Currency is the original currency; OriginalAmount and ExchangeRate are
	// set only when it differs from the base currency.
	Currency       string
	OriginalAmount *types.Money
	ExchangeRate   *types.Money

	Dimensions  Dimensions
	VAT         *LineVAT
	Partner     *PartnerRef
	Source      SourceRef
	Description string

	Reconciled       bool
	ReconciliationID *id.ID
	ReconciledAt     *time.Time

	// Copied from the entry for range queries.
	PostingDate time.Time
	EntryStatus Status
}

// IsDebit reports whether the line is on the debit side.
func (l Line) IsDebit() bool {
	return l.Debit.IsPositive()
}

// Amount is the non-zero side of the line.
func (l Line) Amount() types.Money {
	if l.IsDebit() {
		return l.Debit
	}
	return l.Credit
}

// Entry is one accounting transaction.
type Entry struct {
	ID             id.ID
	CompanyID      id.ID
	JournalSeries  string
	JournalNumber  int64 // 0 while draft
	DocumentNumber string
	PostingDate    time.Time
	PeriodID       *id.ID
	Source         SourceRef
	Currency       string
	Description    string
	Status         Status

	ReversalOf *id.ID
	ReversedBy *id.ID

	// NeedsReview is set when the entry was posted into a soft_close period.
	NeedsReview bool

	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	UpdatedBy string
	PostedAt  *time.Time

	Lines []Line
}

// Totals returns debit and credit sums of the entry lines.
func (e Entry) Totals() (debit, credit types.Money) {
	debit, credit = types.Zero(), types.Zero()
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// IsBalanced reports whether debit and credit totals agree at ledger precision.
func (e Entry) IsBalanced() bool {
	d, c := e.Totals()
	return types.SumEqual(d, c)
}
