// Package vat implements cash-basis VAT deferral: VAT booked on a deferred
// account is moved to the due account in proportion to collected payments.
package vat

import (
	"context"
	"time"

	"contabil/internal/core/id"
	"contabil/internal/core/types"
)

// Direction tells whether the invoice was issued or received.
type Direction string

const (
	DirectionSale     Direction = "sale"
	DirectionPurchase Direction = "purchase"
)

// Valid reports whether d is known.
func (d Direction) Valid() bool {
	return d == DirectionSale || d == DirectionPurchase
}

// Link is the per-invoice deferral bookkeeping.
type Link struct {
	InvoiceID             id.ID
	CompanyID             id.ID
	Direction             Direction
	Currency              string
	GrossTotal            types.Money
	VatTotal              types.Money
	CumulativePaid        types.Money
	CumulativeTransferred types.Money
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Outstanding is the unpaid part of the gross total.
func (l Link) Outstanding() types.Money {
	o := l.GrossTotal.Sub(l.CumulativePaid)
	if o.IsNegative() {
		return types.Zero()
	}
	return o
}

// Deferred is the VAT still waiting on the deferred account.
func (l Link) Deferred() types.Money {
	return l.VatTotal.Sub(l.CumulativeTransferred)
}

// FullyPaid reports whether payments reached the gross total.
func (l Link) FullyPaid() bool {
	return l.CumulativePaid.GreaterThanOrEqual(l.GrossTotal)
}

// Transfer is one emitted VAT transfer and the ledger entry that carries it.
type Transfer struct {
	ID             id.ID
	InvoiceID      id.ID
	CompanyID      id.ID
	EntryID        id.ID
	PaymentAmount  types.Money
	CumulativePaid types.Money
	Amount         types.Money
	Final          bool
	PostingDate    time.Time
	CreatedAt      time.Time
}

// Repository persists links and their transfer history.
type Repository interface {
	Create(ctx context.Context, link *Link) error
	Get(ctx context.Context, invoiceID id.ID) (*Link, error)
	// GetForUpdate locks the link row until the transaction ends.
	GetForUpdate(ctx context.Context, invoiceID id.ID) (*Link, error)
	// UpdateProgress stores CumulativePaid and CumulativeTransferred.
	UpdateProgress(ctx context.Context, link *Link) error
	InsertTransfer(ctx context.Context, t *Transfer) error
	ListTransfers(ctx context.Context, invoiceID id.ID) ([]Transfer, error)
}
