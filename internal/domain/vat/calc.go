package vat

import (
	"contabil/internal/core/types"
)

// divisionPrecision is the scale of the intermediate V*paid/G quotient.
const divisionPrecision int32 = 16

// Computation is the outcome of applying one payment to a link.
type Computation struct {
	// Applied is the payment after capping at the outstanding balance.
	Applied        types.Money
	CumulativePaid types.Money
	// Transfer is the VAT to move now; zero means nothing to post.
	Transfer types.Money
	// Final is set when the payment completes the gross total and Transfer
	// is the remainder V - T.
	Final bool
}

// Compute applies payment to link without mutating it.
//
// While the invoice is partially paid the amount is
// round(V * paid/G - T, places), where paid includes this payment. The
// payment that brings paid to G transfers V - T instead, so the sum of all
// transfers is exactly V. A proportional result at or below zero is a no-op.
func Compute(link Link, payment types.Money, places int32) Computation {
	c := Computation{
		Applied:        types.Zero(),
		CumulativePaid: link.CumulativePaid,
		Transfer:       types.Zero(),
	}
	if !payment.IsPositive() || !link.GrossTotal.IsPositive() {
		return c
	}

	applied := payment
	if out := link.Outstanding(); applied.GreaterThan(out) {
		applied = out
	}
	if !applied.IsPositive() {
		return c
	}
	c.Applied = applied
	c.CumulativePaid = link.CumulativePaid.Add(applied)

	remaining := link.Deferred()
	if !remaining.IsPositive() {
		return c
	}

	if c.CumulativePaid.GreaterThanOrEqual(link.GrossTotal) {
		c.Transfer = remaining
		c.Final = true
		return c
	}

	due := link.VatTotal.Mul(c.CumulativePaid).DivRound(link.GrossTotal, divisionPrecision)
	transfer := due.Sub(link.CumulativeTransferred).Round(places)
	if !transfer.IsPositive() {
		return c
	}
	if transfer.GreaterThan(remaining) {
		transfer = remaining
	}
	c.Transfer = transfer
	return c
}
