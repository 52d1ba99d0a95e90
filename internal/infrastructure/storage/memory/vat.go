package memory

import (
	"context"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/domain/vat"
)

// VatRepo implements vat.Repository.
type VatRepo struct{ s *Store }

var _ vat.Repository = (*VatRepo)(nil)

// Create implements vat.Repository.
func (r *VatRepo) Create(ctx context.Context, link *vat.Link) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.links[link.InvoiceID]; ok {
			return apperror.NewDuplicate("deferred_vat_link", "invoice_id", link.InvoiceID.String())
		}
		st.links[link.InvoiceID] = *link
		return nil
	})
}

// Get implements vat.Repository.
func (r *VatRepo) Get(_ context.Context, invoiceID id.ID) (*vat.Link, error) {
	var (
		l  vat.Link
		ok bool
	)
	r.s.read(func(st *state) {
		l, ok = st.links[invoiceID]
	})
	if !ok {
		return nil, apperror.NewNotFound("deferred VAT link", invoiceID)
	}
	return &l, nil
}

// GetForUpdate implements vat.Repository.
func (r *VatRepo) GetForUpdate(ctx context.Context, invoiceID id.ID) (*vat.Link, error) {
	return r.Get(ctx, invoiceID)
}

// UpdateProgress implements vat.Repository.
func (r *VatRepo) UpdateProgress(ctx context.Context, link *vat.Link) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.links[link.InvoiceID]
		if !ok {
			return apperror.NewNotFound("deferred VAT link", link.InvoiceID)
		}
		if link.CumulativeTransferred.GreaterThan(cur.VatTotal) {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "cumulative transferred VAT exceeds the invoice VAT total")
		}
		cur.CumulativePaid = link.CumulativePaid
		cur.CumulativeTransferred = link.CumulativeTransferred
		cur.UpdatedAt = link.UpdatedAt
		st.links[link.InvoiceID] = cur
		return nil
	})
}

// InsertTransfer implements vat.Repository.
func (r *VatRepo) InsertTransfer(ctx context.Context, t *vat.Transfer) error {
	return r.s.write(ctx, func(st *state) error {
		st.transfers[t.InvoiceID] = append(st.transfers[t.InvoiceID], *t)
		return nil
	})
}

// ListTransfers implements vat.Repository.
func (r *VatRepo) ListTransfers(_ context.Context, invoiceID id.ID) ([]vat.Transfer, error) {
	var out []vat.Transfer
	r.s.read(func(st *state) {
		out = append(out, st.transfers[invoiceID]...)
	})
	return out, nil
}
