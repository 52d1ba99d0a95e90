// Package vat_repo stores deferred VAT links and transfers in PostgreSQL.
package vat_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/types"
	"contabil/internal/domain/vat"
	"contabil/internal/infrastructure/storage/postgres"
)

const (
	linksTable     = "acc_deferred_vat_links"
	transfersTable = "acc_vat_transfers"
)

type linkRow struct {
	InvoiceID             id.ID       `db:"invoice_id"`
	CompanyID             id.ID       `db:"company_id"`
	Direction             string      `db:"direction"`
	Currency              string      `db:"currency"`
	GrossTotal            types.Money `db:"gross_total"`
	VatTotal              types.Money `db:"vat_total"`
	CumulativePaid        types.Money `db:"cumulative_paid"`
	CumulativeTransferred types.Money `db:"cumulative_transferred"`
	CreatedAt             time.Time   `db:"created_at"`
	UpdatedAt             time.Time   `db:"updated_at"`
}

func (row linkRow) toDomain() vat.Link {
	return vat.Link{
		InvoiceID:             row.InvoiceID,
		CompanyID:             row.CompanyID,
		Direction:             vat.Direction(row.Direction),
		Currency:              row.Currency,
		GrossTotal:            row.GrossTotal,
		VatTotal:              row.VatTotal,
		CumulativePaid:        row.CumulativePaid,
		CumulativeTransferred: row.CumulativeTransferred,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
}

type transferRow struct {
	ID             id.ID       `db:"id"`
	InvoiceID      id.ID       `db:"invoice_id"`
	CompanyID      id.ID       `db:"company_id"`
	EntryID        id.ID       `db:"entry_id"`
	PaymentAmount  types.Money `db:"payment_amount"`
	CumulativePaid types.Money `db:"cumulative_paid"`
	Amount         types.Money `db:"amount"`
	Final          bool        `db:"final"`
	PostingDate    time.Time   `db:"posting_date"`
	CreatedAt      time.Time   `db:"created_at"`
}

var (
	linkColumns     = postgres.ExtractDBColumns[linkRow]()
	transferColumns = postgres.ExtractDBColumns[transferRow]()
)

// Repo implements vat.Repository.
type Repo struct {
	txm *postgres.TxManager
}

var _ vat.Repository = (*Repo)(nil)

// New creates the VAT repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create implements vat.Repository.
func (r *Repo) Create(ctx context.Context, link *vat.Link) error {
	row := linkRow{
		InvoiceID:             link.InvoiceID,
		CompanyID:             link.CompanyID,
		Direction:             string(link.Direction),
		Currency:              link.Currency,
		GrossTotal:            link.GrossTotal,
		VatTotal:              link.VatTotal,
		CumulativePaid:        link.CumulativePaid,
		CumulativeTransferred: link.CumulativeTransferred,
		CreatedAt:             link.CreatedAt,
		UpdatedAt:             link.UpdatedAt,
	}
	sql, args, err := builder().Insert(linksTable).SetMap(postgres.StructToMap(row)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert deferred VAT link: %w", err))
	}
	return nil
}

func (r *Repo) get(ctx context.Context, invoiceID id.ID, lock bool) (*vat.Link, error) {
	q := builder().Select(linkColumns...).From(linksTable).Where(squirrel.Eq{"invoice_id": invoiceID})
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var row linkRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("deferred VAT link", invoiceID)
		}
		return nil, postgres.MapError(fmt.Errorf("select deferred VAT link: %w", err))
	}
	l := row.toDomain()
	return &l, nil
}

// Get implements vat.Repository.
func (r *Repo) Get(ctx context.Context, invoiceID id.ID) (*vat.Link, error) {
	return r.get(ctx, invoiceID, false)
}

// GetForUpdate implements vat.Repository.
func (r *Repo) GetForUpdate(ctx context.Context, invoiceID id.ID) (*vat.Link, error) {
	return r.get(ctx, invoiceID, true)
}

// UpdateProgress implements vat.Repository. The table checks keep both
// cumulative columns inside their totals.
func (r *Repo) UpdateProgress(ctx context.Context, link *vat.Link) error {
	sql, args, err := builder().
		Update(linksTable).
		SetMap(map[string]any{
			"cumulative_paid":        link.CumulativePaid,
			"cumulative_transferred": link.CumulativeTransferred,
			"updated_at":             link.UpdatedAt,
		}).
		Where(squirrel.Eq{"invoice_id": link.InvoiceID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update deferred VAT link: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("deferred VAT link", link.InvoiceID)
	}
	return nil
}

// InsertTransfer implements vat.Repository.
func (r *Repo) InsertTransfer(ctx context.Context, t *vat.Transfer) error {
	row := transferRow{
		ID:             t.ID,
		InvoiceID:      t.InvoiceID,
		CompanyID:      t.CompanyID,
		EntryID:        t.EntryID,
		PaymentAmount:  t.PaymentAmount,
		CumulativePaid: t.CumulativePaid,
		Amount:         t.Amount,
		Final:          t.Final,
		PostingDate:    t.PostingDate,
		CreatedAt:      t.CreatedAt,
	}
	sql, args, err := builder().Insert(transfersTable).SetMap(postgres.StructToMap(row)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert VAT transfer: %w", err))
	}
	return nil
}

// ListTransfers implements vat.Repository.
func (r *Repo) ListTransfers(ctx context.Context, invoiceID id.ID) ([]vat.Transfer, error) {
	sql, args, err := builder().
		Select(transferColumns...).
		From(transfersTable).
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	var rows []transferRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("select VAT transfers: %w", err))
	}
	out := make([]vat.Transfer, len(rows))
	for i, row := range rows {
		out[i] = vat.Transfer{
			ID:             row.ID,
			InvoiceID:      row.InvoiceID,
			CompanyID:      row.CompanyID,
			EntryID:        row.EntryID,
			PaymentAmount:  row.PaymentAmount,
			CumulativePaid: row.CumulativePaid,
			Amount:         row.Amount,
			Final:          row.Final,
			PostingDate:    row.PostingDate,
			CreatedAt:      row.CreatedAt,
		}
	}
	return out, nil
}
