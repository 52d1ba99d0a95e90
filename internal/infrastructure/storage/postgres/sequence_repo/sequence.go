// Package sequence_repo stores gapless document counters in PostgreSQL.
package sequence_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"contabil/internal/core/id"
	"contabil/internal/core/numerator"
	"contabil/internal/domain/sequence"
	"contabil/internal/infrastructure/storage/postgres"
)

const table = "acc_document_counters"

type counterRow struct {
	CompanyID   id.ID     `db:"company_id"`
	CounterType string    `db:"counter_type"`
	Series      string    `db:"series"`
	Year        int       `db:"year"`
	LastNumber  int64     `db:"last_number"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Repo implements sequence.Repository.
type Repo struct {
	txm *postgres.TxManager
}

var _ sequence.Repository = (*Repo)(nil)

// New creates the counter repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Increment upserts the counter row and bumps it in one statement. The
// conflicting row is locked until the transaction ends, so concurrent
// allocators for the same key queue behind each other and never read the
// same value.
func (r *Repo) Increment(ctx context.Context, key numerator.Key) (int64, error) {
	sql, args, err := builder().
		Insert(table).
		Columns("company_id", "counter_type", "series", "year", "last_number", "updated_at").
		Values(key.CompanyID, string(key.Type), key.Series, key.Year, 1, squirrel.Expr("NOW()")).
		Suffix(`ON CONFLICT (company_id, counter_type, series, year)
			DO UPDATE SET last_number = ` + table + `.last_number + 1, updated_at = NOW()
			RETURNING last_number`).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build increment: %w", err)
	}

	var n int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, postgres.MapError(fmt.Errorf("increment counter %s: %w", key, err))
	}
	return n, nil
}

// Current implements sequence.Repository.
func (r *Repo) Current(ctx context.Context, key numerator.Key) (int64, error) {
	sql, args, err := builder().
		Select("last_number").
		From(table).
		Where(squirrel.Eq{
			"company_id":   key.CompanyID,
			"counter_type": string(key.Type),
			"series":       key.Series,
			"year":         key.Year,
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build select: %w", err)
	}

	var n int64
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &n, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read counter %s: %w", key, err)
	}
	return n, nil
}

// List implements sequence.Repository.
func (r *Repo) List(ctx context.Context, companyID id.ID, year int) ([]sequence.Counter, error) {
	sql, args, err := builder().
		Select(postgres.ExtractDBColumns[counterRow]()...).
		From(table).
		Where(squirrel.Eq{"company_id": companyID, "year": year}).
		OrderBy("counter_type", "series").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	var rows []counterRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}

	out := make([]sequence.Counter, len(rows))
	for i, row := range rows {
		out[i] = sequence.Counter{
			Key: numerator.Key{
				CompanyID: row.CompanyID,
				Type:      numerator.CounterType(row.CounterType),
				Series:    row.Series,
				Year:      row.Year,
			},
			LastNumber: row.LastNumber,
			UpdatedAt:  row.UpdatedAt,
		}
	}
	return out, nil
}
