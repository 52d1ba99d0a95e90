// Package period_repo stores fiscal periods in PostgreSQL.
package period_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/domain/periods"
	"contabil/internal/infrastructure/storage/postgres"
)

const table = "acc_fiscal_periods"

type periodRow struct {
	ID           id.ID      `db:"id"`
	CompanyID    id.ID      `db:"company_id"`
	StartDate    time.Time  `db:"start_date"`
	EndDate      time.Time  `db:"end_date"`
	Status       string     `db:"status"`
	ClosedAt     *time.Time `db:"closed_at"`
	ClosedBy     string     `db:"closed_by"`
	ReopenedAt   *time.Time `db:"reopened_at"`
	ReopenedBy   string     `db:"reopened_by"`
	ReopenReason string     `db:"reopen_reason"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func toRow(p *periods.Period) periodRow {
	return periodRow{
		ID:           p.ID,
		CompanyID:    p.CompanyID,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		Status:       string(p.Status),
		ClosedAt:     p.ClosedAt,
		ClosedBy:     p.ClosedBy,
		ReopenedAt:   p.ReopenedAt,
		ReopenedBy:   p.ReopenedBy,
		ReopenReason: p.ReopenReason,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (row periodRow) toDomain() periods.Period {
	return periods.Period{
		ID:           row.ID,
		CompanyID:    row.CompanyID,
		StartDate:    periods.DateOnly(row.StartDate),
		EndDate:      periods.DateOnly(row.EndDate),
		Status:       periods.Status(row.Status),
		ClosedAt:     row.ClosedAt,
		ClosedBy:     row.ClosedBy,
		ReopenedAt:   row.ReopenedAt,
		ReopenedBy:   row.ReopenedBy,
		ReopenReason: row.ReopenReason,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

var columns = postgres.ExtractDBColumns[periodRow]()

// Repo implements periods.Repository.
type Repo struct {
	txm *postgres.TxManager
}

var _ periods.Repository = (*Repo)(nil)

// New creates the period repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{txm: txm}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func lockSuffix(lock periods.LockMode) string {
	switch lock {
	case periods.LockShare:
		return "FOR SHARE"
	case periods.LockUpdate:
		return "FOR UPDATE"
	}
	return ""
}

// Create implements periods.Repository. Overlaps are rejected by the
// exclusion constraint as well as by the guard.
func (r *Repo) Create(ctx context.Context, p *periods.Period) error {
	sql, args, err := builder().Insert(table).SetMap(postgres.StructToMap(toRow(p))).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(fmt.Errorf("insert period: %w", err))
	}
	return nil
}

func (r *Repo) getOne(ctx context.Context, q squirrel.SelectBuilder) (*periods.Period, bool, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build select: %w", err)
	}
	var row periodRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, false, nil
		}
		return nil, false, postgres.MapError(fmt.Errorf("select period: %w", err))
	}
	p := row.toDomain()
	return &p, true, nil
}

// Get implements periods.Repository.
func (r *Repo) Get(ctx context.Context, companyID, periodID id.ID, lock periods.LockMode) (*periods.Period, error) {
	p, ok, err := r.getOne(ctx, builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"id": periodID, "company_id": companyID}).
		Suffix(lockSuffix(lock)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NewNotFound("fiscal period", periodID)
	}
	return p, nil
}

// FindCovering implements periods.Repository.
func (r *Repo) FindCovering(ctx context.Context, companyID id.ID, date time.Time, lock periods.LockMode) (*periods.Period, error) {
	day := periods.DateOnly(date)
	p, ok, err := r.getOne(ctx, builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"company_id": companyID}).
		Where(squirrel.LtOrEq{"start_date": day}).
		Where(squirrel.GtOrEq{"end_date": day}).
		Suffix(lockSuffix(lock)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NewPeriodNotFound(companyID, day.Format(time.DateOnly))
	}
	return p, nil
}

// FindOverlapping implements periods.Repository.
func (r *Repo) FindOverlapping(ctx context.Context, companyID id.ID, start, end time.Time) ([]periods.Period, error) {
	sql, args, err := builder().
		Select(columns...).
		From(table).
		Where(squirrel.Eq{"company_id": companyID}).
		Where(squirrel.LtOrEq{"start_date": periods.DateOnly(end)}).
		Where(squirrel.GtOrEq{"end_date": periods.DateOnly(start)}).
		OrderBy("start_date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rows []periodRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.MapError(fmt.Errorf("select periods: %w", err))
	}
	out := make([]periods.Period, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// List implements periods.Repository.
func (r *Repo) List(ctx context.Context, companyID id.ID, from, to time.Time) ([]periods.Period, error) {
	return r.FindOverlapping(ctx, companyID, from, to)
}

// Update implements periods.Repository.
func (r *Repo) Update(ctx context.Context, p *periods.Period) error {
	row := toRow(p)
	sql, args, err := builder().
		Update(table).
		SetMap(map[string]any{
			"status":        row.Status,
			"closed_at":     row.ClosedAt,
			"closed_by":     row.ClosedBy,
			"reopened_at":   row.ReopenedAt,
			"reopened_by":   row.ReopenedBy,
			"reopen_reason": row.ReopenReason,
			"updated_at":    row.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": p.ID, "company_id": p.CompanyID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update period: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("fiscal period", p.ID)
	}
	return nil
}

// Delete implements periods.Repository.
func (r *Repo) Delete(ctx context.Context, companyID, periodID id.ID) error {
	sql, args, err := builder().
		Delete(table).
		Where(squirrel.Eq{"id": periodID, "company_id": companyID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(fmt.Errorf("delete period: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("fiscal period", periodID)
	}
	return nil
}
