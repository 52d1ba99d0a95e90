package memory

import (
	"context"
	"sort"
	"time"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/domain/periods"
)

// PeriodRepo implements periods.Repository. The store lock already
// serializes transactions, so lock modes need no extra handling.
type PeriodRepo struct{ s *Store }

var _ periods.Repository = (*PeriodRepo)(nil)

// Create implements periods.Repository.
func (r *PeriodRepo) Create(ctx context.Context, p *periods.Period) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.periods[p.ID]; ok {
			return apperror.NewDuplicate("fiscal_period", "id", p.ID.String())
		}
		for _, other := range st.periods {
			if other.CompanyID == p.CompanyID && other.Overlaps(p.StartDate, p.EndDate) {
				return apperror.NewValidation("period overlaps an existing period").
					WithDetail("period_id", other.ID)
			}
		}
		st.periods[p.ID] = *p
		return nil
	})
}

// Get implements periods.Repository.
func (r *PeriodRepo) Get(ctx context.Context, companyID, periodID id.ID, _ periods.LockMode) (*periods.Period, error) {
	var (
		p  periods.Period
		ok bool
	)
	err := r.s.view(ctx, func(st *state) {
		p, ok = st.periods[periodID]
	})
	if err != nil {
		return nil, err
	}
	if !ok || p.CompanyID != companyID {
		return nil, apperror.NewNotFound("fiscal period", periodID)
	}
	return &p, nil
}

// FindCovering implements periods.Repository.
func (r *PeriodRepo) FindCovering(ctx context.Context, companyID id.ID, date time.Time, _ periods.LockMode) (*periods.Period, error) {
	var found *periods.Period
	err := r.s.view(ctx, func(st *state) {
		for _, p := range st.periods {
			if p.CompanyID == companyID && p.Contains(date) {
				found = &p
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, apperror.NewPeriodNotFound(companyID, date.Format(time.DateOnly))
	}
	return found, nil
}

// FindOverlapping implements periods.Repository.
func (r *PeriodRepo) FindOverlapping(ctx context.Context, companyID id.ID, start, end time.Time) ([]periods.Period, error) {
	var out []periods.Period
	err := r.s.view(ctx, func(st *state) {
		for _, p := range st.periods {
			if p.CompanyID == companyID && p.Overlaps(start, end) {
				out = append(out, p)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	sortPeriods(out)
	return out, nil
}

// List implements periods.Repository.
func (r *PeriodRepo) List(ctx context.Context, companyID id.ID, from, to time.Time) ([]periods.Period, error) {
	return r.FindOverlapping(ctx, companyID, from, to)
}

// Update implements periods.Repository.
func (r *PeriodRepo) Update(ctx context.Context, p *periods.Period) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.periods[p.ID]; !ok {
			return apperror.NewNotFound("fiscal period", p.ID)
		}
		st.periods[p.ID] = *p
		return nil
	})
}

// Delete implements periods.Repository.
func (r *PeriodRepo) Delete(ctx context.Context, companyID, periodID id.ID) error {
	return r.s.write(ctx, func(st *state) error {
		p, ok := st.periods[periodID]
		if !ok || p.CompanyID != companyID {
			return apperror.NewNotFound("fiscal period", periodID)
		}
		delete(st.periods, periodID)
		return nil
	})
}

func sortPeriods(ps []periods.Period) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].StartDate.Before(ps[j].StartDate) })
}
