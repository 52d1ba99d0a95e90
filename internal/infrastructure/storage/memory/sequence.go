package memory

import (
	"context"
	"sort"
	"time"

	"contabil/internal/core/id"
	"contabil/internal/core/numerator"
	"contabil/internal/domain/sequence"
)

// SequenceRepo implements sequence.Repository.
type SequenceRepo struct{ s *Store }

var _ sequence.Repository = (*SequenceRepo)(nil)

// Increment implements sequence.Repository.
func (r *SequenceRepo) Increment(ctx context.Context, key numerator.Key) (int64, error) {
	var n int64
	err := r.s.write(ctx, func(st *state) error {
		c, ok := st.counters[key]
		if !ok {
			c = sequence.Counter{Key: key}
		}
		c.LastNumber++
		c.UpdatedAt = time.Now().UTC()
		st.counters[key] = c
		n = c.LastNumber
		return nil
	})
	return n, err
}

// Current implements sequence.Repository.
func (r *SequenceRepo) Current(_ context.Context, key numerator.Key) (int64, error) {
	var n int64
	r.s.read(func(st *state) {
		n = st.counters[key].LastNumber
	})
	return n, nil
}

// List implements sequence.Repository.
func (r *SequenceRepo) List(_ context.Context, companyID id.ID, year int) ([]sequence.Counter, error) {
	var out []sequence.Counter
	r.s.read(func(st *state) {
		for k, c := range st.counters {
			if k.CompanyID == companyID && k.Year == year {
				out = append(out, c)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Series < b.Series
	})
	return out, nil
}
