// Package sequence implements the gapless document counter service.
package sequence

import (
	"context"
	"time"

	"contabil/internal/core/id"
	"contabil/internal/core/numerator"
)

// Counter is the persisted state of one gapless sequence.
type Counter struct {
	Key        numerator.Key
	LastNumber int64
	UpdatedAt  time.Time
}

// Repository persists counters.
type Repository interface {
	// Increment atomically creates the counter row at zero if absent, adds one
	// and returns the new value. The row stays locked until the surrounding
	// transaction ends.
	Increment(ctx context.Context, key numerator.Key) (int64, error)

	// Current returns the last issued number, 0 if none was issued.
	Current(ctx context.Context, key numerator.Key) (int64, error)

	// List returns the counters of a company for a year.
	List(ctx context.Context, companyID id.ID, year int) ([]Counter, error)
}
