package periods

import (
	"context"
	"time"

	"contabil/internal/core/id"
)

// LockMode selects the row lock taken when reading a period.
type LockMode int

const (
	LockNone   LockMode = iota
	LockShare           // posting: blocks a concurrent close, not other postings
	LockUpdate          // close/reopen
)

// Repository persists fiscal periods.
type Repository interface {
	Create(ctx context.Context, p *Period) error
	Get(ctx context.Context, companyID, periodID id.ID, lock LockMode) (*Period, error)
	// FindCovering returns the period containing date, or PERIOD_NOT_FOUND.
	FindCovering(ctx context.Context, companyID id.ID, date time.Time, lock LockMode) (*Period, error)
	FindOverlapping(ctx context.Context, companyID id.ID, start, end time.Time) ([]Period, error)
	List(ctx context.Context, companyID id.ID, from, to time.Time) ([]Period, error)
	Update(ctx context.Context, p *Period) error
	Delete(ctx context.Context, companyID, periodID id.ID) error
}

// EntryCounter reports how many ledger entries reference a period.
type EntryCounter interface {
	CountEntriesInPeriod(ctx context.Context, periodID id.ID) (int64, error)
}
