// Package periods implements the fiscal period guard: the state machine that
// decides whether a date is postable and the controlled reopen path.
package periods

import (
	"fmt"
	"time"

	"contabil/internal/core/id"
)

// Status is the lock state of a fiscal period.
type Status string

const (
	StatusOpen      Status = "open"
	StatusSoftClose Status = "soft_close"
	StatusHardClose Status = "hard_close"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusSoftClose, StatusHardClose:
		return true
	}
	return false
}

func (s Status) rank() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusSoftClose:
		return 1
	case StatusHardClose:
		return 2
	}
	return -1
}

// CanClose reports whether close may move a period from -> to.
// Closing only ever moves forward; going back is the reopen path.
func CanClose(from, to Status) bool {
	return from.Valid() && to.Valid() && to != StatusOpen && to.rank() > from.rank()
}

// Period is one accounting window of a company. Dates are calendar days,
// both ends inclusive.
type Period struct {
	ID           id.ID
	CompanyID    id.ID
	StartDate    time.Time
	EndDate      time.Time
	Status       Status
	ClosedAt     *time.Time
	ClosedBy     string
	ReopenedAt   *time.Time
	ReopenedBy   string
	ReopenReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Contains reports whether date falls inside the period.
func (p Period) Contains(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// Overlaps reports whether [start, end] intersects the period.
func (p Period) Overlaps(start, end time.Time) bool {
	return !DateOnly(end).Before(p.StartDate) && !DateOnly(start).After(p.EndDate)
}

// Label renders 2025-01 for calendar months, the date range otherwise.
func (p Period) Label() string {
	if p.StartDate.Day() == 1 && p.EndDate.Equal(MonthEnd(p.StartDate)) {
		return p.StartDate.Format("2006-01")
	}
	return fmt.Sprintf("%s..%s", p.StartDate.Format(time.DateOnly), p.EndDate.Format(time.DateOnly))
}

// DateOnly truncates t to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last day of the month containing t.
func MonthEnd(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}
