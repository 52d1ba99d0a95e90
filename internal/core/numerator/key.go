// Package numerator provides domain contracts for gapless document numbering.
// Implementations live in the domain/sequence service and storage layers.
package numerator

import (
	"context"
	"fmt"
	"strings"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
)

// CounterType names a family of documents sharing one numbering space.
type CounterType string

const (
	CounterJournal CounterType = "JOURNAL"
	CounterInvoice CounterType = "INVOICE"
	CounterReceipt CounterType = "RECEIPT"
	CounterPayment CounterType = "PAYMENT"
)

// Key identifies one gapless sequence. Year is part of the key, so
// numbering restarts at 1 every calendar year.
type Key struct {
	CompanyID id.ID
	Type      CounterType
	Series    string
	Year      int
}

// String renders the key for logs and error details.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%d", k.CompanyID, k.Type, k.Series, k.Year)
}

// Validate checks that every key component is present.
func (k Key) Validate() error {
	switch {
	case id.IsNil(k.CompanyID):
		return apperror.NewValidation("counter key: company_id is required")
	case strings.TrimSpace(string(k.Type)) == "":
		return apperror.NewValidation("counter key: counter type is required")
	case strings.TrimSpace(k.Series) == "":
		return apperror.NewValidation("counter key: series is required")
	case k.Year < 1900 || k.Year > 9999:
		return apperror.NewValidation(fmt.Sprintf("counter key: year %d out of range", k.Year))
	}
	return nil
}

// Allocator issues the next number of a sequence.
// Issued numbers are never reused; a rolled-back allocation may leave a gap,
// a duplicate is never produced.
type Allocator interface {
	Allocate(ctx context.Context, key Key) (int64, error)
}
