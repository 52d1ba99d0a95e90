// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; PostgreSQL and in-memory
// implementations live in infrastructure/storage.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// InTransaction reports whether ctx already carries a transaction.
	// Retrying is only safe at the outermost level.
	InTransaction(ctx context.Context) bool
}

// ReadOnlyManager extends Manager with read-only transaction support.
// Query paths use it so they never take row locks.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
