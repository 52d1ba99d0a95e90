package sequence

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/numerator"
	"contabil/internal/core/tx"
	"contabil/pkg/logger"
)

var tracer = otel.Tracer("contabil/sequence")

// Service allocates gapless numbers. Allocation joins the caller's
// transaction when there is one, so the number and the document that uses
// it commit or roll back together.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a sequence service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// Allocate returns the next number for key.
// A lock wait timeout surfaces as SEQUENCE_CONTENTION; the caller must retry
// the whole containing transaction.
func (s *Service) Allocate(ctx context.Context, key numerator.Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	ctx, span := tracer.Start(ctx, "sequence.Allocate",
		trace.WithAttributes(
			attribute.String("counter.type", string(key.Type)),
			attribute.String("counter.series", key.Series),
			attribute.Int("counter.year", key.Year),
		))
	defer span.End()

	var n int64
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repo.Increment(ctx, key)
		return err
	})
	if err != nil {
		span.RecordError(err)
		if apperror.IsRetryable(err) {
			return 0, apperror.NewSequenceContention(key.String()).WithCause(err)
		}
		return 0, fmt.Errorf("allocate %s: %w", key, err)
	}

	logger.Debug(ctx, "allocated document number", "counter", key.String(), "number", n)
	return n, nil
}

// Peek returns the last issued number without allocating.
func (s *Service) Peek(ctx context.Context, key numerator.Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	return s.repo.Current(ctx, key)
}

// List returns all counters of a company for a year.
func (s *Service) List(ctx context.Context, companyID id.ID, year int) ([]Counter, error) {
	if id.IsNil(companyID) {
		return nil, apperror.NewValidation("company_id is required")
	}
	return s.repo.List(ctx, companyID, year)
}

var _ numerator.Allocator = (*Service)(nil)
