// Package retry re-runs whole transactions that failed on lock contention.
// Only errors classified by apperror.IsRetryable are retried; the number of
// attempts is always bounded.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"contabil/internal/core/apperror"
	"contabil/internal/core/tx"
	"contabil/pkg/logger"
)

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy returns the production retry bounds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// NoRetry runs the operation exactly once.
func NoRetry() Policy {
	return Policy{MaxAttempts: 1}
}

func (p Policy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// policy runs out of attempts. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !apperror.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		logger.Warn(ctx, "transaction hit contention",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)
		return struct{}{}, err
	}, backoff.WithBackOff(p.backOff()), backoff.WithMaxTries(attempts))

	return err
}

// InTransaction runs fn in a transaction, retrying the whole transaction on
// contention. When ctx already carries a transaction the caller owns the
// retry, so fn runs once inside it.
func InTransaction(ctx context.Context, txm tx.Manager, p Policy, fn func(ctx context.Context) error) error {
	if txm.InTransaction(ctx) {
		return txm.RunInTransaction(ctx, fn)
	}
	return Do(ctx, p, func(ctx context.Context) error {
		return txm.RunInTransaction(ctx, fn)
	})
}
