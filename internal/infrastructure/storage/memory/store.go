// Package memory is an in-process implementation of every repository of the
// accounting core. Transactions are serialized by one store-wide lock and
// roll back by restoring a snapshot, which gives the same all-or-nothing
// behavior as PostgreSQL for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/numerator"
	"contabil/internal/core/tx"
	"contabil/internal/domain/audit"
	"contabil/internal/domain/events"
	"contabil/internal/domain/ledger"
	"contabil/internal/domain/periods"
	"contabil/internal/domain/sequence"
	"contabil/internal/domain/vat"
	"contabil/pkg/logger"
)

// DefaultLockTimeout bounds how long a transaction waits for the store lock.
const DefaultLockTimeout = 5 * time.Second

type state struct {
	counters     map[numerator.Key]sequence.Counter
	periods      map[id.ID]periods.Period
	entries      map[id.ID]ledger.Entry // headers, Lines is nil
	lines        map[id.ID]ledger.Line
	linesByEntry map[id.ID][]id.ID
	links        map[id.ID]vat.Link
	transfers    map[id.ID][]vat.Transfer
	outbox       []events.Message
	audit        []audit.Record
}

func newState() *state {
	return &state{
		counters:     make(map[numerator.Key]sequence.Counter),
		periods:      make(map[id.ID]periods.Period),
		entries:      make(map[id.ID]ledger.Entry),
		lines:        make(map[id.ID]ledger.Line),
		linesByEntry: make(map[id.ID][]id.ID),
		links:        make(map[id.ID]vat.Link),
		transfers:    make(map[id.ID][]vat.Transfer),
	}
}

// clone copies every map and slice. Records themselves are values whose
// pointer fields are never mutated in place, so they are shared.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.counters {
		c.counters[k] = v
	}
	for k, v := range s.periods {
		c.periods[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = v
	}
	for k, v := range s.linesByEntry {
		c.linesByEntry[k] = append([]id.ID(nil), v...)
	}
	for k, v := range s.links {
		c.links[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = append([]vat.Transfer(nil), v...)
	}
	c.outbox = append([]events.Message(nil), s.outbox...)
	c.audit = append([]audit.Record(nil), s.audit...)
	return c
}

// Store holds all state.
type Store struct {
	txLock      chan struct{}
	lockTimeout time.Duration

	mu sync.RWMutex
	st *state
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets how long a transaction waits for the store lock
// before failing with LOCK_TIMEOUT.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		txLock:      make(chan struct{}, 1),
		lockTimeout: DefaultLockTimeout,
		st:          newState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type txKey struct{}

var _ tx.ReadOnlyManager = (*Store)(nil)

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.InTransaction(ctx) {
		return fn(ctx)
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			s.restore(snapshot)
			panic(r)
		}
		if err != nil {
			s.restore(snapshot)
			logger.Debug(ctx, "memory transaction rolled back", "error", err)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, s))
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

// InTransaction implements tx.Manager.
func (s *Store) InTransaction(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

func (s *Store) acquire(ctx context.Context) error {
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()
	select {
	case s.txLock <- struct{}{}:
		return nil
	case <-timer.C:
		return apperror.NewLockTimeout("memory store").
			WithDetail("waited", s.lockTimeout.String())
	case <-ctx.Done():
		return fmt.Errorf("wait for store lock: %w", ctx.Err())
	}
}

func (s *Store) release() {
	<-s.txLock
}

func (s *Store) restore(snapshot *state) {
	s.mu.Lock()
	s.st = snapshot
	s.mu.Unlock()
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

// view reads committed state. Outside a transaction it waits for the
// transaction lock, so writes of an open transaction stay invisible.
func (s *Store) view(ctx context.Context, fn func(st *state)) error {
	if !s.InTransaction(ctx) {
		if err := s.acquire(ctx); err != nil {
			return err
		}
		defer s.release()
	}
	s.read(fn)
	return nil
}

// write applies fn under the state lock. Outside a transaction it opens one,
// so a concurrent rollback never discards it.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if !s.InTransaction(ctx) {
		return s.RunInTransaction(ctx, func(ctx context.Context) error {
			return s.write(ctx, fn)
		})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// Sequences returns the counter repository.
func (s *Store) Sequences() *SequenceRepo { return &SequenceRepo{s: s} }

// Periods returns the fiscal period repository.
func (s *Store) Periods() *PeriodRepo { return &PeriodRepo{s: s} }

// Ledger returns the ledger repository.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s: s} }

// VAT returns the deferred VAT repository.
func (s *Store) VAT() *VatRepo { return &VatRepo{s: s} }

// Outbox returns the event outbox.
func (s *Store) Outbox() *Outbox { return &Outbox{s: s} }

// Audit returns the audit trail.
func (s *Store) Audit() *AuditLog { return &AuditLog{s: s} }
