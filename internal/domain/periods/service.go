package periods

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"contabil/internal/core/apperror"
	appctx "contabil/internal/core/context"
	"contabil/internal/core/id"
	"contabil/internal/core/retry"
	"contabil/internal/core/tx"
	"contabil/internal/domain/audit"
	"contabil/internal/domain/events"
	"contabil/pkg/logger"
)

var tracer = otel.Tracer("contabil/periods")

// StatusChanged is the outbox payload for close and reopen.
type StatusChanged struct {
	PeriodID  id.ID  `json:"period_id"`
	CompanyID id.ID  `json:"company_id"`
	Period    string `json:"period"`
	From      Status `json:"from"`
	To        Status `json:"to"`
	ActorID   string `json:"actor_id"`
	Reason    string `json:"reason,omitempty"`
}

// Guard gates postings by fiscal period status.
type Guard struct {
	repo      Repository
	entries   EntryCounter
	txManager tx.Manager
	audit     audit.Recorder
	events    events.Publisher
	retry     retry.Policy
}

// NewGuard creates a period guard.
func NewGuard(repo Repository, entries EntryCounter, txManager tx.Manager, recorder audit.Recorder, publisher events.Publisher, policy retry.Policy) *Guard {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Guard{
		repo:      repo,
		entries:   entries,
		txManager: txManager,
		audit:     recorder,
		events:    publisher,
		retry:     policy,
	}
}

// CheckPostable returns the status of the period covering date, or
// PERIOD_NOT_FOUND. It takes no lock; posting paths use AcquireForPosting.
func (g *Guard) CheckPostable(ctx context.Context, companyID id.ID, date time.Time) (Status, error) {
	p, err := g.repo.FindCovering(ctx, companyID, DateOnly(date), LockNone)
	if err != nil {
		return "", err
	}
	return p.Status, nil
}

// AcquireForPosting locks the period covering date in shared mode for the
// rest of the caller's transaction, so it cannot be closed while the entry
// is being written. hard_close periods are rejected with PERIOD_CLOSED.
func (g *Guard) AcquireForPosting(ctx context.Context, companyID id.ID, date time.Time) (*Period, error) {
	p, err := g.repo.FindCovering(ctx, companyID, DateOnly(date), LockShare)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusHardClose {
		return nil, apperror.NewPeriodClosed(p.ID, string(p.Status)).
			WithDetail("period", p.Label()).
			WithDetail("date", DateOnly(date).Format(time.DateOnly))
	}
	return p, nil
}

// CreatePeriod adds a period. Periods of a company never overlap.
func (g *Guard) CreatePeriod(ctx context.Context, companyID id.ID, start, end time.Time) (*Period, error) {
	if id.IsNil(companyID) {
		return nil, apperror.NewValidation("company_id is required")
	}
	start, end = DateOnly(start), DateOnly(end)
	if end.Before(start) {
		return nil, apperror.NewValidation("period end date is before its start date").
			WithDetail("start", start.Format(time.DateOnly)).
			WithDetail("end", end.Format(time.DateOnly))
	}

	now := time.Now().UTC()
	p := &Period{
		ID:        id.New(),
		CompanyID: companyID,
		StartDate: start,
		EndDate:   end,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := retry.InTransaction(ctx, g.txManager, g.retry, func(ctx context.Context) error {
		overlapping, err := g.repo.FindOverlapping(ctx, companyID, start, end)
		if err != nil {
			return fmt.Errorf("find overlapping periods: %w", err)
		}
		if len(overlapping) > 0 {
			return apperror.NewValidation("period overlaps an existing period").
				WithDetail("period_id", overlapping[0].ID).
				WithDetail("period", overlapping[0].Label())
		}
		return g.repo.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "fiscal period created", "period_id", p.ID, "period", p.Label())
	return p, nil
}

// EnsureYear creates the monthly periods of year that are not covered yet
// and returns all periods of the year.
func (g *Guard) EnsureYear(ctx context.Context, companyID id.ID, year int) ([]Period, error) {
	if id.IsNil(companyID) {
		return nil, apperror.NewValidation("company_id is required")
	}
	err := retry.InTransaction(ctx, g.txManager, g.retry, func(ctx context.Context) error {
		for m := time.January; m <= time.December; m++ {
			start := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
			end := MonthEnd(start)
			overlapping, err := g.repo.FindOverlapping(ctx, companyID, start, end)
			if err != nil {
				return fmt.Errorf("find overlapping periods: %w", err)
			}
			if len(overlapping) > 0 {
				continue
			}
			now := time.Now().UTC()
			if err := g.repo.Create(ctx, &Period{
				ID:        id.New(),
				CompanyID: companyID,
				StartDate: start,
				EndDate:   end,
				Status:    StatusOpen,
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g.ListPeriods(ctx, companyID, year)
}

// ListPeriods returns the periods intersecting year, ordered by start date.
func (g *Guard) ListPeriods(ctx context.Context, companyID id.ID, year int) ([]Period, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return g.repo.List(ctx, companyID, from, to)
}

// GetPeriod returns one period.
func (g *Guard) GetPeriod(ctx context.Context, companyID, periodID id.ID) (*Period, error) {
	return g.repo.Get(ctx, companyID, periodID, LockNone)
}

// Close moves a period forward to soft_close or hard_close.
func (g *Guard) Close(ctx context.Context, companyID, periodID id.ID, target Status) (*Period, error) {
	ctx, span := tracer.Start(ctx, "periods.Close",
		trace.WithAttributes(
			attribute.String("period.id", periodID.String()),
			attribute.String("period.target", string(target)),
		))
	defer span.End()

	if target != StatusSoftClose && target != StatusHardClose {
		return nil, apperror.NewValidation(fmt.Sprintf("close target must be %s or %s", StatusSoftClose, StatusHardClose))
	}

	var result *Period
	err := retry.InTransaction(ctx, g.txManager, g.retry, func(ctx context.Context) error {
		p, err := g.repo.Get(ctx, companyID, periodID, LockUpdate)
		if err != nil {
			return err
		}
		from := p.Status
		if !CanClose(from, target) {
			return apperror.NewInvalidPeriodTransition(p.ID, string(from), string(target))
		}

		now := time.Now().UTC()
		actor := actorOf(ctx)
		p.Status = target
		p.ClosedAt = &now
		p.ClosedBy = actor
		p.UpdatedAt = now
		if err := g.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update period: %w", err)
		}

		if err := g.recordTransition(ctx, p, audit.ActionClosePeriod, from, ""); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "fiscal period closed",
		"period_id", result.ID,
		"period", result.Label(),
		"status", result.Status,
	)
	return result, nil
}

// Reopen returns a closed period to open. It is the only way back from
// soft_close or hard_close; it requires a reason and always leaves an audit
// record. Entries posted earlier are not revalidated.
func (g *Guard) Reopen(ctx context.Context, companyID, periodID id.ID, reason, actorID string) (*Period, error) {
	ctx, span := tracer.Start(ctx, "periods.Reopen",
		trace.WithAttributes(attribute.String("period.id", periodID.String())))
	defer span.End()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.NewValidation("reopen requires a reason")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, apperror.NewValidation("reopen requires an actor")
	}

	var result *Period
	err := retry.InTransaction(ctx, g.txManager, g.retry, func(ctx context.Context) error {
		p, err := g.repo.Get(ctx, companyID, periodID, LockUpdate)
		if err != nil {
			return err
		}
		from := p.Status
		if from == StatusOpen {
			return apperror.NewInvalidPeriodTransition(p.ID, string(from), string(StatusOpen))
		}

		now := time.Now().UTC()
		p.Status = StatusOpen
		p.ReopenedAt = &now
		p.ReopenedBy = actorID
		p.ReopenReason = reason
		p.UpdatedAt = now
		if err := g.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update period: %w", err)
		}

		if err := g.recordTransition(ctx, p, audit.ActionReopenPeriod, from, reason); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Warn(ctx, "fiscal period reopened",
		"period_id", result.ID,
		"period", result.Label(),
		"reopened_by", actorID,
		"reason", reason,
	)
	return result, nil
}

// DeletePeriod removes a period no ledger entry references.
func (g *Guard) DeletePeriod(ctx context.Context, companyID, periodID id.ID) error {
	return retry.InTransaction(ctx, g.txManager, g.retry, func(ctx context.Context) error {
		p, err := g.repo.Get(ctx, companyID, periodID, LockUpdate)
		if err != nil {
			return err
		}
		n, err := g.entries.CountEntriesInPeriod(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("count entries in period: %w", err)
		}
		if n > 0 {
			return apperror.NewConflict("period is referenced by ledger entries").
				WithDetail("period_id", p.ID).
				WithDetail("entries", n)
		}
		return g.repo.Delete(ctx, companyID, periodID)
	})
}

func (g *Guard) recordTransition(ctx context.Context, p *Period, action audit.Action, from Status, reason string) error {
	actor := actorOf(ctx)
	if action == audit.ActionReopenPeriod {
		actor = p.ReopenedBy
	}

	changes := map[string]any{
		"period": p.Label(),
		"from":   from,
		"to":     p.Status,
	}
	if reason != "" {
		changes["reason"] = reason
	}
	if err := g.audit.Record(ctx, audit.Stamp(ctx, audit.Record{
		CompanyID:  p.CompanyID,
		EntityType: "fiscal_period",
		EntityID:   p.ID,
		Action:     action,
		ActorID:    actor,
		Changes:    changes,
	})); err != nil {
		return fmt.Errorf("record audit: %w", err)
	}

	if err := g.events.Publish(ctx, events.Event{
		AggregateType: events.AggregateFiscalPeriod,
		AggregateID:   p.ID,
		EventType:     events.TypePeriodStatusChanged,
		Payload: StatusChanged{
			PeriodID:  p.ID,
			CompanyID: p.CompanyID,
			Period:    p.Label(),
			From:      from,
			To:        p.Status,
			ActorID:   actor,
			Reason:    reason,
		},
	}); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func actorOf(ctx context.Context) string {
	return appctx.GetActorID(ctx)
}
