// Package audit defines the audit trail contract of the accounting core.
// Period reopenings, reversals and postings into soft-closed periods are
// recorded here in the same transaction as the change itself.
package audit

import (
	"context"
	"time"

	appctx "contabil/internal/core/context"
	"contabil/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionPost              Action = "post"
	ActionPostIntoSoftClose Action = "post_soft_close"
	ActionReverse           Action = "reverse"
	ActionClosePeriod       Action = "close_period"
	ActionReopenPeriod      Action = "reopen_period"
	ActionReconcile         Action = "reconcile"
	ActionUnreconcile       Action = "unreconcile"
)

// Record is one audit trail entry.
type Record struct {
	ID         id.ID
	CompanyID  id.ID
	EntityType string
	EntityID   id.ID
	Action     Action
	ActorID    string
	Changes    map[string]any
	CreatedAt  time.Time
}

// Recorder persists audit records. Implementations must write inside the
// transaction carried by ctx.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Stamp fills actor and time defaults from ctx.
func Stamp(ctx context.Context, rec Record) Record {
	if id.IsNil(rec.ID) {
		rec.ID = id.New()
	}
	if rec.ActorID == "" {
		rec.ActorID = appctx.GetActorID(ctx)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}

// StampCreated sets CreatedBy and UpdatedBy from the actor in ctx.
func StampCreated(ctx context.Context, createdBy, updatedBy *string) {
	actor := appctx.GetActorID(ctx)
	if createdBy != nil {
		*createdBy = actor
	}
	if updatedBy != nil {
		*updatedBy = actor
	}
}

// NopRecorder discards records.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, Record) error { return nil }
