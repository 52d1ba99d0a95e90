package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"contabil/internal/core/id"
	"contabil/internal/domain/audit"
	"contabil/internal/domain/events"
)

// Outbox implements events.Publisher. Messages live in the transaction
// snapshot, so a rollback drops them with the change they describe.
type Outbox struct{ s *Store }

var _ events.Publisher = (*Outbox)(nil)

// Publish implements events.Publisher.
func (o *Outbox) Publish(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	msg := events.Message{
		ID:            id.New(),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
	return o.s.write(ctx, func(st *state) error {
		st.outbox = append(st.outbox, msg)
		return nil
	})
}

// Messages returns the stored messages in publish order.
func (o *Outbox) Messages() []events.Message {
	var out []events.Message
	o.s.read(func(st *state) {
		out = append(out, st.outbox...)
	})
	return out
}

// Drain hands every message to h and removes the delivered ones. It stops at
// the first failure so delivery order is kept.
func (o *Outbox) Drain(ctx context.Context, h events.Handler) (int, error) {
	delivered := 0
	for _, msg := range o.Messages() {
		if err := h.Handle(ctx, &msg); err != nil {
			return delivered, fmt.Errorf("handle %s: %w", msg.EventType, err)
		}
		msgID := msg.ID
		if err := o.s.write(ctx, func(st *state) error {
			for i := range st.outbox {
				if st.outbox[i].ID == msgID {
					st.outbox = append(st.outbox[:i], st.outbox[i+1:]...)
					break
				}
			}
			return nil
		}); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

// AuditLog implements audit.Recorder.
type AuditLog struct{ s *Store }

var _ audit.Recorder = (*AuditLog)(nil)

// Record implements audit.Recorder.
func (a *AuditLog) Record(ctx context.Context, rec audit.Record) error {
	rec = audit.Stamp(ctx, rec)
	return a.s.write(ctx, func(st *state) error {
		st.audit = append(st.audit, rec)
		return nil
	})
}

// Records returns the stored audit records, oldest first.
func (a *AuditLog) Records() []audit.Record {
	var out []audit.Record
	a.s.read(func(st *state) {
		out = append(out, st.audit...)
	})
	return out
}
