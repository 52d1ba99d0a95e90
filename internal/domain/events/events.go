// Package events defines the domain events the accounting core emits through
// the transactional outbox.
package events

import (
	"context"
	"time"

	"contabil/internal/core/id"
)

// Event types.
const (
	TypeEntryPosted         = "EntryPosted"
	TypeEntryReversed       = "EntryReversed"
	TypePeriodStatusChanged = "PeriodStatusChanged"
	TypeVatTransferred      = "VatTransferred"
)

// Aggregate types.
const (
	AggregateLedgerEntry  = "LedgerEntry"
	AggregateFiscalPeriod = "FiscalPeriod"
	AggregateDeferredVat  = "DeferredVatLink"
)

// Event is published in the same transaction as the change it describes.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher writes events. Implementations must use the transaction in ctx
// so that a rolled-back change never emits an event.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Message is an event as stored in the outbox, payload already encoded.
type Message struct {
	ID            id.ID
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       []byte
	RetryCount    int
	CreatedAt     time.Time
}

// Handler delivers outbox messages to a broker.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}
