// Package kafka delivers outbox messages to a Kafka topic.
package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"

	"contabil/internal/domain/events"
)

// Header names set on every produced message.
const (
	HeaderMessageID     = "message_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
)

// MessageWriter is the subset of *kafka.Writer the handler needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler implements events.Handler on top of a Kafka writer. Messages are
// keyed by aggregate id so the events of one entry, period or invoice keep
// their order within a partition.
type Handler struct {
	writer MessageWriter
}

var _ events.Handler = (*Handler)(nil)

// NewWriter builds a synchronous writer for topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// NewHandler wraps w.
func NewHandler(w MessageWriter) *Handler {
	return &Handler{writer: w}
}

// Handle implements events.Handler.
func (h *Handler) Handle(ctx context.Context, msg *events.Message) error {
	if err := h.writer.WriteMessages(ctx, ToKafka(msg)); err != nil {
		return fmt.Errorf("write %s to kafka: %w", msg.EventType, err)
	}
	return nil
}

// Close closes the underlying writer.
func (h *Handler) Close() error {
	return h.writer.Close()
}

// ToKafka converts an outbox message.
func ToKafka(msg *events.Message) kafka.Message {
	return kafka.Message{
		Key:   []byte(msg.AggregateID.String()),
		Value: msg.Payload,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderMessageID, Value: []byte(msg.ID.String())},
			{Key: HeaderEventType, Value: []byte(msg.EventType)},
			{Key: HeaderAggregateType, Value: []byte(msg.AggregateType)},
		},
	}
}
