package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaEmitter publishes events to a single Kafka topic, keyed by account
// id so per-account ordering is preserved within a partition.
type KafkaEmitter struct {
	writer *kafka.Writer
	logger *slog.Logger
}

var _ Emitter = (*KafkaEmitter)(nil)

// NewKafkaEmitter builds an emitter targeting topic on the given brokers.
func NewKafkaEmitter(brokers []string, topic string, logger *slog.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
		logger: logger,
	}
}

func (k *KafkaEmitter) Emit(ctx context.Context, e Event) error {
	data, err := e.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.AccountID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("event_type", e.Type),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}

	k.logger.DebugContext(ctx, "event published",
		slog.String("event_type", e.Type),
		slog.String("account_id", e.AccountID),
	)
	return nil
}

func (k *KafkaEmitter) Close() error { return k.writer.Close() }
