package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Kafka message headers set on every relayed event
const (
	HeaderEventType     = "event_type"
	HeaderEventID       = "event_id"
	HeaderAggregateType = "aggregate_type"
)

// MessageWriter is the part of *kafka.Writer the relay uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRelayConfig holds the broker settings for the relay
type KafkaRelayConfig struct {
	Brokers []string
	Topic   string
}

// KafkaRelayHandler forwards every delivered ledger event to a Kafka topic.
// Messages are keyed by aggregate ID so events of one invoice stay ordered
// within a partition. A write error fails the delivery and the outbox retries
// it, so consumers must tolerate duplicates.
type KafkaRelayHandler struct {
	writer     MessageWriter
	topic      string
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewKafkaRelayHandler builds a relay writing to cfg.Brokers
func NewKafkaRelayHandler(cfg KafkaRelayConfig, serializer *EventSerializer, logger *zap.Logger) (*KafkaRelayHandler, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka relay requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka relay requires a topic")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}
	return NewKafkaRelayHandlerWithWriter(writer, cfg.Topic, serializer, logger), nil
}

// NewKafkaRelayHandlerWithWriter builds a relay on an existing writer
func NewKafkaRelayHandlerWithWriter(writer MessageWriter, topic string, serializer *EventSerializer, logger *zap.Logger) *KafkaRelayHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaRelayHandler{
		writer:     writer,
		topic:      topic,
		serializer: serializer,
		logger:     logger,
	}
}

// EventTypes returns nil: the relay receives every event
func (h *KafkaRelayHandler) EventTypes() []string {
	return nil
}

// Handle publishes the event keyed by its invoice, so one invoice's events
// land on one partition in outbox order. The topic lives on the writer.
func (h *KafkaRelayHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := h.serializer.Serialize(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(shared.StreamKeyOf(event).String()),
		Value: payload,
		Time:  event.OccurredAt().UTC(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType())},
			{Key: HeaderEventID, Value: []byte(event.EventID().String())},
			{Key: HeaderAggregateType, Value: []byte(event.AggregateType())},
		},
	}
	if err := h.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("relay %s to kafka topic %s: %w", event.EventType(), h.topic, err)
	}

	h.logger.Debug("event relayed to kafka",
		zap.String("topic", h.topic),
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
	)
	return nil
}

// Close flushes and closes the writer
func (h *KafkaRelayHandler) Close() error {
	return h.writer.Close()
}
