package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/honeynil/UsersLedgerService/internal/models"
	"github.com/segmentio/kafka-go"
)

const EventTransactionCommitted = "transaction_committed"

// TransactionEvent is published for every committed ledger record.
type TransactionEvent struct {
	EventType   string              `json:"event_type"`
	Transaction *models.Transaction `json:"transaction"`
}

type KafkaProducer interface {
	Send(ctx context.Context, topic string, key int64, value []byte) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Send(ctx context.Context, topic string, key int64, value []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(fmt.Sprintf("%d", key)),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("failed to send Kafka message", "topic", topic, "key", key, "error", err)
		return err
	}
	slog.Info("Kafka message sent", "topic", topic, "key", key)
	return nil
}

func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		slog.Error("failed to close Kafka writer", "error", err)
		return err
	}
	slog.Info("Kafka writer closed")
	return nil
}

// EventPublisher announces committed records on a fixed topic.
type EventPublisher struct {
	producer KafkaProducer
	topic    string
}

func NewEventPublisher(producer KafkaProducer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic}
}

func (p *EventPublisher) PublishCommitted(ctx context.Context, tx *models.Transaction) error {
	data, err := json.Marshal(TransactionEvent{EventType: EventTransactionCommitted, Transaction: tx})
	if err != nil {
		return fmt.Errorf("failed to encode transaction event: %w", err)
	}
	return p.producer.Send(ctx, p.topic, tx.ID, data)
}
