package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/honeynil/UsersLedgerService/internal/models"
	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// TransactionSender executes transaction requests read from Kafka.
type TransactionSender interface {
	SendTransaction(ctx context.Context, req models.TransactionRequest) (*models.Transaction, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
)

type Consumer struct {
	reader     messageReader
	sender     TransactionSender
	retryDelay time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, sender TransactionSender) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		sender:     sender,
		retryDelay: defaultRetryDelay,
	}
}

// Consume reads transaction requests until ctx is cancelled. An offset is
// committed only once its request was applied or rejected for good, so a
// request interrupted by shutdown is redelivered.
func (c *Consumer) Consume(ctx context.Context) {
	delay := c.retryDelay
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Kafka consumer stopped")
				return
			}
			slog.Error("failed to fetch Kafka message", "error", err, "retry_in", delay)
			if !sleep(ctx, delay) {
				slog.Info("Kafka consumer stopped")
				return
			}
			delay = nextDelay(delay)
			continue
		}
		delay = c.retryDelay

		slog.Info("Kafka message received", "topic", msg.Topic, "key", string(msg.Key), "offset", msg.Offset)
		if !c.process(ctx, msg) {
			slog.Info("Kafka consumer stopped", "uncommitted_offset", msg.Offset)
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			slog.Error("failed to commit Kafka offset", "offset", msg.Offset, "error", err)
		}
	}
}

// process retries internal failures with backoff. It returns false when ctx
// ends before msg was handled.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	delay := c.retryDelay
	for {
		err := c.handleMessage(ctx, msg)
		if err == nil {
			return true
		}
		slog.Error("failed to process transaction request", "offset", msg.Offset, "retry_in", delay, "error", err)
		if !sleep(ctx, delay) {
			return false
		}
		delay = nextDelay(delay)
	}
}

// handleMessage returns an error only for failures worth retrying. Bad
// payloads and rejected requests are logged and count as handled.
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var req models.TransactionRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		slog.Warn("failed to unmarshal transaction request", "offset", msg.Offset, "error", err)
		return nil
	}

	tx, err := c.sender.SendTransaction(ctx, req)
	switch {
	case err == nil:
		slog.Info("transaction request processed", "offset", msg.Offset, "transaction_id", tx.ID, "type", tx.Type)
		return nil
	case pkgerrors.IsDomain(err):
		slog.Warn("transaction request rejected", "offset", msg.Offset, "type", req.Type, "error", err)
		return nil
	default:
		return err
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDelay(d time.Duration) time.Duration {
	if d *= 2; d > maxRetryDelay || d <= 0 {
		return maxRetryDelay
	}
	return d
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
