package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/honeynil/RentalOrderService/internal/models"
	"github.com/segmentio/kafka-go"
)

// Notifier performs the actual delivery of a queued notification.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	deliveryAttempts = 3
	retryBackoff     = 500 * time.Millisecond
)

// Consumer drains the notifications topic into a Notifier. Offsets are
// committed only after delivery succeeded or was given up on.
type Consumer struct {
	reader   messageReader
	notifier Notifier
	topic    string
}

func NewConsumer(brokers []string, topic, groupID string, notifier Notifier) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		notifier: notifier,
		topic:    topic,
	}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				slog.Info("Kafka consumer stopped", "topic", c.topic)
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.topic, "error", err)
			continue
		}

		c.handleMessage(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			slog.Error("failed to commit Kafka message", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var n models.Notification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		slog.Error("failed to unmarshal notification", "offset", msg.Offset, "error", err)
		return
	}

	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		err := c.notifier.Notify(ctx, n)
		if err == nil {
			return
		}
		slog.Warn("notification delivery failed",
			"kind", n.Kind,
			"recipient_id", n.RecipientID,
			"attempt", attempt,
			"error", err)
		if attempt == deliveryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	slog.Error("notification dropped after retries", "kind", n.Kind, "recipient_id", n.RecipientID, "offset", msg.Offset)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
