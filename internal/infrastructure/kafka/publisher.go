package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/honeynil/RentalOrderService/internal/models"
	pkgerrors "github.com/honeynil/RentalOrderService/pkg/errors"
)

// EventPublisher emits committed status transitions to the events topic,
// keyed by entity so a single order's history stays ordered per partition.
type EventPublisher struct {
	producer KafkaProducer
	topic    string
}

func NewEventPublisher(producer KafkaProducer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic}
}

func (p *EventPublisher) PublishStatus(ctx context.Context, event models.StatusEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}
	key := fmt.Sprintf("%s-%d", event.Entity, event.EntityID)
	return p.producer.Send(ctx, p.topic, key, value)
}

// NotificationPublisher queues notifications for the mail consumer instead
// of calling the mail provider inline.
type NotificationPublisher struct {
	producer KafkaProducer
	topic    string
}

func NewNotificationPublisher(producer KafkaProducer, topic string) *NotificationPublisher {
	return &NotificationPublisher{producer: producer, topic: topic}
}

func (p *NotificationPublisher) Notify(ctx context.Context, n models.Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := p.producer.Send(ctx, p.topic, fmt.Sprintf("user-%d", n.RecipientID), value); err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrNotifierUnavailable, err)
	}
	return nil
}
