package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/shoestore/api/internal/services"
)

// orderEventMessage is the JSON body consumers of the order events topic decode.
type orderEventMessage struct {
	Type           string            `json:"type"`
	OrderID        string            `json:"orderId"`
	UserID         string            `json:"userId,omitempty"`
	PaymentMethod  string            `json:"paymentMethod,omitempty"`
	PreviousStatus string            `json:"previousStatus,omitempty"`
	Status         string            `json:"status,omitempty"`
	TotalPrice     int64             `json:"totalPrice"`
	OccurredAt     time.Time         `json:"occurredAt"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// PubSubOrderEventPublisher publishes order lifecycle events to a Pub/Sub topic. Messages
// for one order share an ordering key so subscribers see paid before status changes.
type PubSubOrderEventPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubOrderEventPublisher enables message ordering on the topic.
func NewPubSubOrderEventPublisher(topic *pubsub.Topic) (*PubSubOrderEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order event publisher: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &PubSubOrderEventPublisher{topic: topic}, nil
}

// PublishOrderEvent blocks until the server acknowledges the message.
func (p *PubSubOrderEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	data, err := json.Marshal(orderEventMessage{
		Type:           event.Type,
		OrderID:        event.OrderID,
		UserID:         event.UserID,
		PaymentMethod:  event.PaymentMethod,
		PreviousStatus: event.PreviousStatus,
		Status:         event.CurrentStatus,
		TotalPrice:     event.TotalPrice,
		OccurredAt:     event.OccurredAt.UTC(),
		Metadata:       event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: event.OrderID,
		Attributes: map[string]string{
			"eventType": event.Type,
			"orderId":   event.OrderID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		// A failed publish pauses the ordering key until resumed.
		p.topic.ResumePublish(event.OrderID)
		return fmt.Errorf("publish %s for order %s: %w", event.Type, event.OrderID, err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubOrderEventPublisher) Stop() {
	p.topic.Stop()
}
