package services

import (
	"context"
	"time"
)

const (
	OrderEventPlaced          = "order.placed"
	OrderEventPaid            = "order.paid"
	OrderEventCancelled       = "order.cancelled"
	OrderEventStatusChanged   = "order.status_changed"
	OrderEventReturnRequested = "order.return_requested"
	OrderEventReturnProcessed = "order.return_processed"
)

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	UserID         string
	PaymentMethod  string
	PreviousStatus string
	CurrentStatus  string
	TotalPrice     int64
	OccurredAt     time.Time
	Metadata       map[string]string
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

type eventLogger func(ctx context.Context, event string, fields map[string]any)

// publishOrderEvent never fails the calling operation; the state change is already committed.
func publishOrderEvent(ctx context.Context, publisher OrderEventPublisher, logger eventLogger, event OrderEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishOrderEvent(ctx, event); err != nil {
		logger(ctx, "order.event.publish_failed", map[string]any{
			"eventType": event.Type,
			"orderId":   event.OrderID,
			"error":     err.Error(),
		})
	}
}

func orderEvent(eventType string, order Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentMethod: string(order.PaymentMethod),
		CurrentStatus: string(order.Status),
		TotalPrice:    order.TotalPrice,
		OccurredAt:    at,
	}
}

func noopLogger(context.Context, string, map[string]any) {}
