package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const metricNamespace = "github.com/shoestore/api/internal/services"

// orderMetrics records placement and payment confirmation counts. A nil receiver is a no-op.
type orderMetrics struct {
	placed        metric.Int64Counter
	confirmations metric.Int64Counter
}

func newOrderMetrics(meter metric.Meter) *orderMetrics {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	placed, err := meter.Int64Counter(
		"orders.placed",
		metric.WithDescription("Count of orders placed by payment method and outcome"),
	)
	if err != nil {
		return nil
	}
	confirmations, err := meter.Int64Counter(
		"payments.confirmations",
		metric.WithDescription("Count of payment callbacks by provider and result"),
	)
	if err != nil {
		return nil
	}
	return &orderMetrics{placed: placed, confirmations: confirmations}
}

func (m *orderMetrics) recordPlacement(ctx context.Context, method PaymentMethod, outcome string) {
	if m == nil {
		return
	}
	m.placed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", string(method)),
		attribute.String("outcome", outcome),
	))
}

func (m *orderMetrics) recordConfirmation(ctx context.Context, method PaymentMethod, result string) {
	if m == nil {
		return
	}
	m.confirmations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", string(method)),
		attribute.String("result", result),
	))
}
