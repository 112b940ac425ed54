package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the business counters. A nil *Metrics records nothing.
type Metrics struct {
	ordersPlaced     metric.Int64Counter
	ordersReplayed   metric.Int64Counter
	otpIssued        metric.Int64Counter
	otpVerified      metric.Int64Counter
	returnsSubmitted metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.ordersPlaced, "storefront.orders.placed", "Orders created"},
		{&m.ordersReplayed, "storefront.orders.replayed", "Order submissions answered from an existing requestId"},
		{&m.otpIssued, "storefront.otp.issued", "Login codes issued"},
		{&m.otpVerified, "storefront.otp.verified", "Login codes verified"},
		{&m.returnsSubmitted, "storefront.returns.submitted", "Return requests received"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

func (m *Metrics) OrderPlaced(ctx context.Context) {
	if m != nil {
		m.ordersPlaced.Add(ctx, 1)
	}
}

func (m *Metrics) OrderReplayed(ctx context.Context) {
	if m != nil {
		m.ordersReplayed.Add(ctx, 1)
	}
}

func (m *Metrics) OTPIssued(ctx context.Context) {
	if m != nil {
		m.otpIssued.Add(ctx, 1)
	}
}

func (m *Metrics) OTPVerified(ctx context.Context) {
	if m != nil {
		m.otpVerified.Add(ctx, 1)
	}
}

func (m *Metrics) ReturnSubmitted(ctx context.Context) {
	if m != nil {
		m.returnsSubmitted.Add(ctx, 1)
	}
}
