package orders

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Notifier is told about each newly created order. Implementations must not
// block the caller and handle their own failures.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *domain.Order)
}

// PaymentVerifier checks a gateway checkout callback and that the gateway
// order was raised for the order total. VerifyAmount wraps
// domain.ErrPaymentMismatch when the amounts differ.
type PaymentVerifier interface {
	VerifySignature(orderID, paymentID, signature string) bool
	VerifyAmount(ctx context.Context, gatewayOrderID string, total decimal.Decimal) error
}

// Notifiers fans an order out to several notifiers.
type Notifiers []Notifier

func (ns Notifiers) OrderPlaced(ctx context.Context, order *domain.Order) {
	for _, n := range ns {
		n.OrderPlaced(ctx, order)
	}
}
