package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/mailer"
)

// Mail sends the customer confirmation and the owner alert for new orders.
type Mail struct {
	sender    mailer.Sender
	storeName string
	ownerTo   string
	timeout   time.Duration
	logger    *slog.Logger
}

func NewMail(sender mailer.Sender, storeName, ownerTo string, logger *slog.Logger) *Mail {
	return &Mail{
		sender:    sender,
		storeName: storeName,
		ownerTo:   ownerTo,
		timeout:   time.Minute,
		logger:    logger,
	}
}

// OrderPlaced sends the mails in the background; failures are only logged.
func (m *Mail) OrderPlaced(ctx context.Context, order *domain.Order) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		if err := m.Deliver(ctx, order); err != nil {
			m.logger.Error("failed to send order mail", "error", err, "order_id", order.ID)
		}
	}()
}

// Messages builds the mails a new order triggers: the customer confirmation
// when the order has an email and the owner alert when an owner is set.
func (m *Mail) Messages(order *domain.Order) []mailer.Message {
	var msgs []mailer.Message
	if order.Customer.Email != "" {
		msgs = append(msgs, mailer.OrderConfirmation(m.storeName, order))
	}
	if m.ownerTo != "" {
		msgs = append(msgs, mailer.OrderAlert(m.storeName, m.ownerTo, order))
	}
	return msgs
}

func (m *Mail) Send(ctx context.Context, msg mailer.Message) error {
	return m.sender.Send(ctx, msg)
}

// Deliver sends every mail once and reports every failure.
func (m *Mail) Deliver(ctx context.Context, order *domain.Order) error {
	var errs []error
	for _, msg := range m.Messages(order) {
		if err := m.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		m.logger.Info("order mail sent", "order_id", order.ID)
	}
	return errors.Join(errs...)
}
