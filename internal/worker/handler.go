package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/mailer"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

type OrderMailer interface {
	Messages(order *domain.Order) []mailer.Message
	Send(ctx context.Context, msg mailer.Message) error
}

// OrderMailHandler sends order mails for order.placed events. Each mail is
// retried on its own, so a failing owner alert never resends the customer
// confirmation. Mails that still fail are logged and the event is done.
type OrderMailHandler struct {
	mailer  OrderMailer
	logger  *slog.Logger
	backoff func() backoff.BackOff
}

func NewOrderMailHandler(mailer OrderMailer, logger *slog.Logger) *OrderMailHandler {
	return &OrderMailHandler{
		mailer: mailer,
		logger: logger,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxElapsedTime = time.Minute
			return backoff.WithMaxRetries(b, 4)
		},
	}
}

func (h *OrderMailHandler) Handle(ctx context.Context, msg messaging.Message) error {
	if msg.EventType != "" && msg.EventType != messaging.EventOrderPlaced {
		h.logger.Debug("ignoring event", "event_type", msg.EventType, "key", msg.Key)
		return nil
	}

	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal order placed event: %w", err))
	}
	if event.Order.ID == "" {
		return messaging.Permanent(fmt.Errorf("order placed event %q has no order", msg.Key))
	}

	h.logger.Info("processing order placed event", "order_id", event.Order.ID)

	var failed int
	for _, mail := range h.mailer.Messages(&event.Order) {
		err := h.send(ctx, mail)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failed++
		h.logger.Error("giving up on order mail",
			"error", err,
			"order_id", event.Order.ID,
			"to", mail.To,
			"invalid", errors.Is(err, mailer.ErrInvalidMessage),
		)
	}

	h.logger.Info("order mail complete", "order_id", event.Order.ID, "failed", failed)
	return nil
}

func (h *OrderMailHandler) send(ctx context.Context, mail mailer.Message) error {
	return backoff.Retry(func() error {
		err := h.mailer.Send(ctx, mail)
		if errors.Is(err, mailer.ErrInvalidMessage) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(h.backoff(), ctx))
}
