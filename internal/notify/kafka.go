package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

type Publisher interface {
	Publish(ctx context.Context, key, eventType string, event any) error
}

// Kafka hands new orders to the notifier process via the order.placed topic.
type Kafka struct {
	publisher Publisher
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewKafka(publisher Publisher, logger *slog.Logger) *Kafka {
	return &Kafka{
		publisher: publisher,
		timeout:   10 * time.Second,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (k *Kafka) OrderPlaced(ctx context.Context, order *domain.Order) {
	event := domain.OrderPlacedEvent{
		OrderID:   order.ID,
		Order:     *order,
		Timestamp: k.now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.timeout)
		defer cancel()
		if err := k.publisher.Publish(ctx, order.ID, messaging.EventOrderPlaced, event); err != nil {
			k.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
			return
		}
		k.logger.Debug("order placed event published", "order_id", order.ID)
	}()
}
