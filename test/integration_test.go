//go:build integration

package test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/mailer"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/returns"
	"github.com/joao-fontenele/storefront/internal/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleOrder(t *testing.T, requestID, email string) *domain.Order {
	t.Helper()
	in := domain.PlaceOrderInput{
		Name:    "Asha",
		Email:   email,
		Address: domain.Address{Line1: "1 Main", City: "Pune", State: "MH", Zip: "411001"},
		Items: []domain.OrderItemInput{
			{ProductID: "p1", Title: "Lamp", Quantity: 2, UnitPrice: decimal.NewFromInt(100)},
			{ProductID: "p2", Title: "Shade", Quantity: 1, UnitPrice: decimal.RequireFromString("49.50")},
		},
		RequestID: requestID,
	}
	order, err := in.Build(time.Now().UTC())
	if err != nil {
		t.Fatalf("failed to build order: %v", err)
	}
	return order
}

func TestOrderRepository(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	repo := orders.NewOrderRepository(pg.OpenDB(ctx, t))

	t.Run("concurrent submissions with one requestId store one order", func(t *testing.T) {
		const n = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ids     = map[string]bool{}
			created int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				order := sampleOrder(t, "req-concurrent", "asha@example.com")
				ok, err := repo.Create(ctx, order)
				if err != nil {
					t.Errorf("create failed: %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				ids[order.ID] = true
				if ok {
					created++
				}
			}()
		}
		wg.Wait()

		if created != 1 {
			t.Errorf("expected exactly one creation, got %d", created)
		}
		if len(ids) != 1 {
			t.Errorf("expected one id across submissions, got %v", ids)
		}
	})

	t.Run("round trips items and totals", func(t *testing.T) {
		order := sampleOrder(t, "", "Asha@Example.com")
		if _, err := repo.Create(ctx, order); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		got, err := repo.Get(ctx, order.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if len(got.Items) != 2 || got.Items[0].ProductID != "p1" || got.Items[1].ProductID != "p2" {
			t.Fatalf("unexpected items: %+v", got.Items)
		}
		if !got.Totals.Total.Equal(decimal.RequireFromString("249.5")) {
			t.Errorf("expected total 249.5, got %s", got.Totals.Total)
		}
		if got.Status != domain.StatusPending || got.PaymentStatus != domain.PaymentUnpaid {
			t.Errorf("unexpected statuses %s/%s", got.Status, got.PaymentStatus)
		}
	})

	t.Run("lists by email case-insensitively", func(t *testing.T) {
		mine, err := repo.ListByEmail(ctx, "ASHA@example.com")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(mine) != 2 {
			t.Fatalf("expected 2 orders, got %d", len(mine))
		}
		if mine[0].CreatedAt.Before(mine[1].CreatedAt) {
			t.Error("expected newest first")
		}
	})

	t.Run("status and payment updates are independent", func(t *testing.T) {
		order := sampleOrder(t, "req-status", "")
		if _, err := repo.Create(ctx, order); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		updated, from, err := repo.UpdateStatus(ctx, order.ID, domain.StatusDelivered, time.Now().UTC())
		if err != nil {
			t.Fatalf("update status failed: %v", err)
		}
		if from != domain.StatusPending || updated.Status != domain.StatusDelivered {
			t.Errorf("unexpected transition %s -> %s", from, updated.Status)
		}

		paid, err := repo.MarkPaid(ctx, order.ID, domain.PaymentRef{Provider: "razorpay", OrderID: "order_1", PaymentID: "pay_1"}, time.Now().UTC())
		if err != nil {
			t.Fatalf("mark paid failed: %v", err)
		}
		if paid.PaymentStatus != domain.PaymentPaid || paid.Status != domain.StatusDelivered {
			t.Errorf("unexpected statuses %s/%s", paid.Status, paid.PaymentStatus)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		if _, _, err := repo.UpdateStatus(ctx, "missing", domain.StatusAccepted, time.Now()); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := repo.MarkPaid(ctx, "missing", domain.PaymentRef{}, time.Now()); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestProductRepository(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	repo := catalog.NewProductRepository(pg.OpenDB(ctx, t))
	compareAt := decimal.NewFromInt(999)
	lamp := &domain.Product{
		Title:          "Lamp",
		SKU:            "LAMP-1",
		Price:          decimal.NewFromInt(499),
		CompareAtPrice: &compareAt,
		Images:         []string{"https://cdn.example.com/lamp.jpg"},
	}
	if err := lamp.Validate(); err != nil {
		t.Fatalf("invalid product: %v", err)
	}
	if err := repo.Create(ctx, lamp); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	t.Run("duplicate sku", func(t *testing.T) {
		dup := &domain.Product{Title: "Other", SKU: "LAMP-1"}
		if err := dup.Validate(); err != nil {
			t.Fatalf("invalid product: %v", err)
		}
		if err := repo.Create(ctx, dup); !errors.Is(err, domain.ErrDuplicateSKU) {
			t.Errorf("expected ErrDuplicateSKU, got %v", err)
		}
	})

	t.Run("update and read back", func(t *testing.T) {
		lamp.InventoryStatus = domain.LowStock
		if err := repo.Update(ctx, lamp); err != nil {
			t.Fatalf("update failed: %v", err)
		}
		got, err := repo.Get(ctx, lamp.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.InventoryStatus != domain.LowStock {
			t.Errorf("expected LOW_STOCK, got %s", got.InventoryStatus)
		}
		if got.CompareAtPrice == nil || !got.CompareAtPrice.Equal(compareAt) {
			t.Errorf("expected compareAtPrice 999, got %v", got.CompareAtPrice)
		}
		if len(got.Images) != 1 {
			t.Errorf("expected one image, got %v", got.Images)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := repo.Delete(ctx, lamp.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := repo.Get(ctx, lamp.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete(ctx, lamp.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestReturnRepository(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	repo := returns.NewReturnRepository(pg.OpenDB(ctx, t))
	now := time.Now().UTC()
	rr := &domain.ReturnRequest{
		OrderID:   "order-1",
		Email:     "asha@example.com",
		Reasons:   []string{"damaged"},
		Status:    domain.ReturnOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, rr); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].Reasons[0] != "damaged" {
		t.Fatalf("unexpected list: %+v", list)
	}

	updated, err := repo.UpdateStatus(ctx, rr.ID, domain.ReturnResolved, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != domain.ReturnResolved {
		t.Errorf("expected resolved, got %s", updated.Status)
	}

	if _, err := repo.UpdateStatus(ctx, "missing", domain.ReturnOpen, now); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func exerciseCodeStore(ctx context.Context, t *testing.T, store auth.CodeStore) {
	t.Helper()
	now := time.Now().UTC()

	if err := store.Save(ctx, "asha@example.com", "111111", now.Add(5*time.Minute)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Save(ctx, "asha@example.com", "222222", now.Add(5*time.Minute)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if ok, err := store.Consume(ctx, "asha@example.com", "111111", now); err != nil || ok {
		t.Errorf("expected replaced code to fail, got %v %v", ok, err)
	}
	if ok, err := store.Consume(ctx, "asha@example.com", "222222", now); err != nil || !ok {
		t.Fatalf("expected latest code to verify, got %v %v", ok, err)
	}
	if ok, err := store.Consume(ctx, "asha@example.com", "222222", now); err != nil || ok {
		t.Errorf("expected code to be single use, got %v %v", ok, err)
	}
}

func TestPostgresCodeStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	store := auth.NewPostgresCodeStore(pg.OpenDB(ctx, t))
	exerciseCodeStore(ctx, t, store)

	t.Run("expired codes fail and are purged", func(t *testing.T) {
		now := time.Now().UTC()
		if err := store.Save(ctx, "late@example.com", "333333", now.Add(-time.Second)); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if ok, _ := store.Consume(ctx, "late@example.com", "333333", now); ok {
			t.Error("expected expired code to fail")
		}
		n, err := store.PurgeExpired(ctx, now)
		if err != nil {
			t.Fatalf("purge failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected one purged row, got %d", n)
		}
	})
}

func TestRedisCodeStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, cleanup := SetupRedis(ctx, t)
	defer cleanup()

	exerciseCodeStore(ctx, t, auth.NewRedisCodeStore(client))
}

type recordingMailer struct {
	delivered chan *domain.Order
}

func (m *recordingMailer) Messages(order *domain.Order) []mailer.Message {
	m.delivered <- order
	return []mailer.Message{{To: []string{order.Customer.Email}, Subject: "order " + order.ID}}
}

func (m *recordingMailer) Send(context.Context, mailer.Message) error {
	return nil
}

func TestOrderPlacedEventFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	logger := discardLogger()

	producer := messaging.NewProducer(brokers, messaging.TopicOrderPlaced)
	defer func() { _ = producer.Close() }()

	order := sampleOrder(t, "req-kafka", "asha@example.com")
	order.ID = "order-kafka-1"
	notify.NewKafka(producer, logger).OrderPlaced(ctx, order)

	mail := &recordingMailer{delivered: make(chan *domain.Order, 1)}
	handler := worker.NewOrderMailHandler(mail, logger)

	consumer := messaging.NewConsumer(brokers, messaging.TopicOrderPlaced, "integration-test", logger,
		messaging.WithStartOffset(kafkago.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = consumer.Consume(consumeCtx, handler.Handle) }()

	select {
	case got := <-mail.delivered:
		if got.ID != order.ID {
			t.Errorf("expected order %s, got %s", order.ID, got.ID)
		}
		if !got.Totals.Total.Equal(order.Totals.Total) {
			t.Errorf("expected total %s, got %s", order.Totals.Total, got.Totals.Total)
		}
		if len(got.Items) != 2 {
			t.Errorf("expected 2 items, got %d", len(got.Items))
		}
	case <-time.After(90 * time.Second):
		t.Fatal("timed out waiting for order mail")
	}
}
