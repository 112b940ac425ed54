package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/mailer"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/returns"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const otpPurgeInterval = 10 * time.Minute

type stores struct {
	mode     string
	products catalog.Repository
	orders   orders.Repository
	returns  returns.Repository
	codes    auth.CodeStore
	closers  []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openStores picks Postgres when DATABASE_URL is set and process memory
// otherwise. REDIS_URL moves OTP codes to Redis in either mode.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	s := &stores{}

	if cfg.MemoryMode() {
		logger.Warn("DATABASE_URL not set, running with in-memory stores; data is lost on restart")
		s.mode = "memory"
		s.products = catalog.NewMemoryRepository()
		s.orders = orders.NewMemoryRepository()
		s.returns = returns.NewMemoryRepository()
		s.codes = auth.NewMemoryCodeStore()
	} else {
		db, err := telemetry.OpenDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		s.mode = "postgres"
		s.products = catalog.NewProductRepository(db)
		s.orders = orders.NewOrderRepository(db)
		s.returns = returns.NewReturnRepository(db)
		s.codes = postgresCodes(ctx, db, logger)
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			s.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		s.closers = append(s.closers, client.Close)
		s.codes = auth.NewRedisCodeStore(client)
		logger.Info("otp codes stored in redis")
	}

	return s, nil
}

func postgresCodes(ctx context.Context, db *sql.DB, logger *slog.Logger) auth.CodeStore {
	codes := auth.NewPostgresCodeStore(db)
	go codes.RunPurger(ctx, otpPurgeInterval, logger)
	return codes
}

// newNotifier publishes order events to Kafka when brokers are configured,
// leaving the mails to cmd/notifier. Without Kafka the API mails directly.
func newNotifier(cfg *config.Config, mail mailer.Sender, logger *slog.Logger) (orders.Notifier, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return notify.NewMail(mail, cfg.Store.Name, cfg.Store.OrdersEmail, logger), func() {}
	}

	producer := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderPlaced)
	logger.Info("publishing order events", "brokers", cfg.KafkaBrokers, "topic", messaging.TopicOrderPlaced)
	return notify.NewKafka(producer, logger), func() { _ = producer.Close() }
}
