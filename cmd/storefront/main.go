package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/logging"
	"github.com/joao-fontenele/storefront/internal/mailer"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/payments"
	"github.com/joao-fontenele/storefront/internal/returns"
	"github.com/joao-fontenele/storefront/internal/server"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const serviceName = "storefront"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, serviceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	metrics, err := telemetry.NewMetrics(otel.Meter(serviceName))
	if err != nil {
		logger.Error("failed to create instruments", "error", err)
		os.Exit(1)
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	secret := []byte(cfg.Auth.TokenSecret)
	if len(secret) == 0 {
		secret, err = auth.RandomSecret()
		if err != nil {
			logger.Error("failed to generate token secret", "error", err)
			os.Exit(1)
		}
		logger.Warn("TOKEN_SECRET not set, using a per-process key; tokens will not survive a restart")
	}
	tokens := auth.NewTokenIssuer(secret, serviceName, cfg.Auth.TokenTTL)
	authn := auth.NewAuthenticator(tokens, cfg.Store.AdminEmail, cfg.Auth.AdminSecret, logger)

	mail := mailer.New(cfg.SMTP, cfg.Store.FromEmail, logger)

	notifier, closeNotifier := newNotifier(cfg, mail, logger)
	defer closeNotifier()

	var (
		razorpay *payments.RazorpayClient
		verifier orders.PaymentVerifier
	)
	if cfg.PaymentsEnabled() {
		razorpay = payments.NewRazorpayClient(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
		verifier = razorpay
	} else {
		logger.Info("online payments disabled")
	}

	handler := server.New(server.Handlers{
		Auth: authn,
		OTP: auth.NewHandler(st.codes, tokens, auth.NewLimiter(20*time.Second, 3), mail, metrics, logger,
			auth.HandlerConfig{
				StoreName:     cfg.Store.Name,
				CodeTTL:       cfg.Auth.OTPTTL,
				VerifyLimiter: auth.NewLimiter(time.Minute, cfg.Auth.OTPVerifyAttempts),
			}),
		Catalog:  catalog.NewHandler(st.products, logger),
		Orders:   orders.NewHandler(st.orders, notifier, verifier, metrics, logger),
		Returns:  returns.NewHandler(st.returns, mail, metrics, logger, cfg.Store.Name, cfg.Store.ReturnsEmail),
		Payments: payments.NewHandler(razorpay, st.orders, logger),
		Metrics:  metricsHandler,
	}, server.Options{
		ServiceName:    serviceName,
		Mode:           st.mode,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting storefront", "port", cfg.Port, "mode", st.mode, "mail", mail.Enabled())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
