// Package server assembles the storefront HTTP API.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/payments"
	"github.com/joao-fontenele/storefront/internal/returns"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

type Handlers struct {
	Auth     *auth.Authenticator
	OTP      *auth.Handler
	Catalog  *catalog.Handler
	Orders   *orders.Handler
	Returns  *returns.Handler
	Payments *payments.Handler
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

type Options struct {
	ServiceName    string
	Mode           string
	AllowedOrigins []string
}

func New(h Handlers, opts Options, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(fn))
	}
	user := h.Auth.RequireUser
	admin := h.Auth.RequireAdmin

	route("GET /api/health", healthHandler(opts.Mode))

	route("GET /api/products", h.Catalog.HandleList)
	route("GET /api/products/{id}", h.Catalog.HandleGet)
	route("GET /api/products/admin", admin(h.Catalog.HandleList))
	route("POST /api/products/admin", admin(h.Catalog.HandleCreate))
	route("PATCH /api/products/admin/{id}", admin(h.Catalog.HandleUpdate))
	route("DELETE /api/products/admin/{id}", admin(h.Catalog.HandleDelete))

	route("POST /api/orders", h.Orders.HandleCreate)
	route("GET /api/orders", admin(h.Orders.HandleList))
	route("GET /api/orders/me", user(h.Orders.HandleMine))
	route("GET /api/orders/{id}", user(h.Orders.HandleGet))
	route("PATCH /api/orders/{id}/status", admin(h.Orders.HandleUpdateStatus))

	route("POST /api/auth/request-otp", h.OTP.HandleRequestOTP)
	route("POST /api/auth/verify-otp", h.OTP.HandleVerifyOTP)
	route("GET /api/auth/me", user(h.OTP.HandleMe))

	route("POST /api/returns", h.Returns.HandleSubmit)
	route("GET /api/returns/admin", admin(h.Returns.HandleList))
	route("PATCH /api/returns/admin/{id}", admin(h.Returns.HandleUpdateStatus))

	route("GET /api/payments/config", h.Payments.HandleConfig)
	route("POST /api/payments/razorpay/order", h.Payments.HandleCreateOrder)
	route("POST /api/payments/razorpay/verify", h.Payments.HandleVerify)

	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	var handler http.Handler = mux
	handler = accessLog(logger, handler)
	handler = securityHeaders(handler)
	handler = newCORS(opts.AllowedOrigins).Handler(handler)

	return otelhttp.NewHandler(handler, opts.ServiceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if r.Pattern != "" {
				return r.Pattern
			}
			return r.Method + " " + r.URL.Path
		}),
	)
}

func healthHandler(mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "mode": mode})
	}
}
