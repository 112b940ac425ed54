package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const disabledMessage = "Online payments are currently disabled"

// OrderPayments reads stored orders and records captured payments on them.
type OrderPayments interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	MarkPaid(ctx context.Context, id string, ref domain.PaymentRef, now time.Time) (*domain.Order, error)
}

type Handler struct {
	client *RazorpayClient
	orders OrderPayments
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler serves the Razorpay endpoints. A nil client means payments are
// switched off and every payment call answers 503.
func NewHandler(client *RazorpayClient, orders OrderPayments, logger *slog.Logger) *Handler {
	return &Handler{
		client: client,
		orders: orders,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type configResponse struct {
	Enabled bool   `json:"enabled"`
	KeyID   string `json:"keyId,omitempty"`
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		h.writeJSON(w, http.StatusOK, configResponse{Enabled: false})
		return
	}
	h.writeJSON(w, http.StatusOK, configResponse{Enabled: true, KeyID: h.client.KeyID()})
}

type createOrderRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Receipt string          `json:"receipt"`
}

func (h *Handler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		h.writeError(w, http.StatusServiceUnavailable, disabledMessage)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	order, err := h.client.CreateOrder(r.Context(), req.Amount, strings.TrimSpace(req.Receipt))
	if err != nil {
		if errors.Is(err, ErrInvalidAmount) {
			h.writeError(w, http.StatusBadRequest, "invalid amount")
			return
		}
		h.logger.Error("failed to create razorpay order", "error", err, "amount", req.Amount.String())
		h.writeError(w, http.StatusBadGateway, "payment gateway error")
		return
	}

	h.logger.Info("razorpay order created", "amount", req.Amount.String(), "receipt", req.Receipt)
	h.writeJSON(w, http.StatusOK, order)
}

type verifyRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	OrderID           string `json:"orderId"`
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		h.writeError(w, http.StatusServiceUnavailable, disabledMessage)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.client.VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		h.logger.Warn("razorpay signature rejected", "razorpay_order_id", req.RazorpayOrderID)
		h.writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if orderID := strings.TrimSpace(req.OrderID); orderID != "" {
		order, err := h.orders.Get(r.Context(), orderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				h.writeError(w, http.StatusNotFound, "order not found")
				return
			}
			h.logger.Error("failed to get order", "error", err, "order_id", orderID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if err := h.client.VerifyAmount(r.Context(), req.RazorpayOrderID, order.Totals.Total); err != nil {
			if errors.Is(err, domain.ErrPaymentMismatch) {
				h.logger.Warn("razorpay amount rejected", "error", err, "order_id", orderID)
				h.writeError(w, http.StatusBadRequest, "payment amount mismatch")
				return
			}
			h.logger.Error("failed to check razorpay amount", "error", err, "order_id", orderID)
			h.writeError(w, http.StatusBadGateway, "payment gateway error")
			return
		}

		ref := domain.PaymentRef{
			Provider:  string(domain.PaymentRazorpay),
			OrderID:   req.RazorpayOrderID,
			PaymentID: req.RazorpayPaymentID,
		}
		if _, err := h.orders.MarkPaid(r.Context(), orderID, ref, h.now()); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				h.writeError(w, http.StatusNotFound, "order not found")
				return
			}
			h.logger.Error("failed to mark order paid", "error", err, "order_id", orderID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		h.logger.Info("order paid", "order_id", orderID, "razorpay_payment_id", req.RazorpayPaymentID)
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
