package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const paymentsDisabled = "Online payments are currently disabled"

type Handler struct {
	repo     Repository
	notifier Notifier
	verifier PaymentVerifier
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler wires the order endpoints. verifier may be nil when online
// payments are disabled.
func NewHandler(repo Repository, notifier Notifier, verifier PaymentVerifier, metrics *telemetry.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		notifier: notifier,
		verifier: verifier,
		metrics:  metrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type createOrderResponse struct {
	ID string `json:"id"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.PlaceOrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := req.Build(h.now())
	if err != nil {
		h.logger.Info("order rejected", "error", err)
		h.writeError(w, http.StatusBadRequest, validationCode(err))
		return
	}

	if proof := req.Payment; proof != nil {
		if h.verifier == nil {
			h.writeError(w, http.StatusServiceUnavailable, paymentsDisabled)
			return
		}
		if !h.verifier.VerifySignature(proof.RazorpayOrderID, proof.RazorpayPaymentID, proof.RazorpaySignature) {
			h.logger.Warn("order payment signature rejected", "razorpay_order_id", proof.RazorpayOrderID)
			h.writeError(w, http.StatusBadRequest, "invalid_payment_signature")
			return
		}
		if err := h.verifier.VerifyAmount(r.Context(), proof.RazorpayOrderID, order.Totals.Total); err != nil {
			if errors.Is(err, domain.ErrPaymentMismatch) {
				h.logger.Warn("order payment amount rejected", "error", err, "razorpay_order_id", proof.RazorpayOrderID)
				h.writeError(w, http.StatusBadRequest, domain.ErrPaymentMismatch.Error())
				return
			}
			h.logger.Error("failed to check payment amount", "error", err, "razorpay_order_id", proof.RazorpayOrderID)
			h.writeError(w, http.StatusBadGateway, "payment gateway error")
			return
		}
		order.PaymentMethod = domain.PaymentRazorpay
		order.PaymentStatus = domain.PaymentPaid
		order.Payment = &domain.PaymentRef{
			Provider:  string(domain.PaymentRazorpay),
			OrderID:   proof.RazorpayOrderID,
			PaymentID: proof.RazorpayPaymentID,
		}
	}

	created, err := h.repo.Create(r.Context(), order)
	if err != nil {
		h.logger.Error("failed to create order", "error", err, "request_id", order.RequestID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !created {
		h.metrics.OrderReplayed(r.Context())
		h.logger.Info("order replayed", "order_id", order.ID, "request_id", order.RequestID)
		h.writeJSON(w, http.StatusOK, createOrderResponse{ID: order.ID})
		return
	}

	h.metrics.OrderPlaced(r.Context())
	if h.notifier != nil {
		h.notifier.OrderPlaced(r.Context(), order)
	}

	h.logger.Info("order created",
		"order_id", order.ID,
		"request_id", order.RequestID,
		"total", order.Totals.Total.String(),
		"payment_method", order.PaymentMethod,
	)
	h.writeJSON(w, http.StatusCreated, createOrderResponse{ID: order.ID})
}

func validationCode(err error) string {
	for _, known := range []error{
		domain.ErrMissingRequiredFields,
		domain.ErrNoItems,
		domain.ErrInvalidEmail,
		domain.ErrInvalidPaymentMethod,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "invalid order"
}

type myOrdersResponse struct {
	Email   string         `json:"email"`
	IsAdmin bool           `json:"isAdmin"`
	Orders  []domain.Order `json:"orders"`
}

func (h *Handler) HandleMine(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	var orders []domain.Order
	var err error
	if id.IsAdmin {
		orders, err = h.repo.List(r.Context())
	} else {
		orders, err = h.repo.ListByEmail(r.Context(), id.Email)
	}
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "email", id.Email)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, myOrdersResponse{Email: id.Email, IsAdmin: id.IsAdmin, Orders: orders})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	if orderID == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.repo.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to get order", "error", err, "order_id", orderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	id, _ := auth.IdentityFrom(r.Context())
	if !id.IsAdmin && !order.VisibleTo(id.Email) {
		h.writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	if orderID == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := domain.ParseFulfillmentStatus(req.Status)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidStatus.Error())
		return
	}

	order, from, err := h.repo.UpdateStatus(r.Context(), orderID, status, h.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("failed to update order status", "error", err, "order_id", orderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "from", from, "to", order.Status)
	h.writeJSON(w, http.StatusOK, order)
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
