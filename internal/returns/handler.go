package returns

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/mailer"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

// Five images at the cap, base64 encoded, plus room for the text fields.
const maxBodyBytes = MaxImages*MaxImageBytes*4/3 + 64<<10

type Handler struct {
	repo      Repository
	mail      mailer.Sender
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	storeName string
	ownerTo   string
	now       func() time.Time
}

func NewHandler(repo Repository, mail mailer.Sender, metrics *telemetry.Metrics, logger *slog.Logger, storeName, ownerTo string) *Handler {
	return &Handler{
		repo:      repo,
		mail:      mail,
		metrics:   metrics,
		logger:    logger,
		storeName: storeName,
		ownerTo:   ownerTo,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type submitRequest struct {
	OrderID      string   `json:"orderId"`
	Email        string   `json:"email"`
	Reasons      []string `json:"reasons"`
	CustomReason string   `json:"customReason"`
	Images       []string `json:"images"`
}

type submitResponse struct {
	OK        bool   `json:"ok"`
	ID        string `json:"id"`
	Simulated bool   `json:"simulated"`
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, ErrImageTooLarge.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		h.writeError(w, http.StatusBadRequest, "orderId required")
		return
	}
	if !domain.ValidEmail(req.Email) {
		h.writeError(w, http.StatusBadRequest, "valid email required")
		return
	}

	images, err := DecodeImages(req.Images)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.now()
	rr := &domain.ReturnRequest{
		OrderID:      orderID,
		Email:        domain.NormalizeEmail(req.Email),
		Reasons:      domain.CleanReasons(req.Reasons),
		CustomReason: strings.TrimSpace(req.CustomReason),
		Images:       req.Images,
		Status:       domain.ReturnOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if rr.Images == nil {
		rr.Images = []string{}
	}

	if err := h.repo.Create(r.Context(), rr); err != nil {
		h.logger.Error("failed to store return", "error", err, "order_id", orderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.metrics.ReturnSubmitted(r.Context())

	msgs := []mailer.Message{mailer.ReturnReceipt(h.storeName, rr)}
	if h.ownerTo != "" {
		msgs = append(msgs, mailer.ReturnNotice(h.storeName, h.ownerTo, rr, images))
	}
	go h.deliver(context.WithoutCancel(r.Context()), rr.ID, msgs)

	h.logger.Info("return submitted", "return_id", rr.ID, "order_id", orderID, "images", len(images))
	h.writeJSON(w, http.StatusOK, submitResponse{OK: true, ID: rr.ID, Simulated: !h.mail.Enabled()})
}

func (h *Handler) deliver(ctx context.Context, returnID string, msgs []mailer.Message) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	for _, msg := range msgs {
		if err := h.mail.Send(ctx, msg); err != nil {
			h.logger.Error("failed to send return mail", "error", err, "return_id", returnID, "subject", msg.Subject)
		}
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list returns", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing return id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := domain.ParseReturnStatus(req.Status)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidStatus.Error())
		return
	}

	rr, err := h.repo.UpdateStatus(r.Context(), id, status, h.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "return not found")
			return
		}
		h.logger.Error("failed to update return", "error", err, "return_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("return status updated", "return_id", id, "status", status)
	h.writeJSON(w, http.StatusOK, rr)
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
