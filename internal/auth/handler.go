package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/mailer"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const (
	errInvalidCode = "Invalid or expired code"
	errThrottled   = "too many requests, try again later"
)

type Handler struct {
	codes     CodeStore
	tokens    *TokenIssuer
	limiter   *Limiter
	attempts  *Limiter
	mail      mailer.Sender
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	storeName string
	codeTTL   time.Duration
	now       func() time.Time
}

type HandlerConfig struct {
	StoreName string
	CodeTTL   time.Duration
	// VerifyLimiter caps verify-otp calls per email. Nil allows five and
	// then one a minute.
	VerifyLimiter *Limiter
}

func NewHandler(codes CodeStore, tokens *TokenIssuer, limiter *Limiter, mail mailer.Sender, metrics *telemetry.Metrics, logger *slog.Logger, cfg HandlerConfig) *Handler {
	attempts := cfg.VerifyLimiter
	if attempts == nil {
		attempts = NewLimiter(time.Minute, 5)
	}
	return &Handler{
		codes:     codes,
		tokens:    tokens,
		limiter:   limiter,
		attempts:  attempts,
		mail:      mail,
		metrics:   metrics,
		logger:    logger,
		storeName: cfg.StoreName,
		codeTTL:   cfg.CodeTTL,
		now:       time.Now,
	}
}

type requestOTPRequest struct {
	Email string `json:"email"`
}

func (h *Handler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !domain.ValidEmail(req.Email) {
		h.writeError(w, http.StatusBadRequest, "valid email required")
		return
	}
	email := domain.NormalizeEmail(req.Email)

	now := h.now()
	if h.limiter != nil && !h.limiter.Allow(email, now) {
		h.logger.Warn("otp request throttled", "email", email)
		h.writeError(w, http.StatusTooManyRequests, errThrottled)
		return
	}

	code, err := GenerateCode()
	if err != nil {
		h.logger.Error("failed to generate otp", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.codes.Save(r.Context(), email, code, now.Add(h.codeTTL)); err != nil {
		h.logger.Error("failed to save otp", "error", err, "email", email)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.metrics.OTPIssued(r.Context())

	msg := mailer.OTPCode(h.storeName, email, code, h.codeTTL)
	go h.deliver(context.WithoutCancel(r.Context()), msg)

	h.logger.Info("otp issued", "email", email)
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) deliver(ctx context.Context, msg mailer.Message) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := h.mail.Send(ctx, msg); err != nil {
		h.logger.Error("failed to send otp mail", "error", err, "to", msg.To)
	}
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type verifyOTPResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func (h *Handler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := domain.NormalizeEmail(req.Email)
	code := strings.TrimSpace(req.Code)
	if email == "" || code == "" {
		h.writeError(w, http.StatusBadRequest, errInvalidCode)
		return
	}

	now := h.now()
	if !h.attempts.Allow(email, now) {
		h.logger.Warn("otp verify throttled", "email", email)
		h.writeError(w, http.StatusTooManyRequests, errThrottled)
		return
	}

	ok, err := h.codes.Consume(r.Context(), email, code, now)
	if err != nil {
		h.logger.Error("failed to verify otp", "error", err, "email", email)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !ok {
		h.logger.Info("otp rejected", "email", email)
		h.writeError(w, http.StatusBadRequest, errInvalidCode)
		return
	}

	token, _, err := h.tokens.Issue(email)
	if err != nil {
		h.logger.Error("failed to issue token", "error", err, "email", email)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.metrics.OTPVerified(r.Context())

	h.logger.Info("otp verified", "email", email)
	h.writeJSON(w, http.StatusOK, verifyOTPResponse{Token: token, Email: email})
}

type meResponse struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	h.writeJSON(w, http.StatusOK, meResponse{Email: id.Email, IsAdmin: id.IsAdmin})
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
