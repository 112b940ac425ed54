package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type Identity struct {
	Email   string
	IsAdmin bool
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Authenticator resolves the caller from a bearer token or the admin secret header.
type Authenticator struct {
	tokens      *TokenIssuer
	adminEmail  string
	adminSecret string
	logger      *slog.Logger
}

func NewAuthenticator(tokens *TokenIssuer, adminEmail, adminSecret string, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		tokens:      tokens,
		adminEmail:  strings.ToLower(adminEmail),
		adminSecret: adminSecret,
		logger:      logger,
	}
}

func (a *Authenticator) IsAdmin(email string) bool {
	return a.adminEmail != "" && strings.EqualFold(email, a.adminEmail)
}

func (a *Authenticator) Identify(r *http.Request) (Identity, bool) {
	if secret := r.Header.Get("X-Admin-Secret"); secret != "" && a.adminSecret != "" {
		if subtle.ConstantTimeCompare([]byte(secret), []byte(a.adminSecret)) == 1 {
			return Identity{Email: a.adminEmail, IsAdmin: true}, true
		}
		return Identity{}, false
	}

	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return Identity{}, false
	}
	email, err := a.tokens.Parse(strings.TrimSpace(raw))
	if err != nil {
		a.logger.Debug("rejected bearer token", "error", err)
		return Identity{}, false
	}
	return Identity{Email: email, IsAdmin: a.IsAdmin(email)}, true
}

func (a *Authenticator) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.Identify(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r.WithContext(WithIdentity(r.Context(), id)))
	}
}

func (a *Authenticator) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.Identify(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !id.IsAdmin {
			a.logger.Warn("admin route refused", "email", id.Email, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r.WithContext(WithIdentity(r.Context(), id)))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
