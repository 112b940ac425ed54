package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/storefront/internal/mailer"
)

type fakeSender struct {
	sent chan mailer.Message
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(chan mailer.Message, 16)}
}

func (f *fakeSender) Enabled() bool { return true }

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	f.sent <- msg
	return nil
}

func (f *fakeSender) next(t *testing.T) mailer.Message {
	t.Helper()
	select {
	case msg := <-f.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mail")
		return mailer.Message{}
	}
}

type testEnv struct {
	handler *Handler
	authn   *Authenticator
	tokens  *TokenIssuer
	mail    *fakeSender
	now     time.Time
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := NewTokenIssuer([]byte("secret"), "storefront", time.Hour)
	authn := NewAuthenticator(tokens, "owner@example.com", "admin-secret", logger)
	mail := newFakeSender()
	env := &testEnv{
		authn:  authn,
		tokens: tokens,
		mail:   mail,
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.handler = NewHandler(NewMemoryCodeStore(), tokens, NewLimiter(20*time.Second, 3), mail, nil, logger,
		HandlerConfig{StoreName: "Shop", CodeTTL: 5 * time.Minute})
	env.handler.now = func() time.Time { return env.now }
	tokens.now = func() time.Time { return env.now }
	return env
}

func (e *testEnv) requestOTP(t *testing.T, email string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/request-otp", strings.NewReader(`{"email":"`+email+`"}`))
	rec := httptest.NewRecorder()
	e.handler.HandleRequestOTP(rec, req)
	return rec
}

func (e *testEnv) verifyOTP(t *testing.T, email, code string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"email":"` + email + `","code":"` + code + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-otp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.HandleVerifyOTP(rec, req)
	return rec
}

func codeFrom(t *testing.T, msg mailer.Message) string {
	t.Helper()
	const marker = "Your login code is "
	i := strings.Index(msg.Text, marker)
	if i < 0 {
		t.Fatalf("no code in mail: %q", msg.Text)
	}
	return msg.Text[i+len(marker) : i+len(marker)+6]
}

func TestHandler_OTPFlow(t *testing.T) {
	t.Run("issues and verifies a code", func(t *testing.T) {
		env := newTestEnv()

		rec := env.requestOTP(t, " Asha@Example.com ")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}

		msg := env.mail.next(t)
		if msg.To[0] != "asha@example.com" {
			t.Errorf("expected mail to normalized address, got %v", msg.To)
		}

		rec = env.verifyOTP(t, "asha@example.com", codeFrom(t, msg))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp verifyOTPResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Email != "asha@example.com" {
			t.Errorf("expected email asha@example.com, got %s", resp.Email)
		}
		if email, err := env.tokens.Parse(resp.Token); err != nil || email != "asha@example.com" {
			t.Errorf("expected valid token for asha, got %q %v", email, err)
		}
	})

	t.Run("code is single use", func(t *testing.T) {
		env := newTestEnv()
		env.requestOTP(t, "a@example.com")
		code := codeFrom(t, env.mail.next(t))

		if rec := env.verifyOTP(t, "a@example.com", code); rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if rec := env.verifyOTP(t, "a@example.com", code); rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 on reuse, got %d", rec.Code)
		}
	})

	t.Run("new request invalidates previous code", func(t *testing.T) {
		env := newTestEnv()
		env.requestOTP(t, "a@example.com")
		first := codeFrom(t, env.mail.next(t))
		env.requestOTP(t, "a@example.com")
		second := codeFrom(t, env.mail.next(t))

		if first != second {
			if rec := env.verifyOTP(t, "a@example.com", first); rec.Code != http.StatusBadRequest {
				t.Errorf("expected old code to fail, got %d", rec.Code)
			}
		}
		if rec := env.verifyOTP(t, "a@example.com", second); rec.Code != http.StatusOK {
			t.Errorf("expected new code to verify, got %d", rec.Code)
		}
	})

	t.Run("failures are indistinguishable", func(t *testing.T) {
		env := newTestEnv()
		env.requestOTP(t, "a@example.com")
		code := codeFrom(t, env.mail.next(t))

		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		never := env.verifyOTP(t, "never@example.com", "123456")
		mismatch := env.verifyOTP(t, "a@example.com", wrong)
		env.now = env.now.Add(6 * time.Minute)
		expired := env.verifyOTP(t, "a@example.com", code)

		for name, rec := range map[string]*httptest.ResponseRecorder{"never issued": never, "wrong": mismatch, "expired": expired} {
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected status 400, got %d", name, rec.Code)
			}
			if strings.TrimSpace(rec.Body.String()) != `{"error":"Invalid or expired code"}` {
				t.Errorf("%s: unexpected body %s", name, rec.Body.String())
			}
		}
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		env := newTestEnv()
		rec := env.requestOTP(t, "nope")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "valid email required") {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("throttles request storms", func(t *testing.T) {
		env := newTestEnv()
		for i := 0; i < 3; i++ {
			if rec := env.requestOTP(t, "a@example.com"); rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}
			env.mail.next(t)
		}
		if rec := env.requestOTP(t, "a@example.com"); rec.Code != http.StatusTooManyRequests {
			t.Errorf("expected status 429, got %d", rec.Code)
		}
		select {
		case msg := <-env.mail.sent:
			t.Errorf("expected no mail for throttled request, got %q", msg.Subject)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("throttles code guessing per email", func(t *testing.T) {
		env := newTestEnv()
		env.requestOTP(t, "a@example.com")
		code := codeFrom(t, env.mail.next(t))
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}

		for i := 0; i < 5; i++ {
			if rec := env.verifyOTP(t, "A@example.com", wrong); rec.Code != http.StatusBadRequest {
				t.Fatalf("attempt %d: expected status 400, got %d", i+1, rec.Code)
			}
		}
		rec := env.verifyOTP(t, "a@example.com", code)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected status 429, got %d", rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"error":"too many requests, try again later"}` {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}

		if rec := env.verifyOTP(t, "b@example.com", "123456"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected other email unaffected, got %d", rec.Code)
		}

		env.now = env.now.Add(time.Minute)
		if rec := env.verifyOTP(t, "a@example.com", code); rec.Code != http.StatusOK {
			t.Errorf("expected the code to verify after a minute, got %d", rec.Code)
		}
	})
}

func TestAuthenticator(t *testing.T) {
	env := newTestEnv()
	ok := func(w http.ResponseWriter, r *http.Request) {
		id, _ := IdentityFrom(r.Context())
		_ = json.NewEncoder(w).Encode(meResponse{Email: id.Email, IsAdmin: id.IsAdmin})
	}
	userToken, _, _ := env.tokens.Issue("asha@example.com")
	adminToken, _, _ := env.tokens.Issue("owner@example.com")

	tests := []struct {
		name   string
		guard  func(http.HandlerFunc) http.HandlerFunc
		header map[string]string
		want   int
	}{
		{"user route without token", env.authn.RequireUser, nil, http.StatusUnauthorized},
		{"user route with garbage", env.authn.RequireUser, map[string]string{"Authorization": "Bearer garbage"}, http.StatusUnauthorized},
		{"user route with token", env.authn.RequireUser, map[string]string{"Authorization": "Bearer " + userToken}, http.StatusOK},
		{"admin route with user token", env.authn.RequireAdmin, map[string]string{"Authorization": "Bearer " + userToken}, http.StatusForbidden},
		{"admin route with admin token", env.authn.RequireAdmin, map[string]string{"Authorization": "Bearer " + adminToken}, http.StatusOK},
		{"admin route with secret", env.authn.RequireAdmin, map[string]string{"X-Admin-Secret": "admin-secret"}, http.StatusOK},
		{"admin route with wrong secret", env.authn.RequireAdmin, map[string]string{"X-Admin-Secret": "nope"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			tt.guard(ok)(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}

	t.Run("me reports admin flag", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken)
		rec := httptest.NewRecorder()
		env.authn.RequireUser(env.handler.HandleMe)(rec, req)

		var resp meResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !resp.IsAdmin || resp.Email != "owner@example.com" {
			t.Errorf("unexpected identity: %+v", resp)
		}
	})
}
