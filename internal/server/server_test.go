package server

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

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/mailer"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/payments"
	"github.com/joao-fontenele/storefront/internal/returns"
)

const adminSecret = "admin-secret"

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
	handler   http.Handler
	otpMail   *fakeSender
	orderMail *fakeSender
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenIssuer([]byte("secret"), "storefront", time.Hour)
	authn := auth.NewAuthenticator(tokens, "owner@example.com", adminSecret, logger)
	env := &testEnv{otpMail: newFakeSender(), orderMail: newFakeSender()}

	orderRepo := orders.NewMemoryRepository()
	h := Handlers{
		Auth: authn,
		OTP: auth.NewHandler(auth.NewMemoryCodeStore(), tokens, auth.NewLimiter(20*time.Second, 3), env.otpMail, nil, logger,
			auth.HandlerConfig{StoreName: "Shop", CodeTTL: 5 * time.Minute}),
		Catalog:  catalog.NewHandler(catalog.NewMemoryRepository(), logger),
		Orders:   orders.NewHandler(orderRepo, notify.NewMail(env.orderMail, "Shop", "", logger), nil, nil, logger),
		Returns:  returns.NewHandler(returns.NewMemoryRepository(), mailer.NewLogSender(logger), nil, logger, "Shop", "owner@example.com"),
		Payments: payments.NewHandler(nil, orderRepo, logger),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
	}
	env.handler = New(h, Options{ServiceName: "storefront", Mode: "memory", AllowedOrigins: []string{"https://shop.example.com"}}, logger)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp map[string]string
	decode(t, rec, &resp)
	if resp["status"] != "ok" || resp["mode"] != "memory" {
		t.Errorf("unexpected health response: %v", resp)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "# metrics") {
		t.Errorf("expected metrics handler, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestServer_CORS(t *testing.T) {
	env := newTestEnv()

	t.Run("preflight from allowed origin", func(t *testing.T) {
		rec := env.do(t, http.MethodOptions, "/api/orders", "", http.Header{
			"Origin":                         {"https://shop.example.com"},
			"Access-Control-Request-Method":  {"POST"},
			"Access-Control-Request-Headers": {"content-type"},
		})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
			t.Errorf("expected allowed origin echoed, got %q", got)
		}
	})

	t.Run("other origins get no grant", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/products", "", http.Header{"Origin": {"https://evil.example.com"}})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("expected no allow-origin header, got %q", got)
		}
	})
}

func TestServer_Routes(t *testing.T) {
	env := newTestEnv()

	t.Run("admin routes need credentials", func(t *testing.T) {
		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/api/products/admin"},
			{http.MethodGet, "/api/orders"},
			{http.MethodGet, "/api/returns/admin"},
			{http.MethodPatch, "/api/orders/x/status"},
		} {
			rec := env.do(t, tc.method, tc.path, "", nil)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, rec.Code)
			}
		}
	})

	t.Run("admin product route does not shadow public detail", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/products/missing", "", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("payments disabled", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/payments/razorpay/order", `{"amount":10}`, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}

func TestServer_CheckoutFlow(t *testing.T) {
	env := newTestEnv()
	admin := http.Header{"X-Admin-Secret": {adminSecret}}

	rec := env.do(t, http.MethodPost, "/api/products/admin",
		`{"title":"Lamp","sku":"LAMP-1","price":499}`, admin)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 creating product, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/auth/request-otp", `{"email":"Buyer@Example.com"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 requesting otp, got %d", rec.Code)
	}
	msg := env.otpMail.next(t)
	const marker = "Your login code is "
	i := strings.Index(msg.Text, marker)
	if i < 0 {
		t.Fatalf("no code in mail: %q", msg.Text)
	}
	code := msg.Text[i+len(marker) : i+len(marker)+6]

	rec = env.do(t, http.MethodPost, "/api/auth/verify-otp", `{"email":"buyer@example.com","code":"`+code+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 verifying otp, got %d: %s", rec.Code, rec.Body.String())
	}
	var login struct {
		Token string `json:"token"`
		Email string `json:"email"`
	}
	decode(t, rec, &login)
	if login.Email != "buyer@example.com" {
		t.Errorf("expected normalized email, got %s", login.Email)
	}

	order := `{"name":"Buyer","email":"buyer@example.com","requestId":"r-1","address":{"line1":"1 Main","city":"Pune","state":"MH","zip":"411001"},"items":[{"productId":"p1","title":"Lamp","quantity":2,"unitPrice":499}]}`
	rec = env.do(t, http.MethodPost, "/api/orders", order, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 placing order, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)

	confirmation := env.orderMail.next(t)
	if len(confirmation.To) != 1 || confirmation.To[0] != "buyer@example.com" {
		t.Errorf("expected confirmation to buyer, got %v", confirmation.To)
	}

	rec = env.do(t, http.MethodGet, "/api/orders/me", "", bearer(login.Token))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 listing orders, got %d", rec.Code)
	}
	var mine struct {
		IsAdmin bool `json:"isAdmin"`
		Orders  []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"orders"`
	}
	decode(t, rec, &mine)
	if mine.IsAdmin || len(mine.Orders) != 1 || mine.Orders[0].ID != created.ID {
		t.Fatalf("unexpected orders response: %+v", mine)
	}

	rec = env.do(t, http.MethodPatch, "/api/orders/"+created.ID+"/status", `{"status":"accepted"}`, bearer(login.Token))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for customer status change, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPatch, "/api/orders/"+created.ID+"/status", `{"status":"accepted"}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 from admin, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/orders/"+created.ID, "", bearer(login.Token))
	var got struct {
		Status string `json:"status"`
	}
	decode(t, rec, &got)
	if got.Status != "accepted" {
		t.Errorf("expected accepted, got %s", got.Status)
	}

	rec = env.do(t, http.MethodPost, "/api/returns", `{"orderId":"`+created.ID+`","email":"buyer@example.com","reasons":["damaged"]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 submitting return, got %d: %s", rec.Code, rec.Body.String())
	}
	var ret struct {
		OK        bool `json:"ok"`
		Simulated bool `json:"simulated"`
	}
	decode(t, rec, &ret)
	if !ret.OK || !ret.Simulated {
		t.Errorf("expected simulated return intake, got %+v", ret)
	}
}
