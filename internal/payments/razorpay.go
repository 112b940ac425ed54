package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrGateway       = errors.New("payment gateway error")
)

var paisePerRupee = decimal.NewFromInt(100)

// RazorpayClient talks to the Razorpay orders API with basic auth.
type RazorpayClient struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
}

func NewRazorpayClient(baseURL, keyID, keySecret string) *RazorpayClient {
	return &RazorpayClient{
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
	}
}

func (c *RazorpayClient) KeyID() string { return c.keyID }

type createOrderPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

// maxRupees keeps the paise amount inside int64.
var maxRupees = decimal.NewFromInt(math.MaxInt64 / 100)

// ToPaise converts a whole, positive rupee amount to paise.
func ToPaise(rupees decimal.Decimal) (int64, error) {
	if !rupees.IsPositive() || !rupees.IsInteger() || rupees.GreaterThan(maxRupees) {
		return 0, ErrInvalidAmount
	}
	return rupees.Mul(paisePerRupee).IntPart(), nil
}

// CreateOrder registers an order with the gateway and returns its JSON as is.
func (c *RazorpayClient) CreateOrder(ctx context.Context, rupees decimal.Decimal, receipt string) (json.RawMessage, error) {
	paise, err := ToPaise(rupees)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(createOrderPayload{Amount: paise, Currency: "INR", Receipt: receipt})
	if err != nil {
		return nil, fmt.Errorf("marshal razorpay order: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/v1/orders", body)
}

type gatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// VerifyAmount fetches the gateway order and checks it was raised in INR for
// exactly total. A difference wraps domain.ErrPaymentMismatch.
func (c *RazorpayClient) VerifyAmount(ctx context.Context, gatewayOrderID string, total decimal.Decimal) error {
	data, err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(gatewayOrderID), nil)
	if err != nil {
		return err
	}
	var order gatewayOrder
	if err := json.Unmarshal(data, &order); err != nil {
		return fmt.Errorf("%w: decode order: %v", ErrGateway, err)
	}

	want := total.Mul(paisePerRupee).Round(0)
	if order.Currency != "INR" || !want.Equal(decimal.NewFromInt(order.Amount)) {
		return fmt.Errorf("%w: gateway order %s is %d %s, order total is %s INR",
			domain.ErrPaymentMismatch, gatewayOrderID, order.Amount, order.Currency, total.StringFixed(2))
	}
	return nil
}

// do sends an authenticated request and returns the JSON body of a 2xx answer.
func (c *RazorpayClient) do(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create razorpay request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, data)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: response is not json", ErrGateway)
	}
	return json.RawMessage(data), nil
}

// VerifySignature checks the checkout callback signature, an HMAC-SHA256 of
// "order_id|payment_id" keyed with the API secret.
func (c *RazorpayClient) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(Sign(c.keySecret, orderID, paymentID), want)
}

func Sign(secret, orderID, paymentID string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return mac.Sum(nil)
}
