package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts go over the wire as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

const moneyPlaces = 2

type FulfillmentStatus string

const (
	StatusPending   FulfillmentStatus = "pending"
	StatusAccepted  FulfillmentStatus = "accepted"
	StatusDelivered FulfillmentStatus = "delivered"
)

// ParseFulfillmentStatus accepts only the closed set of fulfillment states.
// Any state may follow any other; there is no transition guard.
func ParseFulfillmentStatus(s string) (FulfillmentStatus, error) {
	switch st := FulfillmentStatus(s); st {
	case StatusPending, StatusAccepted, StatusDelivered:
		return st, nil
	}
	return "", ErrInvalidStatus
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "cod"
	PaymentRazorpay PaymentMethod = "razorpay"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return PaymentCOD, nil
	case PaymentCOD, PaymentRazorpay:
		return m, nil
	}
	return "", ErrInvalidPaymentMethod
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Address struct {
	Country string `json:"country"`
	Line1   string `json:"line1" validate:"required"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Zip     string `json:"zip" validate:"required"`
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// PaymentRef points at the gateway records behind a paid order.
type PaymentRef struct {
	Provider  string `json:"provider"`
	OrderID   string `json:"orderId,omitempty"`
	PaymentID string `json:"paymentId,omitempty"`
}

type Order struct {
	ID            string            `json:"id"`
	Customer      Customer          `json:"customer"`
	Address       Address           `json:"address"`
	Items         []OrderItem       `json:"items"`
	Totals        Totals            `json:"totals"`
	PaymentMethod PaymentMethod     `json:"paymentMethod"`
	Payment       *PaymentRef       `json:"payment,omitempty"`
	Status        FulfillmentStatus `json:"status"`
	PaymentStatus PaymentStatus     `json:"paymentStatus"`
	RequestID     string            `json:"requestId,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

type OrderItemInput struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// TotalsInput mirrors what the checkout page sends. Only shipping and tax
// are honoured; subtotal and total are always recomputed.
type TotalsInput struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// PaymentProof is the Razorpay checkout callback forwarded by the client.
type PaymentProof struct {
	RazorpayOrderID   string `json:"razorpayOrderId"`
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpaySignature string `json:"razorpaySignature"`
}

type PlaceOrderInput struct {
	Name          string           `json:"name" validate:"required"`
	Email         string           `json:"email" validate:"omitempty,email"`
	Phone         string           `json:"phone"`
	Address       Address          `json:"address"`
	Items         []OrderItemInput `json:"items"`
	Totals        *TotalsInput     `json:"totals"`
	PaymentMethod string           `json:"paymentMethod"`
	Payment       *PaymentProof    `json:"payment"`
	RequestID     string           `json:"requestId"`
}

func (in *PlaceOrderInput) trim() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.RequestID = strings.TrimSpace(in.RequestID)
	a := &in.Address
	a.Country = strings.TrimSpace(a.Country)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.Zip = strings.TrimSpace(a.Zip)
}

// Build validates the checkout payload and returns a pending, unpaid order
// whose totals are computed from the normalized items. The order has no id yet.
func (in PlaceOrderInput) Build(now time.Time) (*Order, error) {
	in.trim()

	var invalidEmail bool
	if err := validate.Struct(in); err != nil {
		tags := failedTags(err)
		if tags["required"] {
			return nil, ErrMissingRequiredFields
		}
		invalidEmail = tags["email"]
		if !invalidEmail {
			return nil, err
		}
	}
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	if invalidEmail {
		return nil, ErrInvalidEmail
	}

	method, err := ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}

	items := make([]OrderItem, 0, len(in.Items))
	subtotal := decimal.Zero
	for _, it := range in.Items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		price := toMoney(it.UnitPrice)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		items = append(items, OrderItem{
			ProductID: strings.TrimSpace(it.ProductID),
			Title:     strings.TrimSpace(it.Title),
			Quantity:  qty,
			UnitPrice: price,
		})
	}

	shipping, tax := decimal.Zero, decimal.Zero
	if in.Totals != nil {
		shipping = toMoney(in.Totals.Shipping)
		tax = toMoney(in.Totals.Tax)
	}

	return &Order{
		Customer: Customer{Name: in.Name, Email: in.Email, Phone: in.Phone},
		Address:  in.Address,
		Items:    items,
		Totals: Totals{
			Subtotal: subtotal,
			Shipping: shipping,
			Tax:      tax,
			Total:    subtotal.Add(shipping).Add(tax),
		},
		PaymentMethod: method,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		RequestID:     in.RequestID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// toMoney clamps d at zero and rounds it to paise, the precision amounts
// are stored with. Totals are summed from the rounded values.
func toMoney(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(moneyPlaces)
}

// VisibleTo reports whether the holder of email may read the order.
func (o *Order) VisibleTo(email string) bool {
	return o.Customer.Email != "" && strings.EqualFold(o.Customer.Email, email)
}
