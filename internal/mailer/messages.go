package mailer

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

func OTPCode(store, to, code string, ttl time.Duration) Message {
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Your %s login code", store),
		Text: fmt.Sprintf("Your login code is %s.\n\nIt expires in %d minutes. If you did not ask for it, ignore this mail.\n",
			code, int(ttl.Minutes())),
	}
}

func OrderConfirmation(store string, o *domain.Order) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThanks for shopping with %s. We received your order %s.\n\n", o.Customer.Name, store, o.ID)
	writeOrder(&b, o)
	b.WriteString("\nWe will let you know when it ships.\n")
	return Message{
		To:      []string{o.Customer.Email},
		Subject: fmt.Sprintf("%s order confirmation #%s", store, o.ID),
		Text:    b.String(),
	}
}

func OrderAlert(store, to string, o *domain.Order) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "New order %s\n\n", o.ID)
	fmt.Fprintf(&b, "Customer: %s <%s> %s\n", o.Customer.Name, o.Customer.Email, o.Customer.Phone)
	a := o.Address
	fmt.Fprintf(&b, "Ship to: %s", a.Line1)
	if a.Line2 != "" {
		fmt.Fprintf(&b, ", %s", a.Line2)
	}
	fmt.Fprintf(&b, ", %s, %s %s %s\n", a.City, a.State, a.Zip, a.Country)
	fmt.Fprintf(&b, "Payment: %s (%s)\n\n", o.PaymentMethod, o.PaymentStatus)
	writeOrder(&b, o)
	return Message{
		To:      []string{to},
		ReplyTo: o.Customer.Email,
		Subject: fmt.Sprintf("[%s] New order #%s", store, o.ID),
		Text:    b.String(),
	}
}

func ReturnNotice(store, to string, r *domain.ReturnRequest, images []Attachment) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Return request %s\n\nOrder: %s\nCustomer: %s\n", r.ID, r.OrderID, r.Email)
	if len(r.Reasons) > 0 {
		fmt.Fprintf(&b, "Reasons: %s\n", strings.Join(r.Reasons, ", "))
	}
	if r.CustomReason != "" {
		fmt.Fprintf(&b, "Details: %s\n", r.CustomReason)
	}
	fmt.Fprintf(&b, "Images: %d attached\n", len(images))
	return Message{
		To:          []string{to},
		ReplyTo:     r.Email,
		Subject:     fmt.Sprintf("[%s] Return request for order %s", store, r.OrderID),
		Text:        b.String(),
		Attachments: images,
	}
}

func ReturnReceipt(store string, r *domain.ReturnRequest) Message {
	return Message{
		To:      []string{r.Email},
		Subject: fmt.Sprintf("%s received your return request", store),
		Text: fmt.Sprintf("We received your return request for order %s (reference %s).\n\nOur team will get back to you shortly.\n",
			r.OrderID, r.ID),
	}
}

func writeOrder(b *strings.Builder, o *domain.Order) {
	for _, it := range o.Items {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		fmt.Fprintf(b, "  %d x %s @ %s = %s\n", it.Quantity, it.Title, money(it.UnitPrice), money(line))
	}
	t := o.Totals
	fmt.Fprintf(b, "\nSubtotal: %s\nShipping: %s\nTax: %s\nTotal: %s\n",
		money(t.Subtotal), money(t.Shipping), money(t.Tax), money(t.Total))
}

func money(d decimal.Decimal) string {
	return "Rs. " + d.StringFixed(2)
}
