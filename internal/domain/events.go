package domain

import "time"

// OrderPlacedEvent is published once per newly created order.
type OrderPlacedEvent struct {
	OrderID   string    `json:"order_id"`
	Order     Order     `json:"order"`
	Timestamp time.Time `json:"timestamp"`
}
