package domain

import (
	"strings"
	"time"
)

type ReturnStatus string

const (
	ReturnOpen     ReturnStatus = "open"
	ReturnResolved ReturnStatus = "resolved"
)

func ParseReturnStatus(s string) (ReturnStatus, error) {
	switch st := ReturnStatus(s); st {
	case ReturnOpen, ReturnResolved:
		return st, nil
	}
	return "", ErrInvalidStatus
}

type ReturnRequest struct {
	ID           string       `json:"id"`
	OrderID      string       `json:"orderId"`
	Email        string       `json:"email"`
	Reasons      []string     `json:"reasons"`
	CustomReason string       `json:"customReason,omitempty"`
	Images       []string     `json:"images"`
	Status       ReturnStatus `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// CleanReasons drops blank entries and surrounding whitespace.
func CleanReasons(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
