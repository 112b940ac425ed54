package domain

import "errors"

// Validation errors carry the wire code returned to clients in their message.
var (
	ErrMissingRequiredFields = errors.New("missing_required_fields")
	ErrNoItems               = errors.New("no_items")
	ErrInvalidEmail          = errors.New("invalid_email")
	ErrInvalidStatus         = errors.New("invalid_status")
	ErrInvalidPaymentMethod  = errors.New("invalid_payment_method")
	ErrInvalidProduct        = errors.New("invalid_product")
	ErrPaymentMismatch       = errors.New("payment_amount_mismatch")
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateSKU = errors.New("sku_taken")
	ErrDuplicateID  = errors.New("id_taken")
)
