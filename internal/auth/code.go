package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// CodeStore keeps at most one active login code per email.
type CodeStore interface {
	// Save replaces any code previously stored for email.
	Save(ctx context.Context, email, code string, expiresAt time.Time) error
	// Consume deletes and reports a matching unexpired code. It succeeds at
	// most once per saved code.
	Consume(ctx context.Context, email, code string, now time.Time) (bool, error)
}

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a uniformly random six digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
