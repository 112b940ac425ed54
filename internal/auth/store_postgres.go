package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type PostgresCodeStore struct {
	db *sql.DB
}

func NewPostgresCodeStore(db *sql.DB) *PostgresCodeStore {
	return &PostgresCodeStore{db: db}
}

func (s *PostgresCodeStore) Save(ctx context.Context, email, code string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO otps (email, code, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at
	`, email, code, expiresAt)
	if err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	return nil
}

func (s *PostgresCodeStore) Consume(ctx context.Context, email, code string, now time.Time) (bool, error) {
	var deleted string
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM otps
		WHERE email = $1 AND code = $2 AND expires_at > $3
		RETURNING email
	`, email, code, now).Scan(&deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return true, nil
}

func (s *PostgresCodeStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM otps WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge otps: %w", err)
	}
	return result.RowsAffected()
}

// RunPurger deletes expired codes every interval until ctx is done.
func (s *PostgresCodeStore) RunPurger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.PurgeExpired(ctx, now)
			if err != nil {
				logger.Error("failed to purge expired otps", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired otps", "count", n)
			}
		}
	}
}
