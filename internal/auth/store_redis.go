package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deletes the key only when it still holds the presented code.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCodeStore keeps codes as keys that expire on their own.
type RedisCodeStore struct {
	client *redis.Client
	prefix string
}

func NewRedisCodeStore(client *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client, prefix: "otp:"}
}

func (s *RedisCodeStore) Save(ctx context.Context, email, code string, expiresAt time.Time) error {
	err := s.client.SetArgs(ctx, s.prefix+email, code, redis.SetArgs{ExpireAt: expiresAt}).Err()
	if err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	return nil
}

// Consume relies on key expiry; now is not consulted.
func (s *RedisCodeStore) Consume(ctx context.Context, email, code string, _ time.Time) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{s.prefix + email}, code).Int()
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return n == 1, nil
}
