// Package idempotency remembers which participation request an
// Idempotency-Key produced, so client retries replay instead of resubmitting.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const MaxKeyLength = 128

var ErrInvalidKey = errors.New("invalid idempotency key")

// Store maps (user, key) to a request id in redis.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Key builds the redis key for a user's idempotency key.
func Key(userID, key string) string {
	return "idem:" + userID + ":" + key
}

// ValidateKey rejects empty, oversized or multi-line keys.
func ValidateKey(key string) error {
	if key == "" || len(key) > MaxKeyLength || strings.ContainsAny(key, "\r\n") {
		return ErrInvalidKey
	}
	return nil
}

// Lookup returns the request id stored for the key, if any.
func (s *Store) Lookup(ctx context.Context, userID, key string) (string, bool, error) {
	requestID, err := s.client.Get(ctx, Key(userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return requestID, true, nil
}

// Remember stores requestID for the key unless one is already stored.
// It reports whether this call stored it.
func (s *Store) Remember(ctx context.Context, userID, key, requestID string) (bool, error) {
	stored, err := s.client.SetNX(ctx, Key(userID, key), requestID, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency remember: %w", err)
	}
	return stored, nil
}

// Ping checks the redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
