package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix    = "issue_key:"
	pendingValue = "pending"
)

// IdempotencyStore maps client idempotency keys to issued ticket ids. It is
// never consulted for capacity; that lives in the database only.
type IdempotencyStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &IdempotencyStore{Client: client, TTL: ttl}
}

// Reserve claims key for the caller. When the key is already taken it
// returns the ticket id stored under it, or "" while the owner is still
// issuing.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (string, bool, error) {
	ok, err := s.Client.SetNX(ctx, keyPrefix+key, pendingValue, s.TTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("reserve %s: %w", key, err)
	}
	if ok {
		return "", true, nil
	}

	val, err := s.Client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		// Expired between SETNX and GET; treat it as still in flight.
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup %s: %w", key, err)
	}
	if val == pendingValue {
		return "", false, nil
	}
	return val, false, nil
}

// Complete records the ticket issued for key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, ticketID string) error {
	if err := s.Client.Set(ctx, keyPrefix+key, ticketID, s.TTL).Err(); err != nil {
		return fmt.Errorf("complete %s: %w", key, err)
	}
	return nil
}

// Release frees a reservation that did not produce a ticket. A key that
// already points at a ticket is left alone.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	val, err := s.Client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	if val != pendingValue {
		return nil
	}
	return s.Client.Del(ctx, keyPrefix+key).Err()
}
