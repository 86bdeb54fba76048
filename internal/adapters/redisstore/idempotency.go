package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
}

// IdempotencyStore persists captured responses keyed by a request scope and a client key.
type IdempotencyStore struct {
	store cmdable
}

// NewIdempotencyStore wraps a Redis client.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{store: client}
}

// Get returns the stored record. A missing key yields ("", false, nil).
func (s *IdempotencyStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.store.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetNX stores value unless the key already holds a record.
func (s *IdempotencyStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.store.SetNX(ctx, key, value, ttl).Result()
}

// Set overwrites the record, replacing an in-progress marker with the final response.
func (s *IdempotencyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.store.Set(ctx, key, value, ttl).Err()
}

// Key builds the storage key. The scope is hashed so user ids and paths never appear verbatim in Redis.
func (s *IdempotencyStore) Key(scope, id string) string {
	sum := sha256.Sum256([]byte(scope))
	return namespaced("idempotency", hex.EncodeToString(sum[:8]), id)
}
