package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix        = "idempotency:v1:"
	inProgressMarker = "__in_progress__"
)

// RedisStore keeps idempotency records in Redis. A SetNX'd marker value
// claims the key; the stored response replaces it on completion. The TTL is
// an operational retention knob, not a correctness one.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed idempotency store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Reserve claims key with an atomic SetNX.
func (s *RedisStore) Reserve(ctx context.Context, key string) ([]byte, bool, error) {
	cacheKey := keyPrefix + key

	claimed, err := s.client.SetNX(ctx, cacheKey, inProgressMarker, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if claimed {
		return nil, false, nil
	}

	stored, err := s.client.Get(ctx, cacheKey).Result()
	if err == redis.Nil {
		// Claim released between SetNX and Get.
		return nil, false, ErrInProgress
	}
	if err != nil {
		return nil, false, err
	}
	if stored == inProgressMarker {
		return nil, false, ErrInProgress
	}
	return []byte(stored), true, nil
}

// Complete replaces the in-progress marker with the finished result.
func (s *RedisStore) Complete(ctx context.Context, key string, result []byte) error {
	return s.client.Set(ctx, keyPrefix+key, result, s.ttl).Err()
}

// Release drops an unfinished claim.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
