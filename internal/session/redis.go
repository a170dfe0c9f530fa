package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each namespace as a redis hash that expires after ttl
// of inactivity.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBackend creates a redis-backed session backend.
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

// Scope returns storage bound to namespace.
func (b *RedisBackend) Scope(namespace string) Storage {
	return &redisStorage{backend: b, key: hashKey(namespace)}
}

type redisStorage struct {
	backend *RedisBackend
	key     string
}

// Get reads a field and refreshes the TTL of the hash, so reads keep a
// visitor's selections alive as writes do.
func (s *redisStorage) Get(ctx context.Context, field string) (string, bool, error) {
	pipe := s.backend.client.TxPipeline()
	get := pipe.HGet(ctx, s.key, field)
	if s.backend.ttl > 0 {
		pipe.Expire(ctx, s.key, s.backend.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return "", false, fmt.Errorf("redis hget failed: %w", err)
	}

	v, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget failed: %w", err)
	}
	return v, true, nil
}

func (s *redisStorage) Set(ctx context.Context, field, value string) error {
	pipe := s.backend.client.TxPipeline()
	pipe.HSet(ctx, s.key, field, value)
	if s.backend.ttl > 0 {
		pipe.Expire(ctx, s.key, s.backend.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis hset failed: %w", err)
	}
	return nil
}

func (s *redisStorage) Remove(ctx context.Context, field string) error {
	if err := s.backend.client.HDel(ctx, s.key, field).Err(); err != nil {
		return fmt.Errorf("redis hdel failed: %w", err)
	}
	return nil
}

func hashKey(namespace string) string {
	return fmt.Sprintf("session:%s", namespace)
}
