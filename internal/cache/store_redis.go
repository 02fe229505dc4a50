package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"consentgate/internal/platform/config"
	platformredis "consentgate/internal/platform/redis"
	"consentgate/pkg/platform/sentinel"
)

// RedisStore backs the local cache with Redis for server-side embeddings
// where the engine runs next to the host application rather than on a
// visitor device.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromConfig dials Redis through the shared platform client.
// Returns a nil store when no URL is configured.
func NewRedisStoreFromConfig(cfg config.RedisConfig) (*RedisStore, error) {
	client, err := platformredis.New(cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, nil
	}
	return NewRedisStore(client.Client), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Redis expires keys itself, so a miss covers both the never-written
		// and the expired case.
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return raw, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
