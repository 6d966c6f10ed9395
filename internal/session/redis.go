package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session in a Redis hash.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a redis-backed session store.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "oauth2"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, id string) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return values, nil
}

// Save replaces the hash and resets its TTL. A zero ttl never expires.
func (s *RedisStore) Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error {
	key := s.key(id)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(values) > 0 {
		fields := make(map[string]interface{}, len(values))
		for k, v := range values {
			fields[k] = v
		}
		pipe.HSet(ctx, key, fields)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}
