package binding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps bindings as plain Redis keys.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store. A zero ttl keeps bindings forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "oauth2"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Put implements Durable.
func (s *RedisStore) Put(ctx context.Context, clientID, uri string) error {
	return s.client.Set(ctx, s.key(clientID), uri, s.ttl).Err()
}

// Get implements Durable.
func (s *RedisStore) Get(ctx context.Context, clientID string) (string, error) {
	uri, err := s.client.Get(ctx, s.key(clientID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return uri, err
}

func (s *RedisStore) key(clientID string) string {
	return fmt.Sprintf("%s:redirect_uri:%s", s.prefix, clientID)
}
