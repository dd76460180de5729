package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps the document under one Redis key. With a non-zero TTL
// the document expires unless refreshed by a save, which suits cache-style
// deployments in front of another system of record.
type RedisBackend struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisBackend stores the document under key using the given client.
func NewRedisBackend(client *redis.Client, key string, ttl time.Duration) *RedisBackend {
	if client == nil {
		panic("storage.NewRedisBackend: redis client is nil")
	}
	if key == "" {
		key = DocumentKey
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisBackend{client: client, key: key, ttl: ttl}
}

func (r *RedisBackend) Read(ctx context.Context) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisBackend) Write(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.key, data, r.ttl).Err()
}

func (r *RedisBackend) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
