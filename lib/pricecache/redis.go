package pricecache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisBackend struct {
	rdb redis.UniversalClient
}

func NewRedisBackend(rdb redis.UniversalClient) *RedisBackend {
	return &RedisBackend{rdb}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := b.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return raw, err
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.rdb.Set(ctx, key, value, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.rdb.Del(ctx, key).Err()
}

func (b *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.rdb.Exists(ctx, key).Result()
	return n > 0, err
}
