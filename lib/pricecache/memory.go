package pricecache

import (
	"context"
	"fmt"
	"time"

	cache "github.com/go-pkgz/expirable-cache"
)

// MemoryBackend keeps entries in process. It stands in for redis on single-node deployments.
type MemoryBackend struct {
	store cache.Cache
}

func NewMemoryBackend(maxKeys int, ttl time.Duration) (*MemoryBackend, error) {
	store, err := cache.NewCache(cache.MaxKeys(maxKeys), cache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("memory cache: %w", err)
	}
	return &MemoryBackend{store}, nil
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := b.store.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	raw, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected %T under %s", v, key)
	}
	return raw, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.store.Set(key, value, ttl)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.store.Invalidate(key)
	return nil
}

func (b *MemoryBackend) Exists(_ context.Context, key string) (bool, error) {
	_, ok := b.store.Get(key)
	return ok, nil
}
