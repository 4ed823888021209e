// Package pricecache is a short-lived, advisory cache of extraction results keyed by
// product. Every failure degrades to a miss; callers never see a cache error.
package pricecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fiffu/pricewatch/lib/extract"
	"go.uber.org/zap"
)

const (
	DefaultTTL       = 300 * time.Second
	DefaultOpTimeout = 250 * time.Millisecond
)

// ErrMiss is returned by a Backend when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type PriceCache struct {
	log       *zap.Logger
	backend   Backend
	ttl       time.Duration
	opTimeout time.Duration
}

// New builds a cache over backend. A nil backend makes every lookup a miss.
func New(log *zap.Logger, backend Backend, ttl, opTimeout time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &PriceCache{log, backend, ttl, opTimeout}
}

func Key(productID uint) string {
	return fmt.Sprintf("price:%d", productID)
}

// TTL is the lifetime Put applies when given a non-positive ttl.
func (c *PriceCache) TTL() time.Duration {
	return c.ttl
}

func (c *PriceCache) Get(ctx context.Context, productID uint) (*extract.Result, bool) {
	if c.backend == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	key := Key(productID)
	raw, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.log.Sugar().Warnw("Cache get failed", "key", key, "err", err)
		}
		return nil, false
	}

	var result extract.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		c.log.Sugar().Warnw("Discarding undecodable cache entry", "key", key, "err", err)
		return nil, false
	}
	return &result, true
}

func (c *PriceCache) Put(ctx context.Context, productID uint, result *extract.Result, ttl time.Duration) {
	if c.backend == nil || result == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	key := Key(productID)
	raw, err := json.Marshal(result)
	if err != nil {
		c.log.Sugar().Warnw("Cache encode failed", "key", key, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.backend.Set(ctx, key, raw, ttl); err != nil {
		c.log.Sugar().Warnw("Cache set failed", "key", key, "err", err)
	}
}

func (c *PriceCache) Invalidate(ctx context.Context, productID uint) {
	if c.backend == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	key := Key(productID)
	if err := c.backend.Delete(ctx, key); err != nil {
		c.log.Sugar().Warnw("Cache invalidate failed", "key", key, "err", err)
	}
}

func (c *PriceCache) Exists(ctx context.Context, productID uint) bool {
	if c.backend == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	key := Key(productID)
	ok, err := c.backend.Exists(ctx, key)
	if err != nil {
		c.log.Sugar().Warnw("Cache exists failed", "key", key, "err", err)
		return false
	}
	return ok
}
