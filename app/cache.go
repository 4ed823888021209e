package app

import (
	"context"

	"github.com/fiffu/pricewatch/config"
	"github.com/fiffu/pricewatch/lib/pricecache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const memoryCacheKeys = 10_000

// NewPriceCache uses redis when REDIS_ADDR is set and an in-process cache otherwise.
// An unreachable redis is logged and left in place; lookups against it just miss.
func NewPriceCache(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*pricecache.PriceCache, error) {
	if cfg.Redis.Addr == "" {
		backend, err := pricecache.NewMemoryBackend(memoryCacheKeys, cfg.CacheTTL())
		if err != nil {
			return nil, err
		}
		log.Info("Using in-memory price cache")
		return pricecache.New(log, backend, cfg.CacheTTL(), cfg.CacheOpTimeout()), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.CacheOpTimeout(),
		ReadTimeout: cfg.CacheOpTimeout(),
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.Sugar().Warnw("Redis unreachable, price cache will miss", "addr", cfg.Redis.Addr, "err", err)
			} else {
				log.Sugar().Infow("Using redis price cache", "addr", cfg.Redis.Addr)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})

	return pricecache.New(log, pricecache.NewRedisBackend(rdb), cfg.CacheTTL(), cfg.CacheOpTimeout()), nil
}
