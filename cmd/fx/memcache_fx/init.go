package memcache_fx

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Pabby01/studIQ-sub001/internal/config"
	"github.com/Pabby01/studIQ-sub001/internal/infra"
	mem "github.com/Pabby01/studIQ-sub001/pkg/memcache"
)

var Module = fx.Provide(provideRedisClient, provideRateLimitStore)

// provideRedisClient returns nil when rate limits are kept in memory.
func provideRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	if cfg.RateLimit.Store != config.RateLimitStoreRedis {
		return nil, nil
	}

	client, err := infra.InitRedis(context.Background(), cfg.Redis, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func provideRateLimitStore(lc fx.Lifecycle, cfg config.Config, client *redis.Client, log *zap.Logger) mem.RateLimitStore {
	if client != nil {
		log.Info("rate limits backed by redis")
		return mem.NewRedisRateLimitStore(client)
	}

	store := mem.NewMemoryRateLimitStore(cfg.RateLimit.GCInterval)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			store.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			store.Stop()
			return nil
		},
	})

	log.Info("rate limits kept in process memory", zap.Duration("gc_interval", cfg.RateLimit.GCInterval))
	return store
}
