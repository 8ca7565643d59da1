// Package market builds the configured MarketDataProvider: the selected data
// source, optionally behind a snapshot cache, always behind the observability
// wrapper.
package market

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"stockiq/internal/interfaces"
	"stockiq/internal/logger"
	"stockiq/internal/market/kite"
	"stockiq/internal/market/marketobs"
	"stockiq/internal/market/polygon"
	"stockiq/internal/market/yahoo"
	"stockiq/internal/store"
)

// New returns the provider together with a close function for whatever
// long-lived clients it opened.
func New(ctx context.Context, cfg *store.Config, creds store.Credentials) (interfaces.MarketDataProvider, func() error, error) {
	provider, err := newSource(cfg, creds)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() error { return nil }
	switch cfg.Data.Cache.Backend {
	case store.CacheFile:
		fs, err := NewFileStore(cfg.Data.Cache.Dir)
		if err != nil {
			return nil, nil, err
		}
		if n, err := fs.Prune(); err != nil {
			logger.Warn(ctx, "Snapshot cache prune failed", "dir", cfg.Data.Cache.Dir, "error", err)
		} else if n > 0 {
			logger.Info(ctx, "Pruned expired snapshots", "dir", cfg.Data.Cache.Dir, "removed", n)
		}
		provider = NewCached(provider, fs, cfg.CacheTTL())
	case store.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Data.Cache.RedisAddr,
			DB:   cfg.Data.Cache.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis cache at %s: %w", cfg.Data.Cache.RedisAddr, err)
		}
		provider = NewCached(provider, NewRedisStore(client), cfg.CacheTTL())
		closeFn = client.Close
	}

	return marketobs.Wrap(provider), closeFn, nil
}

func newSource(cfg *store.Config, creds store.Credentials) (interfaces.MarketDataProvider, error) {
	switch cfg.Data.Provider {
	case store.DataPolygon:
		return polygon.New(polygon.Config{
			APIKey:            creds.PolygonAPIKey,
			BaseURL:           cfg.Data.BaseURL,
			TradingDays:       cfg.Data.TradingDays,
			Timeout:           cfg.DataTimeout(),
			RequestsPerMinute: cfg.Data.RequestsPerMinute,
		}), nil
	case store.DataYahoo:
		return yahoo.New(yahoo.Config{
			BaseURL:           cfg.Data.BaseURL,
			TradingDays:       cfg.Data.TradingDays,
			Timeout:           cfg.DataTimeout(),
			RequestsPerMinute: cfg.Data.RequestsPerMinute,
		}), nil
	case store.DataKite:
		return kite.New(kite.Config{
			APIKey:      creds.KiteAPIKey,
			AccessToken: creds.KiteAccessToken,
			Exchange:    cfg.Data.Exchange,
			TradingDays: cfg.Data.TradingDays,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported data provider %q", cfg.Data.Provider)
	}
}
