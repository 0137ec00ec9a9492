package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/supplierhub/supplierhub/internal/platform/cache"
	"github.com/supplierhub/supplierhub/internal/platform/db"
	"github.com/supplierhub/supplierhub/internal/suppliers"
	"github.com/supplierhub/supplierhub/internal/suppliers/postgres"
	"github.com/supplierhub/supplierhub/internal/suppliers/redisstore"
)

// Backend is the storage wiring selected by STORE_BACKEND.
type Backend struct {
	Kind        string
	Persistence suppliers.Persistence
	Pending     suppliers.PendingStore
	Redis       *redis.Client
	closers     []func()
}

// OpenBackend connects the configured stores. A durable backend has a single
// writer: the Store that opens it claims it, and any other process opening
// the same backend gets suppliers.ErrStoreInUse until that Store is closed.
// Pending tokens live in Redis next to the records for every durable backend.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backend, error) {
	b := &Backend{Kind: cfg.StoreBackend}

	switch cfg.StoreBackend {
	case BackendMemory:
		b.Persistence = suppliers.NewMemoryPersistence()
		b.Pending = suppliers.NewMemoryPending(cfg.PendingTTL)
		logger.Warn("using in-memory supplier store, records are lost on restart")
		return b, nil
	case BackendPostgres:
		pool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		persist := postgres.New(pool)
		if err := persist.EnsureSchema(ctx); err != nil {
			b.Close()
			return nil, err
		}
		b.Persistence = persist
	case BackendRedis:
	default:
		return nil, fmt.Errorf("app: unknown store backend %q", cfg.StoreBackend)
	}

	client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Redis = client
	b.closers = append(b.closers, func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	})
	if b.Persistence == nil {
		b.Persistence = redisstore.NewPersistence(client, redisstore.DefaultRecordsKey)
	}
	b.Pending = redisstore.NewPending(client, cfg.PendingTTL)
	return b, nil
}

// Close releases connections in reverse order of opening.
func (b *Backend) Close() {
	if b == nil {
		return
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// AsynqRedisOpt returns the queue connection settings.
func (c *Config) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
