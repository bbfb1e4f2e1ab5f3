package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/cart-sync/internal/adapter/storage"
	"github.com/rl1809/cart-sync/internal/config"
	"github.com/rl1809/cart-sync/internal/platform/logger"
	"github.com/rl1809/cart-sync/internal/port"
)

// openBackend connects the configured KV store. The returned func releases it.
func openBackend(ctx context.Context, cfg config.Config, log *logger.Logger) (port.KVStore, func(), error) {
	switch cfg.Backend {
	case config.BackendBunt:
		kv, err := storage.OpenBuntAdapter(cfg.BuntPath)
		if err != nil {
			return nil, nil, err
		}
		log.Debug("opened buntdb", "path", cfg.BuntPath)
		return kv, func() { kv.Close() }, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Debug("connected to redis", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
		return storage.NewRedisAdapter(rdb).WithTTL(cfg.RedisTTL), func() { rdb.Close() }, nil

	case config.BackendMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Debug("connected to mysql")
		return adapter, func() { db.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
