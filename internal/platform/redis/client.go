// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package redis connects the identity service to the Redis instance that
// holds the auth throttle counters shared by every API replica.
package redis

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/yomira-identity/internal/platform/config"
	"github.com/taibuivan/yomira-identity/internal/platform/constants"
)

// Throttle checks sit on the login path, so socket timeouts stay short.
const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

// Options derives client options from REDIS_URL and the configured pool sizes.
func Options(cfg *config.Config) (*redis.Options, error) {
	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	options.ClientName = constants.AppName
	options.PoolSize = cfg.RedisPoolSize
	options.MinIdleConns = cfg.RedisMinIdleConns
	options.MaxIdleConns = cfg.RedisPoolSize

	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	return options, nil
}

/*
NewClient opens the pool and fails unless Redis answers a ping.

Parameters:
  - context: Context for the initial ping
  - cfg: *config.Config (REDIS_URL and pool sizes)
  - logger: *slog.Logger

Returns:
  - *redis.Client: Connected client
  - error: Invalid URL or an unreachable server
*/
func NewClient(context stdctx.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	options, err := Options(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)

	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", options.Addr),
		slog.Int("db", options.DB),
		slog.Int("pool_size", options.PoolSize),
	)

	return client, nil
}

// Ping reports whether Redis is reachable. It backs the readiness check.
func Ping(context stdctx.Context, client *redis.Client) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}
