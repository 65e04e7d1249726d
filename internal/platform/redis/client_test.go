// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package redis_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/yomira-identity/internal/platform/config"
	"github.com/taibuivan/yomira-identity/internal/platform/redis"
)

func TestOptions(t *testing.T) {
	options, err := redis.Options(&config.Config{
		RedisURL:          "redis://cache.internal:6380/3",
		RedisPoolSize:     16,
		RedisMinIdleConns: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, "cache.internal:6380", options.Addr)
	assert.Equal(t, 3, options.DB)
	assert.Equal(t, 16, options.PoolSize)
	assert.Equal(t, 4, options.MinIdleConns)
	assert.Equal(t, "yomira-identity", options.ClientName)

	_, err = redis.Options(&config.Config{RedisURL: "http://not-redis"})
	assert.ErrorContains(t, err, "redis: invalid URL")
}

/*
TestNewClient verifies the startup ping and the readiness check against a live server.
*/
func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := redis.NewClient(context.Background(), &config.Config{
		RedisURL:          "redis://" + mr.Addr(),
		RedisPoolSize:     2,
		RedisMinIdleConns: 0,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, redis.Ping(context.Background(), client))

	mr.Close()
	assert.ErrorContains(t, redis.Ping(context.Background(), client), "redis: ping failed")
}
