// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package throttle implements a fixed-window request counter backed by Redis.

It guards the credential endpoints (login, register, password recovery)
across every API instance: the counter lives in Redis, so N replicas share
one budget per client.

Algorithm, one MULTI/EXEC round trip per hit:

  - INCR the bucket key for (scope, client).
  - EXPIRE NX starts the window on the first hit and never extends it.
  - PTTL reports how long until the window closes, which becomes the retry
    hint once the counter exceeds the limit.

EXPIRE NX needs Redis 7 or newer.
*/
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/yomira-identity/internal/platform/constants"
)

// Decision is the outcome of a single [Limiter.Allow] call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a distributed fixed-window rate limiter.
type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewLimiter creates a limiter admitting limit hits per window.
func NewLimiter(client *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, limit: limit, window: window}
}

// Allow records one hit for key and reports whether it fits in the window.
func (limiter *Limiter) Allow(context context.Context, key string) (Decision, error) {
	bucket := constants.RedisPrefixThrottle + key

	var (
		hits      *redis.IntCmd
		remaining *redis.DurationCmd
	)
	_, err := limiter.client.TxPipelined(context, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(context, bucket)
		pipe.ExpireNX(context, bucket, limiter.window)
		remaining = pipe.PTTL(context, bucket)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("throttle: pipeline %s: %w", bucket, err)
	}

	count := hits.Val()
	ttl := remaining.Val()
	if ttl <= 0 {
		ttl = limiter.window
	}

	if count > int64(limiter.limit) {
		return Decision{Allowed: false, Remaining: 0, RetryAfter: ttl}, nil
	}

	return Decision{Allowed: true, Remaining: limiter.limit - int(count)}, nil
}
