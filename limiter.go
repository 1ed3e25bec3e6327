// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"httperrors/modules/appconfig"
	"httperrors/modules/clock"
	"httperrors/modules/db/redis"
	"httperrors/modules/db/redis/counter"
	"httperrors/modules/middleware/ratelimit"
	rl "httperrors/modules/ratelimit"
	"httperrors/modules/telemetry"
)

// buildLimiter wires the configured backend. The returned func releases
// whatever the backend holds (sweeper goroutine, redis connections).
func buildLimiter(ctx context.Context, cfg *appconfig.Config, clk clock.Clock, metrics *telemetry.RateLimitMetrics) (rl.RateLimiter, func(), error) {
	lc := cfg.RateLimit.LimiterConfig()

	var (
		store   rl.CounterStore
		release func()
	)
	switch cfg.RateLimit.Backend {
	case ratelimit.RueidisBackend:
		client, err := redis.NewRueidisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis not properly setup: %w", err)
		}
		store = counter.NewInstrumentedRedisCounter(client, cfg.Redis.SlowCommandThreshold)
		release = client.Close

	case ratelimit.GoRedisBackend:
		client, err := redis.NewGoRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis not properly setup: %w", err)
		}
		store = counter.NewGoRedisCounter(client)
		release = func() { _ = client.Close() }

	default:
		return buildMemoryLimiter(ctx, cfg, clk, metrics)
	}

	newLimiter := rl.CounterFactory(clk, store, cfg.RateLimit.KeyPrefix,
		rl.WithIncrTimeout(cfg.RateLimit.StoreTimeout),
	)
	limiter, err := newLimiter(lc)
	if err != nil {
		release()
		return nil, nil, err
	}
	slog.InfoContext(ctx, "distributed rate limiter ready",
		slog.String("backend", string(cfg.RateLimit.Backend)),
		slog.Duration("window", lc.Window),
		slog.Int64("max_requests", lc.MaxRequests),
	)
	return limiter, release, nil
}

func buildMemoryLimiter(ctx context.Context, cfg *appconfig.Config, clk clock.Clock, metrics *telemetry.RateLimitMetrics) (rl.RateLimiter, func(), error) {
	lc := cfg.RateLimit.LimiterConfig()
	limiter, err := rl.NewFixedWindow(clk, lc, rl.WithStore(rl.NewWindowStore(cfg.RateLimit.Shards)))
	if err != nil {
		return nil, nil, err
	}

	sweepCtx, stop := context.WithCancel(ctx)
	sweeper := limiter.NewSweeper(rl.WithSweepHook(metrics.RecordSweep))
	go sweeper.Run(sweepCtx)

	slog.InfoContext(ctx, "in-memory rate limiter ready",
		slog.Duration("window", lc.Window),
		slog.Int64("max_requests", lc.MaxRequests),
		slog.Int("shards", limiter.Store().ShardCount()),
	)
	return limiter, stop, nil
}
