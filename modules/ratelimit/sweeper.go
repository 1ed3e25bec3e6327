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

package ratelimit

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"httperrors/modules/clock"
	"httperrors/modules/worker"
)

// Evictor is the only access a Sweeper has to a store: it can drop expired
// windows, not read or charge them.
type Evictor interface {
	ShardCount() int
	EvictShard(i int, now time.Time) int
	Len() int
}

var _ Evictor = (*WindowStore)(nil)

// Sweeper reclaims memory held by keys that stopped sending requests.
// Throttling stays correct without it, since Decide replaces expired windows
// on access.
type Sweeper struct {
	store   Evictor
	clock   clock.Clock
	every   time.Duration
	workers int
	onSweep func(ctx context.Context, evicted, remaining int)
}

type SweeperOption func(*Sweeper)

// WithSweepWorkers bounds how many shards are swept in parallel.
func WithSweepWorkers(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSweepHook is called after every pass, e.g. to export metrics.
func WithSweepHook(fn func(ctx context.Context, evicted, remaining int)) SweeperOption {
	return func(s *Sweeper) { s.onSweep = fn }
}

func NewSweeper(store Evictor, clk clock.Clock, every time.Duration, opts ...SweeperOption) *Sweeper {
	if clk == nil {
		clk = clock.RealClockProvider()
	}
	s := &Sweeper{
		store:   store,
		clock:   clk,
		every:   every,
		workers: min(runtime.GOMAXPROCS(0), store.ShardCount()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep runs one pass over every shard and returns how many windows were evicted.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.clock.Now()

	shards := make([]int, s.store.ShardCount())
	for i := range shards {
		shards[i] = i
	}

	var evicted atomic.Int64
	worker.BlockingPool(ctx, s.workers, worker.Feed(shards...), func(_ context.Context, i int) {
		evicted.Add(int64(s.store.EvictShard(i, now)))
	})

	n := int(evicted.Load())
	if s.onSweep != nil {
		s.onSweep(ctx, n, s.store.Len())
	}
	return n
}

// Run sweeps every period until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.every <= 0 {
		slog.WarnContext(ctx, "sweeper disabled: non-positive period",
			slog.Duration("every", s.every),
		)
		return
	}

	t := time.NewTicker(s.every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(ctx); n > 0 {
				slog.DebugContext(ctx, "swept expired rate limit windows",
					slog.Int("evicted", n),
				)
			}
		}
	}
}
