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
	"time"

	"httperrors/modules/clock"
)

var _ RateLimiter = (*FixedWindowRateLimiter)(nil)

// FixedWindowRateLimiter counts requests per key in discrete, non-overlapping
// windows held in memory.
//
// A window opens on the first request from a key and lasts for the
// configured length. Up to 2x the limit can pass around a window boundary.
type FixedWindowRateLimiter struct {
	clock  clock.Clock
	store  *WindowStore
	limit  int64
	window time.Duration
}

type FixedWindowOption func(*FixedWindowRateLimiter)

// WithStore replaces the default sharded store, e.g. to pick the shard count.
func WithStore(s *WindowStore) FixedWindowOption {
	return func(l *FixedWindowRateLimiter) {
		if s != nil {
			l.store = s
		}
	}
}

func NewFixedWindow(clk clock.Clock, cfg Config, opts ...FixedWindowOption) (*FixedWindowRateLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.RealClockProvider()
	}
	l := &FixedWindowRateLimiter{
		clock:  clk,
		limit:  cfg.MaxRequests,
		window: cfg.Window,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store == nil {
		l.store = NewWindowStore(DefaultShardCount)
	}
	return l, nil
}

// Decide implements RateLimiter. It never fails.
func (l *FixedWindowRateLimiter) Decide(_ context.Context, key Key) (Decision, error) {
	var now time.Time
	w := l.store.update(string(key), func(w *Window, found bool) {
		now = l.clock.Now()
		if !found || w.Expired(now) {
			w.Count = 1
			w.ResetAt = now.Add(l.window)
			return
		}
		// denied requests are charged too
		w.Count++
	})

	return Decision{
		Allowed:   w.Count <= l.limit,
		Count:     w.Count,
		Limit:     l.limit,
		ResetAt:   w.ResetAt,
		DecidedAt: now,
	}, nil
}

func (l *FixedWindowRateLimiter) Store() *WindowStore {
	return l.store
}

// NewSweeper returns a sweeper over this limiter's store that runs once per
// window length.
func (l *FixedWindowRateLimiter) NewSweeper(opts ...SweeperOption) *Sweeper {
	return NewSweeper(l.store, l.clock, l.window, opts...)
}
