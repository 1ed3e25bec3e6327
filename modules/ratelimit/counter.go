package ratelimit

import (
	"context"
	"fmt"
	"time"

	"httperrors/modules/clock"
)

var _ RateLimiter = (*CounterRateLimiter)(nil)

// CounterStore is the storage abstraction the distributed limiter uses.
type CounterStore interface {
	// Incr increments a counter at key and returns the new value together with
	// the time left before the key expires. The TTL is only applied when the
	// increment creates the key, so it marks the end of the current window.
	Incr(ctx context.Context, key string, ttl time.Duration) (count int64, resetIn time.Duration, err error)
}

// CounterRateLimiter applies the same fixed-window rules as
// FixedWindowRateLimiter over a shared CounterStore, so several processes
// can enforce one quota. Window expiry is delegated to the store's TTL.
type CounterRateLimiter struct {
	clock     clock.Clock
	counter   CounterStore
	keyPrefix string

	limit  int64
	window time.Duration
	// bounds one Incr round trip; zero means no bound
	incrTimeout time.Duration
}

type CounterOption func(*CounterRateLimiter)

// WithIncrTimeout bounds each store round trip.
func WithIncrTimeout(d time.Duration) CounterOption {
	return func(c *CounterRateLimiter) {
		if d > 0 {
			c.incrTimeout = d
		}
	}
}

func NewCounterRateLimiter(clk clock.Clock, counter CounterStore, keyPrefix string, cfg Config, opts ...CounterOption) (*CounterRateLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if counter == nil {
		return nil, fmt.Errorf("ratelimit: nil counter store")
	}
	if clk == nil {
		clk = clock.RealClockProvider()
	}
	c := &CounterRateLimiter{
		clock:     clk,
		counter:   counter,
		keyPrefix: keyPrefix,
		limit:     cfg.MaxRequests,
		window:    cfg.Window,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CounterFactory binds a store so limiters for different configs share it.
func CounterFactory(clk clock.Clock, counter CounterStore, keyPrefix string, opts ...CounterOption) LimiterFactory {
	return func(cfg Config) (RateLimiter, error) {
		return NewCounterRateLimiter(clk, counter, keyPrefix, cfg, opts...)
	}
}

// Decide implements RateLimiter. The store call is detached from ctx
// cancellation: a client hanging up mid-request is still charged.
func (c *CounterRateLimiter) Decide(ctx context.Context, key Key) (Decision, error) {
	ctx = context.WithoutCancel(ctx)
	if c.incrTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.incrTimeout)
		defer cancel()
	}
	count, resetIn, err := c.counter.Incr(ctx, c.buildKey(key), c.window)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit counter incr: %w", err)
	}
	now := c.clock.Now()

	// missing or nonsensical TTL: assume a window that just started
	if resetIn <= 0 || resetIn > c.window {
		resetIn = c.window
	}

	return Decision{
		Allowed:   count <= c.limit,
		Count:     count,
		Limit:     c.limit,
		ResetAt:   now.Add(resetIn),
		DecidedAt: now,
	}, nil
}

func (c *CounterRateLimiter) buildKey(key Key) string {
	if c.keyPrefix == "" {
		return string(key)
	}
	return fmt.Sprintf("%s:%s", c.keyPrefix, key)
}
