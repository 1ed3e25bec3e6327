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
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidWindow      = errors.New("ratelimit: window must be positive")
	ErrInvalidMaxRequests = errors.New("ratelimit: max requests must be positive")
)

type (
	LimiterFactory func(cfg Config) (RateLimiter, error)

	// RateLimiter enforces time-based rate limits, e.g. "100 requests per 60 seconds".
	RateLimiter interface {
		// Decide charges one request against key and reports whether it is admitted.
		// The charge stands even if the caller's request is later cancelled.
		Decide(ctx context.Context, key Key) (Decision, error)
	}

	// For application layer rate limiting, key can be userId, remoteIp, etc.
	// It is up to the package users to decide on the final string output format.
	Key string

	// Config is immutable once a limiter is built from it.
	Config struct {
		Window      time.Duration
		MaxRequests int64
	}

	// Decision is the outcome of one Decide call, taken from the window
	// state right after the update.
	Decision struct {
		Allowed   bool
		Count     int64 // requests charged to the current window, denied ones included
		Limit     int64
		ResetAt   time.Time
		DecidedAt time.Time
	}
)

func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidWindow, c.Window)
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxRequests, c.MaxRequests)
	}
	return nil
}

// Remaining is never negative, even once denied requests push Count past Limit.
func (d Decision) Remaining() int64 {
	return max(d.Limit-d.Count, 0)
}

func (d Decision) RetryAfter() time.Duration {
	return max(d.ResetAt.Sub(d.DecidedAt), 0)
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (d Decision) RetryAfterSeconds() int64 {
	ra := d.RetryAfter()
	return int64((ra + time.Second - 1) / time.Second)
}
