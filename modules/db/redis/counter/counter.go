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

package counter

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"httperrors/modules/ratelimit"

	"github.com/redis/rueidis"
)

var (
	_ ratelimit.CounterStore = (*RedisCounter)(nil)

	//go:embed incr_ttl.lua
	incrWithTTLLua string

	// Atomically:
	// - INCR the key
	// - on the first hit, PEXPIRE it to the window length
	// - return the count with the remaining PTTL
	luaIncrWithTTL = rueidis.NewLuaScript(incrWithTTLLua)
)

// RedisCounter is a ratelimit.CounterStore backed by a rueidis client.
type RedisCounter struct {
	client rueidis.Client
}

func NewRedisCounter(client rueidis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// NewInstrumentedRedisCounter wraps client with a slog hook that reports
// commands slower than slow.
func NewInstrumentedRedisCounter(client rueidis.Client, slow time.Duration) *RedisCounter {
	return NewRedisCounter(WithSlowLog(client, slow))
}

// Incr implements ratelimit.CounterStore.
func (r *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	ms := ttl.Milliseconds()
	rr := luaIncrWithTTL.Exec(ctx, r.client, []string{key}, []string{strconv.FormatInt(ms, 10)})
	vals, err := rr.AsIntSlice()
	if err != nil {
		return 0, 0, fmt.Errorf("redis counter Incr: %w", err)
	}
	return parseReply(vals)
}

// parseReply decodes the {count, pttl} pair returned by the script.
func parseReply(vals []int64) (int64, time.Duration, error) {
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("redis counter: unexpected reply length %d", len(vals))
	}
	return vals[0], time.Duration(vals[1]) * time.Millisecond, nil
}
