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
	"fmt"
	"time"

	"httperrors/modules/ratelimit"

	goredis "github.com/redis/go-redis/v9"
)

var _ ratelimit.CounterStore = (*GoRedisCounter)(nil)

// goRedisIncrWithTTL runs the same script as the rueidis counter.
var goRedisIncrWithTTL = goredis.NewScript(incrWithTTLLua)

// GoRedisCounter is a ratelimit.CounterStore backed by go-redis.
type GoRedisCounter struct {
	client goredis.Scripter
}

func NewGoRedisCounter(client goredis.Scripter) *GoRedisCounter {
	return &GoRedisCounter{client: client}
}

// Incr implements ratelimit.CounterStore.
func (g *GoRedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	vals, err := goRedisIncrWithTTL.Run(ctx, g.client, []string{key}, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("go-redis counter Incr: %w", err)
	}
	return parseReply(vals)
}
