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
	"log/slog"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidishook"
)

var _ rueidishook.Hook = (*slowLogHook)(nil)

// slowLogHook logs commands that take longer than threshold, and every
// command that fails with something other than a nil reply or a script
// cache miss.
type slowLogHook struct {
	threshold time.Duration
	logger    *slog.Logger
}

// WithSlowLog returns client wrapped with the slow command hook. A
// non-positive threshold returns client unchanged.
func WithSlowLog(client rueidis.Client, threshold time.Duration) rueidis.Client {
	if threshold <= 0 {
		return client
	}
	return rueidishook.WithHook(client, &slowLogHook{
		threshold: threshold,
		logger:    slog.Default().With(slog.String("component", "redis_counter")),
	})
}

func (h *slowLogHook) observe(ctx context.Context, cmd []string, start time.Time, err error) {
	elapsed := time.Since(start)
	name := ""
	if len(cmd) > 0 {
		name = strings.ToUpper(cmd[0])
	}
	if ret, ok := rueidis.IsRedisErr(err); ok && ret.IsNoScript() {
		// script cache miss, retried with EVAL
		err = nil
	}
	if err != nil && !rueidis.IsRedisNil(err) {
		h.logger.WarnContext(ctx, "redis command failed",
			slog.String("command", name),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
		return
	}
	if elapsed >= h.threshold {
		h.logger.WarnContext(ctx, "slow redis command",
			slog.String("command", name),
			slog.Duration("elapsed", elapsed),
		)
	}
}

func (h *slowLogHook) Do(client rueidis.Client, ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	start := time.Now()
	resp := client.Do(ctx, cmd)
	h.observe(ctx, cmd.Commands(), start, resp.Error())
	return resp
}

func (h *slowLogHook) DoMulti(client rueidis.Client, ctx context.Context, multi ...rueidis.Completed) []rueidis.RedisResult {
	start := time.Now()
	resps := client.DoMulti(ctx, multi...)
	for i, resp := range resps {
		h.observe(ctx, multi[i].Commands(), start, resp.Error())
	}
	return resps
}

func (h *slowLogHook) DoCache(client rueidis.Client, ctx context.Context, cmd rueidis.Cacheable, ttl time.Duration) rueidis.RedisResult {
	start := time.Now()
	resp := client.DoCache(ctx, cmd, ttl)
	h.observe(ctx, cmd.Commands(), start, resp.Error())
	return resp
}

func (h *slowLogHook) DoMultiCache(client rueidis.Client, ctx context.Context, multi ...rueidis.CacheableTTL) []rueidis.RedisResult {
	start := time.Now()
	resps := client.DoMultiCache(ctx, multi...)
	for i, resp := range resps {
		h.observe(ctx, multi[i].Cmd.Commands(), start, resp.Error())
	}
	return resps
}

func (h *slowLogHook) Receive(client rueidis.Client, ctx context.Context, subscribe rueidis.Completed, fn func(msg rueidis.PubSubMessage)) error {
	return client.Receive(ctx, subscribe, fn)
}

func (h *slowLogHook) DoStream(client rueidis.Client, ctx context.Context, cmd rueidis.Completed) rueidis.RedisResultStream {
	return client.DoStream(ctx, cmd)
}

func (h *slowLogHook) DoMultiStream(client rueidis.Client, ctx context.Context, multi ...rueidis.Completed) rueidis.MultiRedisResultStream {
	return client.DoMultiStream(ctx, multi...)
}
