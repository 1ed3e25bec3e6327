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

package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

// NewGoRedisClient is the go-redis counterpart of NewRueidisClient, for
// deployments that already standardize on go-redis.
func NewGoRedisClient(ctx context.Context, cfg RedisConfig) (*goredis.Client, error) {
	if err := checkURL(cfg); err != nil {
		return nil, err
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("go-redis: parse url: %w", err)
	}
	opts.ClientName = cfg.ClientName
	if cfg.DisableRetry {
		opts.MaxRetries = -1
	}
	if cfg.ConnWriteTimeout > 0 {
		opts.WriteTimeout = cfg.ConnWriteTimeout
	}
	if cfg.SkipTLSVerify {
		if opts.TLSConfig == nil {
			opts.TLSConfig = &tls.Config{}
		}
		opts.TLSConfig.InsecureSkipVerify = true //nolint:gosec
	}

	cli := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.pingTimeout())
	defer cancel()
	if err := cli.Ping(pingCtx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("go-redis: ping: %w", err)
	}

	slog.Info("go-redis: connected", slog.String("addr", opts.Addr))
	return cli, nil
}
