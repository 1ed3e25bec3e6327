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
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"httperrors/modules/appconfig"
	"httperrors/modules/clock"
	"httperrors/modules/middleware"
	"httperrors/modules/middleware/ratelimit"
	rl "httperrors/modules/ratelimit"
	"httperrors/modules/server"
	"httperrors/modules/services"
	"httperrors/modules/telemetry"
)

const (
	frameworkStdlib = "stdlib"
	frameworkEcho   = "echo"
)

func serveCmd() *cobra.Command {
	var (
		envFile   string
		framework string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo API behind the rate limiter",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch framework {
			case frameworkStdlib, frameworkEcho:
			default:
				return fmt.Errorf("unknown framework %q", framework)
			}
			return serve(cmd.Context(), envFile, framework)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().StringVar(&framework, "framework", frameworkStdlib, "HTTP stack to serve with (stdlib|echo)")
	return cmd
}

func serve(ctx context.Context, envFile, framework string) error {
	// --- application config ----
	cfg, err := appconfig.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	// manual dependency injections, imo there's no need to over-engineer with DI frameworks like Fx or Wire
	clk := clock.RealClockProvider()

	otelShutdown, err := telemetry.Init(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("telemetry not properly configured: %w", err)
	}
	defer func() {
		if err := otelShutdown(context.WithoutCancel(ctx)); err != nil {
			slog.ErrorContext(ctx, "telemetry shutdown error", slog.Any("error", err))
		}
	}()

	httpMetrics, err := telemetry.NewHTTPMetrics(cfg.Otel.ServiceName)
	if err != nil {
		slog.WarnContext(ctx, "failed to initialize HTTP metrics, continuing without metrics", slog.Any("error", err))
		httpMetrics = nil
	}
	rlMetrics, err := telemetry.NewRateLimitMetrics(cfg.Otel.ServiceName)
	if err != nil {
		return fmt.Errorf("rate limit metrics: %w", err)
	}

	// --- rate limiter ---
	limiter, closeLimiter, err := buildLimiter(ctx, cfg, clk, rlMetrics)
	if err != nil {
		return err
	}
	defer closeLimiter()

	keyFn, err := cfg.RateLimit.KeyFunc()
	if err != nil {
		return err
	}
	slog.Debug("app rate limit config", slog.Any("rate_limit_config", cfg.RateLimit))

	rlOpts := []ratelimit.Option{
		ratelimit.WithKeyFunc(keyFn),
		ratelimit.WithDecisionHook(rlMetrics.RecordDecision),
	}

	if framework == frameworkEcho {
		return serveEcho(ctx, cfg, limiter, rlOpts)
	}

	srv, err := server.New(
		cfg.HTTP.Host, cfg.HTTP.Port,
		server.WithWriteTimeout(10*time.Second),
		server.WithReadTimeout(10*time.Second),
		server.WithServices(services.NewDemoService()),
		server.WithGlobalMiddlewares(
			middleware.Telemetry(httpMetrics),
			ratelimit.New(limiter, append(rlOpts,
				ratelimit.WithErrorHandler(middleware.WriteError),
				ratelimit.WithDecisionHook(middleware.ObserveDecision),
			)...),
			middleware.Recovery(nil),
		),
	)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	return srv.Run(ctx)
}

func serveEcho(ctx context.Context, cfg *appconfig.Config, limiter rl.RateLimiter, rlOpts []ratelimit.Option) error {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.EchoErrorHandler
	e.Use(ratelimit.Echo(limiter, rlOpts...))

	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/v1/ping", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "pong"})
	})
	e.GET("/v1/errors/:kind", func(c echo.Context) error {
		fn, ok := services.ErrorKinds[c.Param("kind")]
		if !ok {
			return echo.ErrNotFound
		}
		return fn()
	})

	errCh := make(chan error, 1)
	go func() {
		addr := net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port))
		slog.InfoContext(ctx, "started echo server", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
	}

	sCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return errors.Join(serveErr, e.Shutdown(sCtx))
}
