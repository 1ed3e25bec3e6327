package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"httperrors/modules/db/redis"
	"httperrors/modules/middleware/ratelimit"
	"httperrors/modules/telemetry"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP HTTPConfig `envPrefix:"HTTP_"`

	// --- core infra ----
	// Only read when the rate limit backend is rueidis or goredis.
	Redis redis.RedisConfig `envPrefix:"REDIS_"`

	// --- middlewares ----
	RateLimit ratelimit.RestHTTPConfig `envPrefix:"RATE_LIMIT_"`

	// --- otel ----
	// since it has special naming conventions, we do not use prefix here
	Otel telemetry.Config
}

type HTTPConfig struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`
}

// Load reads envFile into the process environment (without overriding
// variables already set) and parses Config from it. A missing envFile is
// ignored; an empty envFile skips dotenv loading entirely.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("appconfig: load %s: %w", envFile, err)
			}
			slog.Debug("env file not found, using process environment", slog.String("path", envFile))
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func validate(c *Config) error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("appconfig: invalid HTTP_PORT %d", c.HTTP.Port)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("appconfig: %w", err)
	}
	if c.RateLimit.Backend != ratelimit.MemoryBackend && c.Redis.URL == "" {
		return fmt.Errorf("appconfig: rate limit backend %q needs REDIS_URL", c.RateLimit.Backend)
	}
	return nil
}
