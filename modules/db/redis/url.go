package redis

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
)

// checkURL enforces the TLS policy shared by both client constructors.
func checkURL(cfg RedisConfig) error {
	if cfg.URL == "" {
		return errors.New("redis: URL must not be empty")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("redis: parse url: %w", err)
	}
	switch u.Scheme {
	case "rediss":
	case "redis":
		if cfg.RequireTLS {
			return errors.New("redis: RequireTLS=true but URL uses redis:// (plaintext); use rediss://")
		}
		if cfg.SkipTLSVerify {
			slog.Warn("redis: redis:// URL disables TLS even though SkipTLSVerify is set",
				slog.String("host", u.Hostname()),
			)
		}
	default:
		return fmt.Errorf("redis: unsupported scheme %q", u.Scheme)
	}
	return nil
}
