package ratelimit

import (
	"fmt"
	"time"

	rl "httperrors/modules/ratelimit"
)

type (
	KeyStrategyId string
	BackendId     string
)

const (
	RemoteIpKeyStrategy     KeyStrategyId = "remote_ip"
	ForwardedForKeyStrategy KeyStrategyId = "forwarded_for"
	HeaderKeyStrategy       KeyStrategyId = "header"

	MemoryBackend  BackendId = "memory"
	RueidisBackend BackendId = "rueidis"
	GoRedisBackend BackendId = "goredis"
)

type RestHTTPConfig struct {
	Window      time.Duration `env:"WINDOW" envDefault:"1m"`
	MaxRequests int64         `env:"MAX_REQUESTS" envDefault:"100"`
	KeyStrategy KeyStrategyId `env:"KEY_STRATEGY" envDefault:"remote_ip"`
	// Only read by the header key strategy.
	KeyHeader string    `env:"KEY_HEADER" envDefault:"X-API-Key"`
	Backend   BackendId `env:"BACKEND" envDefault:"memory"`
	// Namespaces counters in shared backends.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"ratelimit"`
	// Upper bound on one shared-backend round trip. 0 waits indefinitely.
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"250ms"`
	// Number of independently locked partitions of the in-memory store.
	Shards int `env:"SHARDS" envDefault:"64"`
}

func (c RestHTTPConfig) LimiterConfig() rl.Config {
	return rl.Config{Window: c.Window, MaxRequests: c.MaxRequests}
}

func (c RestHTTPConfig) Validate() error {
	if err := c.LimiterConfig().Validate(); err != nil {
		return err
	}
	switch c.Backend {
	case MemoryBackend, RueidisBackend, GoRedisBackend:
	default:
		return fmt.Errorf("ratelimit: unknown backend %q", c.Backend)
	}
	if _, err := c.KeyFunc(); err != nil {
		return err
	}
	return nil
}

// KeyFunc resolves the configured key strategy.
func (c RestHTTPConfig) KeyFunc() (KeyFunc, error) {
	switch c.KeyStrategy {
	case "", RemoteIpKeyStrategy:
		return RemoteAddrKeyFunc, nil
	case ForwardedForKeyStrategy:
		return ForwardedForKeyFunc, nil
	case HeaderKeyStrategy:
		if c.KeyHeader == "" {
			return nil, fmt.Errorf("ratelimit: key strategy %q needs a header name", c.KeyStrategy)
		}
		return HeaderKeyFunc(c.KeyHeader), nil
	default:
		return nil, fmt.Errorf("ratelimit: no such key strategy %q", c.KeyStrategy)
	}
}
