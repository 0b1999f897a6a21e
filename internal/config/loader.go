package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if PADDOCK_CONFIG is set
//  3. env (prefix PADDOCK_)
func Load(ctx context.Context) (*Config, error) {
	_ = ctx // reserved for provider hooks

	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("PADDOCK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: PADDOCK_VIDEO_AI_BASE_URL, PADDOCK_MAX_RETRIES, ...
	// Map env keys like PADDOCK_MAX_RETRIES -> max_retries (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("PADDOCK_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "paddock_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize clamps the timeout triple the way the pipeline expects:
// fail-fast connect, generous read, and a total that always leaves room
// for at least one attempt.
func (c *Config) normalize() {
	if c.ConnectTimeoutMS < 500 {
		c.ConnectTimeoutMS = 500
	}
	if c.ReadTimeoutMS < 1000 {
		c.ReadTimeoutMS = 1000
	}
	if c.TotalTimeoutMS < c.ConnectTimeoutMS+1000 {
		c.TotalTimeoutMS = c.ConnectTimeoutMS + 1000
	}
	if c.ConnectTimeoutMS+c.ReadTimeoutMS > c.TotalTimeoutMS {
		c.ReadTimeoutMS = c.TotalTimeoutMS - c.ConnectTimeoutMS
		if c.ReadTimeoutMS < 1000 {
			c.ReadTimeoutMS = 1000
		}
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxConcurrentCalls < 1 {
		c.MaxConcurrentCalls = 1
	}
	if c.GatewayRPS < 0 {
		c.GatewayRPS = 0
	}
	if c.GatewayRPS > 0 && c.GatewayBurst < 1 {
		c.GatewayBurst = 1
	}
	if c.JobPollMS < 500 {
		c.JobPollMS = 500
	}
	if c.MaxOpponents < 1 {
		c.MaxOpponents = 1
	}
}

func (c *Config) validate() error {
	if c.MetricsAddr == "" {
		return fmt.Errorf("%w: metrics_addr must not be empty", ErrInvalidConfig)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	for name, w := range c.CompositeWeights {
		if w < 0 {
			return fmt.Errorf("%w: composite weight %q must be non-negative", ErrInvalidConfig, name)
		}
	}
	if c.RelativeTemperature <= 0 {
		return fmt.Errorf("%w: relative_temperature must be positive", ErrInvalidConfig)
	}
	return nil
}
