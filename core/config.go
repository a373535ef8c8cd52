package core

import (
	"fmt"
	"strings"
	"time"
)

type RetryConfig struct {
	MaxAttempts  int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay time.Duration `koanf:"initial_delay" mapstructure:"initial_delay"`
}

type Config struct {
	ServiceName    string        `koanf:"service_name" mapstructure:"service_name"`
	Platforms      []string      `koanf:"platforms" mapstructure:"platforms"`
	LookupTimeout  time.Duration `koanf:"lookup_timeout" mapstructure:"lookup_timeout"`
	BroadcastRetry RetryConfig   `koanf:"broadcast_retry" mapstructure:"broadcast_retry"`
	CounterRetry   RetryConfig   `koanf:"counter_retry" mapstructure:"counter_retry"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:   "hookrelay",
		LookupTimeout: 2 * time.Second,
		BroadcastRetry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 250 * time.Millisecond,
		},
		CounterRetry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.LookupTimeout <= 0 {
		return fmt.Errorf("core: lookup_timeout must be positive")
	}
	if c.BroadcastRetry.MaxAttempts < 1 || c.CounterRetry.MaxAttempts < 1 {
		return fmt.Errorf("core: retry max_attempts must be at least 1")
	}
	return nil
}

func (c RetryConfig) Policy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
	}
}
