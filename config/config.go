// Package config loads file-based configuration for the notification
// subsystem. Values can be overridden through NOTIFY_-prefixed environment
// variables (e.g. NOTIFY_REDIS_ADDR).
package config

import (
	"fmt"
	"net/textproto"
	"strings"
	"time"

	"github.com/spf13/viper"

	notify "github.com/revred/smartpay-notify"
	"github.com/revred/smartpay-notify/endpoint"
)

// Redis holds connection settings for the Redis-backed store.
type Redis struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// File is the on-disk configuration document.
type File struct {
	Concurrency    int           `mapstructure:"concurrency"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	BackoffCap     time.Duration `mapstructure:"backoff_cap"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`

	Redis Redis `mapstructure:"redis"`

	// Endpoints are statically configured delivery targets, loaded at
	// startup via Hub.LoadEndpoints.
	Endpoints []endpoint.Config `mapstructure:"endpoints"`
}

// Load reads the configuration file at path. Missing keys fall back to the
// Hub defaults; environment variables override file values.
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvPrefix("NOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := notify.DefaultConfig()
	v.SetDefault("concurrency", defaults.Concurrency)
	v.SetDefault("poll_interval", defaults.PollInterval)
	v.SetDefault("batch_size", defaults.BatchSize)
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("max_attempts", defaults.MaxAttempts)
	v.SetDefault("initial_backoff", defaults.InitialBackoff)
	v.SetDefault("backoff_cap", defaults.BackoffCap)
	v.SetDefault("idempotency_ttl", defaults.IdempotencyTTL)
	v.SetDefault("cache_ttl", defaults.CacheTTL)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	// Viper lowercases map keys; restore canonical header casing so custom
	// headers go out on the wire as written in the file.
	for i := range f.Endpoints {
		if len(f.Endpoints[i].Headers) == 0 {
			continue
		}
		canonical := make(map[string]string, len(f.Endpoints[i].Headers))
		for k, val := range f.Endpoints[i].Headers {
			canonical[textproto.CanonicalMIMEHeaderKey(k)] = val
		}
		f.Endpoints[i].Headers = canonical
	}

	return &f, nil
}

// HubOptions translates the file into Hub options.
func (f *File) HubOptions() []notify.Option {
	return []notify.Option{
		notify.WithConcurrency(f.Concurrency),
		notify.WithPollInterval(f.PollInterval),
		notify.WithBatchSize(f.BatchSize),
		notify.WithRequestTimeout(f.RequestTimeout),
		notify.WithMaxAttempts(f.MaxAttempts),
		notify.WithBackoff(f.InitialBackoff, f.BackoffCap),
		notify.WithIdempotencyTTL(f.IdempotencyTTL),
		notify.WithCacheTTL(f.CacheTTL),
	}
}
