package endpoint

import (
	"context"
	"fmt"
	"net/url"

	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/internal/entity"
)

// Config describes one statically configured endpoint. A slice of these is
// typically bound from the application's configuration file (see the config
// package) and loaded once at startup.
type Config struct {
	Name      string            `mapstructure:"name" yaml:"name"`
	TenantID  string            `mapstructure:"tenant_id" yaml:"tenant_id"`
	URL       string            `mapstructure:"url" yaml:"url"`
	Secret    string            `mapstructure:"secret" yaml:"secret"`
	Topics    []string          `mapstructure:"topics" yaml:"topics"`
	Active    bool              `mapstructure:"active" yaml:"active"`
	RateLimit int               `mapstructure:"rate_limit" yaml:"rate_limit"`
	Headers   map[string]string `mapstructure:"headers" yaml:"headers"`
}

// validate rejects malformed endpoint configuration. A missing secret or an
// invalid URL is fatal at load time, never silently skipped at delivery time.
func (c Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("endpoint config: name is required")
	}
	if c.TenantID == "" {
		return fmt.Errorf("endpoint config %q: tenant_id is required", c.Name)
	}
	if c.Secret == "" {
		return fmt.Errorf("endpoint config %q: secret is required", c.Name)
	}
	if _, err := url.ParseRequestURI(c.URL); err != nil {
		return fmt.Errorf("endpoint config %q: invalid url %q: %w", c.Name, c.URL, err)
	}
	if len(c.Topics) == 0 {
		return fmt.Errorf("endpoint config %q: at least one topic pattern is required", c.Name)
	}
	return nil
}

// LoadStatic validates every configured endpoint and persists it into the
// store. Any invalid entry aborts the whole load: a misconfigured registry is
// a startup failure, not a delivery-time skip.
func LoadStatic(ctx context.Context, store Store, configs []Config) ([]*Endpoint, error) {
	loaded := make([]*Endpoint, 0, len(configs))

	for _, c := range configs {
		if err := c.validate(); err != nil {
			return nil, err
		}

		ep := &Endpoint{
			Entity:    entity.New(),
			ID:        id.NewEndpointID(),
			TenantID:  c.TenantID,
			Name:      c.Name,
			URL:       c.URL,
			Secret:    c.Secret,
			Topics:    c.Topics,
			Headers:   c.Headers,
			Active:    c.Active,
			RateLimit: c.RateLimit,
		}

		if err := store.CreateEndpoint(ctx, ep); err != nil {
			return nil, fmt.Errorf("endpoint config %q: %w", c.Name, err)
		}
		loaded = append(loaded, ep)
	}

	return loaded, nil
}
