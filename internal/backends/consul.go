package backends

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/consul/api"

	"github.com/systmms/containerlib/internal/backends/tlsconf"
	"github.com/systmms/containerlib/internal/config"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/pkg/backend"
)

// ConsulKV is the subset of *api.KV used by the Consul adapter.
// This allows for an in-memory KV in tests
type ConsulKV interface {
	Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
	Put(p *api.KVPair, q *api.WriteOptions) (*api.WriteMeta, error)
	List(prefix string, q *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error)
}

// Consul stores config under a fixed prefix of the Consul KV store
type Consul struct {
	settings config.ConsulSettings
	kv       ConsulKV
	logger   *logging.Logger
}

// ConsulOption is a functional option for the Consul adapter
type ConsulOption func(*Consul)

// WithConsulKV sets a custom KV client (for testing)
func WithConsulKV(kv ConsulKV) ConsulOption {
	return func(c *Consul) {
		c.kv = kv
	}
}

// NewConsul creates the Consul config adapter. No request is made until
// the first call.
func NewConsul(settings config.ConsulSettings, logger *logging.Logger, opts ...ConsulOption) (*Consul, error) {
	c := &Consul{
		settings: settings,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	tlsconf.WarnUnverified(logger, c.Name(), settings.Scheme, settings.Verify)

	if c.kv == nil {
		client, err := api.NewClient(consulClientConfig(settings))
		if err != nil {
			return nil, fmt.Errorf("failed to create consul client: %w", err)
		}
		c.kv = client.KV()
	}
	return c, nil
}

// consulClientConfig maps settings onto the client configuration. Client
// certificates are only used when both files exist.
func consulClientConfig(s config.ConsulSettings) *api.Config {
	cfg := api.DefaultConfig()
	cfg.Address = fmt.Sprintf("%s:%d", s.Host, s.Port)
	cfg.Scheme = s.Scheme
	cfg.Token = tlsconf.ReadTrimmed(s.TokenFile)

	cfg.TLSConfig = api.TLSConfig{InsecureSkipVerify: !s.Verify}
	if s.Verify && tlsconf.FileExists(s.CACertFile) {
		cfg.TLSConfig.CAFile = s.CACertFile
	}
	if tlsconf.ClientCertPair(s.CertFile, s.KeyFile) {
		cfg.TLSConfig.CertFile = s.CertFile
		cfg.TLSConfig.KeyFile = s.KeyFile
	}
	return cfg
}

// Name returns the adapter name
func (c *Consul) Name() string {
	return "consul"
}

func (c *Consul) key(k string) string {
	return c.settings.Prefix + k
}

func (c *Consul) queryOptions(ctx context.Context) *api.QueryOptions {
	q := &api.QueryOptions{}
	switch c.settings.Consistency {
	case "stale":
		q.AllowStale = true
	case "consistent":
		q.RequireConsistent = true
	}
	return q.WithContext(ctx)
}

// Get returns the value of key, or def when it does not exist
func (c *Consul) Get(ctx context.Context, key, def string) (string, error) {
	pair, _, err := c.kv.Get(c.key(key), c.queryOptions(ctx))
	if err != nil {
		return def, backend.Unavailable(c.Name(), "get", err)
	}
	if pair == nil {
		return def, nil
	}
	return string(pair.Value), nil
}

// Set stores value under key
func (c *Consul) Set(ctx context.Context, key string, value any) (bool, error) {
	v, err := backend.SafeValue(value)
	if err != nil {
		return false, err
	}
	pair := &api.KVPair{Key: c.key(key), Value: []byte(v)}
	if _, err := c.kv.Put(pair, (&api.WriteOptions{}).WithContext(ctx)); err != nil {
		return false, backend.Unavailable(c.Name(), "set", err)
	}
	return true, nil
}

// GetAll returns every key under the prefix, with the prefix stripped
func (c *Consul) GetAll(ctx context.Context) (map[string]string, error) {
	pairs, _, err := c.kv.List(c.settings.Prefix, c.queryOptions(ctx))
	if err != nil {
		return nil, backend.Unavailable(c.Name(), "get_all", err)
	}

	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k := strings.TrimPrefix(p.Key, c.settings.Prefix)
		if k == "" {
			continue
		}
		out[k] = string(p.Value)
	}
	return out, nil
}

// SetAll stores every pair, key by key
func (c *Consul) SetAll(ctx context.Context, data map[string]any) (bool, error) {
	return backend.SetEach(ctx, c.Name(), data, c.Set)
}
