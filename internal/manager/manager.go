// Package manager pairs the config and secret backends of a process and adds
// the secret file helpers on top of the secret backend.
package manager

import (
	"context"
	"fmt"

	"github.com/systmms/containerlib/internal/backends"
	"github.com/systmms/containerlib/internal/config"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/pkg/backend"
	"github.com/systmms/containerlib/pkg/secretcipher"
)

// Manager holds the config and secret managers of one process
type Manager struct {
	Config *ConfigManager
	Secret *SecretManager
}

type options struct {
	registry      *backends.Registry
	configAdapter backend.Adapter
	secretAdapter backend.Adapter
	cipher        secretcipher.SecretCipher
}

// Option is a functional option for New
type Option func(*options)

// WithRegistry sets the registry used to resolve adapter selectors
func WithRegistry(r *backends.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithConfigAdapter bypasses the registry for the config backend
func WithConfigAdapter(a backend.Adapter) Option {
	return func(o *options) {
		o.configAdapter = a
	}
}

// WithSecretAdapter bypasses the registry for the secret backend
func WithSecretAdapter(a backend.Adapter) Option {
	return func(o *options) {
		o.secretAdapter = a
	}
}

// WithCipher replaces the TripleDES cipher of the secret manager
func WithCipher(c secretcipher.SecretCipher) Option {
	return func(o *options) {
		o.cipher = c
	}
}

// New builds both managers. Adapters are chosen once, from settings.
func New(ctx context.Context, settings *config.Settings, logger *logging.Logger, opts ...Option) (*Manager, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = backends.NewRegistry()
	}

	if o.configAdapter == nil {
		a, err := o.registry.Create(ctx, backends.KindConfig, settings, logger)
		if err != nil {
			return nil, err
		}
		o.configAdapter = a
	}
	if o.secretAdapter == nil {
		a, err := o.registry.Create(ctx, backends.KindSecret, settings, logger)
		if err != nil {
			return nil, err
		}
		o.secretAdapter = a
	}

	var secretOpts []SecretOption
	if o.cipher != nil {
		secretOpts = append(secretOpts, WithSecretCipher(o.cipher))
	}

	return &Manager{
		Config: NewConfigManager(o.configAdapter),
		Secret: NewSecretManager(o.secretAdapter, logger, secretOpts...),
	}, nil
}

// Close releases the cached salt
func (m *Manager) Close() {
	if m.Secret != nil {
		m.Secret.Close()
	}
}

// ConfigManager proxies the config backend
type ConfigManager struct {
	adapter backend.Adapter
}

// NewConfigManager wraps adapter
func NewConfigManager(adapter backend.Adapter) *ConfigManager {
	return &ConfigManager{adapter: adapter}
}

// Adapter returns the backing adapter
func (m *ConfigManager) Adapter() backend.Adapter {
	return m.adapter
}

// Get returns the value of key, or def when it is absent
func (m *ConfigManager) Get(ctx context.Context, key, def string) (string, error) {
	return m.adapter.Get(ctx, key, def)
}

// Set stores value under key
func (m *ConfigManager) Set(ctx context.Context, key string, value any) (bool, error) {
	return m.adapter.Set(ctx, key, value)
}

// GetAll returns every config pair
func (m *ConfigManager) GetAll(ctx context.Context) (map[string]string, error) {
	return m.adapter.GetAll(ctx)
}

// SetAll stores every pair of data
func (m *ConfigManager) SetAll(ctx context.Context, data map[string]any) (bool, error) {
	return m.adapter.SetAll(ctx, data)
}

// String describes the manager for log lines
func (m *ConfigManager) String() string {
	return fmt.Sprintf("config manager (%s)", m.adapter.Name())
}
