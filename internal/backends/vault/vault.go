// Package vault implements the secret backend on top of a HashiCorp Vault
// KV engine, authenticating with AppRole.
package vault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/vault/api"

	"github.com/systmms/containerlib/internal/backends/tlsconf"
	"github.com/systmms/containerlib/internal/config"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/pkg/backend"
)

// Adapter stores each secret at <prefix>/<key> as {"value": <string>}
type Adapter struct {
	settings config.VaultSettings
	client   *api.Client
	logger   *logging.Logger
	mu       sync.Mutex
}

// Option is a functional option for the Vault adapter
type Option func(*Adapter)

// WithClient sets a preconfigured Vault client (for testing)
func WithClient(c *api.Client) Option {
	return func(a *Adapter) {
		a.client = c
	}
}

// New creates the Vault adapter. Login happens lazily before the first call.
func New(settings config.VaultSettings, logger *logging.Logger, opts ...Option) (*Adapter, error) {
	a := &Adapter{
		settings: settings,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}

	tlsconf.WarnUnverified(logger, a.Name(), settings.Scheme, settings.Verify)

	if a.client == nil {
		cfg := api.DefaultConfig()
		cfg.Address = fmt.Sprintf("%s://%s:%d", settings.Scheme, settings.Host, settings.Port)

		if settings.Scheme == "https" {
			tlsCfg := &api.TLSConfig{Insecure: !settings.Verify}
			if settings.Verify && tlsconf.FileExists(settings.CACertFile) {
				tlsCfg.CACert = settings.CACertFile
			}
			if tlsconf.ClientCertPair(settings.CertFile, settings.KeyFile) {
				tlsCfg.ClientCert = settings.CertFile
				tlsCfg.ClientKey = settings.KeyFile
			}
			if err := cfg.ConfigureTLS(tlsCfg); err != nil {
				return nil, fmt.Errorf("failed to configure vault TLS: %w", err)
			}
		}

		client, err := api.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create vault client: %w", err)
		}
		a.client = client
	}

	// only AppRole tokens are used, never one inherited from VAULT_TOKEN
	a.client.ClearToken()
	return a, nil
}

// Name returns the adapter name
func (a *Adapter) Name() string {
	return "vault"
}

func (a *Adapter) path(key string) string {
	return strings.TrimSuffix(a.settings.Prefix, "/") + "/" + key
}

// login authenticates with AppRole unless a token is already held
func (a *Adapter) login(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client.Token() != "" {
		return nil
	}

	roleID, err := os.ReadFile(a.settings.RoleIDFile)
	if err != nil {
		return fmt.Errorf("failed to read role_id: %w", err)
	}
	secretID, err := os.ReadFile(a.settings.SecretIDFile)
	if err != nil {
		return fmt.Errorf("failed to read secret_id: %w", err)
	}

	path := fmt.Sprintf("auth/%s/login", strings.Trim(a.settings.AppRolePath, "/"))
	secret, err := a.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"role_id":   strings.TrimSpace(string(roleID)),
		"secret_id": strings.TrimSpace(string(secretID)),
	})
	if err != nil {
		return fmt.Errorf("approle login failed: %w", err)
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return errors.New("approle login returned no client token")
	}

	a.client.SetToken(secret.Auth.ClientToken)
	a.logger.Debug("authenticated to vault with approle")
	return nil
}

func isForbidden(err error) bool {
	var respErr *api.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusForbidden
}

// call runs fn after login. A 403 drops the token and retries fn once
// with a fresh login.
func (a *Adapter) call(ctx context.Context, op string, fn func() error) error {
	if err := a.login(ctx); err != nil {
		return backend.Unavailable(a.Name(), op, err)
	}

	err := fn()
	if isForbidden(err) {
		a.logger.Debug("vault rejected token during %s; logging in again", op)
		a.client.ClearToken()
		if err := a.login(ctx); err != nil {
			return backend.Unavailable(a.Name(), op, err)
		}
		err = fn()
	}
	return backend.Unavailable(a.Name(), op, err)
}

// Get returns the value of key, or def when it does not exist
func (a *Adapter) Get(ctx context.Context, key, def string) (string, error) {
	var secret *api.Secret
	err := a.call(ctx, "get", func() error {
		var err error
		secret, err = a.client.Logical().ReadWithContext(ctx, a.path(key))
		return err
	})
	if err != nil {
		return def, err
	}
	if secret == nil || secret.Data == nil {
		return def, nil
	}

	v, ok := secret.Data["value"]
	if !ok || v == nil {
		return def, nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return backend.SafeValue(v)
}

// Set stores value under key
func (a *Adapter) Set(ctx context.Context, key string, value any) (bool, error) {
	v, err := backend.SafeValue(value)
	if err != nil {
		return false, err
	}

	err = a.call(ctx, "set", func() error {
		_, err := a.client.Logical().WriteWithContext(ctx, a.path(key), map[string]interface{}{"value": v})
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetAll lists the keys under the prefix and reads each of them
func (a *Adapter) GetAll(ctx context.Context) (map[string]string, error) {
	var listing *api.Secret
	err := a.call(ctx, "get_all", func() error {
		var err error
		listing, err = a.client.Logical().ListWithContext(ctx, strings.TrimSuffix(a.settings.Prefix, "/"))
		return err
	})
	if err != nil {
		return nil, err
	}

	out := map[string]string{}
	if listing == nil || listing.Data == nil {
		return out, nil
	}
	keys, _ := listing.Data["keys"].([]interface{})
	for _, k := range keys {
		key, ok := k.(string)
		if !ok || strings.HasSuffix(key, "/") {
			continue
		}
		v, err := a.Get(ctx, key, "")
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// SetAll stores every pair, key by key
func (a *Adapter) SetAll(ctx context.Context, data map[string]any) (bool, error) {
	return backend.SetEach(ctx, a.Name(), data, a.Set)
}
