package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/internal/secure"
	"github.com/systmms/containerlib/pkg/backend"
	"github.com/systmms/containerlib/pkg/secretcipher"
)

// SaltKey is the secret holding the cipher key for encoded values
const SaltKey = "encoded_salt"

// ErrNoSalt is returned when an encode or decode is attempted before the
// salt secret exists.
var ErrNoSalt = errors.New("secret " + SaltKey + " is not set")

// SecretManager proxies the secret backend and encrypts or decrypts values
// with the salt stored in that same backend.
type SecretManager struct {
	adapter backend.Adapter
	cipher  secretcipher.SecretCipher
	logger  *logging.Logger

	mu   sync.Mutex
	salt *secure.Key
}

// SecretOption is a functional option for the secret manager
type SecretOption func(*SecretManager)

// WithSecretCipher replaces the default TripleDES cipher
func WithSecretCipher(c secretcipher.SecretCipher) SecretOption {
	return func(m *SecretManager) {
		m.cipher = c
	}
}

// NewSecretManager wraps adapter
func NewSecretManager(adapter backend.Adapter, logger *logging.Logger, opts ...SecretOption) *SecretManager {
	m := &SecretManager{
		adapter: adapter,
		cipher:  secretcipher.TripleDES{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Adapter returns the backing adapter
func (m *SecretManager) Adapter() backend.Adapter {
	return m.adapter
}

// Get returns the value of key, or def when it is absent
func (m *SecretManager) Get(ctx context.Context, key, def string) (string, error) {
	return m.adapter.Get(ctx, key, def)
}

// Set stores value under key
func (m *SecretManager) Set(ctx context.Context, key string, value any) (bool, error) {
	ok, err := m.adapter.Set(ctx, key, value)
	if key == SaltKey {
		m.forgetSalt()
	}
	return ok, err
}

// GetAll returns every secret pair
func (m *SecretManager) GetAll(ctx context.Context) (map[string]string, error) {
	return m.adapter.GetAll(ctx)
}

// SetAll stores every pair of data
func (m *SecretManager) SetAll(ctx context.Context, data map[string]any) (bool, error) {
	ok, err := m.adapter.SetAll(ctx, data)
	if _, touched := data[SaltKey]; touched {
		m.forgetSalt()
	}
	return ok, err
}

// String describes the manager for log lines
func (m *SecretManager) String() string {
	return fmt.Sprintf("secret manager (%s)", m.adapter.Name())
}

// Close destroys the cached salt
func (m *SecretManager) Close() {
	m.forgetSalt()
}

func (m *SecretManager) forgetSalt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.salt != nil {
		m.salt.Destroy()
		m.salt = nil
	}
}

// saltKey returns the cached salt, reading it from the backend on first use
func (m *SecretManager) saltKey(ctx context.Context) (*secure.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.salt != nil {
		return m.salt, nil
	}

	salt, err := m.adapter.Get(ctx, SaltKey, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", SaltKey, err)
	}
	if salt == "" {
		return nil, ErrNoSalt
	}

	key, err := secure.NewKey([]byte(salt))
	if err != nil {
		return nil, err
	}
	m.salt = key
	m.logger.Debug("cached %s from %s", SaltKey, m.adapter.Name())
	return key, nil
}

// Encrypt encrypts plaintext with the stored salt and returns base64 text
func (m *SecretManager) Encrypt(ctx context.Context, plaintext []byte) (string, error) {
	key, err := m.saltKey(ctx)
	if err != nil {
		return "", err
	}

	var out []byte
	err = key.Use(func(k []byte) error {
		var err error
		out, err = m.cipher.Encrypt(k, plaintext)
		return err
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Decrypt reverses Encrypt. The result may be arbitrary bytes.
func (m *SecretManager) Decrypt(ctx context.Context, encoded string) ([]byte, error) {
	key, err := m.saltKey(ctx)
	if err != nil {
		return nil, err
	}

	var out []byte
	err = key.Use(func(k []byte) error {
		var err error
		out, err = m.cipher.Decrypt(k, []byte(encoded))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
