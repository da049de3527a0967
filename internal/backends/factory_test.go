package backends

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/containerlib/internal/config"
	dserrors "github.com/systmms/containerlib/internal/errors"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/pkg/backend"
)

func settingsFrom(env map[string]string) *config.Settings {
	return config.LoadSettings(config.FromMap(env))
}

func TestRegistryCreate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		kind     Kind
		env      map[string]string
		wantName string
	}{
		{"default config adapter", KindConfig, nil, "consul"},
		{"default secret adapter", KindSecret, nil, "vault"},
		{"kubernetes configmap", KindConfig, map[string]string{"GLUU_CONFIG_ADAPTER": "kubernetes"}, "kubernetes"},
		{"kubernetes secret", KindSecret, map[string]string{"GLUU_SECRET_ADAPTER": "kubernetes"}, "kubernetes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, err := NewRegistry().Create(context.Background(), tt.kind, settingsFrom(tt.env), logging.Discard())
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, a.Name())
		})
	}
}

func TestRegistryUnknownSelector(t *testing.T) {
	t.Parallel()

	s := settingsFrom(map[string]string{"GLUU_CONFIG_ADAPTER": "etcd"})
	_, err := NewRegistry().Create(context.Background(), KindConfig, s, logging.Discard())
	require.Error(t, err)

	var cfgErr dserrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "GLUU_CONFIG_ADAPTER", cfgErr.Field)
	assert.Equal(t, "etcd", cfgErr.Value)
	assert.Contains(t, cfgErr.Suggestion, "aws, consul, kubernetes")
}

func TestRegistryFallbackToNull(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.New(false, true)
	logger.SetOutput(&buf)

	s := settingsFrom(map[string]string{"GLUU_SECRET_ADAPTER": "keychain"})
	a, err := NewRegistry(WithFallbackToNull()).Create(context.Background(), KindSecret, s, logger)
	require.NoError(t, err)
	assert.Equal(t, "null", a.Name())
	assert.Contains(t, buf.String(), `unsupported secret adapter \"keychain\"`)
}

func TestRegistrySupportedSelectors(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	assert.Equal(t, []string{"aws", "consul", "kubernetes"}, r.SupportedSelectors(KindConfig))
	assert.Equal(t, []string{"aws", "kubernetes", "vault"}, r.SupportedSelectors(KindSecret))
}

func TestRegistryCustomFactory(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.RegisterFactory(KindConfig, "memory", func(context.Context, *config.Settings, *logging.Logger) (backend.Adapter, error) {
		return NewNull("memory"), nil
	})

	a, err := r.Create(context.Background(), KindConfig, settingsFrom(map[string]string{"GLUU_CONFIG_ADAPTER": "memory"}), logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, "null", a.Name())
}

func TestNullAdapter(t *testing.T) {
	t.Parallel()

	n := NewNull("bogus")
	ctx := context.Background()

	v, err := n.Get(ctx, "hostname", "def")
	assert.Equal(t, "def", v)
	assert.ErrorIs(t, err, backend.ErrNotImplemented)

	ok, err := n.Set(ctx, "hostname", "x")
	assert.False(t, ok)
	assert.ErrorIs(t, err, backend.ErrNotImplemented)

	_, err = n.GetAll(ctx)
	assert.ErrorIs(t, err, backend.ErrNotImplemented)

	_, err = n.SetAll(ctx, map[string]any{"a": 1})
	assert.ErrorIs(t, err, backend.ErrNotImplemented)

	assert.Equal(t, "bogus", n.Selector())
}
