package backends

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/containerlib/internal/config"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/pkg/backend"
)

// memKV is an in-memory ConsulKV
type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	err     error
	lastGet *api.QueryOptions
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(key string, q *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastGet = q
	if m.err != nil {
		return nil, nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, &api.QueryMeta{}, nil
	}
	return &api.KVPair{Key: key, Value: v}, &api.QueryMeta{}, nil
}

func (m *memKV) Put(p *api.KVPair, _ *api.WriteOptions) (*api.WriteMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.data[p.Key] = p.Value
	return &api.WriteMeta{}, nil
}

func (m *memKV) List(prefix string, _ *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, nil, m.err
	}
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	pairs := make(api.KVPairs, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, &api.KVPair{Key: k, Value: m.data[k]})
	}
	return pairs, &api.QueryMeta{}, nil
}

func consulSettings() config.ConsulSettings {
	return config.LoadSettings(config.FromMap(nil)).Consul
}

func newTestConsul(t *testing.T, kv ConsulKV) *Consul {
	t.Helper()
	c, err := NewConsul(consulSettings(), logging.Discard(), WithConsulKV(kv))
	require.NoError(t, err)
	return c
}

func TestConsulContract(t *testing.T) {
	t.Parallel()

	backend.RunContractTests(t, backend.ContractTest{
		CreateAdapter: func(t *testing.T) backend.Adapter {
			return newTestConsul(t, newMemKV())
		},
	})
}

func TestConsulUsesPrefix(t *testing.T) {
	t.Parallel()

	kv := newMemKV()
	kv.data["other/key"] = []byte("ignored")
	c := newTestConsul(t, kv)
	ctx := context.Background()

	ok, err := c.Set(ctx, "hostname", "demo.example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("demo.example.com"), kv.data["gluu/config/hostname"])

	all, err := c.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"hostname": "demo.example.com"}, all)
}

func TestConsulConsistency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		consistency    string
		wantStale      bool
		wantConsistent bool
	}{
		{"stale", true, false},
		{"consistent", false, true},
		{"default", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.consistency, func(t *testing.T) {
			t.Parallel()
			kv := newMemKV()
			s := consulSettings()
			s.Consistency = tt.consistency
			c, err := NewConsul(s, logging.Discard(), WithConsulKV(kv))
			require.NoError(t, err)

			_, err = c.Get(context.Background(), "x", "")
			require.NoError(t, err)
			require.NotNil(t, kv.lastGet)
			assert.Equal(t, tt.wantStale, kv.lastGet.AllowStale)
			assert.Equal(t, tt.wantConsistent, kv.lastGet.RequireConsistent)
		})
	}
}

func TestConsulTransportErrors(t *testing.T) {
	t.Parallel()

	kv := newMemKV()
	kv.err = errors.New("dial tcp 127.0.0.1:8500: connection refused")
	c := newTestConsul(t, kv)
	ctx := context.Background()

	v, err := c.Get(ctx, "hostname", "def")
	assert.ErrorIs(t, err, backend.ErrBackendUnavailable)
	assert.Equal(t, "def", v)

	_, err = c.Set(ctx, "hostname", "x")
	assert.ErrorIs(t, err, backend.ErrBackendUnavailable)

	_, err = c.GetAll(ctx)
	assert.ErrorIs(t, err, backend.ErrBackendUnavailable)

	ok, err := c.SetAll(ctx, map[string]any{"a": 1})
	assert.False(t, ok)
	assert.ErrorIs(t, err, backend.ErrBackendUnavailable)
}

func TestConsulWarnsOnceForUnverifiedTLS(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.New(false, true)
	logger.SetOutput(&buf)

	s := consulSettings()
	s.Scheme = "https"
	c, err := NewConsul(s, logger, WithConsulKV(newMemKV()))
	require.NoError(t, err)

	_, _ = c.Get(context.Background(), "a", "")
	_, _ = c.Get(context.Background(), "b", "")
	assert.Equal(t, 1, strings.Count(buf.String(), "without certificate verification"))
}

func TestConsulNoWarningWhenVerified(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.New(false, true)
	logger.SetOutput(&buf)

	s := consulSettings()
	s.Scheme = "https"
	s.Verify = true
	_, err := NewConsul(s, logger, WithConsulKV(newMemKV()))
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "without certificate verification")
}

func TestConsulClientConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		return p
	}

	s := consulSettings()
	s.Host = "consul.local"
	s.Port = 8501
	s.Scheme = "https"
	s.Verify = true
	s.TokenFile = write("token", "  acl-token\n")
	s.CACertFile = write("ca.crt", "ca")
	s.CertFile = write("client.crt", "cert")
	s.KeyFile = write("client.key", "key")

	cfg := consulClientConfig(s)
	assert.Equal(t, "consul.local:8501", cfg.Address)
	assert.Equal(t, "https", cfg.Scheme)
	assert.Equal(t, "acl-token", cfg.Token)
	assert.False(t, cfg.TLSConfig.InsecureSkipVerify)
	assert.Equal(t, s.CACertFile, cfg.TLSConfig.CAFile)
	assert.Equal(t, s.CertFile, cfg.TLSConfig.CertFile)
	assert.Equal(t, s.KeyFile, cfg.TLSConfig.KeyFile)
}

func TestConsulClientConfig_MissingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := consulSettings()
	s.TokenFile = filepath.Join(dir, "missing-token")
	s.CACertFile = filepath.Join(dir, "missing-ca")
	s.CertFile = filepath.Join(dir, "missing-cert")
	s.KeyFile = filepath.Join(dir, "missing-key")

	cfg := consulClientConfig(s)
	assert.Equal(t, "localhost:8500", cfg.Address)
	assert.Empty(t, cfg.Token)
	assert.True(t, cfg.TLSConfig.InsecureSkipVerify)
	assert.Empty(t, cfg.TLSConfig.CAFile)
	assert.Empty(t, cfg.TLSConfig.CertFile)
}
