package backends

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/containerlib/internal/config"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/pkg/backend"
)

// mockSecretsManager keeps secrets in memory
type mockSecretsManager struct {
	mu      sync.Mutex
	secrets map[string]string
	getErr  error
	generic bool
	// racer is stored just before CreateSecret, as if another writer won
	racer   map[string]string
	creates int
	puts    int
}

func newMockSecretsManager() *mockSecretsManager {
	return &mockSecretsManager{secrets: make(map[string]string)}
}

func (m *mockSecretsManager) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.secrets[aws.ToString(in.SecretId)]
	if !ok && m.generic {
		return nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "secret not found"}
	}
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Secrets Manager can't find the specified secret.")}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func (m *mockSecretsManager) PutSecretValue(_ context.Context, in *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := aws.ToString(in.SecretId)
	if _, ok := m.secrets[id]; !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	m.puts++
	m.secrets[id] = aws.ToString(in.SecretString)
	return &secretsmanager.PutSecretValueOutput{}, nil
}

func (m *mockSecretsManager) CreateSecret(_ context.Context, in *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	id := aws.ToString(in.Name)
	if doc, ok := m.racer[id]; ok {
		m.secrets[id] = doc
	}
	if _, ok := m.secrets[id]; ok {
		if m.generic {
			return nil, &smithy.GenericAPIError{Code: "ResourceExistsException", Message: "secret exists"}
		}
		return nil, &types.ResourceExistsException{Message: aws.String("A resource with the ID you requested already exists.")}
	}
	m.secrets[id] = aws.ToString(in.SecretString)
	return &secretsmanager.CreateSecretOutput{}, nil
}

func newTestAWS(t *testing.T, kind string, client SecretsManagerClientAPI) *AWS {
	t.Helper()
	a, err := NewAWS(context.Background(), config.AWSSettings{SecretsID: "gluu"}, kind, logging.Discard(), WithSecretsManagerClient(client))
	require.NoError(t, err)
	return a
}

func TestAWSContract(t *testing.T) {
	t.Parallel()

	backend.RunContractTests(t, backend.ContractTest{
		CreateAdapter: func(t *testing.T) backend.Adapter {
			return newTestAWS(t, AWSConfigs, newMockSecretsManager())
		},
	})
}

func TestAWSSecretNaming(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gluu_configs", newTestAWS(t, AWSConfigs, newMockSecretsManager()).SecretID())
	assert.Equal(t, "gluu_secrets", newTestAWS(t, AWSSecrets, newMockSecretsManager()).SecretID())
}

func TestAWSCreatesThenUpdates(t *testing.T) {
	t.Parallel()

	m := newMockSecretsManager()
	a := newTestAWS(t, AWSSecrets, m)
	ctx := context.Background()

	ok, err := a.Set(ctx, "encoded_salt", "0123456789abcdef01234567")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, m.creates)

	ok, err = a.SetAll(ctx, map[string]any{"ssl_cert": "cert", "ssl_key": "key"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, m.creates)
	assert.Equal(t, 1, m.puts)

	assert.JSONEq(t, `{"encoded_salt":"0123456789abcdef01234567","ssl_cert":"cert","ssl_key":"key"}`, m.secrets["gluu_secrets"])
}

func TestAWSTransportError(t *testing.T) {
	t.Parallel()

	m := newMockSecretsManager()
	m.getErr = errors.New("operation error Secrets Manager: GetSecretValue, AccessDeniedException")
	a := newTestAWS(t, AWSConfigs, m)
	ctx := context.Background()

	v, err := a.Get(ctx, "hostname", "def")
	assert.Equal(t, "def", v)
	assert.ErrorIs(t, err, backend.ErrBackendUnavailable)

	ok, err := a.Set(ctx, "hostname", "x")
	assert.False(t, ok)
	assert.ErrorIs(t, err, backend.ErrBackendUnavailable)
}

func TestAWSMalformedDocument(t *testing.T) {
	t.Parallel()

	m := newMockSecretsManager()
	m.secrets["gluu_configs"] = "not json"
	a := newTestAWS(t, AWSConfigs, m)

	_, err := a.GetAll(context.Background())
	assert.ErrorIs(t, err, backend.ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "gluu_configs")
}

func TestAWSUntypedNotFound(t *testing.T) {
	t.Parallel()

	m := newMockSecretsManager()
	m.generic = true
	a := newTestAWS(t, AWSSecrets, m)
	ctx := context.Background()

	v, err := a.Get(ctx, "ssl_cert", "def")
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	ok, err := a.Set(ctx, "ssl_cert", "cert")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, m.creates)
}

func TestAWSAccessDeniedIsUnavailable(t *testing.T) {
	t.Parallel()

	m := newMockSecretsManager()
	m.getErr = &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "not authorized"}
	a := newTestAWS(t, AWSConfigs, m)

	_, err := a.GetAll(context.Background())
	assert.ErrorIs(t, err, backend.ErrBackendUnavailable)
	var apiErr smithy.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "AccessDeniedException", apiErr.ErrorCode())
}

func TestAWSCreateRaceFallsBackToPut(t *testing.T) {
	t.Parallel()

	for _, generic := range []bool{false, true} {
		mock := newMockSecretsManager()
		mock.generic = generic
		mock.racer = map[string]string{"gluu_configs": `{"hostname":"other.example.com","admin_email":"a@example.com"}`}
		a := newTestAWS(t, AWSConfigs, mock)

		ok, err := a.Set(context.Background(), "hostname", "foo.example.com")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, mock.creates)
		assert.Equal(t, 1, mock.puts)

		all, err := a.GetAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"hostname": "foo.example.com", "admin_email": "a@example.com"}, all)
	}
}
