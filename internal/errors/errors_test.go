package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/containerlib/internal/errors"
	"github.com/systmms/containerlib/internal/logging"
)

func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Details: Connection timeout")
	assert.Contains(t, errMsg, "Try: Check network connectivity")
}

func TestUserErrorFallsBackToCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("boom")
	err := errors.UserError{Err: cause}

	assert.Equal(t, "boom", err.Error())
	assert.True(t, stderrors.Is(err, cause))
}

func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "GLUU_CONFIG_ADAPTER",
		Value:      "etcd",
		Message:    "unsupported config adapter",
		Suggestion: "Use one of: consul, kubernetes, aws",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "GLUU_CONFIG_ADAPTER")
	assert.Contains(t, errMsg, "etcd")
	assert.Contains(t, errMsg, "unsupported config adapter")
	assert.Contains(t, errMsg, "consul, kubernetes, aws")
}

func TestBackendSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend string
		err     string
		want    string
	}{
		{"consul", "Unexpected response code: 403 (ACL not found)", "GLUU_CONFIG_CONSUL_TOKEN_FILE"},
		{"consul", "x509: certificate signed by unknown authority", "GLUU_CONFIG_CONSUL_VERIFY"},
		{"vault", "Code: 403. Errors: * permission denied", "GLUU_SECRET_VAULT_ROLE_ID_FILE"},
		{"vault", "Vault is sealed", "Unseal"},
		{"kubernetes", `configmaps "gluu" is forbidden`, "service account"},
		{"kubernetes", "unable to load in-cluster configuration", "USE_KUBE_CONFIG"},
		{"aws", "AccessDeniedException: denied", "secretsmanager:GetSecretValue"},
		{"aws", "ThrottlingException", "rate limit"},
		{"ldap", "dial tcp: connection refused", "Unable to connect"},
		{"couchbase", "i/o timeout", "timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.backend+"/"+tt.err, func(t *testing.T) {
			t.Parallel()
			err := errors.BackendError(tt.backend, "get", fmt.Errorf("%s", tt.err))
			assert.Contains(t, err.Error(), tt.backend+" backend error during get")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBackendErrorNil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, errors.BackendError("consul", "get", nil))
}

func TestBackendErrorDoesNotLeakSecrets(t *testing.T) {
	t.Parallel()

	secret := logging.Secret("s3cr3t-role-id")
	err := errors.BackendError("vault", "login", fmt.Errorf("login with role_id=%s failed", secret))

	assert.NotContains(t, err.Error(), "s3cr3t-role-id")
	assert.Contains(t, err.Error(), "[REDACTED]")
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.SimplifyError(nil))

	ue := errors.UserError{Message: "already friendly"}
	assert.Equal(t, ue, errors.SimplifyError(ue))

	wrapped := fmt.Errorf("read: %w", fmt.Errorf("open /x: no such file or directory"))
	simplified := errors.SimplifyError(wrapped)
	var got errors.UserError
	require.True(t, stderrors.As(simplified, &got))
	assert.Equal(t, "File or directory not found", got.Message)

	perm := errors.SimplifyError(fmt.Errorf("open /etc/certs: permission denied"))
	require.True(t, stderrors.As(perm, &got))
	assert.Equal(t, "Permission denied", got.Message)

	other := fmt.Errorf("something else")
	assert.Equal(t, other, errors.SimplifyError(other))
}
