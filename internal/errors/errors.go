package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
	Err        error
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in %s", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  " + e.Suggestion
	}

	return msg
}

func (e ConfigError) Unwrap() error {
	return e.Err
}

// BackendError enhances backend errors with an operation and a suggestion
func BackendError(backend string, operation string, err error) error {
	if err == nil {
		return nil
	}
	return UserError{
		Message:    fmt.Sprintf("%s backend error during %s", backend, operation),
		Suggestion: backendSuggestion(backend, err),
		Details:    err.Error(),
		Err:        err,
	}
}

// backendSuggestion returns helpful suggestions based on backend and error
func backendSuggestion(backend string, err error) string {
	errStr := err.Error()

	switch backend {
	case "consul":
		if strings.Contains(errStr, "ACL not found") || strings.Contains(errStr, "Permission denied") {
			return "Check the ACL token in GLUU_CONFIG_CONSUL_TOKEN_FILE"
		}
		if strings.Contains(errStr, "certificate") {
			return "Check GLUU_CONFIG_CONSUL_CACERT_FILE or set GLUU_CONFIG_CONSUL_VERIFY=false"
		}

	case "vault":
		if strings.Contains(errStr, "permission denied") || strings.Contains(errStr, "Code: 403") {
			return "Check the AppRole credentials in GLUU_SECRET_VAULT_ROLE_ID_FILE and GLUU_SECRET_VAULT_SECRET_ID_FILE"
		}
		if strings.Contains(errStr, "sealed") {
			return "Vault is sealed. Unseal it before starting the container"
		}
		if strings.Contains(errStr, "certificate") {
			return "Check GLUU_SECRET_VAULT_CACERT_FILE or set GLUU_SECRET_VAULT_VERIFY=false"
		}

	case "kubernetes":
		if strings.Contains(errStr, "forbidden") {
			return "Grant the service account get, create and patch on configmaps and secrets in the namespace"
		}
		if strings.Contains(errStr, "unable to load in-cluster configuration") {
			return "Not running in a pod. Set GLUU_*_KUBERNETES_USE_KUBE_CONFIG=true to use ~/.kube/config"
		}

	case "aws":
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:GetSecretValue and secretsmanager:PutSecretValue"
		}
		if strings.Contains(errStr, "ThrottlingException") {
			return "AWS rate limit exceeded. Wait a moment and try again"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check the backend host and port settings"
	}

	return ""
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var ue UserError
	if errors.As(err, &ue) {
		return err
	}
	var ce ConfigError
	if errors.As(err, &ce) {
		return err
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "json:") || strings.Contains(errStr, "invalid character") {
		return ConfigError{
			Message:    "Invalid JSON value",
			Suggestion: "Values are stored as strings; structured values must be valid JSON",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	// Return original error if we can't simplify it
	return err
}
