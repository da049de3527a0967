package persistence

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/systmms/containerlib/internal/config"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/internal/manager"
)

// LDAPCredentials is the bind identity stored by the setup job
type LDAPCredentials struct {
	BindDN   string
	Password logging.Secret
}

// LoadLDAPCredentials reads the bind DN from config and decrypts the bind
// password from secrets.
func LoadLDAPCredentials(ctx context.Context, m *manager.Manager) (LDAPCredentials, error) {
	bindDN, err := m.Config.Get(ctx, "ldap_binddn", "")
	if err != nil {
		return LDAPCredentials{}, fmt.Errorf("failed to read ldap_binddn: %w", err)
	}
	encoded, err := m.Secret.Get(ctx, "encoded_ox_ldap_pw", "")
	if err != nil {
		return LDAPCredentials{}, fmt.Errorf("failed to read encoded_ox_ldap_pw: %w", err)
	}
	if encoded == "" {
		return LDAPCredentials{}, fmt.Errorf("secret encoded_ox_ldap_pw is not set")
	}

	password, err := m.Secret.Decrypt(ctx, encoded)
	if err != nil {
		return LDAPCredentials{}, fmt.Errorf("failed to decode LDAP password: %w", err)
	}
	return LDAPCredentials{BindDN: bindDN, Password: logging.Secret(password)}, nil
}

// ReadPasswordFile returns the trimmed content of path
func ReadPasswordFile(path string) (logging.Secret, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read password file: %w", err)
	}
	return logging.Secret(strings.TrimSpace(string(b))), nil
}

// NewCouchbaseClientFromSettings builds a Couchbase client from settings and
// the password file they point to.
func NewCouchbaseClientFromSettings(s config.CouchbaseSettings, logger *logging.Logger, opts ...CouchbaseOption) (*CouchbaseClient, error) {
	password, err := ReadPasswordFile(s.PasswordFile)
	if err != nil {
		return nil, err
	}
	return NewCouchbaseClient(s.URL, s.User, string(password), logger, opts...), nil
}

// SQLDSN builds the driver name and data source for the configured dialect
func SQLDSN(s config.SQLSettings, password logging.Secret) (driver, dsn string, err error) {
	if err := ValidateSQLDialect(s.Dialect); err != nil {
		return "", "", err
	}

	switch s.Dialect {
	case DialectMySQL:
		return "mysql", mysqlDSN(s, string(password)), nil
	default:
		return "postgres", postgresDSN(s, string(password)), nil
	}
}
