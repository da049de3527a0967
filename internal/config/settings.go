package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Settings is every environment-driven knob of containerlib, parsed once
// at startup and handed to constructors.
type Settings struct {
	ConfigAdapter string
	SecretAdapter string

	Consul           ConsulSettings
	KubernetesConfig KubernetesSettings
	KubernetesSecret KubernetesSettings
	Vault            VaultSettings
	AWS              AWSSettings

	Wait        WaitSettings
	Persistence PersistenceSettings
	LDAP        LDAPSettings
	Couchbase   CouchbaseSettings
	SQL         SQLSettings

	OxAuthBackend  string
	OxTrustBackend string

	LogLevel        string
	MetricsTextfile string
}

// ConsulSettings configures the Consul KV config backend.
type ConsulSettings struct {
	Host        string
	Port        int
	Scheme      string
	Consistency string
	Verify      bool
	CACertFile  string
	CertFile    string
	KeyFile     string
	TokenFile   string
	Prefix      string
}

// KubernetesSettings configures a ConfigMap or Secret backend.
type KubernetesSettings struct {
	Namespace      string
	Name           string
	UseKubeConfig  bool
	KubeConfigPath string
}

// VaultSettings configures the Vault KV secret backend.
type VaultSettings struct {
	Host         string
	Port         int
	Scheme       string
	Verify       bool
	RoleIDFile   string
	SecretIDFile string
	CertFile     string
	KeyFile      string
	CACertFile   string
	AppRolePath  string
	Prefix       string
}

// AWSSettings configures the AWS Secrets Manager backends.
type AWSSettings struct {
	SecretsID   string
	EndpointURL string
	Region      string

	// Static credentials, for LocalStack and tests. The default AWS
	// credential chain is used when either is empty.
	AccessKeyID     string
	SecretAccessKey string
}

// WaitSettings is the retry policy of the readiness prober.
type WaitSettings struct {
	MaxTime       time.Duration
	SleepDuration time.Duration
}

// PersistenceSettings selects how the identity server stores its data.
type PersistenceSettings struct {
	Type        string
	LDAPMapping string
}

// LDAPSettings locates the directory server.
type LDAPSettings struct {
	URL string
}

// CouchbaseSettings locates the document store.
type CouchbaseSettings struct {
	URL          string
	User         string
	PasswordFile string
	BucketPrefix string
}

// SQLSettings locates the relational store.
type SQLSettings struct {
	Dialect      string
	Host         string
	Port         int
	Database     string
	User         string
	PasswordFile string
}

const (
	defaultWaitMaxTime       = 300
	defaultWaitSleepDuration = 10
)

// LoadSettings builds Settings from lookup, applying per-field defaults.
func LoadSettings(lookup LookupFunc) *Settings {
	e := env{lookup: lookup}

	return &Settings{
		ConfigAdapter: e.str("GLUU_CONFIG_ADAPTER", "consul"),
		SecretAdapter: e.str("GLUU_SECRET_ADAPTER", "vault"),

		Consul: ConsulSettings{
			Host:        e.str("GLUU_CONFIG_CONSUL_HOST", "localhost"),
			Port:        e.integer("GLUU_CONFIG_CONSUL_PORT", 8500),
			Scheme:      e.str("GLUU_CONFIG_CONSUL_SCHEME", "http"),
			Consistency: e.str("GLUU_CONFIG_CONSUL_CONSISTENCY", "stale"),
			Verify:      e.boolean("GLUU_CONFIG_CONSUL_VERIFY", false),
			CACertFile:  e.str("GLUU_CONFIG_CONSUL_CACERT_FILE", "/etc/certs/consul_ca.crt"),
			CertFile:    e.str("GLUU_CONFIG_CONSUL_CERT_FILE", "/etc/certs/consul_client.crt"),
			KeyFile:     e.str("GLUU_CONFIG_CONSUL_KEY_FILE", "/etc/certs/consul_client.key"),
			TokenFile:   e.str("GLUU_CONFIG_CONSUL_TOKEN_FILE", "/etc/certs/consul_token"),
			Prefix:      "gluu/config/",
		},

		KubernetesConfig: KubernetesSettings{
			Namespace:      e.str("GLUU_CONFIG_KUBERNETES_NAMESPACE", "default"),
			Name:           e.str("GLUU_CONFIG_KUBERNETES_CONFIGMAP", "gluu"),
			UseKubeConfig:  e.boolean("GLUU_CONFIG_KUBERNETES_USE_KUBE_CONFIG", false),
			KubeConfigPath: e.str("KUBECONFIG", defaultKubeConfigPath()),
		},

		KubernetesSecret: KubernetesSettings{
			Namespace:      e.str("GLUU_SECRET_KUBERNETES_NAMESPACE", "default"),
			Name:           e.str("GLUU_SECRET_KUBERNETES_SECRET", "gluu"),
			UseKubeConfig:  e.boolean("GLUU_SECRET_KUBERNETES_USE_KUBE_CONFIG", false),
			KubeConfigPath: e.str("KUBECONFIG", defaultKubeConfigPath()),
		},

		Vault: VaultSettings{
			Host:         e.str("GLUU_SECRET_VAULT_HOST", "localhost"),
			Port:         e.integer("GLUU_SECRET_VAULT_PORT", 8200),
			Scheme:       e.str("GLUU_SECRET_VAULT_SCHEME", "http"),
			Verify:       e.boolean("GLUU_SECRET_VAULT_VERIFY", false),
			RoleIDFile:   e.str("GLUU_SECRET_VAULT_ROLE_ID_FILE", "/etc/certs/vault_role_id"),
			SecretIDFile: e.str("GLUU_SECRET_VAULT_SECRET_ID_FILE", "/etc/certs/vault_secret_id"),
			CertFile:     e.str("GLUU_SECRET_VAULT_CERT_FILE", "/etc/certs/vault_client.crt"),
			KeyFile:      e.str("GLUU_SECRET_VAULT_KEY_FILE", "/etc/certs/vault_client.key"),
			CACertFile:   e.str("GLUU_SECRET_VAULT_CACERT_FILE", "/etc/certs/vault_ca.crt"),
			AppRolePath:  e.str("GLUU_SECRET_VAULT_APPROLE_PATH", "approle"),
			Prefix:       "secret/gluu",
		},

		AWS: AWSSettings{
			SecretsID:   e.str("GLUU_AWS_SECRETS_ID", "gluu"),
			EndpointURL: e.str("GLUU_AWS_SECRETS_ENDPOINT_URL", ""),
			Region:      e.str("AWS_REGION", ""),

			AccessKeyID:     e.str("GLUU_AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: e.str("GLUU_AWS_SECRET_ACCESS_KEY", ""),
		},

		Wait: WaitSettings{
			MaxTime:       e.seconds("GLUU_WAIT_MAX_TIME", defaultWaitMaxTime),
			SleepDuration: e.seconds("GLUU_WAIT_SLEEP_DURATION", defaultWaitSleepDuration),
		},

		Persistence: PersistenceSettings{
			Type:        e.str("GLUU_PERSISTENCE_TYPE", "ldap"),
			LDAPMapping: e.str("GLUU_PERSISTENCE_LDAP_MAPPING", "default"),
		},

		LDAP: LDAPSettings{
			URL: e.str("GLUU_LDAP_URL", "localhost:1636"),
		},

		Couchbase: CouchbaseSettings{
			URL:          e.str("GLUU_COUCHBASE_URL", "localhost"),
			User:         e.str("GLUU_COUCHBASE_USER", "admin"),
			PasswordFile: e.str("GLUU_COUCHBASE_PASSWORD_FILE", "/etc/gluu/conf/couchbase_password"),
			BucketPrefix: e.str("GLUU_COUCHBASE_BUCKET_PREFIX", "gluu"),
		},

		SQL: SQLSettings{
			Dialect:      e.str("GLUU_SQL_DB_DIALECT", "mysql"),
			Host:         e.str("GLUU_SQL_DB_HOST", "localhost"),
			Port:         e.integer("GLUU_SQL_DB_PORT", 3306),
			Database:     e.str("GLUU_SQL_DB_NAME", "gluu"),
			User:         e.str("GLUU_SQL_DB_USER", "gluu"),
			PasswordFile: e.str("GLUU_SQL_PASSWORD_FILE", "/etc/gluu/conf/sql_password"),
		},

		OxAuthBackend:  e.str("GLUU_OXAUTH_BACKEND", "localhost:8081"),
		OxTrustBackend: e.str("GLUU_OXTRUST_BACKEND", "localhost:8082"),

		LogLevel:        e.str("GLUU_LOG_LEVEL", "info"),
		MetricsTextfile: e.str("GLUU_METRICS_TEXTFILE", ""),
	}
}

func defaultKubeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kube", "config")
}

type env struct {
	lookup LookupFunc
}

func (e env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e env) boolean(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	return AsBoolean(v, def)
}

func (e env) integer(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// seconds parses a whole number of seconds. Unparsable values fall back to
// def; zero and negative values are raised to one second.
func (e env) seconds(key string, def int) time.Duration {
	n := e.integer(key, def)
	if n < 1 {
		n = 1
	}
	return time.Duration(n) * time.Second
}

// AsBoolean converts the common textual and numeric spellings of a boolean.
// Anything it does not recognise yields def.
func AsBoolean(value any, def bool) bool {
	switch v := value.(type) {
	case bool:
		return v
	case int:
		return intBool(int64(v), def)
	case int64:
		return intBool(v, def)
	case int32:
		return intBool(int64(v), def)
	case string:
		switch v {
		case "t", "T", "true", "True", "TRUE", "1":
			return true
		case "f", "F", "false", "False", "FALSE", "0":
			return false
		}
	}
	return def
}

func intBool(v int64, def bool) bool {
	switch v {
	case 1:
		return true
	case 0:
		return false
	}
	return def
}
