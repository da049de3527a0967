package wait

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/systmms/containerlib/internal/config"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/internal/manager"
	"github.com/systmms/containerlib/internal/persistence"
)

// Targets are the sentinel keys, searches and documents the full probes
// look for. They default to what the identity server setup creates.
type Targets struct {
	ConfigKey  string
	SecretKey  string
	LDAP       persistence.LDAPTarget
	Couchbase  persistence.CouchbaseTarget
	OxAuthURL  string
	OxTrustURL string
	SQLQuery   string
}

// DefaultTargets derives the targets from settings
func DefaultTargets(s *config.Settings) Targets {
	return Targets{
		ConfigKey:  "hostname",
		SecretKey:  "ssl_cert",
		LDAP:       persistence.LDAPTargetFor(s.Persistence.LDAPMapping),
		Couchbase:  persistence.CouchbaseTargetFor(s.Persistence.Type, s.Persistence.LDAPMapping, s.Couchbase.BucketPrefix),
		OxAuthURL:  fmt.Sprintf("http://%s/oxauth/.well-known/openid-configuration", s.OxAuthBackend),
		OxTrustURL: fmt.Sprintf("http://%s/identity/restv1/scim-configuration", s.OxTrustBackend),
		SQLQuery:   persistence.SQLConfigQuery(s.SQL.Dialect),
	}
}

// HTTPClient is the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// LDAPConn is the part of an LDAP connection the probe uses
type LDAPConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close()
}

// LDAPDialer opens an authenticated-capable LDAP connection to addr
type LDAPDialer func(ctx context.Context, addr string) (LDAPConn, error)

type ldapConn struct {
	conn *ldap.Conn
}

func (c ldapConn) Bind(username, password string) error {
	return c.conn.Bind(username, password)
}

func (c ldapConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return c.conn.Search(req)
}

func (c ldapConn) Close() {
	c.conn.Close()
}

// DialLDAPS connects over LDAPS without verifying the server certificate;
// directory servers in these deployments use self-signed certificates.
func DialLDAPS(_ context.Context, addr string) (LDAPConn, error) {
	conn, err := ldap.DialURL(ldapsURL(addr), ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	if err != nil {
		return nil, err
	}
	return ldapConn{conn: conn}, nil
}

// defaultLDAPSPort is where the directory server listens for LDAPS
const defaultLDAPSPort = "1636"

// ldapsURL turns host[:port] into an ldaps:// URL, adding the default
// port when none is given. Full URLs only get the port filled in.
func ldapsURL(addr string) string {
	scheme, hostport := "ldaps", addr
	if i := strings.Index(addr, "://"); i >= 0 {
		scheme, hostport = addr[:i], addr[i+3:]
	}
	if _, _, err := net.SplitHostPort(hostport); err != nil {
		hostport = net.JoinHostPort(strings.Trim(hostport, "[]"), defaultLDAPSPort)
	}
	return scheme + "://" + hostport
}

// CouchbaseChecker is the part of the Couchbase client the probe uses
type CouchbaseChecker interface {
	ResolveRESTHost(ctx context.Context) (string, error)
	Query(ctx context.Context, statement string) (*persistence.QueryResult, error)
}

// SQLQuerier is the part of *sql.DB the probe uses
type SQLQuerier interface {
	PingContext(ctx context.Context) error
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func configProbe(m *manager.Manager, key string, connOnly bool) Probe {
	return func(ctx context.Context) Result {
		v, err := m.Config.Get(ctx, key, "")
		if err != nil {
			return ConnectionError(err)
		}
		if !connOnly && v == "" {
			return NotReady("config '%s' is not available", key)
		}
		return Ready()
	}
}

func secretProbe(m *manager.Manager, key string, connOnly bool) Probe {
	return func(ctx context.Context) Result {
		v, err := m.Secret.Get(ctx, key, "")
		if err != nil {
			return ConnectionError(err)
		}
		if !connOnly && v == "" {
			return NotReady("secret '%s' is not available", key)
		}
		return Ready()
	}
}

// requiredLDAPHits is how many consecutive non-empty searches mark the
// directory as done importing its initial data.
const requiredLDAPHits = 3

// ldapProbe returns a probe whose hit counter lives as long as the probe,
// so one probe must be created per wait.
func ldapProbe(m *manager.Manager, addr string, target persistence.LDAPTarget, dial LDAPDialer, connOnly bool) Probe {
	hits := 0

	return func(ctx context.Context) Result {
		found, err := ldapSearch(ctx, m, addr, target, dial, connOnly)
		if err != nil {
			hits = 0
			return ConnectionError(err)
		}
		if !found {
			hits = 0
			return NotReady("LDAP is not initialized yet")
		}
		if connOnly {
			return Ready()
		}

		hits++
		if hits < requiredLDAPHits {
			return NotReady("LDAP entries found %d of %d consecutive times", hits, requiredLDAPHits)
		}
		return Ready()
	}
}

func ldapSearch(ctx context.Context, m *manager.Manager, addr string, target persistence.LDAPTarget, dial LDAPDialer, connOnly bool) (bool, error) {
	creds, err := persistence.LoadLDAPCredentials(ctx, m)
	if err != nil {
		return false, err
	}
	password := string(creds.Password)

	conn, err := dial(ctx, addr)
	if err != nil {
		return false, scrub(err, password)
	}
	defer conn.Close()

	if err := conn.Bind(creds.BindDN, password); err != nil {
		return false, scrub(err, password)
	}

	scope, filter, attrs := ldap.ScopeWholeSubtree, target.Filter, []string{"objectClass"}
	if connOnly {
		scope, filter = ldap.ScopeBaseObject, "(objectClass=*)"
	}

	res, err := conn.Search(ldap.NewSearchRequest(
		target.BaseDN, scope, ldap.NeverDerefAliases, 1, 0, false, filter, attrs, nil,
	))
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return false, nil
		}
		if ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) && res != nil && len(res.Entries) > 0 {
			return true, nil
		}
		return false, scrub(err, password)
	}
	return len(res.Entries) > 0, nil
}

// scrub hides secrets in err's message
func scrub(err error, secrets ...string) error {
	msg := logging.Redact(err.Error(), secrets)
	if msg == err.Error() {
		return err
	}
	return errors.New(msg)
}

// redacting hides the secrets returned by secrets from the reasons of
// probe's connection errors. secrets is only called on failure.
func redacting(probe Probe, secrets func() []string) Probe {
	return func(ctx context.Context) Result {
		r := probe(ctx)
		if r.Status == StatusConnectionError {
			r.Reason = logging.Redact(r.Reason, secrets())
		}
		return r
	}
}

// passwordFile reads the password stored at path, if any
func passwordFile(path string) func() []string {
	return func() []string {
		password, err := persistence.ReadPasswordFile(path)
		if err != nil {
			return nil
		}
		return []string{string(password)}
	}
}

func couchbaseProbe(newClient func() (CouchbaseChecker, error), target persistence.CouchbaseTarget, connOnly bool) Probe {
	var client CouchbaseChecker

	return func(ctx context.Context) Result {
		if client == nil {
			c, err := newClient()
			if err != nil {
				return ConnectionError(err)
			}
			client = c
		}

		if connOnly {
			if _, err := client.ResolveRESTHost(ctx); err != nil {
				return ConnectionError(err)
			}
			return Ready()
		}

		statement := fmt.Sprintf("SELECT objectClass FROM `%s` USE KEYS \"%s\"", target.Bucket, target.Key)
		res, err := client.Query(ctx, statement)
		if err != nil {
			return ConnectionError(err)
		}
		if len(res.Results) == 0 {
			return NotReady("document %s not found in bucket %s", target.Key, target.Bucket)
		}
		return Ready()
	}
}

func httpProbe(client HTTPClient, url string) Probe {
	return func(ctx context.Context) Result {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return ConnectionError(err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return ConnectionError(err)
		}
		defer resp.Body.Close()

		// Discard body to allow connection reuse
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return NotReady("%s returned status %d", url, resp.StatusCode)
		}
		return Ready()
	}
}

func sqlProbe(open func() (SQLQuerier, error), query string, connOnly bool) Probe {
	var db SQLQuerier

	return func(ctx context.Context) Result {
		if db == nil {
			d, err := open()
			if err != nil {
				return ConnectionError(err)
			}
			db = d
		}

		if err := db.PingContext(ctx); err != nil {
			return ConnectionError(err)
		}
		if connOnly {
			return Ready()
		}

		var one int
		err := db.QueryRowContext(ctx, query).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return NotReady("SQL database is not initialized yet")
		case err != nil:
			return ConnectionError(err)
		}
		return Ready()
	}
}
