package persistence

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/systmms/containerlib/internal/logging"
)

// Couchbase service ports (TLS)
const (
	CouchbaseRESTPort  = 18091
	CouchbaseQueryPort = 18093
)

const couchbaseHealthQuery = "SELECT status FROM system:indexes LIMIT 1"

// HTTPClient is the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CouchbaseClient talks to the Couchbase REST and query services over
// HTTPS. Certificates are not verified; clusters use self-signed certs.
type CouchbaseClient struct {
	hosts     []string
	user      string
	password  logging.Secret
	client    HTTPClient
	restPort  int
	queryPort int
	logger    *logging.Logger

	restHost  string
	queryHost string
}

// CouchbaseOption is a functional option for the Couchbase client
type CouchbaseOption func(*CouchbaseClient)

// WithCouchbaseHTTPClient sets a custom HTTP client (for testing)
func WithCouchbaseHTTPClient(c HTTPClient) CouchbaseOption {
	return func(cb *CouchbaseClient) {
		cb.client = c
	}
}

// NewCouchbaseClient creates a client for a comma-separated host list.
// A host may carry an explicit port, which then serves both services.
func NewCouchbaseClient(hosts, user, password string, logger *logging.Logger, opts ...CouchbaseOption) *CouchbaseClient {
	cb := &CouchbaseClient{
		user:      user,
		password:  logging.Secret(password),
		restPort:  CouchbaseRESTPort,
		queryPort: CouchbaseQueryPort,
		logger:    logger,
	}
	for _, h := range strings.Split(hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			cb.hosts = append(cb.hosts, h)
		}
	}
	for _, opt := range opts {
		opt(cb)
	}

	if cb.client == nil {
		transport := cleanhttp.DefaultPooledTransport()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		cb.client = &http.Client{Transport: transport, Timeout: 10 * time.Second}
	}
	return cb
}

func (cb *CouchbaseClient) address(host string, port int) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (cb *CouchbaseClient) do(ctx context.Context, method, addr, path string, form url.Values) (*http.Response, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, "https://"+addr+"/"+strings.TrimPrefix(path, "/"), body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(cb.user, string(cb.password))
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return cb.client.Do(req)
}

// resolve returns the first host whose health check answers 2xx
func (cb *CouchbaseClient) resolve(ctx context.Context, port int, check func(ctx context.Context, addr string) (*http.Response, error)) (string, error) {
	if len(cb.hosts) == 0 {
		return "", fmt.Errorf("no couchbase hosts configured")
	}
	for _, host := range cb.hosts {
		addr := cb.address(host, port)
		resp, err := check(ctx, addr)
		if err != nil {
			cb.logger.Warn("Unable to connect to %s; reason=%v", addr, err)
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return host, nil
		}
		cb.logger.Warn("Unable to connect to %s; reason=%s", addr, resp.Status)
	}
	return "", fmt.Errorf("unable to resolve a healthy host on port %d from %s", port, strings.Join(cb.hosts, ","))
}

// ResolveRESTHost finds a host whose REST service answers GET /pools/
func (cb *CouchbaseClient) ResolveRESTHost(ctx context.Context) (string, error) {
	if cb.restHost != "" {
		return cb.restHost, nil
	}
	host, err := cb.resolve(ctx, cb.restPort, func(ctx context.Context, addr string) (*http.Response, error) {
		return cb.do(ctx, http.MethodGet, addr, "pools/", nil)
	})
	if err != nil {
		return "", err
	}
	cb.restHost = host
	return host, nil
}

// ResolveQueryHost finds a host whose query service runs a trivial query
func (cb *CouchbaseClient) ResolveQueryHost(ctx context.Context) (string, error) {
	if cb.queryHost != "" {
		return cb.queryHost, nil
	}
	host, err := cb.resolve(ctx, cb.queryPort, func(ctx context.Context, addr string) (*http.Response, error) {
		return cb.do(ctx, http.MethodPost, addr, "query/service", url.Values{"statement": {couchbaseHealthQuery}})
	})
	if err != nil {
		return "", err
	}
	cb.queryHost = host
	return host, nil
}

// QueryError is one error reported by the query service
type QueryError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// QueryResult is the query service response
type QueryResult struct {
	Status  string            `json:"status"`
	Results []json.RawMessage `json:"results"`
	Errors  []QueryError      `json:"errors"`
}

// Query runs statement on the query service. A non-2xx answer is an error
// carrying the first message the service returned.
func (cb *CouchbaseClient) Query(ctx context.Context, statement string) (*QueryResult, error) {
	host, err := cb.ResolveQueryHost(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := cb.do(ctx, http.MethodPost, cb.address(host, cb.queryPort), "query/service", url.Values{"statement": {statement}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result QueryResult
	decodeErr := json.NewDecoder(resp.Body).Decode(&result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && len(result.Errors) > 0 {
			return nil, fmt.Errorf("query failed: %s", result.Errors[0].Msg)
		}
		return nil, fmt.Errorf("query failed: %s", resp.Status)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding query result: %w", decodeErr)
	}
	return &result, nil
}
