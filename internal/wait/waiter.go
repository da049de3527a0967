package wait

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/juju/clock"

	"github.com/systmms/containerlib/internal/config"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/internal/manager"
	"github.com/systmms/containerlib/internal/persistence"
)

// Dependency names understood by WaitFor
const (
	DepConfig    = "config"
	DepSecret    = "secret"
	DepLDAP      = "ldap"
	DepCouchbase = "couchbase"
	DepOxAuth    = "oxauth"
	DepOxTrust   = "oxtrust"
	DepSQL       = "sql"
)

// probeFactory builds a fresh probe for one wait
type probeFactory struct {
	label string
	build func(connOnly bool) Probe
}

// Waiter waits for dependencies in order, exiting the process when one of
// them gives up.
type Waiter struct {
	manager  *manager.Manager
	settings *config.Settings
	logger   *logging.Logger
	policy   Policy
	targets  Targets
	metrics  *Metrics

	clock      clock.Clock
	exit       func(code int)
	httpClient HTTPClient
	dialLDAP   LDAPDialer
	couchbase  func() (CouchbaseChecker, error)
	openSQL    func() (SQLQuerier, error)

	probes map[string]probeFactory
}

// Option is a functional option for the Waiter
type Option func(*Waiter)

// WithPolicy overrides the policy read from settings
func WithPolicy(p Policy) Option {
	return func(w *Waiter) {
		w.policy = p
	}
}

// WithTargets overrides the probe sentinels
func WithTargets(t Targets) Option {
	return func(w *Waiter) {
		w.targets = t
	}
}

// WithWaitClock sets the clock (for testing)
func WithWaitClock(c clock.Clock) Option {
	return func(w *Waiter) {
		w.clock = c
	}
}

// WithExit replaces os.Exit (for testing)
func WithExit(exit func(code int)) Option {
	return func(w *Waiter) {
		w.exit = exit
	}
}

// WithHTTPClient sets the client of the HTTP probes
func WithHTTPClient(c HTTPClient) Option {
	return func(w *Waiter) {
		w.httpClient = c
	}
}

// WithLDAPDialer sets how the LDAP probe connects
func WithLDAPDialer(d LDAPDialer) Option {
	return func(w *Waiter) {
		w.dialLDAP = d
	}
}

// WithCouchbaseClient sets how the Couchbase probe gets its client
func WithCouchbaseClient(fn func() (CouchbaseChecker, error)) Option {
	return func(w *Waiter) {
		w.couchbase = fn
	}
}

// WithSQLOpener sets how the SQL probe gets its database handle
func WithSQLOpener(fn func() (SQLQuerier, error)) Option {
	return func(w *Waiter) {
		w.openSQL = fn
	}
}

// WithMetrics records probe outcomes
func WithMetrics(m *Metrics) Option {
	return func(w *Waiter) {
		w.metrics = m
	}
}

// NewWaiter creates a Waiter using m for the config, secret and credential
// lookups.
func NewWaiter(m *manager.Manager, settings *config.Settings, logger *logging.Logger, opts ...Option) *Waiter {
	w := &Waiter{
		manager:    m,
		settings:   settings,
		logger:     logger,
		policy:     PolicyFromSettings(settings.Wait),
		targets:    DefaultTargets(settings),
		clock:      clock.WallClock,
		exit:       os.Exit,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dialLDAP:   DialLDAPS,
	}
	w.couchbase = func() (CouchbaseChecker, error) {
		return persistence.NewCouchbaseClientFromSettings(settings.Couchbase, logger)
	}
	w.openSQL = func() (SQLQuerier, error) {
		return persistence.OpenSQL(settings.SQL)
	}
	for _, opt := range opts {
		opt(w)
	}

	w.probes = map[string]probeFactory{
		DepConfig: {"Config backend", func(connOnly bool) Probe {
			return configProbe(w.manager, w.targets.ConfigKey, connOnly)
		}},
		DepSecret: {"Secret backend", func(connOnly bool) Probe {
			return secretProbe(w.manager, w.targets.SecretKey, connOnly)
		}},
		DepLDAP: {"LDAP", func(connOnly bool) Probe {
			return ldapProbe(w.manager, w.settings.LDAP.URL, w.targets.LDAP, w.dialLDAP, connOnly)
		}},
		DepCouchbase: {"Couchbase", func(connOnly bool) Probe {
			return redacting(couchbaseProbe(w.couchbase, w.targets.Couchbase, connOnly), passwordFile(w.settings.Couchbase.PasswordFile))
		}},
		DepOxAuth: {"oxAuth", func(bool) Probe {
			return httpProbe(w.httpClient, w.targets.OxAuthURL)
		}},
		DepOxTrust: {"oxTrust", func(bool) Probe {
			return httpProbe(w.httpClient, w.targets.OxTrustURL)
		}},
		DepSQL: {"SQL", func(connOnly bool) Probe {
			return redacting(sqlProbe(w.openSQL, w.targets.SQLQuery, connOnly), passwordFile(w.settings.SQL.PasswordFile))
		}},
	}
	return w
}

// Supported reports whether dep has a probe
func (w *Waiter) Supported(dep string) bool {
	_, ok := w.probes[dep]
	return ok
}

// WaitFor waits for each dependency in deps, in order. Names in connOnly
// only need to be reachable. Duplicates are waited for once and unknown
// names are skipped with a warning. When a dependency gives up the process
// exits with status 1; the error is returned only when exit returns.
func (w *Waiter) WaitFor(ctx context.Context, deps []string, connOnly []string) error {
	conn := make(map[string]bool, len(connOnly))
	for _, d := range connOnly {
		conn[strings.TrimSpace(d)] = true
	}

	seen := make(map[string]bool, len(deps))
	for _, dep := range deps {
		dep = strings.TrimSpace(dep)
		if dep == "" || seen[dep] {
			continue
		}
		seen[dep] = true

		factory, ok := w.probes[dep]
		if !ok {
			w.logger.Warn("unable to find probe for %s dependency", dep)
			continue
		}

		if err := w.waitOne(ctx, dep, factory, conn[dep]); err != nil {
			w.exit(1)
			return err
		}
	}
	return nil
}

func (w *Waiter) waitOne(ctx context.Context, dep string, factory probeFactory, connOnly bool) error {
	opts := []RetryOption{WithClock(w.clock), WithLogger(w.logger)}
	if w.metrics != nil {
		opts = append(opts, WithObserver(func(r Result) {
			w.metrics.RecordAttempt(dep, r)
		}))
	}

	start := w.clock.Now()
	err := Retry(ctx, factory.label, w.policy, factory.build(connOnly), opts...)
	if w.metrics != nil {
		w.metrics.RecordOutcome(dep, err == nil, w.clock.Now().Sub(start).Seconds())
	}
	return err
}
