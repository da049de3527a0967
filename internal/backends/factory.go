package backends

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/systmms/containerlib/internal/backends/vault"
	"github.com/systmms/containerlib/internal/config"
	dserrors "github.com/systmms/containerlib/internal/errors"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/pkg/backend"
)

// Factory creates an adapter from settings
type Factory func(ctx context.Context, settings *config.Settings, logger *logging.Logger) (backend.Adapter, error)

// Kind is the namespace an adapter serves
type Kind string

const (
	KindConfig Kind = "config"
	KindSecret Kind = "secret"
)

// Registry maps adapter selectors to factories, per kind
type Registry struct {
	factories map[Kind]map[string]Factory
	fallback  bool
}

// RegistryOption is a functional option for the registry
type RegistryOption func(*Registry)

// WithFallbackToNull makes unknown selectors resolve to the Null adapter
// instead of failing.
func WithFallbackToNull() RegistryOption {
	return func(r *Registry) {
		r.fallback = true
	}
}

// NewRegistry creates a registry with the built-in adapters
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		factories: map[Kind]map[string]Factory{
			KindConfig: {},
			KindSecret: {},
		},
	}

	r.RegisterFactory(KindConfig, "consul", newConsulFactory)
	r.RegisterFactory(KindConfig, "kubernetes", newKubernetesConfigMapFactory)
	r.RegisterFactory(KindConfig, "aws", newAWSFactory(AWSConfigs))

	r.RegisterFactory(KindSecret, "vault", newVaultFactory)
	r.RegisterFactory(KindSecret, "kubernetes", newKubernetesSecretFactory)
	r.RegisterFactory(KindSecret, "aws", newAWSFactory(AWSSecrets))

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterFactory registers a factory for a selector of the given kind
func (r *Registry) RegisterFactory(kind Kind, selector string, factory Factory) {
	if r.factories[kind] == nil {
		r.factories[kind] = map[string]Factory{}
	}
	r.factories[kind][selector] = factory
}

// SupportedSelectors returns the sorted selectors of kind
func (r *Registry) SupportedSelectors(kind Kind) []string {
	selectors := make([]string, 0, len(r.factories[kind]))
	for s := range r.factories[kind] {
		selectors = append(selectors, s)
	}
	sort.Strings(selectors)
	return selectors
}

// Create builds the adapter of kind chosen by its selector in settings
func (r *Registry) Create(ctx context.Context, kind Kind, settings *config.Settings, logger *logging.Logger) (backend.Adapter, error) {
	selector, field := settings.ConfigAdapter, "GLUU_CONFIG_ADAPTER"
	if kind == KindSecret {
		selector, field = settings.SecretAdapter, "GLUU_SECRET_ADAPTER"
	}

	factory, ok := r.factories[kind][selector]
	if !ok {
		supported := strings.Join(r.SupportedSelectors(kind), ", ")
		if r.fallback {
			logger.WithField("adapter", selector).Warn("unsupported %s adapter %q; %s calls will fail (supported: %s)", kind, selector, kind, supported)
			return NewNull(selector), nil
		}
		return nil, dserrors.ConfigError{
			Field:      field,
			Value:      selector,
			Message:    fmt.Sprintf("unsupported %s adapter", kind),
			Suggestion: fmt.Sprintf("Set %s to one of: %s", field, supported),
		}
	}

	adapter, err := factory(ctx, settings, logger.WithField("adapter", selector))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s adapter %s: %w", kind, selector, err)
	}
	return adapter, nil
}

func newConsulFactory(_ context.Context, s *config.Settings, logger *logging.Logger) (backend.Adapter, error) {
	return NewConsul(s.Consul, logger)
}

func newKubernetesConfigMapFactory(_ context.Context, s *config.Settings, logger *logging.Logger) (backend.Adapter, error) {
	return NewKubernetesConfigMap(s.KubernetesConfig, logger), nil
}

func newKubernetesSecretFactory(_ context.Context, s *config.Settings, logger *logging.Logger) (backend.Adapter, error) {
	return NewKubernetesSecret(s.KubernetesSecret, logger), nil
}

func newVaultFactory(_ context.Context, s *config.Settings, logger *logging.Logger) (backend.Adapter, error) {
	return vault.New(s.Vault, logger)
}

func newAWSFactory(kind string) Factory {
	return func(ctx context.Context, s *config.Settings, logger *logging.Logger) (backend.Adapter, error) {
		return NewAWS(ctx, s.AWS, kind, logger)
	}
}
