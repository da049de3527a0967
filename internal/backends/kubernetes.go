package backends

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/systmms/containerlib/internal/config"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/pkg/backend"
)

// KubernetesOption is a functional option for the Kubernetes adapters
type KubernetesOption func(*kubeClient)

// WithClientset sets a custom clientset (for testing)
func WithClientset(cs kubernetes.Interface) KubernetesOption {
	return func(k *kubeClient) {
		k.clientset = cs
	}
}

// kubeClient holds the lazily created clientset and the "object exists"
// flag shared by the ConfigMap and Secret adapters.
type kubeClient struct {
	settings  config.KubernetesSettings
	logger    *logging.Logger
	mu        sync.Mutex
	clientset kubernetes.Interface
	prepared  bool
}

func newKubeClient(settings config.KubernetesSettings, logger *logging.Logger, opts []KubernetesOption) *kubeClient {
	k := &kubeClient{settings: settings, logger: logger}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *kubeClient) client() (kubernetes.Interface, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.clientset != nil {
		return k.clientset, nil
	}

	var (
		restCfg *rest.Config
		err     error
	)
	if k.settings.UseKubeConfig {
		restCfg, err = clientcmd.BuildConfigFromFlags("", k.settings.KubeConfigPath)
	} else {
		restCfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load kubernetes config: %w", err)
	}

	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	k.clientset = cs
	return cs, nil
}

// prepare runs create once per adapter; create must tolerate a concurrent
// creator winning the race.
func (k *kubeClient) prepare(create func() error) error {
	k.mu.Lock()
	done := k.prepared
	k.mu.Unlock()
	if done {
		return nil
	}

	if err := create(); err != nil {
		return err
	}

	k.mu.Lock()
	k.prepared = true
	k.mu.Unlock()
	return nil
}

func mergePatch(data map[string]string) ([]byte, error) {
	return json.Marshal(map[string]any{"data": data})
}

func safeValues(data map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(data))
	for k, v := range data {
		s, err := backend.SafeValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

// KubernetesConfigMap stores config in the data of a single ConfigMap
type KubernetesConfigMap struct {
	kube *kubeClient
}

// NewKubernetesConfigMap creates the ConfigMap adapter. The clientset and
// the ConfigMap itself are created on first use.
func NewKubernetesConfigMap(settings config.KubernetesSettings, logger *logging.Logger, opts ...KubernetesOption) *KubernetesConfigMap {
	return &KubernetesConfigMap{kube: newKubeClient(settings, logger, opts)}
}

// Name returns the adapter name
func (k *KubernetesConfigMap) Name() string {
	return "kubernetes"
}

func (k *KubernetesConfigMap) configMaps() (clientConfigMaps, error) {
	cs, err := k.kube.client()
	if err != nil {
		return nil, err
	}
	return cs.CoreV1().ConfigMaps(k.kube.settings.Namespace), nil
}

type clientConfigMaps interface {
	Get(ctx context.Context, name string, opts metav1.GetOptions) (*corev1.ConfigMap, error)
	Create(ctx context.Context, cm *corev1.ConfigMap, opts metav1.CreateOptions) (*corev1.ConfigMap, error)
	Patch(ctx context.Context, name string, pt types.PatchType, data []byte, opts metav1.PatchOptions, subresources ...string) (*corev1.ConfigMap, error)
}

func (k *KubernetesConfigMap) ensure(ctx context.Context, api clientConfigMaps) error {
	name := k.kube.settings.Name
	return k.kube.prepare(func() error {
		_, err := api.Get(ctx, name, metav1.GetOptions{})
		if err == nil {
			return nil
		}
		if !k8serrors.IsNotFound(err) {
			return err
		}

		k.kube.logger.Debug("creating configmap %s/%s", k.kube.settings.Namespace, name)
		_, err = api.Create(ctx, &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: k.kube.settings.Namespace},
			Data:       map[string]string{},
		}, metav1.CreateOptions{})
		if err != nil && !k8serrors.IsAlreadyExists(err) {
			return err
		}
		return nil
	})
}

// GetAll returns the ConfigMap data
func (k *KubernetesConfigMap) GetAll(ctx context.Context) (map[string]string, error) {
	api, err := k.configMaps()
	if err != nil {
		return nil, backend.Unavailable(k.Name(), "get_all", err)
	}
	if err := k.ensure(ctx, api); err != nil {
		return nil, backend.Unavailable(k.Name(), "get_all", err)
	}

	cm, err := api.Get(ctx, k.kube.settings.Name, metav1.GetOptions{})
	if err != nil {
		return nil, backend.Unavailable(k.Name(), "get_all", err)
	}

	out := make(map[string]string, len(cm.Data))
	for key, v := range cm.Data {
		out[key] = v
	}
	return out, nil
}

// Get returns the value of key, or def when it does not exist
func (k *KubernetesConfigMap) Get(ctx context.Context, key, def string) (string, error) {
	all, err := k.GetAll(ctx)
	if err != nil {
		return def, err
	}
	if v, ok := all[key]; ok {
		return v, nil
	}
	return def, nil
}

// Set stores value under key with a merge patch
func (k *KubernetesConfigMap) Set(ctx context.Context, key string, value any) (bool, error) {
	return k.patch(ctx, "set", map[string]any{key: value})
}

// SetAll stores every pair in a single merge patch
func (k *KubernetesConfigMap) SetAll(ctx context.Context, data map[string]any) (bool, error) {
	return k.patch(ctx, "set_all", data)
}

func (k *KubernetesConfigMap) patch(ctx context.Context, op string, data map[string]any) (bool, error) {
	values, err := safeValues(data)
	if err != nil {
		return false, err
	}
	body, err := mergePatch(values)
	if err != nil {
		return false, err
	}

	api, err := k.configMaps()
	if err != nil {
		return false, backend.Unavailable(k.Name(), op, err)
	}
	if err := k.ensure(ctx, api); err != nil {
		return false, backend.Unavailable(k.Name(), op, err)
	}

	if _, err := api.Patch(ctx, k.kube.settings.Name, types.MergePatchType, body, metav1.PatchOptions{}); err != nil {
		return false, backend.Unavailable(k.Name(), op, err)
	}
	return true, nil
}

// KubernetesSecret stores secrets in the data of a single Secret. Values
// are base64 encoded on the wire and plain in this API.
type KubernetesSecret struct {
	kube *kubeClient
}

// NewKubernetesSecret creates the Secret adapter. The clientset and the
// Secret itself are created on first use.
func NewKubernetesSecret(settings config.KubernetesSettings, logger *logging.Logger, opts ...KubernetesOption) *KubernetesSecret {
	return &KubernetesSecret{kube: newKubeClient(settings, logger, opts)}
}

// Name returns the adapter name
func (k *KubernetesSecret) Name() string {
	return "kubernetes"
}

type clientSecrets interface {
	Get(ctx context.Context, name string, opts metav1.GetOptions) (*corev1.Secret, error)
	Create(ctx context.Context, s *corev1.Secret, opts metav1.CreateOptions) (*corev1.Secret, error)
	Patch(ctx context.Context, name string, pt types.PatchType, data []byte, opts metav1.PatchOptions, subresources ...string) (*corev1.Secret, error)
}

func (k *KubernetesSecret) secrets() (clientSecrets, error) {
	cs, err := k.kube.client()
	if err != nil {
		return nil, err
	}
	return cs.CoreV1().Secrets(k.kube.settings.Namespace), nil
}

func (k *KubernetesSecret) ensure(ctx context.Context, api clientSecrets) error {
	name := k.kube.settings.Name
	return k.kube.prepare(func() error {
		_, err := api.Get(ctx, name, metav1.GetOptions{})
		if err == nil {
			return nil
		}
		if !k8serrors.IsNotFound(err) {
			return err
		}

		k.kube.logger.Debug("creating secret %s/%s", k.kube.settings.Namespace, name)
		_, err = api.Create(ctx, &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: k.kube.settings.Namespace},
			Type:       corev1.SecretTypeOpaque,
			Data:       map[string][]byte{},
		}, metav1.CreateOptions{})
		if err != nil && !k8serrors.IsAlreadyExists(err) {
			return err
		}
		return nil
	})
}

// GetAll returns the decoded Secret data
func (k *KubernetesSecret) GetAll(ctx context.Context) (map[string]string, error) {
	api, err := k.secrets()
	if err != nil {
		return nil, backend.Unavailable(k.Name(), "get_all", err)
	}
	if err := k.ensure(ctx, api); err != nil {
		return nil, backend.Unavailable(k.Name(), "get_all", err)
	}

	secret, err := api.Get(ctx, k.kube.settings.Name, metav1.GetOptions{})
	if err != nil {
		return nil, backend.Unavailable(k.Name(), "get_all", err)
	}

	out := make(map[string]string, len(secret.Data))
	for key, v := range secret.Data {
		out[key] = string(v)
	}
	return out, nil
}

// Get returns the value of key, or def when it does not exist
func (k *KubernetesSecret) Get(ctx context.Context, key, def string) (string, error) {
	all, err := k.GetAll(ctx)
	if err != nil {
		return def, err
	}
	if v, ok := all[key]; ok {
		return v, nil
	}
	return def, nil
}

// Set stores value under key with a merge patch
func (k *KubernetesSecret) Set(ctx context.Context, key string, value any) (bool, error) {
	return k.patch(ctx, "set", map[string]any{key: value})
}

// SetAll stores every pair in a single merge patch
func (k *KubernetesSecret) SetAll(ctx context.Context, data map[string]any) (bool, error) {
	return k.patch(ctx, "set_all", data)
}

func (k *KubernetesSecret) patch(ctx context.Context, op string, data map[string]any) (bool, error) {
	values, err := safeValues(data)
	if err != nil {
		return false, err
	}
	for key, v := range values {
		values[key] = base64.StdEncoding.EncodeToString([]byte(v))
	}
	body, err := mergePatch(values)
	if err != nil {
		return false, err
	}

	api, err := k.secrets()
	if err != nil {
		return false, backend.Unavailable(k.Name(), op, err)
	}
	if err := k.ensure(ctx, api); err != nil {
		return false, backend.Unavailable(k.Name(), op, err)
	}

	if _, err := api.Patch(ctx, k.kube.settings.Name, types.MergePatchType, body, metav1.PatchOptions{}); err != nil {
		return false, backend.Unavailable(k.Name(), op, err)
	}
	return true, nil
}
