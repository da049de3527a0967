package backends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"

	"github.com/systmms/containerlib/internal/config"
	"github.com/systmms/containerlib/internal/logging"
	"github.com/systmms/containerlib/pkg/backend"
)

// SecretsManagerClientAPI defines the Secrets Manager operations used by
// the AWS adapter. This allows for mocking in tests
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// AWS keeps the whole namespace as one JSON document in a single
// Secrets Manager secret named <secrets id>_<kind>.
type AWS struct {
	name     string
	secretID string
	client   SecretsManagerClientAPI
	logger   *logging.Logger
}

// AWSOption is a functional option for the AWS adapter
type AWSOption func(*AWS)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSOption {
	return func(a *AWS) {
		a.client = client
	}
}

// AWS secret kinds
const (
	AWSConfigs = "configs"
	AWSSecrets = "secrets"
)

// NewAWS creates the AWS adapter for kind (AWSConfigs or AWSSecrets)
func NewAWS(ctx context.Context, settings config.AWSSettings, kind string, logger *logging.Logger, opts ...AWSOption) (*AWS, error) {
	a := &AWS{
		name:     "aws",
		secretID: fmt.Sprintf("%s_%s", settings.SecretsID, kind),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.client == nil {
		var configOpts []func(*awsconfig.LoadOptions) error
		if settings.Region != "" {
			configOpts = append(configOpts, awsconfig.WithRegion(settings.Region))
		}
		if settings.AccessKeyID != "" && settings.SecretAccessKey != "" {
			configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(settings.AccessKeyID, settings.SecretAccessKey, ""),
			))
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if settings.EndpointURL != "" {
			endpoint := settings.EndpointURL
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		a.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}
	return a, nil
}

// Name returns the adapter name
func (a *AWS) Name() string {
	return a.name
}

// SecretID returns the name of the backing secret
func (a *AWS) SecretID() string {
	return a.secretID
}

// isResourceNotFound also matches by error code, as some emulators return
// untyped API errors.
func isResourceNotFound(err error) bool {
	var resourceNotFound *types.ResourceNotFoundException
	if errors.As(err, &resourceNotFound) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException"
}

func isResourceExists(err error) bool {
	var resourceExists *types.ResourceExistsException
	if errors.As(err, &resourceExists) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceExistsException"
}

// load returns the stored document and whether the secret exists
func (a *AWS) load(ctx context.Context) (map[string]string, bool, error) {
	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretID),
	})
	if err != nil {
		if isResourceNotFound(err) {
			return map[string]string{}, false, nil
		}
		return nil, false, err
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		raw = out.SecretBinary
	}

	data := map[string]string{}
	if len(raw) == 0 {
		return data, true, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, true, fmt.Errorf("secret %s is not a JSON object of strings: %w", a.secretID, err)
	}
	return data, true, nil
}

// GetAll returns every stored key
func (a *AWS) GetAll(ctx context.Context) (map[string]string, error) {
	data, _, err := a.load(ctx)
	if err != nil {
		return nil, backend.Unavailable(a.Name(), "get_all", err)
	}
	return data, nil
}

// Get returns the value of key, or def when it does not exist
func (a *AWS) Get(ctx context.Context, key, def string) (string, error) {
	data, err := a.GetAll(ctx)
	if err != nil {
		return def, err
	}
	if v, ok := data[key]; ok {
		return v, nil
	}
	return def, nil
}

// Set stores value under key
func (a *AWS) Set(ctx context.Context, key string, value any) (bool, error) {
	return a.write(ctx, "set", map[string]any{key: value})
}

// SetAll merges data into the document with a single write
func (a *AWS) SetAll(ctx context.Context, data map[string]any) (bool, error) {
	return a.write(ctx, "set_all", data)
}

func (a *AWS) write(ctx context.Context, op string, data map[string]any) (bool, error) {
	values, err := safeValues(data)
	if err != nil {
		return false, err
	}

	current, exists, err := a.load(ctx)
	if err != nil {
		return false, backend.Unavailable(a.Name(), op, err)
	}

	if !exists {
		a.logger.Debug("creating AWS secret %s", a.secretID)
		err = a.create(ctx, merged(current, values))
		switch {
		case err == nil:
			return true, nil
		case !isResourceExists(err):
			return false, backend.Unavailable(a.Name(), op, err)
		}

		// another writer created the secret first; merge into its document
		a.logger.Debug("AWS secret %s already exists; updating it", a.secretID)
		if current, _, err = a.load(ctx); err != nil {
			return false, backend.Unavailable(a.Name(), op, err)
		}
	}

	if err := a.put(ctx, merged(current, values)); err != nil {
		return false, backend.Unavailable(a.Name(), op, err)
	}
	return true, nil
}

func merged(current, values map[string]string) map[string]string {
	for k, v := range values {
		current[k] = v
	}
	return current
}

func (a *AWS) create(ctx context.Context, doc map[string]string) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = a.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(a.secretID),
		SecretString: aws.String(string(raw)),
	})
	return err
}

func (a *AWS) put(ctx context.Context, doc map[string]string) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = a.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(a.secretID),
		SecretString: aws.String(string(raw)),
	})
	return err
}
