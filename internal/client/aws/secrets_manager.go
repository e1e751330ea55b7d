package aws

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/logger"
)

// ErrSecretNotFound is returned when neither the secret nor its fallback is set.
var ErrSecretNotFound = errors.New("secret not found")

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerClient reads secrets whose ARNs are given by environment variables.
type SecretsManagerClient struct {
	svc SecretsAPI
}

// NewSecretsManagerClient creates a client from an AWS configuration.
func NewSecretsManagerClient(cfg aws.Config) *SecretsManagerClient {
	return NewSecretsManagerClientWithAPI(secretsmanager.NewFromConfig(cfg))
}

// NewSecretsManagerClientWithAPI wraps an existing Secrets Manager API.
func NewSecretsManagerClientWithAPI(svc SecretsAPI) *SecretsManagerClient {
	return &SecretsManagerClient{svc: svc}
}

func (c *SecretsManagerClient) fetch(ctx context.Context, secretArn string) (string, error) {
	result, err := c.svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretArn),
	})
	if err != nil {
		return "", errors.Wrapf(err, "get secret %s", secretArn)
	}
	if result.SecretString == nil || *result.SecretString == "" {
		return "", errors.Wrapf(ErrSecretNotFound, "secret %s is empty", secretArn)
	}
	return *result.SecretString, nil
}

// GetSecretString returns the secret whose ARN is in secretArnEnvVar, falling
// back to the plain value of fallbackEnvVar when the ARN is unset or the
// fetch fails.
func (c *SecretsManagerClient) GetSecretString(ctx context.Context, secretArnEnvVar, fallbackEnvVar string) (string, error) {
	if secretArn := os.Getenv(secretArnEnvVar); secretArn != "" {
		value, err := c.fetch(ctx, secretArn)
		if err == nil {
			logger.L().Debug("Fetched secret from Secrets Manager", zap.String("arnEnvVar", secretArnEnvVar))
			return value, nil
		}
		logger.L().Warn("Failed to retrieve secret from Secrets Manager, falling back to env var",
			zap.String("arnEnvVar", secretArnEnvVar),
			zap.String("fallbackEnvVar", fallbackEnvVar),
			zap.Error(err),
		)
	}

	if value := os.Getenv(fallbackEnvVar); value != "" {
		return value, nil
	}
	return "", errors.Wrapf(ErrSecretNotFound, "neither %s nor %s is set", secretArnEnvVar, fallbackEnvVar)
}

// GetSecretJSON unmarshals the JSON secret whose ARN is in secretArnEnvVar
// into target.
func (c *SecretsManagerClient) GetSecretJSON(ctx context.Context, secretArnEnvVar string, target any) error {
	secretArn := os.Getenv(secretArnEnvVar)
	if secretArn == "" {
		return errors.Wrapf(ErrSecretNotFound, "%s is not set", secretArnEnvVar)
	}
	value, err := c.fetch(ctx, secretArn)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(value), target); err != nil {
		return errors.Wrapf(err, "secret %s is not valid JSON", secretArn)
	}
	return nil
}
