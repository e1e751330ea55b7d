package config

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/email"
	"github.com/cyphera/emailsend/internal/helpers"
	"github.com/cyphera/emailsend/internal/logger"
	"github.com/cyphera/emailsend/internal/workflow"
)

// SMTPSecretArnEnvVar names the variable holding the ARN of the JSON secret
// with the default SMTP credential object.
const SMTPSecretArnEnvVar = "SMTP_CREDENTIALS_SECRET_ARN"

// API key sources. The secret holds a comma separated list, as does API_KEYS.
const (
	APIKeySecretArnEnvVar = "API_KEY_SECRET_ARN"
	APIKeysEnvVar         = "API_KEYS"
)

// Config is the runtime configuration shared by the API and the worker.
type Config struct {
	Stage              string
	Port               string
	RateLimitRPS       int
	RateLimitBurst     int
	SendMaxConcurrency int
	SendTimeout        time.Duration
	ResultsQueueURL    string
}

// Load reads the configuration from the environment.
func Load(stage string) Config {
	return Config{
		Stage:              stage,
		Port:               helpers.GetEnvWithDefault("API_PORT", "8000"),
		RateLimitRPS:       helpers.GetEnvInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     helpers.GetEnvInt("RATE_LIMIT_BURST", 20),
		SendMaxConcurrency: helpers.GetEnvInt("SEND_MAX_CONCURRENCY", 0),
		SendTimeout:        time.Duration(helpers.GetEnvInt("SEND_TIMEOUT_SECONDS", 30)) * time.Second,
		ResultsQueueURL:    os.Getenv("RESULTS_QUEUE_URL"),
	}
}

// SenderOptions maps the configuration onto email.Sender options.
func (c Config) SenderOptions() []email.SenderOption {
	opts := []email.SenderOption{email.WithMaxConcurrency(c.SendMaxConcurrency)}
	if c.SendTimeout > 0 {
		opts = append(opts, email.WithSendTimeout(c.SendTimeout))
	}
	return opts
}

// SecretReader reads a JSON secret whose ARN is held in an environment variable.
type SecretReader interface {
	GetSecretJSON(ctx context.Context, secretArnEnvVar string, target any) error
}

// SecretStringReader reads a plain secret, falling back to an env variable.
type SecretStringReader interface {
	GetSecretString(ctx context.Context, secretArnEnvVar, fallbackEnvVar string) (string, error)
}

// LoadAPIKeys returns the keys accepted on authenticated routes. The secret
// named by API_KEY_SECRET_ARN wins over API_KEYS. secrets may be nil.
func LoadAPIKeys(ctx context.Context, secrets SecretStringReader) []string {
	raw := os.Getenv(APIKeysEnvVar)
	if secrets != nil && os.Getenv(APIKeySecretArnEnvVar) != "" {
		value, err := secrets.GetSecretString(ctx, APIKeySecretArnEnvVar, APIKeysEnvVar)
		if err != nil {
			logger.L().Warn("Failed to load API keys", zap.Error(err))
		} else {
			raw = value
		}
	}
	return helpers.SplitAndTrim(raw)
}

// CredentialSource returns the default credentials used when a request
// carries none. The JSON secret named by SMTP_CREDENTIALS_SECRET_ARN wins,
// then SMTP_* variables, then RESEND_API_KEY. secrets may be nil.
func CredentialSource(secrets SecretReader) workflow.CredentialSource {
	return func(ctx context.Context, credentialType string) (map[string]any, error) {
		if credentialType != email.CredentialTypeSMTP {
			return nil, errors.Wrapf(workflow.ErrCredentialsNotFound, "credential type %q", credentialType)
		}

		if secrets != nil && os.Getenv(SMTPSecretArnEnvVar) != "" {
			var creds map[string]any
			err := secrets.GetSecretJSON(ctx, SMTPSecretArnEnvVar, &creds)
			if err == nil {
				return creds, nil
			}
			logger.L().Warn("Failed to load SMTP credentials secret, falling back to env vars", zap.Error(err))
		}

		if host := os.Getenv("SMTP_HOST"); host != "" {
			creds := map[string]any{
				"provider": email.ProviderSMTP,
				"host":     host,
				"secure":   helpers.GetEnvBool("SMTP_SECURE", false),
			}
			if port := os.Getenv("SMTP_PORT"); port != "" {
				creds["port"] = port
			}
			if user := os.Getenv("SMTP_USER"); user != "" {
				creds["user"] = user
			}
			if password := os.Getenv("SMTP_PASSWORD"); password != "" {
				creds["password"] = password
			}
			return creds, nil
		}

		if apiKey := os.Getenv("RESEND_API_KEY"); apiKey != "" {
			return map[string]any{"provider": email.ProviderResend, "apiKey": apiKey}, nil
		}

		return nil, errors.Wrap(workflow.ErrCredentialsNotFound, "no default SMTP credentials configured")
	}
}
