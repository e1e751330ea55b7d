package aws

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/pkg/errors"
)

// LoadConfig loads the default AWS configuration chain. AWS_ENDPOINT_URL
// points every client at an emulator such as LocalStack, in which case static
// credentials from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are used.
func LoadConfig(ctx context.Context) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
		if key := os.Getenv("AWS_ACCESS_KEY_ID"); key != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(key, os.Getenv("AWS_SECRET_ACCESS_KEY"), ""),
			))
		}
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "unable to load AWS SDK config")
	}
	return cfg, nil
}
