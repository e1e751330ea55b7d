package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/workflow"
)

// Result statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// ResultMessage is published once per processed execution request.
type ResultMessage struct {
	RequestID   string          `json:"requestId"`
	Status      string          `json:"status"`
	Items       []workflow.Item `json:"items,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorDetail any             `json:"errorDetail,omitempty"`
	CompletedAt time.Time       `json:"completedAt"`
}

// SendMessageAPI is the subset of the SQS client used by the publisher.
type SendMessageAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// RetryConfig configures publish retries.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig provides sensible defaults for retries
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  30 * time.Second,
	}
}

// ResultPublisher sends ResultMessages to an SQS queue.
type ResultPublisher struct {
	client   SendMessageAPI
	queueURL string
	retry    RetryConfig
	logger   *zap.Logger
}

// NewResultPublisher creates a publisher for queueURL.
func NewResultPublisher(client SendMessageAPI, queueURL string, retry RetryConfig, logger *zap.Logger) *ResultPublisher {
	return &ResultPublisher{
		client:   client,
		queueURL: queueURL,
		retry:    retry,
		logger:   logger,
	}
}

// Publish sends msg, retrying transient failures with exponential backoff.
func (p *ResultPublisher) Publish(ctx context.Context, msg ResultMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal result message")
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"RequestID": {
				StringValue: aws.String(msg.RequestID),
				DataType:    aws.String("String"),
			},
			"Status": {
				StringValue: aws.String(msg.Status),
				DataType:    aws.String("String"),
			},
		},
	}

	attempt := 0
	operation := func() error {
		attempt++
		_, err := p.client.SendMessage(ctx, input)
		if err != nil {
			p.logger.Warn("Failed to publish result, retrying",
				zap.String("request_id", msg.RequestID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = p.retry.InitialInterval
	expBackoff.MaxInterval = p.retry.MaxInterval
	expBackoff.Multiplier = p.retry.Multiplier
	expBackoff.MaxElapsedTime = p.retry.MaxElapsedTime

	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(p.retry.MaxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return errors.Wrapf(err, "failed to publish result for request %s", msg.RequestID)
	}
	return nil
}
