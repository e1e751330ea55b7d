package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/mocks"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/email-results"

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		Multiplier:      1,
		MaxElapsedTime:  time.Second,
	}
}

func TestResultPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	msg := ResultMessage{RequestID: "msg-1", Status: StatusSucceeded}

	t.Run("sends body and attributes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		api := mocks.NewMockSendMessageAPI(ctrl)
		api.EXPECT().SendMessage(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, input *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
				assert.Equal(t, testQueueURL, *input.QueueUrl)
				assert.Equal(t, "msg-1", *input.MessageAttributes["RequestID"].StringValue)
				assert.Equal(t, StatusSucceeded, *input.MessageAttributes["Status"].StringValue)

				var decoded ResultMessage
				require.NoError(t, json.Unmarshal([]byte(*input.MessageBody), &decoded))
				assert.Equal(t, "msg-1", decoded.RequestID)
				return &sqs.SendMessageOutput{}, nil
			})

		require.NoError(t, NewResultPublisher(api, testQueueURL, fastRetry(), zap.NewNop()).Publish(ctx, msg))
	})

	t.Run("retries transient failures", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		api := mocks.NewMockSendMessageAPI(ctrl)
		gomock.InOrder(
			api.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Return(nil, errors.New("throttled")),
			api.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Return(&sqs.SendMessageOutput{}, nil),
		)

		require.NoError(t, NewResultPublisher(api, testQueueURL, fastRetry(), zap.NewNop()).Publish(ctx, msg))
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		api := mocks.NewMockSendMessageAPI(ctrl)
		api.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Return(nil, errors.New("unavailable")).Times(3)

		err := NewResultPublisher(api, testQueueURL, fastRetry(), zap.NewNop()).Publish(ctx, msg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to publish result for request msg-1")
	})
}
