package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/email"
	"github.com/cyphera/emailsend/internal/workflow"
)

// NodeExecutor runs a node over one execution.
type NodeExecutor interface {
	Execute(ctx context.Context, exec workflow.ExecuteContext) ([]workflow.Item, error)
}

// Publisher delivers execution results.
type Publisher interface {
	Publish(ctx context.Context, msg ResultMessage) error
}

// Processor runs queued execution requests through the node.
type Processor struct {
	executor    NodeExecutor
	publisher   Publisher
	credentials workflow.CredentialSource
	logger      *zap.Logger
	now         func() time.Time
}

// NewProcessor creates a Processor. credentials may be nil.
func NewProcessor(executor NodeExecutor, publisher Publisher, credentials workflow.CredentialSource, logger *zap.Logger) *Processor {
	return &Processor{
		executor:    executor,
		publisher:   publisher,
		credentials: credentials,
		logger:      logger,
		now:         time.Now,
	}
}

// HandleSQSEvent processes every record and reports the ones that must be
// redelivered. Once the node has run a record is never redelivered: node
// failures are published with status failed, and a result that still cannot
// be published after retries is logged and dropped. Only records that cannot
// be parsed are returned as batch item failures.
func (p *Processor) HandleSQSEvent(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	p.logger.Info("Email worker handling SQS event", zap.Int("record_count", len(event.Records)))

	var resp events.SQSEventResponse
	for _, record := range event.Records {
		if err := p.processRecord(ctx, record); err != nil {
			p.logger.Error("Failed to process email request",
				zap.String("message_id", record.MessageId),
				zap.Error(err),
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}

	p.logger.Info("Finished SQS event",
		zap.Int("record_count", len(event.Records)),
		zap.Int("failed", len(resp.BatchItemFailures)),
	)
	return resp, nil
}

func (p *Processor) processRecord(ctx context.Context, record events.SQSMessage) error {
	var req workflow.ExecutionRequest
	if err := json.Unmarshal([]byte(record.Body), &req); err != nil {
		return errors.Wrap(err, "failed to unmarshal execution request")
	}
	if len(req.Items) == 0 {
		return errors.New("execution request has no items")
	}

	result := p.Run(ctx, record.MessageId, req)
	if err := p.publisher.Publish(ctx, result); err != nil {
		// the sends have already run; redelivery would repeat them
		p.logger.Error("Failed to publish email result, acknowledging record",
			zap.String("message_id", record.MessageId),
			zap.String("status", result.Status),
			zap.Int("items", len(result.Items)),
			zap.Error(err),
		)
	}
	return nil
}

// Run executes one request and converts the outcome into a ResultMessage.
func (p *Processor) Run(ctx context.Context, requestID string, req workflow.ExecutionRequest) ResultMessage {
	var opts []workflow.ExecutionOption
	if p.credentials != nil {
		opts = append(opts, workflow.WithCredentialSource(p.credentials))
	}

	items, err := p.executor.Execute(ctx, workflow.NewExecution(req, opts...))
	result := ResultMessage{
		RequestID:   requestID,
		Status:      StatusSucceeded,
		Items:       items,
		CompletedAt: p.now().UTC(),
	}
	if err != nil {
		result.Status = StatusFailed
		result.Items = nil
		result.Error = err.Error()

		var apiErr *email.NodeAPIError
		if errors.As(err, &apiErr) {
			result.ErrorDetail = apiErr
		}
		p.logger.Warn("Email node failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
	return result
}
