package email

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cyphera/emailsend/internal/workflow"
)

// CredentialTypeSMTP is the credential type the sender requests from the host.
const CredentialTypeSMTP = "smtp"

// Sender runs the send email operation over a batch of items.
type Sender struct {
	logger         *zap.Logger
	newTransport   TransportFactory
	sleep          SleepFunc
	maxConcurrency int
	sendTimeout    time.Duration
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithTransportFactory replaces the factory used to build one transport per item.
func WithTransportFactory(factory TransportFactory) SenderOption {
	return func(s *Sender) {
		s.newTransport = factory
	}
}

// WithSleepFunc replaces the pacing wait.
func WithSleepFunc(sleep SleepFunc) SenderOption {
	return func(s *Sender) {
		s.sleep = sleep
	}
}

// WithMaxConcurrency caps the number of sends in flight. Zero or less means
// no cap.
func WithMaxConcurrency(n int) SenderOption {
	return func(s *Sender) {
		s.maxConcurrency = n
	}
}

// WithSendTimeout bounds each individual delivery.
func WithSendTimeout(timeout time.Duration) SenderOption {
	return func(s *Sender) {
		s.sendTimeout = timeout
	}
}

// NewSender creates a Sender.
func NewSender(logger *zap.Logger, opts ...SenderOption) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sender{
		logger:       logger,
		newTransport: NewTransport,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sendResult is the settled outcome for the item at index.
type sendResult struct {
	index   int
	receipt *DeliveryReceipt
	err     error
}

// Execute sends one email per input item and returns one output item per
// consumed input, in input order, each paired to its input index.
//
// Without continue-on-fail the first failure in index order aborts the whole
// operation and no output is returned. Sends already issued always run to
// completion, including when ctx is cancelled during a pacing wait.
func (s *Sender) Execute(ctx context.Context, exec workflow.ExecuteContext) ([]workflow.Item, error) {
	items := exec.InputData()
	if len(items) == 0 {
		return []workflow.Item{}, nil
	}

	rawCreds, err := exec.Credentials(ctx, CredentialTypeSMTP)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load credentials")
	}
	creds, err := DecodeCredentials(rawCreds)
	if err != nil {
		return nil, err
	}

	continueOnFail := exec.ContinueOnFail()
	sendCtx := context.WithoutCancel(ctx)
	results := make([]sendResult, len(items))

	var g errgroup.Group
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	consumed := 0
	var abortErr error
	for i, item := range items {
		results[i].index = i

		msg, opts, err := s.prepare(ctx, exec, i, item)
		if err != nil {
			consumed = i + 1
			results[i].err = err
			s.logger.Warn("failed to resolve email parameters", zap.Int("item", i), zap.Error(err))
			if !continueOnFail {
				break
			}
			continue
		}

		batching := opts.EffectiveBatching()
		if batching.shouldPause(i) {
			s.logger.Debug("pausing between batches",
				zap.Int("item", i),
				zap.Duration("interval", batching.Interval()),
			)
			if err := s.sleep(ctx, batching.Interval()); err != nil {
				abortErr = err
				break
			}
		}
		consumed = i + 1

		cfg := NewTransportConfig(creds, opts.AllowUnauthorizedCerts)
		if s.sendTimeout > 0 {
			cfg = cfg.WithTimeout(s.sendTimeout)
		}
		transport, err := s.newTransport(cfg)
		if err != nil {
			results[i].err = errors.Wrap(err, "failed to create transport")
			if !continueOnFail {
				break
			}
			continue
		}

		slot := &results[i]
		g.Go(func() error {
			receipt, err := transport.Send(sendCtx, msg)
			slot.receipt, slot.err = receipt, err
			return nil
		})
	}

	// sends never report through the group, so Wait only joins
	_ = g.Wait()

	if abortErr != nil {
		s.logger.Warn("email submission interrupted", zap.Int("submitted", consumed), zap.Error(abortErr))
		return nil, abortErr
	}

	out := make([]workflow.Item, 0, consumed)
	failed := 0
	for _, res := range results[:consumed] {
		if res.err == nil {
			out = append(out, workflow.NewOutputItem(res.receipt.ToMap(), res.index))
			continue
		}

		failed++
		if continueOnFail {
			out = append(out, workflow.NewErrorItem(res.err, res.index))
			continue
		}

		var paramErr *ParameterError
		if errors.As(res.err, &paramErr) {
			return nil, paramErr
		}
		s.logger.Error("email delivery failed", zap.Int("item", res.index), zap.Error(res.err))
		return nil, newNodeAPIError(res.index, res.err)
	}

	s.logger.Info("email batch completed",
		zap.Int("items", len(items)),
		zap.Int("succeeded", len(out)-failed),
		zap.Int("failed", failed),
	)
	return out, nil
}

// prepare resolves the item's parameters and builds its message.
func (s *Sender) prepare(ctx context.Context, exec workflow.ExecuteContext, itemIndex int, item workflow.Item) (*Message, SendOptions, error) {
	params, err := resolveItemParams(exec, itemIndex)
	if err != nil {
		return nil, SendOptions{}, err
	}

	msg := &Message{
		From:    params.FromEmail,
		To:      params.ToEmail,
		CC:      params.Options.CCEmail,
		BCC:     params.Options.BCCEmail,
		ReplyTo: params.Options.ReplyTo,
		Subject: params.Subject,
	}
	if params.EmailFormat == EmailFormatText {
		msg.Text = params.Text
	} else {
		msg.HTML = params.HTML
	}

	attachments, err := resolveAttachments(ctx, exec, itemIndex, item, params.Options.Attachments)
	if err != nil {
		return nil, SendOptions{}, err
	}
	msg.Attachments = attachments

	return msg, params.Options, nil
}
