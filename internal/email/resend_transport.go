package email

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
)

// ResendTransport delivers messages through the Resend HTTP API.
type ResendTransport struct {
	client *resend.Client
}

// NewResendTransport builds a Resend transport from cfg. Only APIKey and
// Timeout are consulted.
func NewResendTransport(cfg TransportConfig) *ResendTransport {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &ResendTransport{client: resend.NewCustomClient(httpClient, cfg.APIKey)}
}

func (t *ResendTransport) Send(ctx context.Context, msg *Message) (*DeliveryReceipt, error) {
	from, err := parseAddressList("from", msg.From)
	if err != nil {
		return nil, err
	}
	if len(from) == 0 {
		return nil, errors.New("no sender address")
	}
	to, err := parseAddressList("to", msg.To)
	if err != nil {
		return nil, err
	}
	cc, err := parseAddressList("cc", msg.CC)
	if err != nil {
		return nil, err
	}
	bcc, err := parseAddressList("bcc", msg.BCC)
	if err != nil {
		return nil, err
	}
	if len(to)+len(cc)+len(bcc) == 0 {
		return nil, errors.New("no recipients defined")
	}

	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      addressStrings(to),
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	}
	if len(cc) > 0 {
		params.Cc = addressStrings(cc)
	}
	if len(bcc) > 0 {
		params.Bcc = addressStrings(bcc)
	}
	var size int64
	for _, att := range msg.Attachments {
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Content:  att.Content,
			Filename: att.Filename,
		})
		size += int64(len(att.Content))
	}
	size += int64(len(msg.Subject) + len(msg.HTML) + len(msg.Text))

	start := time.Now()
	sent, err := t.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	recipients := make([]string, 0, len(to)+len(cc)+len(bcc))
	recipients = append(recipients, addressStrings(to)...)
	recipients = append(recipients, addressStrings(cc)...)
	recipients = append(recipients, addressStrings(bcc)...)

	return &DeliveryReceipt{
		MessageID:   sent.Id,
		Accepted:    recipients,
		Rejected:    []string{},
		Envelope:    Envelope{From: from[0].Address, To: recipients},
		MessageTime: time.Since(start).Milliseconds(),
		MessageSize: size,
		Response:    "queued",
	}, nil
}
