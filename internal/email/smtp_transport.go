package email

import (
	"context"
	"fmt"
	"io"
	stdmail "net/mail"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	mail "gopkg.in/mail.v2"
)

// SMTPTransport delivers messages over SMTP. Each instance owns its dialer,
// so TLS settings never leak between items.
type SMTPTransport struct {
	dialer *mail.Dialer
	send   func(m *mail.Message) error
}

// NewSMTPTransport builds an SMTP transport from cfg.
func NewSMTPTransport(cfg TransportConfig) *SMTPTransport {
	d := mail.NewDialer(cfg.Host, cfg.Port, "", "")
	d.SSL = cfg.Secure
	d.TLSConfig = cfg.TLS
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}
	if cfg.Auth != nil {
		d.Username = cfg.Auth.User
		d.Password = cfg.Auth.Password
		// the dialer only negotiates auth on its own when a username is set
		if cfg.Auth.User == "" {
			d.Auth = smtp.PlainAuth("", "", cfg.Auth.Password, cfg.Host)
		}
	}

	t := &SMTPTransport{dialer: d}
	t.send = func(m *mail.Message) error {
		return t.dialer.DialAndSend(m)
	}
	return t
}

// Send delivers msg. ctx is not consulted once the dial starts: in-flight
// deliveries are not cancellable.
func (t *SMTPTransport) Send(_ context.Context, msg *Message) (*DeliveryReceipt, error) {
	m, envelope, messageID, err := buildSMTPMessage(msg)
	if err != nil {
		return nil, err
	}

	size, err := m.WriteTo(io.Discard)
	if err != nil {
		return nil, errors.Wrap(err, "render message")
	}

	start := time.Now()
	if err := t.send(m); err != nil {
		return nil, errors.WithStack(err)
	}

	return &DeliveryReceipt{
		MessageID:   messageID,
		Accepted:    envelope.To,
		Rejected:    []string{},
		Envelope:    envelope,
		MessageTime: time.Since(start).Milliseconds(),
		MessageSize: size,
	}, nil
}

func buildSMTPMessage(msg *Message) (*mail.Message, Envelope, string, error) {
	var envelope Envelope

	from, err := parseAddressList("from", msg.From)
	if err != nil {
		return nil, envelope, "", err
	}
	if len(from) == 0 {
		return nil, envelope, "", errors.New("no sender address")
	}
	to, err := parseAddressList("to", msg.To)
	if err != nil {
		return nil, envelope, "", err
	}
	cc, err := parseAddressList("cc", msg.CC)
	if err != nil {
		return nil, envelope, "", err
	}
	bcc, err := parseAddressList("bcc", msg.BCC)
	if err != nil {
		return nil, envelope, "", err
	}
	replyTo, err := parseAddressList("reply-to", msg.ReplyTo)
	if err != nil {
		return nil, envelope, "", err
	}
	if len(to)+len(cc)+len(bcc) == 0 {
		return nil, envelope, "", errors.New("no recipients defined")
	}

	m := mail.NewMessage()
	m.SetAddressHeader("From", from[0].Address, from[0].Name)
	setAddresses(m, "To", to)
	setAddresses(m, "Cc", cc)
	setAddresses(m, "Bcc", bcc)
	setAddresses(m, "Reply-To", replyTo)
	m.SetHeader("Subject", msg.Subject)
	m.SetDateHeader("Date", time.Now())

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), domainOf(from[0].Address))
	m.SetHeader("Message-ID", messageID)

	if msg.HTML != "" {
		m.SetBody("text/html", msg.HTML)
	} else {
		m.SetBody("text/plain", msg.Text)
	}

	for _, att := range msg.Attachments {
		content := att.Content
		m.Attach(att.Filename,
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
			mail.SetHeader(map[string][]string{
				"Content-ID": {"<" + att.CID + ">"},
			}),
		)
	}

	recipients := make([]string, 0, len(to)+len(cc)+len(bcc))
	recipients = append(recipients, addressStrings(to)...)
	recipients = append(recipients, addressStrings(cc)...)
	recipients = append(recipients, addressStrings(bcc)...)
	envelope = Envelope{From: from[0].Address, To: recipients}

	return m, envelope, messageID, nil
}

func setAddresses(m *mail.Message, field string, addrs []*stdmail.Address) {
	if len(addrs) == 0 {
		return
	}
	values := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		values = append(values, m.FormatAddress(addr.Address, addr.Name))
	}
	m.SetHeader(field, values...)
}
