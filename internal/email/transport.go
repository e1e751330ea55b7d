package email

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/pkg/errors"
)

// Provider names accepted in credentials.
const (
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
)

// Credentials is the resolved connection object handed over by the host.
type Credentials struct {
	Provider string `json:"provider" validate:"oneof=smtp resend"`
	Host     string `json:"host" validate:"required_if=Provider smtp"`
	Port     int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Secure   bool   `json:"secure"`
	User     string `json:"user"`
	Password string `json:"password"`
	APIKey   string `json:"apiKey" validate:"required_if=Provider resend"`
}

// BasicAuth holds SMTP login credentials.
type BasicAuth struct {
	User     string
	Password string
}

// TransportConfig describes one transport instance. Values are copied, and
// the TLS config is owned by this instance only.
type TransportConfig struct {
	Provider string
	Host     string
	Port     int
	Secure   bool
	Auth     *BasicAuth
	TLS      *tls.Config
	APIKey   string
	Timeout  time.Duration
}

// NewTransportConfig maps credentials into a transport configuration. Auth is
// attached when a user or password is present. allowUnauthorizedCerts turns
// off certificate verification for this configuration alone.
func NewTransportConfig(creds Credentials, allowUnauthorizedCerts bool) TransportConfig {
	cfg := TransportConfig{
		Provider: creds.Provider,
		Host:     creds.Host,
		Port:     creds.Port,
		Secure:   creds.Secure,
		APIKey:   creds.APIKey,
		TLS: &tls.Config{
			ServerName:         creds.Host,
			InsecureSkipVerify: allowUnauthorizedCerts,
		},
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderSMTP
	}
	if creds.User != "" || creds.Password != "" {
		cfg.Auth = &BasicAuth{User: creds.User, Password: creds.Password}
	}
	return cfg
}

// WithTimeout returns a copy of the config with the dial/send timeout set.
func (c TransportConfig) WithTimeout(timeout time.Duration) TransportConfig {
	c.Timeout = timeout
	return c
}

// Message is the transient per-item send request.
type Message struct {
	From        string
	To          string
	CC          string
	BCC         string
	ReplyTo     string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Attachment is a binary property sent with a message. CID lets HTML bodies
// reference it inline as cid:<CID>.
type Attachment struct {
	Filename string
	Content  []byte
	CID      string
}

// Envelope is the SMTP envelope actually used for delivery.
type Envelope struct {
	From string   `json:"from"`
	To   []string `json:"to"`
}

// DeliveryReceipt is the metadata returned for a successful send.
type DeliveryReceipt struct {
	MessageID   string   `json:"messageId"`
	Accepted    []string `json:"accepted"`
	Rejected    []string `json:"rejected"`
	Envelope    Envelope `json:"envelope"`
	MessageTime int64    `json:"messageTime"`
	MessageSize int64    `json:"messageSize"`
	Response    string   `json:"response,omitempty"`
}

// ToMap renders the receipt as an item JSON payload.
func (r *DeliveryReceipt) ToMap() map[string]any {
	out := map[string]any{
		"messageId":   r.MessageID,
		"accepted":    nonNil(r.Accepted),
		"rejected":    nonNil(r.Rejected),
		"envelope":    map[string]any{"from": r.Envelope.From, "to": nonNil(r.Envelope.To)},
		"messageTime": r.MessageTime,
		"messageSize": r.MessageSize,
	}
	if r.Response != "" {
		out["response"] = r.Response
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// Transport delivers a single message.
type Transport interface {
	Send(ctx context.Context, msg *Message) (*DeliveryReceipt, error)
}

// TransportFactory builds a transport for one item.
type TransportFactory func(cfg TransportConfig) (Transport, error)

// NewTransport is the default TransportFactory.
func NewTransport(cfg TransportConfig) (Transport, error) {
	switch cfg.Provider {
	case ProviderSMTP, "":
		return NewSMTPTransport(cfg), nil
	case ProviderResend:
		return NewResendTransport(cfg), nil
	default:
		return nil, errors.Errorf("unsupported email provider %q", cfg.Provider)
	}
}
