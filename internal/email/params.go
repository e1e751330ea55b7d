package email

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/cyphera/emailsend/internal/workflow"
)

// Email body formats.
const (
	EmailFormatText = "text"
	EmailFormatHTML = "html"
)

// Batching defaults applied when the batching option is present but a field
// is omitted.
const (
	DefaultBatchSize       = 50
	DefaultBatchIntervalMs = 1000
)

// Node parameter names.
const (
	ParamFromEmail   = "fromEmail"
	ParamToEmail     = "toEmail"
	ParamSubject     = "subject"
	ParamEmailFormat = "emailFormat"
	ParamText        = "text"
	ParamHTML        = "html"
	ParamOptions     = "options"
)

// BatchingConfig paces submissions: every BatchSize items the sender waits
// BatchIntervalMs before issuing the next send. BatchSize -1 or 0, or an
// interval of 0, disables pacing.
type BatchingConfig struct {
	BatchSize       int `json:"batchSize" validate:"gte=-1"`
	BatchIntervalMs int `json:"batchInterval" validate:"gte=0"`
}

// SendOptions is the explicit shape of the node's options bag.
type SendOptions struct {
	CCEmail                string          `json:"ccEmail"`
	BCCEmail               string          `json:"bccEmail"`
	ReplyTo                string          `json:"replyTo"`
	Attachments            string          `json:"attachments"`
	AllowUnauthorizedCerts bool            `json:"allowUnauthorizedCerts"`
	Batching               *BatchingConfig `json:"batching"`
}

// EffectiveBatching returns the batching in force. Without a batching
// option every item is its own batch and no interval applies.
func (o SendOptions) EffectiveBatching() BatchingConfig {
	if o.Batching == nil {
		return BatchingConfig{BatchSize: 1, BatchIntervalMs: 0}
	}
	return *o.Batching
}

type itemParams struct {
	FromEmail   string `json:"fromEmail" validate:"required"`
	ToEmail     string `json:"toEmail" validate:"required"`
	Subject     string `json:"subject"`
	EmailFormat string `json:"emailFormat" validate:"oneof=text html"`
	Text        string `json:"text"`
	HTML        string `json:"html"`
	Options     SendOptions
}

// ErrInvalidCredentials is returned when the credential object cannot be used.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ParameterError reports a parameter that could not be resolved or failed
// validation for one item.
type ParameterError struct {
	ItemIndex int
	Parameter string
	Err       error
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %q of item %d: %v", e.Parameter, e.ItemIndex, e.Err)
}

func (e *ParameterError) Unwrap() error {
	return e.Err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError flattens validator output into a single readable error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// resolveItemParams resolves and validates every parameter for one item.
func resolveItemParams(exec workflow.ExecuteContext, itemIndex int) (*itemParams, error) {
	p := &itemParams{}

	strParams := []struct {
		name     string
		fallback string
		dst      *string
	}{
		{ParamFromEmail, "", &p.FromEmail},
		{ParamToEmail, "", &p.ToEmail},
		{ParamSubject, "", &p.Subject},
		{ParamEmailFormat, EmailFormatHTML, &p.EmailFormat},
	}
	for _, sp := range strParams {
		value, err := stringParameter(exec, sp.name, itemIndex, sp.fallback)
		if err != nil {
			return nil, err
		}
		*sp.dst = value
	}

	bodyParam := ParamHTML
	if p.EmailFormat == EmailFormatText {
		bodyParam = ParamText
	}
	body, err := stringParameter(exec, bodyParam, itemIndex, "")
	if err != nil {
		return nil, err
	}
	if bodyParam == ParamText {
		p.Text = body
	} else {
		p.HTML = body
	}

	rawOptions, err := exec.NodeParameter(ParamOptions, itemIndex, map[string]any{})
	if err != nil {
		return nil, &ParameterError{ItemIndex: itemIndex, Parameter: ParamOptions, Err: err}
	}
	opts, err := decodeOptions(rawOptions)
	if err != nil {
		return nil, &ParameterError{ItemIndex: itemIndex, Parameter: ParamOptions, Err: err}
	}
	p.Options = opts

	if err := validate.Struct(p); err != nil {
		return nil, &ParameterError{ItemIndex: itemIndex, Parameter: firstInvalidField(err), Err: validationError(err)}
	}
	return p, nil
}

func firstInvalidField(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field()
	}
	return ""
}

func stringParameter(exec workflow.ExecuteContext, name string, itemIndex int, fallback string) (string, error) {
	raw, err := exec.NodeParameter(name, itemIndex, fallback)
	if err != nil {
		return "", &ParameterError{ItemIndex: itemIndex, Parameter: name, Err: err}
	}
	value, err := asString(raw)
	if err != nil {
		return "", &ParameterError{ItemIndex: itemIndex, Parameter: name, Err: err}
	}
	return value, nil
}

func decodeOptions(raw any) (SendOptions, error) {
	var opts SendOptions
	if raw == nil {
		return opts, nil
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return opts, errors.Errorf("expected an object, got %T", raw)
	}

	var err error
	for key, value := range values {
		switch key {
		case "ccEmail":
			opts.CCEmail, err = asString(value)
		case "bccEmail":
			opts.BCCEmail, err = asString(value)
		case "replyTo":
			opts.ReplyTo, err = asString(value)
		case "attachments":
			opts.Attachments, err = asString(value)
		case "allowUnauthorizedCerts":
			opts.AllowUnauthorizedCerts, err = asBool(value)
		case "batching":
			opts.Batching, err = decodeBatching(value)
		default:
			err = errors.Errorf("unknown option %q", key)
		}
		if err != nil {
			return SendOptions{}, errors.Wrapf(err, "option %q", key)
		}
	}
	return opts, nil
}

func decodeBatching(raw any) (*BatchingConfig, error) {
	cfg := &BatchingConfig{BatchSize: DefaultBatchSize, BatchIntervalMs: DefaultBatchIntervalMs}
	if raw == nil {
		return cfg, nil
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.Errorf("expected an object, got %T", raw)
	}

	var err error
	for key, value := range values {
		switch key {
		case "batchSize":
			cfg.BatchSize, err = asInt(value)
		case "batchInterval":
			cfg.BatchIntervalMs, err = asInt(value)
		default:
			err = errors.Errorf("unknown batching field %q", key)
		}
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// DecodeCredentials converts a resolved credential object into Credentials.
// Port defaults to 465 for implicit TLS and 587 otherwise.
func DecodeCredentials(raw map[string]any) (Credentials, error) {
	var (
		creds Credentials
		err   error
	)
	fields := []struct {
		key string
		set func(any) error
	}{
		{"provider", func(v any) (e error) { creds.Provider, e = asString(v); return }},
		{"host", func(v any) (e error) { creds.Host, e = asString(v); return }},
		{"port", func(v any) (e error) { creds.Port, e = asInt(v); return }},
		{"secure", func(v any) (e error) { creds.Secure, e = asBool(v); return }},
		{"user", func(v any) (e error) { creds.User, e = asString(v); return }},
		{"password", func(v any) (e error) { creds.Password, e = asString(v); return }},
		{"apiKey", func(v any) (e error) { creds.APIKey, e = asString(v); return }},
	}
	for _, f := range fields {
		value, ok := raw[f.key]
		if !ok || value == nil {
			continue
		}
		if err = f.set(value); err != nil {
			return Credentials{}, errors.Wrapf(ErrInvalidCredentials, "credential field %q: %v", f.key, err)
		}
	}

	if creds.Provider == "" {
		creds.Provider = ProviderSMTP
	}
	if creds.Provider == ProviderSMTP && creds.Port == 0 {
		creds.Port = 587
		if creds.Secure {
			creds.Port = 465
		}
	}
	if err := validate.Struct(creds); err != nil {
		return Credentials{}, errors.Wrap(ErrInvalidCredentials, validationError(err).Error())
	}
	return creds, nil
}

func asString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	default:
		return "", errors.Errorf("expected a string, got %T", v)
	}
}

func asInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t != math.Trunc(t) {
			return 0, errors.Errorf("expected an integer, got %v", t)
		}
		return int(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, errors.Wrap(err, "expected an integer")
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, errors.Errorf("expected an integer, got %q", t)
		}
		return n, nil
	default:
		return 0, errors.Errorf("expected an integer, got %T", v)
	}
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, errors.Errorf("expected a boolean, got %q", t)
		}
		return b, nil
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	default:
		return false, errors.Errorf("expected a boolean, got %T", v)
	}
}
