package workflow

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

var (
	// ErrCredentialsNotFound is returned when no credential of the requested type is available.
	ErrCredentialsNotFound = errors.New("credentials not found")
	// ErrBinaryPropertyNotFound is returned when an item has no binary property of the requested name.
	ErrBinaryPropertyNotFound = errors.New("binary property not found")
	// ErrItemIndexOutOfRange is returned for parameter lookups against a missing item.
	ErrItemIndexOutOfRange = errors.New("item index out of range")
)

// ExecutionRequest is a self-contained node invocation: parameters, credentials,
// failure policy and input items.
type ExecutionRequest struct {
	Parameters     map[string]any            `json:"parameters" binding:"required"`
	Credentials    map[string]map[string]any `json:"credentials,omitempty"`
	ContinueOnFail bool                      `json:"continueOnFail"`
	Items          []Item                    `json:"items" binding:"required,min=1"`
}

// CredentialSource supplies credentials the request itself does not carry.
type CredentialSource func(ctx context.Context, credentialType string) (map[string]any, error)

// Execution implements ExecuteContext over an ExecutionRequest. String
// parameters containing "{{" are rendered as text/template against the
// item's JSON, so one parameter set can address every item differently.
type Execution struct {
	req      ExecutionRequest
	fallback CredentialSource
}

// ExecutionOption configures an Execution.
type ExecutionOption func(*Execution)

// WithCredentialSource sets the source consulted when the request has no
// credentials of the requested type.
func WithCredentialSource(source CredentialSource) ExecutionOption {
	return func(e *Execution) {
		e.fallback = source
	}
}

// NewExecution creates an Execution for req.
func NewExecution(req ExecutionRequest, opts ...ExecutionOption) *Execution {
	e := &Execution{req: req}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InputData returns the request's items.
func (e *Execution) InputData() []Item {
	return e.req.Items
}

// ContinueOnFail reports the request's failure policy.
func (e *Execution) ContinueOnFail() bool {
	return e.req.ContinueOnFail
}

// NodeParameter looks name up in the request parameters and renders any
// template in it against the JSON of the item at itemIndex. fallback is
// returned when the parameter is missing or null.
func (e *Execution) NodeParameter(name string, itemIndex int, fallback any) (any, error) {
	item, err := e.item(itemIndex)
	if err != nil {
		return nil, err
	}

	value, ok := lookupPath(e.req.Parameters, name)
	if !ok || value == nil {
		return fallback, nil
	}

	rendered, err := render(name, value, item.JSON)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve parameter %q for item %d", name, itemIndex)
	}
	return rendered, nil
}

// Credentials returns a copy of the request's credentials of credentialType,
// or asks the fallback source when the request has none.
func (e *Execution) Credentials(ctx context.Context, credentialType string) (map[string]any, error) {
	if creds, ok := e.req.Credentials[credentialType]; ok && len(creds) > 0 {
		out := make(map[string]any, len(creds))
		for k, v := range creds {
			out[k] = v
		}
		return out, nil
	}
	if e.fallback != nil {
		return e.fallback(ctx, credentialType)
	}
	return nil, errors.Wrapf(ErrCredentialsNotFound, "credential type %q", credentialType)
}

// BinaryDataBuffer decodes the binary property propertyName of the item at
// itemIndex.
func (e *Execution) BinaryDataBuffer(_ context.Context, itemIndex int, propertyName string) ([]byte, error) {
	item, err := e.item(itemIndex)
	if err != nil {
		return nil, err
	}
	data, ok := item.Binary[propertyName]
	if !ok {
		return nil, errors.Wrapf(ErrBinaryPropertyNotFound, "item %d has no binary property %q", itemIndex, propertyName)
	}
	return data.Bytes()
}

func (e *Execution) item(itemIndex int) (Item, error) {
	if itemIndex < 0 || itemIndex >= len(e.req.Items) {
		return Item{}, errors.Wrapf(ErrItemIndexOutOfRange, "item %d of %d", itemIndex, len(e.req.Items))
	}
	return e.req.Items[itemIndex], nil
}

// lookupPath walks dotted names through nested maps.
func lookupPath(params map[string]any, name string) (any, bool) {
	var current any = params
	for _, key := range strings.Split(name, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func render(name string, value any, data map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return renderString(name, v, data)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			rendered, err := render(name+"."+key, inner, data)
			if err != nil {
				return nil, err
			}
			out[key] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			rendered, err := render(name, inner, data)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return value, nil
	}
}

func renderString(name, value string, data map[string]any) (string, error) {
	if !strings.Contains(value, "{{") {
		return value, nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(value)
	if err != nil {
		return "", errors.Wrap(err, "parse expression")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "evaluate expression")
	}
	return buf.String(), nil
}
