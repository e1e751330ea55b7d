package workflow

import (
	"context"
	"encoding/base64"

	"github.com/pkg/errors"
)

// Item is one record flowing between workflow nodes.
type Item struct {
	JSON       map[string]any        `json:"json"`
	Binary     map[string]BinaryData `json:"binary,omitempty"`
	PairedItem *PairedItem           `json:"pairedItem,omitempty"`
}

// BinaryData is a binary property attached to an item. Data is base64 encoded.
type BinaryData struct {
	Data          string `json:"data"`
	MimeType      string `json:"mimeType,omitempty"`
	FileName      string `json:"fileName,omitempty"`
	FileExtension string `json:"fileExtension,omitempty"`
}

// PairedItem points an output record back at the input item that produced it.
type PairedItem struct {
	Item int `json:"item"`
}

// Bytes decodes the binary payload.
func (b BinaryData) Bytes() ([]byte, error) {
	content, err := base64.StdEncoding.DecodeString(b.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode binary data")
	}
	return content, nil
}

// HasBinary reports whether the item carries any binary properties.
func (i Item) HasBinary() bool {
	return len(i.Binary) > 0
}

// NewOutputItem builds an output record paired to itemIndex.
func NewOutputItem(json map[string]any, itemIndex int) Item {
	return Item{
		JSON:       json,
		PairedItem: &PairedItem{Item: itemIndex},
	}
}

// NewErrorItem builds the error-tagged record emitted under continue-on-fail.
func NewErrorItem(err error, itemIndex int) Item {
	return NewOutputItem(map[string]any{"error": err.Error()}, itemIndex)
}

// ExecuteContext is the view of the host engine a node gets for one execution.
type ExecuteContext interface {
	// InputData returns the items the node was invoked with.
	InputData() []Item
	// NodeParameter resolves a parameter for the item at itemIndex. Dotted
	// names address nested values. fallback is returned when the parameter is
	// not set.
	NodeParameter(name string, itemIndex int, fallback any) (any, error)
	// Credentials returns the resolved credential object of the given type.
	Credentials(ctx context.Context, credentialType string) (map[string]any, error)
	// BinaryDataBuffer returns the raw bytes of a binary property.
	BinaryDataBuffer(ctx context.Context, itemIndex int, propertyName string) ([]byte, error)
	// ContinueOnFail reports the host's failure policy.
	ContinueOnFail() bool
}
