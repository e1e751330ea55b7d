package email

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/textproto"

	"github.com/pkg/errors"
)

// NodeAPIError is the terminal error raised when a delivery fails and the
// host does not continue on failure. It carries only text and codes, never
// the underlying error, so certificates attached to TLS verification errors
// are not propagated.
type NodeAPIError struct {
	ItemIndex   int    `json:"itemIndex"`
	Message     string `json:"message"`
	Code        int    `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (e *NodeAPIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("item %d: %s (smtp %d)", e.ItemIndex, e.Message, e.Code)
	}
	return fmt.Sprintf("item %d: %s", e.ItemIndex, e.Message)
}

func newNodeAPIError(itemIndex int, err error) *NodeAPIError {
	apiErr := &NodeAPIError{
		ItemIndex: itemIndex,
		Message:   err.Error(),
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		apiErr.Code = protoErr.Code
		apiErr.Message = protoErr.Msg
	}
	if isCertificateError(err) {
		apiErr.Description = "TLS certificate verification failed; set allowUnauthorizedCerts to accept it"
	}
	return apiErr
}

func isCertificateError(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		invalid          x509.CertificateInvalidError
		verification     *tls.CertificateVerificationError
	)
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalid) ||
		errors.As(err, &verification)
}
