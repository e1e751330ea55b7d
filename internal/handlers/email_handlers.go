package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/email"
	"github.com/cyphera/emailsend/internal/middleware"
	"github.com/cyphera/emailsend/internal/workflow"
)

// NodeExecutor runs a node over one execution.
type NodeExecutor interface {
	Execute(ctx context.Context, exec workflow.ExecuteContext) ([]workflow.Item, error)
}

// EmailHandler exposes the send email node over HTTP.
type EmailHandler struct {
	executor    NodeExecutor
	credentials workflow.CredentialSource
}

// NewEmailHandler creates an EmailHandler. credentials is consulted when a
// request carries no credentials of its own and may be nil.
func NewEmailHandler(executor NodeExecutor, credentials workflow.CredentialSource) *EmailHandler {
	return &EmailHandler{executor: executor, credentials: credentials}
}

// Send runs the node over the request's items and returns one output item
// per consumed input item.
func (h *EmailHandler) Send(c *gin.Context) {
	var req workflow.ExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var opts []workflow.ExecutionOption
	if h.credentials != nil {
		opts = append(opts, workflow.WithCredentialSource(h.credentials))
	}
	exec := workflow.NewExecution(req, opts...)

	items, err := h.executor.Execute(c.Request.Context(), exec)
	if err != nil {
		h.handleExecutionError(c, err)
		return
	}

	middleware.LoggerFromContext(c.Request.Context()).Info("Email node executed",
		zap.Int("input_items", len(req.Items)),
		zap.Int("output_items", len(items)),
	)
	sendList(c, items)
}

func (h *EmailHandler) handleExecutionError(c *gin.Context, err error) {
	var (
		paramErr *email.ParameterError
		apiErr   *email.NodeAPIError
	)
	switch {
	case errors.As(err, &paramErr):
		sendErrorWithDetails(c, http.StatusBadRequest, paramErr.Error(), gin.H{
			"itemIndex": paramErr.ItemIndex,
			"parameter": paramErr.Parameter,
		}, err)
	case errors.As(err, &apiErr):
		sendErrorWithDetails(c, http.StatusBadGateway, "Email delivery failed", apiErr, err)
	case errors.Is(err, workflow.ErrCredentialsNotFound):
		sendError(c, http.StatusBadRequest, "SMTP credentials are required", err)
	case errors.Is(err, email.ErrInvalidCredentials):
		sendError(c, http.StatusBadRequest, err.Error(), err)
	default:
		sendError(c, http.StatusInternalServerError, "Failed to send email", err)
	}
}
