package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/middleware"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// sendError logs err against the request and writes a JSON error response.
func sendError(c *gin.Context, statusCode int, message string, err error) {
	middleware.LoggerFromContext(c.Request.Context()).Error(message,
		zap.Error(err),
		zap.Int("status", statusCode),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)
	c.JSON(statusCode, ErrorResponse{Error: message})
}

func sendErrorWithDetails(c *gin.Context, statusCode int, message string, details any, err error) {
	middleware.LoggerFromContext(c.Request.Context()).Error(message,
		zap.Error(err),
		zap.Int("status", statusCode),
		zap.String("path", c.Request.URL.Path),
	)
	c.JSON(statusCode, ErrorResponse{Error: message, Details: details})
}

// sendList writes items in the list envelope.
func sendList(c *gin.Context, items any) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   items,
	})
}
