package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/logger"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"
	correlationIDKey    = "correlationID"
)

type contextKey string

const correlationIDContextKey contextKey = "correlationID"

// CorrelationID tags every request with an id, reusing the caller's
// X-Correlation-ID when present. The id is echoed in the response and
// carried on the request context.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set(correlationIDKey, correlationID)
		c.Header(CorrelationIDHeader, correlationID)
		c.Request = c.Request.WithContext(WithCorrelationID(c.Request.Context(), correlationID))

		c.Next()
	}
}

// GetCorrelationID returns the id set by CorrelationID.
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(correlationIDKey)
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDContextKey).(string); ok {
		return id
	}
	return ""
}

// LoggerFromContext returns the global logger annotated with the request's
// correlation id, if any.
func LoggerFromContext(ctx context.Context) *zap.Logger {
	log := logger.L()
	if id := CorrelationIDFromContext(ctx); id != "" {
		return log.With(zap.String("correlation_id", id))
	}
	return log
}
