package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/logger"
)

const (
	redacted      = "[REDACTED]"
	omittedBinary = "[OMITTED]"
	maxLoggedBody = 64 << 10
)

var sensitiveHeaders = map[string]bool{
	"Authorization": true,
	"X-Api-Key":     true,
	"Cookie":        true,
}

// sensitiveFields are credential fields masked in logged request bodies.
var sensitiveFields = map[string]bool{
	"password": true,
	"apiKey":   true,
	"user":     true,
}

// RequestLogging logs every completed request. In development it also logs
// headers and up to 64 KiB of the JSON request body, with credentials masked
// and binary payloads omitted.
func RequestLogging(isDevelopment bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log := logger.L().With(zap.String("correlation_id", GetCorrelationID(c)))

		if isDevelopment && c.Request.Body != nil {
			body, truncated, err := peekBody(c.Request)
			if err != nil {
				log.Warn("Failed to read request body for logging", zap.Error(err))
			}

			headers := make(map[string]string, len(c.Request.Header))
			for key, values := range c.Request.Header {
				if sensitiveHeaders[key] {
					headers[key] = redacted
					continue
				}
				headers[key] = values[0]
			}

			// truncated bodies are not valid JSON and are only sized
			var payload any
			if !truncated && len(body) > 0 {
				var decoded any
				if json.Unmarshal(body, &decoded) == nil {
					payload = redact(decoded)
				}
			}
			log.Debug("Detailed request",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("headers", headers),
				zap.Any("body", payload),
				zap.Int("logged_body_size", len(body)),
				zap.Bool("body_truncated", truncated),
			)
		}

		c.Next()

		log.Info("Request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		)
		for _, err := range c.Errors {
			log.Error("Request error", zap.Error(err.Err))
		}
	}
}

type replayBody struct {
	io.Reader
	io.Closer
}

// peekBody reads at most maxLoggedBody bytes and puts them back in front of
// the unread remainder, so handlers still see the whole body.
func peekBody(req *http.Request) ([]byte, bool, error) {
	original := req.Body
	prefix, err := io.ReadAll(io.LimitReader(original, maxLoggedBody+1))
	req.Body = replayBody{
		Reader: io.MultiReader(bytes.NewReader(prefix), original),
		Closer: original,
	}
	if len(prefix) > maxLoggedBody {
		return prefix[:maxLoggedBody], true, err
	}
	return prefix, false, err
}

// redact masks credential fields and drops base64 payloads of item binaries.
func redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, inner := range t {
			switch {
			case sensitiveFields[key]:
				out[key] = redacted
			case key == "binary":
				out[key] = omitBinaryData(inner)
			default:
				out[key] = redact(inner)
			}
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = redact(inner)
		}
		return out
	default:
		return v
	}
}

func omitBinaryData(v any) any {
	properties, ok := v.(map[string]any)
	if !ok {
		return redact(v)
	}
	out := make(map[string]any, len(properties))
	for name, prop := range properties {
		fields, ok := prop.(map[string]any)
		if !ok {
			out[name] = omittedBinary
			continue
		}
		copied := make(map[string]any, len(fields))
		for key, value := range fields {
			if key == "data" {
				copied[key] = omittedBinary
				continue
			}
			copied[key] = value
		}
		out[name] = copied
	}
	return out
}
