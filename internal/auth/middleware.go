package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/logger"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests whose X-API-Key header does not match one of
// keys. With no keys configured every request is rejected, so the server's
// default SMTP credentials are never reachable anonymously.
func RequireAPIKey(keys []string) gin.HandlerFunc {
	accepted := make([][]byte, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			accepted = append(accepted, []byte(key))
		}
	}
	if len(accepted) == 0 {
		logger.L().Warn("No API keys configured, every authenticated route will return 401")
	}

	return func(c *gin.Context) {
		apiKey := c.GetHeader(APIKeyHeader)
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No authentication provided"})
			c.Abort()
			return
		}

		if !matches(accepted, []byte(apiKey)) {
			logger.L().Warn("Invalid API key",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}

		c.Set("authType", "api_key")
		c.Next()
	}
}

func matches(accepted [][]byte, candidate []byte) bool {
	found := 0
	for _, key := range accepted {
		found |= subtle.ConstantTimeCompare(key, candidate)
	}
	return found == 1
}
