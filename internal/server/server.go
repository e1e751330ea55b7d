package server

import (
	"context"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/auth"
	awsclient "github.com/cyphera/emailsend/internal/client/aws"
	"github.com/cyphera/emailsend/internal/config"
	"github.com/cyphera/emailsend/internal/email"
	"github.com/cyphera/emailsend/internal/handlers"
	"github.com/cyphera/emailsend/internal/helpers"
	"github.com/cyphera/emailsend/internal/logger"
	"github.com/cyphera/emailsend/internal/middleware"
	"github.com/cyphera/emailsend/internal/workflow"
)

// Dependencies are the collaborators the routes are built from.
type Dependencies struct {
	Executor    handlers.NodeExecutor
	Credentials workflow.CredentialSource
	APIKeys     []string
	RateLimiter *middleware.RateLimiter
	Development bool
}

// NewDependencies wires the sender, default credentials and API keys from
// cfg. The Secrets Manager client is only created when a secret ARN is set.
func NewDependencies(ctx context.Context, cfg config.Config) (Dependencies, error) {
	var (
		secrets   config.SecretReader
		keyReader config.SecretStringReader
	)
	if os.Getenv(config.SMTPSecretArnEnvVar) != "" || os.Getenv(config.APIKeySecretArnEnvVar) != "" {
		awsCfg, err := awsclient.LoadConfig(ctx)
		if err != nil {
			return Dependencies{}, err
		}
		client := awsclient.NewSecretsManagerClient(awsCfg)
		secrets, keyReader = client, client
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	rateLimiter.StartCleanup(ctx)

	return Dependencies{
		Executor:    email.NewSender(logger.L(), cfg.SenderOptions()...),
		Credentials: config.CredentialSource(secrets),
		APIKeys:     config.LoadAPIKeys(ctx, keyReader),
		RateLimiter: rateLimiter,
		Development: cfg.Stage != helpers.StageProd,
	}, nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	configureTrustedProxies(router)
	router.Use(gin.Recovery())
	InitializeRoutes(router, deps)
	return router
}

func InitializeRoutes(router *gin.Engine, deps Dependencies) {
	router.Use(configureCORS())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogging(deps.Development))
	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Middleware())
	}

	router.GET("/health", handlers.NewHealthHandler().Health)

	emailHandler := handlers.NewEmailHandler(deps.Executor, deps.Credentials)

	v1 := router.Group("/api/v1", auth.RequireAPIKey(deps.APIKeys))
	{
		v1.POST("/email/send", emailHandler.Send)
	}

	logger.L().Debug("Routes initialized", zap.Int("count", len(router.Routes())))
}

// configureTrustedProxies limits which peers may set X-Forwarded-For. With
// TRUSTED_PROXIES unset no peer is trusted and the client IP is the remote
// address.
func configureTrustedProxies(router *gin.Engine) {
	proxies := helpers.SplitAndTrim(os.Getenv("TRUSTED_PROXIES"))
	if err := router.SetTrustedProxies(proxies); err != nil {
		logger.L().Error("Invalid TRUSTED_PROXIES, trusting no proxies", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.TrustedPlatform = os.Getenv("TRUSTED_PLATFORM_HEADER")
}

// configureCORS returns a configured CORS middleware
func configureCORS() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	if origins := helpers.SplitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	if methods := helpers.SplitAndTrim(os.Getenv("CORS_ALLOWED_METHODS")); len(methods) > 0 {
		corsConfig.AllowMethods = methods
	}

	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", auth.APIKeyHeader, middleware.CorrelationIDHeader}
	if headers := helpers.SplitAndTrim(os.Getenv("CORS_ALLOWED_HEADERS")); len(headers) > 0 {
		corsConfig.AllowHeaders = headers
	}

	corsConfig.ExposeHeaders = []string{middleware.CorrelationIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}
	if exposed := helpers.SplitAndTrim(os.Getenv("CORS_EXPOSED_HEADERS")); len(exposed) > 0 {
		corsConfig.ExposeHeaders = exposed
	}

	corsConfig.AllowCredentials = os.Getenv("CORS_ALLOW_CREDENTIALS") == "true"

	return cors.New(corsConfig)
}
