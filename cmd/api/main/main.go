//go:build lambda
// +build lambda

package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/config"
	"github.com/cyphera/emailsend/internal/helpers"
	"github.com/cyphera/emailsend/internal/logger"
	"github.com/cyphera/emailsend/internal/server"
)

var ginLambda *ginadapter.GinLambda

func init() {
	stage := os.Getenv("STAGE")
	if !helpers.IsValidStage(stage) {
		log.Fatalf("Invalid STAGE environment variable: '%s'. Must be one of: %s, %s, %s",
			stage, helpers.StageProd, helpers.StageDev, helpers.StageLocal)
	}

	logger.InitLogger(stage)
	logger.Info("Lambda Cold Start: Initializing email API", zap.String("stage", stage))

	deps, err := server.NewDependencies(context.Background(), config.Load(stage))
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}

	ginLambda = ginadapter.New(server.NewRouter(deps))
}

func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger.Debug("Received Lambda request",
		zap.String("path", req.Path),
		zap.String("method", req.HTTPMethod),
		zap.String("request_id", req.RequestContext.RequestID),
	)

	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	defer func() {
		_ = logger.Sync()
	}()
	lambda.Start(Handler)
}
