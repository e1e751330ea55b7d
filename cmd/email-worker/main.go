package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	awsclient "github.com/cyphera/emailsend/internal/client/aws"
	"github.com/cyphera/emailsend/internal/config"
	"github.com/cyphera/emailsend/internal/email"
	"github.com/cyphera/emailsend/internal/helpers"
	"github.com/cyphera/emailsend/internal/logger"
	"github.com/cyphera/emailsend/internal/queue"
	"github.com/cyphera/emailsend/internal/workflow"
)

// runLocal executes the request stored in path once and logs the result
// instead of publishing it.
func runLocal(ctx context.Context, processor *queue.Processor, path string) {
	body, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("Failed to read execution request file", zap.String("path", path), zap.Error(err))
	}

	var req workflow.ExecutionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Fatal("Failed to parse execution request file", zap.String("path", path), zap.Error(err))
	}

	result := processor.Run(ctx, "local", req)
	logger.Info("Local execution finished",
		zap.String("status", result.Status),
		zap.Int("items", len(result.Items)),
		zap.String("error", result.Error),
	)
}

func main() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v. Proceeding with environment variables/secrets.", err)
	}

	stage := os.Getenv("STAGE")
	if stage == "" {
		stage = helpers.StageLocal
		log.Printf("Warning: STAGE environment variable not set, defaulting to '%s'", stage)
	}
	if !helpers.IsValidStage(stage) {
		log.Fatalf("Invalid STAGE environment variable: '%s'. Must be one of: %s, %s, %s",
			stage, helpers.StageProd, helpers.StageDev, helpers.StageLocal)
	}

	logger.InitLogger(stage)
	logger.Info("Lambda Cold Start: Initializing email worker for stage", zap.String("stage", stage))
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()
	cfg := config.Load(stage)

	awsCfg, err := awsclient.LoadConfig(ctx)
	if err != nil {
		logger.Fatal("Failed to load AWS config", zap.Error(err))
	}

	var secrets config.SecretReader
	if os.Getenv(config.SMTPSecretArnEnvVar) != "" {
		secrets = awsclient.NewSecretsManagerClient(awsCfg)
	}

	sender := email.NewSender(logger.L(), cfg.SenderOptions()...)
	publisher := queue.NewResultPublisher(sqs.NewFromConfig(awsCfg), cfg.ResultsQueueURL, queue.DefaultRetryConfig(), logger.L())
	processor := queue.NewProcessor(sender, publisher, config.CredentialSource(secrets), logger.L())

	if path := os.Getenv("EXECUTION_REQUEST_FILE"); stage == helpers.StageLocal && path != "" {
		runLocal(ctx, processor, path)
		return
	}

	if cfg.ResultsQueueURL == "" {
		logger.Fatal("RESULTS_QUEUE_URL is required")
	}

	lambda.Start(processor.HandleSQSEvent)
}
