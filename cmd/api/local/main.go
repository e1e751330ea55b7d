//go:build !lambda
// +build !lambda

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cyphera/emailsend/internal/config"
	"github.com/cyphera/emailsend/internal/helpers"
	"github.com/cyphera/emailsend/internal/logger"
	"github.com/cyphera/emailsend/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// The .env file is optional; variables may be set directly.
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	stage := helpers.GetEnvWithDefault("STAGE", helpers.StageLocal)
	if !helpers.IsValidStage(stage) {
		log.Fatalf("Invalid STAGE environment variable: '%s'. Must be one of: %s, %s, %s",
			stage, helpers.StageProd, helpers.StageDev, helpers.StageLocal)
	}

	logger.InitLogger(stage)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(stage)
	deps, err := server.NewDependencies(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 20 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("stage", stage))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	// sends already issued keep running past request cancellation, so allow
	// them a full send timeout to settle
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.SendTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Server exiting")
}
