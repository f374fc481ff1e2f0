package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/repository/composite"
	"github.com/kingrain94/tenant-platform/internal/service/queue"
	"github.com/kingrain94/tenant-platform/internal/worker"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	appLogger := logger.NewServiceLogger(os.Getenv("APP_ENV"), "archive-worker")

	dbConnections, err := config.NewDatabaseConnections()
	if err != nil {
		appLogger.Fatal("Failed to connect to PostgreSQL", err)
	}
	defer dbConnections.Close()

	osConfig := config.DefaultOpenSearchConfig()
	osClient, err := osConfig.GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to OpenSearch", err)
	}
	repo := composite.NewCompositeRepository(dbConnections, osClient, osConfig)

	s3Config := config.DefaultS3Config()
	s3Client, err := s3Config.GetClient(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create S3 client", err)
	}

	sqsConfig := config.DefaultSQSConfig()
	sqsClient, err := sqsConfig.GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to SQS", err)
	}
	sqsService := queue.NewSQSService(sqsClient, sqsConfig)

	archiveWorker := worker.NewArchiveWorker(
		sqsService,
		repo.AuditEvent(),
		repo.OpenSearch(),
		s3Client,
		s3Config,
		appLogger,
		config.DefaultWorkerConfig("archive", 5*time.Minute),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	archiveWorker.Start()
	appLogger.Info("Archive worker started")

	<-sigChan
	appLogger.Info("Shutting down archive worker...")

	archiveWorker.Stop()
	appLogger.Info("Archive worker stopped")
	appLogger.Sync()
}
