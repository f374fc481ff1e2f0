package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/provisioning"
	"github.com/kingrain94/tenant-platform/internal/repository/cache"
	"github.com/kingrain94/tenant-platform/internal/repository/postgres"
	"github.com/kingrain94/tenant-platform/internal/service"
	"github.com/kingrain94/tenant-platform/internal/service/queue"
	"github.com/kingrain94/tenant-platform/internal/worker"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	appLogger := logger.NewServiceLogger(os.Getenv("APP_ENV"), "provision-worker")

	cfg, err := config.Load()
	if err != nil {
		appLogger.Fatal("Failed to load config", err)
	}

	dbConnections, err := config.NewDatabaseConnections()
	if err != nil {
		appLogger.Fatal("Failed to connect to PostgreSQL", err)
	}
	defer dbConnections.Close()

	pool, err := config.DefaultPgxConfig().GetPool(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create provisioning pool", err)
	}
	defer pool.Close()

	redisClient, err := config.DefaultRedisConfig().GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()

	// Initialize SQS
	sqsConfig := config.DefaultSQSConfig()
	sqsClient, err := sqsConfig.GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to SQS", err)
	}
	sqsService := queue.NewSQSService(sqsClient, sqsConfig)

	recorder := service.NewAsyncRecorder(service.NewQueueSink(sqsService), 256, appLogger)
	recorder.Start()

	pgRepo := postgres.NewPostgresRepository(dbConnections)
	// status changes go through the cache so resolvers see activation at once
	tenants := cache.NewTenantRepository(pgRepo.Tenant(), redisClient, cfg.DirectoryCacheTTL, appLogger)

	provisioner := provisioning.NewProvisioner(
		provisioning.NewPostgresStore(pool),
		tenants,
		pgRepo.Registry(),
		appLogger,
		provisioning.WithAuditor(recorder),
		provisioning.WithMetrics(provisioning.NewMetrics(prometheus.DefaultRegisterer)),
		provisioning.WithRetryPolicy(provisioning.RetryPolicy{
			MaxAttempts: cfg.ProvisionMaxAttempts,
			BaseBackoff: cfg.ProvisionBaseBackoff,
			MaxBackoff:  cfg.ProvisionMaxBackoff,
		}),
	)

	provisionWorker := worker.NewProvisionWorker(
		sqsService,
		tenants,
		provisioner,
		appLogger,
		config.DefaultWorkerConfig("provision", 10*time.Minute),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	provisionWorker.Start()

	<-sigChan
	appLogger.Info("Shutting down provision worker...")

	provisionWorker.Stop()
	recorder.Stop()
	appLogger.Info("Provision worker stopped")
	appLogger.Sync()
}
