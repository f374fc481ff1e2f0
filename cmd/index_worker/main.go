// Command index_worker drains the index queue: every audit event batch is
// stored in PostgreSQL and then indexed into OpenSearch.
package main

import (
	"fmt"
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
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	appLogger := logger.NewServiceLogger(os.Getenv("APP_ENV"), "index-worker")
	defer appLogger.Sync()

	if err := run(appLogger); err != nil {
		appLogger.Fatal("Index worker failed", err)
	}
}

func run(appLogger *logger.Logger) error {
	dbConnections, err := config.NewDatabaseConnections()
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	defer dbConnections.Close()

	osConfig := config.DefaultOpenSearchConfig()
	osClient, err := osConfig.GetClient()
	if err != nil {
		return fmt.Errorf("connect to OpenSearch: %w", err)
	}
	repo := composite.NewCompositeRepository(dbConnections, osClient, osConfig)

	sqsConfig := config.DefaultSQSConfig()
	sqsClient, err := sqsConfig.GetClient()
	if err != nil {
		return fmt.Errorf("create SQS client: %w", err)
	}

	w := worker.NewIndexWorker(
		queue.NewSQSService(sqsClient, sqsConfig),
		repo.AuditEvent(),
		repo.OpenSearch(),
		appLogger,
		config.DefaultWorkerConfig("index", time.Minute),
	)
	w.Start()
	appLogger.Infof("Index worker consuming %s", sqsConfig.IndexQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	appLogger.Infof("Received %s, draining index worker", sig)
	w.Stop()
	return nil
}
