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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kingrain94/tenant-platform/internal/auth"
	"github.com/kingrain94/tenant-platform/internal/authz"
	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/gateway"
	"github.com/kingrain94/tenant-platform/internal/repository/cache"
	"github.com/kingrain94/tenant-platform/internal/repository/postgres"
	"github.com/kingrain94/tenant-platform/internal/service"
	"github.com/kingrain94/tenant-platform/internal/service/queue"
	"github.com/kingrain94/tenant-platform/internal/tenancy"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

const auditBufferSize = 4096

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	appLogger := logger.NewServiceLogger(os.Getenv("APP_ENV"), "gateway")

	cfg, err := config.Load()
	if err != nil {
		appLogger.Fatal("Failed to load config", err)
	}
	gwConfig, err := config.DefaultGatewayConfig()
	if err != nil {
		appLogger.Fatal("Failed to load gateway config", err)
	}

	dbConnections, err := config.NewDatabaseConnections()
	if err != nil {
		appLogger.Fatal("Failed to connect to database", err)
	}
	defer dbConnections.Close()

	redisClient, err := config.DefaultRedisConfig().GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()

	sqsConfig := config.DefaultSQSConfig()
	sqsClient, err := sqsConfig.GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to SQS", err)
	}
	recorder := service.NewAsyncRecorder(service.NewQueueSink(queue.NewSQSService(sqsClient, sqsConfig)), auditBufferSize, appLogger)
	recorder.Start()

	pgRepo := postgres.NewPostgresRepository(dbConnections)
	directory := cache.NewTenantRepository(pgRepo.Tenant(), redisClient, cfg.DirectoryCacheTTL, appLogger)
	resolver := tenancy.NewResolver(directory, cfg.BaseDomain, cfg.DirectoryLookupTimeout)
	tokens := auth.NewTokenService(cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
		auth.NewRedisBlacklist(redisClient, cfg.BlacklistTimeout))
	engine := authz.NewEngine(pgRepo.Role(), pgRepo.Override())

	routes, err := gateway.NewRouteTable(gwConfig.Routes, gwConfig.DefaultTimeout)
	if err != nil {
		appLogger.Fatal("Invalid route table", err)
	}

	metrics := gateway.NewMetrics(prometheus.DefaultRegisterer)
	monitor := gateway.NewMonitor(routes.Backends(), gateway.NewHTTPProber(gwConfig.ProbeTimeout), gateway.MonitorConfig{
		Interval:       gwConfig.ProbeInterval,
		Timeout:        gwConfig.ProbeTimeout,
		UnhealthyAfter: gwConfig.UnhealthyThreshold,
		HealthyAfter:   gwConfig.HealthyThreshold,
	}, appLogger, metrics)
	monitor.Start()

	router := gateway.NewRouter(routes, resolver, tokens, engine, monitor, appLogger,
		gateway.WithAuditor(recorder),
		gateway.WithMetrics(metrics),
	)

	engineHTTP := gin.New()
	engineHTTP.Use(gin.Recovery())
	engineHTTP.GET("/health", gateway.HealthHandler(monitor))
	engineHTTP.GET("/metrics", gateway.MetricsHandler(prometheus.DefaultGatherer))
	router.Register(engineHTTP)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", gwConfig.Port),
		Handler: engineHTTP,
	}

	go func() {
		appLogger.Infof("Gateway listening on :%d with %d backends", gwConfig.Port, len(routes.Backends()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start gateway", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Gateway forced to shutdown", err)
	}

	monitor.Stop()
	recorder.Stop()

	appLogger.Info("Gateway exiting")
	appLogger.Sync()
}
