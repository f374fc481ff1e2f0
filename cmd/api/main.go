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
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kingrain94/tenant-platform/docs"
	"github.com/kingrain94/tenant-platform/internal/api"
	"github.com/kingrain94/tenant-platform/internal/auth"
	"github.com/kingrain94/tenant-platform/internal/authz"
	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/gateway"
	"github.com/kingrain94/tenant-platform/internal/middleware"
	"github.com/kingrain94/tenant-platform/internal/provisioning"
	"github.com/kingrain94/tenant-platform/internal/repository/cache"
	"github.com/kingrain94/tenant-platform/internal/repository/composite"
	"github.com/kingrain94/tenant-platform/internal/service"
	"github.com/kingrain94/tenant-platform/internal/service/pubsub"
	"github.com/kingrain94/tenant-platform/internal/service/queue"
	"github.com/kingrain94/tenant-platform/internal/tenancy"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

const auditBufferSize = 1024

// @title           Tenant Platform API
// @version         1.0
// @description     Tenant directory, provisioning, authentication and authorization for the multi-tenant platform.

// @host      localhost:10000
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @externalDocs.description  OpenAPI
// @externalDocs.url          https://swagger.io/resources/open-api/
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	appLogger := logger.NewServiceLogger(os.Getenv("APP_ENV"), "tenant-api")

	cfg, err := config.Load()
	if err != nil {
		appLogger.Fatal("Failed to load config", err)
	}

	dbConnections, err := config.NewDatabaseConnections()
	if err != nil {
		appLogger.Fatal("Failed to connect to database", err)
	}
	defer dbConnections.Close()

	appLogger.Info("Database connections established - writer and reader connected")

	// Schema DDL runs on its own pgx pool, one connection per tenant lock
	pool, err := config.DefaultPgxConfig().GetPool(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create provisioning pool", err)
	}
	defer pool.Close()

	// Initialize OpenSearch
	osConfig := config.DefaultOpenSearchConfig()
	osClient, err := osConfig.GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to OpenSearch", err)
	}

	// Initialize Redis
	redisClient, err := config.DefaultRedisConfig().GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to Redis", err)
	}
	defer redisClient.Close()

	redisPubSub := pubsub.NewRedisPubSub(redisClient, appLogger)

	// Initialize SQS
	sqsConfig := config.DefaultSQSConfig()
	sqsClient, err := sqsConfig.GetClient()
	if err != nil {
		appLogger.Fatal("Failed to connect to SQS", err)
	}
	sqsService := queue.NewSQSService(sqsClient, sqsConfig)

	repo := composite.NewCompositeRepository(dbConnections, osClient, osConfig)
	directory := cache.NewTenantRepository(repo.Tenant(), redisClient, cfg.DirectoryCacheTTL, appLogger)

	// Audit events are written off the request path
	auditService := service.NewAuditService(repo, sqsService, appLogger)
	auditService.SetPublisher(redisPubSub)
	recorder := service.NewAsyncRecorder(auditService, auditBufferSize, appLogger)
	recorder.Start()

	provisioner := provisioning.NewProvisioner(
		provisioning.NewPostgresStore(pool),
		directory,
		repo.Registry(),
		appLogger,
		provisioning.WithAuditor(recorder),
		provisioning.WithMetrics(provisioning.NewMetrics(prometheus.DefaultRegisterer)),
		provisioning.WithRetryPolicy(provisioning.RetryPolicy{
			MaxAttempts: cfg.ProvisionMaxAttempts,
			BaseBackoff: cfg.ProvisionBaseBackoff,
			MaxBackoff:  cfg.ProvisionMaxBackoff,
		}),
	)

	tokens := auth.NewTokenService(cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
		auth.NewRedisBlacklist(redisClient, cfg.BlacklistTimeout))
	guard := auth.NewLoginGuard(redisClient, cfg.LoginMaxFailures, cfg.LoginFailureWindow, cfg.LoginLockout)
	engine := authz.NewEngine(repo.Role(), repo.Override())
	resolver := tenancy.NewResolver(directory, cfg.BaseDomain, cfg.DirectoryLookupTimeout)

	// Initialize services
	tenantService := service.NewTenantService(directory, provisioner, sqsService, recorder, appLogger, cfg.DefaultRateLimit)
	authService := service.NewAuthService(repo.Principal(), repo.Role(), tokens, guard, recorder, appLogger)
	accessService := service.NewAccessService(directory, repo.Principal(), repo.Role(), repo.Override(), recorder)

	server := api.NewServer(
		api.Services{
			Tenants:    tenantService,
			Auth:       authService,
			Access:     accessService,
			Audit:      auditService,
			Authorizer: engine,
			Auditor:    recorder,
			Stream:     redisPubSub,
		},
		api.Middleware{
			Auth:            middleware.NewAuthMiddleware(tokens, engine, recorder),
			Tenancy:         middleware.NewTenantMiddleware(resolver, recorder),
			RateLimit:       middleware.NewRateLimitMiddleware(redisClient, directory, cfg, appLogger),
			Validation:      middleware.NewValidationMiddleware(appLogger),
			GlobalRateLimit: cfg.GlobalRateLimit,
		},
		appLogger,
	)

	server.StartWebSocketHub()

	router := gin.Default()

	// Swagger documentation endpoint
	docs.SwaggerInfo.Title = "Tenant Platform API"
	docs.SwaggerInfo.Description = "Tenant directory, provisioning, authentication and authorization"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", cfg.ServerPort)
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http"}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", api.HealthHandler(
		api.HealthCheck{Name: "postgres", Ping: func(ctx context.Context) error {
			sqlDB, err := dbConnections.Writer.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		api.HealthCheck{Name: "redis", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
		api.HealthCheck{Name: "opensearch", Ping: func(ctx context.Context) error {
			res, err := opensearchapi.PingRequest{}.Do(ctx, osClient)
			if err != nil {
				return err
			}
			defer res.Body.Close()
			if res.IsError() {
				return fmt.Errorf("opensearch ping: %s", res.Status())
			}
			return nil
		}},
	))
	router.GET("/metrics", gateway.MetricsHandler(prometheus.DefaultGatherer))

	apiGroup := router.Group("/api/v1")
	server.SetupRoutes(apiGroup)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", err)
	}

	server.StopWebSocketHub()
	recorder.Stop()

	appLogger.Info("Server exiting")
	appLogger.Sync()
}
