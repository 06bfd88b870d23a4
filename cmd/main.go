package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tesseract-Nexus/global-services/vault-service/internal/background"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/clients"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/config"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/crypto"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/events"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/handlers"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/idempotency"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/metrics"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/middleware"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/models"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/repository"
	"github.com/Tesseract-Nexus/global-services/vault-service/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg := config.NewConfig()

	// Set log level based on environment
	if cfg.Server.IsProd() {
		logger.SetLevel(logrus.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger.SetLevel(logrus.DebugLevel)
		gin.SetMode(gin.DebugMode)
	}

	log := logger.WithField("service", "vault-service")
	log.Info("starting vault service")

	// Initialize database
	db, err := initDatabase(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	// Select the master key provider
	ctx := context.Background()
	var keyProvider crypto.MasterKeyProvider
	switch cfg.Vault.MasterKeySource {
	case "gcp":
		if cfg.GCP.ProjectID == "" {
			log.Fatal("GCP_PROJECT_ID is required when MASTER_KEY_SOURCE=gcp")
		}
		gcpClient, err := clients.NewGCPSecretManagerClient(ctx, cfg.GCP.ProjectID, log)
		if err != nil {
			log.WithError(err).Fatal("failed to create GCP Secret Manager client")
		}
		defer gcpClient.Close()
		keyProvider = crypto.NewGCPMasterKeyProvider(gcpClient, cfg.Vault.MasterKeySecretName)
	case "env":
		keyProvider = crypto.NewEnvMasterKeyProvider(cfg.Vault.MasterKeyEnvVar)
	default:
		log.WithField("source", cfg.Vault.MasterKeySource).Fatal("unknown master key source")
	}

	// Fail fast when the master key is unreachable
	if _, err := keyProvider.MasterKey(ctx); err != nil {
		log.WithError(err).Fatal("master key is not available")
	}
	keySvc := crypto.NewKeyService(keyProvider)

	// Optional Redis cache for idempotent responses
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unavailable, idempotency cache disabled")
			redisClient = nil
		}
	}

	// Optional NATS event publisher; nil degrades to log-only operation
	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		publisher, err = events.NewPublisher(cfg.NATS.URL, log)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable, events disabled")
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	// Initialize repositories
	tenantRepo := repository.NewTenantRepository(db)
	agentRepo := repository.NewAgentRepository(db)
	secretRepo := repository.NewSecretRepository(db)
	leaseRepo := repository.NewLeaseRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	collector := metrics.NewCollector()
	idemStore := idempotency.NewStore(db, redisClient, collector, log, cfg.Vault.IdempotencyCacheTTL)

	// Initialize services
	tenantService := services.NewTenantService(tenantRepo, agentRepo, auditRepo, keySvc, publisher, log)
	secretService := services.NewSecretService(secretRepo, leaseRepo, tenantRepo, auditRepo, keySvc, publisher, collector, log)
	leaseService := services.NewLeaseService(leaseRepo, secretRepo, agentRepo, auditRepo, publisher, collector, log)
	requestService := services.NewRequestService(requestRepo, secretRepo, auditRepo, publisher, collector, log, cfg.Vault.FulfillmentBaseURL)

	// Initialize handlers
	tenantHandler := handlers.NewTenantHandler(tenantService, log)
	secretHandler := handlers.NewSecretHandler(secretService, log)
	leaseHandler := handlers.NewLeaseHandler(leaseService, log)
	requestHandler := handlers.NewRequestHandler(requestService, log)
	auditHandler := handlers.NewAuditHandler(auditRepo, log)
	healthHandler := handlers.NewHealthHandler(db, keyProvider)

	// Start the idempotency sweeper
	runner := background.NewRunner(idemStore, cfg.Vault.SweepInterval, cfg.Vault.IdempotencyRetention, log)
	runner.Start()

	// Setup router
	router := setupRouter(idemStore, tenantHandler, secretHandler, leaseHandler, requestHandler, auditHandler, healthHandler, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	runner.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	log.Info("server stopped")
}

func initDatabase(cfg *config.Config, log *logrus.Entry) (*gorm.DB, error) {
	// Configure GORM logger
	var gormLog gormlogger.Interface
	if cfg.Server.IsProd() {
		gormLog = gormlogger.Default.LogMode(gormlogger.Silent)
	} else {
		gormLog = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("database connection established")
	return db, nil
}

func runMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.Agent{},
		&models.Secret{},
		&models.Lease{},
		&models.SecretRequest{},
		&models.IdempotencyRecord{},
		&models.VaultAuditLog{},
	)
}

func setupRouter(
	idemStore *idempotency.Store,
	tenantHandler *handlers.TenantHandler,
	secretHandler *handlers.SecretHandler,
	leaseHandler *handlers.LeaseHandler,
	requestHandler *handlers.RequestHandler,
	auditHandler *handlers.AuditHandler,
	healthHandler *handlers.HealthHandler,
	log *logrus.Entry,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Tenant-ID", "X-Actor-ID", "X-Actor-Role", "X-Request-ID", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "X-Idempotent-Replay"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Health endpoints (no auth)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Tenant onboarding sits outside caller identity; it is reached by the
	// platform control plane, not tenant callers
	router.POST("/api/v1/tenants", tenantHandler.CreateTenant)

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(middleware.CallerIdentity())
	v1.Use(middleware.Idempotent(idemStore, log))
	{
		v1.GET("/tenants/:id", tenantHandler.GetTenant)

		agents := v1.Group("/agents")
		{
			agents.POST("", tenantHandler.RegisterAgent)
			agents.GET("/:id", tenantHandler.GetAgent)
			agents.PUT("/:id/key", tenantHandler.RotateAgentKey)
		}

		secrets := v1.Group("/secrets")
		{
			secrets.POST("", secretHandler.CreateSecret)
			secrets.POST("/search", secretHandler.SearchSecrets)
			secrets.GET("/:id", secretHandler.GetSecret)
			secrets.PATCH("/:id", secretHandler.UpdateSecret)
			secrets.DELETE("/:id", secretHandler.DeleteSecret)

			secrets.POST("/:id/leases", leaseHandler.CreateLease)
			secrets.GET("/:id/leases", leaseHandler.ListLeases)
			secrets.DELETE("/:id/leases/:agent_id", leaseHandler.RevokeLeases)
			secrets.GET("/:id/lease", leaseHandler.ResolveLease)
		}

		v1.GET("/audit", auditHandler.ListAuditLogs)

		requests := v1.Group("/requests")
		{
			requests.POST("", requestHandler.CreateRequest)
			requests.GET("", requestHandler.ListRequests)
			requests.GET("/:id", requestHandler.GetRequest)
			requests.PUT("/:id/status", requestHandler.DecideRequest)
			requests.POST("/:id/abandon", requestHandler.AbandonRequest)
		}
	}

	return router
}
