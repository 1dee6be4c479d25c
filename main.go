package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/autofix-app/autofix-api/config"
	"github.com/autofix-app/autofix-api/controllers"
	"github.com/autofix-app/autofix-api/middleware"
	"github.com/autofix-app/autofix-api/models"
	"github.com/autofix-app/autofix-api/services"
	"github.com/autofix-app/autofix-api/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	moderationScope = "moderate:reviews"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.InitLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting AutoFix API server...", zap.String("env", cfg.GoEnv))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database models
	if err := config.GetDB().AutoMigrate(models.All()...); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migration completed successfully")

	initServices(ctx, cfg, logger)
	defer func() {
		if err := services.GetEventPublisher().Close(); err != nil {
			logger.Warn("Failed to close event publisher", zap.Error(err))
		}
	}()

	router := setupRouter(cfg, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server is running", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

// initServices wires the storage, LLM, cache and event backends chosen by cfg
func initServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	if cfg.UsesS3() {
		s3Service, err := services.InitS3Service(ctx, cfg)
		if err != nil {
			logger.Fatal("Failed to initialize S3 service", zap.Error(err))
		}
		services.InitImageService(s3Service)
		logger.Info("Workshop photos stored in S3", zap.String("bucket", cfg.AWSS3Bucket))
	} else {
		services.InitLocalImageService(utils.UploadDir)
		logger.Info("Workshop photos stored on local disk", zap.String("dir", utils.UploadDir))
	}

	services.SetLLMService(newLLMService(cfg, logger))

	if cfg.RedisURL != "" {
		client, err := services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, search results will not be cached", zap.Error(err))
		} else {
			ttl := time.Duration(cfg.SearchCacheTTL) * time.Second
			services.SetWorkshopCache(services.NewRedisWorkshopCache(client, ttl))
		}
	}

	services.InitEventPublisher(cfg.KafkaBrokers, cfg.KafkaNotifTopic)
	if len(cfg.KafkaBrokers) > 0 {
		logger.Info("Publishing notifications to Kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaNotifTopic))
	}
}

// newLLMService returns nil without an API key, leaving the AI endpoints at 503
func newLLMService(cfg *config.Config, logger *zap.Logger) services.LLMInterface {
	if cfg.LLMAPIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, AI assistant disabled")
		return nil
	}
	return services.NewLLMService(cfg)
}

// setupRouter builds the engine with the global middleware and every route
func setupRouter(cfg *config.Config, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.PrometheusMetrics())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	if len(cfg.CORSAllowedOrigins) == 0 || (len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)
	}

	controllers.RegisterRoutes(v1,
		middleware.EnsureValidToken(cfg),
		middleware.RequireScope(moderationScope),
	)

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "AutoFix API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Database is not initialized",
			},
		})
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
