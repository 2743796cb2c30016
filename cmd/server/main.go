package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garyjia/claims-intake/internal/api"
	"github.com/garyjia/claims-intake/internal/config"
	"github.com/garyjia/claims-intake/internal/external"
	"github.com/garyjia/claims-intake/internal/external/bgs"
	"github.com/garyjia/claims-intake/internal/external/vacols"
	"github.com/garyjia/claims-intake/internal/external/vbms"
	"github.com/garyjia/claims-intake/internal/intake"
	"github.com/garyjia/claims-intake/internal/mapper"
	"github.com/garyjia/claims-intake/internal/queue"
	"github.com/garyjia/claims-intake/internal/report"
	"github.com/garyjia/claims-intake/internal/repository"
	"github.com/garyjia/claims-intake/internal/worker"
	"github.com/garyjia/claims-intake/pkg/database"
	"github.com/garyjia/claims-intake/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	// Load .env if present, then configuration
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Claims Intake Service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		BusyTimeout:     cfg.Database.BusyTimeout,
		JournalMode:     cfg.Database.JournalMode,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Create report output directory
	if err := os.MkdirAll(cfg.Report.OutputDir, 0755); err != nil {
		logger.Fatal("Failed to create report directory", zap.Error(err))
	}

	// Initialize repositories
	intakeRepo := repository.NewIntakeRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)

	// Initialize external collaborators
	directory := bgs.NewClient(bgs.Config{
		BaseURL: cfg.BGS.BaseURL,
		APIKey:  cfg.BGS.APIKey,
		Timeout: cfg.BGS.Timeout,
	}, logger)

	establisher := vbms.NewClient(vbms.Config{
		BaseURL: cfg.VBMS.BaseURL,
		APIKey:  cfg.VBMS.APIKey,
		Timeout: cfg.VBMS.Timeout,
	}, logger)

	catalog := vacols.NewCatalog(db.DB, logger)
	issueMapper := mapper.NewIssueMapper(catalog, external.SystemClock{})

	// Initialize intake manager and read model
	manager := intake.NewManager(
		db,
		intakeRepo,
		userRepo,
		directory,
		establisher,
		external.SystemClock{},
		cfg.Intake.CompletionTimeout,
		logger,
	)
	reviewQueue := queue.NewReviewQueue(intakeRepo, logger)
	exporter := report.NewExporter(cfg.Report.OutputDir, logger)

	// Background sweeper recovers completions orphaned by a crash
	sweeper := worker.NewCompletionSweeper(
		intakeRepo,
		manager,
		external.SystemClock{},
		cfg.Intake.SweepInterval,
		cfg.Intake.CompletionTimeout,
		logger,
	)
	if err := sweeper.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start completion sweeper", zap.Error(err))
	}
	defer sweeper.Stop()

	// Set Gin mode based on logger level
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize HTTP router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "claims-intake",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// Intake API endpoints
	handler := api.NewHandler(manager, reviewQueue, intakeRepo, userRepo, issueMapper, exporter, external.SystemClock{}, logger)
	handler.RegisterRoutes(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSS-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
