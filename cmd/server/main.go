package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medjeex/exam-engine/internal/cache"
	"github.com/medjeex/exam-engine/internal/config"
	"github.com/medjeex/exam-engine/internal/handlers"
	"github.com/medjeex/exam-engine/internal/models"
	"github.com/medjeex/exam-engine/internal/repositories/postgres"
	"github.com/medjeex/exam-engine/internal/scheduler"
	"github.com/medjeex/exam-engine/internal/services"
	"github.com/medjeex/exam-engine/internal/utils"
	"github.com/medjeex/exam-engine/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var appLogger utils.Logger
	if cfg.Environment == "production" {
		appLogger = utils.NewDefaultLogger()
		gin.SetMode(gin.ReleaseMode)
	} else {
		appLogger = utils.NewDevelopmentLogger()
	}
	logger := utils.ToSlogLogger(appLogger)

	logger.Info("Starting exam engine",
		"port", cfg.Port,
		"environment", cfg.Environment)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.TestPaper{},
		&models.Question{},
		&models.Purchase{},
		&models.AttemptSession{},
		&models.AttemptQuestion{},
	); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	cacheService := cache.NewRedisCache(redisClient, logger)
	repo := postgres.NewRepository(db)
	defer repo.Close()
	validator := utils.NewValidator()

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	autoSubmit := scheduler.NewAutoSubmitScheduler(logger)
	defer autoSubmit.Close()

	snapshotService := services.NewSnapshotService(repo, cacheService, logger)
	attemptService := services.NewAttemptService(repo, snapshotService, autoSubmit, publisher, logger, validator)
	paperService := services.NewPaperService(repo, snapshotService, logger, validator)
	importService := services.NewImportService(repo, cacheService, logger, validator)

	// Timers do not survive restarts; the scheduler only acts through
	// the attempt service, so bind it and replay open sessions before
	// taking traffic.
	autoSubmit.Bind(attemptService)
	if err := attemptService.RearmOpenSessions(context.Background()); err != nil {
		logger.Error("Failed to re-arm auto-submit timers", "error", err)
		os.Exit(1)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(appLogger))

	handlerManager := handlers.NewHandlerManager(attemptService, paperService, importService, appLogger)
	handlerManager.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("Shutdown complete")
}
