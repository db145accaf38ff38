package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	openai "github.com/sashabaranov/go-openai"

	database "github.com/ceylontrails/tour-plan-api/app/db"
	appLogger "github.com/ceylontrails/tour-plan-api/app/logger"
	appMiddleware "github.com/ceylontrails/tour-plan-api/app/middleware"
	"github.com/ceylontrails/tour-plan-api/app/tracer"
	"github.com/ceylontrails/tour-plan-api/config"
	"github.com/ceylontrails/tour-plan-api/internal/api/aiengine"
	"github.com/ceylontrails/tour-plan-api/internal/api/extraction"
	"github.com/ceylontrails/tour-plan-api/internal/api/preferences"
	"github.com/ceylontrails/tour-plan-api/internal/api/timetable"
	"github.com/ceylontrails/tour-plan-api/internal/api/tourplan"
	"github.com/ceylontrails/tour-plan-api/internal/api/trips"
	api "github.com/ceylontrails/tour-plan-api/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracer.InitTracingAndMetrics(cfg.Metrics.Port, logger)

	// --- Database Setup ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	// Run migrations before initializing the main pool
	err = database.RunMigrations(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- External clients ---
	// Clients are constructed once here and passed by reference; nothing is
	// instantiated at package load.
	engineClient := aiengine.NewHTTPClient(cfg.AIEngine.BaseURL, cfg.AIEngine.Timeout, logger)
	retryCfg := aiengine.DefaultRetryConfig()
	if cfg.AIEngine.MaxRetries > 0 {
		retryCfg.MaxRetries = cfg.AIEngine.MaxRetries
	}
	if cfg.AIEngine.InitialInterval > 0 {
		retryCfg.InitialInterval = cfg.AIEngine.InitialInterval
	}
	if cfg.AIEngine.MaxInterval > 0 {
		retryCfg.MaxInterval = cfg.AIEngine.MaxInterval
	}
	resilientEngine := aiengine.NewResilientClient(engineClient, retryCfg, logger)

	timetableClient := timetable.NewClient(cfg.Timetable.URL, logger)
	llmClient := openai.NewClient(cfg.LLM.APIKey)

	// --- Dependency Injection ---
	tripRepo := trips.NewPostgresRepository(pool, logger)
	sessionRepo := tourplan.NewPostgresSessionRepository(pool, logger)
	prefRepo := preferences.NewPostgresRepository(pool, logger)
	prefService := preferences.NewService(prefRepo, logger)

	tourPlanService := tourplan.NewService(resilientEngine, sessionRepo, tripRepo, prefService, cfg.Session.TTL, logger)
	tourPlanHandler := tourplan.NewHandlerImpl(tourPlanService, logger)

	extractionService := extraction.NewService(llmClient, cfg.LLM.Model, logger)
	extractionHandler := extraction.NewHandler(extractionService, logger)

	timetableHandler := timetable.NewHandler(timetableClient, logger)

	routerConfig := &api.Config{
		TourPlanHandler:        tourPlanHandler,
		TimetableHandler:       timetableHandler,
		ExtractionHandler:      extractionHandler,
		AuthenticateMiddleware: appMiddleware.Authenticate(logger, []byte(cfg.JWT.SecretKey)),
	}
	mainRouter := api.SetupRouter(routerConfig)

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appLogger.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middleware.Compress(5, "application/json"))
	router.Mount("/", mainRouter)

	// --- HTTP Server Setup ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		// Colored logs for development
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		// JSON logs for production
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
