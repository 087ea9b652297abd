package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Longt00/company-sub000/internal/db"
	"github.com/Longt00/company-sub000/internal/http/handlers"
	"github.com/Longt00/company-sub000/internal/middleware"
	"github.com/Longt00/company-sub000/internal/platform/envutil"
	"github.com/Longt00/company-sub000/internal/platform/ffprobe"
	"github.com/Longt00/company-sub000/internal/platform/logger"
	"github.com/Longt00/company-sub000/internal/platform/tracing"
	"github.com/Longt00/company-sub000/internal/server"
	"github.com/Longt00/company-sub000/internal/services"
	"github.com/Longt00/company-sub000/internal/storage"

	mediarepo "github.com/Longt00/company-sub000/internal/data/repos/media"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownTracing := tracing.Init(context.Background(), log, tracing.Config{
		ServiceName: envutil.GetEnv("OTEL_SERVICE_NAME", "media-store", log),
		Environment: envutil.GetEnv("APP_ENV", "development", log),
		Version:     envutil.GetEnv("APP_VERSION", "dev", log),
	})

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessPrefix := envutil.GetEnv("MEDIA_ACCESS_PREFIX", services.DefaultAccessPrefix, log)
	allowedOrigins := envutil.GetEnvAsSlice("CORS_ALLOWED_ORIGINS", nil, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Blob store
	store, err := storage.NewFromEnv(log)
	if err != nil {
		log.Error("Could not init blob store", "error", err)
		os.Exit(1)
	}

	// Repos
	log.Info("Setting up Repos from main...")
	assetRepo := mediarepo.NewMediaAssetRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	rules, err := services.NewRuleSetFromEnv(log)
	if err != nil {
		log.Error("Could not load upload rules", "error", err)
		os.Exit(1)
	}
	prober := ffprobe.New(log)
	auditService := services.NewAuditService(thePG, log)
	uploadService := services.NewUploadService(log, assetRepo, store, rules, prober, auditService, accessPrefix)
	deliveryService := services.NewDeliveryService(log, assetRepo, store)
	lifecycleService := services.NewLifecycleService(log, assetRepo, store, auditService, accessPrefix)
	iconService := services.NewIconService(log, store)

	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		iconService.EnsureDefaultIcons(ctx)
		cancel()
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	fileHandler := handlers.NewFileHandler(log, deliveryService)
	mediaHandler := handlers.NewMediaHandler(log, uploadService)
	uploadHandler := handlers.NewUploadHandler(log, uploadService, lifecycleService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ServiceName:    envutil.GetEnv("OTEL_SERVICE_NAME", "media-store", log),
		AccessPrefix:   accessPrefix,
		AllowedOrigins: allowedOrigins,
		AuthMiddleware: authMiddleware,
		FileHandler:    fileHandler,
		MediaHandler:   mediaHandler,
		UploadHandler:  uploadHandler,
	})

	port := envutil.GetEnv("PORT", "8080", log)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		fmt.Printf("Server listening on :%s\n", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutdown signal received, draining...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("HTTP server shutdown failed", "error", err)
	}
	lifecycleService.Shutdown(ctx)
	auditService.Close()
	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("Tracer shutdown failed", "error", err)
		}
	}
	log.Info("Shutdown complete")
}
