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

	"github.com/refind-app/refind/internal/api"
	"github.com/refind-app/refind/internal/config"
	"github.com/refind-app/refind/internal/logger"
	"github.com/refind-app/refind/internal/repository"
	"github.com/refind-app/refind/internal/service"
	"github.com/refind-app/refind/internal/storage"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "refind",
		File:        cfg.Log.File,
		MaxSize:     cfg.Log.MaxSize,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAge:      cfg.Log.MaxAge,
		Compress:    cfg.Log.Compress,
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	itemRepo := repository.NewItemRepository(db)
	matchRepo := repository.NewMatchRepository(db)

	// Initialize storage
	store, err := storage.NewStore(&cfg.Storage, cfg.Upload.ImageSize)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	ctx := context.Background()
	if s3Store, ok := store.(*storage.S3Store); ok {
		if err := s3Store.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
	}

	// Initialize feature extractors
	visionScorer := service.NewVisionScorer(&service.VisionConfig{
		BaseURL: cfg.Models.Vision.BaseURL,
		Model:   cfg.Models.Vision.Model,
		APIKey:  cfg.Models.Vision.APIKey,
		Timeout: cfg.Models.Vision.Timeout,
	})
	keypointScorer := service.NewKeypointScorer()
	rerankerScorer := service.NewRerankerScorer(service.RerankerConfig{
		BaseURL: cfg.Models.Reranker.BaseURL,
		Model:   cfg.Models.Reranker.Model,
		APIKey:  cfg.Models.Reranker.APIKey,
		Timeout: cfg.Models.Reranker.Timeout,
	})
	composer := service.NewFeatureComposer(
		visionScorer,
		keypointScorer,
		rerankerScorer,
		service.NewNameScorer(),
		service.NewColorScorer(),
	)

	// Load classifier artifacts
	classifier := service.NewMatchClassifier()
	if err := classifier.Load(cfg.Models.Dir); err != nil {
		appLogger.WithError(err).Fatal("Failed to load match classifier")
	}

	// Optional embedding index for candidate shortlisting
	var index *repository.EmbeddingIndex
	if cfg.Index.Enabled {
		index, err = repository.NewEmbeddingIndex(&repository.EmbeddingIndexConfig{
			Host:            cfg.Index.Host,
			Port:            cfg.Index.Port,
			Collection:      cfg.Index.Collection,
			APIKey:          cfg.Index.APIKey,
			UseTLS:          cfg.Index.UseTLS,
			VectorDimension: cfg.Index.VectorDim,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize embedding index")
		}
		defer index.Close()
		if err := index.EnsureCollection(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure index collection")
		}
	}

	// Initialize services
	processor := service.NewImageProcessor(service.MattingConfig{
		Enabled: cfg.Models.Matting.Enabled,
		BaseURL: cfg.Models.Matting.BaseURL,
		APIKey:  cfg.Models.Matting.APIKey,
		Timeout: cfg.Models.Matting.Timeout,
	}, cfg.Upload.ImageSize, cfg.Upload.MaxSizeMB)

	// Passing literal nils keeps the shortlist stage disabled; a typed nil
	// pointer in an interface would not read as absent.
	var submissionService *service.SubmissionService
	var matcherService *service.MatcherService
	if index != nil {
		submissionService = service.NewSubmissionService(itemRepo, store, processor, visionScorer, index)
		matcherService = service.NewMatcherService(itemRepo, matchRepo, store, composer, classifier, index, visionScorer, service.MatcherConfig{
			DefaultTopK:   cfg.Matcher.TopK,
			MaxTopK:       cfg.Matcher.MaxTopK,
			MinPoolSize:   cfg.Index.MinPoolSize,
			ShortlistSize: cfg.Index.ShortlistSize,
		})
	} else {
		submissionService = service.NewSubmissionService(itemRepo, store, processor, nil, nil)
		matcherService = service.NewMatcherService(itemRepo, matchRepo, store, composer, classifier, nil, nil, service.MatcherConfig{
			DefaultTopK: cfg.Matcher.TopK,
			MaxTopK:     cfg.Matcher.MaxTopK,
		})
	}

	// Setup router
	routerCfg := api.RouterConfig{
		Mode:            cfg.Server.Mode,
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}
	if localStore, ok := store.(*storage.LocalStore); ok {
		routerCfg.StaticDir = localStore.Root()
	}
	router := api.SetupRouter(submissionService, matcherService, appLogger, routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
