package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rowan/attest/internal/api"
	"github.com/rowan/attest/internal/api/middleware"
	"github.com/rowan/attest/internal/cache"
	"github.com/rowan/attest/internal/config"
	"github.com/rowan/attest/internal/logger"
	"github.com/rowan/attest/internal/repository"
	"github.com/rowan/attest/internal/service"
	"github.com/rowan/attest/internal/storage"
)

func main() {
	// Initialize logger from environment
	appLogger := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	if err := cfg.Embedding.ValidateWithAPIKey(); err != nil {
		appLogger.WithError(err).Fatal("Invalid embedding configuration")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	docRepo := repository.NewDocumentRepository(db)
	evidenceRepo := repository.NewEvidenceRepository(db)
	claimRepo := repository.NewClaimRepository(db)
	jobRepo := repository.NewJobRepository(db)

	qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize Qdrant repository")
	}
	defer qdrantRepo.Close()

	// Ensure Qdrant collection exists
	ctx := context.Background()
	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
	}

	// Optional raw-text archival
	var archive *storage.Archive
	if cfg.Archive.Enabled {
		store, err := storage.NewObjectStore(&storage.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			UseSSL:    cfg.Archive.UseSSL,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize archive storage")
		}
		if err := store.EnsureBucket(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure archive bucket")
		}
		archive = storage.NewArchive(store)
	}

	// Initialize services
	completionService := service.NewCompletionService(&service.CompletionConfig{
		Model:   cfg.Completion.Model,
		APIKey:  cfg.Completion.APIKey,
		BaseURL: cfg.Completion.BaseURL,
	})

	embeddingService := service.NewEmbeddingService(&service.EmbeddingConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})

	extractorService := service.NewExtractorService(completionService, cfg.Pipeline.EvidenceMaxChars)
	matcherService := service.NewMatcherService(qdrantRepo)

	synthesizerService := service.NewSynthesizerService(matcherService, claimRepo, qdrantRepo, service.SynthesizerConfig{
		MergeThreshold:    cfg.Synthesis.MergeThreshold,
		InitialConfidence: cfg.Synthesis.InitialConfidence,
		ConfidenceBoost:   cfg.Synthesis.ConfidenceBoost,
		MaxMatches:        cfg.Synthesis.MaxMatches,
	})

	requirementsService := service.NewRequirementsService(embeddingService, matcherService, cfg.Synthesis.ScoringThreshold)

	broker := service.NewJobBroker()
	views := cache.New(cfg.Cache.TTL)

	orchestratorCfg := service.OrchestratorConfig{
		StoryMinChars:  cfg.Pipeline.StoryMinChars,
		StoryMaxChars:  cfg.Pipeline.StoryMaxChars,
		ResumeMinChars: cfg.Pipeline.ResumeMinChars,
		ResumeMaxChars: cfg.Pipeline.ResumeMaxChars,
		TickerInterval: cfg.Pipeline.TickerInterval,
	}

	var orchestrator *service.OrchestratorService
	if archive != nil {
		orchestrator = service.NewOrchestratorService(docRepo, jobRepo, evidenceRepo,
			extractorService, embeddingService, synthesizerService, broker, archive, views, orchestratorCfg)
	} else {
		orchestrator = service.NewOrchestratorService(docRepo, jobRepo, evidenceRepo,
			extractorService, embeddingService, synthesizerService, broker, nil, views, orchestratorCfg)
	}

	// Setup router
	router := api.SetupRouter(&api.RouterDeps{
		Orchestrator: orchestrator,
		Requirements: requirementsService,
		Broker:       broker,
		Jobs:         jobRepo,
		Claims:       claimRepo,
		Views:        views,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	}, cfg.Server.Mode)

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

	// Graceful shutdown with timeout; in-flight jobs run on detached
	// contexts and finish writing their rows even as the listener closes
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
