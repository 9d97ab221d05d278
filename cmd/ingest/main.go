package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rowan/attest/internal/cache"
	"github.com/rowan/attest/internal/config"
	"github.com/rowan/attest/internal/domain"
	"github.com/rowan/attest/internal/logger"
	"github.com/rowan/attest/internal/repository"
	"github.com/rowan/attest/internal/service"
)

// ingest runs the pipeline directly on a local text file, printing stream
// events as they arrive. Useful for seeding an owner's claim set and for
// exercising the pipeline without the HTTP surface.
func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		ServiceName: "attest-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	filePath := flag.String("file", "", "Path to the text file to ingest")
	kind := flag.String("kind", "story", "Document kind: resume or story")
	owner := flag.String("owner", "", "Owner id the claims belong to")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *filePath == "" || *owner == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -file <path> -owner <id> [-kind resume|story] [-config <path>]")
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to read input file")
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := qdrantRepo.EnsureCollection(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure Qdrant collection")
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

	orchestrator := service.NewOrchestratorService(docRepo, jobRepo, evidenceRepo,
		extractorService, embeddingService, synthesizerService,
		service.NewJobBroker(), nil, cache.New(cfg.Cache.TTL),
		service.OrchestratorConfig{
			StoryMinChars:  cfg.Pipeline.StoryMinChars,
			StoryMaxChars:  cfg.Pipeline.StoryMaxChars,
			ResumeMinChars: cfg.Pipeline.ResumeMinChars,
			ResumeMaxChars: cfg.Pipeline.ResumeMaxChars,
			TickerInterval: cfg.Pipeline.TickerInterval,
		})

	// Handle graceful shutdown: a signal stops the event printer, the
	// pipeline itself runs to completion on its detached context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, detaching from stream...")
		cancel()
	}()

	result, events, err := orchestrator.SubmitStream(ctx, &service.SubmitRequest{
		OwnerID: *owner,
		Text:    string(raw),
		Kind:    domain.DocumentKind(*kind),
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Submission rejected")
	}

	fmt.Printf("document %s  job %s\n", result.DocumentID, result.JobID)

	exitCode := 0
	for event := range events {
		switch event.Type {
		case service.EventPhase:
			fmt.Printf("phase     %s\n", event.Phase)
		case service.EventHighlight:
			fmt.Printf("highlight [%s] %s\n", event.Highlight.Kind, event.Highlight.Message)
		case service.EventError:
			fmt.Printf("error     %s\n", event.Message)
			exitCode = 1
		case service.EventDone:
			fmt.Printf("done      evidence=%d created=%d updated=%d\n",
				event.Summary.EvidenceCount, event.Summary.ClaimsCreated, event.Summary.ClaimsUpdated)
		}
	}

	os.Exit(exitCode)
}
