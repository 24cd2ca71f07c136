package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkarlovi/babelshot/internal/api"
	"github.com/dkarlovi/babelshot/internal/config"
	"github.com/dkarlovi/babelshot/internal/db"
	"github.com/dkarlovi/babelshot/internal/queue"
	"github.com/dkarlovi/babelshot/internal/services"
	"github.com/dkarlovi/babelshot/internal/storage"
	"github.com/dkarlovi/babelshot/internal/worker"
)

func main() {
	log.Println("Starting Babelshot API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	if err := database.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize artifact storage
	store, err := storage.New(cfg.ArtifactRoot, "/generated")
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("Artifact storage at %s", cfg.ArtifactRoot)

	if err := os.MkdirAll(cfg.UploadRoot, 0755); err != nil {
		log.Fatalf("Failed to create upload dir: %v", err)
	}

	// Shared services
	geminiSvc := services.NewGeminiService(cfg.GeminiKey, cfg.GeminiVisionModel, cfg.GeminiImageModel)
	compositor, err := services.NewWatermarkCompositor()
	if err != nil {
		log.Fatalf("Failed to initialize watermark compositor: %v", err)
	}

	// Create API handler
	handler := api.NewHandler(database, q, store, storage.NewDownloader(), geminiSvc, compositor, api.HandlerConfig{
		VisionModel:          cfg.GeminiVisionModel,
		ImageModel:           cfg.GeminiImageModel,
		VideoModel:           cfg.VeoModel,
		DefaultWatermarkText: cfg.DefaultWatermarkText,
		UploadRoot:           cfg.UploadRoot,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		ArtifactDir:        cfg.ArtifactRoot,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCtx context.Context
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		translateSvc := services.NewTranslateService(cfg.OpenAIKey)
		veoSvc := services.NewVeoService(cfg.GeminiKey, cfg.VeoModel,
			time.Duration(cfg.VideoPollIntervalMs)*time.Millisecond, cfg.VideoPollMaxAttempts)
		ffmpegSvc := services.NewFFmpegService()
		extender := services.NewExtender(ffmpegSvc, services.StretchSpec{
			SourceDuration: cfg.VideoSourceDuration,
			TargetDuration: cfg.VideoTargetDuration,
			FPS:            cfg.VideoTargetFPS,
		})

		orchestrator := &worker.Orchestrator{
			Translator: translateSvc,
			Images:     geminiSvc,
			Videos:     veoSvc,
			Marker:     ffmpegSvc,
			Sink:       store,
			Pool: worker.Pool{
				Concurrency:  cfg.MaxParallelGenerations,
				WaveCooldown: time.Duration(cfg.WaveCooldownMs) * time.Millisecond,
			},
			ImageModel: cfg.GeminiImageModel,
			VideoModel: cfg.VeoModel,
		}

		w := worker.New(database, q, store, orchestrator, extender)

		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, 1)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown worker
	if workerCancel != nil {
		workerCancel()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
