// Command server runs the knowledge-base admin backend: PDF ingestion,
// retrieval-grounded question answering, and usage analytics over HTTP.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/supportdesk/go-kb-backend/internal/chunk"
	"github.com/supportdesk/go-kb-backend/internal/config"
	"github.com/supportdesk/go-kb-backend/internal/extract"
	"github.com/supportdesk/go-kb-backend/internal/gateway"
	httpapi "github.com/supportdesk/go-kb-backend/internal/http"
	"github.com/supportdesk/go-kb-backend/internal/ingest"
	"github.com/supportdesk/go-kb-backend/internal/observability"
	"github.com/supportdesk/go-kb-backend/internal/repo"
	"github.com/supportdesk/go-kb-backend/internal/storage"
	"github.com/supportdesk/go-kb-backend/internal/sysutil"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", cfg.OTEL.ServiceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Database
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			logger.Warn().Err(err).Msg("gorm tracing plugin")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	// Object storage
	store, err := storage.NewMinIOStore(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Str("endpoint", cfg.Storage.Endpoint).Msg("object store setup failed")
	}

	// Gemini gateways
	genaiClient, err := gateway.NewGeminiClient(ctx, cfg.GenAI.APIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("genai client setup failed")
	}
	defer genaiClient.Close()
	embedder := gateway.NewGeminiEmbedder(genaiClient, cfg.GenAI)
	generator := gateway.NewGeminiGenerator(genaiClient, cfg.GenAI)

	// Ingestion pipeline + worker pool
	splitter, err := chunk.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		logger.Fatal().Err(err).Msg("splitter config invalid")
	}
	pipeline := &ingest.Pipeline{
		DB:           db,
		Store:        store,
		Extractor:    extract.NewPDFExtractor(),
		Embedder:     embedder,
		Splitter:     splitter,
		FetchTimeout: cfg.Storage.FetchTimeout,
		Log:          logger.With().Str("component", "ingest").Logger(),
	}
	queue := ingest.NewQueue(pipeline, cfg.Ingest.QueueSize, logger)
	queue.Start(ctx, cfg.Ingest.Workers)

	// HTTP
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	httpapi.RegisterRoutes(router, httpapi.Deps{
		DB:        db,
		Store:     store,
		Scheduler: queue,
		Embedder:  embedder,
		Generator: generator,
		Log:       logger,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}

	// Drain in-flight ingestion jobs before exit.
	queue.Stop()
	logger.Info().Msg("stopped")
}
