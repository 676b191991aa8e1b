package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"softarchitect/apps/ingest/features/failure"
	"softarchitect/apps/ingest/features/ingestion"
	"softarchitect/apps/ingest/features/search"
	"softarchitect/apps/ingest/features/stats"
	"softarchitect/apps/ingest/internal/config"
	"softarchitect/apps/ingest/internal/ingest"
	"softarchitect/apps/ingest/internal/loader"
	"softarchitect/apps/ingest/internal/middleware"
	"softarchitect/apps/ingest/internal/retrieval"
)

// VectorStore is everything the service needs from the chunk store.
type VectorStore interface {
	ingest.VectorStore
	retrieval.VectorStore
	Count(ctx context.Context) (int, error)
	EnsureSchema(ctx context.Context) error
}

type App struct {
	Handler          http.Handler
	Loader           *loader.Loader
	Pipeline         *ingest.Pipeline
	Retrieval        *retrieval.Service
	Failures         *failure.Service
	EmbedderConsumer *ingest.EmbedderConsumer
	port             int
}

// LoaderConfig maps the process configuration onto the document loader.
func LoaderConfig(cfg *config.Config) loader.Config {
	return loader.Config{
		Root:             cfg.KBRoot,
		MaxChunkSize:     cfg.MaxChunkSize,
		MinChunkSize:     cfg.MinChunkSize,
		ValidateSecurity: cfg.ValidateSecurity,
		MaxFileSize:      cfg.MaxFileSizeBytes,
		MaxDepth:         cfg.MaxDepth,
	}
}

// NewSink picks the sink for cfg.IngestMode. Queue mode needs a publisher.
func NewSink(cfg *config.Config, store ingest.VectorStore, embedder ingest.Embedder, pub ingest.TaskPublisher) (ingest.Sink, error) {
	switch cfg.IngestMode {
	case config.IngestModeQueue:
		if pub == nil {
			return nil, fmt.Errorf("%w: INGEST_MODE=queue requires an NSQ producer", config.ErrInvalidValue)
		}
		return ingest.NewQueueSink(store, pub), nil
	default:
		return ingest.NewDirectSink(embedder, store, cfg.IngestionConcurrency), nil
	}
}

func New(
	cfg *config.Config,
	db *sql.DB,
	vecStore VectorStore,
	embedder ingest.Embedder,
	taskPub ingest.TaskPublisher,
) (*App, error) {
	docs, err := loader.New(LoaderConfig(cfg))
	if err != nil {
		return nil, err
	}

	sink, err := NewSink(cfg, vecStore, embedder, taskPub)
	if err != nil {
		return nil, err
	}

	// Feature: Failure ledger
	failureRepo := failure.NewPostgresRepo(db)
	pipeline := ingest.NewPipeline(docs, sink, failure.NewRecorder(failureRepo))
	failureService := failure.NewService(failureRepo, pipeline)
	failureHandler := failure.NewHandler(failureService)

	// Feature: Ingestion
	ingestionHandler := ingestion.NewHandler(pipeline)

	// Feature: Stats
	statsHandler := stats.NewHandler(failureRepo, vecStore)

	// Feature: Retrieval
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retrievalService := retrieval.NewService(embedder, vecStore, cfg.SearchAlpha, queryLogger)
	searchHandler := search.NewHandler(retrievalService)

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /ingest", middleware.CorrelationID(http.HandlerFunc(ingestionHandler.Run)))
	mux.Handle("GET /search", middleware.CorrelationID(http.HandlerFunc(searchHandler.Search)))
	mux.Handle("GET /failures", middleware.CorrelationID(http.HandlerFunc(failureHandler.List)))
	mux.Handle("POST /failures/{id}/retry", middleware.CorrelationID(http.HandlerFunc(failureHandler.Retry)))
	mux.Handle("GET /stats", middleware.CorrelationID(http.HandlerFunc(statsHandler.GetStats)))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:          mux,
		Loader:           docs,
		Pipeline:         pipeline,
		Retrieval:        retrievalService,
		Failures:         failureService,
		EmbedderConsumer: ingest.NewEmbedderConsumer(embedder, vecStore),
		port:             cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
