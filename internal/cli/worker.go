package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"
	"github.com/spf13/cobra"

	"softarchitect/apps/ingest/internal/adapter/gemini"
	"softarchitect/apps/ingest/internal/app"
	"softarchitect/apps/ingest/internal/config"
	"softarchitect/apps/ingest/internal/ingest"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Embed and store chunks published by queue-mode ingestion",
	Long: `Consumes embedding tasks from NSQ, embeds each chunk and upserts it
into the vector store. Used when INGEST_MODE=queue.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "concurrent handlers; defaults to INGESTION_CONCURRENCY")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if cfg == nil {
		return errors.New("configuration not loaded")
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	store, err := app.OpenVectorStore(ctx, cfg)
	if err != nil {
		return err
	}
	embedder := gemini.NewEmbedder(cfg.GeminiAPIKey, cfg.EmbeddingModel)
	defer embedder.Close()

	concurrency := workerConcurrency
	if concurrency < 1 {
		concurrency = cfg.IngestionConcurrency
	}

	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = concurrency
	consumer, err := nsq.NewConsumer(config.TopicIngestEmbed, config.ChannelEmbedder, nsqCfg)
	if err != nil {
		return fmt.Errorf("nsq consumer error: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelWarning)
	consumer.AddConcurrentHandlers(ingest.NewEmbedderConsumer(embedder, store), concurrency)

	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		return fmt.Errorf("failed to connect to NSQLookupd: %w", err)
	}
	slog.InfoContext(ctx, "embedding worker started", "topic", config.TopicIngestEmbed, "channel", config.ChannelEmbedder, "concurrency", concurrency)

	<-ctx.Done()
	slog.Info("stopping embedding worker")
	consumer.Stop()
	<-consumer.StopChan
	return nil
}
