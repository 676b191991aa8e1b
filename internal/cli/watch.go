package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"softarchitect/apps/ingest/internal/adapter/gemini"
	"softarchitect/apps/ingest/internal/app"
	"softarchitect/apps/ingest/internal/config"
	"softarchitect/apps/ingest/internal/ingest"
	"softarchitect/apps/ingest/internal/loader"
	"softarchitect/apps/ingest/internal/watcher"
)

var watchInitial bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-ingest markdown files as they change",
	Long: `Watches the knowledge base and keeps the vector store in step with it.
Changed files are re-ingested and removed files are dropped from the store.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "run a full ingestion before watching")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if cfg == nil {
		return errors.New("configuration not loaded")
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	docs, err := loader.New(app.LoaderConfig(cfg))
	if err != nil {
		return err
	}

	store, err := app.OpenVectorStore(ctx, cfg)
	if err != nil {
		return err
	}
	embedder := gemini.NewEmbedder(cfg.GeminiAPIKey, cfg.EmbeddingModel)
	defer embedder.Close()

	var pub ingest.TaskPublisher
	if cfg.IngestMode == config.IngestModeQueue {
		producer, err := app.OpenProducer(cfg)
		if err != nil {
			return err
		}
		defer producer.Stop()
		pub = producer
	}

	sink, err := app.NewSink(cfg, store, embedder, pub)
	if err != nil {
		return err
	}
	pipeline := ingest.NewPipeline(docs, sink, nil)

	if watchInitial {
		report, err := pipeline.Run(ctx)
		if err != nil {
			return err
		}
		if err := printReport(cmd, report); err != nil {
			return err
		}
	}

	w, err := watcher.New(watcher.Config{
		Root:     docs.Root(),
		MaxDepth: cfg.MaxDepth,
		Debounce: cfg.WatchDebounce(),
	}, pipeline)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
