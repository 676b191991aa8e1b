package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"softarchitect/apps/ingest/internal/adapter/gemini"
	"softarchitect/apps/ingest/internal/app"
	"softarchitect/apps/ingest/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API: POST /ingest, GET /search, GET /failures,
POST /failures/{id}/retry, GET /stats and GET /health.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg == nil {
			return errors.New("configuration not loaded")
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return Serve(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// Serve bootstraps every dependency and serves HTTP until ctx is done.
func Serve(ctx context.Context, c *config.Config) error {
	deps, err := app.Bootstrap(ctx, c)
	if err != nil {
		return err
	}
	defer deps.Close()

	embedder := gemini.NewEmbedder(c.GeminiAPIKey, c.EmbeddingModel)
	defer embedder.Close()

	a, err := app.New(c, deps.DB, deps.VectorStore, embedder, deps.NSQProducer)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "serving knowledge base", "root", a.Loader.Root(), "ingest_mode", c.IngestMode)
	return a.Run(ctx)
}
