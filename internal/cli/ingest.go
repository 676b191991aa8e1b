package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"softarchitect/apps/ingest/internal/adapter/gemini"
	"softarchitect/apps/ingest/internal/app"
	"softarchitect/apps/ingest/internal/ingest"
	"softarchitect/apps/ingest/internal/loader"
)

var (
	ingestDryRun bool
	ingestRoot   string
	ingestJSON   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest every markdown file in the knowledge base",
	Long: `Walks the knowledge base, splits each markdown file into chunks and
replaces the stored chunks of every file it reads. Files that fail
validation are reported and skipped.

With --dry-run nothing is stored and no backing service is contacted.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "list files and chunk counts without storing anything")
	ingestCmd.Flags().StringVar(&ingestRoot, "root", "", "knowledge base directory; overrides KB_ROOT")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print the run report as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if cfg == nil {
		return errors.New("configuration not loaded")
	}
	if ingestRoot != "" {
		cfg.KBRoot = ingestRoot
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if ingestDryRun {
		return dryRun(ctx, cmd)
	}

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	embedder := gemini.NewEmbedder(cfg.GeminiAPIKey, cfg.EmbeddingModel)
	defer embedder.Close()

	a, err := app.New(cfg, deps.DB, deps.VectorStore, embedder, deps.NSQProducer)
	if err != nil {
		return err
	}

	report, err := a.Pipeline.Run(ctx)
	if report != nil {
		if perr := printReport(cmd, report); perr != nil {
			return perr
		}
	}
	return err
}

func dryRun(ctx context.Context, cmd *cobra.Command) error {
	docs, err := loader.New(app.LoaderConfig(cfg))
	if err != nil {
		return err
	}

	var sink ingest.Sink = ingest.DiscardSink{}
	if !ingestJSON {
		sink = listingSink{cmd: cmd}
	}
	report, err := ingest.NewPipeline(docs, sink, nil).Run(ctx)
	if report != nil {
		if perr := printReport(cmd, report); perr != nil {
			return perr
		}
	}
	return err
}

// listingSink prints what would be stored.
type listingSink struct {
	cmd *cobra.Command
}

func (s listingSink) Put(_ context.Context, source string, records []ingest.Record) error {
	s.cmd.Printf("  %4d  %s\n", len(records), source)
	return nil
}

func printReport(cmd *cobra.Command, r *ingest.Report) error {
	if ingestJSON {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println()
	cmd.Printf("Run %s\n", r.RunID)
	cmd.Printf("  files:  %d seen, %d failed\n", r.FilesSeen, r.FilesFailed)
	cmd.Printf("  chunks: %d produced, %d stored\n", r.ChunksProduced, r.ChunksStored)
	cmd.Printf("  took:   %s\n", r.Duration.Round(time.Millisecond))
	for _, f := range r.Failures {
		cmd.Printf("  failed: %s: %s\n", f.Path, f.Error)
	}
	return nil
}
