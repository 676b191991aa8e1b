package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"softarchitect/apps/ingest/internal/adapter/gemini"
	"softarchitect/apps/ingest/internal/app"
	"softarchitect/apps/ingest/internal/config"
	"softarchitect/apps/ingest/internal/retrieval"
)

var (
	searchLimit    int
	searchJSON     bool
	searchCategory string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the knowledge base",
	Long: `Performs hybrid search across stored chunks.
Combines keyword (BM25) and semantic (vector) search for best results.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", retrieval.DefaultTopK, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "only return chunks from this category")
	rootCmd.AddCommand(searchCmd)
}

type searcher interface {
	Search(ctx context.Context, query string, k int, opts *retrieval.SearchOptions) ([]retrieval.SearchResult, error)
}

// newSearcher connects the search service. Tests replace it.
var newSearcher = func(ctx context.Context, c *config.Config) (searcher, func(), error) {
	store, err := app.OpenVectorStore(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	embedder := gemini.NewEmbedder(c.GeminiAPIKey, c.EmbeddingModel)

	queryLogger, err := retrieval.NewFileQueryLogger(c.QueryLogPath)
	if err != nil {
		slog.Warn("query log disabled", "error", err)
		queryLogger = nil
	}
	cleanup := func() {
		embedder.Close()
	}
	return retrieval.NewService(embedder, store, c.SearchAlpha, queryLogger), cleanup, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	if cfg == nil {
		return errors.New("configuration not loaded")
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	svc, cleanup, err := newSearcher(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := svc.Search(ctx, args[0], searchLimit, &retrieval.SearchOptions{Category: searchCategory})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []retrieval.SearchResult) error {
	if results == nil {
		results = []retrieval.SearchResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []retrieval.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, r.Score)
		if r.FilePath != "" {
			cmd.Printf("      File: %s\n", r.FilePath)
		}
		cmd.Printf("      %s\n", snippet(r.Content, 160))
		cmd.Println()
	}
	return nil
}

func snippet(s string, n int) string {
	runes := []rune(s)
	for i, r := range runes {
		if r == '\n' {
			runes[i] = ' '
		}
	}
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
