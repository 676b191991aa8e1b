package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"softarchitect/apps/ingest/internal/text"
)

const DefaultTopK = 5

var ErrInvalidQuery = errors.New("invalid query")

type SearchResult struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Score    float32                `json:"score"`
	Title    string                 `json:"title,omitempty"`
	FilePath string                 `json:"filepath,omitempty"`
	Category string                 `json:"category,omitempty"`
	Metadata map[string]interface{} `json:"metadata"`
}

type SearchOptions struct {
	Alpha    *float32
	Category string
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Search(ctx context.Context, query string, vector []float32, alpha float32, limit int, filters map[string]interface{}) ([]SearchResult, error)
}

type Service struct {
	embedder Embedder
	store    VectorStore
	alpha    float32
	logger   *QueryLogger
}

// NewService builds a search service. alpha weights vector against keyword
// relevance in the hybrid query; l may be nil.
func NewService(e Embedder, s VectorStore, alpha float32, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, alpha: alpha, logger: l}
}

// Search returns up to k chunks relevant to query. The query is validated
// with the prompt sanitizer before it reaches the embedder.
func (s *Service) Search(ctx context.Context, query string, k int, opts *SearchOptions) ([]SearchResult, error) {
	start := time.Now()
	var docs []SearchResult
	var err error

	defer func() {
		if s.logger != nil && err == nil {
			s.logger.Log(ctx, QueryLogEntry{
				Query:      query,
				NumResults: len(docs),
				Duration:   time.Since(start),
			})
		}
	}()

	query, err = text.SanitizePrompt(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if query == "" {
		err = fmt.Errorf("%w: empty", ErrInvalidQuery)
		return nil, err
	}
	if k <= 0 {
		k = DefaultTopK
	}

	alpha := s.alpha
	var filters map[string]interface{}
	if opts != nil {
		if opts.Alpha != nil {
			alpha = *opts.Alpha
		}
		if opts.Category != "" {
			filters = map[string]interface{}{"category": opts.Category}
		}
	}

	// 1. Embed Query
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	// 2. Hybrid Search (BM25 + Vector)
	docs, err = s.store.Search(ctx, query, vec, alpha, k, filters)
	if err != nil {
		return nil, err
	}

	// Populate top-level fields from metadata for convenience
	for i := range docs {
		if title, ok := docs[i].Metadata["title"].(string); ok {
			docs[i].Title = title
		}
		if path, ok := docs[i].Metadata["filepath"].(string); ok {
			docs[i].FilePath = path
		}
		if category, ok := docs[i].Metadata["category"].(string); ok {
			docs[i].Category = category
		}
	}

	return docs, nil
}
