package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-embedding-001"

var ErrMissingAPIKey = errors.New("gemini api key not configured")

// Embedder turns chunk text into vectors with the Gemini embedding API.
// The client is created on first use so commands that never embed can run
// without a key.
type Embedder struct {
	apiKey     string
	model      string
	clientOpts []option.ClientOption

	mu     sync.Mutex
	client *genai.Client
}

func NewEmbedder(apiKey, model string, opts ...option.ClientOption) *Embedder {
	if model == "" {
		model = DefaultModel
	}
	return &Embedder{apiKey: apiKey, model: model, clientOpts: opts}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	client, err := e.getClient(ctx)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "embedding content", "model", e.model, "length", len(text))
	res, err := client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "error", err)
		return nil, err
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding received")
	}
	return res.Embedding.Values, nil
}

func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

func (e *Embedder) getClient(ctx context.Context) (*genai.Client, error) {
	if e.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client, nil
	}

	opts := append([]option.ClientOption{option.WithAPIKey(e.apiKey)}, e.clientOpts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	e.client = client
	return client, nil
}
