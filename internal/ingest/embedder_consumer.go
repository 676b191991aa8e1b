package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"softarchitect/apps/ingest/internal/middleware"
)

const embedTimeout = 60 * time.Second

type EmbedderConsumer struct {
	embedder Embedder
	store    VectorStore
}

func NewEmbedderConsumer(e Embedder, s VectorStore) *EmbedderConsumer {
	return &EmbedderConsumer{
		embedder: e,
		store:    s,
	}
}

func (h *EmbedderConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload EmbedPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.ID == "" || payload.Content == "" {
		slog.Error("poison pill: payload missing id or content", "source", payload.Source)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}
	if payload.RunID != "" {
		ctx = middleware.WithRunID(ctx, payload.RunID)
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	vector, err := h.embedder.Embed(embedCtx, ContextualText(payload.Title, payload.Source, payload.Category, payload.Content))
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "error", err, "source", payload.Source, "id", payload.ID)
		return err // Retry
	}

	if err := h.store.Upsert(embedCtx, payload.ID, payload.Content, payload.Metadata, vector); err != nil {
		slog.ErrorContext(ctx, "store chunk failed", "error", err, "source", payload.Source, "id", payload.ID)
		return err // Retry
	}

	slog.InfoContext(ctx, "chunk stored successfully", "source", payload.Source, "id", payload.ID)
	return nil
}

// ContextualText is the string embedded for a chunk: a short header naming
// the document, then the chunk itself.
//
//	Title: <title>
//	Path: <source>
//	Category: <category> (optional)
//	---
//	<content>
func ContextualText(title, source, category, content string) string {
	s := fmt.Sprintf("Title: %s\nPath: %s", title, source)
	if category != "" {
		s += fmt.Sprintf("\nCategory: %s", category)
	}
	return s + fmt.Sprintf("\n---\n%s", content)
}
