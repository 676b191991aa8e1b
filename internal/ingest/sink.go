package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"softarchitect/apps/ingest/internal/config"
	"softarchitect/apps/ingest/internal/middleware"
)

// DirectSink embeds and stores records in-process.
type DirectSink struct {
	embedder    Embedder
	store       VectorStore
	concurrency int
}

func NewDirectSink(e Embedder, s VectorStore, concurrency int) *DirectSink {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DirectSink{embedder: e, store: s, concurrency: concurrency}
}

// Put embeds every record before touching the store, so a failed embedding
// leaves the chunks already stored for source in place.
func (s *DirectSink) Put(ctx context.Context, source string, records []Record) error {
	// 1. Embed, bounded
	vectors := make([][]float32, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, r := range records {
		g.Go(func() error {
			embedCtx, cancel := context.WithTimeout(gctx, embedTimeout)
			defer cancel()

			text := ContextualText(metaString(r.Metadata, "title"), source, metaString(r.Metadata, "category"), r.Text)
			vector, err := s.embedder.Embed(embedCtx, text)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", r.ID, err)
			}
			vectors[i] = vector
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// 2. Delete Old Chunks (Idempotency)
	if err := s.store.DeleteBySource(ctx, source); err != nil {
		return fmt.Errorf("delete stale chunks of %s: %w", source, err)
	}

	// 3. Upsert, bounded
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, r := range records {
		g.Go(func() error {
			if err := s.store.Upsert(gctx, r.ID, r.Text, r.Metadata, vectors[i]); err != nil {
				return fmt.Errorf("upsert chunk %s: %w", r.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.DebugContext(ctx, "records stored", "source", source, "count", len(records))
	return nil
}

// QueueSink publishes one embedding task per record; EmbedderConsumer
// completes them.
type QueueSink struct {
	store     VectorStore
	publisher TaskPublisher
}

func NewQueueSink(s VectorStore, p TaskPublisher) *QueueSink {
	return &QueueSink{store: s, publisher: p}
}

func (s *QueueSink) Put(ctx context.Context, source string, records []Record) error {
	correlationID := middleware.GetCorrelationID(ctx)
	runID := middleware.GetRunID(ctx)
	bodies := make([][]byte, 0, len(records))
	for _, r := range records {
		body, err := json.Marshal(EmbedPayload{
			ID:            r.ID,
			Source:        source,
			Title:         metaString(r.Metadata, "title"),
			Category:      metaString(r.Metadata, "category"),
			Content:       r.Text,
			Metadata:      r.Metadata,
			CorrelationID: correlationID,
			RunID:         runID,
		})
		if err != nil {
			return fmt.Errorf("marshal embed payload: %w", err)
		}
		bodies = append(bodies, body)
	}

	if err := s.store.DeleteBySource(ctx, source); err != nil {
		return fmt.Errorf("delete stale chunks of %s: %w", source, err)
	}

	for _, body := range bodies {
		if err := s.publisher.Publish(config.TopicIngestEmbed, body); err != nil {
			return fmt.Errorf("publish to %s: %w", config.TopicIngestEmbed, err)
		}
	}

	slog.InfoContext(ctx, "published embedding tasks", "source", source, "count", len(records))
	return nil
}

// DiscardSink accepts everything and stores nothing. Dry runs use it.
type DiscardSink struct{}

func (DiscardSink) Put(context.Context, string, []Record) error {
	return nil
}
