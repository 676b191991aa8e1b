package ingest

import (
	"context"
)

// Record is the unit handed to a sink: a content-addressed chunk with
// flattened metadata.
type Record struct {
	ID       string
	Text     string
	Metadata map[string]any
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Upsert(ctx context.Context, id, text string, metadata map[string]any, vector []float32) error
	DeleteBySource(ctx context.Context, source string) error
}

type TaskPublisher interface {
	Publish(topic string, body []byte) error
}

// Sink receives the records of one source file. Put replaces whatever the
// sink held for source; an empty records slice only removes it.
type Sink interface {
	Put(ctx context.Context, source string, records []Record) error
}

// FailureRecorder persists per-file failures and run summaries.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, runID, path string, cause error) error
	RecordRun(ctx context.Context, report Report) error
}
