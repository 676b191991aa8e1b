package ingest_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"softarchitect/apps/ingest/internal/ingest"
)

// Mocks

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockVectorStore struct{ mock.Mock }

func (m *MockVectorStore) Upsert(ctx context.Context, id, text string, metadata map[string]any, vector []float32) error {
	args := m.Called(ctx, id, text, metadata, vector)
	return args.Error(0)
}

func (m *MockVectorStore) DeleteBySource(ctx context.Context, source string) error {
	args := m.Called(ctx, source)
	return args.Error(0)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

type MockRecorder struct{ mock.Mock }

func (m *MockRecorder) RecordFailure(ctx context.Context, runID, path string, cause error) error {
	args := m.Called(ctx, runID, path, cause)
	return args.Error(0)
}

func (m *MockRecorder) RecordRun(ctx context.Context, report ingest.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// memorySink collects Put calls keyed by source.
type memorySink struct {
	mu   sync.Mutex
	puts map[string][]ingest.Record
	err  error
}

func newMemorySink() *memorySink {
	return &memorySink{puts: map[string][]ingest.Record{}}
}

func (s *memorySink) Put(ctx context.Context, source string, records []ingest.Record) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts[source] = records
	return nil
}
