package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"softarchitect/apps/ingest/internal/document"
	"softarchitect/apps/ingest/internal/ingest"
	"softarchitect/apps/ingest/internal/loader"
)

func writeDoc(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newKnowledgeBase(t *testing.T) *loader.Loader {
	t.Helper()
	root := t.TempDir()
	writeDoc(t, root, "overview.md", "# Overview\n\nThe platform in one page.")
	writeDoc(t, root, "backend/api_design.md", "# API Design\n\nResources are nouns.")
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.md"), []byte{0xc3, 0x28}, 0o644))

	l, err := loader.New(loader.DefaultConfig(root))
	require.NoError(t, err)
	return l
}

func TestPipeline_Run(t *testing.T) {
	l := newKnowledgeBase(t)
	sink := newMemorySink()
	rec := new(MockRecorder)

	rec.On("RecordFailure", mock.Anything, mock.Anything, mock.MatchedBy(func(p string) bool {
		return filepath.Base(p) == "broken.md"
	}), mock.MatchedBy(func(err error) bool {
		return errors.Is(err, document.ErrValidation)
	})).Return(nil).Once()
	rec.On("RecordRun", mock.Anything, mock.MatchedBy(func(r ingest.Report) bool {
		return r.FilesSeen == 3 && r.FilesFailed == 1
	})).Return(nil).Once()

	report, err := ingest.NewPipeline(l, sink, rec).Run(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, l.Root(), report.Root)
	assert.Equal(t, 3, report.FilesSeen)
	assert.Equal(t, 1, report.FilesFailed)
	assert.Equal(t, 2, report.ChunksProduced)
	assert.Equal(t, 2, report.ChunksStored)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Error, document.ReasonEncoding)

	require.Contains(t, sink.puts, "backend/api_design.md")
	require.Contains(t, sink.puts, "overview.md")
	r := sink.puts["backend/api_design.md"][0]
	assert.Equal(t, ingest.ChunkID("backend/api_design.md", r.Text), r.ID)
	assert.Equal(t, "API Design", r.Metadata["title"])
	assert.Equal(t, "backend", r.Metadata["category"])
	rec.AssertExpectations(t)
}

func TestPipeline_Run_Idempotent(t *testing.T) {
	l := newKnowledgeBase(t)
	first, second := newMemorySink(), newMemorySink()

	_, err := ingest.NewPipeline(l, first, nil).Run(context.Background())
	require.NoError(t, err)
	_, err = ingest.NewPipeline(l, second, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.puts, second.puts)
}

func TestPipeline_Run_SinkFailureIsPerFile(t *testing.T) {
	l := newKnowledgeBase(t)
	sink := newMemorySink()
	sink.err = errors.New("store unavailable")

	report, err := ingest.NewPipeline(l, sink, nil).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.FilesFailed)
	assert.Equal(t, 0, report.ChunksStored)
	assert.Equal(t, 2, report.ChunksProduced)
}

func TestPipeline_Run_Cancelled(t *testing.T) {
	l := newKnowledgeBase(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := ingest.NewPipeline(l, newMemorySink(), nil).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.FilesSeen)
}

func TestPipeline_Run_RecorderErrorsAreNotFatal(t *testing.T) {
	l := newKnowledgeBase(t)
	rec := new(MockRecorder)
	rec.On("RecordFailure", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))
	rec.On("RecordRun", mock.Anything, mock.Anything).Return(errors.New("db down"))

	report, err := ingest.NewPipeline(l, newMemorySink(), rec).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.FilesFailed)
}

func TestPipeline_IngestFile(t *testing.T) {
	l := newKnowledgeBase(t)
	sink := newMemorySink()
	p := ingest.NewPipeline(l, sink, nil)

	path := filepath.Join(l.Root(), "backend", "api_design.md")
	n, err := p.IngestFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, sink.puts["backend/api_design.md"], 1)

	_, err = p.IngestFile(context.Background(), filepath.Join(l.Root(), "broken.md"))
	assert.ErrorIs(t, err, document.ErrValidation)
}

func TestPipeline_ForgetFile(t *testing.T) {
	l := newKnowledgeBase(t)
	sink := newMemorySink()
	p := ingest.NewPipeline(l, sink, nil)

	require.NoError(t, p.ForgetFile(context.Background(), filepath.Join(l.Root(), "deleted.md")))
	records, ok := sink.puts["deleted.md"]
	assert.True(t, ok)
	assert.Empty(t, records)

	assert.Error(t, p.ForgetFile(context.Background(), filepath.Join(t.TempDir(), "elsewhere.md")))
}
