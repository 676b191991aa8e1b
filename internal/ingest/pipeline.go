package ingest

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"softarchitect/apps/ingest/internal/document"
	"softarchitect/apps/ingest/internal/loader"
	"softarchitect/apps/ingest/internal/middleware"
)

// Source is the document side of the pipeline; *loader.Loader satisfies it.
type Source interface {
	Root() string
	LoadFiles(ctx context.Context) iter.Seq[loader.FileResult]
	LoadOne(path string) ([]document.Chunk, error)
	RelPath(path string) (string, error)
}

type FileFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Report summarizes one ingestion run.
type Report struct {
	RunID          string        `json:"run_id"`
	Root           string        `json:"root"`
	FilesSeen      int           `json:"files_seen"`
	FilesFailed    int           `json:"files_failed"`
	ChunksProduced int           `json:"chunks_produced"`
	ChunksStored   int           `json:"chunks_stored"`
	Failures       []FileFailure `json:"failures,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

type Pipeline struct {
	source   Source
	sink     Sink
	recorder FailureRecorder
}

// NewPipeline wires a source to a sink. recorder may be nil.
func NewPipeline(src Source, sink Sink, recorder FailureRecorder) *Pipeline {
	return &Pipeline{source: src, sink: sink, recorder: recorder}
}

// Run ingests every discovered file. Failing files are reported and skipped;
// only cancellation aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		Root:      p.source.Root(),
		StartedAt: time.Now().UTC(),
	}
	ctx = middleware.WithRunID(ctx, report.RunID)
	slog.InfoContext(ctx, "ingestion run started", "root", report.Root)

	for res := range p.source.LoadFiles(ctx) {
		report.FilesSeen++
		if res.Err != nil {
			p.fail(ctx, report, res.Path, res.Err)
			continue
		}
		report.ChunksProduced += len(res.Chunks)

		source, err := p.source.RelPath(res.Path)
		if err != nil {
			p.fail(ctx, report, res.Path, err)
			continue
		}
		if err := p.sink.Put(ctx, source, toRecords(res.Chunks)); err != nil {
			p.fail(ctx, report, res.Path, fmt.Errorf("sink: %w", err))
			continue
		}
		report.ChunksStored += len(res.Chunks)
	}
	report.Duration = time.Since(report.StartedAt)

	if err := ctx.Err(); err != nil {
		slog.WarnContext(ctx, "ingestion run cancelled", "files_seen", report.FilesSeen, "error", err)
		return report, err
	}

	if p.recorder != nil {
		if err := p.recorder.RecordRun(ctx, *report); err != nil {
			slog.WarnContext(ctx, "failed to record ingestion run", "error", err)
		}
	}

	slog.InfoContext(ctx, "ingestion run completed",
		"files_seen", report.FilesSeen,
		"files_failed", report.FilesFailed,
		"chunks_produced", report.ChunksProduced,
		"chunks_stored", report.ChunksStored,
		"duration", report.Duration,
	)
	return report, nil
}

func (p *Pipeline) fail(ctx context.Context, report *Report, path string, err error) {
	report.FilesFailed++
	report.Failures = append(report.Failures, FileFailure{Path: path, Error: err.Error()})
	slog.ErrorContext(ctx, "failed to ingest document", "path", path, "error", err)

	if p.recorder == nil || ctx.Err() != nil {
		return
	}
	if rerr := p.recorder.RecordFailure(ctx, report.RunID, path, err); rerr != nil {
		slog.WarnContext(ctx, "failed to record ingestion failure", "path", path, "error", rerr)
	}
}

// IngestFile loads a single file and replaces its chunks in the sink. It
// returns the number of chunks stored.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	chunks, err := p.source.LoadOne(path)
	if err != nil {
		return 0, err
	}
	source, err := p.source.RelPath(path)
	if err != nil {
		return 0, err
	}
	if err := p.sink.Put(ctx, source, toRecords(chunks)); err != nil {
		return 0, fmt.Errorf("sink: %w", err)
	}
	slog.InfoContext(ctx, "document ingested", "source", source, "chunks", len(chunks))
	return len(chunks), nil
}

// ForgetFile removes everything the sink holds for path.
func (p *Pipeline) ForgetFile(ctx context.Context, path string) error {
	source, err := p.source.RelPath(path)
	if err != nil {
		return err
	}
	if err := p.sink.Put(ctx, source, nil); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	slog.InfoContext(ctx, "document removed", "source", source)
	return nil
}
