package failure

import (
	"context"
	"log/slog"

	"softarchitect/apps/ingest/internal/ingest"
)

// Recorder persists pipeline outcomes. It satisfies ingest.FailureRecorder.
type Recorder struct {
	repo Repository
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) RecordFailure(ctx context.Context, runID, path string, cause error) error {
	return r.repo.Save(ctx, newFailure(runID, path, cause))
}

// RecordRun stores the run summary. A completed run revisited every file,
// so failures left over from earlier runs no longer apply and are dropped.
func (r *Recorder) RecordRun(ctx context.Context, report ingest.Report) error {
	run := &Run{
		ID:             report.RunID,
		Root:           report.Root,
		FilesSeen:      report.FilesSeen,
		FilesFailed:    report.FilesFailed,
		ChunksProduced: report.ChunksProduced,
		ChunksStored:   report.ChunksStored,
		StartedAt:      report.StartedAt,
		DurationMs:     report.Duration.Milliseconds(),
	}
	if err := r.repo.SaveRun(ctx, run); err != nil {
		return err
	}

	n, err := r.repo.DeleteStale(ctx, report.RunID)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.InfoContext(ctx, "cleared resolved failures", "count", n)
	}
	return nil
}
