package failure

import (
	"context"
	"log/slog"
)

// Reingester loads one file again and replaces its chunks.
type Reingester interface {
	IngestFile(ctx context.Context, path string) (int, error)
}

type Service struct {
	repo     Repository
	ingester Reingester
}

func NewService(repo Repository, ingester Reingester) *Service {
	return &Service{repo: repo, ingester: ingester}
}

func (s *Service) List(ctx context.Context) ([]Failure, error) {
	return s.repo.List(ctx)
}

// Retry ingests the failed file again. On success the failure is removed;
// otherwise its retry counter grows and the new error is returned.
func (s *Service) Retry(ctx context.Context, id string) (int, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	chunks, ingestErr := s.ingester.IngestFile(ctx, f.Path)
	if ingestErr != nil {
		if err := s.repo.IncrementRetries(ctx, id, ingestErr.Error()); err != nil {
			slog.WarnContext(ctx, "failed to update retry count", "id", id, "error", err)
		}
		return 0, ingestErr
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return chunks, err
	}
	return chunks, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) LatestRun(ctx context.Context) (*Run, error) {
	return s.repo.LatestRun(ctx)
}
