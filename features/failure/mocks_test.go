package failure_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"softarchitect/apps/ingest/features/failure"
)

// MockRepo implements failure.Repository
type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Save(ctx context.Context, f *failure.Failure) error {
	return m.Called(ctx, f).Error(0)
}

func (m *MockRepo) List(ctx context.Context) ([]failure.Failure, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]failure.Failure), args.Error(1)
}

func (m *MockRepo) Get(ctx context.Context, id string) (*failure.Failure, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*failure.Failure), args.Error(1)
}

func (m *MockRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepo) DeleteStale(ctx context.Context, runID string) (int64, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRepo) IncrementRetries(ctx context.Context, id, errMsg string) error {
	return m.Called(ctx, id, errMsg).Error(0)
}

func (m *MockRepo) SaveRun(ctx context.Context, run *failure.Run) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockRepo) LatestRun(ctx context.Context) (*failure.Run, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*failure.Run), args.Error(1)
}

type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) IngestFile(ctx context.Context, path string) (int, error) {
	args := m.Called(ctx, path)
	return args.Int(0), args.Error(1)
}
