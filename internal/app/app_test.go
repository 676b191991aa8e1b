package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"softarchitect/apps/ingest/internal/app"
	"softarchitect/apps/ingest/internal/config"
	"softarchitect/apps/ingest/internal/retrieval"
)

// memoryStore is an in-memory app.VectorStore.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string]map[string]any
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string]map[string]any)}
}

func (s *memoryStore) Upsert(ctx context.Context, id, text string, metadata map[string]any, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := map[string]any{"content": text}
	for k, v := range metadata {
		obj[k] = v
	}
	s.objects[id] = obj
	return nil
}

func (s *memoryStore) DeleteBySource(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, obj := range s.objects {
		if obj["filepath"] == source {
			delete(s.objects, id)
		}
	}
	return nil
}

func (s *memoryStore) Search(ctx context.Context, query string, vector []float32, alpha float32, limit int, filters map[string]interface{}) ([]retrieval.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []retrieval.SearchResult
	for id, obj := range s.objects {
		if len(out) == limit {
			break
		}
		content, _ := obj["content"].(string)
		out = append(out, retrieval.SearchResult{ID: id, Content: content, Score: 1, Metadata: obj})
	}
	return out, nil
}

func (s *memoryStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects), nil
}

func (s *memoryStore) EnsureSchema(ctx context.Context) error { return nil }

type constEmbedder struct{}

func (constEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "backend"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "backend", "error_handling.md"),
		[]byte("# Error Handling\n\nWrap errors with context.\n\n## Sentinels\n\nCompare with errors.Is.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.md"),
		[]byte("# Readme\n\nTop level notes.\n"), 0o644))

	return &config.Config{
		KBRoot:               root,
		MaxChunkSize:         2000,
		MinChunkSize:         0,
		ValidateSecurity:     true,
		MaxFileSizeBytes:     1 << 20,
		MaxDepth:             10,
		IngestMode:           config.IngestModeDirect,
		IngestionConcurrency: 2,
		SearchAlpha:          0.5,
		QueryLogPath:         filepath.Join(t.TempDir(), "query.log"),
		ServerPort:           0,
	}
}

func TestNew(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a, err := app.New(testConfig(t), db, newMemoryStore(), constEmbedder{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, a.Handler)
	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.EmbedderConsumer)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNew_MissingRoot(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig(t)
	cfg.KBRoot = filepath.Join(cfg.KBRoot, "missing")

	_, err = app.New(cfg, db, newMemoryStore(), constEmbedder{}, nil)
	assert.Error(t, err)
}

func TestNew_QueueModeNeedsPublisher(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig(t)
	cfg.IngestMode = config.IngestModeQueue

	_, err = app.New(cfg, db, newMemoryStore(), constEmbedder{}, nil)
	assert.ErrorIs(t, err, config.ErrInvalidValue)
}

func TestRoutes_IngestThenStatsAndSearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := newMemoryStore()
	a, err := app.New(testConfig(t), db, store, constEmbedder{}, nil)
	require.NoError(t, err)

	// POST /ingest
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ingest_runs")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM ingest_failures WHERE run_id <> $1")).WillReturnResult(sqlmock.NewResult(0, 0))

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest("POST", "/ingest", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))

	var ingestResp struct {
		Data struct {
			FilesSeen    int `json:"files_seen"`
			FilesFailed  int `json:"files_failed"`
			ChunksStored int `json:"chunks_stored"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ingestResp))
	assert.Equal(t, 2, ingestResp.Data.FilesSeen)
	assert.Zero(t, ingestResp.Data.FilesFailed)

	stored, _ := store.Count(context.Background())
	assert.Equal(t, stored, ingestResp.Data.ChunksStored)
	assert.Positive(t, stored)

	// GET /stats
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM ingest_failures")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM ingest_runs ORDER BY started_at DESC LIMIT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "root", "files_seen", "files_failed", "chunks_produced", "chunks_stored", "started_at", "duration_ms"}))

	w = httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var statsResp struct {
		Data struct {
			Chunks int `json:"chunks"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &statsResp))
	assert.Equal(t, stored, statsResp.Data.Chunks)

	// GET /search
	w = httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/search?q=errors&k=1", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"count":1`)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a, err := app.New(testConfig(t), db, newMemoryStore(), constEmbedder{}, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest("GET", "/ingest", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
