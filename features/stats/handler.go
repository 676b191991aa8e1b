package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"softarchitect/apps/ingest/features/failure"
	"softarchitect/apps/ingest/internal/middleware"
)

type FailureRepo interface {
	Count(ctx context.Context) (int, error)
	LatestRun(ctx context.Context) (*failure.Run, error)
}

type VectorStore interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	failureRepo FailureRepo
	vectorStore VectorStore
}

func NewHandler(f FailureRepo, v VectorStore) *Handler {
	return &Handler{failureRepo: f, vectorStore: v}
}

type StatsResponse struct {
	Chunks      int          `json:"chunks"`
	FailedFiles int          `json:"failed_files"`
	LastRun     *failure.Run `json:"last_run"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	chunks, err := h.vectorStore.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}

	failed, err := h.failureRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count failures", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count failures", http.StatusInternalServerError)
		return
	}

	// No run yet is not an error.
	run, err := h.failureRepo.LatestRun(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		slog.ErrorContext(ctx, "failed to load latest run", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to load latest run", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Chunks:      chunks,
		FailedFiles: failed,
		LastRun:     run,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
