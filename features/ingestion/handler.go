package ingestion

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"softarchitect/apps/ingest/internal/ingest"
	"softarchitect/apps/ingest/internal/middleware"
)

type Runner interface {
	Run(ctx context.Context) (*ingest.Report, error)
}

// Handler triggers full ingestion runs. Only one run executes at a time.
type Handler struct {
	runner Runner
	mu     sync.Mutex
}

func NewHandler(r Runner) *Handler {
	return &Handler{runner: r}
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	if !h.mu.TryLock() {
		h.writeError(ctx, w, "CONFLICT", "an ingestion run is already in progress", http.StatusConflict)
		return
	}
	defer h.mu.Unlock()

	slog.InfoContext(ctx, "ingestion requested", "correlationId", correlationID)

	report, err := h.runner.Run(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "ingestion run failed", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": report}); err != nil {
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
