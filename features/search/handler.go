package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"softarchitect/apps/ingest/internal/middleware"
	"softarchitect/apps/ingest/internal/retrieval"
)

const maxK = 50

type Searcher interface {
	Search(ctx context.Context, query string, k int, opts *retrieval.SearchOptions) ([]retrieval.SearchResult, error)
}

type Handler struct {
	searcher Searcher
}

func NewHandler(s Searcher) *Handler {
	return &Handler{searcher: s}
}

// Search serves GET /search?q=&k=&category=&alpha=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "q is required", http.StatusBadRequest)
		return
	}

	k := retrieval.DefaultTopK
	if raw := q.Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxK {
			h.writeError(ctx, w, "VALIDATION_ERROR", "k must be between 1 and 50", http.StatusBadRequest)
			return
		}
		k = n
	}

	opts := &retrieval.SearchOptions{Category: q.Get("category")}
	if raw := q.Get("alpha"); raw != "" {
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil || f < 0 || f > 1 {
			h.writeError(ctx, w, "VALIDATION_ERROR", "alpha must be between 0 and 1", http.StatusBadRequest)
			return
		}
		alpha := float32(f)
		opts.Alpha = &alpha
	}

	results, err := h.searcher.Search(ctx, query, k, opts)
	if err != nil {
		if errors.Is(err, retrieval.ErrInvalidQuery) {
			h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
			return
		}
		slog.ErrorContext(ctx, "search failed", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "search failed", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []retrieval.SearchResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": results,
		"meta": map[string]int{"count": len(results)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
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
