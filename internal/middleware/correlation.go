package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type key int

const (
	CorrelationKey key = iota
	RunKey
)

const CorrelationHeader = "X-Correlation-ID"

func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = uuid.New().String()
		}

		ctx := WithCorrelationID(r.Context(), id)
		w.Header().Set(CorrelationHeader, id)

		slog.Info("request received", "method", r.Method, "path", r.URL.Path, "correlation_id", id) // #nosec G706 -- r.URL.Path is parsed by net/http
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		slog.Info("request completed", "method", r.Method, "path", r.URL.Path, "correlation_id", id, "duration", time.Since(start)) // #nosec G706
	})
}

func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationKey).(string); ok {
		return id
	}
	return "unknown"
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationKey, id)
}

// WithRunID tags ctx with the id of the ingestion run it belongs to.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunKey, id)
}

// GetRunID returns the ingestion run id carried by ctx, or "".
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunKey).(string); ok {
		return id
	}
	return ""
}
