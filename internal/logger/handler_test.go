package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"softarchitect/apps/ingest/internal/middleware"
)

func TestContextHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	jsonHandler := slog.NewJSONHandler(&buf, nil)
	h := NewContextHandler(jsonHandler)
	logger := slog.New(h)

	ctx := context.Background()
	ctx = middleware.WithCorrelationID(ctx, "test-correlation-id")
	ctx = middleware.WithRunID(ctx, "run-42")

	logger.InfoContext(ctx, "test message")

	var logMap map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logMap); err != nil {
		t.Fatalf("failed to unmarshal log: %v", err)
	}

	if logMap["correlation_id"] != "test-correlation-id" {
		t.Errorf("expected correlation_id 'test-correlation-id', got %v", logMap["correlation_id"])
	}
	if logMap["run_id"] != "run-42" {
		t.Errorf("expected run_id 'run-42', got %v", logMap["run_id"])
	}
}

func TestContextHandler_WithAttrsKeepsContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug").With("component", "loader")

	logger.DebugContext(middleware.WithRunID(context.Background(), "r1"), "walk")

	var logMap map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logMap))
	assert.Equal(t, "loader", logMap["component"])
	assert.Equal(t, "r1", logMap["run_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
