package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestFromContext_AddsIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = WithRunID(ctx, "run-1")
	WithFields(ctx, "rows", 3).Info("export finished")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.EqualValues(t, 3, entry["rows"])
	assert.Equal(t, "export finished", entry["msg"])
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "warn", "text").Info("hidden")
	assert.Empty(t, buf.String())
}

func TestRunID_Empty(t *testing.T) {
	assert.Equal(t, "", RunID(context.Background()))
}
