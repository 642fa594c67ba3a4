package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"error+2": slog.LevelError + 2,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestLoggerFromContext(t *testing.T) {
	assert.Same(t, slog.Default(), LoggerFromContext(context.Background()))

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := context.WithValue(context.Background(), loggerKey{}, base)
	ctx = WithContext(ctx, "request_id", "r-1")
	ctx = WithContext(ctx, "service", "promos")

	LoggerFromContext(ctx).Info("hello")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "r-1", entry["request_id"])
	assert.Equal(t, "promos", entry["service"])
}
