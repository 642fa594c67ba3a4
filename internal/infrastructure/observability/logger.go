package observability

import (
	"context"
	"log/slog"
	"os"
)

type loggerKey struct{}

func InitLogger(level string) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	slog.SetDefault(slog.New(handler))
}

// parseLevel accepts slog level names such as "debug" or "warn+2" and falls
// back to info.
func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		slog.Warn("unknown log level, using info", "level", level)
		return slog.LevelInfo
	}
	return l
}

// WithContext stores a logger carrying attrs in ctx.
func WithContext(ctx context.Context, attrs ...any) context.Context {
	return context.WithValue(ctx, loggerKey{}, LoggerFromContext(ctx).With(attrs...))
}

// LoggerFromContext returns the request-scoped logger, or the default one.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
