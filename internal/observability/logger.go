package observability

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey string

const (
	ctxKeyDispatchID ctxKey = "dispatch_id"
)

// basic global logger, JSON to stderr so the chat REPL keeps stdout.
var logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

func Logger() *slog.Logger {
	return logger
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return logger.With(kv...)
}

// WithDispatchID stores a dispatch_id in the context so every log line of
// one exchange can be correlated.
func WithDispatchID(ctx context.Context, dispatchID string) context.Context {
	return context.WithValue(ctx, ctxKeyDispatchID, dispatchID)
}

// LoggerFromContext adds dispatch_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	id, _ := ctx.Value(ctxKeyDispatchID).(string)
	if id == "" {
		return logger
	}
	return logger.With("dispatch_id", id)
}
