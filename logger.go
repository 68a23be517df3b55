package weave

import (
	"context"
	"log/slog"
)

// Logger receives lifecycle events from registration and resolution,
// generalizing the teacher's OnServiceResolved/OnServiceError
// callback-option pair into a small leveled interface any structured
// logger can satisfy. The default implementation is backed by
// log/slog; nothing else in this corpus carries a third-party
// structured-logging dependency to wire in its place (see DESIGN.md).
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}

type slogLogger struct{ l *slog.Logger }

// NewSlogLogger adapts l to the Logger interface.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(ctx context.Context, msg string, args ...any) { s.l.DebugContext(ctx, msg, args...) }
func (s *slogLogger) Info(ctx context.Context, msg string, args ...any)  { s.l.InfoContext(ctx, msg, args...) }
func (s *slogLogger) Warn(ctx context.Context, msg string, args ...any)  { s.l.WarnContext(ctx, msg, args...) }
func (s *slogLogger) Error(ctx context.Context, msg string, args ...any) { s.l.ErrorContext(ctx, msg, args...) }

// NewNoopLogger returns a Logger that discards every event, for
// callers that want to opt out of the slog default entirely instead
// of raising its level.
func NewNoopLogger() Logger { return noopLogger{} }

// noopLogger discards every event; matches the teacher's nil-safe
// callback pattern without paying slog's formatting cost when unused.
type noopLogger struct{}

func (noopLogger) Debug(context.Context, string, ...any) {}
func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}
