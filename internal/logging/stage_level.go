package logging

import (
	"context"
	"log/slog"
)

// minLevelHandler drops records below min before they reach next. New builds
// the underlying handler at the most verbose configured level, so a stage
// override can lower the threshold as well as raise it.
type minLevelHandler struct {
	next slog.Handler
	min  slog.Level
}

func (h minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.next.Enabled(ctx, level)
}

func (h minLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.min {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return minLevelHandler{next: h.next.WithAttrs(attrs), min: h.min}
}

func (h minLevelHandler) WithGroup(name string) slog.Handler {
	return minLevelHandler{next: h.next.WithGroup(name), min: h.min}
}

// ForStage applies the override configured for stage (a status name such as
// "translating"), if any.
func ForStage(logger *slog.Logger, overrides map[string]string, stage string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if level := overrides[stage]; level != "" {
		return WithLevelOverride(logger, parseLevel(level))
	}
	return logger
}

// WithLevelOverride returns logger with its minimum level replaced by level.
// Attributes already attached to logger are kept.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	next := logger.Handler()
	if existing, ok := next.(minLevelHandler); ok {
		next = existing.next
	}
	return slog.New(minLevelHandler{next: next, min: level})
}
