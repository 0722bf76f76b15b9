package logging

import (
	"context"
	"log/slog"

	"bisub/internal/services"
)

// Canonical attribute keys shared by every component.
const (
	FieldComponent      = "component"
	FieldJobID          = "job_id"
	FieldStage          = "stage"
	FieldWorker         = "worker"
	FieldCorrelationID  = "correlation_id"
	FieldEventType      = "event_type"
	FieldError          = "error"
	FieldErrorKind      = "error_kind"
	FieldErrorOperation = "error_operation"
	FieldErrorHint      = "error_hint"
	FieldAttempt        = "attempt"
)

var contextExtractors = []func(context.Context) (slog.Attr, bool){
	func(ctx context.Context) (slog.Attr, bool) {
		id, ok := services.JobIDFromContext(ctx)
		return slog.Int64(FieldJobID, id), ok
	},
	func(ctx context.Context) (slog.Attr, bool) {
		stage, ok := services.StageFromContext(ctx)
		return slog.String(FieldStage, stage), ok
	},
	func(ctx context.Context) (slog.Attr, bool) {
		worker, ok := services.WorkerFromContext(ctx)
		return slog.String(FieldWorker, worker), ok
	},
	func(ctx context.Context) (slog.Attr, bool) {
		rid, ok := services.RequestIDFromContext(ctx)
		return slog.String(FieldCorrelationID, rid), ok
	},
}

// ContextFields returns the job, stage, worker, and correlation attributes
// carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, extract := range contextExtractors {
		if attr, ok := extract(ctx); ok {
			fields = append(fields, attr)
		}
	}
	return fields
}

// WithContext tags logger with the fields carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}

// ErrorAttrs expands a classified error into the error, kind, operation, and
// hint fields.
func ErrorAttrs(err error) []Attr {
	if err == nil {
		return nil
	}
	details := services.Details(err)
	attrs := []Attr{Error(err), String(FieldErrorKind, details.Kind)}
	if details.Operation != "" {
		attrs = append(attrs, String(FieldErrorOperation, details.Operation))
	}
	if details.Hint != "" {
		attrs = append(attrs, String(FieldErrorHint, details.Hint))
	}
	return attrs
}
