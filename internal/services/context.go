package services

import "context"

// Job metadata travels on the context so log records and errors can name the
// job and stage without threading them through every call.
type ctxKey int

const (
	ctxJobID ctxKey = iota
	ctxStage
	ctxWorker
	ctxRequestID
)

func withString(ctx context.Context, key ctxKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key ctxKey) (string, bool) {
	value, _ := ctx.Value(key).(string)
	return value, value != ""
}

// WithJobID tags ctx with a queue job id.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxJobID, id)
}

// JobIDFromContext returns the job id set by WithJobID.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxJobID).(int64)
	return id, ok
}

// WithStage tags ctx with the pipeline stage being run. Empty names are
// ignored.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, ctxStage, stage)
}

// StageFromContext returns the stage set by WithStage.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, ctxStage)
}

// WithWorker tags ctx with the pool worker running the job.
func WithWorker(ctx context.Context, worker string) context.Context {
	return withString(ctx, ctxWorker, worker)
}

// WorkerFromContext returns the worker set by WithWorker.
func WorkerFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, ctxWorker)
}

// WithRequestID tags ctx with the id correlating one stage attempt's logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, ctxRequestID, id)
}

// RequestIDFromContext returns the id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, ctxRequestID)
}
