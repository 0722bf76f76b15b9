package workflow

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bisub/internal/logging"
	"bisub/internal/queue"
	"bisub/internal/services"
)

// stageContext tags ctx with the job, the stage it is entering, and the id
// shared by every log line of this attempt.
func stageContext(ctx context.Context, processing queue.Status, job *queue.Job, requestID string) context.Context {
	if job != nil {
		ctx = services.WithJobID(ctx, job.ID)
	}
	ctx = services.WithStage(ctx, string(processing))
	return services.WithRequestID(ctx, requestID)
}

// stageLogger applies the per-stage level override, if one is configured.
func (m *Manager) stageLogger(ctx context.Context) *slog.Logger {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(m.logger, "workflow-stage"))
	name, ok := services.StageFromContext(ctx)
	if !ok || m.cfg == nil {
		return logger
	}
	return logging.ForStage(logger, m.cfg.Logging.StageOverrides, name)
}

// stageLabel turns a status into the display label shown while polling,
// e.g. "translating" becomes "Translating".
func stageLabel(status queue.Status) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(status), "_", " "))
}
