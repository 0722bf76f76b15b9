package stage

import (
	"context"

	"bisub/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
// Prepare validates that the job carries the checkpoint the stage consumes;
// Execute performs the work and records the stage's checkpoint on the job.
// The manager persists the job after each call.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}
