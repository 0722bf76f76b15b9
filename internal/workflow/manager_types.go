package workflow

import (
	"bisub/internal/queue"
	"bisub/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Extractor    stage.Handler
	Recognizer   stage.Handler
	Translator   stage.Handler
	Synchronizer stage.Handler
	Muxer        stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	// exclusive stages hold the accelerator semaphore while they run.
	exclusive bool
}
