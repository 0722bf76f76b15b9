package workflow

import "bisub/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
// Stages left nil are not claimed; jobs waiting on them stay in their start
// status.
func (m *Manager) ConfigureStages(set StageSet) {
	candidates := []pipelineStage{
		{name: "extractor", handler: set.Extractor, startStatus: queue.StatusQueued},
		{name: "recognizer", handler: set.Recognizer, startStatus: queue.StatusExtracted, exclusive: true},
		{name: "translator", handler: set.Translator, startStatus: queue.StatusRecognized},
		{name: "synchronizer", handler: set.Synchronizer, startStatus: queue.StatusTranslated},
		{name: "muxer", handler: set.Muxer, startStatus: queue.StatusSynchronized},
	}

	stages := make(map[queue.Status]pipelineStage, len(candidates))
	order := make([]pipelineStage, 0, len(candidates))
	for _, stg := range candidates {
		if stg.handler == nil {
			continue
		}
		processing, ok := queue.ProcessingStatusFor(stg.startStatus)
		if !ok {
			continue
		}
		stg.processingStatus = processing
		stages[stg.startStatus] = stg
		order = append(order, stg)
	}

	m.mu.Lock()
	m.stages = stages
	m.stageOrder = order
	m.mu.Unlock()
}

// claimable returns the start statuses a worker may claim. Exclusive stages
// are included only when the caller holds the accelerator.
func (m *Manager) claimable(holdsAccelerator bool) []queue.Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]queue.Status, 0, len(m.stageOrder))
	for _, stg := range m.stageOrder {
		if stg.exclusive && !holdsAccelerator {
			continue
		}
		out = append(out, stg.startStatus)
	}
	return out
}

func (m *Manager) stageForProcessing(status queue.Status) (pipelineStage, bool) {
	start, ok := queue.RollbackStatusFor(status)
	if !ok {
		return pipelineStage{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stages[start]
	return stg, ok
}
