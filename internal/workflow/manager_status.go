package workflow

import (
	"context"
	"fmt"

	"bisub/internal/logging"
	"bisub/internal/profiler"
	"bisub/internal/queue"
	"bisub/internal/services"
	"bisub/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     int
	ActiveJobs  int
	LastError   string
	LastJob     *queue.Job
	QueueStats  map[queue.Status]int
	StageHealth map[string]stage.Health
	Profile     profiler.Profile
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	active := len(m.active)
	stages := append([]pipelineStage(nil), m.stageOrder...)
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:     running,
		Workers:     m.workers,
		ActiveJobs:  active,
		QueueStats:  stats,
		StageHealth: health,
		Profile:     m.profile,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

// ErrorSummary describes why a job failed and whether a retry can resume.
type ErrorSummary struct {
	Stage         queue.Status
	Kind          string
	Message       string
	PartialOutput bool
	Resumable     bool
	ResumeFrom    queue.Status
}

// JobStatus is the polling view of a job.
type JobStatus struct {
	ID       int64
	Status   queue.Status
	Stage    string
	Progress float64
	Message  string
	Terminal bool
	// Warnings lists entries that degraded to source text.
	Warnings     []queue.Warning
	Error        *ErrorSummary
	SubtitlePath string
	OutputPath   string
}

// Poll reports a job's stage, progress, and outcome.
func (m *Manager) Poll(ctx context.Context, id int64) (JobStatus, error) {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return JobStatus{}, err
	}
	if job == nil {
		return JobStatus{}, services.Wrap(services.ErrNotFound, "poll", "load job", fmt.Sprintf("job %d not found", id), nil)
	}
	return StatusOf(job), nil
}

// StatusOf builds the polling view of job.
func StatusOf(job *queue.Job) JobStatus {
	st := JobStatus{
		ID:           job.ID,
		Status:       job.Status,
		Stage:        job.ProgressStage,
		Progress:     job.ProgressPercent / 100,
		Message:      job.ProgressMessage,
		Terminal:     queue.IsTerminal(job.Status),
		Warnings:     append([]queue.Warning(nil), job.Warnings...),
		SubtitlePath: job.SubtitlePath,
		OutputPath:   job.OutputPath,
	}
	if st.Stage == "" {
		st.Stage = stageLabel(job.Status)
	}
	if job.Status == queue.StatusFailed {
		st.Error = &ErrorSummary{
			Stage:         job.FailedStage,
			Kind:          job.ErrorKind,
			Message:       job.ErrorMessage,
			PartialOutput: job.PartialOutput,
			Resumable:     job.Resumable(),
			ResumeFrom:    job.ResumeFrom,
		}
	}
	return st
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
