package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued        Status = "queued"
	StatusExtracting    Status = "extracting"
	StatusExtracted     Status = "extracted"
	StatusRecognizing   Status = "recognizing"
	StatusRecognized    Status = "recognized"
	StatusTranslating   Status = "translating"
	StatusTranslated    Status = "translated"
	StatusSynchronizing Status = "synchronizing"
	StatusSynchronized  Status = "synchronized"
	StatusMuxing        Status = "muxing"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

// CancelReason is the error message recorded on jobs stopped by request.
const CancelReason = "Cancelled by request"

var allStatuses = []Status{
	StatusQueued,
	StatusExtracting,
	StatusExtracted,
	StatusRecognizing,
	StatusRecognized,
	StatusTranslating,
	StatusTranslated,
	StatusSynchronizing,
	StatusSynchronized,
	StatusMuxing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// stageRollback maps each processing status to the status holding the
// checkpoint it consumes.
var stageRollback = map[Status]Status{
	StatusExtracting:    StatusQueued,
	StatusRecognizing:   StatusExtracted,
	StatusTranslating:   StatusRecognized,
	StatusSynchronizing: StatusTranslated,
	StatusMuxing:        StatusSynchronized,
}

var processingFor = func() map[Status]Status {
	m := make(map[Status]Status, len(stageRollback))
	for processing, start := range stageRollback {
		m[start] = processing
	}
	return m
}()

// Style carries burn-in styling for a job.
type Style struct {
	FontSize     int    `json:"font_size"`
	FontColor    string `json:"font_color"`
	OutlineColor string `json:"outline_color"`
	OutlineWidth int    `json:"outline_width"`
}

// Options is the configuration a job was submitted with.
type Options struct {
	Mode           string `json:"mode"`
	BurnIn         bool   `json:"burn_in"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language,omitempty"`
	Model          string `json:"model,omitempty"`
	Style          Style  `json:"style"`
}

// Warning records a non-fatal problem, such as an entry that degraded to
// source-only because its translation failed.
type Warning struct {
	SegmentIndex int    `json:"segment_index"`
	Stage        string `json:"stage"`
	Message      string `json:"message"`
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Waiting    int
	Processing int
	Failed     int
	Completed  int
}

// Job is the persisted record of one pipeline run.
type Job struct {
	ID         int64
	InputPath  string
	InputBytes int64
	Options    Options
	Status     Status

	// Checkpoints, one group per completed stage.
	MediaDuration    time.Duration
	AudioPath        string
	SourceLanguage   string
	SegmentsJSON     string
	TranslationsJSON string
	SubtitlePath     string
	OutputPath       string

	Warnings []Warning

	ErrorMessage    string
	ErrorKind       string
	FailedStage     Status
	ResumeFrom      Status
	PartialOutput   bool
	CancelRequested bool

	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string

	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := stageRollback[status]
	return ok
}

// IsTerminal reports whether status ends the job lifecycle.
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// ProcessingStatusFor returns the in-flight status a job enters when a
// worker picks it up from start.
func ProcessingStatusFor(start Status) (Status, bool) {
	processing, ok := processingFor[start]
	return processing, ok
}

// RollbackStatusFor returns the checkpoint status a processing stage resumes from.
func RollbackStatusFor(processing Status) (Status, bool) {
	start, ok := stageRollback[processing]
	return start, ok
}

// IsProcessing returns true when the job is inside a stage.
func (j Job) IsProcessing() bool {
	return IsProcessingStatus(j.Status)
}

// Resumable reports whether a retry skips at least one completed stage.
func (j Job) Resumable() bool {
	return j.ResumeFrom != "" && j.ResumeFrom != StatusQueued
}

// CheckpointInStaging reports whether resuming at status reads files from
// the job's staging directory rather than the job record.
func CheckpointInStaging(status Status) bool {
	return status == StatusExtracted
}

// HoldsStaging reports whether the job may still read its staging
// directory: it is unfinished, or it failed and resumes from staged audio.
func (j Job) HoldsStaging() bool {
	if !IsTerminal(j.Status) {
		return true
	}
	return j.Status == StatusFailed && CheckpointInStaging(j.ResumeFrom)
}

// InitProgress resets progress fields for a new stage attempt.
func (j *Job) InitProgress(stage, message string) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = 0
}

// SetProgress updates all three progress fields together.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (j *Job) SetProgressComplete(stage, message string) {
	j.SetProgress(stage, message, 100)
}

// AddWarning appends a non-fatal warning.
func (j *Job) AddWarning(w Warning) {
	j.Warnings = append(j.Warnings, w)
}

// ClearWarnings drops warnings reported by stage so a re-run does not
// duplicate them.
func (j *Job) ClearWarnings(stage string) {
	kept := j.Warnings[:0]
	for _, w := range j.Warnings {
		if w.Stage != stage {
			kept = append(kept, w)
		}
	}
	j.Warnings = kept
}

// SetFailed marks the job as failed with a structured error record.
func (j *Job) SetFailed(stage Status, kind, message string, resumeFrom Status) {
	j.Status = StatusFailed
	j.FailedStage = stage
	j.ErrorKind = kind
	j.ErrorMessage = message
	j.ResumeFrom = resumeFrom
	j.PartialOutput = j.SubtitlePath != ""
	j.ProgressPercent = 0
	j.ProgressMessage = message
	j.ProgressStage = "Failed"
	j.LastHeartbeat = nil
}

// StageKey returns the stage identifier used in CLI presentation.
func (s Status) StageKey() string {
	switch s {
	case "":
		return ""
	case StatusQueued:
		return "queued"
	case StatusCompleted:
		return "final"
	default:
		if _, ok := statusSet[s]; ok {
			return string(s)
		}
		return ""
	}
}
