package workflow

import (
	"context"
	"errors"

	"bisub/internal/queue"
	"bisub/internal/services"
)

// EventKind identifies what happened to a job.
type EventKind int

const (
	// EventStageSucceeded reports that a stage attempt returned without error.
	EventStageSucceeded EventKind = iota
	// EventStageFailed reports that a stage attempt returned an error.
	EventStageFailed
	// EventCancelRequested reports a pending cancellation seen between stages.
	EventCancelRequested
)

func (k EventKind) String() string {
	switch k {
	case EventStageSucceeded:
		return "stage_succeeded"
	case EventStageFailed:
		return "stage_failed"
	case EventCancelRequested:
		return "cancel_requested"
	default:
		return "unknown"
	}
}

// Event is the input to Decide.
type Event struct {
	Kind EventKind
	// Stage is the processing status the event concerns.
	Stage queue.Status
	Err   error
	// Attempt is the 1-based attempt number that produced the event and
	// MaxAttempts the ceiling for the stage.
	Attempt     int
	MaxAttempts int
}

// Action is what the manager does next.
type Action int

const (
	// ActionAdvance persists Next and moves on.
	ActionAdvance Action = iota
	// ActionRetry runs the same stage again.
	ActionRetry
	// ActionFail records a failure and reclaims the job's artifacts.
	ActionFail
	// ActionCancel records a cancellation and reclaims the job's artifacts.
	ActionCancel
	// ActionRelease hands the job back to its start status without recording
	// a failure, for example when the daemon shuts down mid-stage.
	ActionRelease
)

func (a Action) String() string {
	switch a {
	case ActionAdvance:
		return "advance"
	case ActionRetry:
		return "retry"
	case ActionFail:
		return "fail"
	case ActionCancel:
		return "cancel"
	case ActionRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Decision is the outcome of applying an event to a job.
type Decision struct {
	Action Action
	// Next is the status to persist.
	Next queue.Status
	// ResumeFrom is where a retry of a failed job restarts. Empty means the
	// job restarts from queued.
	ResumeFrom queue.Status
	ErrorKind  string
	Message    string
	// Reclaim asks the manager to delete the job's staging directory.
	Reclaim bool
}

// resumePoints maps each processing status to the checkpoint a retry starts
// from after a terminal failure.
var resumePoints = map[queue.Status]queue.Status{
	queue.StatusExtracting:    queue.StatusQueued,
	queue.StatusRecognizing:   queue.StatusExtracted,
	queue.StatusTranslating:   queue.StatusRecognized,
	queue.StatusSynchronizing: queue.StatusTranslated,
	queue.StatusMuxing:        queue.StatusSynchronized,
}

var doneStatus = map[queue.Status]queue.Status{
	queue.StatusExtracting:    queue.StatusExtracted,
	queue.StatusRecognizing:   queue.StatusRecognized,
	queue.StatusTranslating:   queue.StatusTranslated,
	queue.StatusSynchronizing: queue.StatusSynchronized,
	queue.StatusMuxing:        queue.StatusCompleted,
}

// Decide applies event to job and returns the next state and the side
// effects the manager must perform. It does no I/O.
func Decide(job queue.Job, event Event) Decision {
	if event.Kind == EventCancelRequested || (event.Kind == EventStageSucceeded && job.CancelRequested) {
		return cancelDecision()
	}
	switch event.Kind {
	case EventStageSucceeded:
		next, ok := doneStatus[event.Stage]
		if !ok {
			return Decision{
				Action:    ActionFail,
				Next:      queue.StatusFailed,
				ErrorKind: "unknown",
				Message:   "no transition from " + string(event.Stage),
				Reclaim:   true,
			}
		}
		if event.Stage == queue.StatusSynchronizing && !job.Options.BurnIn {
			next = queue.StatusCompleted
		}
		return Decision{Action: ActionAdvance, Next: next, Reclaim: next == queue.StatusCompleted}
	case EventStageFailed:
		return failureDecision(job, event)
	}
	return Decision{Action: ActionAdvance, Next: job.Status}
}

func cancelDecision() Decision {
	return Decision{
		Action:    ActionCancel,
		Next:      queue.StatusFailed,
		ErrorKind: "cancelled",
		Message:   queue.CancelReason,
		Reclaim:   true,
	}
}

func failureDecision(job queue.Job, event Event) Decision {
	err := event.Err
	if errors.Is(err, services.ErrCancelled) {
		return cancelDecision()
	}
	if errors.Is(err, context.Canceled) {
		start, ok := queue.RollbackStatusFor(event.Stage)
		if !ok {
			start = job.Status
		}
		return Decision{Action: ActionRelease, Next: start}
	}
	if services.Retryable(err) && event.Attempt < event.MaxAttempts {
		return Decision{Action: ActionRetry, Next: event.Stage}
	}

	details := services.Details(err)
	if details.Kind == "" {
		details.Kind = "unknown"
	}
	message := details.Message
	if message == "" && err != nil {
		message = err.Error()
	}
	if message == "" {
		message = string(event.Stage) + " failed without error detail"
	}
	resume := resumePoints[event.Stage]
	if resume == queue.StatusExtracted && errors.Is(err, services.ErrNotFound) {
		// The staged audio itself is gone; only a fresh extraction helps.
		resume = queue.StatusQueued
	}
	return Decision{
		Action:     ActionFail,
		Next:       queue.StatusFailed,
		ResumeFrom: resume,
		ErrorKind:  details.Kind,
		Message:    message,
		Reclaim:    !queue.CheckpointInStaging(resume),
	}
}
