package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration   = errors.New("configuration error")
	ErrExtraction      = errors.New("extraction error")
	ErrRecognition     = errors.New("recognition error")
	ErrTranslation     = errors.New("translation error")
	ErrSynchronization = errors.New("synchronization error")
	ErrMux             = errors.New("mux error")
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
	ErrCancelled       = errors.New("cancelled")
)

// kinds is ordered so the most specific taxonomy marker wins when an error
// carries several.
var kinds = []struct {
	marker error
	name   string
	hint   string
}{
	{ErrCancelled, "cancelled", "job was cancelled; resubmit to process again"},
	{ErrConfiguration, "configuration", "check the configuration file and installed tools"},
	{ErrValidation, "validation", "check the input file and job options"},
	{ErrNotFound, "not_found", "check that the input and intermediate files still exist"},
	{ErrSynchronization, "synchronization", "upstream segments violated ordering; report as a defect"},
	{ErrExtraction, "extraction", "inspect ffmpeg output for the source video"},
	{ErrRecognition, "recognition", "inspect the recognizer logs; retry re-extracts the audio"},
	{ErrMux, "mux", "inspect ffmpeg output; retry resumes from the synchronized subtitles"},
	{ErrTranslation, "translation", "check translation credentials and rate limits"},
	{ErrTimeout, "timeout", "raise workflow stage timeouts for large inputs"},
	{ErrTransient, "transient", "retry the job"},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &stageError{
		marker:    marker,
		stage:     strings.TrimSpace(stage),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		cause:     err,
	}
}

type stageError struct {
	marker    error
	stage     string
	operation string
	message   string
	cause     error
}

func (e *stageError) Error() string {
	detail := buildDetail(e.stage, e.operation, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.marker, detail, e.cause)
	}
	return fmt.Sprintf("%v: %s", e.marker, detail)
}

func (e *stageError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.marker}
	}
	return []error{e.marker, e.cause}
}

// ErrorDetails is the structured view of a wrapped error used for logging and
// job error records.
type ErrorDetails struct {
	Kind      string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details classifies err against the marker taxonomy.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: "unknown", Message: err.Error(), Cause: err}
	if errors.Is(err, context.DeadlineExceeded) {
		details.Kind = "timeout"
		details.Hint = "raise workflow stage timeouts for large inputs"
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			details.Kind = k.name
			details.Hint = k.hint
			break
		}
	}
	var se *stageError
	if errors.As(err, &se) {
		details.Operation = se.operation
		if se.message != "" {
			details.Message = se.message
		}
	}
	return details
}

// Retryable reports whether a stage attempt that failed with err may be retried
// by the orchestrator.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrCancelled),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrSynchronization),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
