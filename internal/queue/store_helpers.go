package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const jobColumns = "id, input_path, input_bytes, options_json, status, media_duration_ms, audio_path, source_language, segments_json, translations_json, subtitle_path, output_path, warnings_json, error_message, error_kind, failed_stage, resume_from, partial_output, cancel_requested, progress_stage, progress_percent, progress_message, created_at, updated_at, last_heartbeat"

// timeLayout has a fixed-width fraction so stored timestamps compare
// correctly as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               int64
		inputPath        string
		inputBytes       sql.NullInt64
		optionsRaw       sql.NullString
		statusStr        string
		durationMS       sql.NullInt64
		audioPath        sql.NullString
		sourceLanguage   sql.NullString
		segmentsJSON     sql.NullString
		translationsJSON sql.NullString
		subtitlePath     sql.NullString
		outputPath       sql.NullString
		warningsRaw      sql.NullString
		errorMessage     sql.NullString
		errorKind        sql.NullString
		failedStage      sql.NullString
		resumeFrom       sql.NullString
		partialOutput    sql.NullInt64
		cancelRequested  sql.NullInt64
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&inputPath,
		&inputBytes,
		&optionsRaw,
		&statusStr,
		&durationMS,
		&audioPath,
		&sourceLanguage,
		&segmentsJSON,
		&translationsJSON,
		&subtitlePath,
		&outputPath,
		&warningsRaw,
		&errorMessage,
		&errorKind,
		&failedStage,
		&resumeFrom,
		&partialOutput,
		&cancelRequested,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		InputPath:        inputPath,
		InputBytes:       inputBytes.Int64,
		Status:           Status(statusStr),
		MediaDuration:    time.Duration(durationMS.Int64) * time.Millisecond,
		AudioPath:        audioPath.String,
		SourceLanguage:   sourceLanguage.String,
		SegmentsJSON:     segmentsJSON.String,
		TranslationsJSON: translationsJSON.String,
		SubtitlePath:     subtitlePath.String,
		OutputPath:       outputPath.String,
		ErrorMessage:     errorMessage.String,
		ErrorKind:        errorKind.String,
		FailedStage:      Status(failedStage.String),
		ResumeFrom:       Status(resumeFrom.String),
		PartialOutput:    partialOutput.Int64 != 0,
		CancelRequested:  cancelRequested.Int64 != 0,
		ProgressStage:    progressStage.String,
		ProgressPercent:  progressPercent.Float64,
		ProgressMessage:  progressMessage.String,
	}
	if optionsRaw.Valid && optionsRaw.String != "" {
		if err := json.Unmarshal([]byte(optionsRaw.String), &job.Options); err != nil {
			return nil, fmt.Errorf("decode options for job %d: %w", id, err)
		}
	}
	if warningsRaw.Valid && warningsRaw.String != "" {
		if err := json.Unmarshal([]byte(warningsRaw.String), &job.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings for job %d: %w", id, err)
		}
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func marshalWarnings(warnings []Warning) (any, error) {
	if len(warnings) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("marshal warnings: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
