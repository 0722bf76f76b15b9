// Package services defines shared utilities consumed by the pipeline stage
// handlers and the external collaborators they drive.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, worker slots, and
//     correlation identifiers for logging.
//   - The error taxonomy (configuration, extraction, recognition, translation,
//     synchronization, mux) plus the Wrap helper, so the orchestrator can decide
//     whether a failed stage attempt is retried and what the job's error record
//     says.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
