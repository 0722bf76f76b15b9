// Package workflow advances jobs through the subtitle pipeline.
//
// The Manager runs a fixed pool of workers. Each worker claims the oldest job
// waiting at a stage boundary, runs that one stage, and records the outcome:
// Decide maps the stage result onto the next status, a retry, a failure, or a
// cancellation without doing any I/O, and the manager carries the decision
// out. Recognition is the only stage that needs the accelerator, so a worker
// claims recognition work only while it holds the single accelerator permit.
//
// Every stage writes its checkpoint onto the job before the status advances,
// so a retry or a crash recovery resumes at the interrupted stage from the
// previous stage's output. Heartbeats detect workers that died mid-stage;
// cancellations take effect at stage boundaries; terminal jobs lose their
// staging directory and are purged after the retention window.
//
// Add new lifecycle stages by extending StageSet, the queue status enums,
// and the transition table in Decide.
package workflow
