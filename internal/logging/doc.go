// Package logging assembles the structured slog loggers used by the daemon,
// the CLI, and every pipeline stage.
//
// It owns the console/JSON handlers and output plumbing, and exposes
// context-aware helpers so stage code tags log lines with job IDs, stage
// names, worker slots, and correlation IDs without threading them by hand.
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
